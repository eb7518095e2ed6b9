// Package task defines the task record exchanged with the external store
// and the error kinds used across tasktree.
package task

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task is one unit of work as exported by the store.
type Task struct {
	UUID        uuid.UUID    `json:"uuid"`
	Status      Status       `json:"status"`
	Description string       `json:"description"`
	PartOf      *uuid.UUID   `json:"partof,omitempty"`
	Entry       Date         `json:"entry"`
	Modified    *Date        `json:"modified,omitempty"`
	Due         *Date        `json:"due,omitempty"`
	Wait        *Date        `json:"wait,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Project     string       `json:"project,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// Annotation is a timestamped note attached to a task. Tasktree only passes
// annotations through.
type Annotation struct {
	Entry       Date   `json:"entry"`
	Description string `json:"description"`
}

// HasParent reports whether the task is part of another task.
func (t *Task) HasParent() bool {
	return t.PartOf != nil && *t.PartOf != uuid.Nil
}

// Parent returns the part-of id, or uuid.Nil for root tasks.
func (t *Task) Parent() uuid.UUID {
	if !t.HasParent() {
		return uuid.Nil
	}

	return *t.PartOf
}

// DecodeList decodes a JSON array of tasks as produced by an export.
// Empty input decodes to an empty list.
func DecodeList(data []byte) ([]Task, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var tasks []Task

	err := json.Unmarshal(data, &tasks)
	if err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}

	for i := range tasks {
		if tasks[i].UUID == uuid.Nil {
			return nil, fmt.Errorf("decode tasks: entry %d has no uuid", i)
		}
	}

	return tasks, nil
}

// EncodeList encodes tasks as a JSON array suitable for import.
func EncodeList(tasks []Task) ([]byte, error) {
	if tasks == nil {
		tasks = []Task{}
	}

	data, err := json.Marshal(tasks)
	if err != nil {
		return nil, fmt.Errorf("encode tasks: %w", err)
	}

	return data, nil
}

// DateLayout is the compact UTC form used by the store's JSON export.
const DateLayout = "20060102T150405Z"

// DisplayLayout is how timestamps are shown in the tree.
const DisplayLayout = "2006-01-02 15:04"

// Date is a timestamp in the store's compact UTC encoding.
type Date struct {
	time.Time
}

// NewDate truncates t to seconds and converts it to UTC.
func NewDate(t time.Time) Date {
	return Date{t.UTC().Truncate(time.Second)}
}

// ParseDate parses the compact store encoding.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}

	return Date{t}, nil
}

// String returns the compact store encoding.
func (d Date) String() string {
	return d.UTC().Format(DateLayout)
}

// Display formats d for a tree column.
func (d Date) Display() string {
	return d.UTC().Format(DisplayLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string

	err := json.Unmarshal(data, &s)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(data))
	}

	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}

	*d = parsed

	return nil
}

// DisplayDate formats an optional date, empty when absent.
func DisplayDate(d *Date) string {
	if d == nil {
		return ""
	}

	return d.Display()
}
