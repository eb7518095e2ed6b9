package task

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the lifecycle state of a task.
type Status string

// Status constants, spelled the way the store exports them.
const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusDeleted   Status = "deleted"
	StatusWaiting   Status = "waiting"
	StatusRecurring Status = "recurring"
)

// ListableStatuses are the statuses eligible for the root listing of a
// refresh. Descendants are shown regardless of status.
var ListableStatuses = []Status{StatusPending, StatusWaiting, StatusRecurring} //nolint:gochecknoglobals // package-level constant

// ParseStatus parses the store spelling of a status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(s)); st {
	case StatusPending, StatusCompleted, StatusDeleted, StatusWaiting, StatusRecurring:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Label is the upper-case form shown in the status column.
func (s Status) Label() string {
	return strings.ToUpper(string(s))
}

// IsCompleted reports whether s is StatusCompleted.
func (s Status) IsCompleted() bool { return s == StatusCompleted }

// IsDeleted reports whether s is StatusDeleted.
func (s Status) IsDeleted() bool { return s == StatusDeleted }

// UnmarshalJSON rejects statuses outside the closed set.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, string(data))
	}

	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}
