// Package cache keeps an in-memory mirror of task records keyed by uuid.
//
// The rest of tasktree reads record content only through a [Cache]; the
// cache in turn is the only component that exports records from the store.
// A Cache is not safe for concurrent use; callers serialize access.
package cache

import (
	"context"
	"fmt"
	"regexp"
	"slices"

	"github.com/calvinalkan/tasktree/internal/store"
	"github.com/calvinalkan/tasktree/internal/task"

	"github.com/google/uuid"
)

// uuidPattern finds the new task's id in a creation acknowledgement.
var uuidPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

// Cache maps task uuids to the last record fetched from the store.
type Cache struct {
	store store.Store
	tasks map[uuid.UUID]task.Task
}

// New returns an empty cache backed by s.
func New(s store.Store) *Cache {
	return &Cache{
		store: s,
		tasks: make(map[uuid.UUID]task.Task),
	}
}

// Get returns the cached record for id. It never touches the store.
func (c *Cache) Get(id uuid.UUID) (task.Task, error) {
	t, ok := c.tasks[id]
	if !ok {
		return task.Task{}, fmt.Errorf("%w in cache: %s", task.ErrNotFound, id)
	}

	return t, nil
}

// Refresh merges a full export into the cache. Records that reappear are
// replaced; records missing from the export are kept. On error the cache is
// left as it was.
func (c *Cache) Refresh(ctx context.Context) error {
	tasks, err := c.store.ExportAll(ctx)
	if err != nil {
		return fmt.Errorf("refreshing cache: %w", err)
	}

	for i := range tasks {
		c.tasks[tasks[i].UUID] = tasks[i]
	}

	return nil
}

// Update re-fetches one record and overwrites its cache entry.
func (c *Cache) Update(ctx context.Context, id uuid.UUID) (task.Task, error) {
	tasks, err := c.store.ExportOne(ctx, id)
	if err != nil {
		return task.Task{}, fmt.Errorf("updating %s: %w", id, err)
	}

	if len(tasks) == 0 {
		return task.Task{}, fmt.Errorf("%w in store: %s", task.ErrNotFound, id)
	}

	t := tasks[0]
	if t.UUID != id {
		return task.Task{}, fmt.Errorf("%w: export of %s returned %s", task.ErrStore, id, t.UUID)
	}

	c.tasks[id] = t

	return t, nil
}

// Create adds a task to the store and caches the new record.
func (c *Cache) Create(ctx context.Context, description string, parent *uuid.UUID) (task.Task, error) {
	ack, err := c.store.Create(ctx, description, parent)
	if err != nil {
		return task.Task{}, fmt.Errorf("creating task: %w", err)
	}

	id, err := ParseCreatedID(ack)
	if err != nil {
		return task.Task{}, err
	}

	return c.Update(ctx, id)
}

// ParseCreatedID extracts the first uuid-shaped substring of a store's
// creation acknowledgement.
func ParseCreatedID(ack string) (uuid.UUID, error) {
	match := uuidPattern.FindString(ack)
	if match == "" {
		return uuid.Nil, fmt.Errorf("%w: %q", task.ErrCreationFailed, ack)
	}

	id, err := uuid.Parse(match)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", task.ErrCreationFailed, err)
	}

	return id, nil
}

// Query lists the ids matching filter among tasks eligible for the root
// listing (see task.ListableStatuses).
func (c *Cache) Query(ctx context.Context, filter string) ([]uuid.UUID, error) {
	ids, err := c.store.QueryIDs(ctx, filter, task.ListableStatuses)
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", filter, err)
	}

	return ids, nil
}

// Forget drops the entry for id. It reports whether an entry existed.
func (c *Cache) Forget(id uuid.UUID) bool {
	_, ok := c.tasks[id]
	delete(c.tasks, id)

	return ok
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	return len(c.tasks)
}

// IDs returns the cached ids in ascending order.
func (c *Cache) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.tasks))
	for id := range c.tasks {
		ids = append(ids, id)
	}

	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return slices.Compare(a[:], b[:])
	})

	return ids
}
