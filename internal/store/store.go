// Package store provides the clients tasktree uses to talk to the external
// task store: a Taskwarrior process client and a local SQLite store.
//
// Both implement [Store]. Every failure is wrapped with [task.ErrStore] so
// callers can classify it with errors.Is.
package store

import (
	"context"

	"github.com/calvinalkan/tasktree/internal/task"

	"github.com/google/uuid"
)

// Store is the narrow contract tasktree needs from a task store.
type Store interface {
	// ExportAll returns every record in the store.
	ExportAll(ctx context.Context) ([]task.Task, error)
	// ExportOne returns zero or one records for id.
	ExportOne(ctx context.Context, id uuid.UUID) ([]task.Task, error)
	// QueryIDs returns the ids matching filter whose status is one of statuses.
	QueryIDs(ctx context.Context, filter string, statuses []task.Status) ([]uuid.UUID, error)
	// Create adds a task and returns the store's raw acknowledgement, which
	// contains the new task's uuid.
	Create(ctx context.Context, description string, parent *uuid.UUID) (string, error)

	Done(ctx context.Context, id uuid.UUID) error
	Pending(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetParent(ctx context.Context, id uuid.UUID, parent *uuid.UUID) error
	SetDescription(ctx context.Context, id uuid.UUID, description string) error

	// Import merges the given records into the store, keyed by uuid.
	Import(ctx context.Context, tasks []task.Task) error
}
