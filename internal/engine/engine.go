// Package engine is the single owner of tasktree's state and the entry
// point for UI events.
//
// Every handler takes exclusive access to the state for its whole run. The
// access is not reentrant: a handler called while another one is in progress
// further up the same call stack (typically a tree notification fired by the
// engine's own insertion) cannot take it, and returns nil without doing
// anything. Accessors that must produce an answer (Task, Resolve, Check)
// fail with ErrBusy instead; Filter, Pending and Handle report "nothing".
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/calvinalkan/tasktree/internal/cache"
	"github.com/calvinalkan/tasktree/internal/reconcile"
	"github.com/calvinalkan/tasktree/internal/store"
	"github.com/calvinalkan/tasktree/internal/task"
	"github.com/calvinalkan/tasktree/internal/tree"

	"github.com/google/uuid"
)

// Engine wires store, cache, tree and reconciler together.
type Engine struct {
	// mu guards everything below. Handlers only ever TryLock it.
	mu sync.Mutex

	store  store.Store
	rec    *reconcile.Reconciler
	filter string

	pending []deferred

	// ctx and report serve tree notifications, which carry neither.
	ctx    context.Context //nolint:containedctx // notifications have no context of their own
	report func(error)
}

type deferred struct {
	name string
	run  func(ctx context.Context) error
}

// Options configures New.
type Options struct {
	// Report receives errors from handlers triggered by tree notifications.
	// Required.
	Report func(error)
}

// New returns an engine over s with an empty tree and cache. ctx is used for
// store calls made from tree notifications.
func New(ctx context.Context, s store.Store, opts Options) (*Engine, error) {
	if ctx == nil {
		return nil, errors.New("new engine: context is nil")
	}

	if s == nil {
		return nil, errors.New("new engine: store is nil")
	}

	if opts.Report == nil {
		return nil, errors.New("new engine: report function is nil")
	}

	t := tree.New()
	e := &Engine{
		store:  s,
		rec:    reconcile.New(cache.New(s), t, s),
		ctx:    ctx,
		report: opts.Report,
	}

	t.OnRowChanged(e.rowChanged)

	return e, nil
}

// borrow takes exclusive access. ok is false when access is already held,
// which only happens for calls nested inside another handler.
func (e *Engine) borrow() (release func(), ok bool) {
	if !e.mu.TryLock() {
		return nil, false
	}

	return e.mu.Unlock, true
}

func (e *Engine) rowChanged(h tree.Handle) {
	err := e.OnStructureChanged(e.ctx, h)
	if err != nil {
		e.report(fmt.Errorf("row changed: %w", err))
	}
}

// Tree returns the display tree, for the UI to read and edit. Edits fire
// OnStructureChanged.
func (e *Engine) Tree() *tree.Store {
	return e.rec.Tree()
}

// Filter returns the filter of the last submitted refresh.
func (e *Engine) Filter() string {
	release, ok := e.borrow()
	if !ok {
		return ""
	}
	defer release()

	return e.filter
}

// OnFilterSubmitted rebuilds the tree for filter.
func (e *Engine) OnFilterSubmitted(ctx context.Context, filter string) error {
	release, ok := e.borrow()
	if !ok {
		return nil
	}
	defer release()

	e.filter = filter

	return e.rec.Refresh(ctx, filter)
}

// OnDoneToggled flips id between done and pending. Deleted tasks keep their
// status; their node is still refreshed.
func (e *Engine) OnDoneToggled(ctx context.Context, id uuid.UUID) error {
	release, ok := e.borrow()
	if !ok {
		return nil
	}
	defer release()

	t, err := e.rec.Cache().Get(id)
	if err != nil {
		return fmt.Errorf("toggle done: %w", err)
	}

	switch t.Status {
	case task.StatusCompleted:
		err = e.store.Pending(ctx, id)
	case task.StatusPending, task.StatusWaiting, task.StatusRecurring:
		err = e.store.Done(ctx, id)
	case task.StatusDeleted:
	}

	if err != nil {
		return fmt.Errorf("toggle done: %w", err)
	}

	return e.rec.Update(ctx, id, nil)
}

// OnDeletedToggled deletes id, or restores it to pending if it is deleted.
func (e *Engine) OnDeletedToggled(ctx context.Context, id uuid.UUID) error {
	release, ok := e.borrow()
	if !ok {
		return nil
	}
	defer release()

	t, err := e.rec.Cache().Get(id)
	if err != nil {
		return fmt.Errorf("toggle deleted: %w", err)
	}

	if t.Status == task.StatusDeleted {
		err = e.store.Pending(ctx, id)
	} else {
		err = e.store.Delete(ctx, id)
	}

	if err != nil {
		return fmt.Errorf("toggle deleted: %w", err)
	}

	return e.rec.Update(ctx, id, nil)
}

// OnChildCreated creates a task below parent (or a root task when parent is
// nil) and shows it. An empty description is ignored and returns uuid.Nil.
func (e *Engine) OnChildCreated(ctx context.Context, parent *uuid.UUID, description string) (uuid.UUID, error) {
	if description == "" {
		return uuid.Nil, nil
	}

	release, ok := e.borrow()
	if !ok {
		return uuid.Nil, nil
	}
	defer release()

	t, err := e.rec.Cache().Create(ctx, description, parent)
	if err != nil {
		return uuid.Nil, err
	}

	_, err = e.rec.Show(t.UUID)
	if err != nil {
		return t.UUID, err
	}

	return t.UUID, nil
}

// OnDescriptionEdited stores the new description of id. The node is
// rebuilt later, by RunPending, so the editor that produced the edit keeps
// a valid node while it finishes. The rebuild is queued even when the store
// rejects the edit, which puts the stored text back into the node.
func (e *Engine) OnDescriptionEdited(ctx context.Context, id uuid.UUID, description string) error {
	release, ok := e.borrow()
	if !ok {
		return nil
	}
	defer release()

	// The node is rebuilt from the store either way; a rejected edit must
	// not stay on screen.
	e.pending = append(e.pending, deferred{
		name: "update " + id.String(),
		run: func(ctx context.Context) error {
			return e.rec.Update(ctx, id, nil)
		},
	})

	err := e.store.SetDescription(ctx, id, description)
	if err != nil {
		return fmt.Errorf("edit description: %w", err)
	}

	return nil
}

// OnStructureChanged reconciles a node whose position in the tree may have
// been changed by the UI.
func (e *Engine) OnStructureChanged(ctx context.Context, h tree.Handle) error {
	release, ok := e.borrow()
	if !ok {
		return nil
	}
	defer release()

	return e.rec.Reparent(ctx, h)
}

// Reveal shows id, and its ancestors, even if the current filter did not
// list it. The task must be cached.
func (e *Engine) Reveal(_ context.Context, id uuid.UUID) (tree.Handle, error) {
	release, ok := e.borrow()
	if !ok {
		return tree.Handle{}, nil
	}
	defer release()

	return e.rec.Show(id)
}

// OnForget drops id from cache, index and tree without touching the store.
func (e *Engine) OnForget(_ context.Context, id uuid.UUID) error {
	release, ok := e.borrow()
	if !ok {
		return nil
	}
	defer release()

	return e.rec.Forget(id)
}

// Pending returns the number of deferred operations waiting for RunPending.
func (e *Engine) Pending() int {
	release, ok := e.borrow()
	if !ok {
		return 0
	}
	defer release()

	return len(e.pending)
}

// RunPending runs the deferred operations in the order they were queued.
// All of them run; their errors are joined.
func (e *Engine) RunPending(ctx context.Context) error {
	release, ok := e.borrow()
	if !ok {
		return nil
	}
	defer release()

	queue := e.pending
	e.pending = nil

	var errs []error

	for _, d := range queue {
		err := d.run(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.name, err))
		}
	}

	return errors.Join(errs...)
}

// Task returns the cached record of id.
func (e *Engine) Task(id uuid.UUID) (task.Task, error) {
	release, ok := e.borrow()
	if !ok {
		return task.Task{}, fmt.Errorf("%w: task %s", ErrBusy, id)
	}
	defer release()

	return e.rec.Cache().Get(id)
}

// Handle returns the node of id, if materialized.
func (e *Engine) Handle(id uuid.UUID) (tree.Handle, bool) {
	release, ok := e.borrow()
	if !ok {
		return tree.Handle{}, false
	}
	defer release()

	return e.rec.Handle(id)
}

// Resolve finds the cached task whose uuid starts with prefix. A full uuid
// is returned as-is; shorter prefixes must be unambiguous.
func (e *Engine) Resolve(prefix string) (uuid.UUID, error) {
	release, ok := e.borrow()
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: resolve %s", ErrBusy, prefix)
	}
	defer release()

	return resolve(e.rec, prefix)
}

// Check verifies index, tree and cache coherence.
func (e *Engine) Check() error {
	release, ok := e.borrow()
	if !ok {
		return fmt.Errorf("%w: check", ErrBusy)
	}
	defer release()

	return e.rec.Check()
}
