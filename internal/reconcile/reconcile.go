// Package reconcile keeps the display tree and the uuid → node index in step
// with the task cache.
//
// Invariants maintained between calls:
//   - the index holds a handle for a uuid iff the tree holds a node for it;
//   - the node of a task whose record has a parent sits below the node of
//     that parent, so ancestors are always materialized first.
//
// A Reconciler is not safe for concurrent use. The engine package wraps it
// in an exclusive, non-reentrant guard.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/calvinalkan/tasktree/internal/cache"
	"github.com/calvinalkan/tasktree/internal/task"
	"github.com/calvinalkan/tasktree/internal/tree"

	"github.com/google/uuid"
)

// ParentSetter pushes a new part-of relation to the store.
type ParentSetter interface {
	SetParent(ctx context.Context, id uuid.UUID, parent *uuid.UUID) error
}

// Reconciler owns the tree and the index.
type Reconciler struct {
	cache  *cache.Cache
	tree   *tree.Store
	parent ParentSetter

	index map[uuid.UUID]tree.Handle

	// materializing holds the ids whose Show is in progress further up the
	// call stack.
	materializing map[uuid.UUID]bool
}

// New returns a Reconciler over an empty index. t should be empty too.
func New(c *cache.Cache, t *tree.Store, ps ParentSetter) *Reconciler {
	return &Reconciler{
		cache:         c,
		tree:          t,
		parent:        ps,
		index:         make(map[uuid.UUID]tree.Handle),
		materializing: make(map[uuid.UUID]bool),
	}
}

// Tree returns the display tree.
func (r *Reconciler) Tree() *tree.Store { return r.tree }

// Cache returns the task cache.
func (r *Reconciler) Cache() *cache.Cache { return r.cache }

// Handle returns the node of id, if materialized.
func (r *Reconciler) Handle(id uuid.UUID) (tree.Handle, bool) {
	h, ok := r.index[id]

	return h, ok
}

// Len returns the number of index entries.
func (r *Reconciler) Len() int { return len(r.index) }

// Show materializes id, and first every missing ancestor of id, and returns
// its node. Already materialized ids return their existing node.
func (r *Reconciler) Show(id uuid.UUID) (tree.Handle, error) {
	if h, ok := r.index[id]; ok {
		return h, nil
	}

	if r.materializing[id] {
		return tree.Handle{}, fmt.Errorf("%w: through %s", task.ErrCycle, id)
	}

	r.materializing[id] = true
	defer delete(r.materializing, id)

	t, err := r.cache.Get(id)
	if err != nil {
		return tree.Handle{}, fmt.Errorf("showing %s: %w", id, err)
	}

	var parent *tree.Handle

	if t.HasParent() {
		ph, showErr := r.Show(t.Parent())
		if showErr != nil {
			return tree.Handle{}, showErr
		}

		parent = &ph
	}

	// Read again: the recursive call may have changed the cache.
	t, err = r.cache.Get(id)
	if err != nil {
		return tree.Handle{}, fmt.Errorf("showing %s: %w", id, err)
	}

	h, err := r.tree.Insert(parent, RowFor(&t))
	if err != nil {
		return tree.Handle{}, fmt.Errorf("showing %s: %w", id, err)
	}

	r.index[id] = h

	return h, nil
}

// Refresh rebuilds the tree from scratch: it clears tree and index, merges a
// full export into the cache, and shows every listable task matching filter.
// Ancestors of matches are shown whether or not they match. On error the
// tree and index are left empty.
func (r *Reconciler) Refresh(ctx context.Context, filter string) error {
	r.clear()

	err := r.cache.Refresh(ctx)
	if err != nil {
		return err
	}

	ids, err := r.cache.Query(ctx, filter)
	if err != nil {
		return err
	}

	for _, id := range ids {
		_, err = r.Show(id)
		if err != nil {
			r.clear()

			return fmt.Errorf("refresh: %w", err)
		}
	}

	return nil
}

func (r *Reconciler) clear() {
	r.index = make(map[uuid.UUID]tree.Handle)
	r.tree.Clear()
}

// Update re-fetches the record of id and brings the tree in line with it.
//
// With a known handle the caller asserts that node already shows the new
// state (the tree itself was edited); Update then only refreshes the cache
// entry and points the index at known.
//
// Without one, the node of id is removed and shown again, together with the
// descendants that were materialized below it. A missing index entry is a
// task.ErrDesync error.
func (r *Reconciler) Update(ctx context.Context, id uuid.UUID, known *tree.Handle) error {
	_, err := r.cache.Update(ctx, id)
	if err != nil {
		return err
	}

	if known != nil {
		if !r.tree.Valid(*known) {
			return fmt.Errorf("%w: %s: %w", task.ErrDesync, id, tree.ErrInvalidHandle)
		}

		r.index[id] = *known

		return nil
	}

	h, ok := r.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", task.ErrDesync, id)
	}

	subtree := r.tree.Subtree(h)
	if len(subtree) == 0 {
		return fmt.Errorf("%w: %s: %w", task.ErrDesync, id, tree.ErrInvalidHandle)
	}

	descendants := make([]uuid.UUID, 0, len(subtree)-1)

	for _, d := range subtree[1:] {
		did, idErr := r.idOf(d)
		if idErr != nil {
			return idErr
		}

		descendants = append(descendants, did)
	}

	err = r.tree.Remove(h)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", task.ErrDesync, id, err)
	}

	delete(r.index, id)

	for _, did := range descendants {
		delete(r.index, did)
	}

	_, err = r.Show(id)
	if err != nil {
		return err
	}

	for _, did := range descendants {
		_, err = r.Show(did)
		if err != nil {
			return err
		}
	}

	return nil
}

// Reparent reconciles a structural edit made on the tree: h now sits below
// a visual parent that may differ from the cached part-of. Unchanged
// parentage is a no-op. A change is pushed to the store, after which h is
// re-registered as-is.
func (r *Reconciler) Reparent(ctx context.Context, h tree.Handle) error {
	id, err := r.idOf(h)
	if err != nil {
		return err
	}

	var observed *uuid.UUID

	if ph, ok := r.tree.Parent(h); ok {
		pid, pidErr := r.idOf(ph)
		if pidErr != nil {
			return pidErr
		}

		observed = &pid
	}

	t, err := r.cache.Get(id)
	if err != nil {
		return fmt.Errorf("reparenting %s: %w", id, err)
	}

	if sameParent(&t, observed) {
		return nil
	}

	err = r.parent.SetParent(ctx, id, observed)
	if err != nil {
		return fmt.Errorf("reparenting %s: %w", id, err)
	}

	return r.Update(ctx, id, &h)
}

func sameParent(t *task.Task, observed *uuid.UUID) bool {
	if observed == nil {
		return !t.HasParent()
	}

	return t.HasParent() && t.Parent() == *observed
}

// Forget drops id from the cache, the index and the tree. Descendant nodes
// are removed from the tree and index with it.
func (r *Reconciler) Forget(id uuid.UUID) error {
	r.cache.Forget(id)

	h, ok := r.index[id]
	if !ok {
		return nil
	}

	for _, d := range r.tree.Subtree(h) {
		did, err := r.idOf(d)
		if err != nil {
			return err
		}

		delete(r.index, did)
	}

	err := r.tree.Remove(h)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", task.ErrDesync, id, err)
	}

	return nil
}

// idOf parses the uuid out of the id column of h.
func (r *Reconciler) idOf(h tree.Handle) (uuid.UUID, error) {
	row, ok := r.tree.Row(h)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %w", task.ErrDesync, tree.ErrInvalidHandle)
	}

	id, err := uuid.Parse(row.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s holds %q: %w", task.ErrDesync, h, row.ID, err)
	}

	return id, nil
}

// IDOf returns the uuid shown by h.
func (r *Reconciler) IDOf(h tree.Handle) (uuid.UUID, error) {
	return r.idOf(h)
}

// Check verifies that index, tree and cache agree. It returns every
// violation found, joined.
func (r *Reconciler) Check() error {
	var errs []error

	seen := make(map[uuid.UUID]bool, len(r.index))

	r.tree.Walk(func(h tree.Handle, _ int, _ tree.Row) {
		id, err := r.idOf(h)
		if err != nil {
			errs = append(errs, err)

			return
		}

		seen[id] = true

		if ih, ok := r.index[id]; !ok || ih != h {
			errs = append(errs, fmt.Errorf("%w: node %s for %s is not indexed", task.ErrDesync, h, id))
		}

		t, err := r.cache.Get(id)
		if err != nil {
			errs = append(errs, err)

			return
		}

		var observed *uuid.UUID

		if ph, ok := r.tree.Parent(h); ok {
			pid, pidErr := r.idOf(ph)
			if pidErr != nil {
				errs = append(errs, pidErr)

				return
			}

			observed = &pid
		}

		if !sameParent(&t, observed) {
			errs = append(errs, fmt.Errorf("%w: %s is shown below %s, cached part-of is %s",
				task.ErrDesync, id, describeParent(observed), describeParent(t.PartOf)))
		}
	})

	for id := range r.index {
		if !seen[id] {
			errs = append(errs, fmt.Errorf("%w: index entry for %s has no node", task.ErrDesync, id))
		}
	}

	return errors.Join(errs...)
}

func describeParent(p *uuid.UUID) string {
	if p == nil || *p == uuid.Nil {
		return "(root)"
	}

	return p.String()
}

// RowFor renders the columns of t.
func RowFor(t *task.Task) tree.Row {
	return tree.Row{
		ID:          t.UUID.String(),
		Description: t.Description,
		Status:      t.Status.Label(),
		Completed:   t.Status.IsCompleted(),
		Deleted:     t.Status.IsDeleted(),
		Tags:        strings.Join(t.Tags, ", "),
		Project:     t.Project,
		Due:         task.DisplayDate(t.Due),
		Wait:        task.DisplayDate(t.Wait),
	}
}
