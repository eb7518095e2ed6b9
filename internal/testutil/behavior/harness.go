package behavior

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/calvinalkan/tasktree/internal/engine"
	"github.com/calvinalkan/tasktree/internal/testutil"
	"github.com/calvinalkan/tasktree/internal/tree"

	"github.com/google/uuid"
)

// Harness wires an engine to an in-memory store and collects the errors
// raised by tree notifications.
type Harness struct {
	TB     testing.TB
	Ctx    context.Context //nolint:containedctx // test harness
	Store  *testutil.MemStore
	Engine *engine.Engine

	reported []error
}

// NewHarness creates an engine over a fresh MemStore.
func NewHarness(tb testing.TB) *Harness {
	tb.Helper()

	h := &Harness{
		TB:    tb,
		Ctx:   context.Background(),
		Store: testutil.NewMemStore(),
	}

	e, err := engine.New(h.Ctx, h.Store, engine.Options{
		Report: func(err error) { h.reported = append(h.reported, err) },
	})
	if err != nil {
		tb.Fatalf("new engine: %v", err)
	}

	h.Engine = e

	return h
}

// Reported returns and clears the errors reported since the last call.
func (h *Harness) Reported() error {
	err := errors.Join(h.reported...)
	h.reported = nil

	return err
}

// Shown returns the ids of all nodes in pre-order.
func (h *Harness) Shown() []uuid.UUID {
	var ids []uuid.UUID

	h.Engine.Tree().Walk(func(_ tree.Handle, _ int, row tree.Row) {
		id, err := uuid.Parse(row.ID)
		if err == nil {
			ids = append(ids, id)
		}
	})

	return ids
}

// Forest returns the parent relation of the current tree.
func (h *Harness) Forest() Forest {
	t := h.Engine.Tree()
	forest := make(Forest)

	t.Walk(func(node tree.Handle, _ int, row tree.Row) {
		id := uuid.MustParse(row.ID)
		forest[id] = uuid.Nil

		if p, ok := t.Parent(node); ok {
			prow, _ := t.Row(p)
			forest[id] = uuid.MustParse(prow.ID)
		}
	})

	return forest
}

// CheckCoherence verifies the engine's own invariants, and that the cached
// record of every shown task matches the store.
func (h *Harness) CheckCoherence() error {
	err := h.Engine.Check()
	if err != nil {
		return err
	}

	var errs []error

	for _, id := range h.Shown() {
		cached, cerr := h.Engine.Task(id)
		if cerr != nil {
			errs = append(errs, cerr)

			continue
		}

		stored, ok := h.Store.Get(id)
		if !ok {
			errs = append(errs, fmt.Errorf("%s shown but not stored", id))

			continue
		}

		if cached.Status != stored.Status || cached.Description != stored.Description ||
			!sameParent(cached.PartOf, stored.PartOf) {
			errs = append(errs, fmt.Errorf("%s: cached %s/%q differs from stored %s/%q",
				id, cached.Status, cached.Description, stored.Status, stored.Description))
		}
	}

	return errors.Join(errs...)
}

// CheckRefreshed compares the tree with the model for filter.
func (h *Harness) CheckRefreshed(filter string) error {
	want, err := Expected(h.Store.All(), filter)
	if err != nil {
		return err
	}

	if diff := Diff(want, h.Forest()); diff != "" {
		return fmt.Errorf("tree differs from model for filter %q:\n%s", filter, diff)
	}

	return nil
}

func sameParent(a, b *uuid.UUID) bool {
	norm := func(p *uuid.UUID) uuid.UUID {
		if p == nil {
			return uuid.Nil
		}

		return *p
	}

	return norm(a) == norm(b)
}

// pick returns the n-th shown id in a stable order, or false if nothing is
// shown.
func (h *Harness) pick(n int) (uuid.UUID, bool) {
	ids := h.Shown()
	if len(ids) == 0 {
		return uuid.Nil, false
	}

	slices.SortFunc(ids, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })

	return ids[n%len(ids)], true
}
