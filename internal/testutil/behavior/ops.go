package behavior

import (
	"errors"
	"fmt"

	"github.com/calvinalkan/tasktree/internal/tree"

	"github.com/google/uuid"
)

// Op is one UI event. Apply returns an error only for outcomes the engine
// must never produce.
type Op interface {
	Apply(h *Harness) error
	String() string
}

// OpRefresh submits a filter.
type OpRefresh struct{ Filter string }

func (o OpRefresh) String() string { return fmt.Sprintf("refresh(%q)", o.Filter) }

// Apply implements Op.
func (o OpRefresh) Apply(h *Harness) error {
	err := h.Engine.OnFilterSubmitted(h.Ctx, o.Filter)
	if err != nil {
		return err
	}

	return h.CheckRefreshed(o.Filter)
}

// OpToggleDone toggles the done checkbox of a shown node.
type OpToggleDone struct{ Pick int }

func (o OpToggleDone) String() string { return fmt.Sprintf("done(#%d)", o.Pick) }

// Apply implements Op.
func (o OpToggleDone) Apply(h *Harness) error {
	id, ok := h.pick(o.Pick)
	if !ok {
		return nil
	}

	return h.Engine.OnDoneToggled(h.Ctx, id)
}

// OpToggleDeleted toggles the deleted checkbox of a shown node.
type OpToggleDeleted struct{ Pick int }

func (o OpToggleDeleted) String() string { return fmt.Sprintf("delete(#%d)", o.Pick) }

// Apply implements Op.
func (o OpToggleDeleted) Apply(h *Harness) error {
	id, ok := h.pick(o.Pick)
	if !ok {
		return nil
	}

	return h.Engine.OnDeletedToggled(h.Ctx, id)
}

// OpCreate creates a task below a shown node, or at the top level when
// Parent is negative.
type OpCreate struct {
	Parent      int
	Description string
}

func (o OpCreate) String() string { return fmt.Sprintf("create(#%d, %q)", o.Parent, o.Description) }

// Apply implements Op.
func (o OpCreate) Apply(h *Harness) error {
	var parent *uuid.UUID

	if o.Parent >= 0 {
		if pid, ok := h.pick(o.Parent); ok {
			parent = &pid
		}
	}

	id, err := h.Engine.OnChildCreated(h.Ctx, parent, o.Description)
	if err != nil {
		return err
	}

	if o.Description == "" {
		if id != uuid.Nil {
			return fmt.Errorf("empty description created %s", id)
		}

		return nil
	}

	node, ok := h.Engine.Handle(id)
	if !ok {
		return fmt.Errorf("created %s is not shown", id)
	}

	if parent == nil {
		return nil
	}

	pnode, _ := h.Engine.Handle(*parent)
	if got, ok := h.Engine.Tree().Parent(node); !ok || got != pnode {
		return fmt.Errorf("created %s is not below %s", id, *parent)
	}

	return nil
}

// OpDescribe edits the description of a shown node in place.
type OpDescribe struct {
	Pick        int
	Description string
}

func (o OpDescribe) String() string { return fmt.Sprintf("describe(#%d, %q)", o.Pick, o.Description) }

// Apply implements Op.
func (o OpDescribe) Apply(h *Harness) error {
	id, ok := h.pick(o.Pick)
	if !ok {
		return nil
	}

	node, _ := h.Engine.Handle(id)
	t := h.Engine.Tree()

	row, _ := t.Row(node)
	row.Description = o.Description

	err := t.Set(node, row)
	if err != nil {
		return err
	}

	return h.Engine.OnDescriptionEdited(h.Ctx, id, o.Description)
}

// OpMove drags a shown node below another, or to the top level when Parent
// is negative.
type OpMove struct {
	Pick   int
	Parent int
}

func (o OpMove) String() string { return fmt.Sprintf("move(#%d, #%d)", o.Pick, o.Parent) }

// Apply implements Op.
func (o OpMove) Apply(h *Harness) error {
	id, ok := h.pick(o.Pick)
	if !ok {
		return nil
	}

	node, _ := h.Engine.Handle(id)

	var parent *tree.Handle

	if o.Parent >= 0 {
		pid, _ := h.pick(o.Parent)
		pnode, _ := h.Engine.Handle(pid)
		parent = &pnode
	}

	err := h.Engine.Tree().Move(node, parent)
	if errors.Is(err, tree.ErrInvalidMove) {
		return nil
	}

	return err
}

// OpForget drops a shown task from the view.
type OpForget struct{ Pick int }

func (o OpForget) String() string { return fmt.Sprintf("forget(#%d)", o.Pick) }

// Apply implements Op.
func (o OpForget) Apply(h *Harness) error {
	id, ok := h.pick(o.Pick)
	if !ok {
		return nil
	}

	err := h.Engine.OnForget(h.Ctx, id)
	if err != nil {
		return err
	}

	if _, shown := h.Engine.Handle(id); shown {
		return fmt.Errorf("forgotten %s is still shown", id)
	}

	return nil
}
