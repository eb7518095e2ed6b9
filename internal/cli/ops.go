package cli

import (
	"context"
	"fmt"

	"github.com/calvinalkan/tasktree/internal/tree"

	"github.com/google/uuid"
)

// The operations below are shared by the one-shot commands and the shell.
// Each takes id arguments as typed by the user.

func (s *session) toggleDone(ctx context.Context, arg string) error {
	id, err := s.reveal(ctx, arg)
	if err != nil {
		return err
	}

	return s.engine.OnDoneToggled(ctx, id)
}

func (s *session) toggleDeleted(ctx context.Context, arg string) error {
	id, err := s.reveal(ctx, arg)
	if err != nil {
		return err
	}

	return s.engine.OnDeletedToggled(ctx, id)
}

// add creates a task below parentArg, or a top-level task if parentArg is
// empty.
func (s *session) add(ctx context.Context, parentArg, description string) (uuid.UUID, error) {
	var parent *uuid.UUID

	if parentArg != "" {
		pid, err := s.reveal(ctx, parentArg)
		if err != nil {
			return uuid.Nil, err
		}

		parent = &pid
	}

	return s.engine.OnChildCreated(ctx, parent, description)
}

// describe writes the new text into the node, as an inline editor would,
// then stores it. The node is rebuilt by the next RunPending.
func (s *session) describe(ctx context.Context, arg, description string) error {
	id, err := s.reveal(ctx, arg)
	if err != nil {
		return err
	}

	h, ok := s.engine.Handle(id)
	if !ok {
		return fmt.Errorf("%w: %s", errNotShown, id)
	}

	t := s.engine.Tree()

	row, _ := t.Row(h)
	row.Description = description

	err = t.Set(h, row)
	if err != nil {
		return err
	}

	return s.engine.OnDescriptionEdited(ctx, id, description)
}

// move drags the node of arg below the node of parentArg, or to the top
// level if parentArg is empty. The engine picks the change up from the
// tree notification.
func (s *session) move(ctx context.Context, arg, parentArg string) error {
	id, err := s.reveal(ctx, arg)
	if err != nil {
		return err
	}

	var parent *tree.Handle

	if parentArg != "" {
		pid, revealErr := s.reveal(ctx, parentArg)
		if revealErr != nil {
			return revealErr
		}

		ph, ok := s.engine.Handle(pid)
		if !ok {
			return fmt.Errorf("%w: %s", errNotShown, pid)
		}

		parent = &ph
	}

	h, ok := s.engine.Handle(id)
	if !ok {
		return fmt.Errorf("%w: %s", errNotShown, id)
	}

	return s.engine.Tree().Move(h, parent)
}

func (s *session) forget(ctx context.Context, arg string) error {
	id, err := s.engine.Resolve(arg)
	if err != nil {
		return err
	}

	return s.engine.OnForget(ctx, id)
}
