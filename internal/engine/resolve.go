package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/calvinalkan/tasktree/internal/reconcile"
	"github.com/calvinalkan/tasktree/internal/task"

	"github.com/google/uuid"
)

var (
	// ErrAmbiguousID is returned by Resolve when a prefix matches several tasks.
	ErrAmbiguousID = errors.New("ambiguous task id")

	// ErrBusy is returned by accessors called while a handler holds the engine.
	ErrBusy = errors.New("engine busy")
)

func resolve(rec *reconcile.Reconciler, prefix string) (uuid.UUID, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return uuid.Nil, fmt.Errorf("%w: empty id", task.ErrNotFound)
	}

	if id, err := uuid.Parse(prefix); err == nil {
		return id, nil
	}

	var matches []uuid.UUID

	for _, id := range rec.Cache().IDs() {
		if strings.HasPrefix(id.String(), prefix) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return uuid.Nil, fmt.Errorf("%w: %s", task.ErrNotFound, prefix)
	case 1:
		return matches[0], nil
	default:
		return uuid.Nil, fmt.Errorf("%w: %s matches %d tasks", ErrAmbiguousID, prefix, len(matches))
	}
}
