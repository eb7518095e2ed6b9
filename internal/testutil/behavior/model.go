// Package behavior drives an engine with generated UI events and checks it
// against a model of what the tree must look like.
package behavior

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/calvinalkan/tasktree/internal/task"

	"github.com/google/uuid"
)

var errModelCycle = errors.New("model: part-of cycle")

// Forest maps every shown task to the task shown as its parent, uuid.Nil
// for top-level nodes. Sibling order is not part of the model.
type Forest map[uuid.UUID]uuid.UUID

// Expected computes the forest a full refresh with filter must produce over
// tasks. The filter is a case-insensitive description substring, matching
// testutil.MemStore.
func Expected(tasks []task.Task, filter string) (Forest, error) {
	byID := make(map[uuid.UUID]task.Task, len(tasks))
	for _, t := range tasks {
		byID[t.UUID] = t
	}

	filter = strings.ToLower(strings.TrimSpace(filter))
	forest := make(Forest)

	for _, t := range tasks {
		if !slices.Contains(task.ListableStatuses, t.Status) {
			continue
		}

		if filter != "" && !strings.Contains(strings.ToLower(t.Description), filter) {
			continue
		}

		err := addWithAncestors(forest, byID, t.UUID)
		if err != nil {
			return nil, err
		}
	}

	return forest, nil
}

func addWithAncestors(forest Forest, byID map[uuid.UUID]task.Task, id uuid.UUID) error {
	seen := make(map[uuid.UUID]bool)

	for {
		if _, ok := forest[id]; ok {
			return nil
		}

		if seen[id] {
			return fmt.Errorf("%w: through %s", errModelCycle, id)
		}

		seen[id] = true

		t, ok := byID[id]
		if !ok {
			return fmt.Errorf("model: %w: %s", task.ErrNotFound, id)
		}

		if !t.HasParent() {
			forest[id] = uuid.Nil

			return nil
		}

		forest[id] = t.Parent()
		id = t.Parent()
	}
}

// Diff describes how got differs from want, or returns "" if they are equal.
func Diff(want, got Forest) string {
	var lines []string

	for id, parent := range want {
		gp, ok := got[id]

		switch {
		case !ok:
			lines = append(lines, fmt.Sprintf("missing %s (parent %s)", id, parent))
		case gp != parent:
			lines = append(lines, fmt.Sprintf("%s: parent %s, want %s", id, gp, parent))
		}
	}

	for id := range got {
		if _, ok := want[id]; !ok {
			lines = append(lines, fmt.Sprintf("unexpected %s", id))
		}
	}

	slices.Sort(lines)

	return strings.Join(lines, "\n")
}
