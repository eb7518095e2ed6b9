package tree_test

import (
	"errors"
	"testing"

	"github.com/calvinalkan/tasktree/internal/tree"

	"github.com/google/go-cmp/cmp"
)

func row(id string) tree.Row {
	return tree.Row{ID: id, Description: "task " + id}
}

func mustInsert(t *testing.T, s *tree.Store, parent *tree.Handle, id string) tree.Handle {
	t.Helper()

	h, err := s.Insert(parent, row(id))
	if err != nil {
		t.Fatalf("Insert(%s): %v", id, err)
	}

	return h
}

// ids lists the id column of every node in pre-order, with depth markers.
func ids(s *tree.Store) []string {
	var out []string

	s.Walk(func(_ tree.Handle, depth int, r tree.Row) {
		prefix := ""
		for range depth {
			prefix += "."
		}

		out = append(out, prefix+r.ID)
	})

	return out
}

func Test_Insert_Appends_Below_Parent_In_Order(t *testing.T) {
	t.Parallel()

	s := tree.New()

	a := mustInsert(t, s, nil, "a")
	mustInsert(t, s, &a, "a1")
	b := mustInsert(t, s, nil, "b")
	mustInsert(t, s, &a, "a2")
	mustInsert(t, s, &b, "b1")

	if diff := cmp.Diff([]string{"a", ".a1", ".a2", "b", ".b1"}, ids(s)); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}

	if got, want := s.Len(), 5; got != want {
		t.Errorf("Len=%d, want=%d", got, want)
	}

	if got, want := len(s.Roots()), 2; got != want {
		t.Errorf("roots=%d, want=%d", got, want)
	}

	if p, ok := s.Parent(s.Children(a)[1]); !ok || p != a {
		t.Errorf("Parent(a2)=%v,%v; want %v", p, ok, a)
	}

	if _, ok := s.Parent(a); ok {
		t.Error("root has a parent")
	}
}

func Test_Insert_Fails_When_Parent_Is_Gone(t *testing.T) {
	t.Parallel()

	s := tree.New()
	a := mustInsert(t, s, nil, "a")

	if err := s.Remove(a); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	_, err := s.Insert(&a, row("x"))
	if !errors.Is(err, tree.ErrInvalidHandle) {
		t.Errorf("Insert err=%v, want %v", err, tree.ErrInvalidHandle)
	}

	if s.Valid(a) {
		t.Error("removed handle still valid")
	}
}

func Test_Remove_Drops_Whole_Subtree(t *testing.T) {
	t.Parallel()

	s := tree.New()
	a := mustInsert(t, s, nil, "a")
	a1 := mustInsert(t, s, &a, "a1")
	a11 := mustInsert(t, s, &a1, "a11")
	mustInsert(t, s, nil, "b")

	if err := s.Remove(a1); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if s.Valid(a11) {
		t.Error("descendant handle still valid")
	}

	if diff := cmp.Diff([]string{"a", "b"}, ids(s)); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}

	if err := s.Remove(a1); !errors.Is(err, tree.ErrInvalidHandle) {
		t.Errorf("second Remove err=%v, want %v", err, tree.ErrInvalidHandle)
	}
}

func Test_Move_Relinks_Subtree_And_Keeps_Handles(t *testing.T) {
	t.Parallel()

	s := tree.New()
	a := mustInsert(t, s, nil, "a")
	a1 := mustInsert(t, s, &a, "a1")
	a11 := mustInsert(t, s, &a1, "a11")
	b := mustInsert(t, s, nil, "b")

	if err := s.Move(a1, &b); err != nil {
		t.Fatalf("Move: %v", err)
	}

	if diff := cmp.Diff([]string{"a", "b", ".a1", "..a11"}, ids(s)); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}

	if !s.Valid(a11) {
		t.Error("moved descendant handle invalid")
	}

	if err := s.Move(a1, nil); err != nil {
		t.Fatalf("Move to root: %v", err)
	}

	if diff := cmp.Diff([]string{"a", "b", "a1", ".a11"}, ids(s)); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func Test_Move_Fails_When_Target_Is_Inside_Node(t *testing.T) {
	t.Parallel()

	s := tree.New()
	a := mustInsert(t, s, nil, "a")
	a1 := mustInsert(t, s, &a, "a1")

	for _, target := range []tree.Handle{a, a1} {
		err := s.Move(a, &target)
		if !errors.Is(err, tree.ErrInvalidMove) {
			t.Errorf("Move(a, %v) err=%v, want %v", target, err, tree.ErrInvalidMove)
		}
	}

	if diff := cmp.Diff([]string{"a", ".a1"}, ids(s)); diff != "" {
		t.Errorf("tree changed by rejected move (-want +got):\n%s", diff)
	}
}

func Test_Observers_Fire_After_Insert_Set_And_Move_Only(t *testing.T) {
	t.Parallel()

	s := tree.New()

	var seen []tree.Handle

	s.OnRowChanged(func(h tree.Handle) {
		// The change is already visible to the observer.
		if !s.Valid(h) {
			t.Errorf("notified about invalid %v", h)
		}

		seen = append(seen, h)
	})

	a := mustInsert(t, s, nil, "a")
	b := mustInsert(t, s, nil, "b")

	if err := s.Set(a, row("a2")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := s.Move(b, &a); err != nil {
		t.Fatalf("Move: %v", err)
	}

	if err := s.Remove(b); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	s.Clear()

	if diff := cmp.Diff([]tree.Handle{a, b, a, b}, seen, cmp.Comparer(func(x, y tree.Handle) bool { return x == y })); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func Test_Clear_Invalidates_Handles(t *testing.T) {
	t.Parallel()

	s := tree.New()
	a := mustInsert(t, s, nil, "a")

	s.Clear()

	if s.Valid(a) || s.Len() != 0 || len(s.Roots()) != 0 {
		t.Errorf("after Clear: valid=%v len=%d roots=%d", s.Valid(a), s.Len(), len(s.Roots()))
	}

	b := mustInsert(t, s, nil, "b")
	if b == a {
		t.Error("handle reused after Clear")
	}

	if !a.Before(b) {
		t.Errorf("%v should be before %v", a, b)
	}

	if _, ok := s.Row(a); ok {
		t.Error("Row of cleared handle")
	}
}

func Test_Subtree_Lists_Node_Then_Descendants(t *testing.T) {
	t.Parallel()

	s := tree.New()
	a := mustInsert(t, s, nil, "a")
	a1 := mustInsert(t, s, &a, "a1")
	a2 := mustInsert(t, s, &a, "a2")
	a11 := mustInsert(t, s, &a1, "a11")

	want := []tree.Handle{a, a1, a11, a2}
	if diff := cmp.Diff(want, s.Subtree(a), cmp.Comparer(func(x, y tree.Handle) bool { return x == y })); diff != "" {
		t.Errorf("Subtree mismatch (-want +got):\n%s", diff)
	}

	if got := s.Subtree(tree.Handle{}); got != nil {
		t.Errorf("Subtree(zero)=%v, want nil", got)
	}
}
