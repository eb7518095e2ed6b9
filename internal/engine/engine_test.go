package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/calvinalkan/tasktree/internal/engine"
	"github.com/calvinalkan/tasktree/internal/task"
	"github.com/calvinalkan/tasktree/internal/testutil"
	"github.com/calvinalkan/tasktree/internal/tree"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx      context.Context //nolint:containedctx // test fixture
	store    *testutil.MemStore
	engine   *engine.Engine
	reported []error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{ctx: context.Background(), store: testutil.NewMemStore()}

	e, err := engine.New(f.ctx, f.store, engine.Options{
		Report: func(err error) { f.reported = append(f.reported, err) },
	})
	require.NoError(t, err, "engine.New")

	f.engine = e

	return f
}

func (f *fixture) refresh(t *testing.T, filter string) {
	t.Helper()

	require.NoError(t, f.engine.OnFilterSubmitted(f.ctx, filter), "refresh")
}

func (f *fixture) row(t *testing.T, id uuid.UUID) tree.Row {
	t.Helper()

	h, ok := f.engine.Handle(id)
	require.True(t, ok, "%s not shown", id)

	r, ok := f.engine.Tree().Row(h)
	require.True(t, ok)

	return r
}

func Test_New_Rejects_Missing_Dependencies(t *testing.T) {
	t.Parallel()

	report := func(error) {}
	s := testutil.NewMemStore()

	//nolint:staticcheck // nil context on purpose
	_, err := engine.New(nil, s, engine.Options{Report: report})
	require.Error(t, err)

	_, err = engine.New(context.Background(), nil, engine.Options{Report: report})
	require.Error(t, err)

	_, err = engine.New(context.Background(), s, engine.Options{})
	require.Error(t, err)
}

func Test_OnDoneToggled_Completes_Pending_Task_And_Rebuilds_Node(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tk := f.store.Add("T", nil)
	f.refresh(t, "")

	old, _ := f.engine.Handle(tk.UUID)

	require.NoError(t, f.engine.OnDoneToggled(f.ctx, tk.UUID))

	require.Equal(t, 1, f.store.Calls(testutil.MethodDone))

	r := f.row(t, tk.UUID)
	require.Equal(t, "COMPLETED", r.Status)
	require.True(t, r.Completed)

	h, _ := f.engine.Handle(tk.UUID)
	require.NotEqual(t, old, h, "node was not rebuilt")

	// And back.
	require.NoError(t, f.engine.OnDoneToggled(f.ctx, tk.UUID))
	require.Equal(t, 1, f.store.Calls(testutil.MethodPending))
	require.Equal(t, "PENDING", f.row(t, tk.UUID).Status)
	require.NoError(t, f.engine.Check())
}

func Test_OnDoneToggled_Leaves_Deleted_Task_Status_Alone(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	parent := f.store.Add("parent", nil)
	child := f.store.Add("child", &parent.UUID)
	require.NoError(t, f.store.Delete(f.ctx, child.UUID))

	f.refresh(t, "")
	_, err := f.engine.Reveal(f.ctx, child.UUID)
	require.NoError(t, err)

	f.store.ResetCalls()

	require.NoError(t, f.engine.OnDoneToggled(f.ctx, child.UUID))

	for _, m := range []string{testutil.MethodDone, testutil.MethodPending, testutil.MethodDelete} {
		require.Zero(t, f.store.Calls(m), m)
	}

	require.Equal(t, 1, f.store.Calls(testutil.MethodExportOne), "node is still refreshed")
	require.Equal(t, "DELETED", f.row(t, child.UUID).Status)
}

func Test_OnDoneToggled_Fails_With_Desync_When_Task_Is_Not_Shown(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	shown := f.store.Add("listed", nil)
	hidden := f.store.Add("hidden", nil)
	f.refresh(t, "listed")

	_, ok := f.engine.Handle(shown.UUID)
	require.True(t, ok)

	err := f.engine.OnDoneToggled(f.ctx, hidden.UUID)
	require.ErrorIs(t, err, task.ErrDesync)
}

func Test_OnDeletedToggled_Deletes_And_Restores(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tk := f.store.Add("T", nil)
	f.refresh(t, "")

	require.NoError(t, f.engine.OnDeletedToggled(f.ctx, tk.UUID))
	require.Equal(t, 1, f.store.Calls(testutil.MethodDelete))
	require.True(t, f.row(t, tk.UUID).Deleted)

	require.NoError(t, f.engine.OnDeletedToggled(f.ctx, tk.UUID))
	require.Equal(t, 1, f.store.Calls(testutil.MethodPending))
	require.False(t, f.row(t, tk.UUID).Deleted)
}

func Test_Toggle_Fails_When_Store_Rejects_Mutation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tk := f.store.Add("T", nil)
	f.refresh(t, "")

	h, _ := f.engine.Handle(tk.UUID)

	f.store.Fail(testutil.MethodDone, errors.New("locked"))

	err := f.engine.OnDoneToggled(f.ctx, tk.UUID)
	require.ErrorIs(t, err, task.ErrStore)

	got, _ := f.engine.Handle(tk.UUID)
	require.Equal(t, h, got, "node must stay as it was")
	require.Equal(t, "PENDING", f.row(t, tk.UUID).Status)
}

func Test_Handlers_Are_Noops_When_Called_From_Inside_Another_Handler(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.store.Add("a", nil)
	b := f.store.Add("b", nil)
	f.refresh(t, "")

	var nested, busy []error

	f.store.Hook = func(method string) {
		if method != testutil.MethodDone {
			return
		}

		nested = append(nested,
			f.engine.OnDeletedToggled(f.ctx, b.UUID),
			f.engine.OnFilterSubmitted(f.ctx, "zzz"),
			f.engine.OnDescriptionEdited(f.ctx, b.UUID, "edited"),
			f.engine.OnForget(f.ctx, b.UUID),
		)

		_, err := f.engine.OnChildCreated(f.ctx, nil, "nested")
		nested = append(nested, err)

		_, err = f.engine.Task(b.UUID)
		busy = append(busy, err)

		_, err = f.engine.Resolve(b.UUID.String()[:8])
		busy = append(busy, err)

		busy = append(busy, f.engine.Check())
	}

	require.NoError(t, f.engine.OnDoneToggled(f.ctx, a.UUID))

	for i, err := range nested {
		require.NoError(t, err, "nested call %d", i)
	}

	require.Len(t, busy, 3)

	for i, err := range busy {
		require.ErrorIs(t, err, engine.ErrBusy, "nested accessor %d", i)
	}

	for _, m := range []string{testutil.MethodDelete, testutil.MethodSetDescription, testutil.MethodCreate} {
		require.Zero(t, f.store.Calls(m), m)
	}

	require.Equal(t, 1, f.store.Calls(testutil.MethodExportAll), "nested refresh ran")
	require.Zero(t, f.engine.Pending())

	_, ok := f.engine.Handle(b.UUID)
	require.True(t, ok, "nested forget ran")
}

func Test_Insert_Notifications_Do_Not_Reach_Store(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.store.Add("a", nil)
	f.store.Add("b", &a.UUID)

	f.refresh(t, "")

	_, err := f.engine.OnChildCreated(f.ctx, &a.UUID, "c")
	require.NoError(t, err)

	require.Zero(t, f.store.Calls(testutil.MethodSetParent))
	require.Empty(t, f.reported)
}

func Test_OnChildCreated_Shows_New_Task_Below_Parent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	x := f.store.Add("x", nil)
	f.refresh(t, "")

	id, err := f.engine.OnChildCreated(f.ctx, &x.UUID, "buy milk")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	h, ok := f.engine.Handle(id)
	require.True(t, ok)

	hx, _ := f.engine.Handle(x.UUID)
	p, _ := f.engine.Tree().Parent(h)
	require.Equal(t, hx, p)

	got, err := f.engine.Task(id)
	require.NoError(t, err)
	require.Equal(t, "buy milk", got.Description)
	require.Equal(t, x.UUID, got.Parent())
}

func Test_OnChildCreated_Ignores_Empty_Description(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.refresh(t, "")

	id, err := f.engine.OnChildCreated(f.ctx, nil, "")
	require.NoError(t, err)
	require.Equal(t, uuid.Nil, id)
	require.Zero(t, f.store.Calls(testutil.MethodCreate))
}

func Test_OnChildCreated_Fails_When_Ack_Lacks_UUID(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.store.Ack = func(uuid.UUID) string { return "Created task 3." }
	f.refresh(t, "")

	_, err := f.engine.OnChildCreated(f.ctx, nil, "x")
	require.ErrorIs(t, err, task.ErrCreationFailed)
	require.Zero(t, f.engine.Tree().Len())
}

func Test_OnDescriptionEdited_Defers_Node_Rebuild(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tk := f.store.Add("old", nil)
	f.refresh(t, "")

	h, _ := f.engine.Handle(tk.UUID)
	tr := f.engine.Tree()

	r, _ := tr.Row(h)
	r.Description = "new"
	require.NoError(t, tr.Set(h, r))

	require.NoError(t, f.engine.OnDescriptionEdited(f.ctx, tk.UUID, "new"))

	stored, _ := f.store.Get(tk.UUID)
	require.Equal(t, "new", stored.Description)

	require.Equal(t, 1, f.engine.Pending())
	require.True(t, tr.Valid(h), "the edited node must survive until the deferred update")

	require.NoError(t, f.engine.RunPending(f.ctx))
	require.Zero(t, f.engine.Pending())
	require.False(t, tr.Valid(h))
	require.Equal(t, "new", f.row(t, tk.UUID).Description)

	cached, _ := f.engine.Task(tk.UUID)
	require.Equal(t, "new", cached.Description)
	require.Empty(t, f.reported)
}

func Test_OnDescriptionEdited_Restores_Stored_Text_When_Store_Rejects_Edit(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tk := f.store.Add("original", nil)
	f.refresh(t, "")

	h, _ := f.engine.Handle(tk.UUID)
	tr := f.engine.Tree()

	r, _ := tr.Row(h)
	r.Description = "edited"
	require.NoError(t, tr.Set(h, r))

	f.store.Fail(testutil.MethodSetDescription, errors.New("read-only"))

	err := f.engine.OnDescriptionEdited(f.ctx, tk.UUID, "edited")
	require.ErrorIs(t, err, task.ErrStore)
	require.Equal(t, 1, f.engine.Pending(), "the rebuild is queued despite the failure")

	require.NoError(t, f.engine.RunPending(f.ctx))

	if got, want := f.row(t, tk.UUID).Description, "original"; got != want {
		t.Fatalf("row description=%q, want=%q", got, want)
	}

	cached, _ := f.engine.Task(tk.UUID)
	require.Equal(t, "original", cached.Description)
	require.NoError(t, f.engine.Check())
}

func Test_RunPending_Runs_All_And_Joins_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.store.Add("a", nil)
	b := f.store.Add("b", nil)
	f.refresh(t, "")

	require.NoError(t, f.engine.OnDescriptionEdited(f.ctx, a.UUID, "a2"))
	require.NoError(t, f.engine.OnDescriptionEdited(f.ctx, b.UUID, "b2"))

	f.store.Remove(a.UUID)

	err := f.engine.RunPending(f.ctx)
	require.ErrorIs(t, err, task.ErrNotFound)
	require.Equal(t, "b2", f.row(t, b.UUID).Description, "later operations still run")
}

func Test_Tree_Move_Reparents_Through_Notification(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.store.Add("a", nil)
	b := f.store.Add("b", nil)
	f.refresh(t, "")

	ha, _ := f.engine.Handle(a.UUID)
	hb, _ := f.engine.Handle(b.UUID)

	require.NoError(t, f.engine.Tree().Move(hb, &ha))
	require.Empty(t, f.reported)
	require.Equal(t, 1, f.store.Calls(testutil.MethodSetParent))

	stored, _ := f.store.Get(b.UUID)
	require.Equal(t, a.UUID, stored.Parent())

	got, _ := f.engine.Handle(b.UUID)
	require.Equal(t, hb, got)
	require.NoError(t, f.engine.Check())

	// A row edit that keeps the parent costs nothing.
	f.store.ResetCalls()

	r, _ := f.engine.Tree().Row(hb)
	require.NoError(t, f.engine.Tree().Set(hb, r))
	require.Zero(t, f.store.Calls(testutil.MethodSetParent))
	require.Zero(t, f.store.Calls(testutil.MethodExportOne))
}

func Test_Tree_Move_Reports_Store_Failure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.store.Add("a", nil)
	b := f.store.Add("b", nil)
	f.refresh(t, "")

	f.store.Fail(testutil.MethodSetParent, errors.New("read-only"))

	ha, _ := f.engine.Handle(a.UUID)
	hb, _ := f.engine.Handle(b.UUID)

	require.NoError(t, f.engine.Tree().Move(hb, &ha))
	require.Len(t, f.reported, 1)
	require.ErrorIs(t, f.reported[0], task.ErrStore)

	// The tree now disagrees with the cache until the next refresh.
	require.ErrorIs(t, f.engine.Check(), task.ErrDesync)

	f.store.Fail(testutil.MethodSetParent, nil)
	f.refresh(t, "")
	require.NoError(t, f.engine.Check())
}

func Test_Resolve_Matches_Unambiguous_Prefix(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	ids := []uuid.UUID{
		uuid.MustParse("aaaa1111-0000-4000-8000-000000000001"),
		uuid.MustParse("aaaa2222-0000-4000-8000-000000000002"),
		uuid.MustParse("bbbb0000-0000-4000-8000-000000000003"),
	}

	for _, id := range ids {
		f.store.Put(task.Task{UUID: id, Status: task.StatusPending, Description: id.String()[:4]})
	}

	f.refresh(t, "")

	got, err := f.engine.Resolve("AAAA1")
	require.NoError(t, err)
	require.Equal(t, ids[0], got)

	got, err = f.engine.Resolve("b")
	require.NoError(t, err)
	require.Equal(t, ids[2], got)

	_, err = f.engine.Resolve("aaaa")
	require.ErrorIs(t, err, engine.ErrAmbiguousID)

	_, err = f.engine.Resolve("cc")
	require.ErrorIs(t, err, task.ErrNotFound)

	_, err = f.engine.Resolve(" ")
	require.ErrorIs(t, err, task.ErrNotFound)

	full := uuid.New()
	got, err = f.engine.Resolve(full.String())
	require.NoError(t, err)
	require.Equal(t, full, got, "full ids resolve without a cache entry")
}

func Test_Reveal_Shows_Task_Outside_Filter(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	done := f.store.Add("done", nil)
	require.NoError(t, f.store.Done(f.ctx, done.UUID))

	f.refresh(t, "")

	_, ok := f.engine.Handle(done.UUID)
	require.False(t, ok)

	_, err := f.engine.Reveal(f.ctx, done.UUID)
	require.NoError(t, err)

	require.NoError(t, f.engine.OnDoneToggled(f.ctx, done.UUID))
	require.Equal(t, "PENDING", f.row(t, done.UUID).Status)
	require.Equal(t, "", f.engine.Filter())
}

func Test_OnForget_Hides_Task_Until_Next_Refresh(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.store.Add("a", nil)
	f.refresh(t, "")

	require.NoError(t, f.engine.OnForget(f.ctx, a.UUID))

	_, ok := f.engine.Handle(a.UUID)
	require.False(t, ok)

	_, err := f.engine.Task(a.UUID)
	require.ErrorIs(t, err, task.ErrNotFound)

	f.refresh(t, "")

	_, ok = f.engine.Handle(a.UUID)
	require.True(t, ok)
}
