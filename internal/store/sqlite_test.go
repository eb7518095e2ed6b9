package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/calvinalkan/tasktree/internal/cache"
	"github.com/calvinalkan/tasktree/internal/store"
	"github.com/calvinalkan/tasktree/internal/task"
	"github.com/calvinalkan/tasktree/internal/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *store.SQLite {
	t.Helper()

	clock := testutil.NewClock()

	s, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "db", "tasks.db"), store.SQLiteOptions{Now: clock.Now})
	require.NoError(t, err, "OpenSQLite")

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func create(t *testing.T, s *store.SQLite, description string, parent *uuid.UUID) uuid.UUID {
	t.Helper()

	ack, err := s.Create(context.Background(), description, parent)
	require.NoError(t, err, "Create")

	id, err := cache.ParseCreatedID(ack)
	require.NoError(t, err, "ack %q", ack)

	return id
}

func Test_SQLite_Create_Acknowledges_Like_Taskwarrior_When_Task_Is_Added(t *testing.T) {
	t.Parallel()

	s := openSQLite(t)
	ctx := context.Background()

	root := create(t, s, "plan trip", nil)
	child := create(t, s, "book hotel", &root)

	tasks, err := s.ExportOne(ctx, child)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	got := tasks[0]
	if got.Status != task.StatusPending || got.Description != "book hotel" {
		t.Errorf("record=%+v, want pending 'book hotel'", got)
	}

	if !got.HasParent() || got.Parent() != root {
		t.Errorf("partof=%v, want=%v", got.PartOf, root)
	}

	if got.Modified == nil || got.Entry.IsZero() {
		t.Errorf("entry=%v modified=%v, want both set", got.Entry, got.Modified)
	}

	missing, err := s.ExportOne(ctx, uuid.New())
	require.NoError(t, err)
	require.Empty(t, missing, "unknown id exports nothing")
}

func Test_SQLite_Modifications_Change_Status_Parent_And_Description(t *testing.T) {
	t.Parallel()

	s := openSQLite(t)
	ctx := context.Background()

	a := create(t, s, "a", nil)
	b := create(t, s, "b", nil)

	require.NoError(t, s.Done(ctx, a))
	require.NoError(t, s.SetParent(ctx, b, &a))
	require.NoError(t, s.SetDescription(ctx, b, "b, renamed"))

	all, err := s.ExportAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	if got, want := all[0].Status, task.StatusCompleted; got != want {
		t.Errorf("a status=%s, want=%s", got, want)
	}

	if got, want := all[1].Description, "b, renamed"; got != want {
		t.Errorf("b description=%q, want=%q", got, want)
	}

	if got := all[1].Parent(); got != a {
		t.Errorf("b parent=%v, want=%v", got, a)
	}

	require.NoError(t, s.Pending(ctx, a))
	require.NoError(t, s.Delete(ctx, b))
	require.NoError(t, s.SetParent(ctx, b, nil))

	all, err = s.ExportAll(ctx)
	require.NoError(t, err)

	if got, want := all[0].Status, task.StatusPending; got != want {
		t.Errorf("a status=%s, want=%s", got, want)
	}

	if all[1].Status != task.StatusDeleted || all[1].HasParent() {
		t.Errorf("b=%+v, want deleted root", all[1])
	}
}

func Test_SQLite_Modify_Fails_When_Task_Is_Unknown(t *testing.T) {
	t.Parallel()

	s := openSQLite(t)
	ctx := context.Background()

	for name, err := range map[string]error{
		"done":        s.Done(ctx, idA),
		"pending":     s.Pending(ctx, idA),
		"delete":      s.Delete(ctx, idA),
		"set parent":  s.SetParent(ctx, idA, nil),
		"description": s.SetDescription(ctx, idA, "x"),
	} {
		if !errors.Is(err, task.ErrStore) || !errors.Is(err, task.ErrNotFound) {
			t.Errorf("%s: err=%v, want ErrStore and ErrNotFound", name, err)
		}
	}

	_, err := s.Create(ctx, "   ", nil)
	if !errors.Is(err, task.ErrStore) {
		t.Errorf("Create(blank) err=%v, want %v", err, task.ErrStore)
	}
}

func Test_SQLite_QueryIDs_Applies_Filter_And_Statuses(t *testing.T) {
	t.Parallel()

	s := openSQLite(t)
	ctx := context.Background()

	entry := task.NewDate(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	ids := make([]uuid.UUID, 5)

	for i := range ids {
		ids[i] = uuid.New()
	}

	err := s.Import(ctx, []task.Task{
		{UUID: ids[0], Status: task.StatusPending, Description: "Paint fence", Entry: entry, Project: "home", Tags: []string{"next"}},
		{UUID: ids[1], Status: task.StatusWaiting, Description: "Paint door", Entry: entry, Project: "home"},
		{UUID: ids[2], Status: task.StatusCompleted, Description: "Paint shed", Entry: entry, Project: "home", Tags: []string{"next"}},
		{UUID: ids[3], Status: task.StatusRecurring, Description: "Water plants", Entry: entry, Tags: []string{"next", "daily"}},
		{UUID: ids[4], Status: task.StatusDeleted, Description: "Old idea", Entry: entry},
	})
	require.NoError(t, err, "Import")

	tests := []struct {
		filter string
		want   []uuid.UUID
	}{
		{"", []uuid.UUID{ids[0], ids[1], ids[3]}},
		{"paint", []uuid.UUID{ids[0], ids[1]}},
		{"project:home", []uuid.UUID{ids[0], ids[1]}},
		{"+next", []uuid.UUID{ids[0], ids[3]}},
		{"+next -daily", []uuid.UUID{ids[0]}},
		{"project:home fence", []uuid.UUID{ids[0]}},
		{"nothing", nil},
	}

	for _, tc := range tests {
		got, err := s.QueryIDs(ctx, tc.filter, task.ListableStatuses)
		require.NoError(t, err, "QueryIDs(%q)", tc.filter)

		sortIDs(got)
		sortIDs(tc.want)

		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("QueryIDs(%q) mismatch (-want +got):\n%s", tc.filter, diff)
		}
	}
}

func Test_SQLite_Import_Replaces_Records_And_Keeps_Tags_In_Order(t *testing.T) {
	t.Parallel()

	s := openSQLite(t)
	ctx := context.Background()

	due := task.NewDate(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	original := task.Task{
		UUID:        idA,
		Status:      task.StatusPending,
		Description: "first",
		Entry:       task.NewDate(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)),
		Due:         &due,
		Tags:        []string{"z", "a", "m"},
		Annotations: []task.Annotation{{Entry: due, Description: "note"}},
	}

	require.NoError(t, s.Import(ctx, []task.Task{original}))

	got, err := s.ExportOne(ctx, idA)
	require.NoError(t, err)
	require.Len(t, got, 1)

	if diff := cmp.Diff(original, got[0]); diff != "" {
		t.Errorf("export mismatch (-want +got):\n%s", diff)
	}

	replaced := original
	replaced.Description = "second"
	replaced.Tags = []string{"only"}
	replaced.PartOf = &idB

	require.NoError(t, s.Import(ctx, []task.Task{replaced}))

	all, err := s.ExportAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "import replaces by uuid")

	if diff := cmp.Diff(replaced, all[0]); diff != "" {
		t.Errorf("export after replace mismatch (-want +got):\n%s", diff)
	}
}

func Test_SQLite_Reopens_Existing_Database(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tasks.db")

	s, err := store.OpenSQLite(ctx, path, store.SQLiteOptions{})
	require.NoError(t, err)

	_, err = s.Create(ctx, "survives", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = store.OpenSQLite(ctx, path, store.SQLiteOptions{})
	require.NoError(t, err)

	defer func() { _ = s.Close() }()

	all, err := s.ExportAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "survives", all[0].Description)
}

func Test_ParseFilter_Splits_Terms(t *testing.T) {
	t.Parallel()

	got := store.ParseFilter("project:home +next -later paint  Fence project:")
	want := store.Filter{
		Project:     "home",
		WithTags:    []string{"next"},
		WithoutTags: []string{"later"},
		Words:       []string{"paint", "Fence", "project:"},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseFilter mismatch (-want +got):\n%s", diff)
	}
}

func sortIDs(ids []uuid.UUID) {
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })
}
