package testutil

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/calvinalkan/tasktree/internal/task"

	"github.com/google/uuid"
)

// Store method names, as used by MemStore.Calls and MemStore.Fail.
const (
	MethodExportAll      = "ExportAll"
	MethodExportOne      = "ExportOne"
	MethodQueryIDs       = "QueryIDs"
	MethodCreate         = "Create"
	MethodDone           = "Done"
	MethodPending        = "Pending"
	MethodDelete         = "Delete"
	MethodSetParent      = "SetParent"
	MethodSetDescription = "SetDescription"
	MethodImport         = "Import"
)

// MemStore is an in-memory store.Store. It counts calls per method, can be
// told to fail a method, and runs an optional hook before every call.
//
// QueryIDs matches a non-empty filter as a case-insensitive substring of
// the description.
type MemStore struct {
	mu sync.Mutex

	tasks map[uuid.UUID]task.Task
	order []uuid.UUID
	clock *Clock

	calls map[string]int
	fail  map[string]error

	// Ack renders the creation acknowledgement. Defaults to
	// "Created task <uuid>.".
	Ack func(id uuid.UUID) string

	// Hook runs before every method, outside the store's lock.
	Hook func(method string)
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		tasks: make(map[uuid.UUID]task.Task),
		clock: NewClock(),
		calls: make(map[string]int),
		fail:  make(map[string]error),
	}
}

// Calls returns how often method was called.
func (m *MemStore) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls[method]
}

// ResetCalls zeroes all call counters.
func (m *MemStore) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = make(map[string]int)
}

// Fail makes every later call of method return err. A nil err clears it.
func (m *MemStore) Fail(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.fail, method)

		return
	}

	m.fail[method] = err
}

// Add stores a new pending task and returns it.
func (m *MemStore) Add(description string, parent *uuid.UUID) task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.addLocked(description, parent)
}

// Put stores t as-is, replacing a task with the same uuid.
func (m *MemStore) Put(t task.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.putLocked(t)
}

// Get returns a copy of the stored record of id.
func (m *MemStore) Get(id uuid.UUID) (task.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]

	return clone(t), ok
}

// Remove drops id from the store, as if another client purged it.
func (m *MemStore) Remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tasks, id)
	m.order = slices.DeleteFunc(m.order, func(o uuid.UUID) bool { return o == id })
}

// All returns copies of every record, in insertion order.
func (m *MemStore) All() []task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]task.Task, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, clone(m.tasks[id]))
	}

	return out
}

func (m *MemStore) addLocked(description string, parent *uuid.UUID) task.Task {
	now := task.NewDate(m.clock.Now())
	t := task.Task{
		UUID:        uuid.New(),
		Status:      task.StatusPending,
		Description: description,
		Entry:       now,
		Modified:    &now,
	}

	if parent != nil {
		p := *parent
		t.PartOf = &p
	}

	m.putLocked(t)

	return clone(t)
}

func (m *MemStore) putLocked(t task.Task) {
	if _, ok := m.tasks[t.UUID]; !ok {
		m.order = append(m.order, t.UUID)
	}

	m.tasks[t.UUID] = clone(t)
}

// enter counts the call, runs the hook and returns the injected failure.
func (m *MemStore) enter(method string) error {
	if m.Hook != nil {
		m.Hook(method)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[method]++

	if err := m.fail[method]; err != nil {
		return fmt.Errorf("%w: %s: %w", task.ErrStore, method, err)
	}

	return nil
}

// ExportAll implements store.Store.
func (m *MemStore) ExportAll(context.Context) ([]task.Task, error) {
	err := m.enter(MethodExportAll)
	if err != nil {
		return nil, err
	}

	return m.All(), nil
}

// ExportOne implements store.Store.
func (m *MemStore) ExportOne(_ context.Context, id uuid.UUID) ([]task.Task, error) {
	err := m.enter(MethodExportOne)
	if err != nil {
		return nil, err
	}

	t, ok := m.Get(id)
	if !ok {
		return nil, nil
	}

	return []task.Task{t}, nil
}

// QueryIDs implements store.Store.
func (m *MemStore) QueryIDs(_ context.Context, filter string, statuses []task.Status) ([]uuid.UUID, error) {
	err := m.enter(MethodQueryIDs)
	if err != nil {
		return nil, err
	}

	filter = strings.ToLower(strings.TrimSpace(filter))

	var ids []uuid.UUID

	for _, t := range m.All() {
		if len(statuses) > 0 && !slices.Contains(statuses, t.Status) {
			continue
		}

		if filter != "" && !strings.Contains(strings.ToLower(t.Description), filter) {
			continue
		}

		ids = append(ids, t.UUID)
	}

	return ids, nil
}

// Create implements store.Store.
func (m *MemStore) Create(_ context.Context, description string, parent *uuid.UUID) (string, error) {
	err := m.enter(MethodCreate)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	t := m.addLocked(description, parent)
	ack := m.Ack
	m.mu.Unlock()

	if ack != nil {
		return ack(t.UUID), nil
	}

	return fmt.Sprintf("Created task %s.\n", t.UUID), nil
}

// Done implements store.Store.
func (m *MemStore) Done(_ context.Context, id uuid.UUID) error {
	return m.modify(MethodDone, id, func(t *task.Task) { t.Status = task.StatusCompleted })
}

// Pending implements store.Store.
func (m *MemStore) Pending(_ context.Context, id uuid.UUID) error {
	return m.modify(MethodPending, id, func(t *task.Task) { t.Status = task.StatusPending })
}

// Delete implements store.Store.
func (m *MemStore) Delete(_ context.Context, id uuid.UUID) error {
	return m.modify(MethodDelete, id, func(t *task.Task) { t.Status = task.StatusDeleted })
}

// SetParent implements store.Store.
func (m *MemStore) SetParent(_ context.Context, id uuid.UUID, parent *uuid.UUID) error {
	return m.modify(MethodSetParent, id, func(t *task.Task) {
		t.PartOf = nil

		if parent != nil {
			p := *parent
			t.PartOf = &p
		}
	})
}

// SetDescription implements store.Store.
func (m *MemStore) SetDescription(_ context.Context, id uuid.UUID, description string) error {
	return m.modify(MethodSetDescription, id, func(t *task.Task) { t.Description = description })
}

// Import implements store.Store.
func (m *MemStore) Import(_ context.Context, tasks []task.Task) error {
	err := m.enter(MethodImport)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range tasks {
		m.putLocked(tasks[i])
	}

	return nil
}

func (m *MemStore) modify(method string, id uuid.UUID, fn func(t *task.Task)) error {
	err := m.enter(method)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s: %w: %s", task.ErrStore, method, task.ErrNotFound, id)
	}

	fn(&t)

	now := task.NewDate(m.clock.Now())
	t.Modified = &now
	m.tasks[id] = t

	return nil
}

func clone(t task.Task) task.Task {
	t.Tags = slices.Clone(t.Tags)
	t.Annotations = slices.Clone(t.Annotations)

	if t.PartOf != nil {
		p := *t.PartOf
		t.PartOf = &p
	}

	if t.Modified != nil {
		d := *t.Modified
		t.Modified = &d
	}

	if t.Due != nil {
		d := *t.Due
		t.Due = &d
	}

	if t.Wait != nil {
		d := *t.Wait
		t.Wait = &d
	}

	return t
}
