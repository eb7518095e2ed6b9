// Package tree is the display model of tasktree: an ordered forest of rows
// addressed by opaque handles.
//
// Column 0 of every row ([Row.ID]) holds the canonical text form of the
// task uuid the row represents. Code that needs the id of a node parses it
// back out of that column.
//
// Observers registered with [Store.OnRowChanged] are called synchronously
// after Insert, Set and Move, whoever the caller is.
package tree

import (
	"errors"
	"fmt"
	"slices"
)

// Errors returned by Store methods.
var (
	ErrInvalidHandle = errors.New("invalid tree handle")
	ErrInvalidMove   = errors.New("cannot move a node below itself")
)

// Handle refers to one node. The zero Handle never refers to a node.
// Handles stay valid until their node (or an ancestor) is removed.
type Handle struct {
	id uint64
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool { return h.id == 0 }

// Before reports whether h was created before other.
func (h Handle) Before(other Handle) bool { return h.id < other.id }

// String implements fmt.Stringer.
func (h Handle) String() string { return fmt.Sprintf("node#%d", h.id) }

// Row is the set of columns displayed for one task.
type Row struct {
	ID          string // canonical uuid text
	Description string
	Status      string // upper-case status label
	Completed   bool
	Deleted     bool
	Tags        string // tags joined with ", "
	Project     string
	Due         string
	Wait        string
}

type node struct {
	handle   Handle
	row      Row
	parent   *node
	children []*node
}

// Store holds the forest.
type Store struct {
	nodes     map[uint64]*node
	roots     []*node
	next      uint64
	observers []func(Handle)
}

// New returns an empty Store.
func New() *Store {
	return &Store{nodes: make(map[uint64]*node)}
}

// OnRowChanged registers fn to be called after a row is inserted, set or
// moved.
func (s *Store) OnRowChanged(fn func(Handle)) {
	s.observers = append(s.observers, fn)
}

func (s *Store) notify(h Handle) {
	for _, fn := range s.observers {
		fn(h)
	}
}

func (s *Store) lookup(h Handle) (*node, error) {
	n, ok := s.nodes[h.id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}

	return n, nil
}

// Valid reports whether h refers to a node in s.
func (s *Store) Valid(h Handle) bool {
	_, ok := s.nodes[h.id]

	return ok
}

// Len returns the number of nodes.
func (s *Store) Len() int {
	return len(s.nodes)
}

// Insert appends a node with row as the last child of parent, or as the last
// root when parent is nil.
func (s *Store) Insert(parent *Handle, row Row) (Handle, error) {
	var p *node

	if parent != nil {
		var err error

		p, err = s.lookup(*parent)
		if err != nil {
			return Handle{}, fmt.Errorf("insert: %w", err)
		}
	}

	s.next++
	n := &node{handle: Handle{id: s.next}, row: row, parent: p}
	s.nodes[n.handle.id] = n

	if p == nil {
		s.roots = append(s.roots, n)
	} else {
		p.children = append(p.children, n)
	}

	s.notify(n.handle)

	return n.handle, nil
}

// Set replaces the row of h.
func (s *Store) Set(h Handle, row Row) error {
	n, err := s.lookup(h)
	if err != nil {
		return fmt.Errorf("set: %w", err)
	}

	n.row = row
	s.notify(h)

	return nil
}

// Remove deletes h and all of its descendants.
func (s *Store) Remove(h Handle) error {
	n, err := s.lookup(h)
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}

	s.unlink(n)

	var forget func(*node)

	forget = func(n *node) {
		delete(s.nodes, n.handle.id)

		for _, c := range n.children {
			forget(c)
		}
	}

	forget(n)

	return nil
}

// Move re-links h, with its subtree, as the last child of parent (or as the
// last root when parent is nil). Handles in the subtree stay valid.
func (s *Store) Move(h Handle, parent *Handle) error {
	n, err := s.lookup(h)
	if err != nil {
		return fmt.Errorf("move: %w", err)
	}

	var p *node

	if parent != nil {
		p, err = s.lookup(*parent)
		if err != nil {
			return fmt.Errorf("move: %w", err)
		}

		for a := p; a != nil; a = a.parent {
			if a == n {
				return fmt.Errorf("move %s: %w", h, ErrInvalidMove)
			}
		}
	}

	s.unlink(n)

	n.parent = p
	if p == nil {
		s.roots = append(s.roots, n)
	} else {
		p.children = append(p.children, n)
	}

	s.notify(h)

	return nil
}

func (s *Store) unlink(n *node) {
	remove := func(list []*node) []*node {
		return slices.DeleteFunc(list, func(c *node) bool { return c == n })
	}

	if n.parent == nil {
		s.roots = remove(s.roots)
	} else {
		n.parent.children = remove(n.parent.children)
	}
}

// Clear removes every node. Outstanding handles become invalid.
func (s *Store) Clear() {
	s.nodes = make(map[uint64]*node)
	s.roots = nil
}

// Row returns the row of h.
func (s *Store) Row(h Handle) (Row, bool) {
	n, ok := s.nodes[h.id]
	if !ok {
		return Row{}, false
	}

	return n.row, true
}

// Parent returns the visual parent of h. ok is false for root nodes and
// invalid handles.
func (s *Store) Parent(h Handle) (Handle, bool) {
	n, ok := s.nodes[h.id]
	if !ok || n.parent == nil {
		return Handle{}, false
	}

	return n.parent.handle, true
}

// Children returns the children of h in display order.
func (s *Store) Children(h Handle) []Handle {
	n, ok := s.nodes[h.id]
	if !ok {
		return nil
	}

	return handles(n.children)
}

// Roots returns the root nodes in display order.
func (s *Store) Roots() []Handle {
	return handles(s.roots)
}

// Subtree returns h followed by all of its descendants in display order.
func (s *Store) Subtree(h Handle) []Handle {
	n, ok := s.nodes[h.id]
	if !ok {
		return nil
	}

	var out []Handle

	walk(n, 0, func(n *node, _ int) {
		out = append(out, n.handle)
	})

	return out
}

// Walk calls fn for every node in display order (pre-order, roots first).
// depth is 0 for roots.
func (s *Store) Walk(fn func(h Handle, depth int, row Row)) {
	for _, r := range s.roots {
		walk(r, 0, func(n *node, depth int) {
			fn(n.handle, depth, n.row)
		})
	}
}

func walk(n *node, depth int, fn func(*node, int)) {
	fn(n, depth)

	for _, c := range n.children {
		walk(c, depth+1, fn)
	}
}

func handles(nodes []*node) []Handle {
	out := make([]Handle, len(nodes))
	for i, n := range nodes {
		out[i] = n.handle
	}

	return out
}
