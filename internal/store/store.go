// Package store holds the current specification tree and applies actions to it.
//
// Store is the explicit state container the coordinator and the CLI share:
// readers take immutable snapshots, writers go through Dispatch, and
// subscribers hear about every change.
package store

import (
	"sync"

	"github.com/spectree/spectree/internal/tree"
	"github.com/spectree/spectree/internal/types"
)

// Listener is called after every successful state change with the new
// snapshot and the action that produced it (nil for Replace).
type Listener func(snapshot *types.Tree, action tree.Action)

// Store implements a single-tree state container.
type Store struct {
	mu        sync.RWMutex // Protects current
	current   *types.Tree
	listeners map[int]Listener
	nextID    int
	version   uint64 // bumped on every change
}

// New creates a store seeded with t. A nil tree starts empty.
func New(t *types.Tree) *Store {
	if t == nil {
		t = types.NewTree(types.App{})
	}
	t.Normalize()
	return &Store{
		current:   t,
		listeners: make(map[int]Listener),
	}
}

// Snapshot returns the current tree. Callers must treat it as read-only; all
// changes go through Dispatch or Replace.
func (s *Store) Snapshot() *types.Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Version returns a counter that increases with every change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Dispatch applies action atomically. On error the state is unchanged.
func (s *Store) Dispatch(action tree.Action) (*types.Tree, error) {
	next, _, err := s.DispatchFunc(func(*types.Tree) (tree.Action, error) {
		return action, nil
	})
	return next, err
}

// DispatchFunc derives an action from the current tree and applies it while
// holding the write lock, so no other change can land between reading the
// tree and changing it. build must not call back into s. A nil action leaves
// the state and version untouched.
func (s *Store) DispatchFunc(build func(current *types.Tree) (tree.Action, error)) (*types.Tree, tree.Action, error) {
	next, action, listeners, err := s.applyLocked(build)
	if err != nil {
		return nil, nil, err
	}
	for _, fn := range listeners {
		fn(next, action)
	}
	return next, action, nil
}

func (s *Store) applyLocked(build func(*types.Tree) (tree.Action, error)) (*types.Tree, tree.Action, []Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, err := build(s.current)
	if err != nil {
		return nil, nil, nil, err
	}
	if action == nil {
		return s.current, nil, nil, nil
	}
	next, err := tree.Apply(s.current, action)
	if err != nil {
		return nil, nil, nil, err
	}
	s.current = next
	s.version++
	return next, action, s.snapshotListeners(), nil
}

// Replace swaps in a whole new tree, e.g. after a refetch from the CMS.
func (s *Store) Replace(t *types.Tree) {
	t.Normalize()
	s.mu.Lock()
	s.current = t
	s.version++
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(t, nil)
	}
}

// Subscribe registers fn and returns a function that unregisters it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// snapshotListeners copies the listener set. Caller must hold mu.
func (s *Store) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}
