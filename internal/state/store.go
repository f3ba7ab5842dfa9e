// Package state provides the observable projection every container is built
// on: a value plus loading and error flags, guarded by a mutex and fanned out
// to subscribers after each change.
package state

import (
	"slices"
	"sync"
)

// Snapshot is a point-in-time copy of a container projection.
type Snapshot[V any] struct {
	Value     V
	IsLoading bool
	LastError string
}

// Store holds one projection. Subscribers receive the latest snapshot only;
// a slow reader skips intermediate states rather than blocking writers.
type Store[V any] struct {
	mu     sync.Mutex
	snap   Snapshot[V]
	clone  func(V) V
	subs   map[int]chan Snapshot[V]
	nextID int
}

// New creates a store holding initial. clone copies values handed out to
// readers; nil means values are copied by assignment.
func New[V any](initial V, clone func(V) V) *Store[V] {
	if clone == nil {
		clone = func(v V) V { return v }
	}
	return &Store[V]{
		snap:  Snapshot[V]{Value: initial},
		clone: clone,
		subs:  make(map[int]chan Snapshot[V]),
	}
}

// NewList creates a store over a slice projection.
func NewList[T any]() *Store[[]T] {
	return New[[]T](nil, func(v []T) []T { return slices.Clone(v) })
}

func (s *Store[V]) Snapshot() Snapshot[V] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// Mutate applies fn to the projection and notifies subscribers.
func (s *Store[V]) Mutate(fn func(*Snapshot[V])) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap)
	snap := s.copyLocked()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Subscribe returns a channel primed with the current snapshot and a cancel
// func that closes it. Cancel is safe to call more than once.
func (s *Store[V]) Subscribe() (<-chan Snapshot[V], func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Snapshot[V], 1)
	ch <- s.copyLocked()
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *Store[V]) copyLocked() Snapshot[V] {
	out := s.snap
	out.Value = s.clone(s.snap.Value)
	return out
}

// StartLoading marks the projection busy and clears the previous error.
func (s *Store[V]) StartLoading() {
	s.Mutate(func(snap *Snapshot[V]) {
		snap.IsLoading = true
		snap.LastError = ""
	})
}

// Fail records msg and clears the loading flag.
func (s *Store[V]) Fail(msg string) {
	s.Mutate(func(snap *Snapshot[V]) {
		snap.IsLoading = false
		snap.LastError = msg
	})
}

// Splice replaces the first item matched by match with fn applied to it.
// It reports whether an item matched.
func Splice[T any](items []T, match func(T) bool, fn func(*T)) bool {
	i := slices.IndexFunc(items, match)
	if i < 0 {
		return false
	}
	fn(&items[i])
	return true
}
