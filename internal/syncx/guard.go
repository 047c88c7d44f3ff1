// Package syncx provides the locking helpers shared by the capture pipeline:
// guarded values for state read by HTTP handlers and a single-flight gate.
package syncx

import "sync"

// RWGuard wraps RWMutex with scoped lock helpers.
type RWGuard[T any] struct {
	mu    sync.RWMutex
	value T
}

// NewGuard creates a guarded value.
func NewGuard[T any](initial T) *RWGuard[T] {
	return &RWGuard[T]{value: initial}
}

// View runs fn under the read lock and returns its result.
func View[T, R any](g *RWGuard[T], fn func(T) R) R {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return fn(g.value)
}

// Write executes fn while holding write lock, fn receives pointer for mutation.
func (g *RWGuard[T]) Write(fn func(*T)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(&g.value)
}

// CompareAndWrite runs fn under the write lock only if cond holds for the
// current value. It reports whether fn ran.
func (g *RWGuard[T]) CompareAndWrite(cond func(T) bool, fn func(*T)) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !cond(g.value) {
		return false
	}
	fn(&g.value)
	return true
}

// Get returns a copy of the value (T should be value type or immutable).
func (g *RWGuard[T]) Get() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// Set atomically replaces the value.
func (g *RWGuard[T]) Set(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}
