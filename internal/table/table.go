// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package table provides a mutex-guarded map whose values may be borrowed
// without holding the map lock for the duration of the borrow.
//
// The map itself is protected by a single RWMutex. Each entry carries its own
// mutex, which [Table.With] holds while the caller's function runs and which
// [Table.Remove] acquires before releasing the value. Long-running work on one
// entry therefore never blocks inserts or removals of other entries, while a
// removal of the same entry waits for in-flight borrows to finish.
package table

import (
	"errors"
	"sync"
)

// ErrDuplicateKey is returned by Insert when the key is already present.
// Keys must be allocated fresh by the caller; a duplicate is a programming error.
var ErrDuplicateKey = errors.New("table: duplicate key")

type entry[V any] struct {
	mu      sync.Mutex
	value   V
	removed bool
}

// Table maps keys to values with scoped, exclusive access per entry.
//
// Table is safe for concurrent use. The zero value is not usable; create
// tables with New.
type Table[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*entry[V]

	// release is called exactly once for every value that leaves the table.
	release func(V)
}

// New creates an empty table. If release is non-nil it is invoked for each
// value after it has been removed and all borrows of it have ended.
func New[K comparable, V any](release func(V)) *Table[K, V] {
	return &Table[K, V]{
		entries: make(map[K]*entry[V]),
		release: release,
	}
}

// Insert stores v under k. It returns ErrDuplicateKey and leaves the table
// unchanged if k is already present.
func (t *Table[K, V]) Insert(k K, v V) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[k]; ok {
		return ErrDuplicateKey
	}
	t.entries[k] = &entry[V]{value: v}
	return nil
}

// Remove deletes the entry for k and reports whether it existed.
//
// The entry is unlinked from the map first, so no new borrow can find it.
// Remove then waits for any borrow already in progress and releases the
// value before returning.
func (t *Table[K, V]) Remove(k K) bool {
	t.mu.Lock()
	e, ok := t.entries[k]
	if ok {
		delete(t.entries, k)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	t.retire(e)
	return true
}

// With calls fn with the value stored under k and reports whether it did.
//
// The map lock is held only for the lookup. fn runs on the caller's goroutine
// while holding the entry's lock, which excludes concurrent removal of k and
// other borrows of k, but not operations on other keys. fn must not call
// back into the table for the same key.
func (t *Table[K, V]) With(k K, fn func(V)) bool {
	t.mu.RLock()
	e, ok := t.entries[k]
	t.mu.RUnlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Lost the race against Remove between lookup and lock.
	if e.removed {
		return false
	}
	fn(e.value)
	return true
}

// Contains reports whether k is currently present.
func (t *Table[K, V]) Contains(k K) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.entries[k]
	return ok
}

// Len returns the number of entries.
func (t *Table[K, V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Clear removes and releases every entry. It returns the number of entries
// that were removed.
func (t *Table[K, V]) Clear() int {
	t.mu.Lock()
	old := t.entries
	t.entries = make(map[K]*entry[V])
	t.mu.Unlock()

	for _, e := range old {
		t.retire(e)
	}
	return len(old)
}

// retire marks e removed once no borrow holds it, then releases its value.
func (t *Table[K, V]) retire(e *entry[V]) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.removed = true
	if t.release != nil {
		t.release(e.value)
	}
	var zero V
	e.value = zero
}
