// Package session keeps per-tab state for anonymous devices in memory and
// evicts it once the tab has been idle for too long.
package session

import (
	"sync"
	"time"
)

// DefaultTab is used when a request carries no tab session id.
const DefaultTab = "default"

// Key identifies one browser tab of one device.
type Key struct {
	Device string
	Tab    string
}

// NewKey builds a key, substituting DefaultTab for an empty tab id.
func NewKey(device, tab string) Key {
	if tab == "" {
		tab = DefaultTab
	}
	return Key{Device: device, Tab: tab}
}

type entry[T any] struct {
	value    T
	lastUsed time.Time
}

// Registry lazily creates one T per Key.
type Registry[T any] struct {
	create func(Key) T
	now    func() time.Time

	mu       sync.Mutex
	items    map[Key]*entry[T]
	onCreate []func(Key, T)
	onEvict  []func(Key, T)
}

// NewRegistry creates a registry that builds values with create.
func NewRegistry[T any](create func(Key) T) *Registry[T] {
	return &Registry[T]{
		create: create,
		now:    time.Now,
		items:  make(map[Key]*entry[T]),
	}
}

// OnCreate registers fn to run after a value is created.
func (r *Registry[T]) OnCreate(fn func(Key, T)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onCreate = append(r.onCreate, fn)
}

// OnEvict registers fn to run after a value is removed.
func (r *Registry[T]) OnEvict(fn func(Key, T)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvict = append(r.onEvict, fn)
}

// Get returns the value for key, creating it on first use, and marks it used.
func (r *Registry[T]) Get(key Key) T {
	r.mu.Lock()
	if e, ok := r.items[key]; ok {
		e.lastUsed = r.now()
		r.mu.Unlock()
		return e.value
	}
	e := &entry[T]{value: r.create(key), lastUsed: r.now()}
	r.items[key] = e
	hooks := append([]func(Key, T){}, r.onCreate...)
	r.mu.Unlock()

	for _, fn := range hooks {
		fn(key, e.value)
	}
	return e.value
}

// Peek returns the value for key without creating it or marking it used.
func (r *Registry[T]) Peek(key Key) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[key]
	if !ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Touch marks key as used without creating it.
func (r *Registry[T]) Touch(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.items[key]; ok {
		e.lastUsed = r.now()
	}
}

// Len returns the number of live values.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Evict removes every value idle for longer than ttl and returns their keys.
// keep may veto an eviction, e.g. while a request is in flight.
func (r *Registry[T]) Evict(ttl time.Duration, keep func(T) bool) []Key {
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	var (
		keys    []Key
		evicted []T
	)
	for k, e := range r.items {
		if e.lastUsed.After(cutoff) {
			continue
		}
		if keep != nil && keep(e.value) {
			continue
		}
		delete(r.items, k)
		keys = append(keys, k)
		evicted = append(evicted, e.value)
	}
	hooks := append([]func(Key, T){}, r.onEvict...)
	r.mu.Unlock()

	for i, k := range keys {
		for _, fn := range hooks {
			fn(k, evicted[i])
		}
	}
	return keys
}
