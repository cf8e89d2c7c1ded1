package cache

import (
	"context"
	"fmt"
)

// View is a typed Snapshot.
type View[T any] struct {
	Value    T
	HasValue bool
	State    State
	Err      error
	Version  uint64
}

// Loading reports whether there is nothing to show yet because the first
// fetch has not completed.
func (v View[T]) Loading() bool {
	return !v.HasValue && v.Err == nil && (v.State == StateAbsent || v.State == StateFetching)
}

// Query is a typed handle on one cache key.
type Query[T any] struct {
	cache *Cache
	key   Key
}

// Register defines key on c with a typed fetcher and returns its handle.
func Register[T any](c *Cache, key Key, fetch func(ctx context.Context) (T, error)) *Query[T] {
	c.Define(key, func(ctx context.Context) (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
	return &Query[T]{cache: c, key: key}
}

// Key returns the query's cache key.
func (q *Query[T]) Key() Key { return q.key }

// Get returns the current view and starts a fetch when the entry is absent
// or stale.
func (q *Query[T]) Get() (View[T], error) {
	s, err := q.cache.Get(q.key)
	if err != nil {
		return View[T]{}, err
	}
	return viewOf[T](s)
}

// Load waits for the entry to settle and returns it.
func (q *Query[T]) Load(ctx context.Context) (View[T], error) {
	s, err := q.cache.Load(ctx, q.key)
	v, verr := viewOf[T](s)
	if err != nil {
		return v, err
	}
	return v, verr
}

// Peek returns the current view without fetching.
func (q *Query[T]) Peek() View[T] {
	v, _ := viewOf[T](q.cache.Peek(q.key))
	return v
}

// Invalidate marks the entry stale; see Cache.Invalidate.
func (q *Query[T]) Invalidate() { q.cache.Invalidate(q.key) }

// Reset discards the entry's value; see Cache.Reset.
func (q *Query[T]) Reset() { q.cache.Reset(q.key) }

// Observe calls fn with a typed view on every change; see Cache.Observe.
func (q *Query[T]) Observe(fn func(View[T])) (cancel func(), err error) {
	return q.cache.Observe(q.key, func(s Snapshot) {
		v, err := viewOf[T](s)
		if err != nil {
			v.Err = err
		}
		fn(v)
	})
}

func viewOf[T any](s Snapshot) (View[T], error) {
	v := View[T]{HasValue: s.HasValue, State: s.State, Err: s.Err, Version: s.Version}
	if !s.HasValue {
		return v, nil
	}
	typed, ok := s.Value.(T)
	if !ok && s.Value != nil {
		return View[T]{State: s.State, Err: s.Err, Version: s.Version}, fmt.Errorf("cache: key %q holds %T, not %T", s.Key, s.Value, typed)
	}
	v.Value = typed
	return v, nil
}
