// Package query caches backend-reported values on the client and provides the
// primitives every state-changing action is built from: an optimistic
// apply/attempt/revert mutation, paced calls that round their duration up to
// a fixed interval, and fixed-delay retries.
package query

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// fetchTimeout bounds a shared fetch once it no longer follows the caller
// that started it.
const fetchTimeout = 30 * time.Second

// Fetcher loads a fresh value from the backend.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Query is a single cached backend read. Concurrent refetches share one
// in-flight request.
type Query[T any] struct {
	fetch Fetcher[T]
	group singleflight.Group

	mu        sync.RWMutex
	value     T
	ok        bool
	updatedAt time.Time
	version   uint64
}

// New returns an empty query backed by fetch.
func New[T any](fetch func(ctx context.Context) (T, error)) *Query[T] {
	return &Query[T]{fetch: fetch}
}

// Get returns the cached value, fetching it first when nothing is cached.
func (q *Query[T]) Get(ctx context.Context) (T, error) {
	if v, ok := q.Peek(); ok {
		return v, nil
	}
	return q.Refetch(ctx)
}

// Refetch always asks the backend. On error the cached value is kept.
// The request is shared with concurrent callers, so it runs detached from
// ctx: a caller that gives up gets ctx.Err() while the others still receive
// the result.
func (q *Query[T]) Refetch(ctx context.Context) (T, error) {
	ch := q.group.DoChan("fetch", func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		v, err := q.fetch(fctx)
		if err != nil {
			return nil, err
		}
		q.Set(v)
		return v, nil
	})
	var zero T
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Peek returns the cached value without I/O.
func (q *Query[T]) Peek() (T, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.value, q.ok
}

// Set overwrites the cached value without I/O.
func (q *Query[T]) Set(v T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.value = v
	q.ok = true
	q.updatedAt = time.Now()
	q.version++
}

// Swap applies fn to the cached value and returns the value it replaced.
// It is the building block of optimistic updates: keep the returned value
// to restore it later.
func (q *Query[T]) Swap(fn func(T) T) (prev T, hadPrev bool) {
	prev, hadPrev, _ = q.swap(fn)
	return prev, hadPrev
}

// swap is Swap that also returns the version written.
func (q *Query[T]) swap(fn func(T) T) (prev T, hadPrev bool, version uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	prev, hadPrev = q.value, q.ok
	q.value = fn(q.value)
	q.ok = true
	q.updatedAt = time.Now()
	q.version++
	return prev, hadPrev, q.version
}

// restoreIf puts back a value returned by swap unless the cache was written
// again after version.
func (q *Query[T]) restoreIf(prev T, hadPrev bool, version uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.version != version {
		return false
	}
	q.value = prev
	q.ok = hadPrev
	q.updatedAt = time.Now()
	q.version++
	return true
}

// UpdatedAt reports when the cache was last written.
func (q *Query[T]) UpdatedAt() time.Time {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.updatedAt
}
