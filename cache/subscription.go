package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrClosed is returned when a subscription is used after Close.
var ErrClosed = errors.New("cache: subscription closed")

// ErrValueType is returned when the cached value under the bound key is
// not of the subscription's type. Two subscriptions of different types
// sharing one key is a wiring bug; it must surface, not read as zero.
var ErrValueType = errors.New("cache: cached value type mismatch")

// Snapshot is the externally visible state of a Subscription. While a
// fetch is pending, Data retains the previously published value.
type Snapshot[T any] struct {
	Data    T
	HasData bool
	Loading bool
	Err     error
}

// Subscription binds a cache key to a fetch function for one consumer.
// It owns cancellation: a fetch still in flight when the subscription is
// rebound, invalidated, refreshed again or closed is superseded, and its
// eventual resolution updates neither the snapshot nor the store.
type Subscription[T any] struct {
	store *Store
	ttl   time.Duration
	fetch func(ctx context.Context) (T, error)

	mu      sync.Mutex
	key     string
	seq     uint64
	data    T
	hasData bool
	loading bool
	err     error
	cancel  context.CancelFunc
	closed  bool
}

// Subscribe binds key to fetch on store. The subscription starts empty;
// call Get or Refresh to populate it.
func Subscribe[T any](store *Store, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) *Subscription[T] {
	return &Subscription[T]{store: store, key: key, ttl: ttl, fetch: fetch}
}

// Snapshot returns the current {data, loading, error} state.
func (s *Subscription[T]) Snapshot() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot[T]{Data: s.data, HasData: s.hasData, Loading: s.loading, Err: s.err}
}

// Key returns the currently bound cache key.
func (s *Subscription[T]) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// Get returns the value for the bound key, reading through the store.
// A fresh cache entry is served without invoking the fetch function;
// otherwise exactly one fetch runs (shared with concurrent callers of the
// same key) and its result is cached on success. Failures are surfaced
// and never cached.
func (s *Subscription[T]) Get(ctx context.Context) (T, error) {
	var zero T
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return zero, ErrClosed
	}
	key := s.key
	s.seq++
	seq := s.seq
	s.loading = true
	s.mu.Unlock()

	value, err := s.store.Fetch(ctx, key, s.ttl, func(ctx context.Context) (any, error) {
		return s.fetch(ctx)
	})
	typed, err := assertValue[T](key, value, err)
	s.apply(seq, typed, err)
	if err != nil {
		return zero, err
	}
	return typed, nil
}

// Refresh triggers an asynchronous read. A fresh cache entry is applied
// immediately; otherwise the snapshot goes loading and a background fetch
// runs. Any previous in-flight fetch for this subscription is cancelled.
func (s *Subscription[T]) Refresh(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	key := s.key
	if entry, ok := s.store.Read(key); ok {
		if typed, ok := entry.Value.(T); ok {
			s.data, s.hasData, s.loading, s.err = typed, true, false, nil
			s.mu.Unlock()
			return
		}
	}
	s.seq++
	seq := s.seq
	s.loading = true
	if s.cancel != nil {
		s.cancel()
	}
	fctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		defer cancel()
		value, err := s.store.Fetch(fctx, key, s.ttl, func(ctx context.Context) (any, error) {
			return s.fetch(ctx)
		})
		typed, err := assertValue[T](key, value, err)
		s.apply(seq, typed, err)
	}()
}

// Rebind points the subscription at a different key. Any in-flight fetch
// is discarded; previously published data is retained until the next read
// resolves.
func (s *Subscription[T]) Rebind(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || key == s.key {
		return
	}
	s.key = key
	s.supersedeLocked()
}

// Invalidate removes the given keys from the store, defaulting to the
// subscription's own key, and forces a refetch on the next read from any
// subscription bound to those keys.
func (s *Subscription[T]) Invalidate(keys ...string) {
	s.mu.Lock()
	if len(keys) == 0 {
		keys = []string{s.key}
	}
	s.supersedeLocked()
	s.mu.Unlock()
	s.store.Invalidate(keys...)
}

// Close tears the subscription down. A resolution arriving afterwards is
// dropped.
func (s *Subscription[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.supersedeLocked()
}

func assertValue[T any](key string, value any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: key %q holds %T", ErrValueType, key, value)
	}
	return typed, nil
}

func (s *Subscription[T]) supersedeLocked() {
	s.seq++
	s.loading = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// apply publishes a fetch resolution unless it was superseded in the
// meantime. On error the previous data is retained so a transient failure
// does not wipe an otherwise usable snapshot.
func (s *Subscription[T]) apply(seq uint64, value T, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq != s.seq {
		return
	}
	s.loading = false
	if err != nil {
		s.err = err
		return
	}
	s.data = value
	s.hasData = true
	s.err = nil
}
