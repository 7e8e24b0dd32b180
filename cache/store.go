// Package cache provides an in-process keyed cache with TTL-based
// expiration, explicit invalidation and per-key fetch deduplication.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Entry represents a cached value with its storage metadata.
type Entry struct {
	Value    any
	StoredAt time.Time
	TTL      time.Duration
}

// Fresh reports whether the entry is still within its TTL window.
// Staleness is evaluated lazily, only when an entry is read.
func (e Entry) Fresh(now time.Time) bool {
	return now.Sub(e.StoredAt) < e.TTL
}

// Store is an explicitly constructed cache instance. It is safe for
// concurrent use. A missing key means "unknown", never "empty" —
// callers must not conflate the two.
type Store struct {
	mu      sync.Mutex
	entries map[string]Entry
	gens    map[string]uint64
	epoch   uint64

	group   singleflight.Group
	metrics *Metrics
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source. Tests use this to control freshness.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMetrics attaches hit/miss/invalidation counters.
func WithMetrics(m *Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates an empty Store. Each caller owns its instance; there is no
// package-level shared state.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]Entry),
		gens:    make(map[string]uint64),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read returns the entry for key and whether it is present and fresh.
// A stale entry is returned with ok=false so callers can keep serving
// the previous value while a refetch is in flight.
func (s *Store) Read(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if !exists {
		s.metrics.miss(key)
		return Entry{}, false
	}
	if !entry.Fresh(s.now()) {
		s.metrics.miss(key)
		return entry, false
	}
	s.metrics.hit(key)
	return entry, true
}

// Write stores value under key with the given TTL, overwriting any
// previous entry.
func (s *Store) Write(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = Entry{Value: value, StoredAt: s.now(), TTL: ttl}
}

// Invalidate removes the entries for the given keys and bumps their
// generation so that an in-flight fetch started before the call cannot
// write a stale result back.
func (s *Store) Invalidate(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.entries, key)
		s.gens[key]++
		s.metrics.invalidation(key)
	}
}

// Clear removes every entry. The next read for any key refetches. The
// epoch bump covers keys with no stored entry yet, so a first-ever fetch
// in flight during Clear cannot write its pre-clear result either.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		s.metrics.invalidation(key)
	}
	s.entries = make(map[string]Entry)
	s.epoch++
}

// Len reports the number of stored entries, fresh or stale.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// generation folds the key's counter and the store epoch into one value.
// Invalidate moves the counter, Clear moves the epoch; both only ever
// increment, so either makes a previously observed generation stale.
func (s *Store) generation(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch + s.gens[key]
}

// writeWithGen stores the value only if the key's generation still matches
// the one observed before the fetch started. An invalidation or clear that
// raced the fetch wins; the stale result is dropped.
func (s *Store) writeWithGen(key string, value any, ttl time.Duration, observed uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch+s.gens[key] != observed {
		return false
	}
	s.entries[key] = Entry{Value: value, StoredAt: s.now(), TTL: ttl}
	return true
}

// Fetch returns the fresh cached value for key, or runs fn to produce one.
// Concurrent callers for the same key share a single in-flight fetch and a
// single cache write. A failed fetch is never cached and leaves any prior
// stale entry untouched, so the next call retries.
func (s *Store) Fetch(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) (any, error)) (any, error) {
	if entry, ok := s.Read(key); ok {
		return entry.Value, nil
	}

	observed := s.generation(key)
	value, err, _ := s.group.Do(key, func() (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		// A cancelled caller tore its binding down mid-flight; hand the
		// value back to any waiters but do not cache it.
		if ctx.Err() == nil {
			s.writeWithGen(key, v, ttl, observed)
		}
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}
