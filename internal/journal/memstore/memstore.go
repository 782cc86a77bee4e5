// Package memstore implements an in-memory journal.Store, for unit tests
// and for the CLI's standalone demo mode. It has no durability beyond the
// process's lifetime, which matches spec §1's stated non-goal ("durability
// of the journal beyond its TTL") exactly — this implementation simply has
// no durability at all.
//
// Grounded on other_examples' Link87-ttlmap (a generic, mutex-guarded map
// with a nanosecond expiry per entry); adapted here into a string-keyed
// store with both a scalar-with-TTL namespace and a list namespace, since
// journal.Store needs both.
package memstore

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type entry struct {
	value   []byte
	expires time.Time // zero means "no expiry"
}

// Store is an in-memory journal.Store. The zero value is not usable; build
// one with New.
type Store struct {
	mu    sync.RWMutex
	now   func() time.Time
	items map[string]entry
	lists map[string][]string
}

// New returns an empty Store using time.Now for expiry checks.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock returns an empty Store using now for expiry checks, so
// tests can control TTL expiry deterministically.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		now:   now,
		items: make(map[string]entry),
		lists: make(map[string][]string),
	}
}

func (s *Store) expired(e entry) bool {
	return !e.expires.IsZero() && !s.now().Before(e.expires)
}

// SetWithTTL implements journal.Store.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.items[key] = entry{value: cp, expires: s.now().Add(ttl)}
	return nil
}

// Get implements journal.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	if s.expired(e) {
		delete(s.items, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// TTL implements journal.Store. A negative duration means key does not
// exist or has no expiry tracked.
func (s *Store) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[key]
	if !ok || e.expires.IsZero() {
		return -1, nil
	}
	remaining := e.expires.Sub(s.now())
	if remaining < 0 {
		return -1, nil
	}
	return remaining, nil
}

// ListAppend implements journal.Store.
func (s *Store) ListAppend(_ context.Context, key, element string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[key] = append(s.lists[key], element)
	return nil
}

// ListRange implements journal.Store. start/stop follow Redis LRANGE
// semantics: negative indices count from the end, -1 meaning the last
// element.
func (s *Store) ListRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.lists[key]
	n := int64(len(list))
	if n == 0 {
		return nil, nil
	}
	norm := func(i int64) int64 {
		if i < 0 {
			i += n
		}
		if i < 0 {
			i = 0
		}
		if i > n {
			i = n
		}
		return i
	}
	lo, hi := norm(start), norm(stop)+1
	if lo >= hi {
		return nil, nil
	}
	out := make([]string, hi-lo)
	copy(out, list[lo:hi])
	return out, nil
}

// ListRemove implements journal.Store, removing up to count leading
// occurrences of value (count<=0 means "remove all"), matching Redis
// LREM's count>0 behavior since the journal never needs negative-count
// (tail-first) removal.
func (s *Store) ListRemove(_ context.Context, key, value string, count int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.lists[key]
	out := make([]string, 0, len(list))
	removed := int64(0)
	for _, v := range list {
		if v == value && (count <= 0 || removed < count) {
			removed++
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		delete(s.lists, key)
	} else {
		s.lists[key] = out
	}
	return nil
}

// ListDelete implements journal.Store.
func (s *Store) ListDelete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lists, key)
	return nil
}

// ListLength implements journal.Store.
func (s *Store) ListLength(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.lists[key])), nil
}

// RandomKey implements journal.Store, sampling uniformly over this Store's
// list keys only — callers must use a separate Store instance for the log
// family, exactly as redisstore does with a separate Redis DB number, so
// that this can never return a log-family key.
func (s *Store) RandomKey(_ context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.lists) == 0 {
		return "", false, nil
	}
	keys := make([]string, 0, len(s.lists))
	for k := range s.lists {
		keys = append(keys, k)
	}
	return keys[rand.Intn(len(keys))], true, nil
}
