// Package journal implements the per-process scratch store that gives the
// engine its read-your-writes guarantee: every mutation this process makes
// is recorded here, tagged with a timestamp, and replayed against whatever
// (possibly stale) state a subsequent read sees from the backing store,
// until journal_ttl elapses and the backing store is assumed to have
// converged.
//
// Store is the JournalStore of spec §6 — the abstraction the source backs
// with two Redis database numbers. Two concrete implementations live in
// the redisstore and memstore subpackages; Journal itself only depends on
// this interface, grounded on the Backend interface shape in
// other_examples' gravitational-teleport backend.go (context-first,
// doc-commented per method).
package journal

import (
	"context"
	"time"
)

// Store is the minimal key/value + list abstraction the journal is built
// on. A single Store value serves one key family (log or list) — see
// Journal, which holds two distinct Store values so that RandomKey can be
// scoped to the list family without the risk of returning a log-family
// key.
type Store interface {
	// SetWithTTL stores value under key, expiring it after ttl.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value stored under key, or ok=false if key is absent
	// or has expired.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// TTL returns the remaining time-to-live for key. A negative duration
	// means key does not exist or carries no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// ListAppend appends element to the list stored under key, creating it
	// if necessary.
	ListAppend(ctx context.Context, key, element string) error

	// ListRange returns the elements of the list at key between start and
	// stop inclusive (negative indices count from the list's end, as in
	// Redis' LRANGE).
	ListRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// ListRemove removes up to count occurrences of value from the list at
	// key.
	ListRemove(ctx context.Context, key, value string, count int64) error

	// ListDelete deletes the entire list stored under key.
	ListDelete(ctx context.Context, key string) error

	// ListLength returns the number of elements in the list at key.
	ListLength(ctx context.Context, key string) (int64, error)

	// RandomKey returns a key sampled uniformly at random from this Store's
	// namespace, or ok=false if the namespace is empty. Implementations
	// backing the list family must guarantee this can never return a
	// log-family key — in Redis this means a dedicated database number or
	// connection; see redisstore.
	RandomKey(ctx context.Context) (key string, ok bool, err error)
}
