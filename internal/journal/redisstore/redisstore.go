// Package redisstore implements journal.Store on top of Redis, the same
// backing technology the Python source uses (two redis.Redis(db=...)
// connections — one for the action-log family, one for the per-item
// timestamp-list family). go-redis is not a dependency of this module's
// teacher (ppriyankuu-godkv/distributed-kvstore); it is adopted from
// SAGE-X-project-sage-adk's go.mod, since the spec this repo implements
// literally names Redis as its journal store.
//
// Per spec §4.2/§6, callers must construct two independent redisstore.Store
// values — typically pointed at two different Redis DB numbers, or two
// distinct key prefixes — so that RandomKey (backed by Redis' RANDOMKEY)
// can never return a key from the other family.
package redisstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store adapts a *redis.Client (scoped to one DB/key-space) to
// journal.Store.
type Store struct {
	client *redis.Client
	prefix string
}

// New returns a Store backed by client. If prefix is non-empty, every key
// is namespaced under it (key -> prefix+":"+key) — an alternative to a
// dedicated DB number for deployments on a single Redis DB, still
// sufficient to keep RandomKey scoped as long as the log-family Store uses
// a disjoint prefix.
func New(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *Store) unkey(k string) string {
	if s.prefix == "" {
		return k
	}
	return k[len(s.prefix)+1:]
}

// SetWithTTL implements journal.Store.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

// Get implements journal.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// TTL implements journal.Store. Redis returns -1 for a key with no expiry
// and -2 for a missing key; both collapse to journal.Store's documented
// "negative means absent/no-expiry" contract.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, s.key(key)).Result()
	if err != nil {
		return -1, err
	}
	if d < 0 {
		return -1, nil
	}
	return d, nil
}

// ListAppend implements journal.Store using RPUSH, so ListRange(0,-1)
// returns entries in append order.
func (s *Store) ListAppend(ctx context.Context, key, element string) error {
	return s.client.RPush(ctx, s.key(key), element).Err()
}

// ListRange implements journal.Store using LRANGE.
func (s *Store) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.client.LRange(ctx, s.key(key), start, stop).Result()
}

// ListRemove implements journal.Store using LREM with a positive count
// (head-to-tail removal), which is all the journal ever needs.
func (s *Store) ListRemove(ctx context.Context, key, value string, count int64) error {
	return s.client.LRem(ctx, s.key(key), count, value).Err()
}

// ListDelete implements journal.Store using DEL.
func (s *Store) ListDelete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// ListLength implements journal.Store using LLEN.
func (s *Store) ListLength(ctx context.Context, key string) (int64, error) {
	return s.client.LLen(ctx, s.key(key)).Result()
}

// RandomKey implements journal.Store using RANDOMKEY. This is safe to
// scope to one key family only because the caller is expected to point
// this Store's client at a DB (or prefix) dedicated to that family.
func (s *Store) RandomKey(ctx context.Context) (string, bool, error) {
	k, err := s.client.RandomKey(ctx).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if s.prefix != "" && !strings.HasPrefix(k, s.prefix+":") {
		// A RANDOMKEY hit outside our prefix on a shared DB: treat as empty
		// rather than return a key from a foreign namespace.
		return "", false, nil
	}
	return s.unkey(k), true, nil
}
