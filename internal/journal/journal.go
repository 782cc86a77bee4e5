package journal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"consistentsdb/internal/action"
	"consistentsdb/internal/attrs"
	"consistentsdb/internal/timestamp"
)

// ErrUnavailable wraps any error returned by the underlying Store. Per
// spec §7, a JournalUnavailable condition on a write path is not surfaced
// to the engine's caller — the mutation already succeeded against the
// backing store — so callers of LogAction typically log and continue
// rather than propagate this upward. ReplaySince and RandomCleanup return
// it so the engine can decide case-by-case.
var ErrUnavailable = errors.New("journal: store unavailable")

// Journal orchestrates the two Store key families described in spec §4.2:
// logs (one entry per mutation, TTL-bounded) and lists (the append-only,
// no-per-element-TTL per-item timestamp journal). Using two independent
// Store values — rather than one Store with two key prefixes — is what
// lets RandomCleanup's random-key sampling stay scoped to the list family,
// exactly like the Python source's two separate Redis database numbers.
type Journal struct {
	logs   Store
	lists  Store
	ttl    time.Duration
	logger *log.Logger
}

// New builds a Journal backed by logs (the log family) and lists (the list
// family), expiring log entries after ttl.
func New(logs, lists Store, ttl time.Duration, logger *log.Logger) *Journal {
	if logger == nil {
		logger = log.Default()
	}
	return &Journal{logs: logs, lists: lists, ttl: ttl, logger: logger}
}

// LogAction records that act was performed on (domain, item) at ts. It
// writes the log-family entry (TTL = journal_ttl) and appends ts to the
// item's list-family journal. The two writes are not atomic (spec §4.2/§5:
// "not atomic... harmless, since the next read will eventually see it
// directly").
func (j *Journal) LogAction(ctx context.Context, domain, item string, ts timestamp.Timestamp, act action.Action) error {
	data, err := act.MarshalJSON()
	if err != nil {
		return fmt.Errorf("journal: encode action: %w", err)
	}
	if err := j.logs.SetWithTTL(ctx, logKey(domain, item, ts.String()), data, j.ttl); err != nil {
		return fmt.Errorf("%w: log write: %v", ErrUnavailable, err)
	}
	if err := j.lists.ListAppend(ctx, listKey(domain, item), ts.String()); err != nil {
		return fmt.Errorf("%w: list append: %v", ErrUnavailable, err)
	}
	return nil
}

// ReplaySince reads the full per-item timestamp list, drops (opportunistic
// GC) entries older than journal_ttl, and replays every remaining entry
// whose timestamp is strictly greater than baseline against item, in
// recorded order. Entries equal to the baseline are not replayed (spec:
// strict >). A journal entry whose log-family record has itself expired —
// an allowed race between the TTL'd log entry and its still-present list
// timestamp — is skipped silently, as is a log entry that fails to decode
// (SerializationError in spec §7: "the entry is dropped silently; replay
// continues").
func (j *Journal) ReplaySince(ctx context.Context, domain, item string, baseline timestamp.Timestamp, state attrs.Item) (attrs.Item, error) {
	key := listKey(domain, item)
	entries, err := j.lists.ListRange(ctx, key, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("%w: list range: %v", ErrUnavailable, err)
	}

	now := timestamp.Now()
	result := state.Clone()

	for _, raw := range entries {
		ts, err := timestamp.Parse(raw)
		if err != nil {
			// Malformed timestamp in our own journal: treat like any other
			// poison entry and move on.
			continue
		}

		if ts.Expired(now, j.ttl) {
			if err := j.lists.ListRemove(ctx, key, raw, 1); err != nil {
				j.logger.Printf("journal: opportunistic GC of %s failed: %v", key, err)
			}
			continue
		}

		if !ts.After(baseline) {
			continue
		}

		data, ok, err := j.logs.Get(ctx, logKey(domain, item, raw))
		if err != nil {
			return nil, fmt.Errorf("%w: log get: %v", ErrUnavailable, err)
		}
		if !ok {
			// Log entry evicted but its timestamp is still in the list —
			// an allowed race (spec §4.2). Skip.
			continue
		}

		var act action.Action
		if err := act.UnmarshalJSON(data); err != nil {
			// SerializationError: drop the poison entry, keep replaying.
			j.logger.Printf("journal: dropping undecodable entry %s: %v", logKey(domain, item, raw), err)
			continue
		}

		result, err = action.Apply(result, act)
		if err != nil {
			j.logger.Printf("journal: dropping entry %s that failed to apply: %v", logKey(domain, item, raw), err)
			continue
		}
	}

	return result, nil
}

// RandomCleanup samples one random key from the list family and removes
// any of its timestamp entries older than journal_ttl. It is idempotent
// and safe to call concurrently with readers; it exists to bound list
// growth even for items this process never reads again, since
// ReplaySince only GCs the item it was called for.
func (j *Journal) RandomCleanup(ctx context.Context) error {
	key, ok, err := j.lists.RandomKey(ctx)
	if err != nil {
		return fmt.Errorf("%w: random key: %v", ErrUnavailable, err)
	}
	if !ok {
		return nil
	}

	entries, err := j.lists.ListRange(ctx, key, 0, -1)
	if err != nil {
		return fmt.Errorf("%w: list range: %v", ErrUnavailable, err)
	}

	now := timestamp.Now()
	for _, raw := range entries {
		ts, err := timestamp.Parse(raw)
		if err != nil {
			continue
		}
		if ts.Expired(now, j.ttl) {
			if err := j.lists.ListRemove(ctx, key, raw, 1); err != nil {
				return fmt.Errorf("%w: list remove: %v", ErrUnavailable, err)
			}
		}
	}
	return nil
}
