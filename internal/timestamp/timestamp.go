// Package timestamp implements the wall-clock timestamps this module
// threads through the journal and the marker attribute: ISO-8601 UTC with
// microsecond precision, comparable lexicographically once normalized, and
// parseable back into a calendar instant for TTL math. This mirrors the
// Python source's current_timestamp/parse_timestamp pair, which format and
// parse the fixed layout "%Y-%m-%dT%H:%M:%S.%f".
package timestamp

import (
	"fmt"
	"time"
)

// layout matches the Python source's strftime format exactly: always six
// fractional digits, no timezone suffix (the value is always UTC).
const layout = "2006-01-02T15:04:05.000000"

// Timestamp is an opaque, comparable wall-clock marker.
type Timestamp struct {
	t time.Time
}

// Now returns the current instant, truncated to microsecond precision.
func Now() Timestamp {
	return Timestamp{t: time.Now().UTC().Truncate(time.Microsecond)}
}

// Zero is the smallest representable Timestamp; ReplaySince with a Zero
// baseline replays every non-expired journal entry.
var Zero = Timestamp{}

// Parse parses a string produced by String (or by the Python source) back
// into a Timestamp.
func Parse(s string) (Timestamp, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("timestamp: parse %q: %w", s, err)
	}
	return Timestamp{t: t.UTC()}, nil
}

// String renders the timestamp in the fixed ISO-8601 microsecond layout.
func (ts Timestamp) String() string {
	return ts.t.Format(layout)
}

// Before reports whether ts is strictly earlier than other.
func (ts Timestamp) Before(other Timestamp) bool {
	return ts.t.Before(other.t)
}

// After reports whether ts is strictly later than other.
func (ts Timestamp) After(other Timestamp) bool {
	return ts.t.After(other.t)
}

// IsZero reports whether ts is the zero Timestamp (never parsed/assigned).
func (ts Timestamp) IsZero() bool {
	return ts.t.IsZero()
}

// Sub returns the duration elapsed between other and ts (ts - other),
// matching time.Time.Sub's sign convention.
func (ts Timestamp) Sub(other Timestamp) time.Duration {
	return ts.t.Sub(other.t)
}

// Expired reports whether ts is at least ttl old as of now, i.e.
// now - ts >= ttl. This is the exact boundary the journal's opportunistic
// GC tests against (spec: "now - timestamp >= journal_ttl").
func (ts Timestamp) Expired(now Timestamp, ttl time.Duration) bool {
	return now.Sub(ts) >= ttl
}
