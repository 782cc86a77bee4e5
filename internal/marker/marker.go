// Package marker implements the Marker Protocol: the reserved attribute
// every mutating Engine call stamps onto an item so a subsequent read can
// recover the baseline timestamp to replay the journal against.
//
// Grounded on the Python source's last_changed_attribute_key — the
// attribute name is a single well-known prefix plus a process-identifying
// server_id, so two processes with distinct server IDs never collide.
package marker

import (
	"strings"

	"consistentsdb/internal/action"
	"consistentsdb/internal/attrs"
	"consistentsdb/internal/timestamp"
)

// Prefix is the reserved attribute-name prefix. Callers must not read or
// write an attribute under this prefix directly; the engine strips it from
// anything returned to a caller.
const Prefix = "last_changed::"

// AttributeName returns the marker attribute name for serverID.
func AttributeName(serverID string) string {
	return Prefix + serverID
}

// IsMarker reports whether name is a marker attribute (for any server ID),
// used when stripping reserved attributes from a backing-store projection.
func IsMarker(name string) bool {
	return strings.HasPrefix(name, Prefix)
}

// PutAttr builds the replace-true marker PutAttr that every mutating call
// appends to its outgoing Put.
func PutAttr(ts timestamp.Timestamp) action.PutAttr {
	s := attrs.EmptySet()
	s.Add(ts.String())
	return action.PutAttr{Values: s, Replace: true}
}

// Extract reads and strips the marker attribute for serverID out of item,
// returning the baseline timestamp it carried and whether one was present
// at all. A present-but-malformed marker value is treated as absent: spec
// says only a present, well-formed marker triggers replay, and a process
// that has never mutated this item (or whose journal window has fully
// elapsed) is not an error condition.
func Extract(item attrs.Item, serverID string) (timestamp.Timestamp, bool) {
	name := AttributeName(serverID)
	s, ok := item[name]
	delete(item, name)
	if !ok || s.Empty() {
		return timestamp.Timestamp{}, false
	}
	values := s.Values()
	ts, err := timestamp.Parse(values[0])
	if err != nil {
		return timestamp.Timestamp{}, false
	}
	return ts, true
}

// StripAll removes every marker attribute (any server ID) from item. The
// engine uses this when returning select() rows, which may carry markers
// for server IDs other than this process's own if two processes share a
// domain (their markers never interfere, per spec, but they must still not
// leak to callers as ordinary attributes).
func StripAll(item attrs.Item) {
	for name := range item {
		if IsMarker(name) {
			delete(item, name)
		}
	}
}
