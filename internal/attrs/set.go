// Package attrs implements the attribute-value data model shared by every
// layer of the consistency engine: a Set is an unordered, duplicate-free
// collection of strings, and an Item is a mapping from attribute name to
// Set. These two types are the vocabulary every other package in this
// module speaks — the Local Action Simulator, the journal, the backing
// store and the engine all operate on attrs.Item.
//
// Sets are unordered per the backing store's own semantics, but Set
// preserves insertion order on Values() as a read-path nicety; tests must
// compare sets with Equal, never by sequence.
package attrs

import (
	"encoding/json"
	"fmt"
)

// Set is an insertion-ordered, duplicate-free collection of strings.
// The zero value is an empty set ready to use; EmptySet, NewSetFromSlice
// and NewSet also build one.
type Set struct {
	order []string
	index map[string]int
}

// EmptySet returns a new, empty Set.
func EmptySet() Set {
	return Set{index: make(map[string]int)}
}

// NewSetFromSlice builds a Set from a slice of strings, deduplicating and
// preserving first-seen order.
func NewSetFromSlice(values []string) Set {
	s := Set{index: make(map[string]int, len(values))}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts v into the set if not already present. Returns true if the
// set changed.
func (s *Set) Add(v string) bool {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = len(s.order)
	s.order = append(s.order, v)
	return true
}

// Remove deletes v from the set if present. Returns true if the set
// changed.
func (s *Set) Remove(v string) bool {
	i, ok := s.index[v]
	if !ok {
		return false
	}
	s.order = append(s.order[:i], s.order[i+1:]...)
	delete(s.index, v)
	for k, idx := range s.index {
		if idx > i {
			s.index[k] = idx - 1
		}
	}
	return true
}

// Contains reports whether v is a member of the set.
func (s Set) Contains(v string) bool {
	_, ok := s.index[v]
	return ok
}

// Len returns the number of elements in the set.
func (s Set) Len() int {
	return len(s.order)
}

// Empty reports whether the set has no elements. An attribute whose set is
// empty is, per the data model, equivalent to an absent attribute.
func (s Set) Empty() bool {
	return len(s.order) == 0
}

// Values returns the set's elements in insertion order. The returned slice
// is a copy; mutating it does not affect the set.
func (s Set) Values() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	return NewSetFromSlice(s.order)
}

// Union returns a new set containing the elements of s and other.
func (s Set) Union(other Set) Set {
	out := s.Clone()
	for _, v := range other.order {
		out.Add(v)
	}
	return out
}

// Difference returns a new set containing the elements of s that are not in
// other.
func (s Set) Difference(other Set) Set {
	out := EmptySet()
	for _, v := range s.order {
		if !other.Contains(v) {
			out.Add(v)
		}
	}
	return out
}

// Equal reports whether s and other contain exactly the same elements,
// ignoring order.
func (s Set) Equal(other Set) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, v := range s.order {
		if !other.Contains(v) {
			return false
		}
	}
	return true
}

// String renders the set for debugging/log output.
func (s Set) String() string {
	return fmt.Sprintf("%v", s.order)
}

// MarshalJSON renders the set as a plain JSON array of its values, in
// insertion order. Set has no exported fields, so json.Marshal would
// otherwise produce "{}".
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

// UnmarshalJSON rebuilds the set from a JSON array of strings.
func (s *Set) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewSetFromSlice(values)
	return nil
}
