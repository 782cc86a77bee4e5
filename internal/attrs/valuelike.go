package attrs

import (
	"errors"
	"fmt"
)

// ErrNotSetLike is returned by NewSet when a caller-supplied value cannot
// be interpreted as a set of strings. Per spec, this is the one case the
// consistency layer surfaces immediately, before any remote call.
var ErrNotSetLike = errors.New("attrs: value is not set-like")

// NewSet normalizes the caller-facing "values" shapes accepted throughout
// this module's public API into a Set:
//
//	string              -> a one-element set
//	[]string            -> a set built from the slice elements
//	map[string]struct{} -> a set built from the map's keys
//	Set                 -> returned as-is
//	nil                 -> the empty set
//
// Anything else is ErrNotSetLike. This is the ValueLike adapter: callers
// mix scalars, lists and sets freely, and every public entry point
// normalizes at this single boundary.
func NewSet(v any) (Set, error) {
	switch t := v.(type) {
	case Set:
		return t, nil
	case string:
		s := EmptySet()
		s.Add(t)
		return s, nil
	case []string:
		return NewSetFromSlice(t), nil
	case map[string]struct{}:
		s := EmptySet()
		for k := range t {
			s.Add(k)
		}
		return s, nil
	case nil:
		return EmptySet(), nil
	default:
		return Set{}, fmt.Errorf("%w: %T", ErrNotSetLike, v)
	}
}
