package attrs

// Item is an in-memory item: a mapping from attribute name to the set of
// values held under it. An attribute with an empty Set is equivalent to an
// absent attribute throughout this package and its callers.
type Item map[string]Set

// NewItem returns an empty, ready-to-use Item.
func NewItem() Item {
	return make(Item)
}

// Clone returns a deep copy of the item, so callers (notably the Local
// Action Simulator) never mutate a caller-owned Item in place.
func (it Item) Clone() Item {
	out := make(Item, len(it))
	for k, v := range it {
		out[k] = v.Clone()
	}
	return out
}

// Prune removes attributes whose set is empty, in place, and returns it for
// chaining. The Simulator calls this on its own working copy after every
// delete so "zero values left" and "attribute absent" stay equivalent.
func (it Item) Prune() Item {
	for k, v := range it {
		if v.Empty() {
			delete(it, k)
		}
	}
	return it
}

// Equal reports whether two items hold the same attributes with set-equal
// values. Attributes present with an empty set are treated as absent, per
// the data model. Equal does not mutate either argument.
func (it Item) Equal(other Item) bool {
	a, b := it.Clone().Prune(), other.Clone().Prune()
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		ov, ok := b[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
