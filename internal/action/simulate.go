package action

import "consistentsdb/internal/attrs"

// ApplyPut applies a Put action to item, returning a new item. For each
// attribute: if Replace is set, the new values replace the existing set
// outright; otherwise the new values are unioned into whatever the
// attribute already held (absent treated as the empty set). item is never
// mutated.
func ApplyPut(item attrs.Item, p Put) attrs.Item {
	out := item.Clone()
	for name, pa := range p.Attributes {
		if pa.Replace {
			out[name] = pa.Values.Clone()
			continue
		}
		existing, ok := out[name]
		if !ok {
			existing = attrs.EmptySet()
		}
		out[name] = existing.Union(pa.Values)
	}
	return out.Prune()
}

// ApplyDelete applies a Delete action to item, returning a new item.
//
//   - d.All (empty attributes map in the wire sense) deletes the whole
//     item: the result is the empty Item.
//   - an attribute present with an empty Set is removed entirely.
//   - an attribute present with a non-empty Set has exactly those values
//     removed from it.
//
// Any attribute left with zero values after processing is dropped, so
// "present with an empty set" and "absent" never diverge on the way out.
// item is never mutated.
func ApplyDelete(item attrs.Item, d Delete) attrs.Item {
	if d.All {
		return attrs.NewItem()
	}
	out := item.Clone()
	for name, values := range d.Attributes {
		existing, ok := out[name]
		if !ok {
			continue
		}
		if values.Empty() {
			delete(out, name)
			continue
		}
		out[name] = existing.Difference(values)
	}
	return out.Prune()
}
