// Package action implements the Local Action Simulator: pure, in-memory
// application of a Put or Delete action to an attrs.Item. No I/O, no
// clock reads — deterministic functions of (item, action) -> item, the
// same functions the journal replays and the in-memory backing store
// (backingstore/memory) applies writes with.
//
// Grounded on the Python source's dict_put/dict_delete pair
// (consistent_sdb.py), restructured as a tagged Action union so it
// round-trips through encoding/json the way the teacher's WAL entries
// (internal/store/wal.go: walEntry{Op, Key, Value}) do.
package action

import (
	"encoding/json"
	"fmt"

	"consistentsdb/internal/attrs"
)

// Kind discriminates the two Action variants.
type Kind string

const (
	KindPut    Kind = "put"
	KindDelete Kind = "delete"
)

// PutAttr describes how a single attribute is mutated by a Put action.
type PutAttr struct {
	Values  attrs.Set
	Replace bool
}

// Put replaces or unions values into one or more attributes.
type Put struct {
	Attributes map[string]PutAttr
}

// Delete removes an item, an attribute, or specific values from an
// attribute. All is the whole-item-delete case (spec: empty attributes map
// ⇒ item no longer exists). When All is false, an attribute present with
// an empty Set is the whole-attribute-delete case; a non-empty Set is the
// partial-values-delete case.
type Delete struct {
	All        bool
	Attributes map[string]attrs.Set
}

// Action is a tagged union over Put and Delete, serializable so the
// journal can store it and replay it later in the same process.
type Action struct {
	Kind   Kind
	Put    *Put
	Delete *Delete
}

// NewPut wraps a Put as an Action.
func NewPut(p Put) Action { return Action{Kind: KindPut, Put: &p} }

// NewDelete wraps a Delete as an Action.
func NewDelete(d Delete) Action { return Action{Kind: KindDelete, Delete: &d} }

// Apply dispatches to ApplyPut or ApplyDelete according to a.Kind.
func Apply(item attrs.Item, a Action) (attrs.Item, error) {
	switch a.Kind {
	case KindPut:
		if a.Put == nil {
			return nil, fmt.Errorf("action: Put action with nil payload")
		}
		return ApplyPut(item, *a.Put), nil
	case KindDelete:
		if a.Delete == nil {
			return nil, fmt.Errorf("action: Delete action with nil payload")
		}
		return ApplyDelete(item, *a.Delete), nil
	default:
		return nil, fmt.Errorf("action: unknown kind %q", a.Kind)
	}
}

// --- JSON wire format -------------------------------------------------
//
// attrs.Set has no exported fields, so it needs its own (de)serialization;
// everything else here is a plain json-tagged marshal of the wire structs
// below, since the journal's format only needs to survive within this one
// process (spec: "a self-describing format readable by the same process").

type wireSet []string

func setToWire(s attrs.Set) wireSet { return wireSet(s.Values()) }

func wireToSet(w wireSet) attrs.Set { return attrs.NewSetFromSlice(w) }

type wirePutAttr struct {
	Values  wireSet `json:"values"`
	Replace bool    `json:"replace"`
}

type wireAction struct {
	Kind       Kind                   `json:"kind"`
	PutAttrs   map[string]wirePutAttr `json:"put_attrs,omitempty"`
	DeleteAll  bool                   `json:"delete_all,omitempty"`
	DeleteAttr map[string]wireSet     `json:"delete_attrs,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (a Action) MarshalJSON() ([]byte, error) {
	w := wireAction{Kind: a.Kind}
	switch a.Kind {
	case KindPut:
		if a.Put == nil {
			return nil, fmt.Errorf("action: marshal Put action with nil payload")
		}
		w.PutAttrs = make(map[string]wirePutAttr, len(a.Put.Attributes))
		for name, pa := range a.Put.Attributes {
			w.PutAttrs[name] = wirePutAttr{Values: setToWire(pa.Values), Replace: pa.Replace}
		}
	case KindDelete:
		if a.Delete == nil {
			return nil, fmt.Errorf("action: marshal Delete action with nil payload")
		}
		w.DeleteAll = a.Delete.All
		w.DeleteAttr = make(map[string]wireSet, len(a.Delete.Attributes))
		for name, s := range a.Delete.Attributes {
			w.DeleteAttr[name] = setToWire(s)
		}
	default:
		return nil, fmt.Errorf("action: marshal unknown kind %q", a.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Action) UnmarshalJSON(data []byte) error {
	var w wireAction
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	a.Kind = w.Kind
	switch w.Kind {
	case KindPut:
		p := Put{Attributes: make(map[string]PutAttr, len(w.PutAttrs))}
		for name, wa := range w.PutAttrs {
			p.Attributes[name] = PutAttr{Values: wireToSet(wa.Values), Replace: wa.Replace}
		}
		a.Put = &p
	case KindDelete:
		d := Delete{All: w.DeleteAll, Attributes: make(map[string]attrs.Set, len(w.DeleteAttr))}
		for name, ws := range w.DeleteAttr {
			d.Attributes[name] = wireToSet(ws)
		}
		a.Delete = &d
	default:
		return fmt.Errorf("action: unmarshal unknown kind %q", w.Kind)
	}
	return nil
}
