// Package memory implements an in-memory backingstore.Store, for unit tests
// and the CLI's standalone demo mode.
//
// Shape is grounded on the teacher's internal/store.Store: all state (the
// visible maps, the staged maps and the pending-write queue) is guarded by
// one sync.Mutex, and writes go straight to memory (there is no WAL here —
// spec.md explicitly puts durability of the backing store itself out of
// scope). Repurposed from a flat map[string]Value KV store to the
// domain/item/attribute shape backingstore.Store requires.
//
// Unlike the teacher's Store, this one can simulate the one property the
// consistency engine actually cares about: replica lag. A write's effect is
// queued and only becomes visible to readers once its configured lag has
// elapsed, modeling the "backing store might not reflect your own last
// write yet" staleness this whole repo exists to paper over.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"consistentsdb/internal/action"
	"consistentsdb/internal/attrs"
	"consistentsdb/internal/backingstore"
)

// pendingWrite is one queued mutation: the full resulting item state,
// waiting to become visible at visibleAt.
type pendingWrite struct {
	domain, item string
	state        attrs.Item
	deleted      bool
	visibleAt    time.Time
}

// Store is an in-memory backingstore.Store. The zero value is not usable;
// build one with New or NewWithClock.
type Store struct {
	mu      sync.Mutex
	now     func() time.Time
	lag     time.Duration
	domains map[string]map[string]attrs.Item // committed, visible state
	staging map[string]map[string]attrs.Item // latest truth, including not-yet-visible writes
	pending []pendingWrite
}

// New returns an empty Store with no simulated replica lag.
func New() *Store {
	return NewWithClock(time.Now, 0)
}

// NewWithClock returns an empty Store using now for scheduling write
// visibility, delaying every write's visibility to readers by lag. lag=0
// makes every write visible immediately, matching New.
func NewWithClock(now func() time.Time, lag time.Duration) *Store {
	return &Store{
		now:     now,
		lag:     lag,
		domains: make(map[string]map[string]attrs.Item),
		staging: make(map[string]map[string]attrs.Item),
	}
}

// flush applies any queued mutation whose visibility deadline has passed, in
// the order they were written. Caller must hold s.mu.
func (s *Store) flush() {
	now := s.now()
	i := 0
	for ; i < len(s.pending); i++ {
		w := s.pending[i]
		if w.visibleAt.After(now) {
			break
		}
		items := s.domains[w.domain]
		if items == nil {
			items = make(map[string]attrs.Item)
			s.domains[w.domain] = items
		}
		if w.deleted {
			delete(items, w.item)
		} else {
			items[w.item] = w.state
		}
	}
	s.pending = s.pending[i:]
}

func (s *Store) stagedItem(domain, item string) attrs.Item {
	if items, ok := s.staging[domain]; ok {
		if it, ok := items[item]; ok {
			return it.Clone()
		}
	}
	if items, ok := s.domains[domain]; ok {
		if it, ok := items[item]; ok {
			return it.Clone()
		}
	}
	return attrs.NewItem()
}

func (s *Store) setStaged(domain, item string, it attrs.Item) {
	items := s.staging[domain]
	if items == nil {
		items = make(map[string]attrs.Item)
		s.staging[domain] = items
	}
	items[item] = it
}

func (s *Store) enqueue(domain, item string, state attrs.Item, deleted bool) {
	s.pending = append(s.pending, pendingWrite{
		domain:    domain,
		item:      item,
		state:     state,
		deleted:   deleted,
		visibleAt: s.now().Add(s.lag),
	})
}

// Put implements backingstore.Store.
func (s *Store) Put(_ context.Context, domain, item string, attributes backingstore.AttrMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.domains[domain]; !ok {
		if _, ok := s.staging[domain]; !ok {
			return fmt.Errorf("%w: %s", backingstore.ErrDomainNotFound, domain)
		}
	}

	put := action.Put{Attributes: make(map[string]action.PutAttr, len(attributes))}
	for name, spec := range attributes {
		put.Attributes[name] = action.PutAttr{Values: spec.Values, Replace: spec.Replace}
	}

	current := s.stagedItem(domain, item)
	next := action.ApplyPut(current, put)
	s.setStaged(domain, item, next)
	s.enqueue(domain, item, next, false)
	return nil
}

// BatchPut implements backingstore.Store. Per spec §6, cross-item atomicity
// is not guaranteed; here each item is applied independently.
func (s *Store) BatchPut(ctx context.Context, domain string, items map[string]backingstore.AttrMap) error {
	for item, attributes := range items {
		if err := s.Put(ctx, domain, item, attributes); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAttrs implements backingstore.Store.
func (s *Store) DeleteAttrs(_ context.Context, domain, item string, spec backingstore.DeleteSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	del := action.Delete{All: spec.AllAttributes, Attributes: spec.Attributes}
	current := s.stagedItem(domain, item)
	next := action.ApplyDelete(current, del)
	s.setStaged(domain, item, next)
	s.enqueue(domain, item, next, len(next) == 0)
	return nil
}

// GetAttrs implements backingstore.Store. A missing item reads as an empty
// attrs.Item, per spec §4.4.
func (s *Store) GetAttrs(_ context.Context, domain, item string, projection []string) (attrs.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flush()

	it := attrs.NewItem()
	if items, ok := s.domains[domain]; ok {
		if found, ok := items[item]; ok {
			it = found.Clone()
		}
	}
	if len(projection) == 0 {
		return it, nil
	}
	out := attrs.NewItem()
	for _, name := range projection {
		if v, ok := it[name]; ok {
			out[name] = v.Clone()
		}
	}
	return out, nil
}

// CreateDomain implements backingstore.Store.
func (s *Store) CreateDomain(_ context.Context, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.domains[domain]; !ok {
		s.domains[domain] = make(map[string]attrs.Item)
	}
	return nil
}

// DeleteDomain implements backingstore.Store.
func (s *Store) DeleteDomain(_ context.Context, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.domains, domain)
	delete(s.staging, domain)
	kept := s.pending[:0]
	for _, w := range s.pending {
		if w.domain != domain {
			kept = append(kept, w)
		}
	}
	s.pending = kept
	return nil
}

// ListDomains implements backingstore.Store.
func (s *Store) ListDomains(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.domains))
	for name := range s.domains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// HasDomain implements backingstore.Store.
func (s *Store) HasDomain(_ context.Context, domain string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.domains[domain]
	return ok, nil
}

// GetDomainMetadata implements backingstore.Store.
func (s *Store) GetDomainMetadata(_ context.Context, domain string) (backingstore.DomainMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flush()
	items, ok := s.domains[domain]
	if !ok {
		return backingstore.DomainMetadata{}, fmt.Errorf("%w: %s", backingstore.ErrDomainNotFound, domain)
	}
	var meta backingstore.DomainMetadata
	meta.ItemCount = int64(len(items))
	for _, it := range items {
		meta.AttributeCount += int64(len(it))
	}
	return meta, nil
}

// Select implements backingstore.Store. Expression filtering is out of
// scope (spec §1's "query language parsing"); Select returns every item in
// domain, in stable (sorted-by-name) order, projected per q.Projection and
// paginated per q.Limit.
func (s *Store) Select(_ context.Context, q backingstore.Query) (backingstore.SelectCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flush()

	items, ok := s.domains[q.Domain]
	if !ok {
		return &cursor{}, nil
	}
	names := make([]string, 0, len(items))
	for name := range items {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]backingstore.Row, 0, len(names))
	for _, name := range names {
		rows = append(rows, projectRow(name, items[name], q.Projection))
	}

	if q.Projection.IsCount() {
		rows = []backingstore.Row{{Attributes: attrs.Item{
			"count": attrs.NewSetFromSlice([]string{strconv.Itoa(len(names))}),
		}}}
	}

	return &cursor{rows: rows, limit: q.Limit, offset: offsetFromToken(q.NextToken)}, nil
}

func projectRow(name string, it attrs.Item, p backingstore.Projection) backingstore.Row {
	switch {
	case p.IsItemName():
		return backingstore.Row{ItemName: name}
	case p.IsAll():
		return backingstore.Row{ItemName: name, Attributes: it.Clone()}
	default:
		out := attrs.NewItem()
		for _, a := range p.Attrs() {
			if v, ok := it[a]; ok {
				out[a] = v.Clone()
			}
		}
		return backingstore.Row{ItemName: name, Attributes: out}
	}
}

func offsetFromToken(token string) int {
	if token == "" {
		return 0
	}
	n, err := strconv.Atoi(token)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// cursor is the in-memory backingstore.SelectCursor: a pre-computed row
// slice paginated by index, with NextToken carrying the next offset as a
// decimal string.
type cursor struct {
	rows   []backingstore.Row
	limit  int
	offset int
}

func (c *cursor) Next(_ context.Context) ([]backingstore.Row, string, error) {
	if c.offset >= len(c.rows) {
		return nil, "", nil
	}
	limit := c.limit
	if limit <= 0 || c.offset+limit > len(c.rows) {
		limit = len(c.rows) - c.offset
	}
	page := c.rows[c.offset : c.offset+limit]
	c.offset += limit

	next := ""
	if c.offset < len(c.rows) {
		next = strconv.Itoa(c.offset)
	}
	return page, next, nil
}
