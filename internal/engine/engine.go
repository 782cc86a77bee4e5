// Package engine implements the Consistency Engine of spec §4.4 — the
// public surface (put, delete, get, select) that makes reads against a
// possibly-stale BackingStore reflect this process's own prior writes.
//
// Grounded on the teacher's constructor-injected collaborator style
// (distinguishing it from the Python source's module-level
// connection/journals_db/logs_db globals — see DESIGN.md Open Questions):
// cluster.Replicator and api.Handler are both plain structs built with a
// New constructor taking every dependency explicitly, never reaching for
// package state. Engine follows the same shape.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"consistentsdb/internal/action"
	"consistentsdb/internal/attrs"
	"consistentsdb/internal/backingstore"
	"consistentsdb/internal/config"
	"consistentsdb/internal/journal"
	"consistentsdb/internal/marker"
	"consistentsdb/internal/timestamp"
)

// ErrMalformedAction is the sentinel for spec §7's MalformedAction. Engine
// methods take values already normalized to attrs.Set, so none of them
// returns it; a caller-supplied value that cannot be interpreted as a set of
// strings is rejected earlier, by attrs.NewSet with attrs.ErrNotSetLike.
var ErrMalformedAction = errors.New("engine: malformed action")

// PutRecords is the put() input shape of spec §4.4: domain -> item -> the
// attributes to write.
type PutRecords map[string]map[string]action.Put

// DeleteRecords is the delete() input shape of spec §4.4: domain -> item ->
// what to delete (AllAttributes via Delete.All, or a partial/whole-attribute
// spec via Delete.Attributes).
type DeleteRecords map[string]map[string]action.Delete

// SelectQuery is the select() input of spec §4.4. Projection reuses
// backingstore.Projection, since it is already the exhaustive sum type
// ('*' / itemName() / count(*) / attribute list) spec §9 asks for.
//
// Where/OrderBy are combined into the BackingStore's opaque Expression
// field rather than assembled into a literal SimpleDB query string with
// backtick-quoted attribute names: that wire-level quoting is SimpleDB
// transport detail, explicitly out of scope per spec §1 (see DESIGN.md
// Open Questions).
type SelectQuery struct {
	Domain     string
	Where      string
	OrderBy    string
	Limit      int
	Projection backingstore.Projection
}

// Engine is the Consistency Engine. Build one with New.
type Engine struct {
	backing backingstore.Store
	journal *journal.Journal
	cfg     config.Config
	logger  *log.Logger
	stats   Stats
}

// New builds an Engine and runs cfg.RandomJournalCleans startup cleanup
// samples — the explicit, testable equivalent of the Python module's
// import-time `for i in range(settings.random_journal_cleans):
// random_journal_cleaning()` loop (see DESIGN.md Open Questions). cfg must
// already be valid (config.Validate); New does not re-validate it.
func New(ctx context.Context, backing backingstore.Store, j *journal.Journal, cfg config.Config, logger *log.Logger) (*Engine, error) {
	if logger == nil {
		logger = log.Default()
	}
	e := &Engine{backing: backing, journal: j, cfg: cfg, logger: logger}

	for i := 0; i < cfg.RandomJournalCleans; i++ {
		if err := j.RandomCleanup(ctx); err != nil {
			if errors.Is(err, journal.ErrUnavailable) {
				e.logger.Printf("engine: startup journal cleanup %d/%d skipped: %v", i+1, cfg.RandomJournalCleans, err)
				continue
			}
			return nil, fmt.Errorf("engine: startup journal cleanup: %w", err)
		}
		e.stats.addRandomCleanup()
	}
	return e, nil
}

func (e *Engine) markerAttr() string {
	return marker.AttributeName(e.cfg.ServerID)
}

func clonePut(p action.Put) action.Put {
	out := action.Put{Attributes: make(map[string]action.PutAttr, len(p.Attributes)+1)}
	for name, spec := range p.Attributes {
		out.Attributes[name] = spec
	}
	return out
}

func toBackingAttrMap(p action.Put) backingstore.AttrMap {
	m := make(backingstore.AttrMap, len(p.Attributes))
	for name, spec := range p.Attributes {
		m[name] = backingstore.AttrSpec{Values: spec.Values, Replace: spec.Replace}
	}
	return m
}

// Put implements spec §4.4's put(): one timestamp for the whole batch, the
// marker stamped into every item before the backing-store call, domains
// with more than one item written via BatchPut, and a best-effort,
// non-fatal journal append per item afterward.
func (e *Engine) Put(ctx context.Context, records PutRecords) error {
	ts := timestamp.Now()
	markerAttr := e.markerAttr()

	for domain, items := range records {
		backingItems := make(map[string]backingstore.AttrMap, len(items))
		for item, put := range items {
			withMarker := clonePut(put)
			withMarker.Attributes[markerAttr] = marker.PutAttr(ts)
			backingItems[item] = toBackingAttrMap(withMarker)
		}

		if len(backingItems) > 1 {
			if err := e.backing.BatchPut(ctx, domain, backingItems); err != nil {
				return fmt.Errorf("engine: put: batch_put %s: %w", domain, err)
			}
		} else {
			for item, attrMap := range backingItems {
				if err := e.backing.Put(ctx, domain, item, attrMap); err != nil {
					return fmt.Errorf("engine: put: put %s/%s: %w", domain, item, err)
				}
			}
		}

		for item, put := range items {
			if err := e.journal.LogAction(ctx, domain, item, ts, action.NewPut(put)); err != nil {
				e.logger.Printf("engine: put: journal log_action failed for %s/%s (read-your-writes delayed): %v", domain, item, err)
			}
		}
	}
	return nil
}

// Delete implements spec §4.4's delete(): delete_attrs first (surfacing any
// failure immediately), then a fresh marker timestamp stamped after the
// delete so a whole-item delete is immediately re-stamped, then a
// best-effort journal append.
func (e *Engine) Delete(ctx context.Context, records DeleteRecords) error {
	markerAttr := e.markerAttr()

	for domain, items := range records {
		for item, del := range items {
			spec := backingstore.DeleteSpec{AllAttributes: del.All, Attributes: del.Attributes}
			if err := e.backing.DeleteAttrs(ctx, domain, item, spec); err != nil {
				return fmt.Errorf("engine: delete: delete_attrs %s/%s: %w", domain, item, err)
			}

			ts := timestamp.Now()
			markerPut := backingstore.AttrMap{markerAttr: backingstore.AttrSpec{Values: marker.PutAttr(ts).Values, Replace: true}}
			if err := e.backing.Put(ctx, domain, item, markerPut); err != nil {
				return fmt.Errorf("engine: delete: marker put %s/%s: %w", domain, item, err)
			}

			if err := e.journal.LogAction(ctx, domain, item, ts, action.NewDelete(del)); err != nil {
				e.logger.Printf("engine: delete: journal log_action failed for %s/%s (read-your-writes delayed): %v", domain, item, err)
			}
		}
	}
	return nil
}

// Get implements spec §4.4's get(): fetch from the backing store
// (requesting the marker), extract this process's marker and strip every
// marker attribute, and if this process's marker was present and
// non-empty, replay every journal entry recorded after its timestamp.
//
// A nil or empty projection requests every attribute. Journal unavailability
// never fails a read (spec §7): it falls back to the backing-store-fresh
// value.
func (e *Engine) Get(ctx context.Context, domain, item string, projection []string) (attrs.Item, error) {
	markerAttr := e.markerAttr()

	reqProjection := projection
	if len(projection) > 0 {
		reqProjection = append(append([]string{}, projection...), markerAttr)
	}

	raw, err := e.backing.GetAttrs(ctx, domain, item, reqProjection)
	if err != nil {
		return nil, fmt.Errorf("engine: get: get_attrs %s/%s: %w", domain, item, err)
	}

	baseline, present := marker.Extract(raw, e.cfg.ServerID)
	marker.StripAll(raw)
	if !present {
		return raw, nil
	}

	result, err := e.journal.ReplaySince(ctx, domain, item, baseline, raw)
	if err != nil {
		e.logger.Printf("engine: get: replay_since failed for %s/%s, returning backing-store-fresh value: %v", domain, item, err)
		return raw, nil
	}
	e.stats.addReplay()
	return result, nil
}

// CreateDomain forwards unmodified to the BackingStore, per spec §4.4.
func (e *Engine) CreateDomain(ctx context.Context, domain string) error {
	return e.backing.CreateDomain(ctx, domain)
}

// DeleteDomain forwards unmodified to the BackingStore, per spec §4.4.
func (e *Engine) DeleteDomain(ctx context.Context, domain string) error {
	return e.backing.DeleteDomain(ctx, domain)
}

// ListDomains forwards unmodified to the BackingStore, per spec §4.4.
func (e *Engine) ListDomains(ctx context.Context) ([]string, error) {
	return e.backing.ListDomains(ctx)
}

// HasDomain forwards unmodified to the BackingStore, per spec §4.4.
func (e *Engine) HasDomain(ctx context.Context, domain string) (bool, error) {
	return e.backing.HasDomain(ctx, domain)
}

// GetDomainMetadata forwards unmodified to the BackingStore, per spec §4.4.
func (e *Engine) GetDomainMetadata(ctx context.Context, domain string) (backingstore.DomainMetadata, error) {
	return e.backing.GetDomainMetadata(ctx, domain)
}

// Stats returns a point-in-time snapshot of replay/GC activity.
func (e *Engine) Stats() StatsSnapshot { return e.stats.Snapshot() }
