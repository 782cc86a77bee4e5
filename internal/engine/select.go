package engine

import (
	"context"
	"fmt"

	"consistentsdb/internal/backingstore"
	"consistentsdb/internal/marker"
)

// Select implements spec §4.4's select(). If the projection is a list of
// attribute names or the literal '*' (ProjectionAll), the marker is
// requested (appended to the projection list, or already present in a
// full-item fetch) and every result item is replayed via
// Journal.ReplaySince using its own marker timestamp, then every marker
// attribute is stripped. If the projection is itemName() or count(*), no
// replay is performed and no attributes are fetched in the first place —
// a documented weakness (spec §4.4: "such projections reflect only the
// backing store's current replica").
//
// Pagination: every page is fetched before any replay is applied, per spec
// ("the marker/replay logic is applied once, after all pages are
// gathered, per item").
func (e *Engine) Select(ctx context.Context, q SelectQuery) ([]backingstore.Row, error) {
	markerAttr := e.markerAttr()

	execProjection := q.Projection
	if q.Projection.IsAttrs() {
		execProjection = q.Projection.WithAttr(markerAttr)
	}

	cur, err := e.backing.Select(ctx, backingstore.Query{
		Domain:     q.Domain,
		Expression: buildExpression(q.Where, q.OrderBy),
		Projection: execProjection,
		Limit:      q.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: select: %w", err)
	}

	var rows []backingstore.Row
	for {
		page, next, err := cur.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("engine: select: %w", err)
		}
		rows = append(rows, page...)
		if next == "" {
			break
		}
	}

	if !q.Projection.IsAttrs() && !q.Projection.IsAll() {
		return rows, nil
	}

	for i, row := range rows {
		baseline, present := marker.Extract(row.Attributes, e.cfg.ServerID)
		if !present {
			marker.StripAll(row.Attributes)
			continue
		}
		replayed, err := e.journal.ReplaySince(ctx, q.Domain, row.ItemName, baseline, row.Attributes)
		if err != nil {
			e.logger.Printf("engine: select: replay_since failed for %s/%s, returning backing-store-fresh value: %v", q.Domain, row.ItemName, err)
			replayed = row.Attributes
		} else {
			e.stats.addReplay()
		}
		marker.StripAll(replayed)
		rows[i].Attributes = replayed
	}
	return rows, nil
}

// buildExpression combines a caller-supplied where clause and order-by
// clause into the BackingStore's single opaque Expression field. SimpleDB's
// own query-string syntax (backtick-quoted attribute names, `where`/`order
// by` keywords) is wire-transport detail out of scope for this layer (spec
// §1); a BackingStore implementation that does speak SimpleDB is free to
// interpret this string however its transport requires.
func buildExpression(where, orderBy string) string {
	switch {
	case where == "":
		return ""
	case orderBy == "":
		return where
	default:
		return where + " order by " + orderBy
	}
}
