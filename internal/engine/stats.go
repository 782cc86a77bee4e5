package engine

import "sync/atomic"

// Stats holds atomic counters mirroring the two module-level counters the
// Python source's aws_simpledb/status.py kept (latest_changes_applied,
// random_expired_items_deletes), folded into the engine rather than a
// standalone module so callers can observe replay/GC activity without
// pulling in a metrics collector dependency — none of the retrieval pack's
// storage-engine teachers reach for one at this granularity.
type Stats struct {
	replays        atomic.Int64
	randomCleanups atomic.Int64
}

func (s *Stats) addReplay()        { s.replays.Add(1) }
func (s *Stats) addRandomCleanup() { s.randomCleanups.Add(1) }

// StatsSnapshot is a point-in-time copy of Stats, safe to read without
// further synchronization.
type StatsSnapshot struct {
	// ReplaysPerformed counts successful Journal.ReplaySince calls: one per
	// Get that found this process's marker, and one per Select row that
	// carried it.
	ReplaysPerformed int64
	// RandomCleanupsRun counts the Journal.RandomCleanup calls made by
	// engine.New's startup sampling that returned without error.
	RandomCleanupsRun int64
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		ReplaysPerformed:  s.replays.Load(),
		RandomCleanupsRun: s.randomCleanups.Load(),
	}
}
