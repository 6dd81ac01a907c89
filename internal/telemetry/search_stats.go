package telemetry

import "sync/atomic"

// SearchStats is the process-wide query counter set. Every field is a
// lock-free atomic counter; RecordQuery is safe to call from concurrent
// search goroutines without any external synchronization, and Snapshot
// returns an immutable point-in-time copy. See DESIGN.md for why this uses
// atomics instead of a mutex-guarded buffer.
type SearchStats struct {
	totalQueries     atomic.Int64
	hybridQueries    atomic.Int64
	bm25OnlyQueries  atomic.Int64
	annSearches      atomic.Int64
	bruteSearches    atomic.Int64
	shortcutSkips    atomic.Int64
	zeroResultQueries atomic.Int64
}

// NewSearchStats returns a zeroed counter set.
func NewSearchStats() *SearchStats {
	return &SearchStats{}
}

// RecordQuery updates counters for one completed search. usedDense is
// whether a dense result list was produced at all; usedANN is whether the
// ANN path (vs. brute force) served it; skippedDense is whether the
// strong-signal shortcut skipped dense search
// entirely; zeroResults is whether the final result list was empty.
func (s *SearchStats) RecordQuery(usedDense, usedANN, skippedDense, zeroResults bool) {
	s.totalQueries.Add(1)
	if usedDense {
		s.hybridQueries.Add(1)
		if usedANN {
			s.annSearches.Add(1)
		} else {
			s.bruteSearches.Add(1)
		}
	} else {
		s.bm25OnlyQueries.Add(1)
	}
	if skippedDense {
		s.shortcutSkips.Add(1)
	}
	if zeroResults {
		s.zeroResultQueries.Add(1)
	}
}

// Snapshot is an immutable, point-in-time read of SearchStats.
type Snapshot struct {
	TotalQueries      int64
	HybridQueries     int64
	BM25OnlyQueries   int64
	ANNSearches       int64
	BruteForceSearches int64
	ShortcutSkips     int64
	ZeroResultQueries int64
}

// Snapshot reads every counter. Because each field is read independently,
// concurrent RecordQuery calls can make a snapshot's fields individually
// consistent but not perfectly mutually consistent at a single instant --
// acceptable for an observability surface.
func (s *SearchStats) Snapshot() Snapshot {
	return Snapshot{
		TotalQueries:       s.totalQueries.Load(),
		HybridQueries:      s.hybridQueries.Load(),
		BM25OnlyQueries:    s.bm25OnlyQueries.Load(),
		ANNSearches:        s.annSearches.Load(),
		BruteForceSearches: s.bruteSearches.Load(),
		ShortcutSkips:      s.shortcutSkips.Load(),
		ZeroResultQueries:  s.zeroResultQueries.Load(),
	}
}
