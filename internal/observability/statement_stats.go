// Package observability provides statement statistics for monitoring the engine.
package observability

import (
	"sort"
	"sync"
	"time"

	"github.com/minirel/minirel/internal/errors"
)

// StatementStats tracks per-kind statement counters and predicate column
// frequency, split by index-backed lookups and full scans.
type StatementStats struct {
	mu            sync.RWMutex
	kinds         map[string]*KindStats
	predicateFreq map[string]*ColumnStats
	window        time.Duration
	started       time.Time
}

// KindStats holds counters for one statement kind (CREATE, INSERT, ...).
type KindStats struct {
	Kind          string           `json:"kind"`
	Executed      int64            `json:"executed"`
	Failed        int64            `json:"failed"`
	TotalDuration time.Duration    `json:"total_duration_ns"`
	ErrorCodes    map[string]int64 `json:"error_codes,omitempty"`
}

// ColumnStats holds predicate statistics for one table column.
type ColumnStats struct {
	Table     string    `json:"table"`
	Column    string    `json:"column"`
	Frequency int64     `json:"frequency"`
	IndexHits int64     `json:"index_hits"`
	Scans     int64     `json:"scans"`
	LastSeen  time.Time `json:"last_seen"`
}

// Snapshot is a point-in-time copy of all statistics.
type Snapshot struct {
	UptimeSeconds float64       `json:"uptime_seconds"`
	Statements    []KindStats   `json:"statements"`
	TopPredicates []ColumnStats `json:"top_predicates"`
}

// NewStatementStats creates a new statistics tracker.
// window: age after which idle predicate entries are pruned (e.g., 1 hour)
func NewStatementStats(window time.Duration) *StatementStats {
	return &StatementStats{
		kinds:         make(map[string]*KindStats),
		predicateFreq: make(map[string]*ColumnStats),
		window:        window,
		started:       time.Now(),
	}
}

// RecordStatement records one executed statement of the given kind.
// A non-nil err counts as a failure under its error code.
func (s *StatementStats) RecordStatement(kind string, d time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ks, ok := s.kinds[kind]
	if !ok {
		ks = &KindStats{Kind: kind, ErrorCodes: make(map[string]int64)}
		s.kinds[kind] = ks
	}

	ks.Executed++
	ks.TotalDuration += d
	if err != nil {
		ks.Failed++
		code := errors.GetCode(err)
		if code == "" {
			code = errors.CodeUnexpected
		}
		ks.ErrorCodes[code]++
	}
}

// RecordPredicate records an equality predicate on table.column.
// indexed reports whether the lookup was served by a hash index.
// This method is O(1) and thread-safe.
func (s *StatementStats) RecordPredicate(table, column string, indexed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := table + "." + column
	cs, ok := s.predicateFreq[key]
	if !ok {
		cs = &ColumnStats{Table: table, Column: column}
		s.predicateFreq[key] = cs
	}

	cs.Frequency++
	cs.LastSeen = time.Now()
	if indexed {
		cs.IndexHits++
	} else {
		cs.Scans++
	}
}

// GetTopPredicates returns the top n predicate columns by frequency.
// Ties are broken by table.column name so the order is stable.
func (s *StatementStats) GetTopPredicates(n int) []ColumnStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || len(s.predicateFreq) == 0 {
		return []ColumnStats{}
	}

	stats := make([]ColumnStats, 0, len(s.predicateFreq))
	for _, cs := range s.predicateFreq {
		stats = append(stats, *cs)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		if stats[i].Table != stats[j].Table {
			return stats[i].Table < stats[j].Table
		}
		return stats[i].Column < stats[j].Column
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Kind returns a copy of the counters for one statement kind.
func (s *StatementStats) Kind(kind string) (KindStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ks, ok := s.kinds[kind]
	if !ok {
		return KindStats{}, false
	}
	return copyKind(ks), true
}

// Snapshot returns a deep copy of all statistics, statements sorted by kind.
func (s *StatementStats) Snapshot(topN int) Snapshot {
	s.mu.RLock()
	kinds := make([]KindStats, 0, len(s.kinds))
	for _, ks := range s.kinds {
		kinds = append(kinds, copyKind(ks))
	}
	uptime := time.Since(s.started)
	s.mu.RUnlock()

	sort.Slice(kinds, func(i, j int) bool { return kinds[i].Kind < kinds[j].Kind })

	return Snapshot{
		UptimeSeconds: uptime.Seconds(),
		Statements:    kinds,
		TopPredicates: s.GetTopPredicates(topN),
	}
}

func copyKind(ks *KindStats) KindStats {
	cp := *ks
	cp.ErrorCodes = make(map[string]int64, len(ks.ErrorCodes))
	for code, n := range ks.ErrorCodes {
		cp.ErrorCodes[code] = n
	}
	return cp
}

// Prune removes predicate entries where time.Since(LastSeen) > window.
// This should be called periodically.
func (s *StatementStats) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := time.Now().Add(-s.window)
	for key, cs := range s.predicateFreq {
		if cs.LastSeen.Before(threshold) {
			delete(s.predicateFreq, key)
		}
	}
}

// Window returns the pruning window.
func (s *StatementStats) Window() time.Duration {
	return s.window
}
