// Package snapshot holds the derived analytics tables behind a single
// atomic pointer. A recompute builds a complete new Derived value and swaps
// it in; readers never observe a mix of old and new data, and a failed
// recompute leaves the previous snapshot untouched.
package snapshot

import (
	"sync/atomic"
	"time"

	"trade-intel-lab/internal/domain"
	"trade-intel-lab/internal/health"
	"trade-intel-lab/internal/intel"
)

// Derived is one complete, immutable snapshot of every derived table.
type Derived struct {
	Version    uint64
	ComputedAt time.Time
	// LedgerSize is the number of resolved trades the snapshot was built from.
	LedgerSize int

	// Overall is the all-trades aggregate feeding platform health.
	Overall *domain.EngineMetrics

	EngineMetrics []domain.EngineMetrics
	ByDirection   []domain.EngineMetrics
	ByCatalyst    []domain.EngineMetrics

	Calibration domain.CalibrationReport
	Weights     domain.WeightSummary
	Intel       *intel.Index
	Health      health.Summary

	// SkippedRecords counts ledger rows excluded from some grouping for a
	// missing field (data-quality tally, keyed by dimension).
	SkippedRecords map[domain.GroupDimension]int
}

// Holder is the single write point for derived snapshots: one writer swaps,
// any number of readers load lock-free.
//
// Staleness is generation-counted rather than a plain flag: marked counts
// ledger writes, cleared records the write count the current snapshot was
// built against. A write landing while a recompute is in flight bumps
// marked past the generation that recompute captured, so the swap leaves
// the holder Stale instead of silently absorbing the mark.
type Holder struct {
	current atomic.Pointer[Derived]
	version atomic.Uint64
	marked  atomic.Uint64
	cleared atomic.Uint64
}

// NewHolder creates an empty holder. With no snapshot yet, the derived
// state is Stale by definition.
func NewHolder() *Holder {
	h := &Holder{}
	h.marked.Store(1)
	return h
}

// Current returns the latest snapshot, or nil if no recompute has completed
// yet. The returned value must be treated as immutable.
func (h *Holder) Current() *Derived {
	return h.current.Load()
}

// Stale reports whether the ledger has changed since the last swap.
func (h *Holder) Stale() bool {
	return h.marked.Load() > h.cleared.Load()
}

// MarkStale records that the ledger changed; every derived table is stale
// until a recompute that started after this write completes.
func (h *Holder) MarkStale() {
	h.marked.Add(1)
}

// Generation returns the current ledger-write generation. A recompute
// captures it before reading the ledger and passes it back to Swap.
func (h *Holder) Generation() uint64 {
	return h.marked.Load()
}

// Swap atomically publishes a complete new snapshot built against ledger
// generation gen. There is no partial-Fresh: either Swap runs with a fully
// built Derived, or the old snapshot stays. The holder turns Fresh only if
// no MarkStale landed after gen was captured; a concurrent write keeps it
// Stale so the next scheduled recompute picks the write up.
func (h *Holder) Swap(d *Derived, gen uint64) {
	d.Version = h.version.Add(1)
	h.current.Store(d)
	for {
		cur := h.cleared.Load()
		if gen <= cur || h.cleared.CompareAndSwap(cur, gen) {
			return
		}
	}
}
