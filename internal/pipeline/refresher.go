// Package pipeline orchestrates the full recompute: ledger snapshot →
// {performance, calibration, signal weights, intelligence index} → atomic
// snapshot swap.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"trade-intel-lab/internal/calibration"
	"trade-intel-lab/internal/domain"
	"trade-intel-lab/internal/health"
	"trade-intel-lab/internal/intel"
	"trade-intel-lab/internal/observability"
	"trade-intel-lab/internal/perf"
	"trade-intel-lab/internal/signalweight"
	"trade-intel-lab/internal/snapshot"
	"trade-intel-lab/internal/storage"
)

// Failure kinds surfaced on RefreshError.
const (
	FailureLedgerRead   = "ledger_read"
	FailureOverrideRead = "override_read"
	FailureAborted      = "aborted"
)

// RefreshError is an unrecoverable recompute failure. The previous Fresh
// snapshot is always left in place.
type RefreshError struct {
	Kind string
	Err  error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refresh failed (%s): %v", e.Kind, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// ProfileCache receives symbol profiles after a successful swap. Failures
// are logged, never propagated: the cache is an accelerator, not a source
// of truth.
type ProfileCache interface {
	StoreProfiles(ctx context.Context, profiles []domain.SymbolProfile) error
}

// Config bundles the tunables of every reducer.
type Config struct {
	// BreakevenBandPct is the half-width of the breakeven band used to
	// validate ledger rows.
	BreakevenBandPct float64

	Calibration calibration.Config
	Weights     signalweight.Config
	Intel       intel.Config
	Health      health.Config
}

// DefaultConfig returns defaults for every reducer.
func DefaultConfig() Config {
	return Config{
		BreakevenBandPct: 0.25,
		Calibration:      calibration.DefaultConfig(),
		Weights:          signalweight.DefaultConfig(),
		Intel:            intel.DefaultConfig(),
		Health:           health.DefaultConfig(),
	}
}

// Options for creating a Refresher.
type Options struct {
	OutcomeStore  storage.OutcomeStore
	OverrideStore storage.OverrideStore
	Holder        *snapshot.Holder
	Config        Config
	ProfileCache  ProfileCache // optional
	Logger        zerolog.Logger
}

// Refresher rebuilds every derived table from the ledger. Single writer:
// concurrent Refresh calls serialize on an internal mutex while readers
// keep loading the previous snapshot lock-free.
type Refresher struct {
	outcomes  storage.OutcomeStore
	overrides storage.OverrideStore
	holder    *snapshot.Holder
	cfg       Config
	cache     ProfileCache
	log       zerolog.Logger

	mu sync.Mutex
}

// NewRefresher creates a Refresher.
func NewRefresher(opts Options) *Refresher {
	return &Refresher{
		outcomes:  opts.OutcomeStore,
		overrides: opts.OverrideStore,
		holder:    opts.Holder,
		cfg:       opts.Config,
		cache:     opts.ProfileCache,
		log:       opts.Logger.With().Str("component", "refresher").Logger(),
	}
}

// Result summarizes one completed refresh.
type Result struct {
	LedgerSize      int           `json:"ledgerSize"`
	MalformedRows   int           `json:"malformedRows"`
	ProfilesUpdated int           `json:"profilesUpdated"`
	EnginesComputed int           `json:"enginesComputed"`
	SignalsComputed int           `json:"signalsComputed"`
	Duration        time.Duration `json:"-"`
	ComputedAt      time.Time     `json:"computedAt"`
}

// Refresh runs the full recompute and atomically publishes the new
// snapshot. On any failure the previous snapshot stays current and Stale.
// Cancelling ctx before the swap aborts cleanly with no corruption.
func (r *Refresher) Refresh(ctx context.Context) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()

	// Captured before the ledger reads: a write that lands mid-recompute
	// bumps the generation past this value and the swap leaves the holder
	// Stale, so the new row is picked up by the next recompute.
	gen := r.holder.Generation()

	outcomes, err := r.outcomes.GetAll(ctx)
	if err != nil {
		observability.RecordRefresh("failure", time.Since(start).Seconds())
		return nil, &RefreshError{Kind: FailureLedgerRead, Err: err}
	}

	overrides, err := r.overrides.GetAll(ctx)
	if err != nil {
		observability.RecordRefresh("failure", time.Since(start).Seconds())
		return nil, &RefreshError{Kind: FailureOverrideRead, Err: err}
	}

	valid, malformed := r.validateLedger(outcomes)

	d := &snapshot.Derived{
		ComputedAt:     start.UTC(),
		LedgerSize:     len(valid),
		SkippedRecords: make(map[domain.GroupDimension]int),
	}

	// The four reducers share the same immutable snapshot and write to
	// disjoint fields, so they run concurrently with no locking.
	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		engines := perf.Aggregate(domain.GroupByEngine, valid)
		direction := perf.Aggregate(domain.GroupByDirection, valid)
		catalyst := perf.Aggregate(domain.GroupByCatalyst, valid)
		d.EngineMetrics = engines.Groups
		d.ByDirection = direction.Groups
		d.ByCatalyst = catalyst.Groups
		d.SkippedRecords[domain.GroupByEngine] = engines.Skipped
		d.SkippedRecords[domain.GroupByDirection] = direction.Skipped
		d.SkippedRecords[domain.GroupByCatalyst] = catalyst.Skipped

		overall := perf.AggregateBy("overall", valid, func(*domain.TradeOutcome) (string, bool) {
			return "all", true
		})
		if len(overall.Groups) > 0 {
			d.Overall = &overall.Groups[0]
		}
	}()

	go func() {
		defer wg.Done()
		d.Calibration = calibration.Analyze(valid, r.cfg.Calibration)
	}()

	go func() {
		defer wg.Done()
		d.Weights = signalweight.Compute(valid, overrides, r.cfg.Weights)
	}()

	go func() {
		defer wg.Done()
		d.Intel = intel.Build(valid, r.cfg.Intel)
	}()

	wg.Wait()

	d.Health = health.Evaluate(d.Overall, r.cfg.Health)

	// Abort before the swap leaves the old snapshot in place.
	if err := ctx.Err(); err != nil {
		observability.RecordRefresh("aborted", time.Since(start).Seconds())
		return nil, &RefreshError{Kind: FailureAborted, Err: err}
	}

	r.holder.Swap(d, gen)

	result := &Result{
		LedgerSize:      len(valid),
		MalformedRows:   malformed,
		ProfilesUpdated: d.Intel.SymbolCount(),
		EnginesComputed: len(d.EngineMetrics),
		SignalsComputed: d.Weights.TotalSignals,
		Duration:        time.Since(start),
		ComputedAt:      d.ComputedAt,
	}

	observability.RecordRefresh("success", result.Duration.Seconds())
	observability.SetDerivedSizes(result.ProfilesUpdated, result.EnginesComputed, result.SignalsComputed)
	observability.SetLastSuccessfulRefresh(float64(d.ComputedAt.Unix()))

	r.log.Info().
		Int("ledger_size", result.LedgerSize).
		Int("malformed_rows", result.MalformedRows).
		Int("profiles", result.ProfilesUpdated).
		Int("engines", result.EnginesComputed).
		Int("signals", result.SignalsComputed).
		Dur("duration", result.Duration).
		Msg("refresh completed")

	r.writeCache(ctx, d)

	return result, nil
}

// MarkStale flags every derived table stale; called when the ledger gains a
// resolved trade.
func (r *Refresher) MarkStale() {
	r.holder.MarkStale()
}

// validateLedger drops rows whose resolution contradicts their realized
// return. Malformed rows are excluded and logged, never fatal.
func (r *Refresher) validateLedger(outcomes []*domain.TradeOutcome) (valid []*domain.TradeOutcome, malformed int) {
	valid = make([]*domain.TradeOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if err := o.Validate(r.cfg.BreakevenBandPct); err != nil {
			malformed++
			observability.RecordMalformedRecord()
			r.log.Warn().Err(err).Str("trade_id", o.ID).Msg("excluding malformed ledger row")
			continue
		}
		valid = append(valid, o)
	}
	return valid, malformed
}

// writeCache pushes symbol profiles to the external cache, best effort.
func (r *Refresher) writeCache(ctx context.Context, d *snapshot.Derived) {
	if r.cache == nil {
		return
	}
	if err := r.cache.StoreProfiles(ctx, d.Intel.Profiles()); err != nil && !errors.Is(err, context.Canceled) {
		r.log.Warn().Err(err).Msg("profile cache write failed")
	}
}
