package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trade-intel-lab/internal/domain"
	"trade-intel-lab/internal/snapshot"
	"trade-intel-lab/internal/storage"
	"trade-intel-lab/internal/storage/memory"
)

func seedOutcomes(t *testing.T, store *memory.OutcomeStore, outcomes []*domain.TradeOutcome) {
	t.Helper()
	if err := store.InsertBulk(context.Background(), outcomes); err != nil {
		t.Fatalf("seeding ledger: %v", err)
	}
}

func sampleLedger(n int) []*domain.TradeOutcome {
	base := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	out := make([]*domain.TradeOutcome, 0, n)
	for i := 0; i < n; i++ {
		ret := 4.0
		res := domain.ResolutionWin
		if i%3 == 0 {
			ret = -2.0
			res = domain.ResolutionLoss
		}
		out = append(out, &domain.TradeOutcome{
			ID:                fmt.Sprintf("trade-%03d", i),
			Symbol:            []string{"TSLA", "NVDA", "AMD"}[i%3],
			EngineID:          []string{"momentum", "reversal"}[i%2],
			Direction:         domain.DirectionLong,
			Signals:           []string{"breakout"},
			Confidence:        60,
			CatalystType:      "earnings",
			RealizedReturnPct: ret,
			Resolution:        res,
			OpenedAt:          base.Add(time.Duration(i) * time.Hour),
			ClosedAt:          base.Add(time.Duration(i+1) * time.Hour),
		})
	}
	return out
}

func newTestRefresher(outcomes *memory.OutcomeStore, overrides *memory.OverrideStore, holder *snapshot.Holder) *Refresher {
	return NewRefresher(Options{
		OutcomeStore:  outcomes,
		OverrideStore: overrides,
		Holder:        holder,
		Config:        DefaultConfig(),
		Logger:        zerolog.Nop(),
	})
}

func TestRefresh_PublishesFullSnapshot(t *testing.T) {
	outcomes := memory.NewOutcomeStore()
	overrides := memory.NewOverrideStore()
	holder := snapshot.NewHolder()
	seedOutcomes(t, outcomes, sampleLedger(30))

	r := newTestRefresher(outcomes, overrides, holder)
	result, err := r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if result.LedgerSize != 30 || result.MalformedRows != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.ProfilesUpdated != 3 {
		t.Errorf("expected 3 symbol profiles, got %d", result.ProfilesUpdated)
	}
	if result.EnginesComputed != 2 {
		t.Errorf("expected 2 engines, got %d", result.EnginesComputed)
	}
	if result.SignalsComputed != 1 {
		t.Errorf("expected 1 signal, got %d", result.SignalsComputed)
	}

	d := holder.Current()
	if d == nil {
		t.Fatal("no snapshot published")
	}
	if holder.Stale() {
		t.Error("successful refresh should leave the snapshot fresh")
	}
	if d.Version != 1 {
		t.Errorf("expected version 1, got %d", d.Version)
	}
	if d.Overall == nil || d.Overall.TradeCount != 30 {
		t.Errorf("overall aggregate missing or wrong: %+v", d.Overall)
	}
	if len(d.ByDirection) != 1 || d.ByDirection[0].GroupKey != "long" {
		t.Errorf("unexpected direction groups: %+v", d.ByDirection)
	}
	if d.Health.Status == "" {
		t.Error("health summary not evaluated")
	}
	if d.Intel.Profile("TSLA").ClosedTrades == 0 {
		t.Error("intel index not built")
	}
}

func TestRefresh_ExcludesMalformedRows(t *testing.T) {
	outcomes := memory.NewOutcomeStore()
	holder := snapshot.NewHolder()
	ledger := sampleLedger(10)
	// A win with a deeply negative return contradicts its resolution.
	ledger = append(ledger, &domain.TradeOutcome{
		ID:                "bad-row",
		Symbol:            "TSLA",
		Confidence:        50,
		RealizedReturnPct: -8,
		Resolution:        domain.ResolutionWin,
		ClosedAt:          time.Now(),
	})
	seedOutcomes(t, outcomes, ledger)

	r := newTestRefresher(outcomes, memory.NewOverrideStore(), holder)
	result, err := r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if result.MalformedRows != 1 {
		t.Errorf("expected 1 malformed row, got %d", result.MalformedRows)
	}
	if result.LedgerSize != 10 {
		t.Errorf("malformed row should be excluded from the ledger size, got %d", result.LedgerSize)
	}
	if holder.Current().Overall.TradeCount != 10 {
		t.Error("malformed row leaked into the aggregates")
	}
}

func TestRefresh_Idempotent(t *testing.T) {
	outcomes := memory.NewOutcomeStore()
	holder := snapshot.NewHolder()
	seedOutcomes(t, outcomes, sampleLedger(20))

	r := newTestRefresher(outcomes, memory.NewOverrideStore(), holder)
	ctx := context.Background()

	if _, err := r.Refresh(ctx); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	first := holder.Current()

	if _, err := r.Refresh(ctx); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	second := holder.Current()

	if second.Version != first.Version+1 {
		t.Errorf("versions should increment: %d then %d", first.Version, second.Version)
	}
	if first.Overall.ExpectancyPct != second.Overall.ExpectancyPct ||
		first.Calibration.BrierScore != second.Calibration.BrierScore ||
		first.Weights.TotalSignals != second.Weights.TotalSignals {
		t.Error("recompute over an unchanged ledger produced different numbers")
	}
}

func TestRefresh_CancelledContextLeavesOldSnapshot(t *testing.T) {
	outcomes := memory.NewOutcomeStore()
	holder := snapshot.NewHolder()
	seedOutcomes(t, outcomes, sampleLedger(12))

	r := newTestRefresher(outcomes, memory.NewOverrideStore(), holder)

	if _, err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}
	previous := holder.Current()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Refresh(ctx)
	if err == nil {
		t.Fatal("expected an abort error")
	}
	var rerr *RefreshError
	if !errors.As(err, &rerr) || rerr.Kind != FailureAborted {
		t.Errorf("expected aborted refresh error, got %v", err)
	}
	if holder.Current() != previous {
		t.Error("aborted refresh must leave the previous snapshot in place")
	}
}

// failingOutcomeStore wraps the memory store and fails reads on demand.
type failingOutcomeStore struct {
	*memory.OutcomeStore
	fail bool
}

func (s *failingOutcomeStore) GetAll(ctx context.Context) ([]*domain.TradeOutcome, error) {
	if s.fail {
		return nil, errors.New("ledger unavailable")
	}
	return s.OutcomeStore.GetAll(ctx)
}

var _ storage.OutcomeStore = (*failingOutcomeStore)(nil)

func TestRefresh_LedgerReadFailureKeepsOldSnapshot(t *testing.T) {
	inner := memory.NewOutcomeStore()
	store := &failingOutcomeStore{OutcomeStore: inner}
	holder := snapshot.NewHolder()
	seedOutcomes(t, inner, sampleLedger(8))

	r := NewRefresher(Options{
		OutcomeStore:  store,
		OverrideStore: memory.NewOverrideStore(),
		Holder:        holder,
		Config:        DefaultConfig(),
		Logger:        zerolog.Nop(),
	})

	if _, err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}
	previous := holder.Current()
	holder.MarkStale()

	store.fail = true
	_, err := r.Refresh(context.Background())
	var rerr *RefreshError
	if !errors.As(err, &rerr) || rerr.Kind != FailureLedgerRead {
		t.Fatalf("expected ledger read failure, got %v", err)
	}
	if holder.Current() != previous {
		t.Error("failed refresh must not touch the current snapshot")
	}
	if !holder.Stale() {
		t.Error("failed refresh must leave the stale flag set")
	}
}

func TestRefresh_OverridesFlowIntoWeights(t *testing.T) {
	outcomes := memory.NewOutcomeStore()
	overrides := memory.NewOverrideStore()
	holder := snapshot.NewHolder()
	seedOutcomes(t, outcomes, sampleLedger(25))

	ctx := context.Background()
	if err := overrides.Set(ctx, "breakout", 0.5); err != nil {
		t.Fatalf("setting override: %v", err)
	}

	r := newTestRefresher(outcomes, overrides, holder)
	if _, err := r.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	w := holder.Current().Weights.Weights[0]
	if !w.Overridden || w.EffectiveWeight() != 0.5 {
		t.Errorf("override not blended into the weight summary: %+v", w)
	}
}

// stalingOverrideStore wraps the memory store and marks the holder stale
// from inside GetAll, standing in for a feed event landing mid-recompute.
type stalingOverrideStore struct {
	*memory.OverrideStore
	holder *snapshot.Holder
}

func (s *stalingOverrideStore) GetAll(ctx context.Context) (map[string]float64, error) {
	s.holder.MarkStale()
	return s.OverrideStore.GetAll(ctx)
}

var _ storage.OverrideStore = (*stalingOverrideStore)(nil)

func TestRefresh_WriteDuringRecomputeKeepsStale(t *testing.T) {
	outcomes := memory.NewOutcomeStore()
	holder := snapshot.NewHolder()
	seedOutcomes(t, outcomes, sampleLedger(15))

	r := NewRefresher(Options{
		OutcomeStore:  outcomes,
		OverrideStore: &stalingOverrideStore{OverrideStore: memory.NewOverrideStore(), holder: holder},
		Holder:        holder,
		Config:        DefaultConfig(),
		Logger:        zerolog.Nop(),
	})

	if _, err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if holder.Current() == nil {
		t.Fatal("refresh should still publish its snapshot")
	}
	// The write landed after the ledger generation was captured, so the
	// published snapshot cannot contain it and the holder must stay stale
	// for the next scheduled recompute to pick the write up.
	if !holder.Stale() {
		t.Error("a ledger write during the recompute must leave the holder stale")
	}
}

func TestMarkStale(t *testing.T) {
	outcomes := memory.NewOutcomeStore()
	holder := snapshot.NewHolder()
	seedOutcomes(t, outcomes, sampleLedger(10))

	r := newTestRefresher(outcomes, memory.NewOverrideStore(), holder)
	if _, err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	r.MarkStale()
	if !holder.Stale() {
		t.Error("MarkStale should propagate to the holder")
	}
}
