package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trade-intel-lab/internal/domain"
	"trade-intel-lab/internal/pipeline"
	"trade-intel-lab/internal/snapshot"
	"trade-intel-lab/internal/storage"
	"trade-intel-lab/internal/storage/memory"
)

type testEnv struct {
	handler   *Handler
	router    http.Handler
	holder    *snapshot.Holder
	refresher *pipeline.Refresher
	outcomes  *memory.OutcomeStore
	overrides *memory.OverrideStore
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithProfiles(t, nil)
}

func newTestEnvWithProfiles(t *testing.T, profiles ProfileReader) *testEnv {
	t.Helper()

	outcomes := memory.NewOutcomeStore()
	overrides := memory.NewOverrideStore()
	holder := snapshot.NewHolder()
	refresher := pipeline.NewRefresher(pipeline.Options{
		OutcomeStore:  outcomes,
		OverrideStore: overrides,
		Holder:        holder,
		Config:        pipeline.DefaultConfig(),
		Logger:        zerolog.Nop(),
	})
	h := NewHandler(holder, refresher, outcomes, overrides, profiles, pipeline.DefaultConfig(), zerolog.Nop())

	return &testEnv{
		handler:   h,
		router:    SetupRoutes(h),
		holder:    holder,
		refresher: refresher,
		outcomes:  outcomes,
		overrides: overrides,
	}
}

func (e *testEnv) seedAndRefresh(t *testing.T, n int) {
	t.Helper()

	base := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	outcomes := make([]*domain.TradeOutcome, 0, n)
	for i := 0; i < n; i++ {
		ret, res := 4.0, domain.ResolutionWin
		if i%3 == 0 {
			ret, res = -2.0, domain.ResolutionLoss
		}
		outcomes = append(outcomes, &domain.TradeOutcome{
			ID:                fmt.Sprintf("trade-%03d", i),
			Symbol:            []string{"TSLA", "NVDA"}[i%2],
			EngineID:          "momentum",
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
	if err := e.outcomes.InsertBulk(context.Background(), outcomes); err != nil {
		t.Fatalf("seeding ledger: %v", err)
	}
	if _, err := e.refresher.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
}

func (e *testEnv) do(method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestQueries_NoSnapshotYet(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{
		"/api/v1/engines",
		"/api/v1/health/platform",
		"/api/v1/calibration",
		"/api/v1/signals/weights",
		"/api/v1/stats/platform",
		"/api/v1/symbols/TSLA",
	} {
		rec := env.do(http.MethodGet, path, nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s before first refresh: expected 503, got %d", path, rec.Code)
		}
	}
}

func TestGetEngines_Envelope(t *testing.T) {
	env := newTestEnv(t)
	env.seedAndRefresh(t, 20)

	rec := env.do(http.MethodGet, "/api/v1/engines", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data struct {
			Engines []domain.EngineMetrics `json:"engines"`
		} `json:"data"`
		ComputedAt time.Time `json:"computedAt"`
		Version    uint64    `json:"version"`
		Stale      bool      `json:"stale"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Version != 1 || resp.Stale {
		t.Errorf("unexpected envelope: version=%d stale=%v", resp.Version, resp.Stale)
	}
	if resp.ComputedAt.IsZero() {
		t.Error("envelope should carry computedAt")
	}
	if len(resp.Data.Engines) != 1 || resp.Data.Engines[0].GroupKey != "momentum" {
		t.Errorf("unexpected engines payload: %+v", resp.Data.Engines)
	}
}

func TestStaleFlagAfterLedgerChange(t *testing.T) {
	env := newTestEnv(t)
	env.seedAndRefresh(t, 15)

	env.refresher.MarkStale()

	rec := env.do(http.MethodGet, "/api/v1/health/platform", nil)
	var resp struct {
		Stale bool `json:"stale"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Stale {
		t.Error("responses after a ledger change should be flagged stale")
	}
}

func TestGetSymbol_UnknownReturnsEmptyProfile(t *testing.T) {
	env := newTestEnv(t)
	env.seedAndRefresh(t, 10)

	rec := env.do(http.MethodGet, "/api/v1/symbols/UNKNOWN", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unknown symbol should still answer 200, got %d", rec.Code)
	}

	var resp struct {
		Data domain.SymbolIntelligence `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Data.Profile.Symbol != "UNKNOWN" || resp.Data.Profile.ClosedTrades != 0 {
		t.Errorf("unexpected profile: %+v", resp.Data.Profile)
	}
	if resp.Data.Profile.OverallWinRatePct != nil {
		t.Error("unknown symbol win rate should be null, not zero")
	}
	if len(resp.Data.RecentTrades) != 0 {
		t.Errorf("unknown symbol should have no recent trades: %+v", resp.Data.RecentTrades)
	}
}

// stubProfileReader serves canned profiles and counts lookups.
type stubProfileReader struct {
	profiles map[string]*domain.SymbolProfile
	calls    int
}

func (s *stubProfileReader) GetProfile(_ context.Context, symbol string) (*domain.SymbolProfile, error) {
	s.calls++
	if p, ok := s.profiles[symbol]; ok {
		return p, nil
	}
	return nil, storage.ErrNotFound
}

func TestGetSymbol_UnknownFallsBackToProfileCache(t *testing.T) {
	winRate := 62.5
	reader := &stubProfileReader{profiles: map[string]*domain.SymbolProfile{
		"PLTR": {Symbol: "PLTR", ClosedTrades: 8, Wins: 5, Losses: 3, OverallWinRatePct: &winRate},
	}}
	env := newTestEnvWithProfiles(t, reader)
	env.seedAndRefresh(t, 10)

	rec := env.do(http.MethodGet, "/api/v1/symbols/PLTR", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data domain.SymbolIntelligence `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Data.Profile.ClosedTrades != 8 {
		t.Errorf("expected the cached profile, got %+v", resp.Data.Profile)
	}
	if resp.Data.Profile.OverallWinRatePct == nil || *resp.Data.Profile.OverallWinRatePct != 62.5 {
		t.Errorf("cached win rate lost: %+v", resp.Data.Profile.OverallWinRatePct)
	}
	if reader.calls != 1 {
		t.Errorf("expected exactly one cache lookup, got %d", reader.calls)
	}

	// A cache miss keeps the local empty profile.
	rec = env.do(http.MethodGet, "/api/v1/symbols/UNKNOWN", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on a cache miss, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Data.Profile.Symbol != "UNKNOWN" || resp.Data.Profile.ClosedTrades != 0 {
		t.Errorf("cache miss should fall back to the empty profile: %+v", resp.Data.Profile)
	}

	// Symbols with local history never consult the cache.
	reader.calls = 0
	rec = env.do(http.MethodGet, "/api/v1/symbols/TSLA", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if reader.calls != 0 {
		t.Errorf("known symbol should not hit the profile cache, got %d lookups", reader.calls)
	}
}

func TestGetSymbol_KnownSymbol(t *testing.T) {
	env := newTestEnv(t)
	env.seedAndRefresh(t, 20)

	rec := env.do(http.MethodGet, "/api/v1/symbols/TSLA", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data domain.SymbolIntelligence `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Data.Profile.ClosedTrades != 10 {
		t.Errorf("expected 10 TSLA trades, got %d", resp.Data.Profile.ClosedTrades)
	}
	if len(resp.Data.RecentTrades) != 10 {
		t.Errorf("expected 10 recent trades, got %d", len(resp.Data.RecentTrades))
	}
	// Recent trades come newest first.
	for i := 1; i < len(resp.Data.RecentTrades); i++ {
		if resp.Data.RecentTrades[i].ClosedAt.After(resp.Data.RecentTrades[i-1].ClosedAt) {
			t.Error("recent trades should be ordered newest first")
			break
		}
	}
}

func TestPostRefresh(t *testing.T) {
	env := newTestEnv(t)
	env.seedAndRefresh(t, 10)
	before := env.holder.Current().Version

	rec := env.do(http.MethodPost, "/api/v1/refresh", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result pipeline.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.LedgerSize != 10 {
		t.Errorf("unexpected refresh result: %+v", result)
	}
	if env.holder.Current().Version != before+1 {
		t.Error("on-demand refresh should publish a new snapshot version")
	}
}

func TestPutOverride(t *testing.T) {
	env := newTestEnv(t)
	env.seedAndRefresh(t, 10)

	t.Run("valid", func(t *testing.T) {
		rec := env.do(http.MethodPut, "/api/v1/signals/breakout/override", []byte(`{"weight":0.5}`))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !env.holder.Stale() {
			t.Error("setting an override should mark the snapshot stale")
		}
		stored, err := env.overrides.GetAll(context.Background())
		if err != nil || stored["breakout"] != 0.5 {
			t.Errorf("override not persisted: %v %v", stored, err)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		for _, body := range []string{`{"weight":0}`, `{"weight":-1}`, `not json`} {
			rec := env.do(http.MethodPut, "/api/v1/signals/breakout/override", []byte(body))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("body %q: expected 400, got %d", body, rec.Code)
			}
		}
	})
}

func TestDeleteOverride(t *testing.T) {
	env := newTestEnv(t)
	env.seedAndRefresh(t, 10)

	if rec := env.do(http.MethodDelete, "/api/v1/signals/breakout/override", nil); rec.Code != http.StatusNotFound {
		t.Errorf("deleting a missing override: expected 404, got %d", rec.Code)
	}

	if err := env.overrides.Set(context.Background(), "breakout", 0.7); err != nil {
		t.Fatalf("setting override: %v", err)
	}
	if rec := env.do(http.MethodDelete, "/api/v1/signals/breakout/override", nil); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if stored, _ := env.overrides.GetAll(context.Background()); len(stored) != 0 {
		t.Errorf("override not removed: %v", stored)
	}
}

func TestGetCalibration_IncludesRecommendations(t *testing.T) {
	env := newTestEnv(t)
	env.seedAndRefresh(t, 30)

	rec := env.do(http.MethodGet, "/api/v1/calibration", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data domain.CalibrationReport `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Data.SampleCount != 30 {
		t.Errorf("expected 30 scored samples, got %d", resp.Data.SampleCount)
	}
	if len(resp.Data.Recommendations) == 0 {
		t.Error("calibration response should carry recommendations")
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	env.seedAndRefresh(t, 5)

	rec := env.do(http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Status     string `json:"status"`
		LedgerSize int    `json:"ledgerSize"`
		Stale      bool   `json:"stale"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "healthy" || resp.LedgerSize != 5 {
		t.Errorf("unexpected healthz payload: %+v", resp)
	}
}
