// Package httpapi exposes the derived analytics tables over HTTP. Every
// query answers from the current snapshot and carries its computedAt and
// stale flag, so clients always know what ledger state they are reading.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"trade-intel-lab/internal/domain"
	"trade-intel-lab/internal/narrative"
	"trade-intel-lab/internal/observability"
	"trade-intel-lab/internal/pipeline"
	"trade-intel-lab/internal/signalweight"
	"trade-intel-lab/internal/snapshot"
	"trade-intel-lab/internal/storage"
)

// ProfileReader serves cached symbol profiles written by other instances
// sharing the profile cache. Optional; a miss or failure falls back to the
// local snapshot's empty profile.
type ProfileReader interface {
	GetProfile(ctx context.Context, symbol string) (*domain.SymbolProfile, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	holder    *snapshot.Holder
	refresher *pipeline.Refresher
	outcomes  storage.OutcomeStore
	overrides storage.OverrideStore
	profiles  ProfileReader
	cfg       pipeline.Config
	log       zerolog.Logger
}

// NewHandler creates a new Handler. profiles may be nil when no shared
// profile cache is configured.
func NewHandler(holder *snapshot.Holder, refresher *pipeline.Refresher, outcomes storage.OutcomeStore, overrides storage.OverrideStore, profiles ProfileReader, cfg pipeline.Config, log zerolog.Logger) *Handler {
	return &Handler{
		holder:    holder,
		refresher: refresher,
		outcomes:  outcomes,
		overrides: overrides,
		profiles:  profiles,
		cfg:       cfg,
		log:       log.With().Str("component", "httpapi").Logger(),
	}
}

// envelope wraps every snapshot-backed response with its provenance.
type envelope struct {
	Data       interface{} `json:"data"`
	ComputedAt time.Time   `json:"computedAt"`
	Version    uint64      `json:"version"`
	Stale      bool        `json:"stale"`
}

// snapshotOr503 loads the current snapshot or writes 503 when no refresh
// has completed yet.
func (h *Handler) snapshotOr503(w http.ResponseWriter) *snapshot.Derived {
	d := h.holder.Current()
	if d == nil {
		respondError(w, http.StatusServiceUnavailable, "no analytics snapshot computed yet")
		return nil
	}
	return d
}

func (h *Handler) respondSnapshot(w http.ResponseWriter, d *snapshot.Derived, data interface{}) {
	stale := h.holder.Stale()
	if stale {
		observability.RecordStaleRead()
	}
	respondJSON(w, http.StatusOK, envelope{
		Data:       data,
		ComputedAt: d.ComputedAt,
		Version:    d.Version,
		Stale:      stale,
	})
}

// GetEngines handles GET /engines.
func (h *Handler) GetEngines(w http.ResponseWriter, r *http.Request) {
	d := h.snapshotOr503(w)
	if d == nil {
		return
	}

	h.respondSnapshot(w, d, map[string]interface{}{
		"engines":     d.EngineMetrics,
		"byDirection": d.ByDirection,
		"byCatalyst":  d.ByCatalyst,
		"skipped":     d.SkippedRecords,
	})
}

// GetPlatformHealth handles GET /health/platform.
func (h *Handler) GetPlatformHealth(w http.ResponseWriter, r *http.Request) {
	d := h.snapshotOr503(w)
	if d == nil {
		return
	}
	h.respondSnapshot(w, d, d.Health)
}

// GetCalibration handles GET /calibration.
func (h *Handler) GetCalibration(w http.ResponseWriter, r *http.Request) {
	d := h.snapshotOr503(w)
	if d == nil {
		return
	}

	report := d.Calibration
	report.Recommendations = narrative.CalibrationAdvice(report, h.cfg.Calibration.TolerancePct)
	h.respondSnapshot(w, d, report)
}

// GetSignalWeights handles GET /signals/weights.
func (h *Handler) GetSignalWeights(w http.ResponseWriter, r *http.Request) {
	d := h.snapshotOr503(w)
	if d == nil {
		return
	}

	h.respondSnapshot(w, d, map[string]interface{}{
		"summary":         d.Weights,
		"recommendations": narrative.WeightAdvice(d.Weights),
	})
}

// GetPlatformStats handles GET /stats/platform.
func (h *Handler) GetPlatformStats(w http.ResponseWriter, r *http.Request) {
	d := h.snapshotOr503(w)
	if d == nil {
		return
	}
	h.respondSnapshot(w, d, d.Intel.Platform())
}

// GetSymbol handles GET /symbols/{symbol}. Unknown symbols return an empty
// profile rather than 404: "no history" is a valid answer.
func (h *Handler) GetSymbol(w http.ResponseWriter, r *http.Request) {
	d := h.snapshotOr503(w)
	if d == nil {
		return
	}

	symbol := mux.Vars(r)["symbol"]

	profile := d.Intel.Profile(symbol)
	if profile.ClosedTrades == 0 {
		// Local ledger has no history. Another instance sharing the profile
		// cache may have computed this symbol; a miss keeps the empty profile.
		if cached := h.cachedProfile(r.Context(), symbol); cached != nil {
			profile = *cached
		}
	}
	best := d.Intel.BestCatalysts(symbol)
	worst := d.Intel.WorstCatalysts(symbol)

	intel := domain.SymbolIntelligence{
		Profile:         profile,
		Catalysts:       d.Intel.Catalysts(symbol),
		BestCatalysts:   best,
		WorstCatalysts:  worst,
		Recommendations: narrative.SymbolAdvice(profile, best, worst),
	}

	recent, err := h.outcomes.GetRecentBySymbol(r.Context(), symbol, 10)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("recent trades lookup failed")
		respondError(w, http.StatusInternalServerError, "recent trades lookup failed")
		return
	}
	intel.RecentTrades = make([]domain.TradeOutcome, 0, len(recent))
	for _, o := range recent {
		intel.RecentTrades = append(intel.RecentTrades, *o)
	}

	h.respondSnapshot(w, d, intel)
}

// cachedProfile looks the symbol up in the shared profile cache. Best
// effort: misses and cache failures return nil.
func (h *Handler) cachedProfile(ctx context.Context, symbol string) *domain.SymbolProfile {
	if h.profiles == nil {
		return nil
	}
	p, err := h.profiles.GetProfile(ctx, symbol)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			h.log.Warn().Err(err).Str("symbol", symbol).Msg("profile cache read failed")
		}
		return nil
	}
	return p
}

// PostRefresh handles POST /refresh: a synchronous full recompute.
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.refresher.Refresh(r.Context())
	if err != nil {
		var rerr *pipeline.RefreshError
		if errors.As(err, &rerr) && rerr.Kind == pipeline.FailureAborted {
			respondError(w, http.StatusRequestTimeout, "refresh aborted: "+rerr.Err.Error())
			return
		}
		h.log.Error().Err(err).Msg("on-demand refresh failed")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// PutOverride handles PUT /signals/{signal}/override.
func (h *Handler) PutOverride(w http.ResponseWriter, r *http.Request) {
	signal := mux.Vars(r)["signal"]

	var req struct {
		Weight float64 `json:"weight"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !signalweight.ValidateOverride(req.Weight) {
		observability.RecordOverrideWrite("rejected")
		respondError(w, http.StatusBadRequest, "override weight must be a positive finite number")
		return
	}

	if err := h.overrides.Set(r.Context(), signal, req.Weight); err != nil {
		observability.RecordOverrideWrite("error")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	observability.RecordOverrideWrite("set")
	h.refresher.MarkStale()
	h.log.Info().Str("signal", signal).Float64("weight", req.Weight).Msg("override set")

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"signal": signal,
		"weight": req.Weight,
	})
}

// DeleteOverride handles DELETE /signals/{signal}/override.
func (h *Handler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	signal := mux.Vars(r)["signal"]

	if err := h.overrides.Delete(r.Context(), signal); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "no override for signal "+signal)
			return
		}
		observability.RecordOverrideWrite("error")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	observability.RecordOverrideWrite("deleted")
	h.refresher.MarkStale()
	h.log.Info().Str("signal", signal).Msg("override removed")

	w.WriteHeader(http.StatusNoContent)
}

// Healthz handles GET /healthz: process liveness plus ledger reachability.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK

	ledgerSize, err := h.outcomes.Count(ctx)
	if err != nil {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, map[string]interface{}{
		"status":     status,
		"ledgerSize": ledgerSize,
		"stale":      h.holder.Stale(),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
