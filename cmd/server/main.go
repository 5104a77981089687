// Package main runs the trade intelligence service:
// - Query API (continuous): snapshot-backed analytics endpoints
// - Refresh (scheduled + on demand): full recompute of every derived table
// - Outcome feed (optional): WebSocket listener appending resolved trades
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"trade-intel-lab/internal/config"
	"trade-intel-lab/internal/httpapi"
	"trade-intel-lab/internal/ledgerfeed"
	"trade-intel-lab/internal/observability"
	"trade-intel-lab/internal/pipeline"
	"trade-intel-lab/internal/snapshot"
	"trade-intel-lab/internal/storage"
	chstore "trade-intel-lab/internal/storage/clickhouse"
	"trade-intel-lab/internal/storage/memory"
	"trade-intel-lab/internal/storage/migrations"
	pgstore "trade-intel-lab/internal/storage/postgres"
	redisstore "trade-intel-lab/internal/storage/redis"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	pretty := flag.Bool("pretty", false, "Human-readable console log output")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if *pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()

		select {
		case sig := <-sigCh:
			log.Warn().Str("signal", sig.String()).Msg("forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn().Msg("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		}
	}()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config) error {
	outcomes, overrides, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	holder := snapshot.NewHolder()

	var cache pipeline.ProfileCache
	var profileReader httpapi.ProfileReader
	if cfg.Redis.Addr != "" {
		rc, err := redisstore.New(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			return fmt.Errorf("connect profile cache: %w", err)
		}
		defer rc.Close()
		cache = rc
		profileReader = rc
		log.Info().Str("addr", cfg.Redis.Addr).Msg("profile cache enabled")
	}

	refresher := pipeline.NewRefresher(pipeline.Options{
		OutcomeStore:  outcomes,
		OverrideStore: overrides,
		Holder:        holder,
		Config:        pipeline.ConfigFrom(cfg),
		ProfileCache:  cache,
		Logger:        log.Logger,
	})

	// First snapshot before serving queries. An empty ledger is fine, the
	// endpoints answer with empty tables.
	if _, err := refresher.Refresh(ctx); err != nil {
		return fmt.Errorf("initial refresh: %w", err)
	}

	// Optional outcome feed
	if cfg.Feed.URL != "" {
		listener, err := ledgerfeed.New(ctx, cfg.Feed.URL, outcomes, refresher, feedConfig(cfg), log.Logger)
		if err != nil {
			return fmt.Errorf("connect outcome feed: %w", err)
		}
		defer listener.Close()
	}

	// Scheduled refresh
	go runRefreshScheduler(ctx, refresher, cfg.Server.RefreshInterval, holder)

	// Metrics endpoint on its own listener
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		log.Info().Str("addr", cfg.Server.MetricsAddr).Msg("metrics listening")
		if err := http.ListenAndServe(cfg.Server.MetricsAddr, mux); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	handler := httpapi.NewHandler(holder, refresher, outcomes, overrides, profileReader, pipeline.ConfigFrom(cfg), log.Logger)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      httpapi.SetupRoutes(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown api server: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	}
}

// runRefreshScheduler recomputes on the configured interval, skipping runs
// while the snapshot is still fresh.
func runRefreshScheduler(ctx context.Context, refresher *pipeline.Refresher, interval time.Duration, holder *snapshot.Holder) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !holder.Stale() {
				continue
			}
			if _, err := refresher.Refresh(ctx); err != nil {
				log.Error().Err(err).Msg("scheduled refresh failed")
			}
		}
	}
}

// createStores builds the ledger and override stores for the configured
// backend. ClickHouse holds only the ledger archive; overrides stay in
// memory there since they are tiny and mutable.
func createStores(ctx context.Context, cfg *config.Config) (storage.OutcomeStore, storage.OverrideStore, func(), error) {
	switch cfg.Storage.Backend {
	case "memory":
		return memory.NewOutcomeStore(), memory.NewOverrideStore(), func() {}, nil

	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("run postgres migrations: %w", err)
		}
		return pgstore.NewOutcomeStore(pool), pgstore.NewOverrideStore(pool), pool.Close, nil

	case "clickhouse":
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		cleanup := func() { conn.Close() }
		return chstore.NewOutcomeStore(conn), memory.NewOverrideStore(), cleanup, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func feedConfig(cfg *config.Config) ledgerfeed.Config {
	fc := ledgerfeed.DefaultConfig()
	fc.BreakevenBandPct = cfg.Analytics.BreakevenBandPct
	return fc
}
