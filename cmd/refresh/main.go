// Package main runs one full recompute against the configured ledger and
// prints the result. Useful for cron-driven refreshes and smoke checks.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"trade-intel-lab/internal/config"
	"trade-intel-lab/internal/pipeline"
	"trade-intel-lab/internal/snapshot"
	"trade-intel-lab/internal/storage"
	chstore "trade-intel-lab/internal/storage/clickhouse"
	"trade-intel-lab/internal/storage/memory"
	"trade-intel-lab/internal/storage/migrations"
	pgstore "trade-intel-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	timeout := flag.Duration("timeout", 5*time.Minute, "Maximum time for the recompute")
	asJSON := flag.Bool("json", false, "Print the result as JSON")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	outcomes, overrides, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating stores: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	refresher := pipeline.NewRefresher(pipeline.Options{
		OutcomeStore:  outcomes,
		OverrideStore: overrides,
		Holder:        snapshot.NewHolder(),
		Config:        pipeline.ConfigFrom(cfg),
		Logger:        log.Logger,
	})

	result, err := refresher.Refresh(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error refreshing: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		json.NewEncoder(os.Stdout).Encode(result)
		return
	}

	fmt.Println("Refresh completed:")
	fmt.Printf("  Ledger: %d trades (%d malformed excluded)\n", result.LedgerSize, result.MalformedRows)
	fmt.Printf("  Profiles: %d\n", result.ProfilesUpdated)
	fmt.Printf("  Engine groups: %d\n", result.EnginesComputed)
	fmt.Printf("  Signals: %d\n", result.SignalsComputed)
	fmt.Printf("  Duration: %s\n", result.Duration)
}

// createStores builds the ledger and override stores for the configured
// backend, mirroring the server's wiring.
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
