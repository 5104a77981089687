// Package main generates the offline analytics report: a full recompute
// from the ledger followed by Markdown and CSV output.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"trade-intel-lab/internal/config"
	"trade-intel-lab/internal/pipeline"
	"trade-intel-lab/internal/reporting"
	"trade-intel-lab/internal/snapshot"
	"trade-intel-lab/internal/storage"
	chstore "trade-intel-lab/internal/storage/clickhouse"
	"trade-intel-lab/internal/storage/memory"
	"trade-intel-lab/internal/storage/migrations"
	pgstore "trade-intel-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	outputDir := flag.String("output-dir", "output", "Output directory for generated files")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	outcomes, overrides, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating stores: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	holder := snapshot.NewHolder()
	refresher := pipeline.NewRefresher(pipeline.Options{
		OutcomeStore:  outcomes,
		OverrideStore: overrides,
		Holder:        holder,
		Config:        pipeline.ConfigFrom(cfg),
		Logger:        log.Logger,
	})

	result, err := refresher.Refresh(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error recomputing analytics: %v\n", err)
		os.Exit(1)
	}

	report, err := reporting.NewGenerator(outcomes).Generate(ctx, holder.Current(), result.MalformedRows)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output dir: %v\n", err)
		os.Exit(1)
	}

	mdPath := filepath.Join(*outputDir, "INTEL_REPORT.md")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing markdown: %v\n", err)
		os.Exit(1)
	}

	csvPath := filepath.Join(*outputDir, "ENGINE_METRICS.csv")
	if err := os.WriteFile(csvPath, []byte(reporting.RenderCSV(report.EngineMetrics)), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing csv: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Report generated successfully:")
	fmt.Printf("  - %s\n", mdPath)
	fmt.Printf("  - %s\n", csvPath)
	fmt.Printf("Ledger: %d trades (%d malformed excluded)\n", result.LedgerSize, result.MalformedRows)
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
