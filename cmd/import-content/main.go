// Package main imports LFG metadata and base-stat YAML files into the
// reference-data tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/cory-johannsen/autobalance/internal/config"
	"github.com/cory-johannsen/autobalance/internal/game/refdata"
	"github.com/cory-johannsen/autobalance/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	lfgFile := flag.String("lfg", "", "LFG metadata YAML; defaults to content.lfg_file")
	statsFile := flag.String("base-stats", "", "base-stat YAML; defaults to content.base_stats_file")
	dryRun := flag.Bool("dry-run", false, "parse and validate only")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		os.Exit(1)
	}
	if *lfgFile == "" {
		*lfgFile = cfg.Content.LFGFile
	}
	if *statsFile == "" {
		*statsFile = cfg.Content.BaseStatsFile
	}
	if *lfgFile == "" || *statsFile == "" {
		fmt.Fprintln(os.Stderr, "usage: import-content [-config <file>] [-lfg <file>] [-base-stats <file>] [-dry-run]")
		os.Exit(1)
	}

	start := time.Now()
	lfg, err := refdata.LoadLFGFile(*lfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	stats, err := refdata.LoadBaseStatsFile(*statsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *dryRun {
		fmt.Printf("validated %d dungeons and %d levels in %s\n", lfg.Len(), stats.Len(), time.Since(start).Round(time.Millisecond))
		return
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.CheckSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	nd, err := postgres.NewLFGRepository(pool.DB()).Upsert(ctx, lfg.Dungeons())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	nl, err := postgres.NewBaseStatRepository(pool.DB()).Upsert(ctx, stats.Rows())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("imported %d dungeons and %d levels in %s\n", nd, nl, time.Since(start).Round(time.Millisecond))
}
