// Package content loads the reference data the scaling engine reads: LFG
// dungeon metadata and per-level creature base stats.
package content

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/autobalance/internal/config"
	"github.com/cory-johannsen/autobalance/internal/game/refdata"
	"github.com/cory-johannsen/autobalance/internal/storage/postgres"
)

// Tables is the loaded reference data.
type Tables struct {
	LFG       *refdata.LFGTable
	BaseStats *refdata.BaseStatTable
}

// Load reads reference data from the source named by cfg.Content: YAML files
// for "file", the reference-data tables for "postgres".
//
// Precondition: cfg must have passed Validate.
// Postcondition: Returns both tables or a non-nil error.
func Load(ctx context.Context, cfg config.Config, logger *zap.Logger) (Tables, error) {
	start := time.Now()
	var (
		t   Tables
		err error
	)
	switch cfg.Content.Source {
	case "file":
		t, err = loadFiles(cfg.Content)
	case "postgres":
		t, err = loadPostgres(ctx, cfg.Database)
	default:
		err = fmt.Errorf("unknown content source %q", cfg.Content.Source)
	}
	if err != nil {
		return Tables{}, fmt.Errorf("content.Load: %w", err)
	}
	logger.Info("reference data loaded",
		zap.String("source", cfg.Content.Source),
		zap.Int("dungeons", t.LFG.Len()),
		zap.Int("levels", t.BaseStats.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return t, nil
}

func loadFiles(c config.ContentConfig) (Tables, error) {
	lfg, err := refdata.LoadLFGFile(c.LFGFile)
	if err != nil {
		return Tables{}, err
	}
	stats, err := refdata.LoadBaseStatsFile(c.BaseStatsFile)
	if err != nil {
		return Tables{}, err
	}
	return Tables{LFG: lfg, BaseStats: stats}, nil
}

func loadPostgres(ctx context.Context, db config.DatabaseConfig) (Tables, error) {
	pool, err := postgres.NewPool(ctx, db)
	if err != nil {
		return Tables{}, err
	}
	defer pool.Close()
	if err := pool.CheckSchema(ctx); err != nil {
		return Tables{}, err
	}

	lfg, err := postgres.NewLFGRepository(pool.DB()).Load(ctx)
	if err != nil {
		return Tables{}, err
	}
	stats, err := postgres.NewBaseStatRepository(pool.DB()).Load(ctx)
	if err != nil {
		return Tables{}, err
	}
	return Tables{LFG: lfg, BaseStats: stats}, nil
}
