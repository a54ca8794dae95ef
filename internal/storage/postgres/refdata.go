package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/autobalance/internal/game/host"
	"github.com/cory-johannsen/autobalance/internal/game/refdata"
)

// LFGRepository reads and writes dungeon level metadata.
type LFGRepository struct {
	db *pgxpool.Pool
}

// NewLFGRepository creates an LFGRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewLFGRepository(db *pgxpool.Pool) *LFGRepository {
	return &LFGRepository{db: db}
}

// Load reads every dungeon row into an immutable table.
//
// Postcondition: Returns a table (possibly empty) or a non-nil error.
func (r *LFGRepository) Load(ctx context.Context) (*refdata.LFGTable, error) {
	rows, err := r.db.Query(ctx, `
		SELECT map_id, difficulty, min_level, max_level, target_level
		FROM lfg_dungeons
		ORDER BY map_id, difficulty`)
	if err != nil {
		return nil, fmt.Errorf("listing lfg dungeons: %w", err)
	}
	defer rows.Close()

	var out []host.LFGDungeon
	for rows.Next() {
		var (
			d    host.LFGDungeon
			diff int16
		)
		if err := rows.Scan(&d.MapID, &diff, &d.MinLevel, &d.MaxLevel, &d.TargetLevel); err != nil {
			return nil, fmt.Errorf("scanning lfg dungeon: %w", err)
		}
		d.Difficulty = host.Difficulty(diff)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing lfg dungeons: %w", err)
	}
	return refdata.NewLFGTable(out), nil
}

// Upsert inserts or replaces the given dungeons in one transaction.
//
// Precondition: each dungeon must have MinLevel <= MaxLevel.
// Postcondition: Returns the number of rows written, or a non-nil error with nothing written.
func (r *LFGRepository) Upsert(ctx context.Context, dungeons []host.LFGDungeon) (int, error) {
	batch := &pgx.Batch{}
	for _, d := range dungeons {
		batch.Queue(`
			INSERT INTO lfg_dungeons (map_id, difficulty, min_level, max_level, target_level)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (map_id, difficulty) DO UPDATE SET
				min_level = EXCLUDED.min_level,
				max_level = EXCLUDED.max_level,
				target_level = EXCLUDED.target_level`,
			d.MapID, int16(d.Difficulty), d.MinLevel, d.MaxLevel, d.TargetLevel,
		)
	}
	if err := sendBatch(ctx, r.db, batch); err != nil {
		return 0, fmt.Errorf("upserting lfg dungeons: %w", err)
	}
	return len(dungeons), nil
}

// BaseStatRepository reads and writes per-level creature base stats.
type BaseStatRepository struct {
	db *pgxpool.Pool
}

// NewBaseStatRepository creates a BaseStatRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewBaseStatRepository(db *pgxpool.Pool) *BaseStatRepository {
	return &BaseStatRepository{db: db}
}

// Load reads every base-stat row into an immutable table.
//
// Postcondition: Returns a table (possibly empty) or a non-nil error.
func (r *BaseStatRepository) Load(ctx context.Context) (*refdata.BaseStatTable, error) {
	rows, err := r.db.Query(ctx, `
		SELECT level, health_era1, health_era2, health_era3, damage_era1, damage_era2, damage_era3
		FROM creature_base_stats
		ORDER BY level`)
	if err != nil {
		return nil, fmt.Errorf("listing base stats: %w", err)
	}
	defer rows.Close()

	var out []host.BaseStats
	for rows.Next() {
		var b host.BaseStats
		if err := rows.Scan(
			&b.Level,
			&b.Health[0], &b.Health[1], &b.Health[2],
			&b.Damage[0], &b.Damage[1], &b.Damage[2],
		); err != nil {
			return nil, fmt.Errorf("scanning base stats: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing base stats: %w", err)
	}
	return refdata.NewBaseStatTable(out), nil
}

// Upsert inserts or replaces the given rows in one transaction.
//
// Precondition: each row must have Level >= 1.
// Postcondition: Returns the number of rows written, or a non-nil error with nothing written.
func (r *BaseStatRepository) Upsert(ctx context.Context, stats []host.BaseStats) (int, error) {
	batch := &pgx.Batch{}
	for _, b := range stats {
		batch.Queue(`
			INSERT INTO creature_base_stats
				(level, health_era1, health_era2, health_era3, damage_era1, damage_era2, damage_era3)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (level) DO UPDATE SET
				health_era1 = EXCLUDED.health_era1,
				health_era2 = EXCLUDED.health_era2,
				health_era3 = EXCLUDED.health_era3,
				damage_era1 = EXCLUDED.damage_era1,
				damage_era2 = EXCLUDED.damage_era2,
				damage_era3 = EXCLUDED.damage_era3`,
			b.Level,
			b.Health[0], b.Health[1], b.Health[2],
			b.Damage[0], b.Damage[1], b.Damage[2],
		)
	}
	if err := sendBatch(ctx, r.db, batch); err != nil {
		return 0, fmt.Errorf("upserting base stats: %w", err)
	}
	return len(stats), nil
}

// sendBatch runs batch inside a transaction, rolling back on the first failure.
func sendBatch(ctx context.Context, db *pgxpool.Pool, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
