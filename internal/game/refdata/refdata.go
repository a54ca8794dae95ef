// Package refdata provides in-memory LFG dungeon metadata and base-stat
// tables. Tables are built once at startup, from YAML content files or from
// the reference-data database, and are read-only afterwards.
package refdata

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/autobalance/internal/game/host"
)

type lfgKey struct {
	mapID      uint32
	difficulty host.Difficulty
}

// LFGTable is an immutable host.LFGSource.
type LFGTable struct {
	entries map[lfgKey]host.LFGDungeon
}

// NewLFGTable indexes dungeons by map id and difficulty. Later duplicates win.
func NewLFGTable(dungeons []host.LFGDungeon) *LFGTable {
	t := &LFGTable{entries: make(map[lfgKey]host.LFGDungeon, len(dungeons))}
	for _, d := range dungeons {
		t.entries[lfgKey{d.MapID, d.Difficulty}] = d
	}
	return t
}

// Dungeon implements host.LFGSource.
func (t *LFGTable) Dungeon(mapID uint32, d host.Difficulty) (host.LFGDungeon, bool) {
	e, ok := t.entries[lfgKey{mapID, d}]
	return e, ok
}

// Len reports the number of entries.
func (t *LFGTable) Len() int { return len(t.entries) }

// Dungeons returns all entries ordered by map id then difficulty.
func (t *LFGTable) Dungeons() []host.LFGDungeon {
	out := make([]host.LFGDungeon, 0, len(t.entries))
	for _, d := range t.entries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MapID != out[j].MapID {
			return out[i].MapID < out[j].MapID
		}
		return out[i].Difficulty < out[j].Difficulty
	})
	return out
}

// BaseStatTable is an immutable host.BaseStatSource.
type BaseStatTable struct {
	byLevel map[int]host.BaseStats
}

// NewBaseStatTable indexes base stats by level.
func NewBaseStatTable(rows []host.BaseStats) *BaseStatTable {
	t := &BaseStatTable{byLevel: make(map[int]host.BaseStats, len(rows))}
	for _, r := range rows {
		t.byLevel[r.Level] = r
	}
	return t
}

// BaseStats implements host.BaseStatSource.
func (t *BaseStatTable) BaseStats(level int) (host.BaseStats, bool) {
	r, ok := t.byLevel[level]
	return r, ok
}

// Len reports the number of levels.
func (t *BaseStatTable) Len() int { return len(t.byLevel) }

// Rows returns all rows in ascending level order.
func (t *BaseStatTable) Rows() []host.BaseStats {
	out := make([]host.BaseStats, 0, len(t.byLevel))
	for _, r := range t.byLevel {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out
}

type lfgFile struct {
	Dungeons []struct {
		MapID       uint32 `yaml:"map_id"`
		Difficulty  string `yaml:"difficulty"`
		MinLevel    int    `yaml:"min_level"`
		MaxLevel    int    `yaml:"max_level"`
		TargetLevel int    `yaml:"target_level"`
	} `yaml:"dungeons"`
}

type baseStatFile struct {
	BaseStats []struct {
		Level  int        `yaml:"level"`
		Health [3]float64 `yaml:"health"`
		Damage [3]float64 `yaml:"damage"`
	} `yaml:"base_stats"`
}

// ParseDifficulty maps "normal" or "heroic" to a host.Difficulty.
func ParseDifficulty(s string) (host.Difficulty, error) {
	switch strings.ToLower(s) {
	case "", "normal":
		return host.DifficultyNormal, nil
	case "heroic":
		return host.DifficultyHeroic, nil
	}
	return 0, fmt.Errorf("unknown difficulty %q: must be normal or heroic", s)
}

// LoadLFGFromBytes parses LFG metadata YAML.
//
// Postcondition: Returns a table or a non-nil error naming the bad entry.
func LoadLFGFromBytes(data []byte) (*LFGTable, error) {
	var f lfgFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing lfg yaml: %w", err)
	}
	out := make([]host.LFGDungeon, 0, len(f.Dungeons))
	for i, d := range f.Dungeons {
		diff, err := ParseDifficulty(d.Difficulty)
		if err != nil {
			return nil, fmt.Errorf("dungeons[%d]: %w", i, err)
		}
		if d.MinLevel > d.MaxLevel {
			return nil, fmt.Errorf("dungeons[%d]: min_level %d exceeds max_level %d", i, d.MinLevel, d.MaxLevel)
		}
		out = append(out, host.LFGDungeon{
			MapID:       d.MapID,
			Difficulty:  diff,
			MinLevel:    d.MinLevel,
			MaxLevel:    d.MaxLevel,
			TargetLevel: d.TargetLevel,
		})
	}
	return NewLFGTable(out), nil
}

// LoadBaseStatsFromBytes parses base-stat YAML.
func LoadBaseStatsFromBytes(data []byte) (*BaseStatTable, error) {
	var f baseStatFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing base stats yaml: %w", err)
	}
	out := make([]host.BaseStats, 0, len(f.BaseStats))
	for i, r := range f.BaseStats {
		if r.Level < 1 {
			return nil, fmt.Errorf("base_stats[%d]: level must be >= 1, got %d", i, r.Level)
		}
		out = append(out, host.BaseStats{Level: r.Level, Health: r.Health, Damage: r.Damage})
	}
	return NewBaseStatTable(out), nil
}

// LoadLFGFile reads and parses an LFG metadata file.
func LoadLFGFile(path string) (*LFGTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	t, err := LoadLFGFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// LoadBaseStatsFile reads and parses a base-stat file.
func LoadBaseStatsFile(path string) (*BaseStatTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	t, err := LoadBaseStatsFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
