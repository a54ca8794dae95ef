// Package tuning holds the immutable configuration snapshot consumed by the
// scaling engine: global settings, the bracket table and the per-dungeon and
// per-creature override tables.
//
// A Snapshot is never mutated after New returns. Reloading configuration
// builds a new Snapshot and swaps the reference.
package tuning

import (
	"maps"

	"github.com/google/uuid"
)

// ScalingMethod selects how a creature's level follows the instance level.
type ScalingMethod int

const (
	// ScalingDynamic shifts each creature by the instance level delta.
	ScalingDynamic ScalingMethod = iota
	// ScalingFixed pins every creature to the instance level.
	ScalingFixed
)

// DynamicLevel bounds the levels a creature may be scaled to.
type DynamicLevel struct {
	Ceiling int
	Floor   int
}

// Limits bound per-creature multipliers.
type Limits struct {
	MinHealth     float64
	MinMana       float64
	MinDamage     float64
	MinCCDuration float64
	MaxCCDuration float64
}

// Settings are the process-wide scalar options.
type Settings struct {
	EnableGlobal                bool
	LevelScaling                bool
	LevelScalingMethod          ScalingMethod
	SkipHigherLevels            int
	SkipLowerLevels             int
	PlayerCountDifficultyOffset int
	UseGroupSizeForDifficulty   bool
	IncludeGMsInPlayerCount     bool
	MinPlayers                  [kindCount]int
	DynamicLevel                [kindCount]DynamicLevel
	Formulas                    Formulas
	Limits                      Limits
}

// InflectionOverride replaces inflection fields for one dungeon.
type InflectionOverride struct {
	Value   Opt[float64]
	Floor   Opt[float64]
	Ceiling Opt[float64]
}

// LevelOverride replaces dynamic level fields for one dungeon.
type LevelOverride struct {
	SkipHigher Opt[int]
	SkipLower  Opt[int]
	Ceiling    Opt[int]
	Floor      Opt[int]
}

// Overrides are the keyed override tables. Dungeon tables are keyed by map
// id, creature tables by creature entry.
type Overrides struct {
	Inflection            map[uint32]InflectionOverride
	BossInflection        map[uint32]InflectionOverride
	StatModifiers         map[uint32]Modifiers
	BossStatModifiers     map[uint32]Modifiers
	CreatureStatModifiers map[uint32]Modifiers
	DynamicLevel          map[uint32]LevelOverride
	Distance              map[uint32]float64
	MinPlayersNormal      map[uint32]int
	MinPlayersHeroic      map[uint32]int
	ForcedPlayers         map[uint32]int
	Disabled              map[uint32]bool
}

func (o Overrides) clone() Overrides {
	return Overrides{
		Inflection:            maps.Clone(o.Inflection),
		BossInflection:        maps.Clone(o.BossInflection),
		StatModifiers:         maps.Clone(o.StatModifiers),
		BossStatModifiers:     maps.Clone(o.BossStatModifiers),
		CreatureStatModifiers: maps.Clone(o.CreatureStatModifiers),
		DynamicLevel:          maps.Clone(o.DynamicLevel),
		Distance:              maps.Clone(o.Distance),
		MinPlayersNormal:      maps.Clone(o.MinPlayersNormal),
		MinPlayersHeroic:      maps.Clone(o.MinPlayersHeroic),
		ForcedPlayers:         maps.Clone(o.ForcedPlayers),
		Disabled:              maps.Clone(o.Disabled),
	}
}

// Snapshot is an immutable view of the configuration.
//
// All methods are safe for concurrent use.
type Snapshot struct {
	id        uuid.UUID
	settings  Settings
	brackets  Brackets
	overrides Overrides
}

// New builds a Snapshot. The override maps are copied.
//
// Postcondition: Returns a non-nil Snapshot with a fresh id.
func New(settings Settings, brackets Brackets, overrides Overrides) *Snapshot {
	return &Snapshot{
		id:        uuid.New(),
		settings:  settings,
		brackets:  brackets,
		overrides: overrides.clone(),
	}
}

// Default returns a Snapshot built from DefaultSettings and DefaultBrackets
// with no overrides.
func Default() *Snapshot {
	return New(DefaultSettings(), DefaultBrackets(), Overrides{})
}

// ID identifies this snapshot.
func (s *Snapshot) ID() uuid.UUID { return s.id }

// Settings returns a copy of the scalar settings.
func (s *Snapshot) Settings() Settings { return s.settings }

// Bracket returns the row for b.
func (s *Snapshot) Bracket(b Bracket) BracketSettings { return s.brackets[b] }

// BracketFor returns the row for a capacity and difficulty.
func (s *Snapshot) BracketFor(capacity int, heroic bool) BracketSettings {
	return s.brackets[BracketFor(capacity, heroic)]
}

// InflectionOverride looks up the dungeon inflection override.
func (s *Snapshot) InflectionOverride(mapID uint32, boss bool) (InflectionOverride, bool) {
	if boss {
		o, ok := s.overrides.BossInflection[mapID]
		return o, ok
	}
	o, ok := s.overrides.Inflection[mapID]
	return o, ok
}

// StatModifierOverride looks up the dungeon stat-modifier override.
func (s *Snapshot) StatModifierOverride(mapID uint32, boss bool) (Modifiers, bool) {
	if boss {
		o, ok := s.overrides.BossStatModifiers[mapID]
		return o, ok
	}
	o, ok := s.overrides.StatModifiers[mapID]
	return o, ok
}

// CreatureOverride looks up the stat-modifier override for a creature entry.
func (s *Snapshot) CreatureOverride(entry uint32) (Modifiers, bool) {
	o, ok := s.overrides.CreatureStatModifiers[entry]
	return o, ok
}

// LevelOverride looks up the dungeon dynamic level override.
func (s *Snapshot) LevelOverride(mapID uint32) (LevelOverride, bool) {
	o, ok := s.overrides.DynamicLevel[mapID]
	return o, ok
}

// Distance returns the dungeon distance threshold, if configured.
func (s *Snapshot) Distance(mapID uint32) Opt[float64] {
	if d, ok := s.overrides.Distance[mapID]; ok {
		return Some(d)
	}
	return Opt[float64]{}
}

// MinPlayersOverride returns the per-dungeon minimum player count.
func (s *Snapshot) MinPlayersOverride(mapID uint32, heroic bool) (int, bool) {
	table := s.overrides.MinPlayersNormal
	if heroic {
		table = s.overrides.MinPlayersHeroic
	}
	n, ok := table[mapID]
	return n, ok
}

// ForcedPlayers returns the forced player count for a creature entry.
func (s *Snapshot) ForcedPlayers(entry uint32) (int, bool) {
	n, ok := s.overrides.ForcedPlayers[entry]
	return n, ok
}

// Disabled reports whether scaling is switched off for a dungeon.
func (s *Snapshot) Disabled(mapID uint32) bool {
	return s.overrides.Disabled[mapID]
}

// DefaultSettings returns the stock scalar settings.
func DefaultSettings() Settings {
	s := Settings{
		EnableGlobal:       true,
		LevelScaling:       true,
		LevelScalingMethod: ScalingDynamic,
		SkipHigherLevels:   3,
		SkipLowerLevels:    5,
		Limits: Limits{
			MinHealth:     0.1,
			MinMana:       0.01,
			MinDamage:     0.01,
			MinCCDuration: 0.25,
			MaxCCDuration: 1.0,
		},
	}
	for k := range s.MinPlayers {
		s.MinPlayers[k] = 1
	}
	s.DynamicLevel[KindDungeon] = DynamicLevel{Ceiling: 1, Floor: 5}
	s.DynamicLevel[KindHeroicDungeon] = DynamicLevel{Ceiling: 2, Floor: 5}
	s.DynamicLevel[KindRaid] = DynamicLevel{Ceiling: 3, Floor: 5}
	s.DynamicLevel[KindHeroicRaid] = DynamicLevel{Ceiling: 3, Floor: 5}
	return s
}

// DefaultBrackets returns a table where every bracket is enabled with a
// centred curve from 0 to 1 and neutral stat modifiers.
func DefaultBrackets() Brackets {
	neutral := Modifiers{Global: F(1), Health: F(1), Mana: F(1), Armor: F(1), Damage: F(1)}
	var b Brackets
	for i := range b {
		b[i] = BracketSettings{
			Enabled:       true,
			Inflection:    0.5,
			Floor:         0,
			Ceiling:       1,
			Boss:          0.5,
			Modifiers:     neutral,
			BossModifiers: neutral,
		}
	}
	return b
}
