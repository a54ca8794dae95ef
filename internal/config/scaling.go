package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/autobalance/internal/game/curve"
	"github.com/cory-johannsen/autobalance/internal/game/tuning"
)

// MinPlayersConfig holds the minimum player count per instance kind.
type MinPlayersConfig struct {
	Normal     int `mapstructure:"normal"`
	Heroic     int `mapstructure:"heroic"`
	Raid       int `mapstructure:"raid"`
	RaidHeroic int `mapstructure:"raid_heroic"`
}

// DynamicLevelConfig bounds dynamic level scaling for one instance kind.
type DynamicLevelConfig struct {
	Ceiling int `mapstructure:"ceiling"`
	Floor   int `mapstructure:"floor"`
}

// DynamicLevelsConfig holds DynamicLevelConfig per instance kind.
type DynamicLevelsConfig struct {
	Dungeon       DynamicLevelConfig `mapstructure:"dungeon"`
	HeroicDungeon DynamicLevelConfig `mapstructure:"heroic_dungeon"`
	Raid          DynamicLevelConfig `mapstructure:"raid"`
	HeroicRaid    DynamicLevelConfig `mapstructure:"heroic_raid"`
}

// FormulasConfig names the curve formula per axis: tan, log, exp or pol.
// Empty names use tan.
type FormulasConfig struct {
	Health     string `mapstructure:"health"`
	Mana       string `mapstructure:"mana"`
	Armor      string `mapstructure:"armor"`
	Damage     string `mapstructure:"damage"`
	BossHealth string `mapstructure:"boss_health"`
	BossMana   string `mapstructure:"boss_mana"`
	BossArmor  string `mapstructure:"boss_armor"`
	BossDamage string `mapstructure:"boss_damage"`
}

// LimitsConfig bounds per-creature multipliers.
type LimitsConfig struct {
	MinHPModifier     float64 `mapstructure:"min_hp_modifier"`
	MinManaModifier   float64 `mapstructure:"min_mana_modifier"`
	MinDamageModifier float64 `mapstructure:"min_damage_modifier"`
	MinCCDuration     float64 `mapstructure:"min_cc_duration"`
	MaxCCDuration     float64 `mapstructure:"max_cc_duration"`
}

// StatModifiersConfig is a stat-modifier layer; nil fields are unset.
type StatModifiersConfig struct {
	Global     *float64 `mapstructure:"global"`
	Health     *float64 `mapstructure:"health"`
	Mana       *float64 `mapstructure:"mana"`
	Armor      *float64 `mapstructure:"armor"`
	Damage     *float64 `mapstructure:"damage"`
	CCDuration *float64 `mapstructure:"cc_duration"`
}

// BracketConfig overrides one bracket row. Nil fields keep the built-in
// default.
type BracketConfig struct {
	Enabled           *bool                `mapstructure:"enabled"`
	Inflection        *float64             `mapstructure:"inflection"`
	Floor             *float64             `mapstructure:"floor"`
	Ceiling           *float64             `mapstructure:"ceiling"`
	Health            *float64             `mapstructure:"health"`
	Mana              *float64             `mapstructure:"mana"`
	Armor             *float64             `mapstructure:"armor"`
	Damage            *float64             `mapstructure:"damage"`
	Boss              *float64             `mapstructure:"boss"`
	BossInflection    *float64             `mapstructure:"boss_inflection"`
	BossHealth        *float64             `mapstructure:"boss_health"`
	BossMana          *float64             `mapstructure:"boss_mana"`
	BossArmor         *float64             `mapstructure:"boss_armor"`
	BossDamage        *float64             `mapstructure:"boss_damage"`
	StatModifiers     *StatModifiersConfig `mapstructure:"stat_modifiers"`
	BossStatModifiers *StatModifiersConfig `mapstructure:"boss_stat_modifiers"`
}

// MinPlayersOverridesConfig holds per-dungeon minimum player records.
type MinPlayersOverridesConfig struct {
	Normal string `mapstructure:"normal"`
	Heroic string `mapstructure:"heroic"`
}

// OverridesConfig holds the override tables as record strings. See
// ParseRecords for the format.
type OverridesConfig struct {
	Inflection            string                    `mapstructure:"inflection"`
	BossInflection        string                    `mapstructure:"boss_inflection"`
	StatModifiers         string                    `mapstructure:"stat_modifiers"`
	BossStatModifiers     string                    `mapstructure:"boss_stat_modifiers"`
	CreatureStatModifiers string                    `mapstructure:"creature_stat_modifiers"`
	DynamicLevel          string                    `mapstructure:"dynamic_level"`
	Distance              string                    `mapstructure:"distance"`
	MinPlayers            MinPlayersOverridesConfig `mapstructure:"min_players"`
	ForcedPlayers         string                    `mapstructure:"forced_players"`
	Disabled              string                    `mapstructure:"disabled"`
}

// ScalingConfig is the scaling section of the configuration.
type ScalingConfig struct {
	EnableGlobal                bool                     `mapstructure:"enable_global"`
	LevelScaling                bool                     `mapstructure:"level_scaling"`
	LevelScalingMethod          string                   `mapstructure:"level_scaling_method"`
	SkipHigherLevels            int                      `mapstructure:"skip_higher_levels"`
	SkipLowerLevels             int                      `mapstructure:"skip_lower_levels"`
	PlayerCountDifficultyOffset int                      `mapstructure:"player_count_difficulty_offset"`
	UseGroupSizeForDifficulty   bool                     `mapstructure:"use_group_size_for_difficulty"`
	IncludeGMsInPlayerCount     bool                     `mapstructure:"include_gms_in_player_count"`
	MinPlayers                  MinPlayersConfig         `mapstructure:"min_players"`
	DynamicLevel                DynamicLevelsConfig      `mapstructure:"dynamic_level"`
	Formulas                    FormulasConfig           `mapstructure:"formulas"`
	Limits                      LimitsConfig             `mapstructure:"limits"`
	Brackets                    map[string]BracketConfig `mapstructure:"brackets"`
	Overrides                   OverridesConfig          `mapstructure:"overrides"`
}

// Validate checks the scaling section by building a snapshot from it.
//
// Postcondition: Returns nil if Snapshot would succeed.
func (s ScalingConfig) Validate() error {
	_, err := s.Snapshot()
	return err
}

// Snapshot builds an immutable tuning snapshot from the configuration.
//
// Postcondition: Returns a non-nil Snapshot, or an error describing every
// violation.
func (s ScalingConfig) Snapshot() (*tuning.Snapshot, error) {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	settings := tuning.DefaultSettings()
	settings.EnableGlobal = s.EnableGlobal
	settings.LevelScaling = s.LevelScaling
	switch strings.ToLower(s.LevelScalingMethod) {
	case "dynamic":
		settings.LevelScalingMethod = tuning.ScalingDynamic
	case "fixed":
		settings.LevelScalingMethod = tuning.ScalingFixed
	default:
		fail("scaling.level_scaling_method must be one of [fixed, dynamic], got %q", s.LevelScalingMethod)
	}
	if s.SkipHigherLevels < 0 || s.SkipLowerLevels < 0 {
		fail("scaling.skip_higher_levels and scaling.skip_lower_levels must be >= 0")
	}
	settings.SkipHigherLevels = s.SkipHigherLevels
	settings.SkipLowerLevels = s.SkipLowerLevels
	settings.PlayerCountDifficultyOffset = s.PlayerCountDifficultyOffset
	settings.UseGroupSizeForDifficulty = s.UseGroupSizeForDifficulty
	settings.IncludeGMsInPlayerCount = s.IncludeGMsInPlayerCount

	minPlayers := map[tuning.Kind]int{
		tuning.KindDungeon:       s.MinPlayers.Normal,
		tuning.KindHeroicDungeon: s.MinPlayers.Heroic,
		tuning.KindRaid:          s.MinPlayers.Raid,
		tuning.KindHeroicRaid:    s.MinPlayers.RaidHeroic,
	}
	for k, n := range minPlayers {
		if n < 0 {
			fail("scaling.min_players must be >= 0, got %d", n)
		}
		settings.MinPlayers[k] = n
	}

	levels := map[tuning.Kind]DynamicLevelConfig{
		tuning.KindDungeon:       s.DynamicLevel.Dungeon,
		tuning.KindHeroicDungeon: s.DynamicLevel.HeroicDungeon,
		tuning.KindRaid:          s.DynamicLevel.Raid,
		tuning.KindHeroicRaid:    s.DynamicLevel.HeroicRaid,
	}
	for k, dl := range levels {
		if dl.Ceiling < 0 || dl.Floor < 0 {
			fail("scaling.dynamic_level ceiling and floor must be >= 0")
		}
		settings.DynamicLevel[k] = tuning.DynamicLevel{Ceiling: dl.Ceiling, Floor: dl.Floor}
	}

	formulas := []struct {
		key  string
		name string
		dst  *curve.Kind
	}{
		{"health", s.Formulas.Health, &settings.Formulas.Normal[tuning.Health]},
		{"mana", s.Formulas.Mana, &settings.Formulas.Normal[tuning.Mana]},
		{"armor", s.Formulas.Armor, &settings.Formulas.Normal[tuning.Armor]},
		{"damage", s.Formulas.Damage, &settings.Formulas.Normal[tuning.Damage]},
		{"boss_health", s.Formulas.BossHealth, &settings.Formulas.Boss[tuning.Health]},
		{"boss_mana", s.Formulas.BossMana, &settings.Formulas.Boss[tuning.Mana]},
		{"boss_armor", s.Formulas.BossArmor, &settings.Formulas.Boss[tuning.Armor]},
		{"boss_damage", s.Formulas.BossDamage, &settings.Formulas.Boss[tuning.Damage]},
	}
	for _, f := range formulas {
		if f.name == "" {
			continue
		}
		k, err := curve.ParseKind(f.name)
		if err != nil {
			fail("scaling.formulas.%s: %v", f.key, err)
			continue
		}
		*f.dst = k
	}

	l := s.Limits
	if l.MinCCDuration > l.MaxCCDuration {
		fail("scaling.limits.min_cc_duration must not exceed max_cc_duration")
	}
	if l.MinHPModifier < 0 || l.MinManaModifier < 0 || l.MinDamageModifier < 0 || l.MinCCDuration < 0 {
		fail("scaling.limits must not be negative")
	}
	settings.Limits = tuning.Limits{
		MinHealth:     l.MinHPModifier,
		MinMana:       l.MinManaModifier,
		MinDamage:     l.MinDamageModifier,
		MinCCDuration: l.MinCCDuration,
		MaxCCDuration: l.MaxCCDuration,
	}

	brackets := tuning.DefaultBrackets()
	for name, bc := range s.Brackets {
		b, err := tuning.ParseBracket(name)
		if err != nil {
			fail("scaling.brackets: %v", err)
			continue
		}
		row, err := bc.apply(brackets[b])
		if err != nil {
			fail("scaling.brackets.%s: %v", name, err)
			continue
		}
		brackets[b] = row
	}

	overrides, err := s.Overrides.tables()
	if err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return tuning.New(settings, brackets, overrides), nil
}

func opt(p *float64) tuning.Opt[float64] {
	if p == nil {
		return tuning.Opt[float64]{}
	}
	return tuning.Some(*p)
}

func (m *StatModifiersConfig) layer() tuning.Modifiers {
	if m == nil {
		return tuning.Modifiers{}
	}
	return tuning.Modifiers{
		Global:     opt(m.Global),
		Health:     opt(m.Health),
		Mana:       opt(m.Mana),
		Armor:      opt(m.Armor),
		Damage:     opt(m.Damage),
		CCDuration: opt(m.CCDuration),
	}
}

func (bc BracketConfig) apply(row tuning.BracketSettings) (tuning.BracketSettings, error) {
	if bc.Enabled != nil {
		row.Enabled = *bc.Enabled
	}
	row.Inflection = opt(bc.Inflection).Or(row.Inflection)
	row.Floor = opt(bc.Floor).Or(row.Floor)
	row.Ceiling = opt(bc.Ceiling).Or(row.Ceiling)
	row.Boss = opt(bc.Boss).Or(row.Boss)
	row.BossInflection = opt(bc.BossInflection).Over(row.BossInflection)

	stats := [...]struct {
		axis       tuning.Axis
		normal     *float64
		bossNormal *float64
	}{
		{tuning.Health, bc.Health, bc.BossHealth},
		{tuning.Mana, bc.Mana, bc.BossMana},
		{tuning.Armor, bc.Armor, bc.BossArmor},
		{tuning.Damage, bc.Damage, bc.BossDamage},
	}
	for _, s := range stats {
		row.Stat[s.axis] = opt(s.normal).Over(row.Stat[s.axis])
		row.BossStat[s.axis] = opt(s.bossNormal).Over(row.BossStat[s.axis])
	}

	row.Modifiers = bc.StatModifiers.layer().Over(row.Modifiers)
	row.BossModifiers = bc.BossStatModifiers.layer().Over(row.BossModifiers)

	if row.Floor > row.Ceiling {
		return row, fmt.Errorf("floor %v exceeds ceiling %v", row.Floor, row.Ceiling)
	}
	if row.Inflection < 0 || row.Boss < 0 {
		return row, fmt.Errorf("inflection and boss must not be negative")
	}
	return row, nil
}

func (o OverridesConfig) tables() (tuning.Overrides, error) {
	var out tuning.Overrides
	var errs []string
	parse := func(key string, fn func() error) {
		if err := fn(); err != nil {
			errs = append(errs, fmt.Sprintf("scaling.overrides.%s: %v", key, err))
		}
	}
	var err error
	parse("inflection", func() error { out.Inflection, err = inflectionTable(o.Inflection); return err })
	parse("boss_inflection", func() error { out.BossInflection, err = inflectionTable(o.BossInflection); return err })
	parse("stat_modifiers", func() error { out.StatModifiers, err = modifierTable(o.StatModifiers); return err })
	parse("boss_stat_modifiers", func() error { out.BossStatModifiers, err = modifierTable(o.BossStatModifiers); return err })
	parse("creature_stat_modifiers", func() error {
		out.CreatureStatModifiers, err = modifierTable(o.CreatureStatModifiers)
		return err
	})
	parse("dynamic_level", func() error { out.DynamicLevel, err = levelTable(o.DynamicLevel); return err })
	parse("distance", func() error { out.Distance, err = floatTable(o.Distance); return err })
	parse("min_players.normal", func() error { out.MinPlayersNormal, err = intTable(o.MinPlayers.Normal); return err })
	parse("min_players.heroic", func() error { out.MinPlayersHeroic, err = intTable(o.MinPlayers.Heroic); return err })
	parse("forced_players", func() error { out.ForcedPlayers, err = intTable(o.ForcedPlayers); return err })
	parse("disabled", func() error { out.Disabled, err = idSet(o.Disabled); return err })
	if len(errs) > 0 {
		return tuning.Overrides{}, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return out, nil
}

func setScalingDefaults(v *viper.Viper) {
	d := tuning.DefaultSettings()
	v.SetDefault("scaling.enable_global", d.EnableGlobal)
	v.SetDefault("scaling.level_scaling", d.LevelScaling)
	v.SetDefault("scaling.level_scaling_method", "dynamic")
	v.SetDefault("scaling.skip_higher_levels", d.SkipHigherLevels)
	v.SetDefault("scaling.skip_lower_levels", d.SkipLowerLevels)
	v.SetDefault("scaling.player_count_difficulty_offset", 0)
	v.SetDefault("scaling.use_group_size_for_difficulty", false)
	v.SetDefault("scaling.include_gms_in_player_count", false)

	v.SetDefault("scaling.min_players.normal", d.MinPlayers[tuning.KindDungeon])
	v.SetDefault("scaling.min_players.heroic", d.MinPlayers[tuning.KindHeroicDungeon])
	v.SetDefault("scaling.min_players.raid", d.MinPlayers[tuning.KindRaid])
	v.SetDefault("scaling.min_players.raid_heroic", d.MinPlayers[tuning.KindHeroicRaid])

	kinds := map[string]tuning.Kind{
		"dungeon":        tuning.KindDungeon,
		"heroic_dungeon": tuning.KindHeroicDungeon,
		"raid":           tuning.KindRaid,
		"heroic_raid":    tuning.KindHeroicRaid,
	}
	for name, k := range kinds {
		v.SetDefault("scaling.dynamic_level."+name+".ceiling", d.DynamicLevel[k].Ceiling)
		v.SetDefault("scaling.dynamic_level."+name+".floor", d.DynamicLevel[k].Floor)
	}

	for _, key := range []string{"health", "mana", "armor", "damage", "boss_health", "boss_mana", "boss_armor", "boss_damage"} {
		v.SetDefault("scaling.formulas."+key, curve.Tan.String())
	}

	v.SetDefault("scaling.limits.min_hp_modifier", d.Limits.MinHealth)
	v.SetDefault("scaling.limits.min_mana_modifier", d.Limits.MinMana)
	v.SetDefault("scaling.limits.min_damage_modifier", d.Limits.MinDamage)
	v.SetDefault("scaling.limits.min_cc_duration", d.Limits.MinCCDuration)
	v.SetDefault("scaling.limits.max_cc_duration", d.Limits.MaxCCDuration)
}
