package tuning

import (
	"fmt"

	"github.com/cory-johannsen/autobalance/internal/game/curve"
)

// Bracket is a (difficulty, capacity range) pair selecting a base tier.
type Bracket int

const (
	Dungeon Bracket = iota
	Raid10
	Raid15
	Raid20
	Raid25
	Raid40
	Raid
	HeroicDungeon
	HeroicRaid10
	HeroicRaid25
	HeroicRaid
	bracketCount
)

type bracketBound struct {
	maxCapacity int
	bracket     Bracket
}

// Heroic difficulty has no 15, 20 or 40 player tiers.
var (
	normalBrackets = []bracketBound{
		{5, Dungeon}, {10, Raid10}, {15, Raid15}, {20, Raid20}, {25, Raid25}, {40, Raid40},
	}
	heroicBrackets = []bracketBound{
		{5, HeroicDungeon}, {10, HeroicRaid10}, {25, HeroicRaid25},
	}
)

var bracketNames = [bracketCount]string{
	Dungeon:       "dungeon",
	Raid10:        "raid10",
	Raid15:        "raid15",
	Raid20:        "raid20",
	Raid25:        "raid25",
	Raid40:        "raid40",
	Raid:          "raid",
	HeroicDungeon: "heroic_dungeon",
	HeroicRaid10:  "heroic_raid10",
	HeroicRaid25:  "heroic_raid25",
	HeroicRaid:    "heroic_raid",
}

// BracketFor selects the bracket for an instance capacity and difficulty.
func BracketFor(capacity int, heroic bool) Bracket {
	table, other := normalBrackets, Raid
	if heroic {
		table, other = heroicBrackets, HeroicRaid
	}
	for _, b := range table {
		if capacity <= b.maxCapacity {
			return b.bracket
		}
	}
	return other
}

// String returns the configuration key of the bracket.
func (b Bracket) String() string {
	if b >= 0 && b < bracketCount {
		return bracketNames[b]
	}
	return fmt.Sprintf("bracket(%d)", int(b))
}

// AllBrackets lists every bracket in table order.
func AllBrackets() []Bracket {
	out := make([]Bracket, 0, bracketCount)
	for b := Dungeon; b < bracketCount; b++ {
		out = append(out, b)
	}
	return out
}

// ParseBracket maps a configuration key to a Bracket.
func ParseBracket(s string) (Bracket, error) {
	for b, name := range bracketNames {
		if name == s {
			return Bracket(b), nil
		}
	}
	return 0, fmt.Errorf("unknown bracket %q", s)
}

// Kind groups instances for minimum player and dynamic level settings.
type Kind int

const (
	KindDungeon Kind = iota
	KindHeroicDungeon
	KindRaid
	KindHeroicRaid
	kindCount
)

// KindFor classifies an instance by capacity and difficulty.
func KindFor(capacity int, heroic bool) Kind {
	switch {
	case capacity <= 5 && heroic:
		return KindHeroicDungeon
	case capacity <= 5:
		return KindDungeon
	case heroic:
		return KindHeroicRaid
	default:
		return KindRaid
	}
}

// Axis is a scaled creature stat.
type Axis int

const (
	Health Axis = iota
	Mana
	Armor
	Damage
	axisCount
)

var axisNames = [axisCount]string{"health", "mana", "armor", "damage"}

// String returns the lower-case axis name.
func (a Axis) String() string {
	if a >= 0 && a < axisCount {
		return axisNames[a]
	}
	return fmt.Sprintf("axis(%d)", int(a))
}

// Axes lists every axis.
func Axes() []Axis { return []Axis{Health, Mana, Armor, Damage} }

// AxisValues holds one optional value per axis.
type AxisValues [axisCount]Opt[float64]

// Modifiers is a stat-modifier layer. Unset fields inherit from lower layers.
type Modifiers struct {
	Global     Opt[float64]
	Health     Opt[float64]
	Mana       Opt[float64]
	Armor      Opt[float64]
	Damage     Opt[float64]
	CCDuration Opt[float64]
}

// Over layers m on top of lower field by field.
func (m Modifiers) Over(lower Modifiers) Modifiers {
	return Modifiers{
		Global:     m.Global.Over(lower.Global),
		Health:     m.Health.Over(lower.Health),
		Mana:       m.Mana.Over(lower.Mana),
		Armor:      m.Armor.Over(lower.Armor),
		Damage:     m.Damage.Over(lower.Damage),
		CCDuration: m.CCDuration.Over(lower.CCDuration),
	}
}

// Axis returns the modifier for a stat axis.
func (m Modifiers) Axis(a Axis) Opt[float64] {
	switch a {
	case Health:
		return m.Health
	case Mana:
		return m.Mana
	case Armor:
		return m.Armor
	default:
		return m.Damage
	}
}

// BracketSettings is one row of the bracket table.
type BracketSettings struct {
	Enabled bool
	// Inflection is the curve centre as a fraction of capacity.
	Inflection float64
	Floor      float64
	Ceiling    float64
	// Stat replaces Inflection for a single axis.
	Stat AxisValues
	// Boss multiplies the resolved inflection value for bosses.
	Boss           float64
	BossInflection Opt[float64]
	BossStat       AxisValues
	Modifiers      Modifiers
	BossModifiers  Modifiers
}

// Brackets is the complete bracket table.
type Brackets [bracketCount]BracketSettings

// Formulas selects a curve kind per axis, separately for bosses.
type Formulas struct {
	Normal [axisCount]curve.Kind
	Boss   [axisCount]curve.Kind
}

// For returns the formula for an axis.
func (f Formulas) For(a Axis, boss bool) curve.Kind {
	if boss {
		return f.Boss[a]
	}
	return f.Normal[a]
}
