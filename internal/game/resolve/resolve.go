// Package resolve layers bracket defaults, dungeon overrides, boss overrides
// and creature overrides into the settings handed to the curve engine.
//
// Every function here is pure over a *tuning.Snapshot. A missing table entry
// is never an error; resolution falls through to the next layer.
package resolve

import (
	"github.com/cory-johannsen/autobalance/internal/game/curve"
	"github.com/cory-johannsen/autobalance/internal/game/tuning"
)

// Query identifies what is being resolved.
type Query struct {
	MapID    uint32
	Capacity int
	Heroic   bool
	Boss     bool
	// Entry is the creature template id. Zero means no creature.
	Entry uint32
}

// Modifiers is a fully resolved stat-modifier set.
type Modifiers struct {
	Global     float64
	Health     float64
	Mana       float64
	Armor      float64
	Damage     float64
	CCDuration float64
}

// Axis returns the modifier for a stat axis.
func (m Modifiers) Axis(a tuning.Axis) float64 {
	switch a {
	case tuning.Health:
		return m.Health
	case tuning.Mana:
		return m.Mana
	case tuning.Armor:
		return m.Armor
	default:
		return m.Damage
	}
}

// Inflection resolves the curve settings for one axis.
//
// Postcondition: Returns settings for every input; never fails.
func Inflection(snap *tuning.Snapshot, q Query, axis tuning.Axis) curve.Inflection {
	b := snap.BracketFor(q.Capacity, q.Heroic)
	capacity := float64(q.Capacity)

	value := capacity * b.Inflection
	if stat, ok := b.Stat[axis].Get(); ok {
		value = capacity * stat
	}
	floor, ceiling := b.Floor, b.Ceiling

	if ov, ok := snap.InflectionOverride(q.MapID, false); ok {
		if v, ok := ov.Value.Get(); ok {
			value = capacity * v
		}
		floor = ov.Floor.Or(floor)
		ceiling = ov.Ceiling.Or(ceiling)
	}

	if q.Boss {
		value = bossValue(snap, q, b, axis, value)
	}
	return curve.Inflection{Value: value, Floor: floor, Ceiling: ceiling}
}

// bossValue applies the boss layer. A boss override value scales the prior
// value; its floor and ceiling are not used.
func bossValue(snap *tuning.Snapshot, q Query, b tuning.BracketSettings, axis tuning.Axis, value float64) float64 {
	capacity := float64(q.Capacity)
	if ov, ok := snap.InflectionOverride(q.MapID, true); ok {
		if v, ok := ov.Value.Get(); ok {
			return value * v
		}
	}
	if v, ok := b.BossStat[axis].Get(); ok {
		return capacity * v
	}
	if v, ok := b.BossInflection.Get(); ok {
		return capacity * v
	}
	return value * b.Boss
}

// StatModifiers resolves the six stat modifiers.
//
// Postcondition: Every field is set. An unset field resolves to 1.0.
func StatModifiers(snap *tuning.Snapshot, q Query) Modifiers {
	b := snap.BracketFor(q.Capacity, q.Heroic)
	layered := b.Modifiers
	if q.Boss {
		layered = b.BossModifiers
	}

	if ov, ok := snap.StatModifierOverride(q.MapID, true); q.Boss && ok {
		layered = ov.Over(layered)
	} else if ov, ok := snap.StatModifierOverride(q.MapID, false); ok {
		layered = ov.Over(layered)
	}

	if q.Entry != 0 {
		if ov, ok := snap.CreatureOverride(q.Entry); ok {
			layered = ov.Over(layered)
		}
	}

	return Modifiers{
		Global:     layered.Global.Or(1),
		Health:     layered.Health.Or(1),
		Mana:       layered.Mana.Or(1),
		Armor:      layered.Armor.Or(1),
		Damage:     layered.Damage.Or(1),
		CCDuration: layered.CCDuration.Or(1),
	}
}
