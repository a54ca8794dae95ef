package instance

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/autobalance/internal/game/curve"
	"github.com/cory-johannsen/autobalance/internal/game/host"
	"github.com/cory-johannsen/autobalance/internal/game/resolve"
	"github.com/cory-johannsen/autobalance/internal/game/roster"
	"github.com/cory-johannsen/autobalance/internal/game/tuning"
)

// Multipliers are the per-stat factors applied to a creature.
type Multipliers struct {
	Health     float64
	Mana       float64
	Armor      float64
	Damage     float64
	CCDuration float64
}

func neutralMultipliers() Multipliers {
	return Multipliers{Health: 1, Mana: 1, Armor: 1, Damage: 1, CCDuration: 1}
}

// CreatureResult is the scaling outcome for one creature.
type CreatureResult struct {
	Multipliers
	Relevant bool
	Boss     bool
	// Forced is set when the creature entry has a forced player count.
	Forced bool
	// Players is the effective player count fed to the curves.
	Players         float64
	Modifiers       resolve.Modifiers
	Inflection      [4]curve.Inflection
	UnmodifiedLevel int
	SelectedLevel   int
}

// CreatureScaling refreshes the instance if stale and resolves the
// multipliers and level for c. Irrelevant creatures and disabled instances
// receive neutral multipliers at their own level.
func (e *Engine) CreatureScaling(inst host.Instance, c host.Creature) CreatureResult {
	out := CreatureResult{
		Multipliers:     neutralMultipliers(),
		UnmodifiedLevel: c.Level(),
		SelectedLevel:   c.Level(),
	}
	e.with(inst, func(st *State, rev *revision) {
		e.refresh(st, inst, rev, false)
		cs := st.roster.Creature(c)
		out.UnmodifiedLevel, out.SelectedLevel = cs.UnmodifiedLevel, cs.UnmodifiedLevel
		out.Relevant = st.roster.IsRelevant(inst, c)
		out.Boss = roster.IsBoss(inst, c)
		if !st.enabled || !out.Relevant {
			cs.SelectedLevel = cs.UnmodifiedLevel
			return
		}

		out.Players = float64(st.adjustedPlayerCount)
		if n, ok := rev.snap.ForcedPlayers(c.Entry()); ok {
			out.Players = float64(n)
			out.Forced = true
		}

		q := resolve.Query{
			MapID:    inst.MapID(),
			Capacity: inst.MaxPlayers(),
			Heroic:   inst.IsHeroic(),
			Boss:     out.Boss,
			Entry:    c.Entry(),
		}
		res := e.resolver.Resolve(rev.snap, q)
		out.Modifiers, out.Inflection = res.Modifiers, res.Inflection

		m, err := e.multipliers(rev.snap, res, q, out.Players)
		if err != nil {
			e.rejectCapacity(inst, err)
			return
		}
		out.Multipliers = m
		cs.SelectedLevel = e.selectLevel(st, cs, rev.snap)
		out.SelectedLevel = cs.SelectedLevel
	})
	return out
}

// Display returns the multipliers a boss or non-boss creature would receive
// at the instance's adjusted player count.
func (e *Engine) Display(inst host.Instance, boss bool) Multipliers {
	out := neutralMultipliers()
	e.with(inst, func(st *State, rev *revision) {
		e.refresh(st, inst, rev, false)
		if !st.enabled {
			return
		}
		q := resolve.Query{MapID: inst.MapID(), Capacity: inst.MaxPlayers(), Heroic: inst.IsHeroic(), Boss: boss}
		m, err := e.multipliers(rev.snap, e.resolver.Resolve(rev.snap, q), q, float64(st.adjustedPlayerCount))
		if err != nil {
			e.rejectCapacity(inst, err)
			return
		}
		out = m
	})
	return out
}

// multipliers evaluates every axis curve and applies the stat modifiers and
// the configured limits.
func (e *Engine) multipliers(snap *tuning.Snapshot, res resolve.Resolved, q resolve.Query, players float64) (Multipliers, error) {
	settings := snap.Settings()
	var raw [4]float64
	for _, a := range tuning.Axes() {
		v, err := curve.Multiplier(players, res.For(a), settings.Formulas.For(a, q.Boss), q.Capacity)
		if err != nil {
			return neutralMultipliers(), err
		}
		raw[a] = v * res.Modifiers.Global * res.Modifiers.Axis(a)
	}

	lim := settings.Limits
	cc := res.Modifiers.CCDuration
	cc = max(cc, lim.MinCCDuration)
	cc = min(cc, lim.MaxCCDuration)
	return Multipliers{
		Health:     max(raw[tuning.Health], lim.MinHealth),
		Mana:       max(raw[tuning.Mana], lim.MinMana),
		Armor:      raw[tuning.Armor],
		Damage:     max(raw[tuning.Damage], lim.MinDamage),
		CCDuration: cc,
	}, nil
}

// selectLevel picks the level c is scaled to.
func (e *Engine) selectLevel(st *State, cs *roster.Creature, snap *tuning.Snapshot) int {
	settings := snap.Settings()
	if !settings.LevelScaling || !st.levelScalingEnabled || cs.NeverLevelScale {
		return cs.UnmodifiedLevel
	}
	target := st.highestPlayerLevel
	if settings.LevelScalingMethod == tuning.ScalingFixed {
		return target
	}
	shifted := cs.UnmodifiedLevel + target - roundLevel(st.roster.Stats().AvgLevel)
	shifted = max(shifted, target-st.dynamicFloor)
	shifted = min(shifted, target+st.dynamicCeiling)
	if shifted < 1 {
		e.logger.Debug("selected level below 1, clamping",
			zap.String("creature", string(cs.GUID)),
			zap.Int("level", shifted),
		)
		shifted = 1
	}
	return shifted
}
