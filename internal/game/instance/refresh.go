package instance

import (
	"math"

	"go.uber.org/zap"

	"github.com/cory-johannsen/autobalance/internal/game/curve"
	"github.com/cory-johannsen/autobalance/internal/game/host"
	"github.com/cory-johannsen/autobalance/internal/game/levelscale"
	"github.com/cory-johannsen/autobalance/internal/game/resolve"
	"github.com/cory-johannsen/autobalance/internal/game/tuning"
)

// Refresh reasons reported to the Recorder.
const (
	reasonForced = "forced"
	reasonReload = "reload"
	reasonDirty  = "dirty"
)

// refresh recomputes st when it is stale or force is set.
//
// Precondition: st.mu is held; rev is the revision the caller's event ran on.
// Postcondition: Returns true when a refresh ran; both generations equal
// rev.gen afterwards.
func (e *Engine) refresh(st *State, inst host.Instance, rev *revision, force bool) bool {
	snap, proc := rev.snap, rev.gen
	if !force && st.globalGeneration >= proc && st.mapGeneration >= st.globalGeneration {
		return false
	}

	reason := reasonDirty
	globalStale := st.globalGeneration < proc
	switch {
	case force:
		reason = reasonForced
	case globalStale:
		reason = reasonReload
	}

	if globalStale {
		e.rebuildPlayers(st, inst, snap)
		e.loadMapSettings(st, inst, snap)
	}

	wasEnabled := st.enabled
	st.enabled = e.shouldBeEnabled(inst, snap)
	if st.enabled != wasEnabled {
		st.markDirty()
	}

	e.updatePlayerStats(st, inst, snap)
	mapStale := st.mapGeneration < proc

	levelChanged := e.selectMapLevel(st, snap)
	if levelChanged || globalStale || mapStale || force {
		e.updateWorld(st, inst, snap)
	}

	st.globalGeneration = proc
	st.mapGeneration = proc
	e.recorder.Refreshed(reason)
	e.logger.Debug("instance refreshed",
		zap.Uint32("instance", uint32(st.id)),
		zap.String("reason", reason),
		zap.Bool("enabled", st.enabled),
		zap.Int("adjusted_players", st.adjustedPlayerCount),
		zap.Int("map_level", st.mapLevel),
	)
	return true
}

// rebuildPlayers replaces the player roster with the host's live player
// list. Any player in combat raises the combat lock.
func (e *Engine) rebuildPlayers(st *State, inst host.Instance, snap *tuning.Snapshot) {
	includeGMs := snap.Settings().IncludeGMsInPlayerCount
	st.roster.ClearPlayers()
	inCombat := false
	for _, p := range inst.Players() {
		if st.roster.AddPlayer(p, includeGMs) && p.IsInCombat() {
			inCombat = true
		}
	}
	if inCombat && !st.combatLocked {
		st.combatLocked = true
		st.combatLockFloor = 0
	}
}

// shouldBeEnabled decides whether inst is scaled at all.
func (e *Engine) shouldBeEnabled(inst host.Instance, snap *tuning.Snapshot) bool {
	if !inst.IsDungeon() || !snap.Settings().EnableGlobal {
		return false
	}
	if inst.MaxPlayers() < 1 {
		return false
	}
	if snap.Disabled(inst.MapID()) {
		return false
	}
	return snap.BracketFor(inst.MaxPlayers(), inst.IsHeroic()).Enabled
}

// loadMapSettings reads the per-kind and per-dungeon settings of inst.
func (e *Engine) loadMapSettings(st *State, inst host.Instance, snap *tuning.Snapshot) {
	settings := snap.Settings()
	capacity := inst.MaxPlayers()
	kind := tuning.KindFor(capacity, inst.IsHeroic())

	minPlayers := settings.MinPlayers[kind]
	if n, ok := snap.MinPlayersOverride(inst.MapID(), inst.IsHeroic()); ok {
		minPlayers = n
	}
	if capacity > 0 && minPlayers > capacity {
		e.logger.Warn("min players exceeds capacity, capping",
			zap.Uint32("map", inst.MapID()),
			zap.Int("min_players", minPlayers),
			zap.Int("capacity", capacity),
		)
		minPlayers = capacity
	}
	st.minPlayers = max(minPlayers, 0)

	dl := settings.DynamicLevel[kind]
	st.skipHigher = settings.SkipHigherLevels
	st.skipLower = settings.SkipLowerLevels
	st.dynamicCeiling = dl.Ceiling
	st.dynamicFloor = dl.Floor
	if o, ok := snap.LevelOverride(inst.MapID()); ok {
		st.skipHigher = o.SkipHigher.Or(st.skipHigher)
		st.skipLower = o.SkipLower.Or(st.skipLower)
		st.dynamicCeiling = o.Ceiling.Or(st.dynamicCeiling)
		st.dynamicFloor = o.Floor.Or(st.dynamicFloor)
	}
}

// updatePlayerStats recomputes the player counts and level bounds. Game
// masters count toward the player count when rostered but never set the
// level bounds; with no other player the bounds fall back to the LFG target
// level. A change in the adjusted count marks st dirty.
func (e *Engine) updatePlayerStats(st *State, inst host.Instance, snap *tuning.Snapshot) {
	settings := snap.Settings()
	players := st.roster.Players()

	st.highestPlayerLevel, st.lowestPlayerLevel = 0, 0
	for _, p := range players {
		if p.IsGameMaster() {
			continue
		}
		lvl := p.Level()
		if lvl > st.highestPlayerLevel {
			st.highestPlayerLevel = lvl
		}
		if st.lowestPlayerLevel == 0 || lvl < st.lowestPlayerLevel {
			st.lowestPlayerLevel = lvl
		}
	}
	if st.highestPlayerLevel == 0 {
		st.highestPlayerLevel = st.lfg.TargetLevel
		st.lowestPlayerLevel = st.lfg.TargetLevel
	}

	count := len(players)
	if settings.UseGroupSizeForDifficulty {
		for _, p := range players {
			if n := p.GroupSize(); n > 1 {
				count = n
				break
			}
		}
	}
	st.playerCount = max(count, 1)

	base := st.playerCount
	if st.combatLocked {
		st.combatLockFloor = max(st.combatLockFloor, st.playerCount)
		base = st.combatLockFloor
	}
	adjusted := max(base+settings.PlayerCountDifficultyOffset, st.minPlayers, 0)
	if adjusted != st.adjustedPlayerCount {
		st.adjustedPlayerCount = adjusted
		st.markDirty()
	}
}

// roundLevel rounds a mean level half up.
func roundLevel(avg float64) int {
	return int(math.Floor(avg + 0.5))
}

// withinSkip reports whether level is close enough to the highest player
// level that level scaling is skipped. A zero tolerance never skips.
func (s *State) withinSkip(level int) bool {
	diff := level - s.highestPlayerLevel
	if diff >= 0 {
		return s.skipHigher > 0 && diff <= s.skipHigher
	}
	return s.skipLower > 0 && -diff <= s.skipLower
}

// selectMapLevel derives the effective instance level.
//
// Postcondition: Returns true when mapLevel changed.
func (e *Engine) selectMapLevel(st *State, snap *tuning.Snapshot) bool {
	avg := roundLevel(st.roster.Stats().AvgLevel)
	st.prevMapLevel = st.mapLevel
	if !snap.Settings().LevelScaling || avg == 0 || st.highestPlayerLevel == 0 || st.withinSkip(avg) {
		st.mapLevel = avg
		st.levelScalingEnabled = false
	} else {
		st.mapLevel = min(avg, st.highestPlayerLevel)
		st.levelScalingEnabled = true
	}
	return st.mapLevel != st.prevMapLevel
}

// updateWorld recomputes the world multipliers. Disabled instances and
// instances without players or counted creatures stay neutral.
func (e *Engine) updateWorld(st *State, inst host.Instance, snap *tuning.Snapshot) {
	st.world = neutralWorld()
	avg := roundLevel(st.roster.Stats().AvgLevel)
	if !st.enabled || len(st.roster.Players()) == 0 || avg == 0 {
		return
	}

	settings := snap.Settings()
	q := resolve.Query{MapID: inst.MapID(), Capacity: inst.MaxPlayers(), Heroic: inst.IsHeroic()}
	res := e.resolver.Resolve(snap, q)
	players := float64(st.adjustedPlayerCount)

	health, err := curve.Multiplier(players, res.For(tuning.Health), settings.Formulas.For(tuning.Health, false), q.Capacity)
	if err != nil {
		e.rejectCapacity(inst, err)
		return
	}
	damage, err := curve.Multiplier(players, res.For(tuning.Damage), settings.Formulas.For(tuning.Damage, false), q.Capacity)
	if err != nil {
		e.rejectCapacity(inst, err)
		return
	}
	health *= res.Modifiers.Global * res.Modifiers.Health
	damage *= res.Modifiers.Global * res.Modifiers.Damage

	st.world = World{Health: health, ScaledHealth: health, DamageHealing: damage, ScaledDamageHealing: damage}
	if st.levelScalingEnabled {
		hr, dr := e.levelRatios(inst, st.highestPlayerLevel, avg)
		st.world.ScaledHealth = health * hr
		st.world.ScaledDamageHealing = damage * dr
	}
}

// levelRatios returns the health and damage base-stat ratios from the
// current level to the target level. Missing base stats yield 1.
func (e *Engine) levelRatios(inst host.Instance, target, current int) (float64, float64) {
	if e.baseStats == nil {
		return 1, 1
	}
	to, okTo := e.baseStats.BaseStats(target)
	from, okFrom := e.baseStats.BaseStats(current)
	if !okTo || !okFrom {
		e.logger.Warn("no base stats for level scaling",
			zap.Uint32("map", inst.MapID()),
			zap.Int("target_level", target),
			zap.Int("current_level", current),
		)
		return 1, 1
	}
	health := levelscale.Ratio(target, current, levelscale.Anchors(to.Health), levelscale.Anchors(from.Health))
	damage := levelscale.Ratio(target, current, levelscale.Anchors(to.Damage), levelscale.Anchors(from.Damage))
	return health, damage
}

func (e *Engine) rejectCapacity(inst host.Instance, err error) {
	e.recorder.CapacityRejected()
	e.logger.Warn("scaling rejected",
		zap.Uint32("map", inst.MapID()),
		zap.Int("capacity", inst.MaxPlayers()),
		zap.Error(err),
	)
}
