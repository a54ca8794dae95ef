package instance

import (
	"sync"

	"github.com/cory-johannsen/autobalance/internal/game/host"
	"github.com/cory-johannsen/autobalance/internal/game/roster"
)

// dirtyGeneration forces the next staleness check to refresh. Real
// generations start at 1.
const dirtyGeneration uint64 = 0

// World multipliers scale world-object toughness and world damage.
type World struct {
	Health              float64
	ScaledHealth        float64
	DamageHealing       float64
	ScaledDamageHealing float64
}

func neutralWorld() World {
	return World{Health: 1, ScaledHealth: 1, DamageHealing: 1, ScaledDamageHealing: 1}
}

// Result is the published scaling outcome of one instance.
type Result struct {
	InstanceID          host.InstanceID
	MapID               uint32
	Enabled             bool
	MapLevel            int
	LevelScalingEnabled bool
	MinPlayers          int
	PlayerCount         int
	AdjustedPlayerCount int
	CombatLocked        bool
	CombatLockFloor     int
	CombatLockTripped   bool
	HighestPlayerLevel  int
	LowestPlayerLevel   int
	AvgCreatureLevel    float64
	ActiveCreatures     int
	World               World
}

// State is the scaling state of one live instance. It is created on the
// first event for the instance and dropped when the host destroys it.
type State struct {
	mu sync.Mutex

	id      host.InstanceID
	mapID   uint32
	roster  *roster.Tracker
	lfg     host.LFGDungeon
	lfgOK   bool
	enabled bool

	minPlayers          int
	playerCount         int
	adjustedPlayerCount int

	combatLocked      bool
	combatLockFloor   int
	combatLockTripped bool

	highestPlayerLevel int
	lowestPlayerLevel  int

	mapLevel            int
	prevMapLevel        int
	levelScalingEnabled bool
	skipHigher          int
	skipLower           int
	dynamicFloor        int
	dynamicCeiling      int

	globalGeneration uint64
	mapGeneration    uint64

	world World
}

func newState(inst host.Instance, lfg host.LFGDungeon, lfgOK bool) *State {
	return &State{
		id:               inst.ID(),
		mapID:            inst.MapID(),
		roster:           roster.NewTracker(),
		lfg:              lfg,
		lfgOK:            lfgOK,
		globalGeneration: dirtyGeneration,
		mapGeneration:    dirtyGeneration,
		world:            neutralWorld(),
	}
}

func (s *State) markDirty() {
	s.mapGeneration = dirtyGeneration
}

func (s *State) band() roster.Band {
	if !s.lfgOK {
		return roster.Band{}
	}
	return roster.NewBand(s.lfg.MinLevel, s.lfg.MaxLevel)
}

func (s *State) result() Result {
	stats := s.roster.Stats()
	return Result{
		InstanceID:          s.id,
		MapID:               s.mapID,
		Enabled:             s.enabled,
		MapLevel:            s.mapLevel,
		LevelScalingEnabled: s.levelScalingEnabled,
		MinPlayers:          s.minPlayers,
		PlayerCount:         s.playerCount,
		AdjustedPlayerCount: s.adjustedPlayerCount,
		CombatLocked:        s.combatLocked,
		CombatLockFloor:     s.combatLockFloor,
		CombatLockTripped:   s.combatLockTripped,
		HighestPlayerLevel:  s.highestPlayerLevel,
		LowestPlayerLevel:   s.lowestPlayerLevel,
		AvgCreatureLevel:    stats.AvgLevel,
		ActiveCreatures:     stats.ActiveCount,
		World:               s.world,
	}
}
