// Package host declares the read-only views the scaling engine consumes from
// the game simulation. The engine never owns host objects; it keys its own
// state by the stable identifiers exposed here.
package host

import "math"

// InstanceID identifies a live dungeon instance.
type InstanceID uint32

// GUID identifies a live player or creature.
type GUID string

// Difficulty is the LFG difficulty of an instance.
type Difficulty int

const (
	DifficultyNormal Difficulty = iota
	DifficultyHeroic
)

// Position is a point in world coordinates.
type Position struct {
	X, Y, Z float64
}

// Distance returns the euclidean distance between p and o.
func (p Position) Distance(o Position) float64 {
	dx, dy, dz := p.X-o.X, p.Y-o.Y, p.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Instance is a live dungeon or raid instance.
type Instance interface {
	ID() InstanceID
	MapID() uint32
	Name() string
	// MaxPlayers is the instance capacity.
	MaxPlayers() int
	IsHeroic() bool
	// IsDungeon reports whether the map is an instanced dungeon or raid.
	IsDungeon() bool
	// Players returns the live players in join order.
	Players() []Player
	// Creature looks up a live creature in the instance.
	Creature(id GUID) (Creature, bool)
}

// Player is a live player character.
type Player interface {
	GUID() GUID
	Name() string
	Level() int
	IsGameMaster() bool
	IsInCombat() bool
	IsCharmed() bool
	IsHostileToPlayers() bool
	IsAlive() bool
	// IsHostileTo reports whether this player is hostile to other.
	IsHostileTo(other Player) bool
	// GroupSize is the size of the player's group, or 0 when ungrouped.
	GroupSize() int
	Position() Position
}

// Trait flags classify a creature.
type Trait uint32

const (
	TraitSummon Trait = 1 << iota
	TraitPet
	TraitHunterPet
	TraitTotem
	TraitGuardian
	TraitCritter
	TraitTrigger
	TraitPlayerControlled
	TraitCreatedByPlayer
	TraitDungeonBoss
	TraitWorldBoss
)

// Has reports whether every bit in f is set.
func (t Trait) Has(f Trait) bool { return t&f == f }

// NPCFlag flags mark service NPCs that players do not fight.
type NPCFlag uint32

const (
	NPCVendor NPCFlag = 1 << iota
	NPCGossip
	NPCQuestGiver
	NPCTrainer
	NPCProfessionTrainer
	NPCRepairer
	NPCImmuneToPC
	NPCNotSelectable
)

// SummonerKind tells which lookup resolves a summoner.
type SummonerKind int

const (
	SummonerNone SummonerKind = iota
	SummonerCreature
	SummonerPlayer
)

// Summoner is a weak reference to whoever summoned a creature. The summoner
// may no longer exist.
type Summoner struct {
	Kind SummonerKind
	ID   GUID
}

// Creature is a live creature.
type Creature interface {
	GUID() GUID
	// Entry is the creature template id.
	Entry() uint32
	Name() string
	Level() int
	// MaxLevel is the template maximum level.
	MaxLevel() int
	MaxHealth() int
	Traits() Trait
	NPCFlags() NPCFlag
	Summoner() Summoner
	IsFriendlyTo(p Player) bool
	// IsAttackableBy reports whether p may target the creature for attack.
	IsAttackableBy(p Player) bool
	Position() Position
}

// LFGDungeon is the level metadata of a dungeon at one difficulty.
type LFGDungeon struct {
	MapID       uint32
	Difficulty  Difficulty
	MinLevel    int
	MaxLevel    int
	TargetLevel int
}

// LFGSource looks up dungeon level metadata.
type LFGSource interface {
	Dungeon(mapID uint32, d Difficulty) (LFGDungeon, bool)
}

// BaseStats are the per-era base values of the reference class at one level.
type BaseStats struct {
	Level  int
	Health [3]float64
	Damage [3]float64
}

// BaseStatSource looks up base stats by level.
type BaseStatSource interface {
	BaseStats(level int) (BaseStats, bool)
}
