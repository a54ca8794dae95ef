// Package memhost is an in-memory game host. It backs the scenario runner and
// the engine tests, standing in for a live simulation.
package memhost

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/cory-johannsen/autobalance/internal/game/host"
)

// NewGUID returns a random identifier.
func NewGUID() host.GUID {
	return host.GUID(uuid.NewString())
}

// PlayerSpec describes a simulated player.
type PlayerSpec struct {
	GUID             host.GUID
	Name             string
	Level            int
	GameMaster       bool
	InCombat         bool
	Charmed          bool
	HostileToPlayers bool
	Dead             bool
	GroupSize        int
	Pos              host.Position
	// HostileTo lists players this player is hostile to.
	HostileTo map[host.GUID]bool
}

// Player is a mutable simulated player implementing host.Player.
type Player struct {
	mu   sync.RWMutex
	spec PlayerSpec
}

// NewPlayer creates a player. An empty GUID is replaced by a random one.
func NewPlayer(spec PlayerSpec) *Player {
	if spec.GUID == "" {
		spec.GUID = NewGUID()
	}
	return &Player{spec: spec}
}

// Update mutates the player's spec under its lock.
func (p *Player) Update(fn func(*PlayerSpec)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.spec)
}

func (p *Player) read() PlayerSpec {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.spec
}

func (p *Player) GUID() host.GUID          { return p.read().GUID }
func (p *Player) Name() string             { return p.read().Name }
func (p *Player) Level() int               { return p.read().Level }
func (p *Player) IsGameMaster() bool       { return p.read().GameMaster }
func (p *Player) IsInCombat() bool         { return p.read().InCombat }
func (p *Player) IsCharmed() bool          { return p.read().Charmed }
func (p *Player) IsHostileToPlayers() bool { return p.read().HostileToPlayers }
func (p *Player) IsAlive() bool            { return !p.read().Dead }
func (p *Player) GroupSize() int           { return p.read().GroupSize }
func (p *Player) Position() host.Position  { return p.read().Pos }

// IsHostileTo implements host.Player.
func (p *Player) IsHostileTo(other host.Player) bool {
	if other == nil {
		return false
	}
	return p.read().HostileTo[other.GUID()]
}

// CreatureSpec describes a simulated creature.
type CreatureSpec struct {
	GUID      host.GUID
	Entry     uint32
	Name      string
	Level     int
	MaxLevel  int
	MaxHealth int
	Traits    host.Trait
	NPCFlags  host.NPCFlag
	Summoner  host.Summoner
	// Friendly marks the creature friendly to every player.
	Friendly bool
	// Attackable marks the creature targetable by every player.
	Attackable bool
	Pos        host.Position
}

// Creature is a mutable simulated creature implementing host.Creature.
type Creature struct {
	mu   sync.RWMutex
	spec CreatureSpec
}

// NewCreature creates a creature. An empty GUID is replaced by a random one
// and a zero MaxLevel defaults to Level.
func NewCreature(spec CreatureSpec) *Creature {
	if spec.GUID == "" {
		spec.GUID = NewGUID()
	}
	if spec.MaxLevel == 0 {
		spec.MaxLevel = spec.Level
	}
	return &Creature{spec: spec}
}

// Update mutates the creature's spec under its lock.
func (c *Creature) Update(fn func(*CreatureSpec)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.spec)
}

func (c *Creature) read() CreatureSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.spec
}

func (c *Creature) GUID() host.GUID                 { return c.read().GUID }
func (c *Creature) Entry() uint32                   { return c.read().Entry }
func (c *Creature) Name() string                    { return c.read().Name }
func (c *Creature) Level() int                      { return c.read().Level }
func (c *Creature) MaxLevel() int                   { return c.read().MaxLevel }
func (c *Creature) MaxHealth() int                  { return c.read().MaxHealth }
func (c *Creature) Traits() host.Trait              { return c.read().Traits }
func (c *Creature) NPCFlags() host.NPCFlag          { return c.read().NPCFlags }
func (c *Creature) Summoner() host.Summoner         { return c.read().Summoner }
func (c *Creature) IsFriendlyTo(host.Player) bool   { return c.read().Friendly }
func (c *Creature) IsAttackableBy(host.Player) bool { return c.read().Attackable }
func (c *Creature) Position() host.Position         { return c.read().Pos }

// InstanceSpec describes a simulated instance.
type InstanceSpec struct {
	ID         host.InstanceID
	MapID      uint32
	Name       string
	MaxPlayers int
	Heroic     bool
	// Overworld marks a non-instanced map.
	Overworld bool
}

// Instance is a simulated instance implementing host.Instance.
//
// All methods are safe for concurrent use.
type Instance struct {
	spec InstanceSpec

	mu        sync.RWMutex
	players   []*Player
	creatures map[host.GUID]*Creature
}

// NewInstance creates an empty instance.
func NewInstance(spec InstanceSpec) *Instance {
	return &Instance{spec: spec, creatures: make(map[host.GUID]*Creature)}
}

func (i *Instance) ID() host.InstanceID { return i.spec.ID }
func (i *Instance) MapID() uint32       { return i.spec.MapID }
func (i *Instance) Name() string        { return i.spec.Name }
func (i *Instance) MaxPlayers() int     { return i.spec.MaxPlayers }
func (i *Instance) IsHeroic() bool      { return i.spec.Heroic }
func (i *Instance) IsDungeon() bool     { return !i.spec.Overworld }

// Players implements host.Instance.
func (i *Instance) Players() []host.Player {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]host.Player, 0, len(i.players))
	for _, p := range i.players {
		out = append(out, p)
	}
	return out
}

// Creature implements host.Instance.
func (i *Instance) Creature(id host.GUID) (host.Creature, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	c, ok := i.creatures[id]
	if !ok {
		return nil, false
	}
	return c, true
}

// Join adds p to the instance.
//
// Postcondition: Returns an error if p is already present.
func (i *Instance) Join(p *Player) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, existing := range i.players {
		if existing.GUID() == p.GUID() {
			return fmt.Errorf("memhost.Instance.Join: player %s already in instance %d", p.GUID(), i.spec.ID)
		}
	}
	i.players = append(i.players, p)
	return nil
}

// Leave removes the player with id, returning it when found.
func (i *Instance) Leave(id host.GUID) (*Player, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for idx, p := range i.players {
		if p.GUID() == id {
			i.players = append(i.players[:idx], i.players[idx+1:]...)
			return p, true
		}
	}
	return nil, false
}

// Player looks up a player in the instance.
func (i *Instance) Player(id host.GUID) (*Player, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	for _, p := range i.players {
		if p.GUID() == id {
			return p, true
		}
	}
	return nil, false
}

// Spawn adds c to the instance.
func (i *Instance) Spawn(c *Creature) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.creatures[c.GUID()] = c
}

// Despawn removes the creature with id, returning it when found.
func (i *Instance) Despawn(id host.GUID) (*Creature, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	c, ok := i.creatures[id]
	if ok {
		delete(i.creatures, id)
	}
	return c, ok
}

// Creatures returns every live creature ordered by GUID.
func (i *Instance) Creatures() []*Creature {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]*Creature, 0, len(i.creatures))
	for _, c := range i.creatures {
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].GUID() < out[b].GUID() })
	return out
}

// World is a registry of simulated instances.
//
// All methods are safe for concurrent use.
type World struct {
	mu        sync.RWMutex
	instances map[host.InstanceID]*Instance
}

// NewWorld creates an empty World.
func NewWorld() *World {
	return &World{instances: make(map[host.InstanceID]*Instance)}
}

// Create registers a new instance.
//
// Postcondition: Returns an error if the id is already taken.
func (w *World) Create(spec InstanceSpec) (*Instance, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.instances[spec.ID]; ok {
		return nil, fmt.Errorf("memhost.World.Create: instance %d already exists", spec.ID)
	}
	inst := NewInstance(spec)
	w.instances[spec.ID] = inst
	return inst, nil
}

// Instance looks up an instance.
func (w *World) Instance(id host.InstanceID) (*Instance, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	inst, ok := w.instances[id]
	return inst, ok
}

// Destroy removes an instance.
func (w *World) Destroy(id host.InstanceID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.instances[id]
	delete(w.instances, id)
	return ok
}

// Instances returns every instance ordered by id.
func (w *World) Instances() []*Instance {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*Instance, 0, len(w.instances))
	for _, inst := range w.instances {
		out = append(out, inst)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID() < out[b].ID() })
	return out
}
