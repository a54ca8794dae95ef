// Package scenario runs Lua simulation scenarios against an in-memory host
// and the scaling engine.
package scenario

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/autobalance/internal/game/host"
	"github.com/cory-johannsen/autobalance/internal/game/host/memhost"
	"github.com/cory-johannsen/autobalance/internal/game/instance"
	"github.com/cory-johannsen/autobalance/internal/scripting"
)

// TickHook is the optional Lua global called once per tick with the tick number.
const TickHook = "on_tick"

var traitNames = map[string]host.Trait{
	"summon":            host.TraitSummon,
	"pet":               host.TraitPet,
	"hunter_pet":        host.TraitHunterPet,
	"totem":             host.TraitTotem,
	"guardian":          host.TraitGuardian,
	"critter":           host.TraitCritter,
	"trigger":           host.TraitTrigger,
	"player_controlled": host.TraitPlayerControlled,
	"created_by_player": host.TraitCreatedByPlayer,
	"boss":              host.TraitDungeonBoss,
	"world_boss":        host.TraitWorldBoss,
}

// ParseTraits maps trait names to host trait flags.
//
// Postcondition: Returns an error naming the first unknown trait.
func ParseTraits(names []string) (host.Trait, error) {
	var out host.Trait
	for _, n := range names {
		t, ok := traitNames[strings.ToLower(n)]
		if !ok {
			return 0, fmt.Errorf("unknown trait %q", n)
		}
		out |= t
	}
	return out, nil
}

// Sim binds one scenario script to a memhost.World and an instance.Engine.
//
// Sim is safe for concurrent use; ticks are serialized.
type Sim struct {
	name    string
	world   *memhost.World
	engine  *instance.Engine
	scripts *scripting.Manager
	logger  *zap.Logger

	mu   sync.Mutex
	tick int
}

// New creates a Sim over engine with an empty world.
//
// Precondition: engine and logger must be non-nil.
func New(engine *instance.Engine, logger *zap.Logger) *Sim {
	s := &Sim{
		world:   memhost.NewWorld(),
		engine:  engine,
		scripts: scripting.NewManager(logger),
		logger:  logger,
	}
	s.wire()
	return s
}

// Load runs the scenario script at path. Its top-level statements set up the
// initial instances.
//
// Precondition: path must be a readable Lua file.
// Postcondition: Returns an error if the script fails to load or run.
func (s *Sim) Load(path string, instLimit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := s.scripts.LoadFile(s.name, path, instLimit); err != nil {
		return fmt.Errorf("scenario.Load: %w", err)
	}
	s.logger.Info("scenario loaded",
		zap.String("scenario", s.name),
		zap.Int("instances", len(s.world.Instances())),
	)
	return nil
}

// Name returns the loaded scenario name.
func (s *Sim) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// World exposes the simulated host.
func (s *Sim) World() *memhost.World { return s.world }

// Tick advances the scenario by one step: the tick hook runs, then every live
// instance is refreshed.
//
// Postcondition: Returns the tick number, or an error raised by the hook.
func (s *Sim) Tick() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick++
	if _, err := s.scripts.CallHook(s.name, TickHook, lua.LNumber(s.tick)); err != nil {
		return s.tick, fmt.Errorf("scenario.Tick: tick %d: %w", s.tick, err)
	}
	for _, inst := range s.world.Instances() {
		s.engine.Refresh(inst, false)
	}
	return s.tick, nil
}

// Results returns the published result of every live instance ordered by id.
func (s *Sim) Results() []instance.Result {
	insts := s.world.Instances()
	out := make([]instance.Result, 0, len(insts))
	for _, inst := range insts {
		out = append(out, s.engine.Result(inst))
	}
	return out
}

// Scaling returns the scaling outcome of every live creature in the instance.
func (s *Sim) Scaling(id host.InstanceID) (map[host.GUID]instance.CreatureResult, bool) {
	inst, ok := s.world.Instance(id)
	if !ok {
		return nil, false
	}
	out := make(map[host.GUID]instance.CreatureResult)
	for _, c := range inst.Creatures() {
		out[c.GUID()] = s.engine.CreatureScaling(inst, c)
	}
	return out, true
}

// Close releases the scenario VM.
func (s *Sim) Close() {
	s.scripts.Close()
}

func (s *Sim) instance(id uint32) (*memhost.Instance, error) {
	inst, ok := s.world.Instance(host.InstanceID(id))
	if !ok {
		return nil, fmt.Errorf("no instance %d", id)
	}
	return inst, nil
}

// wire injects the engine.* callbacks into the script manager.
func (s *Sim) wire() {
	m := s.scripts

	m.CreateInstance = func(info scripting.InstanceInfo) error {
		_, err := s.world.Create(memhost.InstanceSpec{
			ID:         host.InstanceID(info.ID),
			MapID:      info.MapID,
			Name:       info.Name,
			MaxPlayers: info.Capacity,
			Heroic:     info.Heroic,
			Overworld:  info.Overworld,
		})
		return err
	}

	m.DestroyInstance = func(id uint32) error {
		if !s.world.Destroy(host.InstanceID(id)) {
			return fmt.Errorf("no instance %d", id)
		}
		s.engine.DestroyInstance(host.InstanceID(id))
		return nil
	}

	m.Join = func(id uint32, info scripting.PlayerInfo) (string, error) {
		inst, err := s.instance(id)
		if err != nil {
			return "", err
		}
		p := memhost.NewPlayer(memhost.PlayerSpec{
			GUID:       host.GUID(info.GUID),
			Name:       info.Name,
			Level:      info.Level,
			GameMaster: info.GameMaster,
			InCombat:   info.InCombat,
			GroupSize:  info.GroupSize,
		})
		if err := inst.Join(p); err != nil {
			return "", err
		}
		s.engine.OnPlayerEnter(inst, p)
		return string(p.GUID()), nil
	}

	m.Leave = func(id uint32, guid string) error {
		inst, err := s.instance(id)
		if err != nil {
			return err
		}
		if _, ok := inst.Leave(host.GUID(guid)); !ok {
			return fmt.Errorf("no player %s in instance %d", guid, id)
		}
		s.engine.OnPlayerLeave(inst, host.GUID(guid))
		return nil
	}

	m.UpdatePlayer = func(id uint32, guid string, u scripting.PlayerUpdate) error {
		inst, err := s.instance(id)
		if err != nil {
			return err
		}
		p, ok := inst.Player(host.GUID(guid))
		if !ok {
			return fmt.Errorf("no player %s in instance %d", guid, id)
		}
		p.Update(func(spec *memhost.PlayerSpec) {
			if u.Level != nil {
				spec.Level = *u.Level
			}
			if u.GameMaster != nil {
				spec.GameMaster = *u.GameMaster
			}
			if u.InCombat != nil {
				spec.InCombat = *u.InCombat
			}
			if u.Dead != nil {
				spec.Dead = *u.Dead
			}
			if u.GroupSize != nil {
				spec.GroupSize = *u.GroupSize
			}
		})
		s.engine.OnPlayerUpdate(inst, p)
		return nil
	}

	m.Spawn = func(id uint32, info scripting.CreatureInfo) (string, error) {
		inst, err := s.instance(id)
		if err != nil {
			return "", err
		}
		traits, err := ParseTraits(info.Traits)
		if err != nil {
			return "", err
		}
		c := memhost.NewCreature(memhost.CreatureSpec{
			GUID:       host.GUID(info.GUID),
			Entry:      info.Entry,
			Name:       info.Name,
			Level:      info.Level,
			MaxLevel:   info.MaxLevel,
			MaxHealth:  info.MaxHealth,
			Traits:     traits,
			Friendly:   info.Friendly,
			Attackable: info.Attackable,
		})
		inst.Spawn(c)
		s.engine.OnCreatureSpawn(inst, c)
		return string(c.GUID()), nil
	}

	m.Despawn = func(id uint32, guid string) error {
		inst, err := s.instance(id)
		if err != nil {
			return err
		}
		if _, ok := inst.Despawn(host.GUID(guid)); !ok {
			return fmt.Errorf("no creature %s in instance %d", guid, id)
		}
		s.engine.OnCreatureRemove(inst, host.GUID(guid))
		s.engine.ForgetCreature(inst, host.GUID(guid))
		return nil
	}

	m.CombatLock = func(id uint32, locked bool) error {
		inst, err := s.instance(id)
		if err != nil {
			return err
		}
		s.engine.SetCombatLock(inst, locked)
		return nil
	}

	m.Refresh = func(id uint32, force bool) (bool, error) {
		inst, err := s.instance(id)
		if err != nil {
			return false, err
		}
		return s.engine.Refresh(inst, force), nil
	}

	m.QueryResult = func(id uint32) *scripting.ResultInfo {
		inst, err := s.instance(id)
		if err != nil {
			return nil
		}
		r := s.engine.Result(inst)
		return &scripting.ResultInfo{
			Enabled:             r.Enabled,
			MapLevel:            r.MapLevel,
			LevelScaling:        r.LevelScalingEnabled,
			MinPlayers:          r.MinPlayers,
			PlayerCount:         r.PlayerCount,
			AdjustedPlayerCount: r.AdjustedPlayerCount,
			CombatLocked:        r.CombatLocked,
			CombatLockFloor:     r.CombatLockFloor,
			HighestPlayerLevel:  r.HighestPlayerLevel,
			LowestPlayerLevel:   r.LowestPlayerLevel,
			AvgCreatureLevel:    r.AvgCreatureLevel,
			ActiveCreatures:     r.ActiveCreatures,
			WorldHealth:         r.World.Health,
			WorldDamage:         r.World.DamageHealing,
		}
	}

	m.QueryScaling = func(id uint32, guid string) *scripting.ScalingInfo {
		inst, err := s.instance(id)
		if err != nil {
			return nil
		}
		c, ok := inst.Creature(host.GUID(guid))
		if !ok {
			return nil
		}
		r := s.engine.CreatureScaling(inst, c)
		return &scripting.ScalingInfo{
			Relevant:   r.Relevant,
			Boss:       r.Boss,
			Players:    r.Players,
			Health:     r.Health,
			Mana:       r.Mana,
			Armor:      r.Armor,
			Damage:     r.Damage,
			CCDuration: r.CCDuration,
			Level:      r.SelectedLevel,
		}
	}
}
