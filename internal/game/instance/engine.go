// Package instance drives per-instance difficulty scaling. The Engine owns
// one State per live dungeon instance, reacts to host events, decides when a
// State is stale and republishes its multipliers.
package instance

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cory-johannsen/autobalance/internal/game/host"
	"github.com/cory-johannsen/autobalance/internal/game/resolve"
	"github.com/cory-johannsen/autobalance/internal/game/roster"
	"github.com/cory-johannsen/autobalance/internal/game/tuning"
)

// Recorder receives engine events for metrics.
type Recorder interface {
	Refreshed(reason string)
	Reloaded()
	InstancesLive(n int)
	CapacityRejected()
}

type nopRecorder struct{}

func (nopRecorder) Refreshed(string)  {}
func (nopRecorder) Reloaded()         {}
func (nopRecorder) InstancesLive(int) {}
func (nopRecorder) CapacityRejected() {}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder routes engine events to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithResolver replaces the default memoising resolver.
func WithResolver(r *resolve.Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// revision is one published configuration and the generation it was
// published at. Both are read together.
type revision struct {
	snap *tuning.Snapshot
	gen  uint64
}

// Engine owns the scaling state of every live instance.
//
// All methods are safe for concurrent use. Operations on one instance are
// serialised; different instances proceed independently.
type Engine struct {
	current atomic.Pointer[revision]

	lfg       host.LFGSource
	baseStats host.BaseStatSource
	resolver  *resolve.Resolver
	recorder  Recorder
	logger    *zap.Logger

	mu     sync.RWMutex
	states map[host.InstanceID]*State
}

// NewEngine creates an Engine serving snap.
//
// Precondition: snap, lfg, baseStats and logger must be non-nil.
// Postcondition: Returns a ready Engine at generation 1, or a non-nil error.
func NewEngine(snap *tuning.Snapshot, lfg host.LFGSource, baseStats host.BaseStatSource, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if snap == nil {
		return nil, fmt.Errorf("instance.NewEngine: snapshot must not be nil")
	}
	e := &Engine{
		lfg:       lfg,
		baseStats: baseStats,
		recorder:  nopRecorder{},
		logger:    logger,
		states:    make(map[host.InstanceID]*State),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.resolver == nil {
		r, err := resolve.NewResolver(resolve.DefaultCacheSize)
		if err != nil {
			return nil, fmt.Errorf("instance.NewEngine: %w", err)
		}
		e.resolver = r
	}
	e.current.Store(&revision{snap: snap, gen: 1})
	return e, nil
}

// Snapshot returns the configuration currently served.
func (e *Engine) Snapshot() *tuning.Snapshot {
	return e.current.Load().snap
}

// Generation returns the process-wide configuration generation.
func (e *Engine) Generation() uint64 {
	return e.current.Load().gen
}

// Reload publishes snap and advances the generation so every instance
// refreshes on its next event.
//
// Precondition: snap must be non-nil.
func (e *Engine) Reload(snap *tuning.Snapshot) {
	var prev, next *revision
	for {
		prev = e.current.Load()
		next = &revision{snap: snap, gen: prev.gen + 1}
		if e.current.CompareAndSwap(prev, next) {
			break
		}
	}
	e.resolver.Purge()
	e.recorder.Reloaded()
	e.logger.Info("configuration reloaded",
		zap.Stringer("snapshot", snap.ID()),
		zap.Stringer("previous", prev.snap.ID()),
		zap.Uint64("generation", next.gen),
	)
}

// Instances returns the ids of every tracked instance in ascending order.
func (e *Engine) Instances() []host.InstanceID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]host.InstanceID, 0, len(e.states))
	for id := range e.states {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DestroyInstance drops the state of an instance the host has torn down.
//
// Postcondition: Returns true when state existed.
func (e *Engine) DestroyInstance(id host.InstanceID) bool {
	e.mu.Lock()
	_, ok := e.states[id]
	delete(e.states, id)
	n := len(e.states)
	e.mu.Unlock()
	if ok {
		e.recorder.InstancesLive(n)
		e.logger.Debug("instance destroyed", zap.Uint32("instance", uint32(id)))
	}
	return ok
}

// with runs fn under the instance's lock, creating its state on first use.
// fn sees one revision throughout, even if a Reload lands while it runs.
// Non-dungeon maps have no state and fn is not called.
func (e *Engine) with(inst host.Instance, fn func(st *State, rev *revision)) bool {
	if inst == nil || !inst.IsDungeon() {
		return false
	}
	st := e.state(inst)
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(st, e.current.Load())
	return true
}

func (e *Engine) state(inst host.Instance) *State {
	id := inst.ID()
	e.mu.RLock()
	st, ok := e.states[id]
	e.mu.RUnlock()
	if ok {
		return st
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.states[id]; ok {
		return st
	}
	lfg, lfgOK := e.mapInfo(inst)
	st = newState(inst, lfg, lfgOK)
	e.states[id] = st
	e.recorder.InstancesLive(len(e.states))
	e.logger.Debug("instance tracked",
		zap.Uint32("instance", uint32(id)),
		zap.Uint32("map", inst.MapID()),
		zap.String("name", inst.Name()),
	)
	return st
}

// mapInfo looks up LFG metadata. Heroic instances fall back to the normal
// difficulty entry.
func (e *Engine) mapInfo(inst host.Instance) (host.LFGDungeon, bool) {
	if e.lfg == nil {
		return host.LFGDungeon{}, false
	}
	diff := host.DifficultyNormal
	if inst.IsHeroic() {
		diff = host.DifficultyHeroic
	}
	if d, ok := e.lfg.Dungeon(inst.MapID(), diff); ok {
		return d, true
	}
	if diff == host.DifficultyHeroic {
		if d, ok := e.lfg.Dungeon(inst.MapID(), host.DifficultyNormal); ok {
			return d, true
		}
	}
	e.logger.Warn("no lfg metadata for map",
		zap.Uint32("map", inst.MapID()),
		zap.String("name", inst.Name()),
		zap.Bool("heroic", inst.IsHeroic()),
	)
	return host.LFGDungeon{}, false
}

func (e *Engine) rosterContext(st *State, inst host.Instance, snap *tuning.Snapshot) roster.Context {
	return roster.Context{
		Instance:    inst,
		Band:        st.band(),
		TargetLevel: st.lfg.TargetLevel,
		Distance:    snap.Distance(inst.MapID()),
	}
}

// OnPlayerEnter records a player joining the instance.
func (e *Engine) OnPlayerEnter(inst host.Instance, p host.Player) {
	e.with(inst, func(st *State, rev *revision) {
		if !st.roster.AddPlayer(p, rev.snap.Settings().IncludeGMsInPlayerCount) {
			return
		}
		e.updatePlayerStats(st, inst, rev.snap)
		if st.roster.Recount(e.rosterContext(st, inst, rev.snap)) {
			st.markDirty()
		}
		e.refresh(st, inst, rev, false)
	})
}

// OnPlayerLeave records a player leaving the instance. Leaving while combat
// is locked trips the lock.
func (e *Engine) OnPlayerLeave(inst host.Instance, id host.GUID) {
	e.with(inst, func(st *State, rev *revision) {
		if !st.roster.RemovePlayer(id) {
			return
		}
		if st.combatLocked {
			st.combatLockTripped = true
		}
		e.updatePlayerStats(st, inst, rev.snap)
		if st.roster.Recount(e.rosterContext(st, inst, rev.snap)) {
			st.markDirty()
		}
		e.refresh(st, inst, rev, false)
	})
}

// OnPlayerUpdate re-reads the level and group size of rostered players
// after p changed.
func (e *Engine) OnPlayerUpdate(inst host.Instance, p host.Player) {
	e.with(inst, func(st *State, rev *revision) {
		if !st.roster.HasPlayer(p.GUID()) {
			return
		}
		e.updatePlayerStats(st, inst, rev.snap)
		if st.roster.Recount(e.rosterContext(st, inst, rev.snap)) {
			st.markDirty()
		}
		st.markDirty()
		e.refresh(st, inst, rev, false)
	})
}

// OnCreatureSpawn classifies a creature added to the instance.
func (e *Engine) OnCreatureSpawn(inst host.Instance, c host.Creature) {
	e.with(inst, func(st *State, rev *revision) {
		if st.roster.AddCreature(e.rosterContext(st, inst, rev.snap), c, true, false) {
			st.markDirty()
		}
		e.refresh(st, inst, rev, false)
	})
}

// OnCreatureRemove takes a creature off the roster. Its state is kept until
// ForgetCreature.
func (e *Engine) OnCreatureRemove(inst host.Instance, id host.GUID) {
	e.with(inst, func(st *State, _ *revision) {
		st.roster.RemoveCreature(id)
	})
}

// ForgetCreature drops the state of a creature the host has destroyed.
func (e *Engine) ForgetCreature(inst host.Instance, id host.GUID) {
	e.with(inst, func(st *State, _ *revision) {
		st.roster.Forget(id)
	})
}

// Recount recomputes the creature statistics from the roster.
func (e *Engine) Recount(inst host.Instance) {
	e.with(inst, func(st *State, rev *revision) {
		if st.roster.Recount(e.rosterContext(st, inst, rev.snap)) {
			st.markDirty()
		}
		e.refresh(st, inst, rev, false)
	})
}

// SetCombatLock raises or releases the combat lock. Releasing clears the
// floor and the tripped flag so the player count may fall again.
func (e *Engine) SetCombatLock(inst host.Instance, locked bool) {
	e.with(inst, func(st *State, rev *revision) {
		if locked == st.combatLocked {
			return
		}
		st.combatLocked = locked
		if locked {
			st.combatLockFloor = max(st.combatLockFloor, st.playerCount)
		} else {
			st.combatLockFloor = 0
			st.combatLockTripped = false
			st.markDirty()
		}
		e.updatePlayerStats(st, inst, rev.snap)
		e.refresh(st, inst, rev, false)
	})
}

// Refresh recomputes the instance when stale, or unconditionally when force
// is set.
//
// Postcondition: Returns true when a refresh ran.
func (e *Engine) Refresh(inst host.Instance, force bool) bool {
	ran := false
	e.with(inst, func(st *State, rev *revision) {
		ran = e.refresh(st, inst, rev, force)
	})
	return ran
}

// Result refreshes the instance if stale and returns its published values.
// Non-dungeon maps report a disabled, neutral result.
func (e *Engine) Result(inst host.Instance) Result {
	out := Result{World: neutralWorld()}
	if inst != nil {
		out.InstanceID, out.MapID = inst.ID(), inst.MapID()
	}
	e.with(inst, func(st *State, rev *revision) {
		e.refresh(st, inst, rev, false)
		out = st.result()
	})
	return out
}

// IsRelevant reports whether c is ever considered for scaling.
func (e *Engine) IsRelevant(inst host.Instance, c host.Creature) bool {
	relevant := false
	e.with(inst, func(st *State, _ *revision) {
		relevant = st.roster.IsRelevant(inst, c)
	})
	return relevant
}
