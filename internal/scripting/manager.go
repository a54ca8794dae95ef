package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// InstanceInfo describes an instance a scenario creates.
type InstanceInfo struct {
	ID        uint32
	MapID     uint32
	Name      string
	Capacity  int
	Heroic    bool
	Overworld bool
}

// PlayerInfo describes a player a scenario adds to an instance.
type PlayerInfo struct {
	GUID       string
	Name       string
	Level      int
	GameMaster bool
	InCombat   bool
	GroupSize  int
}

// PlayerUpdate holds the player fields a scenario changes. Nil fields are left alone.
type PlayerUpdate struct {
	Level      *int
	GameMaster *bool
	InCombat   *bool
	Dead       *bool
	GroupSize  *int
}

// CreatureInfo describes a creature a scenario spawns.
type CreatureInfo struct {
	GUID      string
	Entry     uint32
	Name      string
	Level     int
	MaxLevel  int
	MaxHealth int
	// Traits are lower-case trait names such as "boss", "critter" or "pet".
	Traits     []string
	Friendly   bool
	Attackable bool
}

// ResultInfo is a snapshot of an instance's published scaling state.
type ResultInfo struct {
	Enabled             bool
	MapLevel            int
	LevelScaling        bool
	MinPlayers          int
	PlayerCount         int
	AdjustedPlayerCount int
	CombatLocked        bool
	CombatLockFloor     int
	HighestPlayerLevel  int
	LowestPlayerLevel   int
	AvgCreatureLevel    float64
	ActiveCreatures     int
	WorldHealth         float64
	WorldDamage         float64
}

// ScalingInfo is a snapshot of one creature's scaling outcome.
type ScalingInfo struct {
	Relevant   bool
	Boss       bool
	Players    float64
	Health     float64
	Mana       float64
	Armor      float64
	Damage     float64
	CCDuration float64
	Level      int
}

// vm is one loaded scenario. Its LState is single-threaded; mu serializes calls.
type vm struct {
	mu    sync.Mutex
	L     *lua.LState
	limit int
}

// Manager owns one sandboxed LState per scenario and exposes hook dispatch.
//
// Manager is safe for concurrent use. Calls into one scenario are serialized;
// different scenarios run concurrently.
type Manager struct {
	mu     sync.RWMutex
	vms    map[string]*vm
	logger *zap.Logger

	// Injected after construction. nil = no-op in engine.* modules.
	CreateInstance  func(info InstanceInfo) error
	DestroyInstance func(id uint32) error
	Join            func(instID uint32, p PlayerInfo) (string, error)
	Leave           func(instID uint32, guid string) error
	UpdatePlayer    func(instID uint32, guid string, u PlayerUpdate) error
	Spawn           func(instID uint32, c CreatureInfo) (string, error)
	Despawn         func(instID uint32, guid string) error
	CombatLock      func(instID uint32, locked bool) error
	Refresh         func(instID uint32, force bool) (bool, error)
	QueryResult     func(instID uint32) *ResultInfo
	QueryScaling    func(instID uint32, guid string) *ScalingInfo
}

// NewManager creates a Manager.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a non-nil Manager with no scenarios loaded.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		vms:    make(map[string]*vm),
		logger: logger,
	}
}

// LoadFile creates a sandboxed VM for name, registers all engine.* modules,
// then executes the script at path. Top-level statements run immediately
// and usually set up the scenario's instances.
//
// Precondition: name must be non-empty; path must be a readable Lua file.
// Postcondition: The VM is registered under name, replacing any previous one;
// returns error on Lua load or runtime failure.
func (m *Manager) LoadFile(name, path string, instLimit int) error {
	return m.loadInto(name, []string{path}, instLimit)
}

// LoadDir is LoadFile for every *.lua file in dir, executed in lexicographic
// order into the same VM.
//
// Precondition: dir must be a readable directory.
// Postcondition: The VM is registered under name; returns error on Lua load failure.
func (m *Manager) LoadDir(name, dir string, instLimit int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", dir, name, err)
	}
	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(luaFiles)
	return m.loadInto(name, luaFiles, instLimit)
}

func (m *Manager) loadInto(name string, paths []string, instLimit int) error {
	L, cancel := NewSandboxedState(instLimit)
	m.RegisterModules(L)

	for _, path := range paths {
		if err := L.DoFile(path); err != nil {
			cancel()
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, name, err)
		}
	}
	cancel()

	m.mu.Lock()
	old := m.vms[name]
	m.vms[name] = &vm{L: L, limit: instLimit}
	m.mu.Unlock()

	if old != nil {
		old.close()
	}
	m.logger.Debug("scripting: scenario loaded",
		zap.String("scenario", name),
		zap.Int("files", len(paths)),
	)
	return nil
}

// Scenarios returns the loaded scenario names in sorted order.
func (m *Manager) Scenarios() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.vms))
	for name := range m.vms {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// CallHook calls the named Lua global function in the scenario's VM with a
// fresh instruction budget. Returns (LNil, nil) if the scenario is not loaded
// or the hook is not defined. Lua runtime errors are logged at Warn level and
// returned.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(name, hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.RLock()
	v, ok := m.vms[name]
	m.mu.RUnlock()

	if !ok {
		m.logger.Info("scripting: no VM for scenario",
			zap.String("scenario", name),
			zap.String("hook", hook),
		)
		return lua.LNil, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.L == nil {
		return lua.LNil, nil
	}

	fn := v.L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	err := withBudget(v.L, v.limit, func() error {
		return v.L.CallByParam(lua.P{
			Fn:      fn,
			NRet:    1,
			Protect: true,
		}, args...)
	})
	if err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("scenario", name),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, fmt.Errorf("scripting: %s.%s: %w", name, hook, err)
	}

	ret := v.L.Get(-1)
	v.L.Pop(1)
	return ret, nil
}

// Unload closes and removes the named scenario.
//
// Postcondition: Returns false when no scenario was loaded under name.
func (m *Manager) Unload(name string) bool {
	m.mu.Lock()
	v, ok := m.vms[name]
	delete(m.vms, name)
	m.mu.Unlock()
	if ok {
		v.close()
	}
	return ok
}

// Close releases every loaded scenario.
//
// Postcondition: CallHook returns (LNil, nil) for every name after Close.
func (m *Manager) Close() {
	m.mu.Lock()
	vms := m.vms
	m.vms = make(map[string]*vm)
	m.mu.Unlock()
	for _, v := range vms {
		v.close()
	}
}

func (v *vm) close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.L != nil {
		v.L.Close()
		v.L = nil
	}
}
