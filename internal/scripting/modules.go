package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RegisterModules registers all engine.* Lua tables into L:
//
//	engine.instance: create, destroy, combat_lock, refresh, result
//	engine.player:   join, leave, update
//	engine.creature: spawn, despawn, scaling
//	engine.log:      debug, info, warn, error
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetField(engine, "instance", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"create":      m.luaCreateInstance,
		"destroy":     m.luaDestroyInstance,
		"combat_lock": m.luaCombatLock,
		"refresh":     m.luaRefresh,
		"result":      m.luaResult,
	}))
	L.SetField(engine, "player", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"join":   m.luaJoin,
		"leave":  m.luaLeave,
		"update": m.luaUpdatePlayer,
	}))
	L.SetField(engine, "creature", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"spawn":   m.luaSpawn,
		"despawn": m.luaDespawn,
		"scaling": m.luaScaling,
	}))
	L.SetField(engine, "log", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"debug": m.luaLog(zap.DebugLevel),
		"info":  m.luaLog(zap.InfoLevel),
		"warn":  m.luaLog(zap.WarnLevel),
		"error": m.luaLog(zap.ErrorLevel),
	}))
	L.SetGlobal("engine", engine)
}

// engine.instance.create{id=, map=, name=, capacity=, heroic=, overworld=}
func (m *Manager) luaCreateInstance(L *lua.LState) int {
	t := L.CheckTable(1)
	info := InstanceInfo{
		ID:        uint32(tableInt(t, "id", 0)),
		MapID:     uint32(tableInt(t, "map", 0)),
		Name:      tableString(t, "name", ""),
		Capacity:  tableInt(t, "capacity", 5),
		Heroic:    tableBool(t, "heroic", false),
		Overworld: tableBool(t, "overworld", false),
	}
	if m.CreateInstance != nil {
		if err := m.CreateInstance(info); err != nil {
			L.RaiseError("engine.instance.create: %v", err)
		}
	}
	return 0
}

// engine.instance.destroy(id)
func (m *Manager) luaDestroyInstance(L *lua.LState) int {
	id := uint32(L.CheckInt(1))
	if m.DestroyInstance != nil {
		if err := m.DestroyInstance(id); err != nil {
			L.RaiseError("engine.instance.destroy: %v", err)
		}
	}
	return 0
}

// engine.instance.combat_lock(id, locked)
func (m *Manager) luaCombatLock(L *lua.LState) int {
	id := uint32(L.CheckInt(1))
	locked := L.OptBool(2, true)
	if m.CombatLock != nil {
		if err := m.CombatLock(id, locked); err != nil {
			L.RaiseError("engine.instance.combat_lock: %v", err)
		}
	}
	return 0
}

// engine.instance.refresh(id, force) returns whether a recompute ran.
func (m *Manager) luaRefresh(L *lua.LState) int {
	id := uint32(L.CheckInt(1))
	force := L.OptBool(2, false)
	if m.Refresh == nil {
		L.Push(lua.LFalse)
		return 1
	}
	ran, err := m.Refresh(id, force)
	if err != nil {
		L.RaiseError("engine.instance.refresh: %v", err)
	}
	L.Push(lua.LBool(ran))
	return 1
}

// engine.instance.result(id) returns a table or nil.
func (m *Manager) luaResult(L *lua.LState) int {
	id := uint32(L.CheckInt(1))
	if m.QueryResult == nil {
		L.Push(lua.LNil)
		return 1
	}
	r := m.QueryResult(id)
	if r == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(resultToTable(L, r))
	return 1
}

// engine.player.join(instance, {name=, level=, gm=, in_combat=, group_size=}) returns the guid.
func (m *Manager) luaJoin(L *lua.LState) int {
	id := uint32(L.CheckInt(1))
	t := L.CheckTable(2)
	p := PlayerInfo{
		GUID:       tableString(t, "guid", ""),
		Name:       tableString(t, "name", ""),
		Level:      tableInt(t, "level", 1),
		GameMaster: tableBool(t, "gm", false),
		InCombat:   tableBool(t, "in_combat", false),
		GroupSize:  tableInt(t, "group_size", 0),
	}
	if m.Join == nil {
		L.Push(lua.LNil)
		return 1
	}
	guid, err := m.Join(id, p)
	if err != nil {
		L.RaiseError("engine.player.join: %v", err)
	}
	L.Push(lua.LString(guid))
	return 1
}

// engine.player.leave(instance, guid)
func (m *Manager) luaLeave(L *lua.LState) int {
	id := uint32(L.CheckInt(1))
	guid := L.CheckString(2)
	if m.Leave != nil {
		if err := m.Leave(id, guid); err != nil {
			L.RaiseError("engine.player.leave: %v", err)
		}
	}
	return 0
}

// engine.player.update(instance, guid, {level=, gm=, in_combat=, dead=, group_size=})
func (m *Manager) luaUpdatePlayer(L *lua.LState) int {
	id := uint32(L.CheckInt(1))
	guid := L.CheckString(2)
	t := L.CheckTable(3)
	u := PlayerUpdate{
		Level:      optTableInt(t, "level"),
		GameMaster: optTableBool(t, "gm"),
		InCombat:   optTableBool(t, "in_combat"),
		Dead:       optTableBool(t, "dead"),
		GroupSize:  optTableInt(t, "group_size"),
	}
	if m.UpdatePlayer != nil {
		if err := m.UpdatePlayer(id, guid, u); err != nil {
			L.RaiseError("engine.player.update: %v", err)
		}
	}
	return 0
}

// engine.creature.spawn(instance, {entry=, name=, level=, max_level=, health=, traits={...}, friendly=, attackable=})
// returns the guid.
func (m *Manager) luaSpawn(L *lua.LState) int {
	id := uint32(L.CheckInt(1))
	t := L.CheckTable(2)
	c := CreatureInfo{
		GUID:       tableString(t, "guid", ""),
		Entry:      uint32(tableInt(t, "entry", 0)),
		Name:       tableString(t, "name", ""),
		Level:      tableInt(t, "level", 1),
		MaxLevel:   tableInt(t, "max_level", 0),
		MaxHealth:  tableInt(t, "health", 1),
		Traits:     tableStrings(t, "traits"),
		Friendly:   tableBool(t, "friendly", false),
		Attackable: tableBool(t, "attackable", true),
	}
	if m.Spawn == nil {
		L.Push(lua.LNil)
		return 1
	}
	guid, err := m.Spawn(id, c)
	if err != nil {
		L.RaiseError("engine.creature.spawn: %v", err)
	}
	L.Push(lua.LString(guid))
	return 1
}

// engine.creature.despawn(instance, guid)
func (m *Manager) luaDespawn(L *lua.LState) int {
	id := uint32(L.CheckInt(1))
	guid := L.CheckString(2)
	if m.Despawn != nil {
		if err := m.Despawn(id, guid); err != nil {
			L.RaiseError("engine.creature.despawn: %v", err)
		}
	}
	return 0
}

// engine.creature.scaling(instance, guid) returns a table or nil.
func (m *Manager) luaScaling(L *lua.LState) int {
	id := uint32(L.CheckInt(1))
	guid := L.CheckString(2)
	if m.QueryScaling == nil {
		L.Push(lua.LNil)
		return 1
	}
	s := m.QueryScaling(id, guid)
	if s == nil {
		L.Push(lua.LNil)
		return 1
	}
	t := L.NewTable()
	L.SetField(t, "relevant", lua.LBool(s.Relevant))
	L.SetField(t, "boss", lua.LBool(s.Boss))
	L.SetField(t, "players", lua.LNumber(s.Players))
	L.SetField(t, "health", lua.LNumber(s.Health))
	L.SetField(t, "mana", lua.LNumber(s.Mana))
	L.SetField(t, "armor", lua.LNumber(s.Armor))
	L.SetField(t, "damage", lua.LNumber(s.Damage))
	L.SetField(t, "cc_duration", lua.LNumber(s.CCDuration))
	L.SetField(t, "level", lua.LNumber(s.Level))
	L.Push(t)
	return 1
}

// engine.log.<level>(msg)
func (m *Manager) luaLog(level zapcore.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)
		if ce := m.logger.Check(level, "scripting: "+msg); ce != nil {
			ce.Write()
		}
		return 0
	}
}

func resultToTable(L *lua.LState, r *ResultInfo) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "enabled", lua.LBool(r.Enabled))
	L.SetField(t, "map_level", lua.LNumber(r.MapLevel))
	L.SetField(t, "level_scaling", lua.LBool(r.LevelScaling))
	L.SetField(t, "min_players", lua.LNumber(r.MinPlayers))
	L.SetField(t, "player_count", lua.LNumber(r.PlayerCount))
	L.SetField(t, "adjusted", lua.LNumber(r.AdjustedPlayerCount))
	L.SetField(t, "combat_locked", lua.LBool(r.CombatLocked))
	L.SetField(t, "lock_floor", lua.LNumber(r.CombatLockFloor))
	L.SetField(t, "highest_level", lua.LNumber(r.HighestPlayerLevel))
	L.SetField(t, "lowest_level", lua.LNumber(r.LowestPlayerLevel))
	L.SetField(t, "avg_creature_level", lua.LNumber(r.AvgCreatureLevel))
	L.SetField(t, "active_creatures", lua.LNumber(r.ActiveCreatures))
	L.SetField(t, "world_health", lua.LNumber(r.WorldHealth))
	L.SetField(t, "world_damage", lua.LNumber(r.WorldDamage))
	return t
}

func tableString(t *lua.LTable, key, def string) string {
	if s, ok := t.RawGetString(key).(lua.LString); ok {
		return string(s)
	}
	return def
}

func tableInt(t *lua.LTable, key string, def int) int {
	if n, ok := t.RawGetString(key).(lua.LNumber); ok {
		return int(n)
	}
	return def
}

func tableBool(t *lua.LTable, key string, def bool) bool {
	if b, ok := t.RawGetString(key).(lua.LBool); ok {
		return bool(b)
	}
	return def
}

func optTableInt(t *lua.LTable, key string) *int {
	if n, ok := t.RawGetString(key).(lua.LNumber); ok {
		v := int(n)
		return &v
	}
	return nil
}

func optTableBool(t *lua.LTable, key string) *bool {
	if b, ok := t.RawGetString(key).(lua.LBool); ok {
		v := bool(b)
		return &v
	}
	return nil
}

func tableStrings(t *lua.LTable, key string) []string {
	list, ok := t.RawGetString(key).(*lua.LTable)
	if !ok {
		return nil
	}
	var out []string
	list.ForEach(func(_, v lua.LValue) {
		if s, ok := v.(lua.LString); ok {
			out = append(out, string(s))
		}
	})
	return out
}
