package scripting_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/autobalance/internal/scripting"
)

func runScript(t *testing.T, mgr *scripting.Manager, luaSrc, hook string, args ...lua.LValue) lua.LValue {
	t.Helper()
	dir := writeTempLua(t, "test.lua", luaSrc)
	name := "modtest_" + t.Name()
	require.NoError(t, mgr.LoadDir(name, dir, 0))
	ret, err := mgr.CallHook(name, hook, args...)
	require.NoError(t, err)
	return ret
}

func TestEngineLog_AllLevels(t *testing.T) {
	mgr, logs := newTestManager(t)
	runScript(t, mgr, `
		function do_all_logs()
			engine.log.debug("d")
			engine.log.info("i")
			engine.log.warn("w")
			engine.log.error("e")
		end
	`, "do_all_logs")

	assert.Equal(t, 1, logs.FilterMessage("scripting: d").FilterLevelExact(zap.DebugLevel).Len())
	assert.Equal(t, 1, logs.FilterMessage("scripting: i").FilterLevelExact(zap.InfoLevel).Len())
	assert.Equal(t, 1, logs.FilterMessage("scripting: w").FilterLevelExact(zap.WarnLevel).Len())
	assert.Equal(t, 1, logs.FilterMessage("scripting: e").FilterLevelExact(zap.ErrorLevel).Len())
}

func TestEngineInstance_Create_PassesFieldsAndDefaults(t *testing.T) {
	mgr, _ := newTestManager(t)
	var got scripting.InstanceInfo
	mgr.CreateInstance = func(info scripting.InstanceInfo) error {
		got = info
		return nil
	}
	runScript(t, mgr, `
		function go() engine.instance.create{id = 7, map = 36, name = "Deadmines", heroic = true} end
	`, "go")
	assert.Equal(t, scripting.InstanceInfo{ID: 7, MapID: 36, Name: "Deadmines", Capacity: 5, Heroic: true}, got)
}

func TestEngineInstance_Create_ErrorRaises(t *testing.T) {
	mgr, _ := newTestManager(t)
	mgr.CreateInstance = func(scripting.InstanceInfo) error { return errors.New("taken") }
	dir := writeTempLua(t, "c.lua", `function go() engine.instance.create{id = 1, map = 36} end`)
	require.NoError(t, mgr.LoadDir("create_err", dir, 0))
	_, err := mgr.CallHook("create_err", "go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "taken")
}

func TestEngineInstance_NilCallbacks_NoOp(t *testing.T) {
	mgr, _ := newTestManager(t)
	ret := runScript(t, mgr, `
		function go()
			engine.instance.create{id = 1, map = 36}
			engine.instance.combat_lock(1, true)
			engine.player.leave(1, "p")
			engine.creature.despawn(1, "c")
			local r = engine.instance.result(1)
			local s = engine.creature.scaling(1, "c")
			local g = engine.player.join(1, {level = 20})
			return r == nil and s == nil and g == nil and engine.instance.refresh(1) == false
		end
	`, "go")
	assert.Equal(t, lua.LTrue, ret)
}

func TestEnginePlayer_JoinReturnsGUID(t *testing.T) {
	mgr, _ := newTestManager(t)
	var got scripting.PlayerInfo
	mgr.Join = func(instID uint32, p scripting.PlayerInfo) (string, error) {
		assert.Equal(t, uint32(3), instID)
		got = p
		return "guid-1", nil
	}
	ret := runScript(t, mgr, `
		function go() return engine.player.join(3, {name = "Ana", level = 42, gm = true, group_size = 4}) end
	`, "go")
	assert.Equal(t, lua.LString("guid-1"), ret)
	assert.Equal(t, scripting.PlayerInfo{Name: "Ana", Level: 42, GameMaster: true, GroupSize: 4}, got)
}

func TestEnginePlayer_UpdateOnlySetsGivenFields(t *testing.T) {
	mgr, _ := newTestManager(t)
	var got scripting.PlayerUpdate
	mgr.UpdatePlayer = func(instID uint32, guid string, u scripting.PlayerUpdate) error {
		assert.Equal(t, "p1", guid)
		got = u
		return nil
	}
	runScript(t, mgr, `function go() engine.player.update(1, "p1", {level = 30, in_combat = true}) end`, "go")
	require.NotNil(t, got.Level)
	assert.Equal(t, 30, *got.Level)
	require.NotNil(t, got.InCombat)
	assert.True(t, *got.InCombat)
	assert.Nil(t, got.GameMaster)
	assert.Nil(t, got.Dead)
	assert.Nil(t, got.GroupSize)
}

func TestEngineCreature_SpawnTraits(t *testing.T) {
	mgr, _ := newTestManager(t)
	var got scripting.CreatureInfo
	mgr.Spawn = func(instID uint32, c scripting.CreatureInfo) (string, error) {
		got = c
		return "c1", nil
	}
	ret := runScript(t, mgr, `
		function go()
			return engine.creature.spawn(1, {entry = 639, level = 21, health = 5000, traits = {"boss", "critter"}})
		end
	`, "go")
	assert.Equal(t, lua.LString("c1"), ret)
	assert.Equal(t, uint32(639), got.Entry)
	assert.Equal(t, 21, got.Level)
	assert.Equal(t, 5000, got.MaxHealth)
	assert.Equal(t, []string{"boss", "critter"}, got.Traits)
	assert.True(t, got.Attackable)
	assert.False(t, got.Friendly)
}

func TestEngineInstance_CombatLockDefaultsToLocked(t *testing.T) {
	mgr, _ := newTestManager(t)
	var calls []bool
	mgr.CombatLock = func(_ uint32, locked bool) error {
		calls = append(calls, locked)
		return nil
	}
	runScript(t, mgr, `
		function go()
			engine.instance.combat_lock(1)
			engine.instance.combat_lock(1, false)
		end
	`, "go")
	assert.Equal(t, []bool{true, false}, calls)
}

func TestEngineInstance_ResultTable(t *testing.T) {
	mgr, _ := newTestManager(t)
	mgr.QueryResult = func(id uint32) *scripting.ResultInfo {
		if id != 1 {
			return nil
		}
		return &scripting.ResultInfo{Enabled: true, AdjustedPlayerCount: 3, MapLevel: 20, WorldHealth: 0.5}
	}
	ret := runScript(t, mgr, `
		function go()
			local r = engine.instance.result(1)
			return r.adjusted .. ":" .. r.map_level .. ":" .. tostring(r.enabled) .. ":" .. r.world_health
				.. ":" .. tostring(engine.instance.result(2))
		end
	`, "go")
	assert.Equal(t, lua.LString("3:20:true:0.5:nil"), ret)
}

func TestEngineCreature_ScalingTable(t *testing.T) {
	mgr, _ := newTestManager(t)
	mgr.QueryScaling = func(_ uint32, guid string) *scripting.ScalingInfo {
		return &scripting.ScalingInfo{Relevant: true, Boss: true, Health: 0.75, Level: 80}
	}
	ret := runScript(t, mgr, `
		function go()
			local s = engine.creature.scaling(1, "c1")
			return tostring(s.boss) .. ":" .. s.health .. ":" .. s.level
		end
	`, "go")
	assert.Equal(t, lua.LString("true:0.75:80"), ret)
}

func TestEngineInstance_RefreshReturnsBool(t *testing.T) {
	mgr, _ := newTestManager(t)
	var forced bool
	mgr.Refresh = func(_ uint32, force bool) (bool, error) {
		forced = force
		return true, nil
	}
	ret := runScript(t, mgr, `function go() return engine.instance.refresh(1, true) end`, "go")
	assert.Equal(t, lua.LTrue, ret)
	assert.True(t, forced)
}

func TestProperty_JoinLevelPassesThrough(t *testing.T) {
	mgr, _ := newTestManager(t)
	var got int
	mgr.Join = func(_ uint32, p scripting.PlayerInfo) (string, error) {
		got = p.Level
		return "g", nil
	}
	dir := writeTempLua(t, "join.lua", `function go(l) return engine.player.join(1, {level = l}) end`)
	require.NoError(t, mgr.LoadDir("join", dir, 0))
	rapid.Check(t, func(rt *rapid.T) {
		level := rapid.IntRange(1, 255).Draw(rt, "level")
		if _, err := mgr.CallHook("join", "go", lua.LNumber(level)); err != nil {
			rt.Fatalf("call: %v", err)
		}
		if got != level {
			rt.Fatalf("got level %d, want %d", got, level)
		}
	})
}
