package scenario_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/autobalance/internal/game/host"
	"github.com/cory-johannsen/autobalance/internal/game/instance"
	"github.com/cory-johannsen/autobalance/internal/game/refdata"
	"github.com/cory-johannsen/autobalance/internal/game/tuning"
	"github.com/cory-johannsen/autobalance/internal/scenario"
)

// repoRoot walks up from the test's working directory to find the module root.
func repoRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	root := wd
	for {
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
			return root
		}
		parent := filepath.Dir(root)
		if parent == root {
			t.Fatalf("could not find repo root from %s", wd)
		}
		root = parent
	}
}

func newSim(t *testing.T) (*scenario.Sim, *observer.ObservedLogs) {
	t.Helper()
	lfg := refdata.NewLFGTable([]host.LFGDungeon{
		{MapID: 36, Difficulty: host.DifficultyNormal, MinLevel: 15, MaxLevel: 25, TargetLevel: 20},
		{MapID: 532, Difficulty: host.DifficultyNormal, MinLevel: 68, MaxLevel: 73, TargetLevel: 70},
	})
	anchors := [3]float64{100, 400, 1000}
	stats := refdata.NewBaseStatTable([]host.BaseStats{
		{Level: 70, Health: anchors, Damage: anchors},
		{Level: 71, Health: anchors, Damage: anchors},
		{Level: 80, Health: anchors, Damage: anchors},
	})
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	e, err := instance.NewEngine(tuning.Default(), lfg, stats, logger)
	require.NoError(t, err)
	sim := scenario.New(e, logger)
	t.Cleanup(sim.Close)
	return sim, logs
}

func writeScenario(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.lua")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func TestSim_DeadminesScenario(t *testing.T) {
	sim, logs := newSim(t)
	require.NoError(t, sim.Load(filepath.Join(repoRoot(t), "scenarios", "deadmines.lua"), 0))
	assert.Equal(t, "deadmines", sim.Name())

	res := sim.Results()
	require.Len(t, res, 1)
	assert.True(t, res[0].Enabled)
	assert.Equal(t, 3, res[0].AdjustedPlayerCount)
	assert.Equal(t, 2, res[0].ActiveCreatures)

	want := []struct{ players, adjusted int }{
		{3, 3}, // 1
		{4, 4}, // 2: straggler joins
		{4, 4}, // 3: lock at 4
		{3, 4}, // 4: straggler leaves under lock
		{3, 3}, // 5: unlock
	}
	for i, w := range want {
		n, err := sim.Tick()
		require.NoError(t, err)
		require.Equal(t, i+1, n)
		r := sim.Results()[0]
		assert.Equal(t, w.players, r.PlayerCount, "tick %d", n)
		assert.Equal(t, w.adjusted, r.AdjustedPlayerCount, "tick %d", n)
	}
	assert.Equal(t, 5, logs.FilterMessageSnippet("scripting: tick").Len())
}

func TestSim_KarazhanScenario_ScalesTowardHighestLevel(t *testing.T) {
	sim, _ := newSim(t)
	require.NoError(t, sim.Load(filepath.Join(repoRoot(t), "scenarios", "karazhan.lua"), 0))

	_, err := sim.Tick()
	require.NoError(t, err)

	res := sim.Results()
	require.Len(t, res, 1)
	assert.Equal(t, 7, res[0].PlayerCount)
	assert.Equal(t, 80, res[0].HighestPlayerLevel)

	scaling, ok := sim.Scaling(2)
	require.True(t, ok)
	require.Len(t, scaling, 3)
	for _, cr := range scaling {
		assert.True(t, cr.Relevant)
		assert.Equal(t, 7.0, cr.Players)
	}
}

func TestSim_DestroyInstance(t *testing.T) {
	sim, _ := newSim(t)
	require.NoError(t, sim.Load(writeScenario(t, `
		engine.instance.create{id = 9, map = 36}
		engine.player.join(9, {level = 20})
		function on_tick(n)
			if n == 1 then engine.instance.destroy(9) end
		end
	`), 0))
	require.Len(t, sim.Results(), 1)
	_, err := sim.Tick()
	require.NoError(t, err)
	assert.Empty(t, sim.Results())
	_, ok := sim.Scaling(9)
	assert.False(t, ok)
}

func TestSim_UpdatePlayer(t *testing.T) {
	sim, _ := newSim(t)
	require.NoError(t, sim.Load(writeScenario(t, `
		engine.instance.create{id = 1, map = 36}
		local p = engine.player.join(1, {level = 18})
		function on_tick(n)
			engine.player.update(1, p, {level = 18 + n})
		end
	`), 0))
	for range 3 {
		_, err := sim.Tick()
		require.NoError(t, err)
	}
	assert.Equal(t, 21, sim.Results()[0].HighestPlayerLevel)
}

func TestSim_DespawnForgetsCreature(t *testing.T) {
	sim, _ := newSim(t)
	require.NoError(t, sim.Load(writeScenario(t, `
		engine.instance.create{id = 1, map = 36}
		engine.player.join(1, {level = 20})
		local c = engine.creature.spawn(1, {entry = 1, level = 20, health = 100})
		function on_tick(n)
			if n == 1 then engine.creature.despawn(1, c) end
		end
	`), 0))
	require.Equal(t, 1, sim.Results()[0].ActiveCreatures)
	_, err := sim.Tick()
	require.NoError(t, err)
	assert.Equal(t, 0, sim.Results()[0].ActiveCreatures)
}

func TestSim_LoadErrors(t *testing.T) {
	sim, _ := newSim(t)
	err := sim.Load(writeScenario(t, `engine.player.join(99, {level = 1})`), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no instance 99")

	err = sim.Load(writeScenario(t, `
		engine.instance.create{id = 1, map = 36}
		engine.creature.spawn(1, {traits = {"dragon"}})
	`), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dragon")
}

func TestSim_TickErrorSurfaces(t *testing.T) {
	sim, _ := newSim(t)
	require.NoError(t, sim.Load(writeScenario(t, `
		function on_tick(n) engine.player.leave(1, "ghost") end
	`), 0))
	n, err := sim.Tick()
	assert.Equal(t, 1, n)
	assert.Error(t, err)
}

func TestParseTraits(t *testing.T) {
	got, err := scenario.ParseTraits([]string{"Boss", "pet"})
	require.NoError(t, err)
	assert.True(t, got.Has(host.TraitDungeonBoss|host.TraitPet))
	assert.False(t, got.Has(host.TraitCritter))

	none, err := scenario.ParseTraits(nil)
	require.NoError(t, err)
	assert.Zero(t, none)
}
