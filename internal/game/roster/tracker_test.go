package roster_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/autobalance/internal/game/host"
	"github.com/cory-johannsen/autobalance/internal/game/host/memhost"
	"github.com/cory-johannsen/autobalance/internal/game/roster"
	"github.com/cory-johannsen/autobalance/internal/game/tuning"
)

func newInstance() *memhost.Instance {
	return memhost.NewInstance(memhost.InstanceSpec{ID: 1, MapID: 36, Name: "Deadmines", MaxPlayers: 5})
}

func spawn(inst *memhost.Instance, spec memhost.CreatureSpec) *memhost.Creature {
	if spec.MaxHealth == 0 {
		spec.MaxHealth = 1000
	}
	c := memhost.NewCreature(spec)
	inst.Spawn(c)
	return c
}

func join(t *testing.T, inst *memhost.Instance, tr *roster.Tracker, spec memhost.PlayerSpec) *memhost.Player {
	t.Helper()
	p := memhost.NewPlayer(spec)
	require.NoError(t, inst.Join(p))
	tr.AddPlayer(p, false)
	return p
}

func TestNewBand_Rounds(t *testing.T) {
	b := roster.NewBand(15, 21)
	assert.Equal(t, 13, b.Low)
	assert.Equal(t, 24, b.High)
	assert.True(t, b.Contains(13))
	assert.False(t, b.Contains(25))
	assert.True(t, roster.Band{}.Contains(99))
}

func TestAddCreature_RunningMean(t *testing.T) {
	inst := newInstance()
	tr := roster.NewTracker()
	ctx := roster.Context{Instance: inst}

	for _, lvl := range []int{10, 20, 30} {
		tr.AddCreature(ctx, spawn(inst, memhost.CreatureSpec{Level: lvl}), true, false)
	}
	stats := tr.Stats()
	assert.InDelta(t, 20.0, stats.AvgLevel, 1e-9)
	assert.Equal(t, 3, stats.ActiveCount)
	assert.Equal(t, 30, stats.HighestLevel)
	assert.Equal(t, 10, stats.LowestLevel)
}

func TestAddCreature_DirtyOnlyWhenRoundedMeanChanges(t *testing.T) {
	inst := newInstance()
	tr := roster.NewTracker()
	ctx := roster.Context{Instance: inst}

	assert.True(t, tr.AddCreature(ctx, spawn(inst, memhost.CreatureSpec{Level: 10}), true, false))
	assert.False(t, tr.AddCreature(ctx, spawn(inst, memhost.CreatureSpec{Level: 10}), true, false))
	assert.True(t, tr.AddCreature(ctx, spawn(inst, memhost.CreatureSpec{Level: 13}), true, false))
}

func TestAddCreature_AlreadyRosteredIsNotCountedTwice(t *testing.T) {
	inst := newInstance()
	tr := roster.NewTracker()
	ctx := roster.Context{Instance: inst}
	c := spawn(inst, memhost.CreatureSpec{Level: 10})

	tr.AddCreature(ctx, c, true, false)
	tr.AddCreature(ctx, c, true, false)
	assert.Equal(t, 1, tr.Stats().ActiveCount)
	assert.Len(t, tr.Roster(), 1)
}

func TestAddCreature_Exclusions(t *testing.T) {
	inst := newInstance()
	tr := roster.NewTracker()
	join(t, inst, tr, memhost.PlayerSpec{Level: 20})
	ctx := roster.Context{Instance: inst}

	vendor := spawn(inst, memhost.CreatureSpec{Level: 20, NPCFlags: host.NPCVendor})
	friendly := spawn(inst, memhost.CreatureSpec{Level: 20, Friendly: true})
	bossVendor := spawn(inst, memhost.CreatureSpec{Level: 20, NPCFlags: host.NPCGossip, Traits: host.TraitDungeonBoss})
	pet := spawn(inst, memhost.CreatureSpec{Level: 20, Traits: host.TraitPet | host.TraitPlayerControlled})

	for _, c := range []*memhost.Creature{vendor, friendly, bossVendor, pet} {
		tr.AddCreature(ctx, c, true, false)
	}
	assert.Equal(t, 1, tr.Stats().ActiveCount)
	assert.Len(t, tr.Roster(), 3, "utility and friendly creatures stay on the roster")
	st, ok := tr.Lookup(bossVendor.GUID())
	require.True(t, ok)
	assert.True(t, st.Active)
}

func TestAddCreature_OutOfBandSkipped(t *testing.T) {
	inst := newInstance()
	tr := roster.NewTracker()
	ctx := roster.Context{Instance: inst, Band: roster.NewBand(15, 21)}

	tr.AddCreature(ctx, spawn(inst, memhost.CreatureSpec{Level: 60}), true, false)
	tr.AddCreature(ctx, spawn(inst, memhost.CreatureSpec{Level: 5}), true, false)
	assert.Equal(t, 0, tr.Stats().ActiveCount)
	assert.Empty(t, tr.Roster())
}

func TestAddCreature_DistanceOverride(t *testing.T) {
	inst := newInstance()
	tr := roster.NewTracker()
	join(t, inst, tr, memhost.PlayerSpec{Level: 20})
	join(t, inst, tr, memhost.PlayerSpec{Level: 20, GameMaster: false, Pos: host.Position{X: 1000}})
	ctx := roster.Context{Instance: inst, Distance: tuning.Some(50.0)}

	near := spawn(inst, memhost.CreatureSpec{Level: 20, Pos: host.Position{X: 30}})
	far := spawn(inst, memhost.CreatureSpec{Level: 20, Pos: host.Position{X: 500}})
	tr.AddCreature(ctx, near, true, false)
	tr.AddCreature(ctx, far, true, false)

	assert.Equal(t, 1, tr.Stats().ActiveCount)
	st, _ := tr.Lookup(far.GUID())
	assert.False(t, st.Active)
}

func TestAddCreature_SpecialCreaturesPinnedToTarget(t *testing.T) {
	inst := newInstance()
	tr := roster.NewTracker()
	ctx := roster.Context{Instance: inst, Band: roster.NewBand(15, 21), TargetLevel: 18}

	critter := spawn(inst, memhost.CreatureSpec{Level: 16, Traits: host.TraitCritter})
	trigger := spawn(inst, memhost.CreatureSpec{Level: 1, Traits: host.TraitTrigger})
	tr.AddCreature(ctx, critter, true, false)
	tr.AddCreature(ctx, trigger, true, false)

	cs, _ := tr.Lookup(critter.GUID())
	assert.Equal(t, 18, cs.UnmodifiedLevel)
	assert.False(t, cs.NeverLevelScale)
	ts, _ := tr.Lookup(trigger.GUID())
	assert.Equal(t, 1, ts.UnmodifiedLevel)
	assert.True(t, ts.NeverLevelScale)
	assert.Equal(t, 0, tr.Stats().ActiveCount)
}

func TestAddCreature_SummonMirrorsCreatureSummoner(t *testing.T) {
	inst := newInstance()
	tr := roster.NewTracker()
	ctx := roster.Context{Instance: inst}

	boss := spawn(inst, memhost.CreatureSpec{Level: 22, Traits: host.TraitDungeonBoss})
	tr.AddCreature(ctx, boss, true, false)
	add := spawn(inst, memhost.CreatureSpec{
		Level:    5,
		Traits:   host.TraitSummon,
		Summoner: host.Summoner{Kind: host.SummonerCreature, ID: boss.GUID()},
	})
	tr.AddCreature(ctx, add, true, false)

	st, _ := tr.Lookup(add.GUID())
	assert.Equal(t, 22, st.UnmodifiedLevel)
	assert.False(t, st.InRoster, "summons are never rostered")
	assert.True(t, roster.IsBoss(inst, add))
	assert.Equal(t, 1, tr.Stats().ActiveCount)
}

func TestAddCreature_AllySummonOfPlayerCappedAtTemplate(t *testing.T) {
	inst := newInstance()
	tr := roster.NewTracker()
	owner := join(t, inst, tr, memhost.PlayerSpec{Level: 30})
	ctx := roster.Context{Instance: inst}

	ally := spawn(inst, memhost.CreatureSpec{
		Level:    10,
		MaxLevel: 25,
		Traits:   host.TraitSummon,
		Summoner: host.Summoner{Kind: host.SummonerPlayer, ID: owner.GUID()},
	})
	tr.AddCreature(ctx, ally, true, false)
	st, _ := tr.Lookup(ally.GUID())
	assert.Equal(t, 25, st.UnmodifiedLevel)
	assert.Equal(t, roster.Irrelevant, st.Relevance)
}

func TestRemoveCreature_NeverBelowZero(t *testing.T) {
	inst := newInstance()
	tr := roster.NewTracker()
	ctx := roster.Context{Instance: inst}
	c := spawn(inst, memhost.CreatureSpec{Level: 10})
	tr.AddCreature(ctx, c, true, false)

	assert.True(t, tr.RemoveCreature(c.GUID()))
	assert.False(t, tr.RemoveCreature(c.GUID()))
	assert.Equal(t, 0, tr.Stats().ActiveCount)
	st, _ := tr.Lookup(c.GUID())
	assert.False(t, st.InRoster)
	assert.False(t, st.Active)
}

func TestRecount_DropsVanishedCreatures(t *testing.T) {
	inst := newInstance()
	tr := roster.NewTracker()
	ctx := roster.Context{Instance: inst}
	a := spawn(inst, memhost.CreatureSpec{Level: 10})
	b := spawn(inst, memhost.CreatureSpec{Level: 30})
	tr.AddCreature(ctx, a, true, false)
	tr.AddCreature(ctx, b, true, false)

	inst.Despawn(b.GUID())
	assert.True(t, tr.Recount(ctx))
	assert.Equal(t, 1, tr.Stats().ActiveCount)
	assert.InDelta(t, 10.0, tr.Stats().AvgLevel, 1e-9)
	_, ok := tr.Lookup(b.GUID())
	assert.False(t, ok)
}

func TestIsRelevant_Sticky(t *testing.T) {
	inst := newInstance()
	tr := roster.NewTracker()
	owner := join(t, inst, tr, memhost.PlayerSpec{Level: 20})
	join(t, inst, tr, memhost.PlayerSpec{Level: 20})

	summon := spawn(inst, memhost.CreatureSpec{
		Level:    20,
		Traits:   host.TraitSummon,
		Summoner: host.Summoner{Kind: host.SummonerPlayer, ID: owner.GUID()},
	})
	assert.False(t, tr.IsRelevant(inst, summon))

	summon.Update(func(s *memhost.CreatureSpec) { s.Attackable = true })
	assert.False(t, tr.IsRelevant(inst, summon), "relevance is cached for the creature's lifetime")

	tr.Forget(summon.GUID())
	assert.True(t, tr.IsRelevant(inst, summon))
}

func TestIsRelevant_Rules(t *testing.T) {
	inst := newInstance()
	tr := roster.NewTracker()
	join(t, inst, tr, memhost.PlayerSpec{Level: 20})

	tiny := spawn(inst, memhost.CreatureSpec{Level: 1, MaxHealth: 50, Traits: host.TraitCritter})
	big := spawn(inst, memhost.CreatureSpec{Level: 1, MaxHealth: 500, Traits: host.TraitCritter})
	pet := spawn(inst, memhost.CreatureSpec{Level: 20, Traits: host.TraitHunterPet | host.TraitPlayerControlled})
	mob := spawn(inst, memhost.CreatureSpec{Level: 20})

	assert.False(t, tr.IsRelevant(inst, tiny))
	assert.True(t, tr.IsRelevant(inst, big))
	assert.False(t, tr.IsRelevant(inst, pet))
	assert.True(t, tr.IsRelevant(inst, mob))

	overworld := memhost.NewInstance(memhost.InstanceSpec{ID: 2, MaxPlayers: 5, Overworld: true})
	assert.False(t, roster.NewTracker().IsRelevant(overworld, mob))
}

func TestPlayers_GMsAndDuplicates(t *testing.T) {
	tr := roster.NewTracker()
	gm := memhost.NewPlayer(memhost.PlayerSpec{GameMaster: true})
	p := memhost.NewPlayer(memhost.PlayerSpec{Level: 10})

	assert.False(t, tr.AddPlayer(gm, false))
	assert.True(t, tr.AddPlayer(gm, true))
	assert.True(t, tr.AddPlayer(p, false))
	assert.False(t, tr.AddPlayer(p, false))
	assert.False(t, tr.AddPlayer(nil, true))
	assert.Len(t, tr.Players(), 2)
	assert.True(t, tr.RemovePlayer(p.GUID()))
	assert.Len(t, tr.Players(), 1)
}

// Property: the running average equals the arithmetic mean of counted levels.
func TestPropertyRunningMean(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		levels := rapid.SliceOfN(rapid.IntRange(1, 83), 1, 40).Draw(rt, "levels")
		inst := newInstance()
		tr := roster.NewTracker()
		ctx := roster.Context{Instance: inst}
		sum := 0
		for _, l := range levels {
			tr.AddCreature(ctx, spawn(inst, memhost.CreatureSpec{Level: l}), true, false)
			sum += l
		}
		want := float64(sum) / float64(len(levels))
		if got := tr.Stats().AvgLevel; got < want-1e-6 || got > want+1e-6 {
			rt.Fatalf("avg = %v, want %v", got, want)
		}
		if tr.Stats().ActiveCount != len(levels) {
			rt.Fatalf("active = %d, want %d", tr.Stats().ActiveCount, len(levels))
		}
	})
}
