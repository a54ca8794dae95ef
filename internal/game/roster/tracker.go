// Package roster tracks the players and creatures of one instance: which
// creatures count toward the instance's creature level statistics, the
// level each creature is scaled from, and whether a creature is relevant to
// scaling at all.
//
// A Tracker is confined to its instance. Callers serialise access.
package roster

import (
	"math"

	"github.com/cory-johannsen/autobalance/internal/game/host"
	"github.com/cory-johannsen/autobalance/internal/game/tuning"
)

// Band is the creature level window derived from LFG metadata. Creatures
// outside it are treated as flavour and never counted.
type Band struct {
	Low  int
	High int
	// Known is false when no LFG metadata exists; an unknown band contains
	// every level.
	Known bool
}

// NewBand widens the LFG level range to [0.85*min, 1.15*max], rounded.
func NewBand(minLevel, maxLevel int) Band {
	return Band{
		Low:   int(math.Floor(float64(minLevel)*0.85 + 0.5)),
		High:  int(math.Floor(float64(maxLevel)*1.15 + 0.5)),
		Known: true,
	}
}

// Contains reports whether level lies inside the band.
func (b Band) Contains(level int) bool {
	return !b.Known || (level >= b.Low && level <= b.High)
}

// Context carries the instance-level inputs of creature classification.
type Context struct {
	Instance    host.Instance
	Band        Band
	TargetLevel int
	// Distance, when set, requires a non-GM player within range for a
	// creature to be counted.
	Distance tuning.Opt[float64]
}

// Stats are the running creature statistics.
type Stats struct {
	ActiveCount  int
	AvgLevel     float64
	HighestLevel int
	LowestLevel  int
}

// Tracker holds the player and creature rosters of one instance.
type Tracker struct {
	players   []host.Player
	creatures map[host.GUID]*Creature
	roster    []host.GUID
	stats     Stats
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{creatures: make(map[host.GUID]*Creature)}
}

// Stats returns the running creature statistics.
func (t *Tracker) Stats() Stats { return t.stats }

// Creature returns the state for c, creating it on first use.
//
// Postcondition: The returned state is owned by the Tracker.
func (t *Tracker) Creature(c host.Creature) *Creature {
	if st, ok := t.creatures[c.GUID()]; ok {
		return st
	}
	st := &Creature{
		GUID:            c.GUID(),
		Entry:           c.Entry(),
		UnmodifiedLevel: c.Level(),
		SelectedLevel:   c.Level(),
		Summoner:        c.Summoner(),
	}
	t.creatures[c.GUID()] = st
	return st
}

// Lookup returns the state for id if one exists.
func (t *Tracker) Lookup(id host.GUID) (*Creature, bool) {
	st, ok := t.creatures[id]
	return st, ok
}

// Forget drops every trace of id.
func (t *Tracker) Forget(id host.GUID) {
	t.RemoveCreature(id)
	delete(t.creatures, id)
}

// CreatureCount reports how many creatures have state.
func (t *Tracker) CreatureCount() int { return len(t.creatures) }

// Roster returns the rostered creature ids in insertion order.
func (t *Tracker) Roster() []host.GUID {
	return append([]host.GUID(nil), t.roster...)
}

// IsRelevant reports whether c is ever considered for scaling. The answer is
// computed once per creature lifetime and cached.
func (t *Tracker) IsRelevant(inst host.Instance, c host.Creature) bool {
	if inst == nil || !inst.IsDungeon() {
		return false
	}
	st := t.Creature(c)
	if st.Relevance == Unchecked {
		st.Relevance = classifyRelevance(inst, t.players, c, st.UnmodifiedLevel)
	}
	return st.Relevance == Relevant
}

// AddCreature assigns c its unmodified level and, when it qualifies, counts it
// toward the creature statistics. addToRoster adds it to the roster if absent;
// forceRecount counts a rostered creature again.
//
// Postcondition: Returns true when the rounded average level changed.
func (t *Tracker) AddCreature(ctx Context, c host.Creature, addToRoster, forceRecount bool) bool {
	if ctx.Instance == nil || !ctx.Instance.IsDungeon() {
		return false
	}
	st := t.Creature(c)
	traits := c.Traits()

	if traits.Has(host.TraitSummon) {
		t.assignSummonLevel(ctx, c, st)
		return false
	}
	if isSpecial(traits) {
		if ctx.Band.Contains(st.UnmodifiedLevel) {
			st.UnmodifiedLevel = ctx.TargetLevel
		} else {
			st.NeverLevelScale = true
		}
	}

	if isPlayerControlled(traits) || isSpecial(traits) || !ctx.Band.Contains(st.UnmodifiedLevel) {
		return false
	}

	alreadyRostered := st.InRoster
	if addToRoster && !alreadyRostered {
		t.roster = append(t.roster, st.GUID)
		st.InRoster = true
	}

	if alreadyRostered && !forceRecount {
		if !st.Active {
			st.Active = true
			t.stats.ActiveCount++
		}
		return false
	}

	if !t.countsTowardStats(ctx, c) {
		return false
	}
	return t.count(st)
}

func (t *Tracker) assignSummonLevel(ctx Context, c host.Creature, st *Creature) {
	s := c.Summoner()
	switch s.Kind {
	case host.SummonerCreature:
		summoner, ok := ctx.Instance.Creature(s.ID)
		if !ok {
			if t.stats.AvgLevel > 0 {
				st.UnmodifiedLevel = int(math.Round(t.stats.AvgLevel))
			}
			return
		}
		if c.Traits().Has(host.TraitTrigger) || summoner.Traits().Has(host.TraitTrigger) {
			if !ctx.Band.Contains(st.UnmodifiedLevel) {
				st.NeverLevelScale = true
			}
			return
		}
		st.UnmodifiedLevel = t.Creature(summoner).UnmodifiedLevel
	case host.SummonerPlayer:
		if t.IsRelevant(ctx.Instance, c) {
			return
		}
		owner := findPlayer(t.players, s.ID)
		if owner == nil {
			owner = findPlayer(ctx.Instance.Players(), s.ID)
		}
		if owner != nil {
			st.UnmodifiedLevel = min(owner.Level(), c.MaxLevel())
		}
	}
}

func (t *Tracker) countsTowardStats(ctx Context, c host.Creature) bool {
	boss := IsBoss(ctx.Instance, c)
	if c.NPCFlags()&utilityFlags != 0 && !boss {
		return false
	}
	for _, p := range t.players {
		if !p.IsGameMaster() && c.IsFriendlyTo(p) && !boss {
			return false
		}
	}
	if radius, ok := ctx.Distance.Get(); ok {
		pos := c.Position()
		for _, p := range t.players {
			if !p.IsGameMaster() && p.Position().Distance(pos) <= radius {
				return true
			}
		}
		return false
	}
	return true
}

func (t *Tracker) count(st *Creature) bool {
	level := st.UnmodifiedLevel
	st.Active = true
	if level > t.stats.HighestLevel || t.stats.HighestLevel == 0 {
		t.stats.HighestLevel = level
	}
	if level < t.stats.LowestLevel || t.stats.LowestLevel == 0 {
		t.stats.LowestLevel = level
	}
	n := float64(t.stats.ActiveCount)
	old := t.stats.AvgLevel
	t.stats.AvgLevel = (old*n + float64(level)) / (n + 1)
	t.stats.ActiveCount++
	return math.Round(old) != math.Round(t.stats.AvgLevel)
}

// RemoveCreature takes id off the roster.
//
// Postcondition: The active count never drops below zero.
func (t *Tracker) RemoveCreature(id host.GUID) bool {
	st, ok := t.creatures[id]
	if !ok || !st.InRoster {
		return false
	}
	for i, g := range t.roster {
		if g == id {
			t.roster = append(t.roster[:i], t.roster[i+1:]...)
			break
		}
	}
	st.InRoster = false
	if st.Active && t.stats.ActiveCount > 0 {
		t.stats.ActiveCount--
	}
	st.Active = false
	return true
}

// Recount resets the creature statistics and counts every rostered creature
// again. Rostered creatures the instance no longer knows are dropped.
//
// Postcondition: Returns true when the rounded average level changed.
func (t *Tracker) Recount(ctx Context) bool {
	before := math.Round(t.stats.AvgLevel)
	t.stats = Stats{}
	for _, st := range t.creatures {
		st.Active = false
	}
	for _, id := range t.Roster() {
		c, ok := ctx.Instance.Creature(id)
		if !ok {
			t.Forget(id)
			continue
		}
		t.AddCreature(ctx, c, false, true)
	}
	return math.Round(t.stats.AvgLevel) != before
}

// AddPlayer adds p to the player roster. Game masters are skipped unless
// includeGMs is set.
//
// Postcondition: Returns true when p was added.
func (t *Tracker) AddPlayer(p host.Player, includeGMs bool) bool {
	if p == nil || (p.IsGameMaster() && !includeGMs) {
		return false
	}
	if findPlayer(t.players, p.GUID()) != nil {
		return false
	}
	t.players = append(t.players, p)
	return true
}

// RemovePlayer removes the player with id.
func (t *Tracker) RemovePlayer(id host.GUID) bool {
	for i, p := range t.players {
		if p.GUID() == id {
			t.players = append(t.players[:i], t.players[i+1:]...)
			return true
		}
	}
	return false
}

// HasPlayer reports whether the player with id is on the roster.
func (t *Tracker) HasPlayer(id host.GUID) bool {
	return findPlayer(t.players, id) != nil
}

// ClearPlayers empties the player roster.
func (t *Tracker) ClearPlayers() {
	t.players = nil
}

// Players returns the player roster in join order.
func (t *Tracker) Players() []host.Player {
	return append([]host.Player(nil), t.players...)
}
