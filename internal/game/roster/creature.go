package roster

import (
	"fmt"

	"github.com/cory-johannsen/autobalance/internal/game/host"
)

// Relevance is the cached answer to whether a creature is ever scaled.
type Relevance int

const (
	Unchecked Relevance = iota
	Relevant
	Irrelevant
)

// String returns the relevance name.
func (r Relevance) String() string {
	switch r {
	case Unchecked:
		return "unchecked"
	case Relevant:
		return "relevant"
	case Irrelevant:
		return "irrelevant"
	}
	return fmt.Sprintf("relevance(%d)", int(r))
}

// Creature is the scaling state kept for one live creature.
type Creature struct {
	GUID            host.GUID
	Entry           uint32
	UnmodifiedLevel int
	SelectedLevel   int
	InRoster        bool
	Active          bool
	NeverLevelScale bool
	Relevance       Relevance
	Summoner        host.Summoner
}

// utilityFlags mark service NPCs excluded from roster statistics.
const utilityFlags = host.NPCVendor | host.NPCGossip | host.NPCQuestGiver | host.NPCTrainer |
	host.NPCProfessionTrainer | host.NPCRepairer | host.NPCImmuneToPC | host.NPCNotSelectable

// IsBoss reports whether c is a dungeon or world boss, or was summoned by one.
// A summoner that no longer exists is not a boss.
func IsBoss(inst host.Instance, c host.Creature) bool {
	if isBossTrait(c.Traits()) {
		return true
	}
	s := c.Summoner()
	if !c.Traits().Has(host.TraitSummon) || s.Kind != host.SummonerCreature || inst == nil {
		return false
	}
	summoner, ok := inst.Creature(s.ID)
	return ok && isBossTrait(summoner.Traits())
}

func isBossTrait(t host.Trait) bool {
	return t.Has(host.TraitDungeonBoss) || t.Has(host.TraitWorldBoss)
}

func isPlayerControlled(t host.Trait) bool {
	return (t.Has(host.TraitPet) || t.Has(host.TraitHunterPet) || t.Has(host.TraitSummon)) &&
		t.Has(host.TraitPlayerControlled)
}

func isSpecial(t host.Trait) bool {
	return t.Has(host.TraitCritter) || t.Has(host.TraitTotem) || t.Has(host.TraitTrigger)
}

// classifyRelevance computes relevance without consulting the cache. players
// is the tracked player roster.
func classifyRelevance(inst host.Instance, players []host.Player, c host.Creature, level int) Relevance {
	if inst == nil || !inst.IsDungeon() {
		return Irrelevant
	}
	traits := c.Traits()
	if isPlayerControlled(traits) {
		return Irrelevant
	}

	if s := c.Summoner(); traits.Has(host.TraitSummon) && s.Kind == host.SummonerPlayer {
		summoner := findPlayer(players, s.ID)
		if summoner == nil {
			summoner = findPlayer(inst.Players(), s.ID)
		}
		hostile := false
		for _, p := range players {
			if !validOpponent(p, summoner) {
				continue
			}
			if traits.Has(host.TraitGuardian) && !p.IsHostileTo(summoner) {
				continue
			}
			if traits.Has(host.TraitTotem) && !p.IsHostileTo(summoner) {
				continue
			}
			if c.IsAttackableBy(p) {
				hostile = true
				break
			}
		}
		if !hostile {
			return Irrelevant
		}
	}

	if traits.Has(host.TraitCritter) && level <= 5 && c.MaxHealth() < 100 {
		return Irrelevant
	}
	return Relevant
}

// validOpponent reports whether p can be threatened by a player's summon.
func validOpponent(p, summoner host.Player) bool {
	if p.IsGameMaster() || p.IsCharmed() || p.IsHostileToPlayers() || !p.IsAlive() {
		return false
	}
	return summoner == nil || !p.IsHostileTo(summoner)
}

func findPlayer(players []host.Player, id host.GUID) host.Player {
	for _, p := range players {
		if p.GUID() == id {
			return p
		}
	}
	return nil
}
