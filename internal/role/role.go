package role

type ID string

const (
	Villager ID = "villager"
	Werewolf ID = "werewolf"
	Seer     ID = "seer"
	Doctor   ID = "doctor"
	Hunter   ID = "hunter"
	Witch    ID = "witch"
)

type Team string

const (
	TeamVillagers  Team = "villagers"
	TeamWerewolves Team = "werewolves"
	TeamNeutral    Team = "neutral"
)

type Capability string

const (
	CapVote        Capability = "vote"
	CapEliminate   Capability = "eliminate"
	CapHeal        Capability = "heal"
	CapInvestigate Capability = "investigate"
	CapShoot       Capability = "shoot"
	CapPoison      Capability = "poison"
	CapAntidote    Capability = "antidote"
)

// RosterView is the minimal alive-roster view a neutral win condition needs.
// Counts only living players.
type RosterView struct {
	Alive map[ID]int
}

// Entry is one immutable catalog record. WinCondition is nil for roles that
// win with their team; neutral roles declare their own predicate here rather
// than having it hard-coded in the evaluator.
type Entry struct {
	ID           ID
	Team         Team
	Capabilities []Capability
	WinCondition func(RosterView) bool
}

var catalog = map[ID]Entry{
	Villager: {ID: Villager, Team: TeamVillagers, Capabilities: []Capability{CapVote}},
	Werewolf: {ID: Werewolf, Team: TeamWerewolves, Capabilities: []Capability{CapVote, CapEliminate}},
	Seer:     {ID: Seer, Team: TeamVillagers, Capabilities: []Capability{CapVote, CapInvestigate}},
	Doctor:   {ID: Doctor, Team: TeamVillagers, Capabilities: []Capability{CapVote, CapHeal}},
	Hunter:   {ID: Hunter, Team: TeamVillagers, Capabilities: []Capability{CapVote, CapShoot}},
	Witch:    {ID: Witch, Team: TeamVillagers, Capabilities: []Capability{CapVote, CapPoison, CapAntidote}},
}

func Lookup(id ID) (Entry, bool) {
	e, ok := catalog[id]
	return e, ok
}

func TeamOf(id ID) Team {
	return catalog[id].Team
}

func CapabilitiesOf(id ID) []Capability {
	e := catalog[id]
	out := make([]Capability, len(e.Capabilities))
	copy(out, e.Capabilities)
	return out
}

func HasCapability(id ID, c Capability) bool {
	for _, cap := range catalog[id].Capabilities {
		if cap == c {
			return true
		}
	}
	return false
}

// HasNightAction reports whether the role submits during the Night phase.
// Hunter's shoot is a passive, not a night submission.
func HasNightAction(id ID) bool {
	for _, c := range catalog[id].Capabilities {
		switch c {
		case CapEliminate, CapHeal, CapInvestigate, CapPoison, CapAntidote:
			return true
		}
	}
	return false
}

// Known reports whether id names a catalog role.
func Known(id ID) bool {
	_, ok := catalog[id]
	return ok
}

// NeutralEntries returns catalog entries carrying their own win condition.
func NeutralEntries() []Entry {
	var out []Entry
	for _, e := range catalog {
		if e.WinCondition != nil {
			out = append(out, e)
		}
	}
	return out
}
