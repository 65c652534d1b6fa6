package engine

import (
	"sort"

	"github.com/moonvale/werewolf-backend/internal/role"
)

// NightAction is one buffered submission, resolver input only.
type NightAction struct {
	Actor  string
	Type   ActionType
	Target string
}

type Reveal struct {
	Investigator string
	Target       string
	Team         role.Team
}

// Resolution is the outcome of one night. Deaths is sorted for determinism.
// A tied werewolf vote is reported via WolfTie rather than silently producing
// an empty death set for no stated reason.
type Resolution struct {
	Deaths           []string
	WolfTie          bool
	Reveals          []Reveal
	HealsConsumed    []string
	PoisonConsumed   []string
	AntidoteConsumed []string
	HunterDeaths     []string
}

// ResolveNight computes the outcome of one night from the full buffered
// action set. It is a pure function: callers guarantee only living players
// appear as actors, and it never mutates its inputs.
//
// Priority order: heals build the protected set; the werewolf elimination is
// the majority target among werewolf submissions (an exact tie kills nobody);
// poison adds death marks; antidote lifts an existing mark and is consumed
// regardless; protection removes any remaining mark on its target and is
// consumed regardless of whether an attack landed there; investigations are
// independent of all of the above.
func ResolveNight(actions []NightAction, alive map[string]bool, roles map[string]role.ID) Resolution {
	var res Resolution

	protected := make(map[string]bool)
	for _, a := range actions {
		if a.Type == ActionHeal && a.Target != "" {
			protected[a.Target] = true
			res.HealsConsumed = append(res.HealsConsumed, a.Actor)
		}
	}

	marked := make(map[string]bool)

	wolfVotes := make(map[string]int)
	for _, a := range actions {
		if a.Type != ActionEliminate || role.TeamOf(roles[a.Actor]) != role.TeamWerewolves {
			continue
		}
		if a.Target != "" {
			wolfVotes[a.Target]++
		}
	}
	if target, tie := majorityTarget(wolfVotes); tie {
		res.WolfTie = true
	} else if target != "" {
		marked[target] = true
	}

	for _, a := range actions {
		if a.Type == ActionPoison && a.Target != "" {
			marked[a.Target] = true
			res.PoisonConsumed = append(res.PoisonConsumed, a.Actor)
		}
	}
	for _, a := range actions {
		if a.Type != ActionAntidote {
			continue
		}
		res.AntidoteConsumed = append(res.AntidoteConsumed, a.Actor)
		if a.Target != "" && marked[a.Target] {
			delete(marked, a.Target)
		}
	}

	for id := range protected {
		delete(marked, id)
	}

	for id := range marked {
		if alive[id] {
			res.Deaths = append(res.Deaths, id)
		}
	}
	sort.Strings(res.Deaths)

	for _, a := range actions {
		if a.Type != ActionInvestigate || a.Target == "" {
			continue
		}
		res.Reveals = append(res.Reveals, Reveal{
			Investigator: a.Actor,
			Target:       a.Target,
			Team:         role.TeamOf(roles[a.Target]),
		})
	}

	for _, id := range res.Deaths {
		if roles[id] == role.Hunter {
			res.HunterDeaths = append(res.HunterDeaths, id)
		}
	}

	return res
}

// majorityTarget picks the target with strictly more werewolf votes than any
// other. An exact tie at the top returns tie=true; an empty vote set returns
// ("", false).
func majorityTarget(votes map[string]int) (string, bool) {
	best, bestCount, tied := "", 0, false
	for target, n := range votes {
		switch {
		case n > bestCount:
			best, bestCount, tied = target, n, false
		case n == bestCount && bestCount > 0:
			tied = true
		}
	}
	if tied {
		return "", true
	}
	return best, false
}
