package engine

import "github.com/moonvale/werewolf-backend/internal/role"

// Outcome of a win evaluation. Decided=false means the game is ongoing.
type Outcome struct {
	Decided bool
	Winner  role.Team
}

// EvaluateWin is pure and idempotent over an unchanged roster. Neutral roles
// that declare their own win condition in the catalog are checked first, then
// the two majority rules in order: werewolves win when no living non-werewolf
// remains (an all-dead roster therefore goes to the werewolves), villagers win
// when no living werewolf remains.
func EvaluateWin(players map[string]*Player) Outcome {
	aliveByRole := make(map[role.ID]int)
	wolves, others := 0, 0
	for _, p := range players {
		if !p.Alive {
			continue
		}
		aliveByRole[p.Role]++
		if role.TeamOf(p.Role) == role.TeamWerewolves {
			wolves++
		} else {
			others++
		}
	}

	view := role.RosterView{Alive: aliveByRole}
	for _, e := range role.NeutralEntries() {
		if e.WinCondition(view) {
			return Outcome{Decided: true, Winner: e.Team}
		}
	}

	if others == 0 {
		return Outcome{Decided: true, Winner: role.TeamWerewolves}
	}
	if wolves == 0 {
		return Outcome{Decided: true, Winner: role.TeamVillagers}
	}
	return Outcome{}
}
