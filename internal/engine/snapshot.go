package engine

import "github.com/moonvale/werewolf-backend/internal/role"

type PlayerView struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Alive     bool    `json:"alive"`
	Connected bool    `json:"connected"`
	Role      role.ID `json:"role,omitempty"`
}

type Snapshot struct {
	SessionID string       `json:"session_id"`
	Code      string       `json:"code"`
	Status    Status       `json:"status"`
	Phase     Phase        `json:"phase,omitempty"`
	Day       int          `json:"day"`
	Creator   string       `json:"creator"`
	Players   []PlayerView `json:"players"`
	Winner    role.Team    `json:"winner,omitempty"`
}

// SnapshotFor renders the state as the named viewer may see it. Roles are
// redacted: you always see your own; werewolves see packmates; everyone sees
// the roles of the dead when the config reveals them, and the full roster
// once the game is finished.
func (s *State) SnapshotFor(viewer string) Snapshot {
	snap := Snapshot{
		SessionID: s.ID,
		Code:      s.Code,
		Status:    s.Status,
		Day:       s.Day,
		Creator:   s.Creator,
		Winner:    s.Winner,
	}
	if s.Status == StatusActive {
		snap.Phase = s.Phase
	}
	viewerIsWolf := false
	if v, ok := s.Players[viewer]; ok && role.TeamOf(v.Role) == role.TeamWerewolves {
		viewerIsWolf = true
	}
	for _, id := range s.Order {
		p := s.Players[id]
		pv := PlayerView{ID: p.ID, Name: p.Name, Alive: p.Alive, Connected: p.Connected}
		switch {
		case id == viewer:
			pv.Role = p.Role
		case s.Status == StatusFinished:
			pv.Role = p.Role
		case !p.Alive && s.Config.RevealRoleOnDeath:
			pv.Role = p.Role
		case viewerIsWolf && role.TeamOf(p.Role) == role.TeamWerewolves:
			pv.Role = p.Role
		}
		snap.Players = append(snap.Players, pv)
	}
	return snap
}
