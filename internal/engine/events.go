package engine

import "github.com/moonvale/werewolf-backend/internal/role"

type EventType string

const (
	EvtPlayerJoined  EventType = "PlayerJoined"
	EvtPlayerLeft    EventType = "PlayerLeft"
	EvtGameStarted   EventType = "GameStarted"
	EvtRoleAssigned  EventType = "RoleAssigned" // private
	EvtPhaseChanged  EventType = "PhaseChanged"
	EvtPlayerDied    EventType = "PlayerDied"
	EvtNightAck      EventType = "NightAck" // private
	EvtReveal        EventType = "Reveal"   // private: seer result
	EvtHunterPrompt  EventType = "HunterPrompt"
	EvtVoteUpdate    EventType = "VoteUpdate"
	EvtGameFinished  EventType = "GameFinished"
	EvtGameCancelled EventType = "GameCancelled"
	EvtChat          EventType = "Chat"
)

// Event is a single engine emission. To == "" means session-scoped; otherwise
// it is delivered only to the named player. Chat events additionally pass
// through the session's channel-visibility filter.
type Event struct {
	Type    EventType         `json:"type"`
	To      string            `json:"-"`
	Player  string            `json:"player,omitempty"` // subject player id
	Name    string            `json:"name,omitempty"`
	Role    role.ID           `json:"role,omitempty"` // assigned, or revealed on death
	Team    role.Team         `json:"team,omitempty"` // investigation result or winning team
	Phase   Phase             `json:"phase,omitempty"`
	Day     int               `json:"day,omitempty"`
	Counts  map[string]int    `json:"counts,omitempty"`  // vote counts by target
	Ballots map[string]string `json:"ballots,omitempty"` // voter -> target, public voting only
	Reason  string            `json:"reason,omitempty"`
	Chat    *ChatMessage      `json:"chat,omitempty"`
}
