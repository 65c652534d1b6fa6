package types

import (
	"github.com/moonvale/werewolf-backend/internal/engine"
)

// ClientMessage is one inbound gateway command. Type selects the operation;
// the remaining fields are read per type.
type ClientMessage struct {
	Type     string `json:"type"` // "Start" | "NightAction" | "Vote" | "HunterShot" | "Chat" | "Kick" | "Cancel"
	Action   string `json:"action,omitempty"`
	TargetID string `json:"target_id,omitempty"`
	Channel  string `json:"channel,omitempty"`
	Text     string `json:"text,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ServerMessage is one outbound gateway delivery.
type ServerMessage struct {
	Type     string           `json:"type"` // "Event" | "Snapshot" | "Error"
	Event    *engine.Event    `json:"event,omitempty"`
	Snapshot *engine.Snapshot `json:"snapshot,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// ToCommand maps a wire message to an engine command. The player id is
// stamped by the session from the authenticated connection, never trusted
// from the payload.
func ToCommand(m ClientMessage) (engine.Command, bool) {
	switch m.Type {
	case "Start":
		return engine.Command{Type: engine.CmdStart}, true
	case "NightAction":
		a, ok := parseAction(m.Action)
		if !ok {
			return engine.Command{}, false
		}
		return engine.Command{Type: engine.CmdNightAction, Action: a, TargetID: m.TargetID}, true
	case "Vote":
		return engine.Command{Type: engine.CmdVote, TargetID: m.TargetID}, true
	case "HunterShot":
		return engine.Command{Type: engine.CmdHunterShot, TargetID: m.TargetID}, true
	case "Chat":
		return engine.Command{Type: engine.CmdChat, Channel: engine.ChatChannel(m.Channel), Text: m.Text}, true
	case "Kick":
		return engine.Command{Type: engine.CmdKick, TargetID: m.TargetID}, true
	case "Cancel":
		return engine.Command{Type: engine.CmdCancel, Reason: m.Reason}, true
	default:
		return engine.Command{}, false
	}
}

func parseAction(s string) (engine.ActionType, bool) {
	switch engine.ActionType(s) {
	case engine.ActionEliminate, engine.ActionHeal, engine.ActionInvestigate,
		engine.ActionPoison, engine.ActionAntidote:
		return engine.ActionType(s), true
	default:
		return "", false
	}
}
