package engine

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/moonvale/werewolf-backend/internal/role"
)

type CommandType string

const (
	CmdJoin         CommandType = "Join"
	CmdLeave        CommandType = "Leave"
	CmdKick         CommandType = "Kick"
	CmdStart        CommandType = "Start"
	CmdNightAction  CommandType = "NightAction"
	CmdVote         CommandType = "Vote"
	CmdHunterShot   CommandType = "HunterShot"
	CmdAdvancePhase CommandType = "AdvancePhase"
	CmdForfeit      CommandType = "Forfeit"
	CmdCancel       CommandType = "Cancel"
	CmdChat         CommandType = "Chat"
)

type Command struct {
	Type     CommandType
	PlayerID string
	Name     string
	Action   ActionType
	TargetID string
	Text     string
	Channel  ChatChannel
	Epoch    uint64 // timer-armed epoch for CmdAdvancePhase; 0 = unconditional
	Reason   string
}

// Apply runs one command against the state. Every guard for the command is
// checked before any field is touched, so a returned error means the state is
// unchanged. rng drives role assignment and is injected so tests can seed it.
func Apply(s *State, cmd Command, rng *rand.Rand) ([]Event, error) {
	if s.Terminal() {
		// A finished game stays viewable until the directory reaps it: known
		// players may re-attach for the final snapshot. New identities and
		// cancelled sessions are refused.
		switch cmd.Type {
		case CmdJoin:
			if p, ok := s.Players[cmd.PlayerID]; ok && s.Status == StatusFinished {
				p.Connected = true
				return []Event{{Type: EvtPlayerJoined, Player: p.ID, Name: p.Name, Reason: "reconnected"}}, nil
			}
			return nil, ErrCodeExpired
		case CmdLeave:
			if p, ok := s.Players[cmd.PlayerID]; ok && s.Status == StatusFinished {
				p.Connected = false
				return []Event{{Type: EvtPlayerLeft, Player: p.ID, Name: p.Name, Reason: "disconnected"}}, nil
			}
			return nil, ErrCodeExpired
		}
		return nil, ErrInvalidPhase
	}

	switch cmd.Type {
	case CmdJoin:
		return applyJoin(s, cmd)
	case CmdLeave:
		return applyLeave(s, cmd)
	case CmdKick:
		return applyKick(s, cmd)
	case CmdStart:
		return applyStart(s, cmd, rng)
	case CmdNightAction:
		return applyNightAction(s, cmd)
	case CmdVote:
		return applyVote(s, cmd)
	case CmdHunterShot:
		return applyHunterShot(s, cmd)
	case CmdAdvancePhase:
		return applyAdvancePhase(s, cmd)
	case CmdForfeit:
		return applyForfeit(s, cmd)
	case CmdCancel:
		// PlayerID is empty for administrative cancellation (idle sweep).
		if cmd.PlayerID != "" && cmd.PlayerID != s.Creator {
			return nil, ErrNotCreator
		}
		s.Status = StatusCancelled
		return []Event{{Type: EvtGameCancelled, Reason: cmd.Reason}}, nil
	case CmdChat:
		return applyChat(s, cmd)
	default:
		return nil, ErrUnsupportedCommand
	}
}

func applyJoin(s *State, cmd Command) ([]Event, error) {
	if p, ok := s.Players[cmd.PlayerID]; ok {
		// Reconnection: same identity, same role, any buffered action kept.
		p.Connected = true
		return []Event{{Type: EvtPlayerJoined, Player: p.ID, Name: p.Name, Reason: "reconnected"}}, nil
	}
	if s.Status != StatusWaiting {
		return nil, ErrAlreadyStarted
	}
	if len(s.Players) >= s.Config.MaxPlayers {
		return nil, ErrSessionFull
	}
	s.Players[cmd.PlayerID] = &Player{
		ID:        cmd.PlayerID,
		Name:      cmd.Name,
		Connected: true,
		Alive:     true,
	}
	s.Order = append(s.Order, cmd.PlayerID)
	return []Event{{Type: EvtPlayerJoined, Player: cmd.PlayerID, Name: cmd.Name}}, nil
}

func applyLeave(s *State, cmd Command) ([]Event, error) {
	p, ok := s.Players[cmd.PlayerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if s.Status == StatusWaiting {
		s.dropPlayer(cmd.PlayerID)
		events := []Event{{Type: EvtPlayerLeft, Player: cmd.PlayerID, Name: p.Name}}
		if cmd.PlayerID == s.Creator {
			// The lobby must always have someone who can start it. Hand the
			// creator role to the longest-waiting player, or fold the lobby
			// when nobody is left.
			if len(s.Order) == 0 {
				s.Status = StatusCancelled
				return append(events, Event{Type: EvtGameCancelled, Reason: "creator left"}), nil
			}
			s.Creator = s.Order[0]
			events = append(events, s.systemChat(fmt.Sprintf("%s is now the host.", s.Players[s.Creator].Name)))
		}
		return events, nil
	}
	// Mid-game a leave is a disconnect, never an elimination.
	p.Connected = false
	return []Event{{Type: EvtPlayerLeft, Player: cmd.PlayerID, Name: p.Name, Reason: "disconnected"}}, nil
}

func applyKick(s *State, cmd Command) ([]Event, error) {
	if cmd.PlayerID != s.Creator {
		return nil, ErrNotCreator
	}
	if s.Status != StatusWaiting {
		return nil, ErrInvalidPhase
	}
	p, ok := s.Players[cmd.TargetID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	s.dropPlayer(cmd.TargetID)
	return []Event{{Type: EvtPlayerLeft, Player: cmd.TargetID, Name: p.Name, Reason: "kicked"}}, nil
}

func (s *State) dropPlayer(id string) {
	delete(s.Players, id)
	for i, pid := range s.Order {
		if pid == id {
			s.Order = append(s.Order[:i], s.Order[i+1:]...)
			break
		}
	}
}

func applyStart(s *State, cmd Command, rng *rand.Rand) ([]Event, error) {
	if cmd.PlayerID != s.Creator {
		return nil, ErrNotCreator
	}
	if s.Status != StatusWaiting {
		return nil, ErrAlreadyStarted
	}
	if err := s.ValidateStart(); err != nil {
		return nil, err
	}

	deck := buildDeck(s.Config.Roles)
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	events := []Event{{Type: EvtGameStarted}}
	for i, pid := range s.Order {
		s.Players[pid].Role = deck[i]
		events = append(events, Event{Type: EvtRoleAssigned, To: pid, Player: pid, Role: deck[i], Team: role.TeamOf(deck[i])})
	}
	// Werewolves learn their packmates.
	for _, pid := range s.Order {
		if role.TeamOf(s.Players[pid].Role) != role.TeamWerewolves {
			continue
		}
		for _, other := range s.Order {
			if other != pid && role.TeamOf(s.Players[other].Role) == role.TeamWerewolves {
				events = append(events, Event{Type: EvtReveal, To: pid, Player: other, Name: s.Players[other].Name, Team: role.TeamWerewolves})
			}
		}
	}

	s.Status = StatusActive
	s.Day = 1
	events = append(events, s.enterNight()...)
	return events, nil
}

// buildDeck flattens the configured distribution into an ordered slice. The
// role order is fixed so shuffles are reproducible under a seeded rng.
func buildDeck(dist map[role.ID]int) []role.ID {
	order := []role.ID{role.Werewolf, role.Seer, role.Doctor, role.Witch, role.Hunter, role.Villager}
	var deck []role.ID
	for _, id := range order {
		for i := 0; i < dist[id]; i++ {
			deck = append(deck, id)
		}
	}
	return deck
}

// Duplicate-submission policy: a second night action from the same player in
// the same night is rejected with ErrDuplicateSubmission, not overwritten.
func applyNightAction(s *State, cmd Command) ([]Event, error) {
	if s.Status != StatusActive || s.Phase != PhaseNight {
		return nil, ErrInvalidPhase
	}
	p, ok := s.Players[cmd.PlayerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if !p.Alive {
		return nil, ErrPlayerNotAlive
	}
	cap, ok := cmd.Action.capability()
	if !ok || cmd.Action == ActionVote || cmd.Action == ActionShoot {
		return nil, ErrCapabilityMismatch
	}
	if !role.HasCapability(p.Role, cap) {
		return nil, ErrCapabilityMismatch
	}
	if s.spent(p.ID, cmd.Action) {
		return nil, ErrCapabilityMismatch
	}
	if p.Acted {
		return nil, ErrDuplicateSubmission
	}
	if cmd.TargetID != "" {
		t, ok := s.Players[cmd.TargetID]
		if !ok || !t.Alive {
			return nil, ErrInvalidTarget
		}
	}

	p.Acted = true
	s.night[p.ID] = NightAction{Actor: p.ID, Type: cmd.Action, Target: cmd.TargetID}
	s.Actions = append(s.Actions, GameAction{Actor: p.ID, Type: cmd.Action, Target: cmd.TargetID, Phase: PhaseNight, Day: s.Day})

	events := []Event{{Type: EvtNightAck, To: p.ID, Player: p.ID}}
	if s.nightComplete() {
		events = append(events, s.resolveNightPhase()...)
	}
	return events, nil
}

// spent reports whether a single-use ability has already been consumed.
func (s *State) spent(pid string, a ActionType) bool {
	switch a {
	case ActionHeal:
		return s.Config.SingleUseHeal && s.healSpent[pid]
	case ActionPoison:
		return s.poisonSpent[pid]
	case ActionAntidote:
		return s.antidoteSpent[pid]
	default:
		return false
	}
}

// nightComplete reports whether every living player who still has a usable
// night action has submitted one.
func (s *State) nightComplete() bool {
	for _, p := range s.Players {
		if !p.Alive || p.Acted {
			continue
		}
		for _, c := range role.CapabilitiesOf(p.Role) {
			switch c {
			case role.CapEliminate, role.CapInvestigate:
				return false
			case role.CapHeal:
				if !s.spent(p.ID, ActionHeal) {
					return false
				}
			case role.CapPoison:
				if !s.spent(p.ID, ActionPoison) {
					return false
				}
			case role.CapAntidote:
				if !s.spent(p.ID, ActionAntidote) {
					return false
				}
			}
		}
	}
	return true
}

// Vote overwrites are allowed: last submission wins within the same day.
func applyVote(s *State, cmd Command) ([]Event, error) {
	if s.Status != StatusActive || s.Phase != PhaseVoting {
		return nil, ErrInvalidPhase
	}
	p, ok := s.Players[cmd.PlayerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if !p.Alive {
		return nil, ErrPlayerNotAlive
	}
	t, ok := s.Players[cmd.TargetID]
	if !ok || !t.Alive {
		return nil, ErrInvalidTarget
	}

	p.Vote = cmd.TargetID
	s.Actions = append(s.Actions, GameAction{Actor: p.ID, Type: ActionVote, Target: cmd.TargetID, Phase: PhaseVoting, Day: s.Day})

	events := []Event{s.voteUpdateEvent()}
	if s.allVotesIn() {
		events = append(events, s.closeVoting()...)
	}
	return events, nil
}

func (s *State) allVotesIn() bool {
	for _, p := range s.Players {
		if p.Alive && p.Vote == "" {
			return false
		}
	}
	return true
}

func (s *State) voteUpdateEvent() Event {
	counts := make(map[string]int)
	var ballots map[string]string
	if s.Config.PublicVoting {
		ballots = make(map[string]string)
	}
	for _, p := range s.Players {
		if !p.Alive || p.Vote == "" {
			continue
		}
		counts[p.Vote]++
		if ballots != nil {
			ballots[p.ID] = p.Vote
		}
	}
	return Event{Type: EvtVoteUpdate, Phase: s.Phase, Day: s.Day, Counts: counts, Ballots: ballots}
}

func applyHunterShot(s *State, cmd Command) ([]Event, error) {
	if s.Status != StatusActive || s.Phase != PhaseResults || !s.HunterPending() {
		return nil, ErrInvalidPhase
	}
	if cmd.PlayerID != s.pendingHunters[0] {
		return nil, ErrCapabilityMismatch
	}
	t, ok := s.Players[cmd.TargetID]
	if !ok || !t.Alive || cmd.TargetID == cmd.PlayerID {
		return nil, ErrInvalidTarget
	}

	s.pendingHunters = s.pendingHunters[1:]
	s.Actions = append(s.Actions, GameAction{Actor: cmd.PlayerID, Type: ActionShoot, Target: cmd.TargetID, Phase: PhaseResults, Day: s.Day})
	events := s.applyDeath(cmd.TargetID)
	if s.HunterPending() {
		next := s.pendingHunters[0]
		return append(events, Event{Type: EvtHunterPrompt, To: next, Player: next}), nil
	}
	return append(events, s.leaveResults()...), nil
}

func applyAdvancePhase(s *State, cmd Command) ([]Event, error) {
	if s.Status != StatusActive {
		return nil, ErrInvalidPhase
	}
	if cmd.Epoch != 0 && cmd.Epoch != s.Epoch {
		// Stale timer: the phase it was armed for already advanced.
		return nil, ErrInvalidPhase
	}
	switch s.Phase {
	case PhaseNight:
		return s.resolveNightPhase(), nil
	case PhaseDay:
		return s.enterVoting(), nil
	case PhaseVoting:
		return s.closeVoting(), nil
	case PhaseResults:
		// Hunter shot window expired; the shot is forfeited.
		s.pendingHunters = nil
		return s.leaveResults(), nil
	default:
		return nil, ErrInvalidPhase
	}
}

// applyForfeit eliminates a player who stayed disconnected past the
// configured forfeit window. Only issued by the session's policy sweep.
func applyForfeit(s *State, cmd Command) ([]Event, error) {
	if s.Status != StatusActive {
		return nil, ErrInvalidPhase
	}
	p, ok := s.Players[cmd.PlayerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if !p.Alive || p.Connected {
		return nil, ErrPlayerNotAlive
	}
	events := s.applyDeath(cmd.PlayerID)
	if fin, ok := s.maybeFinish(); ok {
		events = append(events, fin...)
	}
	return events, nil
}

func applyChat(s *State, cmd Command) ([]Event, error) {
	p, ok := s.Players[cmd.PlayerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	switch cmd.Channel {
	case ChannelPublic:
		if s.Status == StatusActive && !p.Alive {
			return nil, ErrPlayerNotAlive
		}
	case ChannelWerewolf:
		if role.TeamOf(p.Role) != role.TeamWerewolves {
			return nil, ErrCapabilityMismatch
		}
		if !p.Alive {
			return nil, ErrPlayerNotAlive
		}
	case ChannelDead:
		if p.Alive {
			return nil, ErrCapabilityMismatch
		}
	default:
		return nil, ErrInvalidTarget
	}
	msg := &ChatMessage{
		ID:      uuid.NewString(),
		Sender:  p.ID,
		Channel: cmd.Channel,
		Text:    cmd.Text,
		Phase:   s.Phase,
		Day:     s.Day,
	}
	return []Event{{Type: EvtChat, Chat: msg}}, nil
}
