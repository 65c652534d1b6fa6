package engine

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/moonvale/werewolf-backend/internal/role"
)

func (s *State) enterNight() []Event {
	if s.Phase == PhaseVoting || s.Phase == PhaseResults {
		s.Day++
	}
	s.Phase = PhaseNight
	s.Epoch++
	s.night = make(map[string]NightAction)
	for _, p := range s.Players {
		p.Acted = false
	}
	return []Event{
		{Type: EvtPhaseChanged, Phase: PhaseNight, Day: s.Day},
		s.systemChat(fmt.Sprintf("Night %d falls over the village.", s.Day)),
	}
}

func (s *State) enterDay(deaths []string) []Event {
	s.Phase = PhaseDay
	s.Epoch++
	for _, p := range s.Players {
		p.Vote = ""
	}
	events := []Event{{Type: EvtPhaseChanged, Phase: PhaseDay, Day: s.Day}}
	if len(deaths) == 0 {
		events = append(events, s.systemChat("The sun rises. Everyone survived the night."))
	} else {
		for _, id := range deaths {
			events = append(events, s.systemChat(fmt.Sprintf("The sun rises. %s did not survive the night.", s.Players[id].Name)))
		}
	}
	return events
}

func (s *State) enterVoting() []Event {
	s.Phase = PhaseVoting
	s.Epoch++
	return []Event{
		{Type: EvtPhaseChanged, Phase: PhaseVoting, Day: s.Day},
		s.systemChat("The village gathers to vote."),
	}
}

// resolveNightPhase runs the Action Resolver over the buffered night actions,
// applies deaths, and either suspends for a hunter shot or moves to Day.
func (s *State) resolveNightPhase() []Event {
	alive := make(map[string]bool, len(s.Players))
	roles := make(map[string]role.ID, len(s.Players))
	for id, p := range s.Players {
		alive[id] = p.Alive
		roles[id] = p.Role
	}
	actions := make([]NightAction, 0, len(s.night))
	for _, id := range s.Order {
		if a, ok := s.night[id]; ok {
			actions = append(actions, a)
		}
	}
	res := ResolveNight(actions, alive, roles)

	for _, id := range res.HealsConsumed {
		s.healSpent[id] = true
	}
	for _, id := range res.PoisonConsumed {
		s.poisonSpent[id] = true
	}
	for _, id := range res.AntidoteConsumed {
		s.antidoteSpent[id] = true
	}

	var events []Event
	for _, r := range res.Reveals {
		events = append(events, Event{Type: EvtReveal, To: r.Investigator, Player: r.Target, Name: s.Players[r.Target].Name, Team: r.Team, Day: s.Day})
	}
	var deaths []string
	for _, id := range res.Deaths {
		deaths = append(deaths, id)
		events = append(events, s.applyDeath(id)...)
	}

	if len(res.HunterDeaths) > 0 {
		s.pendingHunters = append(s.pendingHunters, res.HunterDeaths...)
		s.Phase = PhaseResults
		s.resume = PhaseDay
		s.resumeDeaths = deaths
		s.Epoch++
		hunter := s.pendingHunters[0]
		return append(events, Event{Type: EvtHunterPrompt, To: hunter, Player: hunter, Day: s.Day})
	}

	if fin, ok := s.maybeFinish(); ok {
		return append(events, fin...)
	}
	return append(events, s.enterDay(deaths)...)
}

// closeVoting tallies the day's votes, applies the elimination, and runs the
// Win Evaluator. A tied tally is an explicit no-elimination.
func (s *State) closeVoting() []Event {
	votes := make(map[string]string)
	for id, p := range s.Players {
		if p.Alive && p.Vote != "" {
			votes[id] = p.Vote
		}
	}
	tally := TallyVotes(votes)

	events := []Event{s.voteUpdateEvent()}
	if tally.NoElimination {
		events = append(events, s.systemChat("The vote is tied. Nobody is eliminated."))
	} else {
		p := s.Players[tally.Eliminated]
		events = append(events, s.systemChat(fmt.Sprintf("The village has spoken. %s is eliminated.", p.Name)))
		events = append(events, s.applyDeath(tally.Eliminated)...)
		if p.Role == role.Hunter {
			s.pendingHunters = append(s.pendingHunters, tally.Eliminated)
			s.Phase = PhaseResults
			s.resume = PhaseNight
			s.Epoch++
			return append(events, Event{Type: EvtHunterPrompt, To: tally.Eliminated, Player: tally.Eliminated, Day: s.Day})
		}
	}

	if fin, ok := s.maybeFinish(); ok {
		return append(events, fin...)
	}
	return append(events, s.enterNight()...)
}

// leaveResults exits the hunter sub-state once all owed shots are resolved or
// forfeited, continuing to whichever phase the resolution interrupted.
func (s *State) leaveResults() []Event {
	if fin, ok := s.maybeFinish(); ok {
		return fin
	}
	if s.resume == PhaseDay {
		deaths := s.resumeDeaths
		s.resumeDeaths = nil
		return s.enterDay(deaths)
	}
	return s.enterNight()
}

// applyDeath clears the alive flag and emits the death. A hunter dying here
// during the Results sub-state chains another owed shot.
func (s *State) applyDeath(id string) []Event {
	p := s.Players[id]
	p.Alive = false
	p.Vote = ""
	ev := Event{Type: EvtPlayerDied, Player: id, Name: p.Name, Day: s.Day}
	if s.Config.RevealRoleOnDeath {
		ev.Role = p.Role
		ev.Team = role.TeamOf(p.Role)
	}
	events := []Event{ev}
	if s.Phase == PhaseResults && p.Role == role.Hunter {
		s.pendingHunters = append(s.pendingHunters, id)
	}
	return events
}

func (s *State) maybeFinish() ([]Event, bool) {
	outcome := EvaluateWin(s.Players)
	if !outcome.Decided {
		return nil, false
	}
	s.Status = StatusFinished
	s.Winner = outcome.Winner
	return []Event{
		{Type: EvtGameFinished, Team: outcome.Winner, Day: s.Day},
		s.systemChat(fmt.Sprintf("The game is over. The %s win.", outcome.Winner)),
	}, true
}

func (s *State) systemChat(text string) Event {
	return Event{Type: EvtChat, Chat: &ChatMessage{
		ID:      uuid.NewString(),
		Channel: ChannelSystem,
		Text:    text,
		Phase:   s.Phase,
		Day:     s.Day,
	}}
}
