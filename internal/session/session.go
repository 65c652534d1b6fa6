package session

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/moonvale/werewolf-backend/internal/engine"
	"github.com/moonvale/werewolf-backend/internal/role"
	"github.com/moonvale/werewolf-backend/internal/store"
)

// Session is the single owner of one match's state. All mutation goes
// through the inbox and is applied by the loop goroutine; distinct sessions
// run fully in parallel.
type Session struct {
	inbox   chan Msg
	state   *engine.State
	rng     *rand.Rand
	clients map[string]chan Outbound

	timer      *time.Timer
	armedEpoch uint64

	disconnectedAt map[string]time.Time
	idleSince      time.Time

	rec store.Recorder
	log *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New starts the session actor. seed drives role assignment; pass 0 for a
// cryptographically unpredictable seed, non-zero for deterministic tests.
func New(parent context.Context, st *engine.State, seed int64, rec store.Recorder, log *zap.Logger) *Session {
	if seed == 0 {
		seed = cryptoSeed()
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		inbox:          make(chan Msg, 64),
		state:          st,
		rng:            rand.New(rand.NewSource(seed)),
		clients:        make(map[string]chan Outbound),
		disconnectedAt: make(map[string]time.Time),
		idleSince:      time.Now(),
		rec:            rec,
		log:            log.With(zap.String("session_id", st.ID), zap.String("code", st.Code)),
		ctx:            ctx,
		cancel:         cancel,
	}
	go s.loop()
	return s
}

func (s *Session) Inbox() chan<- Msg { return s.inbox }

func cryptoSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Attach:
				s.handleAttach(msg)

			case Detach:
				s.handleDetach(msg)

			case FromClient:
				s.handleCommand(msg)

			case Cancel:
				events, err := s.apply(engine.Command{Type: engine.CmdCancel, Reason: msg.Reason})
				if err == nil {
					s.route(events)
					s.log.Info("session cancelled", zap.String("reason", msg.Reason))
				}
				s.syncTimer()

			case timerFired:
				s.handleTimer(msg)

			case GetView:
				msg.Reply <- s.view()

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) handleAttach(msg Attach) {
	events, err := s.apply(engine.Command{Type: engine.CmdJoin, PlayerID: msg.PlayerID, Name: msg.Name})
	if err != nil {
		msg.Outbox <- Outbound{Error: err.Error()}
		close(msg.Outbox)
		return
	}
	if old, ok := s.clients[msg.PlayerID]; ok {
		close(old)
	}
	s.clients[msg.PlayerID] = msg.Outbox
	delete(s.disconnectedAt, msg.PlayerID)
	s.idleSince = time.Time{}

	snap := s.state.SnapshotFor(msg.PlayerID)
	msg.Outbox <- Outbound{Snapshot: &snap}
	s.route(events)
	s.syncTimer()
}

func (s *Session) handleDetach(msg Detach) {
	if ch, ok := s.clients[msg.PlayerID]; ok {
		close(ch)
		delete(s.clients, msg.PlayerID)
	}
	events, err := s.apply(engine.Command{Type: engine.CmdLeave, PlayerID: msg.PlayerID})
	if err == nil {
		s.route(events)
	}
	if _, known := s.state.Players[msg.PlayerID]; known {
		s.disconnectedAt[msg.PlayerID] = time.Now()
	}
	if len(s.clients) == 0 {
		s.idleSince = time.Now()
	}
	s.syncTimer()
}

func (s *Session) handleCommand(msg FromClient) {
	cmd := msg.Cmd
	cmd.PlayerID = msg.PlayerID
	events, err := s.apply(cmd)
	if err != nil {
		// A submission losing the race against a phase advance is expected;
		// it is dropped, not surfaced.
		if !errors.Is(err, engine.ErrInvalidPhase) {
			s.sendTo(msg.PlayerID, Outbound{Error: err.Error()})
		}
		return
	}
	s.route(events)
	s.syncTimer()
}

func (s *Session) handleTimer(msg timerFired) {
	if msg.epoch != s.state.Epoch {
		return // stale fire, the phase already advanced
	}
	s.forfeitSweep()
	events, err := s.apply(engine.Command{Type: engine.CmdAdvancePhase, Epoch: msg.epoch})
	if err != nil {
		return
	}
	s.route(events)
	s.syncTimer()
}

// forfeitSweep eliminates players disconnected past the configured window.
// Runs only at phase boundaries, before the advance itself.
func (s *Session) forfeitSweep() {
	window := s.state.Config.ForfeitAfter
	if window <= 0 {
		return
	}
	for pid, since := range s.disconnectedAt {
		p, ok := s.state.Players[pid]
		if !ok || !p.Alive || time.Since(since) < window {
			continue
		}
		events, err := s.apply(engine.Command{Type: engine.CmdForfeit, PlayerID: pid})
		if err != nil {
			continue
		}
		s.log.Info("player forfeited after disconnect", zap.String("player_id", pid))
		s.route(events)
	}
}

// apply runs a command and records any newly appended audit actions. An
// engine panic means this session's state can no longer be trusted; it is
// cancelled and reported without touching any other session.
func (s *Session) apply(cmd engine.Command) (events []engine.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("session state invariant violated, cancelling",
				zap.Any("panic", r), zap.String("command", string(cmd.Type)))
			s.state.Status = engine.StatusCancelled
			ev := engine.Event{Type: engine.EvtGameCancelled, Reason: "internal error"}
			for pid := range s.clients {
				s.sendTo(pid, Outbound{Event: &ev})
			}
			events, err = nil, engine.ErrInvalidPhase
		}
	}()

	before := len(s.state.Actions)
	events, err = engine.Apply(s.state, cmd, s.rng)
	if err != nil {
		return nil, err
	}
	for _, a := range s.state.Actions[before:] {
		s.rec.RecordAction(s.state.ID, a)
	}
	return events, nil
}

// route delivers events: private ones to their addressee, chat through the
// channel visibility filter, everything else session-wide. Broadcasting
// happens after the mutation; the loop never blocks on a slow client.
func (s *Session) route(events []engine.Event) {
	for i := range events {
		ev := events[i]
		switch {
		case ev.To != "":
			s.sendTo(ev.To, Outbound{Event: &ev})

		case ev.Type == engine.EvtChat:
			s.rec.RecordChat(s.state.ID, *ev.Chat)
			for pid := range s.clients {
				if s.canSee(pid, ev.Chat.Channel) {
					s.sendTo(pid, Outbound{Event: &ev})
				}
			}

		default:
			if ev.Type == engine.EvtGameFinished {
				s.rec.RecordResult(s.state.ID, ev.Team)
				s.log.Info("game finished", zap.String("winner", string(ev.Team)), zap.Int("day", ev.Day))
			}
			for pid := range s.clients {
				s.sendTo(pid, Outbound{Event: &ev})
			}
		}
	}
}

// canSee implements channel visibility: public and system go to everyone,
// the werewolf channel to living werewolves, the dead channel to the dead.
func (s *Session) canSee(pid string, ch engine.ChatChannel) bool {
	p, ok := s.state.Players[pid]
	if !ok {
		return false
	}
	switch ch {
	case engine.ChannelSystem:
		return true
	case engine.ChannelPublic:
		return s.state.Status != engine.StatusActive || p.Alive
	case engine.ChannelWerewolf:
		return p.Alive && role.TeamOf(p.Role) == role.TeamWerewolves
	case engine.ChannelDead:
		return !p.Alive
	default:
		return false
	}
}

func (s *Session) sendTo(pid string, out Outbound) {
	ch, ok := s.clients[pid]
	if !ok {
		return
	}
	select {
	case ch <- out:
	default:
		// Slow or gone; drop the client rather than block the loop.
		close(ch)
		delete(s.clients, pid)
		s.log.Debug("dropped slow client", zap.String("player_id", pid))
	}
}

// syncTimer keeps exactly one timer armed for the current phase epoch.
func (s *Session) syncTimer() {
	if s.state.Status != engine.StatusActive {
		s.stopTimer()
		return
	}
	if s.armedEpoch == s.state.Epoch && s.timer != nil {
		return
	}
	s.stopTimer()

	var d time.Duration
	switch s.state.Phase {
	case engine.PhaseNight:
		d = s.state.Config.NightDuration
	case engine.PhaseDay:
		d = s.state.Config.DayDuration
	case engine.PhaseVoting:
		d = s.state.Config.VotingDuration
	case engine.PhaseResults:
		d = s.state.Config.HunterDuration
	}

	epoch := s.state.Epoch
	s.armedEpoch = epoch
	s.timer = time.AfterFunc(d, func() {
		select {
		case s.inbox <- timerFired{epoch: epoch}:
		case <-s.ctx.Done():
		}
	})
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) view() View {
	v := View{
		Status:     s.state.Status,
		Day:        s.state.Day,
		Epoch:      s.state.Epoch,
		NumClients: len(s.clients),
		Players:    len(s.state.Players),
		Alive:      s.state.AliveCount(),
		IdleSince:  s.idleSince,
		Winner:     string(s.state.Winner),
	}
	if s.state.Status == engine.StatusActive {
		v.Phase = s.state.Phase
	}
	return v
}

func (s *Session) shutdown() {
	s.stopTimer()
	for id, ch := range s.clients {
		close(ch)
		delete(s.clients, id)
	}
	s.cancel()
}
