package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/moonvale/werewolf-backend/internal/engine"
	"github.com/moonvale/werewolf-backend/internal/role"
	"github.com/moonvale/werewolf-backend/internal/store"
)

func testConfig() engine.Config {
	return engine.Config{
		MinPlayers:     5,
		MaxPlayers:     8,
		NightDuration:  50 * time.Millisecond,
		DayDuration:    50 * time.Millisecond,
		VotingDuration: 50 * time.Millisecond,
		HunterDuration: 50 * time.Millisecond,
		Roles: map[role.ID]int{
			role.Werewolf: 1,
			role.Villager: 4,
		},
		RevealRoleOnDeath: true,
	}
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	st := engine.NewState("sess-1", "ABC123", "p1", testConfig())
	return New(ctx, st, 7, store.Nop{}, zap.NewNop())
}

// recvOutbound receives one delivery with a timeout so tests never hang.
func recvOutbound(t *testing.T, ch <-chan Outbound, within time.Duration) Outbound {
	t.Helper()
	select {
	case o, ok := <-ch:
		if !ok {
			t.Fatalf("outbox closed unexpectedly")
		}
		return o
	case <-time.After(within):
		t.Fatalf("timed out waiting for outbound")
		return Outbound{} // unreachable
	}
}

func recvNoOutbound(t *testing.T, ch <-chan Outbound, within time.Duration) {
	t.Helper()
	select {
	case o, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected nothing within %v, got: %+v", within, o)
	case <-time.After(within):
	}
}

// waitEvent drains the outbox until an event of the wanted type shows up.
func waitEvent(t *testing.T, ch <-chan Outbound, et engine.EventType, within time.Duration) engine.Event {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case o, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for %s", et)
			}
			if o.Event != nil && o.Event.Type == et {
				return *o.Event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", et)
		}
	}
}

func attach(t *testing.T, s *Session, pid string, buf int) chan Outbound {
	t.Helper()
	out := make(chan Outbound, buf)
	s.Inbox() <- Attach{PlayerID: pid, Name: pid, Outbox: out}
	o := recvOutbound(t, out, time.Second)
	require.NotNil(t, o.Snapshot, "first delivery after attach must be a snapshot")
	return out
}

func view(t *testing.T, s *Session) View {
	t.Helper()
	reply := make(chan View, 1)
	s.Inbox() <- GetView{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func TestSession_AttachSnapshotAndJoinBroadcast(t *testing.T) {
	s := newTestSession(t)

	out1 := attach(t, s, "p1", 16)
	_ = attach(t, s, "p2", 16)

	ev := waitEvent(t, out1, engine.EvtPlayerJoined, time.Second)
	assert.Equal(t, "p2", ev.Player)

	v := view(t, s)
	assert.Equal(t, 2, v.NumClients)
	assert.Equal(t, engine.StatusWaiting, v.Status)
}

func TestSession_TimersDriveThePhaseCycle(t *testing.T) {
	s := newTestSession(t)

	outs := make(map[string]chan Outbound)
	for _, pid := range []string{"p1", "p2", "p3", "p4", "p5"} {
		outs[pid] = attach(t, s, pid, 64)
	}

	s.Inbox() <- FromClient{PlayerID: "p1", Cmd: engine.Command{Type: engine.CmdStart}}

	// Private role deal: each player sees exactly their own assignment.
	ra := waitEvent(t, outs["p2"], engine.EvtRoleAssigned, time.Second)
	assert.Equal(t, "p2", ra.Player)

	ev := waitEvent(t, outs["p1"], engine.EvtPhaseChanged, time.Second)
	assert.Equal(t, engine.PhaseNight, ev.Phase)
	assert.Equal(t, 1, ev.Day)

	// Nobody acts: the timers alone must walk Night -> Day -> Voting -> Night.
	ev = waitEvent(t, outs["p1"], engine.EvtPhaseChanged, time.Second)
	assert.Equal(t, engine.PhaseDay, ev.Phase)
	ev = waitEvent(t, outs["p1"], engine.EvtPhaseChanged, time.Second)
	assert.Equal(t, engine.PhaseVoting, ev.Phase)
	ev = waitEvent(t, outs["p1"], engine.EvtPhaseChanged, time.Second)
	assert.Equal(t, engine.PhaseNight, ev.Phase)
	assert.Equal(t, 2, ev.Day)
}

func TestSession_RejectionGoesOnlyToCaller(t *testing.T) {
	s := newTestSession(t)

	out1 := attach(t, s, "p1", 16)
	out2 := attach(t, s, "p2", 16)
	_ = waitEvent(t, out1, engine.EvtPlayerJoined, time.Second)

	s.Inbox() <- FromClient{PlayerID: "p2", Cmd: engine.Command{Type: engine.CmdStart}}

	o := recvOutbound(t, out2, time.Second)
	assert.Equal(t, engine.ErrNotCreator.Error(), o.Error)
	recvNoOutbound(t, out1, 100*time.Millisecond)
}

func TestSession_InvalidPhaseIsDroppedSilently(t *testing.T) {
	s := newTestSession(t)
	out := attach(t, s, "p1", 16)

	// Voting during Waiting loses to the phase guard; the gateway never
	// surfaces it as a user error.
	s.Inbox() <- FromClient{PlayerID: "p1", Cmd: engine.Command{Type: engine.CmdVote, TargetID: "p2"}}
	recvNoOutbound(t, out, 100*time.Millisecond)
}

func TestSession_DetachIsNotElimination(t *testing.T) {
	s := newTestSession(t)
	for _, pid := range []string{"p1", "p2", "p3", "p4", "p5"} {
		_ = attach(t, s, pid, 64)
	}
	s.Inbox() <- FromClient{PlayerID: "p1", Cmd: engine.Command{Type: engine.CmdStart}}
	s.Inbox() <- Detach{PlayerID: "p3"}

	v := view(t, s)
	assert.Equal(t, 4, v.NumClients)
	assert.Equal(t, 5, v.Alive, "a disconnect must not clear the alive flag")
}

func TestSession_ReconnectRestoresIdentity(t *testing.T) {
	s := newTestSession(t)
	outs := make(map[string]chan Outbound)
	for _, pid := range []string{"p1", "p2", "p3", "p4", "p5"} {
		outs[pid] = attach(t, s, pid, 64)
	}
	s.Inbox() <- FromClient{PlayerID: "p1", Cmd: engine.Command{Type: engine.CmdStart}}
	first := waitEvent(t, outs["p3"], engine.EvtRoleAssigned, time.Second)

	s.Inbox() <- Detach{PlayerID: "p3"}

	out := make(chan Outbound, 64)
	s.Inbox() <- Attach{PlayerID: "p3", Name: "p3", Outbox: out}
	o := recvOutbound(t, out, time.Second)
	require.NotNil(t, o.Snapshot)

	for _, pv := range o.Snapshot.Players {
		if pv.ID == "p3" {
			assert.Equal(t, first.Role, pv.Role, "reconnect must restore the same role")
		}
	}
}

func TestSession_SlowClientIsDropped(t *testing.T) {
	s := newTestSession(t)
	_ = attach(t, s, "p1", 16)

	// p2's outbox has no room beyond the snapshot; the next broadcast
	// overflows it and the session drops the client.
	out := make(chan Outbound, 1)
	s.Inbox() <- Attach{PlayerID: "p2", Name: "p2", Outbox: out}
	_ = attach(t, s, "p3", 16)

	v := view(t, s)
	assert.Equal(t, 2, v.NumClients, "slow client dropped")
}

func TestSession_ShutdownClosesOutboxes(t *testing.T) {
	s := newTestSession(t)
	out := attach(t, s, "p1", 16)

	s.Inbox() <- Shutdown{}

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("outbox was not closed on shutdown")
		}
	}
}

func TestSession_CancelIsBroadcast(t *testing.T) {
	s := newTestSession(t)
	out := attach(t, s, "p1", 16)

	s.Inbox() <- Cancel{Reason: "idle"}

	ev := waitEvent(t, out, engine.EvtGameCancelled, time.Second)
	assert.Equal(t, "idle", ev.Reason)
	assert.Equal(t, engine.StatusCancelled, view(t, s).Status)
}
