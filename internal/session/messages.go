package session

import (
	"time"

	"github.com/moonvale/werewolf-backend/internal/engine"
)

type Msg interface{ isSessionMsg() }

// Attach registers a connected client and joins (or rejoins) its player.
type Attach struct {
	PlayerID string
	Name     string
	Outbox   chan Outbound
}

func (Attach) isSessionMsg() {}

// Detach is a transport-level disconnect, never an elimination.
type Detach struct{ PlayerID string }

func (Detach) isSessionMsg() {}

type FromClient struct {
	PlayerID string
	Cmd      engine.Command
}

func (FromClient) isSessionMsg() {}

type Cancel struct{ Reason string }

func (Cancel) isSessionMsg() {}

// GetView reflects internal state without data races; used by the directory
// sweep and by tests.
type GetView struct{ Reply chan View }

func (GetView) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

// timerFired is internal: a phase timer armed at Epoch elapsed.
type timerFired struct{ epoch uint64 }

func (timerFired) isSessionMsg() {}

// Outbound is one delivery to a client: an event, a full snapshot, or a
// command rejection.
type Outbound struct {
	Event    *engine.Event    `json:"event,omitempty"`
	Snapshot *engine.Snapshot `json:"snapshot,omitempty"`
	Error    string           `json:"error,omitempty"`
}

type View struct {
	Status     engine.Status
	Phase      engine.Phase
	Day        int
	Epoch      uint64
	NumClients int
	Players    int
	Alive      int
	IdleSince  time.Time
	Winner     string
}
