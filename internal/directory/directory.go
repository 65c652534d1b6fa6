package directory

import (
	"context"
	crand "crypto/rand"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moonvale/werewolf-backend/internal/engine"
	"github.com/moonvale/werewolf-backend/internal/session"
	"github.com/moonvale/werewolf-backend/internal/store"
)

type Msg interface{ isDirectoryMsg() }

type Create struct {
	Creator string
	Config  engine.Config
	Seed    int64 // 0 = unpredictable; tests pass a fixed seed
	Reply   chan CreateReply
}

func (Create) isDirectoryMsg() {}

type CreateReply struct {
	SessionID string
	Code      string
	Sess      *session.Session
	Err       error
}

type LookupByCode struct {
	Code  string
	Reply chan LookupReply
}

func (LookupByCode) isDirectoryMsg() {}

type LookupByID struct {
	ID    string
	Reply chan LookupReply
}

func (LookupByID) isDirectoryMsg() {}

type LookupReply struct {
	SessionID string
	Code      string
	Sess      *session.Session
	Err       error
}

type Remove struct{ SessionID string }

func (Remove) isDirectoryMsg() {}

type Shutdown struct{}

func (Shutdown) isDirectoryMsg() {}

type sweep struct{}

func (sweep) isDirectoryMsg() {}

type entry struct {
	id         string
	code       string
	sess       *session.Session
	terminalAt time.Time // zero until observed Finished/Cancelled
}

// Options bound the directory's resource use.
type Options struct {
	MaxSessions int
	IdleGrace   time.Duration // cancel sessions with no connected players past this
	SweepEvery  time.Duration
}

func DefaultOptions() Options {
	return Options{MaxSessions: 256, IdleGrace: 5 * time.Minute, SweepEvery: 30 * time.Second}
}

// Directory is the process-wide session registry, keyed by session id and by
// join code. At most one live session governs a join code at a time; codes
// are not reused while their session is reachable. Its own map is mutated
// only by the loop goroutine.
type Directory struct {
	inbox  chan Msg
	byID   map[string]*entry
	byCode map[string]string
	opts   Options
	rec    store.Recorder
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, opts Options, rec store.Recorder, log *zap.Logger) *Directory {
	ctx, cancel := context.WithCancel(parent)
	d := &Directory{
		inbox:  make(chan Msg, 64),
		byID:   make(map[string]*entry),
		byCode: make(map[string]string),
		opts:   opts,
		rec:    rec,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go d.loop()
	return d
}

func (d *Directory) Inbox() chan<- Msg { return d.inbox }

func (d *Directory) loop() {
	ticker := time.NewTicker(d.opts.SweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			d.shutdown()
			return

		case <-ticker.C:
			d.runSweep()

		case m := <-d.inbox:
			switch msg := m.(type) {
			case Create:
				msg.Reply <- d.create(msg)

			case LookupByCode:
				id, ok := d.byCode[msg.Code]
				if !ok {
					msg.Reply <- LookupReply{Err: engine.ErrNotFound}
					break
				}
				msg.Reply <- d.lookup(id)

			case LookupByID:
				msg.Reply <- d.lookup(msg.ID)

			case Remove:
				d.remove(msg.SessionID)

			case sweep:
				d.runSweep()

			case Shutdown:
				d.shutdown()
				return
			}
		}
	}
}

func (d *Directory) create(msg Create) CreateReply {
	if len(d.byID) >= d.opts.MaxSessions {
		return CreateReply{Err: engine.ErrCapacityExceeded}
	}
	var code string
	for {
		c, err := generateCode()
		if err != nil {
			return CreateReply{Err: err}
		}
		if _, taken := d.byCode[c]; !taken {
			code = c
			break
		}
	}

	id := uuid.NewString()
	st := engine.NewState(id, code, msg.Creator, msg.Config)
	sess := session.New(d.ctx, st, msg.Seed, d.rec, d.log)
	d.byID[id] = &entry{id: id, code: code, sess: sess}
	d.byCode[code] = id
	d.log.Info("session created", zap.String("session_id", id), zap.String("code", code))
	return CreateReply{SessionID: id, Code: code, Sess: sess}
}

// lookup resolves a session while it is still reachable. Terminal sessions
// stay resolvable until the sweep reaps them, so dropped players can re-attach
// for the final snapshot; the engine itself refuses anyone it does not know.
func (d *Directory) lookup(id string) LookupReply {
	e, ok := d.byID[id]
	if !ok {
		return LookupReply{Err: engine.ErrNotFound}
	}
	return LookupReply{SessionID: e.id, Code: e.code, Sess: e.sess}
}

func (d *Directory) remove(id string) {
	e, ok := d.byID[id]
	if !ok {
		return
	}
	e.sess.Inbox() <- session.Shutdown{}
	delete(d.byCode, e.code)
	delete(d.byID, id)
	d.log.Info("session removed", zap.String("session_id", id))
}

// runSweep cancels idle sessions past the grace period and reaps terminal
// ones. A session that does not answer the view request in time is skipped
// this round rather than stalling the directory.
func (d *Directory) runSweep() {
	now := time.Now()
	for id, e := range d.byID {
		reply := make(chan session.View, 1)
		e.sess.Inbox() <- session.GetView{Reply: reply}
		var v session.View
		select {
		case v = <-reply:
		case <-time.After(time.Second):
			continue
		}

		terminal := v.Status == engine.StatusFinished || v.Status == engine.StatusCancelled
		switch {
		case terminal && e.terminalAt.IsZero():
			e.terminalAt = now
		case terminal && now.Sub(e.terminalAt) > d.opts.IdleGrace:
			d.remove(id)
		case !terminal && v.NumClients == 0 && !v.IdleSince.IsZero() && now.Sub(v.IdleSince) > d.opts.IdleGrace:
			d.log.Info("cancelling idle session", zap.String("session_id", id))
			e.sess.Inbox() <- session.Cancel{Reason: "idle"}
		}
	}
}

func (d *Directory) shutdown() {
	for id, e := range d.byID {
		e.sess.Inbox() <- session.Shutdown{}
		delete(d.byCode, e.code)
		delete(d.byID, id)
	}
	d.cancel()
}

func generateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := range code {
		num, err := crand.Int(crand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}
