package directory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/moonvale/werewolf-backend/internal/engine"
	"github.com/moonvale/werewolf-backend/internal/store"
)

func newTestDirectory(t *testing.T, opts Options) *Directory {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if opts.SweepEvery == 0 {
		opts.SweepEvery = time.Hour // keep the background sweep out of the way
	}
	return New(ctx, opts, store.Nop{}, zap.NewNop())
}

func create(t *testing.T, d *Directory) CreateReply {
	t.Helper()
	reply := make(chan CreateReply, 1)
	d.Inbox() <- Create{Creator: "host", Config: engine.DefaultConfig(), Reply: reply}
	select {
	case r := <-reply:
		return r
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for create reply")
		return CreateReply{} // unreachable
	}
}

func lookupByCode(t *testing.T, d *Directory, code string) LookupReply {
	t.Helper()
	reply := make(chan LookupReply, 1)
	d.Inbox() <- LookupByCode{Code: code, Reply: reply}
	select {
	case r := <-reply:
		return r
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for lookup reply")
		return LookupReply{} // unreachable
	}
}

func TestDirectory_CreateThenLookupSamePointer(t *testing.T) {
	d := newTestDirectory(t, Options{MaxSessions: 4, IdleGrace: time.Minute})

	cr := create(t, d)
	require.NoError(t, cr.Err)
	assert.Len(t, cr.Code, 6)
	assert.NotEmpty(t, cr.SessionID)

	lr := lookupByCode(t, d, cr.Code)
	require.NoError(t, lr.Err)
	assert.Same(t, cr.Sess, lr.Sess)
	assert.Equal(t, cr.SessionID, lr.SessionID)
}

func TestDirectory_LookupUnknownCode(t *testing.T) {
	d := newTestDirectory(t, Options{MaxSessions: 4, IdleGrace: time.Minute})

	lr := lookupByCode(t, d, "ZZZZZZ")
	assert.ErrorIs(t, lr.Err, engine.ErrNotFound)
}

func TestDirectory_CapacityExceeded(t *testing.T) {
	d := newTestDirectory(t, Options{MaxSessions: 1, IdleGrace: time.Minute})

	first := create(t, d)
	require.NoError(t, first.Err)

	second := create(t, d)
	assert.ErrorIs(t, second.Err, engine.ErrCapacityExceeded)
}

func TestDirectory_RemoveFreesCodeAndCapacity(t *testing.T) {
	d := newTestDirectory(t, Options{MaxSessions: 1, IdleGrace: time.Minute})

	cr := create(t, d)
	require.NoError(t, cr.Err)

	d.Inbox() <- Remove{SessionID: cr.SessionID}

	lr := lookupByCode(t, d, cr.Code)
	assert.ErrorIs(t, lr.Err, engine.ErrNotFound)

	again := create(t, d)
	assert.NoError(t, again.Err, "capacity freed after removal")
}

func TestDirectory_DistinctCodes(t *testing.T) {
	d := newTestDirectory(t, Options{MaxSessions: 8, IdleGrace: time.Minute})

	seen := make(map[string]bool)
	for i := 0; i < 8; i++ {
		cr := create(t, d)
		require.NoError(t, cr.Err)
		assert.False(t, seen[cr.Code], "join codes must be unique while reachable")
		seen[cr.Code] = true
	}
}

func TestDirectory_SweepCancelsIdleSessions(t *testing.T) {
	d := newTestDirectory(t, Options{
		MaxSessions: 4,
		IdleGrace:   10 * time.Millisecond,
		SweepEvery:  time.Hour,
	})

	cr := create(t, d)
	require.NoError(t, cr.Err)

	// A fresh session has no clients; once the grace passes, a sweep
	// cancels it and a later sweep starts the terminal grace window.
	time.Sleep(20 * time.Millisecond)
	d.Inbox() <- sweep{}
	time.Sleep(20 * time.Millisecond)
	d.Inbox() <- sweep{}

	// During the terminal grace window the code still resolves, so a
	// dropped player can come back for the final state.
	lr := lookupByCode(t, d, cr.Code)
	require.NoError(t, lr.Err)

	// Once the grace passes too, the entry is reaped.
	time.Sleep(20 * time.Millisecond)
	d.Inbox() <- sweep{}
	lr = lookupByCode(t, d, cr.Code)
	assert.ErrorIs(t, lr.Err, engine.ErrNotFound)
}
