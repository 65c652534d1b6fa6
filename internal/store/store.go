package store

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/moonvale/werewolf-backend/internal/engine"
	"github.com/moonvale/werewolf-backend/internal/role"
)

// Recorder is the persistence collaborator. Writes are a best-effort audit
// trail: the in-memory state machine never waits on them, and a failed write
// never rolls back live state.
type Recorder interface {
	RecordAction(sessionID string, action engine.GameAction)
	RecordChat(sessionID string, msg engine.ChatMessage)
	RecordResult(sessionID string, winner role.Team)
	Close()
}

// Nop is the recorder used when no database is configured.
type Nop struct{}

func (Nop) RecordAction(string, engine.GameAction) {}
func (Nop) RecordChat(string, engine.ChatMessage)  {}
func (Nop) RecordResult(string, role.Team)         {}
func (Nop) Close()                                 {}

type ActionRecord struct {
	ID        uint   `gorm:"primaryKey"`
	SessionID string `gorm:"index"`
	Actor     string
	Type      string
	Target    string
	Phase     string
	Day       int
	CreatedAt time.Time
}

type ChatRecord struct {
	ID        string `gorm:"primaryKey"`
	SessionID string `gorm:"index"`
	Sender    string
	Channel   string
	Text      string
	Phase     string
	Day       int
	CreatedAt time.Time
}

type ResultRecord struct {
	SessionID string `gorm:"primaryKey"`
	Winner    string
	CreatedAt time.Time
}

type writeFn func(db *gorm.DB) error

// DB is the gorm-backed recorder. All writes go through a buffered channel
// and a single writer goroutine so callers never block on the database.
type DB struct {
	db     *gorm.DB
	writes chan writeFn
	done   chan struct{}
	log    *zap.Logger
}

func Open(dsn string, log *zap.Logger) (*DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ActionRecord{}, &ChatRecord{}, &ResultRecord{}); err != nil {
		return nil, err
	}
	d := &DB{
		db:     db,
		writes: make(chan writeFn, 256),
		done:   make(chan struct{}),
		log:    log,
	}
	go d.loop()
	return d, nil
}

func (d *DB) loop() {
	defer close(d.done)
	for w := range d.writes {
		if err := w(d.db); err != nil {
			d.log.Warn("audit write failed", zap.Error(err))
		}
	}
}

// enqueue drops the write when the buffer is full rather than blocking the
// session actor that called it.
func (d *DB) enqueue(w writeFn) {
	select {
	case d.writes <- w:
	default:
		d.log.Warn("audit buffer full, dropping write")
	}
}

func (d *DB) RecordAction(sessionID string, a engine.GameAction) {
	d.enqueue(func(db *gorm.DB) error {
		return db.Create(&ActionRecord{
			SessionID: sessionID,
			Actor:     a.Actor,
			Type:      string(a.Type),
			Target:    a.Target,
			Phase:     string(a.Phase),
			Day:       a.Day,
		}).Error
	})
}

func (d *DB) RecordChat(sessionID string, m engine.ChatMessage) {
	d.enqueue(func(db *gorm.DB) error {
		return db.Create(&ChatRecord{
			ID:        m.ID,
			SessionID: sessionID,
			Sender:    m.Sender,
			Channel:   string(m.Channel),
			Text:      m.Text,
			Phase:     string(m.Phase),
			Day:       m.Day,
		}).Error
	})
}

func (d *DB) RecordResult(sessionID string, winner role.Team) {
	d.enqueue(func(db *gorm.DB) error {
		return db.Create(&ResultRecord{SessionID: sessionID, Winner: string(winner)}).Error
	})
}

// Close flushes buffered writes and stops the writer.
func (d *DB) Close() {
	close(d.writes)
	select {
	case <-d.done:
	case <-time.After(5 * time.Second):
		d.log.Warn("audit writer did not drain in time")
	}
}
