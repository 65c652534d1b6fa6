package engine

import (
	"errors"
	"time"

	"github.com/moonvale/werewolf-backend/internal/role"
)

var ErrInvalidPhase = errors.New("invalid phase")
var ErrPlayerNotAlive = errors.New("player not alive")
var ErrCapabilityMismatch = errors.New("capability mismatch")
var ErrInvalidTarget = errors.New("invalid target")
var ErrDuplicateSubmission = errors.New("duplicate submission")
var ErrNotFound = errors.New("not found")
var ErrCodeExpired = errors.New("code expired")
var ErrCapacityExceeded = errors.New("capacity exceeded")
var ErrConfigurationInvalid = errors.New("configuration invalid")
var ErrNotCreator = errors.New("not the session creator")
var ErrSessionFull = errors.New("session full")
var ErrAlreadyStarted = errors.New("session already started")
var ErrUnknownPlayer = errors.New("unknown player")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusFinished  Status = "finished"
	StatusCancelled Status = "cancelled"
)

type Phase string

const (
	PhaseNight   Phase = "night"
	PhaseResults Phase = "results" // internal: night resolved, hunter shot owed
	PhaseDay     Phase = "day"
	PhaseVoting  Phase = "voting"
)

type ActionType string

const (
	ActionVote        ActionType = "vote"
	ActionEliminate   ActionType = "eliminate"
	ActionHeal        ActionType = "heal"
	ActionInvestigate ActionType = "investigate"
	ActionShoot       ActionType = "shoot"
	ActionPoison      ActionType = "poison"
	ActionAntidote    ActionType = "antidote"
)

func (a ActionType) capability() (role.Capability, bool) {
	switch a {
	case ActionVote:
		return role.CapVote, true
	case ActionEliminate:
		return role.CapEliminate, true
	case ActionHeal:
		return role.CapHeal, true
	case ActionInvestigate:
		return role.CapInvestigate, true
	case ActionShoot:
		return role.CapShoot, true
	case ActionPoison:
		return role.CapPoison, true
	case ActionAntidote:
		return role.CapAntidote, true
	default:
		return "", false
	}
}

// GameAction is one submitted action, kept append-only as the audit log.
type GameAction struct {
	Actor  string
	Type   ActionType
	Target string
	Phase  Phase
	Day    int
}

type Player struct {
	ID        string
	Name      string
	Connected bool
	Alive     bool
	Role      role.ID
	Vote      string // current vote target, "" when none
	Acted     bool   // submitted a night action this night
}

type ChatChannel string

const (
	ChannelPublic   ChatChannel = "public"
	ChannelWerewolf ChatChannel = "werewolf"
	ChannelDead     ChatChannel = "dead"
	ChannelSystem   ChatChannel = "system"
)

type ChatMessage struct {
	ID      string      `json:"id"`
	Sender  string      `json:"sender,omitempty"` // empty for system
	Channel ChatChannel `json:"channel"`
	Text    string      `json:"text"`
	Phase   Phase       `json:"phase,omitempty"`
	Day     int         `json:"day,omitempty"`
}

type Config struct {
	MinPlayers        int
	MaxPlayers        int
	NightDuration     time.Duration
	DayDuration       time.Duration
	VotingDuration    time.Duration
	HunterDuration    time.Duration
	Roles             map[role.ID]int
	PublicVoting      bool
	RevealRoleOnDeath bool
	SingleUseHeal     bool          // each doctor's protection is consumed on first use
	ForfeitAfter      time.Duration // 0 disables disconnect forfeit
}

func DefaultConfig() Config {
	return Config{
		MinPlayers:     5,
		MaxPlayers:     16,
		NightDuration:  60 * time.Second,
		DayDuration:    120 * time.Second,
		VotingDuration: 60 * time.Second,
		HunterDuration: 20 * time.Second,
		Roles: map[role.ID]int{
			role.Werewolf: 2,
			role.Seer:     1,
			role.Doctor:   1,
			role.Villager: 3,
		},
		RevealRoleOnDeath: true,
	}
}

// State is the full mutable aggregate for one match. It is owned by exactly
// one session actor; nothing here is safe for concurrent use.
type State struct {
	ID      string
	Code    string
	Creator string
	Status  Status
	Phase   Phase // valid only while Status == StatusActive
	Day     int
	Config  Config

	Players map[string]*Player
	Order   []string // join order, for deterministic iteration

	Actions []GameAction // append-only audit log

	night map[string]NightAction // this night's buffer, keyed by actor

	// Single-use ability bookkeeping, keyed by player id.
	healSpent     map[string]bool
	poisonSpent   map[string]bool
	antidoteSpent map[string]bool

	pendingHunters []string // hunters owing a shot before the phase may advance
	resume         Phase    // phase to enter once the Results sub-state drains
	resumeDeaths   []string // night deaths carried into the Day narration

	Winner role.Team

	// Epoch increments on every phase entry. A timer armed at epoch N whose
	// fire arrives after the epoch moved on is stale and must not advance.
	Epoch uint64
}

func NewState(id, code, creator string, cfg Config) *State {
	return &State{
		ID:            id,
		Code:          code,
		Creator:       creator,
		Status:        StatusWaiting,
		Config:        cfg,
		Players:       make(map[string]*Player),
		night:         make(map[string]NightAction),
		healSpent:     make(map[string]bool),
		poisonSpent:   make(map[string]bool),
		antidoteSpent: make(map[string]bool),
	}
}

func (s *State) AliveCount() int {
	n := 0
	for _, p := range s.Players {
		if p.Alive {
			n++
		}
	}
	return n
}

func (s *State) ConnectedCount() int {
	n := 0
	for _, p := range s.Players {
		if p.Connected {
			n++
		}
	}
	return n
}

func (s *State) Terminal() bool {
	return s.Status == StatusFinished || s.Status == StatusCancelled
}

// HunterPending reports whether a shot is still owed before the next phase.
func (s *State) HunterPending() bool {
	return len(s.pendingHunters) > 0
}

// ValidateStart checks player count and role distribution ahead of the
// Waiting -> Active transition. Configured role counts must sum to the player
// count, and the werewolf count must be at least one and strictly below the
// non-werewolf count.
func (s *State) ValidateStart() error {
	n := len(s.Players)
	if n < s.Config.MinPlayers || n > s.Config.MaxPlayers {
		return ErrConfigurationInvalid
	}
	total, wolves := 0, 0
	for id, count := range s.Config.Roles {
		if !role.Known(id) || count < 0 {
			return ErrConfigurationInvalid
		}
		total += count
		if role.TeamOf(id) == role.TeamWerewolves {
			wolves += count
		}
	}
	if total != n {
		return ErrConfigurationInvalid
	}
	if wolves < 1 || wolves >= total-wolves {
		return ErrConfigurationInvalid
	}
	return nil
}
