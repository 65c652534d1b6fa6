package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/moonvale/werewolf-backend/internal/directory"
	"github.com/moonvale/werewolf-backend/internal/engine"
	"github.com/moonvale/werewolf-backend/internal/role"
)

type createRequest struct {
	CreatorID      string         `json:"creator_id"`
	MinPlayers     int            `json:"min_players,omitempty"`
	MaxPlayers     int            `json:"max_players,omitempty"`
	NightSeconds   int            `json:"night_seconds,omitempty"`
	DaySeconds     int            `json:"day_seconds,omitempty"`
	VotingSeconds  int            `json:"voting_seconds,omitempty"`
	HunterSeconds  int            `json:"hunter_seconds,omitempty"`
	Roles          map[string]int `json:"roles,omitempty"`
	PublicVoting   bool           `json:"public_voting,omitempty"`
	HideDeadRoles  bool           `json:"hide_dead_roles,omitempty"`
	SingleUseHeal  bool           `json:"single_use_heal,omitempty"`
	ForfeitSeconds int            `json:"forfeit_seconds,omitempty"`
}

type createResponse struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
}

func CreateSession(dir *directory.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.CreatorID == "" {
			http.Error(w, "missing creator_id", http.StatusBadRequest)
			return
		}

		cfg := buildConfig(req)
		reply := make(chan directory.CreateReply, 1)
		dir.Inbox() <- directory.Create{Creator: req.CreatorID, Config: cfg, Reply: reply}
		cr := <-reply
		if cr.Err != nil {
			status := http.StatusInternalServerError
			if errors.Is(cr.Err, engine.ErrCapacityExceeded) {
				status = http.StatusServiceUnavailable
			}
			http.Error(w, cr.Err.Error(), status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(createResponse{SessionID: cr.SessionID, Code: cr.Code})
	}
}

func buildConfig(req createRequest) engine.Config {
	cfg := engine.DefaultConfig()
	if req.MinPlayers > 0 {
		cfg.MinPlayers = req.MinPlayers
	}
	if req.MaxPlayers > 0 {
		cfg.MaxPlayers = req.MaxPlayers
	}
	if req.NightSeconds > 0 {
		cfg.NightDuration = time.Duration(req.NightSeconds) * time.Second
	}
	if req.DaySeconds > 0 {
		cfg.DayDuration = time.Duration(req.DaySeconds) * time.Second
	}
	if req.VotingSeconds > 0 {
		cfg.VotingDuration = time.Duration(req.VotingSeconds) * time.Second
	}
	if req.HunterSeconds > 0 {
		cfg.HunterDuration = time.Duration(req.HunterSeconds) * time.Second
	}
	if len(req.Roles) > 0 {
		roles := make(map[role.ID]int, len(req.Roles))
		for id, n := range req.Roles {
			roles[role.ID(id)] = n
		}
		cfg.Roles = roles
	}
	cfg.PublicVoting = req.PublicVoting
	cfg.RevealRoleOnDeath = !req.HideDeadRoles
	cfg.SingleUseHeal = req.SingleUseHeal
	if req.ForfeitSeconds > 0 {
		cfg.ForfeitAfter = time.Duration(req.ForfeitSeconds) * time.Second
	}
	return cfg
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
