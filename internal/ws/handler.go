package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/moonvale/werewolf-backend/internal/directory"
	"github.com/moonvale/werewolf-backend/internal/session"
	"github.com/moonvale/werewolf-backend/pkg/types"
)

// Handler joins an authenticated player to a session by code and bridges the
// socket to the session actor. The gateway holds all transport state; the
// engine never sees a connection.
func Handler(dir *directory.Directory, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		playerID := r.URL.Query().Get("player_id")
		name := r.URL.Query().Get("name")
		if code == "" || playerID == "" {
			http.Error(w, "missing code or player_id", http.StatusBadRequest)
			return
		}
		if name == "" {
			name = playerID
		}

		reply := make(chan directory.LookupReply, 1)
		dir.Inbox() <- directory.LookupByCode{Code: code, Reply: reply}
		lr := <-reply
		if lr.Err != nil {
			http.Error(w, lr.Err.Error(), http.StatusNotFound)
			return
		}
		sess := lr.Sess

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan session.Outbound, 16)
		sess.Inbox() <- session.Attach{PlayerID: playerID, Name: name, Outbox: out}
		defer func() { sess.Inbox() <- session.Detach{PlayerID: playerID} }()

		// Writer goroutine: session -> socket.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for o := range out {
				msg := toServerMessage(o)
				payload, err := json.Marshal(msg)
				if err != nil {
					log.Warn("marshal outbound", zap.Error(err))
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
			// Outbox closed: the session dropped us or shut down.
			writeCancel()
		}()

		// Reader loop: socket -> session.
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = conn.Write(r.Context(), websocket.MessageText,
					[]byte(`{"type":"Error","error":"bad json"}`))
				continue
			}

			cmd, ok := types.ToCommand(cm)
			if !ok {
				_ = conn.Write(r.Context(), websocket.MessageText,
					[]byte(`{"type":"Error","error":"unknown type"}`))
				continue
			}

			sess.Inbox() <- session.FromClient{PlayerID: playerID, Cmd: cmd}
		}
	}
}

func toServerMessage(o session.Outbound) types.ServerMessage {
	switch {
	case o.Snapshot != nil:
		return types.ServerMessage{Type: "Snapshot", Snapshot: o.Snapshot}
	case o.Error != "":
		return types.ServerMessage{Type: "Error", Error: o.Error}
	default:
		return types.ServerMessage{Type: "Event", Event: o.Event}
	}
}
