package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/moonvale/werewolf-backend/internal/directory"
	"github.com/moonvale/werewolf-backend/internal/ws"
)

func SetupRoutes(dir *directory.Directory, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Post("/sessions", CreateSession(dir))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(dir, log))
	return r
}
