package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/urbanespionage/client/internal/backend/hub"
	"github.com/urbanespionage/client/internal/backend/store"
	"github.com/urbanespionage/client/internal/backend/ws"
	"go.uber.org/zap"
)

func SetupRoutes(st store.Store, h *hub.Hub, log *zap.Logger) http.Handler {
	a := New(st, h, log)
	r := chi.NewRouter()

	r.Post("/games", a.CreateGame)
	r.Get("/games", a.ListGames)
	r.Get("/games/{code}", a.GetGame)
	r.Post("/games/{code}/join", a.JoinGame)
	r.Post("/games/{code}/start", a.StartGame)
	r.Post("/games/{code}/leave", a.LeaveGame)
	r.Post("/games/{code}/position", a.UpdatePosition)
	r.Get("/healthz", a.Healthz)
	r.Get("/ws/game/{code}/", ws.Handler(h, st, log))
	return r
}
