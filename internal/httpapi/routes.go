package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/fantasy-draft-backend/internal/draft"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/hub"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/session"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/ws"
)

type Deps struct {
	Orchestrator *draft.Orchestrator
	Rooms        *ws.Rooms
	Sessions     *session.Registry
	Hub          *hub.Hub
	WS           ws.Options
	Log          *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(d.Orchestrator, d.Rooms, d.WS, d.Log.Named("ws")))

	r.Get("/debug/sessions", Sessions(d.Sessions, d.Hub, d.Log))
	return r
}
