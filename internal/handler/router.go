package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/z-companion/backend/internal/handler/persona"
	"github.com/zhouzirui/z-companion/backend/internal/handler/session"
	"github.com/zhouzirui/z-companion/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/z-companion/backend/internal/middleware"
	personaModel "github.com/zhouzirui/z-companion/backend/internal/model/persona"
	sessionService "github.com/zhouzirui/z-companion/backend/internal/service/session"
	"github.com/zhouzirui/z-companion/backend/pkg/utils"
)

// Options wires HTTP routes to core services. History may be nil.
type Options struct {
	Personas  personaModel.Store
	Sessions  *sessionService.Service
	History   session.HistoryReader
	Heartbeat time.Duration
}

// NewRouter wires HTTP routes to core services.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	personaHandler := persona.New(opts.Personas)
	sessionHandler := session.New(opts.Sessions, opts.History)
	streamHandler := stream.New(opts.Sessions, opts.Heartbeat)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": len(opts.Sessions.List()),
		})
	})

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		sessionHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
	})

	return r
}
