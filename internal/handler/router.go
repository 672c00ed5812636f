package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shopquery/backend/internal/handler/search"
	"github.com/shopquery/backend/internal/handler/session"
	"github.com/shopquery/backend/internal/handler/stream"
	middlewarePkg "github.com/shopquery/backend/internal/middleware"
	"github.com/shopquery/backend/internal/service/conversation"
	"github.com/shopquery/backend/internal/service/llm"
	"github.com/shopquery/backend/internal/service/orchestrator"
	"github.com/shopquery/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(sessions *conversation.Store, orch *orchestrator.Orchestrator, gateway *llm.Gateway, sessionTTL time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	searchHandler := search.New(orch)
	sessionHandler := session.New(sessions, sessionTTL)
	streamHandler := stream.New(orch)

	searchHandler.RegisterRoutes(r)
	sessionHandler.RegisterRoutes(r)

	r.Get("/search/stream", streamHandler.HandleStreamRequest)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": sessions.Len(),
			"backends": gateway.Status(),
		})
	})

	return r
}
