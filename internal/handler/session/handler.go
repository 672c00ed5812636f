package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shopquery/backend/internal/service/conversation"
	"github.com/shopquery/backend/pkg/utils"
)

// Handler serves session inspection and lifecycle endpoints.
type Handler struct {
	sessions *conversation.Store
	maxIdle  time.Duration
}

// New creates the session handler. maxIdle is the idle threshold used by
// the on-demand cleanup endpoint.
func New(sessions *conversation.Store, maxIdle time.Duration) *Handler {
	return &Handler{sessions: sessions, maxIdle: maxIdle}
}

// RegisterRoutes registers session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/session/{sessionID}/history", h.handleHistory)
	r.Delete("/session/{sessionID}", h.handleDelete)
	r.Post("/sessions/cleanup", h.handleCleanup)
	r.Get("/sessions/stats", h.handleStats)
}

type turnView struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// handleHistory returns the windowed transcript of one session.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	turns, err := h.sessions.History(r.Context(), sessionID)
	if err != nil {
		utils.RespondJSON(w, http.StatusNotFound, map[string]string{
			"error":      "Session not found",
			"session_id": sessionID,
		})
		return
	}

	history := make([]turnView, 0, len(turns))
	for _, turn := range turns {
		history = append(history, turnView{Role: string(turn.Role), Content: turn.Content})
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"session_id":    sessionID,
		"history":       history,
		"message_count": len(history),
	})
}

// handleDelete removes a session. Unknown ids are reported in the body,
// not as an HTTP fault.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if h.sessions.Clear(r.Context(), sessionID) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": fmt.Sprintf("session %s deleted", sessionID),
		})
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success": false,
		"message": fmt.Sprintf("session %s not found", sessionID),
	})
}

// handleCleanup runs an idle sweep immediately.
func (h *Handler) handleCleanup(w http.ResponseWriter, r *http.Request) {
	removed := h.sessions.Sweep(h.maxIdle)
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("cleanup complete, removed %d idle sessions", removed),
	})
}

// handleStats lists every live session with its timestamps.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.sessions.Stats()

	sessions := make([]map[string]any, 0, len(stats))
	for _, s := range stats {
		sessions = append(sessions, map[string]any{
			"session_id":    s.ID,
			"message_count": s.TurnCount,
			"created_at":    s.CreatedAt.UTC().Format(time.RFC3339),
			"last_accessed": s.LastAccessedAt.UTC().Format(time.RFC3339),
		})
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"total_sessions": len(sessions),
		"sessions":       sessions,
	})
}
