// Package stream serves the streaming variant of the search endpoint over
// Server-Sent Events.
package stream

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopquery/backend/internal/service/orchestrator"
	"github.com/shopquery/backend/pkg/utils"
)

const defaultModel = "gemini"

// Handler manages streaming answers via Server-Sent Events.
type Handler struct {
	orch *orchestrator.Orchestrator
}

// New creates the stream handler.
func New(orch *orchestrator.Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// StreamResponse is one SSE frame.
type StreamResponse struct {
	Event                string `json:"event"`
	Content              string `json:"content,omitempty"`
	SessionID            string `json:"session_id,omitempty"`
	SemanticResultsCount int    `json:"semantic_results_count,omitempty"`
	HasHistory           bool   `json:"has_conversation_history,omitempty"`
	Finished             bool   `json:"finished,omitempty"`
	Error                string `json:"error,omitempty"`
}

// HandleStreamRequest answers one question as a stream of delta frames.
// The exchange is committed to session memory only after the stream
// finishes without error.
func (h *Handler) HandleStreamRequest(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	query := r.URL.Query()
	userInput := query.Get("user_input")
	if strings.TrimSpace(userInput) == "" {
		utils.RespondError(w, http.StatusBadRequest, "user_input query parameter is required")
		return
	}

	model := query.Get("model")
	if model == "" {
		model = defaultModel
	}

	windowSize := 0
	if raw := query.Get("max_memory"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid max_memory value")
			return
		}
		windowSize = parsed
	}

	utils.SetupSSEHeaders(w)

	ctx := r.Context()
	session, backendErr := h.orch.HandleStream(ctx, orchestrator.Request{
		UserText:   userInput,
		Model:      model,
		SessionID:  query.Get("session_id"),
		WindowSize: windowSize,
	})

	h.sendSSE(w, flusher, StreamResponse{
		Event:                "start",
		SessionID:            session.SessionID,
		SemanticResultsCount: session.RetrievedCount,
		HasHistory:           session.HasHistory,
	})

	if backendErr != nil {
		h.sendSSEError(w, flusher, session.SessionID, fmt.Sprintf("backend %s failed: %s", backendErr.Backend, backendErr.Kind))
		return
	}

	var answer strings.Builder
	for chunk := range session.Chunks {
		if chunk.Err != nil {
			h.sendSSEError(w, flusher, session.SessionID, fmt.Sprintf("stream interrupted: %v", chunk.Err))
			return
		}
		if chunk.Content == "" {
			continue
		}
		answer.WriteString(chunk.Content)
		h.sendSSE(w, flusher, StreamResponse{
			Event:     "delta",
			SessionID: session.SessionID,
			Content:   chunk.Content,
		})
	}

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: session.SessionID,
		Content:   answer.String(),
	})

	h.orch.Commit(ctx, session.SessionID, userInput, answer.String())

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: session.SessionID,
		Finished:  true,
	})

	log.Printf("[stream] completed response for session=%s model=%s", session.SessionID, model)
}

// sendSSE sends a Server-Sent Event frame.
func (h *Handler) sendSSE(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	utils.SendSSEChunk(w, flusher, response)
}

// sendSSEError sends an error frame.
func (h *Handler) sendSSEError(w http.ResponseWriter, flusher http.Flusher, sessionID, errorMsg string) {
	h.sendSSE(w, flusher, StreamResponse{
		Event:     "error",
		SessionID: sessionID,
		Error:     errorMsg,
	})
}
