package search

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shopquery/backend/internal/service/orchestrator"
	"github.com/shopquery/backend/pkg/utils"
)

const defaultModel = "gemini"

// Handler serves the product question endpoint.
type Handler struct {
	orch *orchestrator.Orchestrator
}

// New creates the search handler.
func New(orch *orchestrator.Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// RegisterRoutes registers the search route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/search", h.handleSearch)
}

type searchRequest struct {
	UserInput string `json:"user_input"`
	Model     string `json:"model"`
	SessionID string `json:"session_id"`
	MaxMemory *int   `json:"max_memory"`
}

type searchResponse struct {
	Result               string `json:"result"`
	SessionID            string `json:"session_id"`
	SemanticResultsCount int    `json:"semantic_results_count"`
	HasHistory           bool   `json:"has_conversation_history"`
	ErrorCode            string `json:"error_code,omitempty"`
}

// handleSearch runs one question/answer exchange. Backend failures come
// back as data with an apology answer, never as a 5xx.
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var payload searchRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(payload.UserInput) == "" {
		utils.RespondError(w, http.StatusBadRequest, "user_input is required")
		return
	}

	model := payload.Model
	if model == "" {
		model = defaultModel
	}

	windowSize := 0
	if payload.MaxMemory != nil {
		windowSize = *payload.MaxMemory
	}

	res := h.orch.Handle(r.Context(), orchestrator.Request{
		UserText:   payload.UserInput,
		Model:      model,
		SessionID:  payload.SessionID,
		WindowSize: windowSize,
	})

	resp := searchResponse{
		Result:               res.Answer,
		SessionID:            res.SessionID,
		SemanticResultsCount: res.RetrievedCount,
		HasHistory:           res.HasHistory,
	}
	if res.Err != nil {
		resp.ErrorCode = string(res.Err.Kind)
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}
