package stream_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopquery/backend/internal/handler/stream"
	"github.com/shopquery/backend/internal/service/conversation"
	"github.com/shopquery/backend/internal/service/llm"
	"github.com/shopquery/backend/internal/service/orchestrator"
	"github.com/shopquery/backend/internal/service/prompt"
)

type stubBackend struct {
	answer string
}

func (s *stubBackend) Name() string                   { return "gemini" }
func (s *stubBackend) Capabilities() llm.Capabilities { return llm.Capabilities{} }
func (s *stubBackend) Generate(context.Context, prompt.Prompt) (string, error) {
	return s.answer, nil
}

func TestStreamRequest(t *testing.T) {
	sessions := conversation.NewStore()
	gateway := llm.NewGateway(3, time.Second)
	gateway.Register(&stubBackend{answer: "streamed answer"})
	orch := orchestrator.New(sessions, nil, nil, gateway, orchestrator.Config{})

	handler := stream.New(orch)

	req := httptest.NewRequest(http.MethodGet, "/search/stream?user_input=hello", nil)
	rec := httptest.NewRecorder()
	handler.HandleStreamRequest(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	body := rec.Body.String()
	for _, event := range []string{`"event":"start"`, `"event":"message"`, `"event":"end"`} {
		if !strings.Contains(body, event) {
			t.Fatalf("missing %s frame in stream:\n%s", event, body)
		}
	}
	if !strings.Contains(body, "streamed answer") {
		t.Fatalf("answer missing from stream:\n%s", body)
	}

	// The finished exchange is committed to session memory.
	if sessions.Len() != 1 {
		t.Fatalf("expected one session, got %d", sessions.Len())
	}
	stats := sessions.Stats()
	if stats[0].TurnCount != 2 {
		t.Fatalf("expected committed exchange, got %d turns", stats[0].TurnCount)
	}
}

func TestStreamRequestMissingInput(t *testing.T) {
	sessions := conversation.NewStore()
	gateway := llm.NewGateway(3, time.Second)
	orch := orchestrator.New(sessions, nil, nil, gateway, orchestrator.Config{})

	handler := stream.New(orch)

	req := httptest.NewRequest(http.MethodGet, "/search/stream", nil)
	rec := httptest.NewRecorder()
	handler.HandleStreamRequest(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStreamRequestUnknownModel(t *testing.T) {
	sessions := conversation.NewStore()
	gateway := llm.NewGateway(3, time.Second)
	orch := orchestrator.New(sessions, nil, nil, gateway, orchestrator.Config{})

	handler := stream.New(orch)

	req := httptest.NewRequest(http.MethodGet, "/search/stream?user_input=hi&model=nope", nil)
	rec := httptest.NewRecorder()
	handler.HandleStreamRequest(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, `"event":"error"`) {
		t.Fatalf("expected error frame:\n%s", body)
	}

	// Failed streams never reach session memory.
	if sessions.Len() != 1 {
		t.Fatalf("expected resolved session, got %d", sessions.Len())
	}
	if stats := sessions.Stats(); stats[0].TurnCount != 0 {
		t.Fatalf("failed stream must not be committed, got %d turns", stats[0].TurnCount)
	}
}
