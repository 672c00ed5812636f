package orchestrator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopquery/backend/internal/model/product"
	store "github.com/shopquery/backend/internal/service/conversation"
	"github.com/shopquery/backend/internal/service/llm"
	"github.com/shopquery/backend/internal/service/orchestrator"
	"github.com/shopquery/backend/internal/service/prompt"
)

type fakeBackend struct {
	name   string
	answer string
	err    error
	calls  int
}

func (f *fakeBackend) Name() string                   { return f.name }
func (f *fakeBackend) Capabilities() llm.Capabilities { return llm.Capabilities{} }
func (f *fakeBackend) Generate(context.Context, prompt.Prompt) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakeRetriever struct {
	items []product.RetrievedItem
	err   error
}

func (f *fakeRetriever) Search(context.Context, string, int) ([]product.RetrievedItem, error) {
	return f.items, f.err
}

type fakeSearcher struct {
	snippet string
	err     error
}

func (f *fakeSearcher) Search(context.Context, string) (string, error) {
	return f.snippet, f.err
}

func newGateway(backends ...llm.Backend) *llm.Gateway {
	g := llm.NewGateway(3, time.Second)
	for _, b := range backends {
		g.Register(b)
	}
	return g
}

func TestHandleSuccess(t *testing.T) {
	sessions := store.NewStore()
	gw := newGateway(&fakeBackend{name: "gemini", answer: "the kettle is $10"})
	retr := &fakeRetriever{items: []product.RetrievedItem{{Name: "Kettle", Category: "Kitchen", Chunk: "1.7L"}}}
	search := &fakeSearcher{snippet: "kettles trending"}

	o := orchestrator.New(sessions, retr, search, gw, orchestrator.Config{})

	res := o.Handle(context.Background(), orchestrator.Request{
		UserText: "how much is the kettle?",
		Model:    "gemini",
	})

	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Answer != "the kettle is $10" {
		t.Fatalf("unexpected answer %q", res.Answer)
	}
	if res.SessionID == "" {
		t.Fatal("expected minted session id")
	}
	if res.RetrievedCount != 1 {
		t.Fatalf("expected 1 retrieved item, got %d", res.RetrievedCount)
	}
	if res.HasHistory {
		t.Fatal("first exchange should see no history")
	}

	turns, err := sessions.History(context.Background(), res.SessionID)
	if err != nil {
		t.Fatalf("History err: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected exchange appended, got %d turns", len(turns))
	}
}

func TestHandleSecondTurnSeesHistory(t *testing.T) {
	sessions := store.NewStore()
	gw := newGateway(&fakeBackend{name: "gemini", answer: "hello"})
	o := orchestrator.New(sessions, nil, nil, gw, orchestrator.Config{})

	first := o.Handle(context.Background(), orchestrator.Request{UserText: "hi", Model: "gemini"})
	second := o.Handle(context.Background(), orchestrator.Request{
		UserText:  "and again",
		Model:     "gemini",
		SessionID: first.SessionID,
	})

	if second.SessionID != first.SessionID {
		t.Fatalf("session id changed: %s vs %s", first.SessionID, second.SessionID)
	}
	if !second.HasHistory {
		t.Fatal("second exchange should see history")
	}
}

func TestHandleDegradedCollaborators(t *testing.T) {
	sessions := store.NewStore()
	gw := newGateway(&fakeBackend{name: "gemini", answer: "best effort"})
	retr := &fakeRetriever{err: errors.New("index down")}
	search := &fakeSearcher{err: errors.New("serpapi down")}

	o := orchestrator.New(sessions, retr, search, gw, orchestrator.Config{})

	res := o.Handle(context.Background(), orchestrator.Request{UserText: "q", Model: "gemini"})

	if res.Err != nil {
		t.Fatalf("collaborator failure must not fail the request: %v", res.Err)
	}
	if res.Answer != "best effort" {
		t.Fatalf("unexpected answer %q", res.Answer)
	}
	if res.RetrievedCount != 0 {
		t.Fatalf("expected 0 retrieved items, got %d", res.RetrievedCount)
	}
}

func TestHandleBackendFailureDoesNotAppend(t *testing.T) {
	sessions := store.NewStore()
	gw := newGateway(&fakeBackend{name: "gemini", err: errors.New("boom")})
	o := orchestrator.New(sessions, nil, nil, gw, orchestrator.Config{})

	res := o.Handle(context.Background(), orchestrator.Request{UserText: "q", Model: "gemini"})

	if res.Err == nil {
		t.Fatal("expected structured backend error")
	}
	if res.Answer == "" {
		t.Fatal("expected apology answer")
	}

	turns, err := sessions.History(context.Background(), res.SessionID)
	if err != nil {
		t.Fatalf("History err: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("failed exchange must not pollute memory, got %d turns", len(turns))
	}
}

func TestHandleFallbackUsedOnce(t *testing.T) {
	sessions := store.NewStore()
	primary := &fakeBackend{name: "gemini", err: errors.New("boom")}
	secondary := &fakeBackend{name: "huggingface", answer: "fallback answer"}
	gw := newGateway(primary, secondary)

	o := orchestrator.New(sessions, nil, nil, gw, orchestrator.Config{FallbackModel: "huggingface"})

	res := o.Handle(context.Background(), orchestrator.Request{UserText: "q", Model: "gemini"})

	if res.Err != nil {
		t.Fatalf("fallback should have answered: %v", res.Err)
	}
	if res.Answer != "fallback answer" {
		t.Fatalf("unexpected answer %q", res.Answer)
	}
	if secondary.calls != 1 {
		t.Fatalf("expected exactly one fallback call, got %d", secondary.calls)
	}
}

func TestHandleNoFallbackWhenSameModel(t *testing.T) {
	sessions := store.NewStore()
	primary := &fakeBackend{name: "gemini", err: errors.New("boom")}
	gw := newGateway(primary)

	o := orchestrator.New(sessions, nil, nil, gw, orchestrator.Config{FallbackModel: "gemini"})

	res := o.Handle(context.Background(), orchestrator.Request{UserText: "q", Model: "gemini"})

	if res.Err == nil {
		t.Fatal("expected failure without fallback")
	}
	if primary.calls != 1 {
		t.Fatalf("expected a single invocation, got %d", primary.calls)
	}
}

func TestHandleUnknownModel(t *testing.T) {
	sessions := store.NewStore()
	gw := newGateway(&fakeBackend{name: "gemini", answer: "hi"})
	o := orchestrator.New(sessions, nil, nil, gw, orchestrator.Config{})

	res := o.Handle(context.Background(), orchestrator.Request{UserText: "q", Model: "nope"})

	if res.Err == nil || res.Err.Kind != llm.KindUnavailable {
		t.Fatalf("expected unavailable error, got %+v", res.Err)
	}
	if res.Answer == "" {
		t.Fatal("expected apology answer")
	}
}
