// Package orchestrator receives a user turn, gathers context from the
// retrieval and web-search collaborators, assembles the bounded prompt,
// invokes the model gateway, and records the completed exchange. Every
// path hands a value back to the HTTP layer; nothing here faults the
// request.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopquery/backend/internal/model/product"
	store "github.com/shopquery/backend/internal/service/conversation"
	"github.com/shopquery/backend/internal/service/llm"
	"github.com/shopquery/backend/internal/service/prompt"
	"github.com/shopquery/backend/internal/service/retrieval"
	"github.com/shopquery/backend/internal/service/websearch"
)

// DefaultCollaboratorTimeout bounds each context-gathering call.
const DefaultCollaboratorTimeout = 10 * time.Second

// Config tunes the orchestrator.
type Config struct {
	// TopK is how many product matches to request.
	TopK int

	// PromptSizeLimit caps the rendered prompt, in runes.
	PromptSizeLimit int

	// CollaboratorTimeout bounds each retrieval/web-search call.
	CollaboratorTimeout time.Duration

	// FallbackModel names the secondary backend tried once when the
	// requested backend fails. Empty disables fallback.
	FallbackModel string
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = retrieval.DefaultTopK
	}
	if c.PromptSizeLimit <= 0 {
		c.PromptSizeLimit = prompt.DefaultSizeLimit
	}
	if c.CollaboratorTimeout <= 0 {
		c.CollaboratorTimeout = DefaultCollaboratorTimeout
	}
	return c
}

// Request is one inbound user turn.
type Request struct {
	UserText   string
	Model      string
	SessionID  string
	WindowSize int
}

// Result is the answer plus session metadata. Err carries the structured
// backend failure when the answer is an apology; it is never nil alongside
// an empty answer.
type Result struct {
	Answer         string
	SessionID      string
	RetrievedCount int
	HasHistory     bool
	Err            *llm.BackendError
}

// Orchestrator wires the session store, both collaborators, and the model
// gateway. Collaborators may be nil; a missing collaborator degrades to
// empty context, same as a failing one.
type Orchestrator struct {
	store     *store.Store
	retriever retrieval.Retriever
	searcher  websearch.Searcher
	gateway   *llm.Gateway
	cfg       Config
}

// New creates the orchestrator.
func New(sessions *store.Store, retriever retrieval.Retriever, searcher websearch.Searcher, gateway *llm.Gateway, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:     sessions,
		retriever: retriever,
		searcher:  searcher,
		gateway:   gateway,
		cfg:       cfg.withDefaults(),
	}
}

// Handle runs one full exchange. On gateway failure it attempts the
// configured fallback backend at most once, then surfaces an apology
// answer with the structured error; failed exchanges are not appended to
// session memory.
func (o *Orchestrator) Handle(ctx context.Context, req Request) Result {
	sessionID, p, retrieved, hasHistory := o.prepare(ctx, req)

	answer, invokeErr := o.invokeWithFallback(ctx, req.Model, p)
	result := Result{
		SessionID:      sessionID,
		RetrievedCount: retrieved,
		HasHistory:     hasHistory,
	}

	if invokeErr != nil {
		result.Answer = apology(req.Model)
		result.Err = invokeErr
		return result
	}

	if err := o.store.Append(ctx, sessionID, req.UserText, answer); err != nil {
		// The session was evicted mid-flight; the answer is still valid,
		// the next turn simply starts a fresh session.
		log.Printf("[orchestrator] append skipped for session=%s: %v", sessionID, err)
	}

	result.Answer = answer
	return result
}

// StreamSession is the context handed to the SSE path: metadata up front,
// chunks as they arrive. The caller commits the exchange once the stream
// finishes cleanly.
type StreamSession struct {
	SessionID      string
	RetrievedCount int
	HasHistory     bool
	Chunks         <-chan llm.Chunk
}

// HandleStream is the streaming variant of Handle. The exchange is not
// recorded here; call Commit with the accumulated answer after the stream
// ends without error.
func (o *Orchestrator) HandleStream(ctx context.Context, req Request) (StreamSession, *llm.BackendError) {
	sessionID, p, retrieved, hasHistory := o.prepare(ctx, req)

	session := StreamSession{
		SessionID:      sessionID,
		RetrievedCount: retrieved,
		HasHistory:     hasHistory,
	}

	chunks, err := o.gateway.Stream(ctx, req.Model, p)
	if err != nil {
		be, _ := llm.AsBackendError(err)
		return session, be
	}
	session.Chunks = chunks
	return session, nil
}

// Commit appends a completed streamed exchange to session memory.
func (o *Orchestrator) Commit(ctx context.Context, sessionID, userText, answer string) {
	if err := o.store.Append(ctx, sessionID, userText, answer); err != nil {
		log.Printf("[orchestrator] append skipped for session=%s: %v", sessionID, err)
	}
}

// prepare resolves the session and gathers context from both
// collaborators in parallel, best-effort. No store lock is held while the
// collaborators run; history is a snapshot taken before the calls.
func (o *Orchestrator) prepare(ctx context.Context, req Request) (string, prompt.Prompt, int, bool) {
	sessionID := o.store.Resolve(ctx, req.SessionID, req.WindowSize)

	history, err := o.store.History(ctx, sessionID)
	if err != nil {
		history = nil
	}

	items, snippet := o.gatherContext(ctx, req.UserText)

	p := prompt.Build(req.UserText, items, snippet, history, o.cfg.PromptSizeLimit)
	return sessionID, p, len(items), len(history) > 0
}

// gatherContext queries retrieval and web search concurrently. Either
// collaborator failing or timing out degrades to an empty result for that
// source; the request always proceeds.
func (o *Orchestrator) gatherContext(ctx context.Context, query string) ([]product.RetrievedItem, string) {
	var (
		wg      sync.WaitGroup
		items   []product.RetrievedItem
		snippet string
	)

	if o.retriever != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, o.cfg.CollaboratorTimeout)
			defer cancel()

			found, err := o.retriever.Search(callCtx, query, o.cfg.TopK)
			if err != nil {
				log.Printf("[orchestrator] retrieval degraded: %v", err)
				return
			}
			items = found
		}()
	}

	if o.searcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, o.cfg.CollaboratorTimeout)
			defer cancel()

			found, err := o.searcher.Search(callCtx, query)
			if err != nil {
				log.Printf("[orchestrator] web search degraded: %v", err)
				return
			}
			snippet = found
		}()
	}

	wg.Wait()
	return items, snippet
}

// invokeWithFallback tries the requested backend, then the configured
// secondary at most once. Never a loop.
func (o *Orchestrator) invokeWithFallback(ctx context.Context, model string, p prompt.Prompt) (string, *llm.BackendError) {
	answer, err := o.gateway.Invoke(ctx, model, p)
	if err == nil {
		return answer, nil
	}

	be, _ := llm.AsBackendError(err)
	fallback := o.cfg.FallbackModel
	if fallback == "" || fallback == model {
		return "", be
	}

	log.Printf("[orchestrator] backend %s failed (%s), trying fallback %s", model, be.Kind, fallback)
	answer, err = o.gateway.Invoke(ctx, fallback, p)
	if err != nil {
		fbErr, _ := llm.AsBackendError(err)
		log.Printf("[orchestrator] fallback %s failed (%s)", fallback, fbErr.Kind)
		return "", be // surface the original failure
	}
	return answer, nil
}

// apology is the user-facing answer when every invocation path failed.
func apology(model string) string {
	return fmt.Sprintf("Sorry, I couldn't process that request with the %s model right now. Please try again in a moment.", model)
}
