// Package llm is the model-invocation gateway: a registry of named
// backends behind one uniform interface, with per-backend availability
// tracking. Selection fails closed; a backend is only disabled after a
// configurable run of consecutive failures.
package llm

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/shopquery/backend/internal/service/prompt"
)

// DefaultFailureThreshold disables a backend after this many consecutive
// failures when the caller configures nothing.
const DefaultFailureThreshold = 3

// DefaultInvokeTimeout bounds a single backend call.
const DefaultInvokeTimeout = 60 * time.Second

// entry pairs a backend with its availability bookkeeping.
type entry struct {
	backend   Backend
	failures  int
	available bool
}

// BackendStatus is a read-only snapshot of one registered backend.
type BackendStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Streaming bool   `json:"streaming"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// Gateway selects a named backend and invokes it with an assembled prompt,
// normalizing every failure into a *BackendError value.
type Gateway struct {
	mu        sync.Mutex
	backends  map[string]*entry
	threshold int
	timeout   time.Duration
}

// NewGateway creates an empty gateway. Backends are registered once at
// process start and the set is immutable afterwards; only availability
// flags change.
func NewGateway(failureThreshold int, invokeTimeout time.Duration) *Gateway {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	if invokeTimeout <= 0 {
		invokeTimeout = DefaultInvokeTimeout
	}
	return &Gateway{
		backends:  make(map[string]*entry),
		threshold: failureThreshold,
		timeout:   invokeTimeout,
	}
}

// Register adds a backend under its own name. Later registrations with the
// same name replace earlier ones.
func (g *Gateway) Register(b Backend) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.backends[b.Name()] = &entry{backend: b, available: true}
	log.Printf("[gateway] registered backend %s (streaming=%v)", b.Name(), b.Capabilities().Streaming)
}

// Has reports whether a backend with the given name is registered.
func (g *Gateway) Has(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.backends[name]
	return ok
}

// Status returns a snapshot of every registered backend, sorted by name.
func (g *Gateway) Status() []BackendStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]BackendStatus, 0, len(g.backends))
	for name, e := range g.backends {
		caps := e.backend.Capabilities()
		out = append(out, BackendStatus{
			Name:      name,
			Available: e.available,
			Streaming: caps.Streaming,
			MaxTokens: caps.MaxTokens,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke sends the prompt to the named backend. An unknown or unavailable
// name fails closed with KindUnavailable before any network I/O. The
// gateway never retries; bounded fallback is the orchestrator's call.
func (g *Gateway) Invoke(ctx context.Context, name string, p prompt.Prompt) (string, error) {
	e := g.selectBackend(name)
	if e == nil {
		return "", &BackendError{Backend: name, Kind: KindUnavailable}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	answer, err := e.backend.Generate(callCtx, p)
	if err != nil {
		g.recordFailure(name, e)
		return "", &BackendError{Backend: name, Kind: classify(err), Err: err}
	}

	g.recordSuccess(e)
	return answer, nil
}

// Stream sends the prompt to the named backend and streams the answer.
// Backends without streaming support deliver the whole answer as a single
// chunk so callers need no separate code path.
func (g *Gateway) Stream(ctx context.Context, name string, p prompt.Prompt) (<-chan Chunk, error) {
	e := g.selectBackend(name)
	if e == nil {
		return nil, &BackendError{Backend: name, Kind: KindUnavailable}
	}

	if sb, ok := e.backend.(StreamingBackend); ok && e.backend.Capabilities().Streaming {
		ch, err := sb.Stream(ctx, p)
		if err != nil {
			g.recordFailure(name, e)
			return nil, &BackendError{Backend: name, Kind: classify(err), Err: err}
		}
		return g.watchStream(name, e, ch), nil
	}

	answer, err := g.Invoke(ctx, name, p)
	if err != nil {
		return nil, err
	}
	out := make(chan Chunk, 1)
	out <- Chunk{Content: answer}
	close(out)
	return out, nil
}

// watchStream forwards chunks while deferring the availability verdict
// until the stream ends.
func (g *Gateway) watchStream(name string, e *entry, src <-chan Chunk) <-chan Chunk {
	out := make(chan Chunk)
	go func() {
		defer close(out)
		failed := false
		for chunk := range src {
			if chunk.Err != nil {
				failed = true
			}
			out <- chunk
		}
		if failed {
			g.recordFailure(name, e)
		} else {
			g.recordSuccess(e)
		}
	}()
	return out
}

// selectBackend returns the entry when it exists and is available.
func (g *Gateway) selectBackend(name string) *entry {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.backends[name]
	if !ok || !e.available {
		return nil
	}
	return e
}

func (g *Gateway) recordSuccess(e *entry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e.failures = 0
}

// recordFailure counts a consecutive failure and clears the availability
// flag once the threshold is reached. A single transient failure never
// disables a backend.
func (g *Gateway) recordFailure(name string, e *entry) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e.failures++
	if e.failures >= g.threshold && e.available {
		e.available = false
		log.Printf("[gateway] backend %s disabled after %d consecutive failures", name, e.failures)
	}
}

// classify maps an invocation error to its gateway kind.
func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrInvalidResponse):
		return KindInvalidResponse
	default:
		return KindUnavailable
	}
}
