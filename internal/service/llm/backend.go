package llm

import (
	"context"

	"github.com/shopquery/backend/internal/service/prompt"
)

// Capabilities describes what a registered backend supports.
type Capabilities struct {
	Streaming bool
	MaxTokens int
}

// Backend is the uniform invocation interface every model provider
// implements. Implementations classify provider failures by wrapping the
// package sentinels (ErrRateLimited, ErrInvalidResponse); transport
// timeouts surface as context errors.
type Backend interface {
	Name() string
	Capabilities() Capabilities

	// Generate produces a complete answer for the assembled prompt.
	Generate(ctx context.Context, p prompt.Prompt) (string, error)
}

// StreamingBackend is implemented by backends that can deliver the answer
// incrementally. Mid-stream errors arrive via Chunk.Err.
type StreamingBackend interface {
	Backend
	Stream(ctx context.Context, p prompt.Prompt) (<-chan Chunk, error)
}

// Chunk is one piece of a streamed answer.
type Chunk struct {
	Content string
	Err     error
}
