package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/shopquery/backend/internal/model/conversation"
	"github.com/shopquery/backend/internal/service/prompt"
)

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// GeminiBackend answers via the Google Gemini API.
type GeminiBackend struct {
	client *genai.Client
	cfg    GeminiConfig
}

// NewGeminiBackend creates the Gemini backend. The API key must be present;
// credential checks happen in config before this is called.
func NewGeminiBackend(ctx context.Context, cfg GeminiConfig) (*GeminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiBackend{client: client, cfg: cfg}, nil
}

// Name implements Backend.
func (b *GeminiBackend) Name() string { return "gemini" }

// Capabilities implements Backend.
func (b *GeminiBackend) Capabilities() Capabilities {
	return Capabilities{Streaming: false, MaxTokens: b.cfg.MaxTokens}
}

// Generate implements Backend. The context blocks travel as the system
// instruction; history and the new user turn become the conversation.
func (b *GeminiBackend) Generate(ctx context.Context, p prompt.Prompt) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.SystemContext(), genai.RoleUser),
	}
	if b.cfg.Temperature > 0 {
		temp := b.cfg.Temperature
		config.Temperature = &temp
	}
	if b.cfg.MaxTokens > 0 {
		config.MaxOutputTokens = int32(b.cfg.MaxTokens)
	}

	result, err := b.client.Models.GenerateContent(ctx, b.cfg.Model, geminiContents(p), config)
	if err != nil {
		if isRateLimitMessage(err.Error()) {
			return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	answer := collectGeminiText(result)
	if answer == "" {
		return "", fmt.Errorf("%w: no text candidates", ErrInvalidResponse)
	}
	return answer, nil
}

// geminiContents maps prompt turns to the Gemini conversation format.
// Gemini names the assistant role "model".
func geminiContents(p prompt.Prompt) []*genai.Content {
	contents := make([]*genai.Content, 0, len(p.History)+1)
	for _, turn := range p.History {
		role := genai.RoleUser
		if turn.Role == conversation.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: turn.Content}},
		})
	}
	contents = append(contents, &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: p.UserText}},
	})
	return contents
}

// collectGeminiText concatenates the text parts of all candidates,
// skipping thought parts.
func collectGeminiText(result *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text == "" || part.Thought {
				continue
			}
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// isRateLimitMessage spots quota errors in the SDK's error text; the genai
// SDK does not export a typed rate-limit error.
func isRateLimitMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit")
}
