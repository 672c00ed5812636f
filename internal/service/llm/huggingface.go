package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopquery/backend/internal/service/prompt"
)

const defaultHFBaseURL = "https://api-inference.huggingface.co/models"

// HuggingFaceConfig configures the HuggingFace Inference API backend.
type HuggingFaceConfig struct {
	Token       string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// HuggingFaceBackend answers via the HuggingFace Inference API. The whole
// prompt travels as one flattened input string.
type HuggingFaceBackend struct {
	cfg    HuggingFaceConfig
	client *http.Client
}

// NewHuggingFaceBackend creates the HuggingFace backend.
func NewHuggingFaceBackend(cfg HuggingFaceConfig) *HuggingFaceBackend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultHFBaseURL
	}
	return &HuggingFaceBackend{
		cfg:    cfg,
		client: &http.Client{Timeout: 90 * time.Second},
	}
}

// Name implements Backend.
func (b *HuggingFaceBackend) Name() string { return "huggingface" }

// Capabilities implements Backend.
func (b *HuggingFaceBackend) Capabilities() Capabilities {
	return Capabilities{Streaming: false, MaxTokens: b.cfg.MaxTokens}
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxNewTokens int     `json:"max_new_tokens,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	ReturnFull   bool    `json:"return_full_text"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

// Generate implements Backend.
func (b *HuggingFaceBackend) Generate(ctx context.Context, p prompt.Prompt) (string, error) {
	rendered := p.Render()

	payload, err := json.Marshal(hfRequest{
		Inputs: rendered,
		Parameters: hfParameters{
			MaxNewTokens: b.cfg.MaxTokens,
			Temperature:  b.cfg.Temperature,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode huggingface request: %w", err)
	}

	url := b.cfg.BaseURL + "/" + b.cfg.Model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build huggingface request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("huggingface request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read huggingface response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: %s", ErrRateLimited, strings.TrimSpace(string(body)))
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: status %d: %s", ErrInvalidResponse, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var generations []hfGeneration
	if err := json.Unmarshal(body, &generations); err != nil || len(generations) == 0 {
		return "", fmt.Errorf("%w: unexpected payload shape", ErrInvalidResponse)
	}

	answer := generations[0].GeneratedText
	// Older inference endpoints echo the prompt back; keep only the
	// completion after the answer cue.
	if idx := strings.LastIndex(answer, "Answer:"); idx >= 0 && strings.HasPrefix(answer, rendered[:min(len(rendered), 64)]) {
		answer = answer[idx+len("Answer:"):]
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("%w: empty generation", ErrInvalidResponse)
	}
	return answer, nil
}
