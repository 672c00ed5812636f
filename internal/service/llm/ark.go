package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/shopquery/backend/internal/model/conversation"
	"github.com/shopquery/backend/internal/service/prompt"
)

// ArkConfig configures the Ark (Volcengine) backend.
type ArkConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Region      string
	Temperature float32
	MaxTokens   int
}

// ArkBackend answers via an eino chat model backed by Ark. It is the one
// streaming-capable backend in the default registry.
type ArkBackend struct {
	chatModel model.ChatModel
	cfg       ArkConfig
}

// NewArkBackend creates the Ark backend.
func NewArkBackend(ctx context.Context, cfg ArkConfig) (*ArkBackend, error) {
	modelCfg := &ark.ChatModelConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Region:  cfg.Region,
	}
	if cfg.Temperature > 0 {
		temp := cfg.Temperature
		modelCfg.Temperature = &temp
	}
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		modelCfg.MaxTokens = &maxTokens
	}

	chatModel, err := ark.NewChatModel(ctx, modelCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ark chat model: %w", err)
	}
	return &ArkBackend{chatModel: chatModel, cfg: cfg}, nil
}

// Name implements Backend.
func (b *ArkBackend) Name() string { return "ark" }

// Capabilities implements Backend.
func (b *ArkBackend) Capabilities() Capabilities {
	return Capabilities{Streaming: true, MaxTokens: b.cfg.MaxTokens}
}

// Generate implements Backend.
func (b *ArkBackend) Generate(ctx context.Context, p prompt.Prompt) (string, error) {
	response, err := b.chatModel.Generate(ctx, arkMessages(p))
	if err != nil {
		return "", fmt.Errorf("ark generation failed: %w", err)
	}
	if response == nil || response.Content == "" {
		return "", fmt.Errorf("%w: empty completion", ErrInvalidResponse)
	}
	return response.Content, nil
}

// Stream implements StreamingBackend.
func (b *ArkBackend) Stream(ctx context.Context, p prompt.Prompt) (<-chan Chunk, error) {
	reader, err := b.chatModel.Stream(ctx, arkMessages(p))
	if err != nil {
		return nil, fmt.Errorf("ark stream failed: %w", err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer reader.Close()
		for {
			msg, recvErr := reader.Recv()
			if errors.Is(recvErr, io.EOF) {
				return
			}
			if recvErr != nil {
				out <- Chunk{Err: recvErr}
				return
			}
			if msg != nil && msg.Content != "" {
				out <- Chunk{Content: msg.Content}
			}
		}
	}()
	return out, nil
}

// arkMessages maps the prompt to eino schema messages.
func arkMessages(p prompt.Prompt) []*schema.Message {
	messages := make([]*schema.Message, 0, len(p.History)+2)
	messages = append(messages, schema.SystemMessage(p.SystemContext()))
	for _, turn := range p.History {
		switch turn.Role {
		case conversation.RoleUser:
			messages = append(messages, schema.UserMessage(turn.Content))
		case conversation.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		}
	}
	messages = append(messages, schema.UserMessage(p.UserText))
	return messages
}
