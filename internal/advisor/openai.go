package advisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/medscan-ai/medscan/internal/condition"
	"github.com/medscan-ai/medscan/internal/config"
	"github.com/medscan-ai/medscan/internal/entity"
)

// openaiGenerator drives the OpenAI Chat Completions API through the official
// community client. The key never appears in config files, only in the env
// var the config names.
type openaiGenerator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func newOpenAI(cfg config.AdvisorConfig, apiKey string) *openaiGenerator {
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &openaiGenerator{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: timeout,
	}
}

func (g *openaiGenerator) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("ping openai: %w", err)
	}
	return nil
}

func (g *openaiGenerator) Generate(ctx context.Context, estimates []condition.Estimate, entities []entity.Entity) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(estimates, entities)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("call openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai response had no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openai response was empty")
	}
	return text, nil
}
