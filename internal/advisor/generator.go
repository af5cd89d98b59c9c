// Package advisor assembles recommendation plans from the knowledge base and,
// when a language model backend is reachable, augments them with a generated
// supplement. The assembled plan never depends on the backend being present.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/medscan-ai/medscan/internal/condition"
	"github.com/medscan-ai/medscan/internal/config"
	"github.com/medscan-ai/medscan/internal/entity"
)

// Generator is an optional language model backend. Ping reports whether the
// backend is reachable; Generate produces a short plain-text supplement for
// an already assembled plan.
type Generator interface {
	Ping(ctx context.Context) error
	Generate(ctx context.Context, estimates []condition.Estimate, entities []entity.Entity) (string, error)
}

// New builds the generator named by the config, or nil when the advisor is
// disabled. An unknown type is a configuration error.
func New(cfg config.AdvisorConfig) (Generator, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "ollama":
		return newOllama(cfg), nil
	case "openai":
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("advisor: env %s is empty", cfg.APIKeyEnv)
		}
		return newOpenAI(cfg, key), nil
	default:
		return nil, fmt.Errorf("advisor: unknown type %q", cfg.Type)
	}
}

const maxResponseBytes = 1 << 20

// ollamaGenerator talks to a local Ollama server over its native HTTP API.
type ollamaGenerator struct {
	baseURL string
	model   string
	client  *http.Client
}

func newOllama(cfg config.AdvisorConfig) *ollamaGenerator {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ollamaGenerator{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *ollamaGenerator) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create ollama ping: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping ollama: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("ping ollama: status %d", resp.StatusCode)
	}
	return nil
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (g *ollamaGenerator) Generate(ctx context.Context, estimates []condition.Estimate, entities []entity.Entity) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  g.model,
		Prompt: buildPrompt(estimates, entities),
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call ollama: %w", err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxResponseBytes+1)
	respBody, err := io.ReadAll(limited)
	if err != nil {
		return "", fmt.Errorf("read ollama response: %w", err)
	}
	if len(respBody) > maxResponseBytes {
		return "", fmt.Errorf("ollama response exceeded limit (%d bytes)", maxResponseBytes)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("ollama error: status %d", resp.StatusCode)
	}

	var out ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	text := strings.TrimSpace(out.Response)
	if text == "" {
		return "", fmt.Errorf("ollama response was empty")
	}
	return text, nil
}

// buildPrompt includes only structured findings, never the raw input text,
// so nothing a user typed reaches the backend verbatim.
func buildPrompt(estimates []condition.Estimate, entities []entity.Entity) string {
	var b strings.Builder
	b.WriteString("You are a cautious wellness assistant. Based on the findings below, ")
	b.WriteString("write a short encouraging paragraph of general self-care guidance. ")
	b.WriteString("Do not diagnose. Recommend seeing a clinician for anything persistent.\n")
	if len(entities) > 0 {
		b.WriteString("Reported: ")
		for i, e := range entities {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(e.Label)
		}
		b.WriteString("\n")
	}
	for _, est := range estimates {
		fmt.Fprintf(&b, "Possible factor: %s (weight %.2f)\n", est.Condition, est.Probability)
	}
	return b.String()
}
