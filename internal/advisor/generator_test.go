package advisor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/medscan-ai/medscan/internal/condition"
	"github.com/medscan-ai/medscan/internal/config"
	"github.com/medscan-ai/medscan/internal/entity"
)

func configFor(typ string) config.AdvisorConfig {
	return config.AdvisorConfig{Type: typ, Model: "mistral:7b", TimeoutMS: 2000}
}

func TestOllamaGenerate(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.URL.Path == "/api/tags" {
			w.Write([]byte(`{"models":[]}`))
			return
		}
		w.Write([]byte(`{"response":"  drink more water  ","done":true}`))
	}))
	defer srv.Close()

	cfg := configFor("ollama")
	cfg.BaseURL = srv.URL
	g := newOllama(cfg)

	if err := g.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	text, err := g.Generate(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "drink more water" {
		t.Fatalf("Generate = %q, want trimmed response", text)
	}
	if gotPath != "/api/generate" {
		t.Fatalf("last path = %q, want /api/generate", gotPath)
	}
}

func TestOllamaGenerateErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := configFor("ollama")
	cfg.BaseURL = srv.URL
	g := newOllama(cfg)

	if _, err := g.Generate(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for 404 response")
	}
	if err := g.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error for 404 response")
	}
}

func TestBuildPromptOmitsRawText(t *testing.T) {
	ents := []entity.Entity{{Text: "pounding headache", Label: "headache"}}
	est := []condition.Estimate{{Condition: "Tension headache", Probability: 0.31}}
	prompt := buildPrompt(est, ents)
	if prompt == "" {
		t.Fatal("empty prompt")
	}
	for _, want := range []string{"headache", "Tension headache"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "pounding headache") {
		t.Fatal("prompt leaked raw input text")
	}
}
