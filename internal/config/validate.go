package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}
	if cfg.Server.RateLimitRPS < 0 {
		return errors.New("server.rate_limit_rps must not be negative")
	}

	for _, dir := range []struct {
		name string
		path string
	}{
		{"nlp.general_model_dir", cfg.NLP.GeneralModelDir},
		{"nlp.medical_model_dir", cfg.NLP.MedicalModelDir},
	} {
		if dir.path == "" {
			continue
		}
		if info, err := os.Stat(dir.path); err != nil || !info.IsDir() {
			return fmt.Errorf("%s %q is not a readable directory", dir.name, dir.path)
		}
	}

	switch cfg.Advisor.Type {
	case "", "ollama", "openai":
	default:
		return fmt.Errorf("advisor.type %q is not supported (ollama, openai)", cfg.Advisor.Type)
	}
	if cfg.Advisor.Type != "" {
		if strings.TrimSpace(cfg.Advisor.Model) == "" {
			return errors.New("advisor.model must be set when advisor is enabled")
		}
		if cfg.Advisor.BaseURL != "" {
			u, err := url.Parse(cfg.Advisor.BaseURL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("advisor.base_url %q is not a valid URL", cfg.Advisor.BaseURL)
			}
		}
	}
	if cfg.Advisor.Type == "openai" && strings.TrimSpace(cfg.Advisor.APIKeyEnv) == "" {
		return errors.New("advisor.api_key_env must be set for advisor.type=openai")
	}

	if cfg.Telemetry.Enabled {
		if strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
			return errors.New("telemetry.endpoint must be set when telemetry is enabled")
		}
		switch strings.ToLower(cfg.Telemetry.Protocol) {
		case "grpc", "http":
		default:
			return fmt.Errorf("telemetry.protocol %q is not supported (grpc, http)", cfg.Telemetry.Protocol)
		}
	}

	return nil
}
