package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds medscan configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	NLP       NLPConfig       `yaml:"nlp"`
	Advisor   AdvisorConfig   `yaml:"advisor"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Addr         string `yaml:"addr"`           // HTTP listen address, e.g. ":8080"
	MaxBodyBytes int64  `yaml:"max_body_bytes"` // request body cap
	RateLimitRPS int    `yaml:"rate_limit_rps"` // 0 disables rate limiting
	RateBurst    int    `yaml:"rate_burst"`
}

type KnowledgeConfig struct {
	// Path to a knowledge YAML file. Empty means the embedded default base.
	Path string `yaml:"path"`
}

// NLPConfig describes the optional model backends. A backend whose dir is
// empty or fails to load is simply skipped at capability detection.
type NLPConfig struct {
	GeneralModelDir string `yaml:"general_model_dir"`
	MedicalModelDir string `yaml:"medical_model_dir"`
	SeqLen          int    `yaml:"seq_len"`
	InferTimeoutMS  int    `yaml:"infer_timeout_ms"`
}

type AdvisorConfig struct {
	Type      string `yaml:"type"`        // "ollama" | "openai" | "" (disabled)
	BaseURL   string `yaml:"base_url"`    // e.g. "http://localhost:11434"
	Model     string `yaml:"model"`       // e.g. "mistral:7b"
	APIKeyEnv string `yaml:"api_key_env"` // env var holding the key (openai)
	TimeoutMS int    `yaml:"timeout_ms"`
}

type PipelineConfig struct {
	// TopConditions caps how many ranked conditions feed the merged plan.
	TopConditions int `yaml:"top_conditions"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"` // grpc | http
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		cfg.Server.MaxBodyBytes = 64 * 1024
	}
	if cfg.Server.RateBurst <= 0 {
		cfg.Server.RateBurst = 20
	}

	if cfg.NLP.SeqLen <= 0 {
		cfg.NLP.SeqLen = 256
	}
	if cfg.NLP.InferTimeoutMS <= 0 {
		cfg.NLP.InferTimeoutMS = 2000
	}

	if cfg.Advisor.TimeoutMS <= 0 {
		cfg.Advisor.TimeoutMS = 10000
	}
	if cfg.Advisor.Type == "ollama" && cfg.Advisor.BaseURL == "" {
		cfg.Advisor.BaseURL = "http://localhost:11434"
	}
	if cfg.Advisor.Type != "" && cfg.Advisor.Model == "" {
		cfg.Advisor.Model = "mistral:7b"
	}

	if cfg.Pipeline.TopConditions <= 0 {
		cfg.Pipeline.TopConditions = 3
	}

	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
}
