package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/medscan-ai/medscan/internal/advisor"
	"github.com/medscan-ai/medscan/internal/capability"
	"github.com/medscan-ai/medscan/internal/config"
	"github.com/medscan-ai/medscan/internal/emergency"
	"github.com/medscan-ai/medscan/internal/knowledge"
	"github.com/medscan-ai/medscan/internal/pipeline"
	"github.com/medscan-ai/medscan/internal/server"
	"github.com/medscan-ai/medscan/internal/telemetry"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	addrFlag := flag.String("addr", "", "HTTP listen address (overrides config)")
	configPath := flag.String("config", "medscan.yaml", "Path to config file")
	flag.Parse()

	// Optional .env for API keys; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	addr := cfg.Server.Addr
	if *addrFlag != "" {
		addr = *addrFlag
	}

	kb, err := knowledge.Load(cfg.Knowledge.Path)
	if err != nil {
		log.Fatalf("failed to load knowledge base: %v", err)
	}

	// Emergency screening is the one stage that must never be absent.
	det, err := emergency.New()
	if err != nil {
		log.Fatalf("failed to compile emergency patterns: %v", err)
	}

	tel, err := telemetry.NewProvider(context.Background(), telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Protocol: cfg.Telemetry.Protocol,
		Service:  "medscan",
		Version:  version,
	})
	if err != nil {
		log.Fatalf("failed to init telemetry: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tel.Shutdown(ctx)
	}()

	gen, err := advisor.New(cfg.Advisor)
	if err != nil {
		log.Fatalf("failed to init advisor: %v", err)
	}

	caps := capability.NewDetector(cfg.NLP, probeOrNil(gen)).Detect(context.Background())

	inferTimeout := time.Duration(cfg.NLP.InferTimeoutMS) * time.Millisecond
	advisorTimeout := time.Duration(cfg.Advisor.TimeoutMS) * time.Millisecond
	asm := advisor.NewAssembler(kb, gen, cfg.Pipeline.TopConditions, advisorTimeout)
	pipe := pipeline.New(kb, caps, det, asm, inferTimeout, tel)

	srv := server.NewServer(cfg, pipe)
	log.Printf("Starting medscan (tier %s) on %s...", caps.Descriptor.Tier, addr)
	if err := srv.Start(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// probeOrNil avoids handing the detector a non-nil interface wrapping a nil
// generator.
func probeOrNil(gen advisor.Generator) capability.Probe {
	if gen == nil {
		return nil
	}
	return gen
}
