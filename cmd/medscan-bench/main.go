package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/medscan-ai/medscan/internal/advisor"
	"github.com/medscan-ai/medscan/internal/capability"
	"github.com/medscan-ai/medscan/internal/config"
	"github.com/medscan-ai/medscan/internal/emergency"
	"github.com/medscan-ai/medscan/internal/knowledge"
	"github.com/medscan-ai/medscan/internal/pipeline"
	"github.com/medscan-ai/medscan/internal/telemetry"
)

var sampleInputs = []string{
	"I've been feeling really tired lately and sometimes dizzy when I stand up",
	"what helps with tension headaches?",
	"mild fever and a cough since yesterday, plus some nausea after meals",
	"my lower back hurts after sitting all day and I can't sleep well",
	"hello, just checking in",
}

func main() {
	cfgPath := flag.String("config", "", "path to config yaml (optional)")
	n := flag.Int("n", 200, "number of iterations")
	text := flag.String("text", "", "input text to analyze (defaults to a rotating sample set)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	kb, err := knowledge.Load(cfg.Knowledge.Path)
	if err != nil {
		log.Fatalf("load knowledge base: %v", err)
	}
	det, err := emergency.New()
	if err != nil {
		log.Fatalf("compile emergency patterns: %v", err)
	}
	tel, err := telemetry.NewProvider(context.Background(), telemetry.Config{Enabled: false})
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}

	caps := capability.NewDetector(cfg.NLP, nil).Detect(context.Background())
	inferTimeout := time.Duration(cfg.NLP.InferTimeoutMS) * time.Millisecond
	asm := advisor.NewAssembler(kb, nil, cfg.Pipeline.TopConditions, time.Second)
	pipe := pipeline.New(kb, caps, det, asm, inferTimeout, tel)

	inputs := sampleInputs
	if *text != "" {
		inputs = []string{*text}
	}

	// Warmup
	for i := 0; i < 5; i++ {
		pipe.Analyze(context.Background(), inputs[i%len(inputs)])
	}

	if *n <= 0 {
		*n = 1
	}

	durations := make([]time.Duration, 0, *n)
	for i := 0; i < *n; i++ {
		start := time.Now()
		pipe.Analyze(context.Background(), inputs[i%len(inputs)])
		durations = append(durations, time.Since(start))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var total time.Duration
	for _, d := range durations {
		total += d
	}

	avg := float64(total.Microseconds()) / 1000.0 / float64(len(durations))
	p50 := float64(durations[len(durations)/2].Microseconds()) / 1000.0
	p95 := float64(durations[int(float64(len(durations))*0.95)].Microseconds()) / 1000.0
	max := float64(durations[len(durations)-1].Microseconds()) / 1000.0

	fmt.Printf("bench: n=%d tier=%s avg_ms=%.3f p50_ms=%.3f p95_ms=%.3f max_ms=%.3f kb_terms=%d\n",
		len(durations),
		caps.Descriptor.Tier,
		avg,
		p50,
		p95,
		max,
		kb.Len(),
	)
}
