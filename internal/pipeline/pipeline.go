// Package pipeline orchestrates one analysis pass: emergency screening,
// entity extraction, intent classification, condition mapping, and plan
// assembly. Every stage works at every capability tier; only quality of the
// intermediate signals changes with the tier.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/medscan-ai/medscan/internal/advisor"
	"github.com/medscan-ai/medscan/internal/capability"
	"github.com/medscan-ai/medscan/internal/condition"
	"github.com/medscan-ai/medscan/internal/emergency"
	"github.com/medscan-ai/medscan/internal/entity"
	"github.com/medscan-ai/medscan/internal/intent"
	"github.com/medscan-ai/medscan/internal/knowledge"
	"github.com/medscan-ai/medscan/internal/telemetry"
)

// Result is the full outcome of analyzing one input.
type Result struct {
	Entities         []entity.Entity      `json:"entities"`
	Intent           intent.Intent        `json:"intent"`
	Conditions       []condition.Estimate `json:"conditions"`
	Emergency        bool                 `json:"emergency"`
	EmergencyMatches []string             `json:"emergency_matches,omitempty"`
	Recommendations  advisor.Plan         `json:"recommendations"`
	Tier             capability.Tier      `json:"tier"`
	Degraded         bool                 `json:"degraded"`
	ElapsedMS        float64              `json:"elapsed_ms"`
}

// Pipeline holds the stage implementations selected at startup. It is safe
// for concurrent use.
type Pipeline struct {
	kb         *knowledge.Base
	extractor  entity.Extractor
	emergency  *emergency.Detector
	classifier *intent.Classifier
	assembler  *advisor.Assembler
	desc       capability.Descriptor
	tel        *telemetry.Provider
}

// New wires a pipeline from detected capabilities. The extractor is chosen
// once from the capability result; the tier reported in every Result is the
// tier that was actually active, not the one that was configured.
func New(kb *knowledge.Base, caps capability.Result, det *emergency.Detector, asm *advisor.Assembler, inferTimeout time.Duration, tel *telemetry.Provider) *Pipeline {
	return &Pipeline{
		kb:         kb,
		extractor:  entity.Select(caps, kb, inferTimeout),
		emergency:  det,
		classifier: intent.NewClassifier(det),
		assembler:  asm,
		desc:       caps.Descriptor,
		tel:        tel,
	}
}

// Capabilities reports the descriptor the pipeline was built with.
func (p *Pipeline) Capabilities() capability.Descriptor {
	return p.desc
}

// Analyze runs every stage against the input. Empty or blank input yields a
// well-formed result with the default plan rather than an error. Emergency
// screening always runs on the raw text, before and independent of
// extraction, so a model failure can never mask an urgent input.
func (p *Pipeline) Analyze(ctx context.Context, text string) Result {
	started := time.Now()

	res := Result{Tier: p.desc.Tier}
	if strings.TrimSpace(text) == "" {
		res.Intent = intent.Intent{Kind: intent.KindUnknown, Confidence: 0.3}
		// No findings to supplement: force the non-assisted assembly path so
		// a blank request never calls the generator.
		res.Recommendations = p.assembler.Assemble(ctx, nil, nil, false, capability.TierRuleBased)
		res.ElapsedMS = float64(time.Since(started)) / float64(time.Millisecond)
		p.record(res, 0, 0)
		return res
	}

	res.EmergencyMatches = p.emergency.Matches(text)
	res.Emergency = len(res.EmergencyMatches) > 0

	extractStart := time.Now()
	res.Entities, res.Degraded = p.extractor.Extract(ctx, text)
	extractMS := float64(time.Since(extractStart)) / float64(time.Millisecond)

	res.Intent = p.classifier.Classify(text, res.Entities)
	res.Conditions = condition.Map(res.Entities, p.kb)

	advisorStart := time.Now()
	res.Recommendations = p.assembler.Assemble(ctx, res.Conditions, res.Entities, res.Emergency, p.desc.Tier)
	advisorMS := float64(time.Since(advisorStart)) / float64(time.Millisecond)

	res.ElapsedMS = float64(time.Since(started)) / float64(time.Millisecond)
	p.record(res, extractMS, advisorMS)
	return res
}

func (p *Pipeline) record(res Result, extractMS, advisorMS float64) {
	if p.tel == nil {
		return
	}
	p.tel.RecordAnalysis(res.Tier.String(), string(res.Intent.Kind), res.Emergency, res.Degraded, res.ElapsedMS, extractMS, advisorMS)
}
