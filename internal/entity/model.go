package entity

import (
	"context"
	"time"

	"github.com/medscan-ai/medscan/internal/capability"
	"github.com/medscan-ai/medscan/internal/knowledge"
	"github.com/medscan-ai/medscan/internal/nlpmodel"
	"github.com/medscan-ai/medscan/internal/redact"
)

// labelTranslation maps model entity labels onto the domain's category set.
// Labels outside the table land in CategoryOther.
var labelTranslation = map[string]knowledge.Category{
	"SYMPTOM":   knowledge.CategorySymptom,
	"SIGN":      knowledge.CategorySymptom,
	"PROBLEM":   knowledge.CategorySymptom,
	"DISEASE":   knowledge.CategoryCondition,
	"CONDITION": knowledge.CategoryCondition,
	"DIAGNOSIS": knowledge.CategoryCondition,
	"ANATOMY":   knowledge.CategoryBodyPart,
	"BODY_PART": knowledge.CategoryBodyPart,
}

// inferrer is what ModelExtractor needs from a model backend; satisfied by
// *nlpmodel.Model and by test fakes.
type inferrer interface {
	Infer(text string) ([]nlpmodel.Span, error)
}

// ModelExtractor delegates tokenization and tagging to an ONNX model and
// falls back to rule matching for anything the model does not label. All
// model errors and timeouts degrade to the rule-based result.
type ModelExtractor struct {
	model   inferrer
	kb      *knowledge.Base
	rules   *RuleExtractor
	timeout time.Duration
	// medical marks the variant that attaches standardized concept codes.
	medical bool
}

// NewModelExtractor builds the general-NLP extractor variant.
func NewModelExtractor(model *nlpmodel.Model, kb *knowledge.Base, timeout time.Duration) *ModelExtractor {
	return &ModelExtractor{model: model, kb: kb, rules: NewRuleExtractor(kb), timeout: timeout}
}

// NewMedicalExtractor builds the medical-NLP variant, which additionally
// carries concept codes when the backend supplies them.
func NewMedicalExtractor(model *nlpmodel.Model, kb *knowledge.Base, timeout time.Duration) *ModelExtractor {
	e := NewModelExtractor(model, kb, timeout)
	e.medical = true
	return e
}

// Extract runs model inference under a bounded timeout. On model error or
// timeout the full rule-based result is returned with degraded=true.
func (e *ModelExtractor) Extract(ctx context.Context, text string) ([]Entity, bool) {
	spans, err := e.infer(ctx, text)
	if err != nil {
		redact.Logf("entity: model inference failed, using rule matching: %v", err)
		ents, _ := e.rules.Extract(ctx, text)
		return ents, true
	}

	entities := make([]Entity, 0, len(spans))
	covered := make([]bool, len(text))
	for _, span := range spans {
		ent := e.entityFromSpan(span)
		entities = append(entities, ent)
		claim(covered, span.Start, span.End)
	}

	// Rule matching still runs over the regions the model left unlabeled, so
	// a knowledge term the model missed is never lost.
	for _, ruleEnt := range e.rules.match(text) {
		if regionClaimed(covered, ruleEnt.Start, ruleEnt.End) {
			continue
		}
		entities = append(entities, ruleEnt)
	}

	return finalize(entities), false
}

func (e *ModelExtractor) infer(ctx context.Context, text string) ([]nlpmodel.Span, error) {
	timeout := e.timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type inferOut struct {
		spans []nlpmodel.Span
		err   error
	}
	// The ONNX run itself cannot be cancelled mid-flight; the channel is
	// buffered so a late result is dropped instead of leaking the goroutine.
	done := make(chan inferOut, 1)
	go func() {
		spans, err := e.model.Infer(text)
		done <- inferOut{spans: spans, err: err}
	}()

	select {
	case out := <-done:
		return out.spans, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *ModelExtractor) entityFromSpan(span nlpmodel.Span) Entity {
	category, ok := labelTranslation[span.Label]
	if !ok {
		category = knowledge.CategoryOther
	}

	ent := Entity{
		Text:       span.Text,
		Label:      knowledge.NormalizeTerm(span.Text),
		Category:   category,
		Confidence: float64(span.Score),
		Start:      span.Start,
		End:        span.End,
	}

	// The knowledge base canonicalizes labels and fills gaps the model left.
	if entry, known := e.kb.Lookup(span.Text); known {
		ent.Label = entry.Term
		if ent.Category == knowledge.CategoryOther {
			ent.Category = entry.Category
		}
		ent.ConceptCode = entry.ConceptCode
	}

	// Medical bundles may supply a standardized concept code directly; it
	// wins over the knowledge-base code. Absence is not an error, just a
	// lower-information result.
	if span.ConceptCode != "" && (e.medical || ent.ConceptCode == "") {
		ent.ConceptCode = span.ConceptCode
	}

	return ent
}

// Select picks the extractor variant for the detected capability tier.
func Select(res capability.Result, kb *knowledge.Base, inferTimeout time.Duration) Extractor {
	switch {
	case res.Descriptor.MedicalNLP && res.Medical != nil:
		return NewMedicalExtractor(res.Medical, kb, inferTimeout)
	case res.Descriptor.GeneralNLP && res.General != nil:
		return NewModelExtractor(res.General, kb, inferTimeout)
	default:
		return NewRuleExtractor(kb)
	}
}
