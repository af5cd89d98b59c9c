// Package entity turns raw symptom text into normalized medical entities.
// Extraction is polymorphic over the capability tier: a rule-based matcher is
// always available, and model-backed variants degrade to it rather than ever
// failing an analysis.
package entity

import (
	"context"
	"sort"

	"github.com/medscan-ai/medscan/internal/knowledge"
)

// Entity is one normalized medical term found in the input. Entities are
// produced fresh per analysis and carry no cross-request identity.
type Entity struct {
	// Text is the surface form as it appeared in the input.
	Text string `json:"text"`
	// Label is the canonical knowledge-base term when known, otherwise the
	// normalized surface form.
	Label       string             `json:"label"`
	Category    knowledge.Category `json:"category"`
	ConceptCode string             `json:"concept_code,omitempty"`
	Confidence  float64            `json:"confidence"`
	Start       int                `json:"start"`
	End         int                `json:"end"`
}

// Extractor converts text into entities ordered by first occurrence. The
// boolean reports degradation: true when a model-backed variant had to fall
// back to rule matching. Extractors never fail; unusable backends yield the
// rule-based result or an empty list.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]Entity, bool)
}

// finalize orders entities by position and keeps only the first occurrence
// of each canonical label.
func finalize(entities []Entity) []Entity {
	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].Start != entities[j].Start {
			return entities[i].Start < entities[j].Start
		}
		return entities[i].End > entities[j].End
	})

	seen := make(map[string]bool, len(entities))
	out := entities[:0]
	for _, e := range entities {
		if seen[e.Label] {
			continue
		}
		seen[e.Label] = true
		out = append(out, e)
	}
	return out
}
