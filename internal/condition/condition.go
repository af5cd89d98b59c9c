// Package condition turns extracted entities into a ranked list of plausible
// conditions using the links declared in the knowledge base. The scores are
// deliberately conservative: they always sum to less than one, leaving
// explicit probability mass for "no clear condition".
package condition

import (
	"sort"

	"github.com/medscan-ai/medscan/internal/entity"
	"github.com/medscan-ai/medscan/internal/knowledge"
)

// Estimate is one candidate condition with its probability and the entity
// labels that voted for it.
type Estimate struct {
	Condition   string   `json:"condition"`
	Probability float64  `json:"probability"`
	Supporting  []string `json:"supporting"`
}

// Map accumulates a vote of entity confidence times link strength per linked
// condition and normalizes by the total plus one. Output is sorted by
// descending probability with ties broken by condition name, so identical
// input always yields identical output.
func Map(entities []entity.Entity, kb *knowledge.Base) []Estimate {
	votes := make(map[string]float64)
	supporting := make(map[string][]string)
	var total float64

	for _, ent := range entities {
		def, ok := kb.Lookup(ent.Label)
		if !ok {
			continue
		}
		for _, link := range def.Conditions {
			v := ent.Confidence * link.Strength
			votes[link.Name] += v
			total += v
			supporting[link.Name] = append(supporting[link.Name], ent.Label)
		}
	}
	if len(votes) == 0 {
		return nil
	}

	out := make([]Estimate, 0, len(votes))
	for name, v := range votes {
		out = append(out, Estimate{
			Condition:   name,
			Probability: v / (total + 1),
			Supporting:  dedupe(supporting[name]),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Probability != out[j].Probability {
			return out[i].Probability > out[j].Probability
		}
		return out[i].Condition < out[j].Condition
	})
	return out
}

// Top returns at most n leading estimates.
func Top(estimates []Estimate, n int) []Estimate {
	if n <= 0 || n >= len(estimates) {
		return estimates
	}
	return estimates[:n]
}

func dedupe(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := labels[:0]
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
