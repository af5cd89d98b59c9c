package advisor

import (
	"context"
	"strings"
	"time"

	"github.com/medscan-ai/medscan/internal/capability"
	"github.com/medscan-ai/medscan/internal/condition"
	"github.com/medscan-ai/medscan/internal/entity"
	"github.com/medscan-ai/medscan/internal/knowledge"
	"github.com/medscan-ai/medscan/internal/redact"
)

// Plan is the assembled recommendation set returned to the caller. Everything
// but Supplement comes from curated knowledge-base content; Supplement is the
// optional generated paragraph and is empty below the ai_assisted tier.
type Plan struct {
	Summary      string   `json:"summary"`
	Activities   []string `json:"activities,omitempty"`
	Nutrition    []string `json:"nutrition,omitempty"`
	Lifestyle    []string `json:"lifestyle,omitempty"`
	RedFlags     []string `json:"red_flags,omitempty"`
	Consultation string   `json:"consultation,omitempty"`
	Supplement   string   `json:"supplement,omitempty"`
}

// Assembler merges per-term recommendation bundles into one plan.
type Assembler struct {
	kb      *knowledge.Base
	gen     Generator
	topK    int
	timeout time.Duration
}

// NewAssembler builds an assembler. gen may be nil; topK caps how many ranked
// conditions contribute bundles.
func NewAssembler(kb *knowledge.Base, gen Generator, topK int, timeout time.Duration) *Assembler {
	if topK <= 0 {
		topK = 3
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Assembler{kb: kb, gen: gen, topK: topK, timeout: timeout}
}

// Assemble produces the plan for one analysis. An emergency returns the fixed
// emergency bundle and nothing else. Otherwise bundles are merged in
// condition rank order, falling back to the entities themselves and finally
// to the default bundle, and the generated supplement is attached only when a
// backend is configured and the tier reached ai_assisted. A backend failure
// is logged and the curated plan returned as-is.
func (a *Assembler) Assemble(ctx context.Context, estimates []condition.Estimate, entities []entity.Entity, emergencyHit bool, tier capability.Tier) Plan {
	if emergencyHit {
		return planFromBundle(a.kb.EmergencyBundle())
	}

	plan, merged := a.mergeBundles(estimates, entities)
	if !merged {
		plan = planFromBundle(a.kb.DefaultBundle())
	}

	if a.gen != nil && tier == capability.TierAssisted {
		genCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		text, err := a.gen.Generate(genCtx, estimates, entities)
		if err != nil {
			redact.Logf("advisor generate failed: %v", err)
		} else {
			plan.Supplement = text
		}
	}
	return plan
}

// mergeBundles walks the top ranked conditions and folds in the bundle of
// every supporting term, each term at most once, in rank order. When no
// condition ranked, the extracted entities themselves seed the merge.
func (a *Assembler) mergeBundles(estimates []condition.Estimate, entities []entity.Entity) (Plan, bool) {
	var plan Plan
	var folded []string
	seen := make(map[string]struct{})
	consultRank := -1
	merged := false

	fold := func(label string) {
		entry, ok := a.kb.Lookup(label)
		if !ok {
			return
		}
		if _, dup := seen[entry.Term]; dup {
			return
		}
		seen[entry.Term] = struct{}{}
		folded = append(folded, entry.Term)
		merged = true

		b := entry.Recommend
		if plan.Summary == "" {
			plan.Summary = b.Summary
		}
		plan.Activities = appendUnique(plan.Activities, b.Activities)
		plan.Nutrition = appendUnique(plan.Nutrition, b.Nutrition)
		plan.Lifestyle = appendUnique(plan.Lifestyle, b.Lifestyle)
		plan.RedFlags = appendUnique(plan.RedFlags, b.RedFlags)
		if r := severityRank(entry.Severity); r > consultRank && b.Consultation != "" {
			plan.Consultation = b.Consultation
			consultRank = r
		}
	}

	for _, est := range condition.Top(estimates, a.topK) {
		for _, label := range est.Supporting {
			fold(label)
		}
	}
	if !merged {
		for _, ent := range entities {
			fold(ent.Label)
		}
	}
	if merged && plan.Summary == "" {
		plan.Summary = summarize(folded)
	}
	return plan, merged
}

// summarize names the merged terms when no bundle supplied its own summary.
func summarize(terms []string) string {
	switch len(terms) {
	case 0:
		return ""
	case 1:
		return "Self-care guidance for " + terms[0] + "."
	case 2:
		return "Self-care guidance for " + terms[0] + " and " + terms[1] + "."
	default:
		return "Self-care guidance for " + strings.Join(terms[:len(terms)-1], ", ") + ", and " + terms[len(terms)-1] + "."
	}
}

func planFromBundle(b knowledge.Bundle) Plan {
	return Plan{
		Summary:      b.Summary,
		Activities:   append([]string(nil), b.Activities...),
		Nutrition:    append([]string(nil), b.Nutrition...),
		Lifestyle:    append([]string(nil), b.Lifestyle...),
		RedFlags:     append([]string(nil), b.RedFlags...),
		Consultation: b.Consultation,
	}
}

func severityRank(s knowledge.Severity) int {
	switch s {
	case knowledge.SeverityUrgent:
		return 2
	case knowledge.SeverityElevated:
		return 1
	default:
		return 0
	}
}

func appendUnique(dst, src []string) []string {
	for _, s := range src {
		dup := false
		for _, have := range dst {
			if have == s {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, s)
		}
	}
	return dst
}
