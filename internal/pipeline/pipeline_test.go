package pipeline

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/medscan-ai/medscan/internal/advisor"
	"github.com/medscan-ai/medscan/internal/capability"
	"github.com/medscan-ai/medscan/internal/emergency"
	"github.com/medscan-ai/medscan/internal/intent"
	"github.com/medscan-ai/medscan/internal/knowledge"
	"github.com/medscan-ai/medscan/internal/telemetry"
)

func newRuleBased(t *testing.T, gen advisor.Generator, caps capability.Result) *Pipeline {
	t.Helper()
	kb := knowledge.MustDefault()
	det, err := emergency.New()
	if err != nil {
		t.Fatalf("emergency.New: %v", err)
	}
	tel, err := telemetry.NewProvider(context.Background(), telemetry.Config{Enabled: false})
	if err != nil {
		t.Fatalf("telemetry.NewProvider: %v", err)
	}
	asm := advisor.NewAssembler(kb, gen, 3, time.Second)
	return New(kb, caps, det, asm, time.Second, tel)
}

func TestAnalyzeSymptomReport(t *testing.T) {
	p := newRuleBased(t, nil, capability.Result{})
	res := p.Analyze(context.Background(), "I've been feeling really tired lately and sometimes dizzy")

	if res.Emergency {
		t.Fatal("routine symptoms flagged as emergency")
	}
	labels := make(map[string]bool)
	for _, e := range res.Entities {
		labels[e.Label] = true
	}
	if !labels["fatigue"] || !labels["dizziness"] {
		t.Fatalf("entities = %v, want fatigue and dizziness", res.Entities)
	}
	if res.Intent.Kind != intent.KindSymptomReport {
		t.Fatalf("intent = %s, want symptom_report", res.Intent.Kind)
	}
	if len(res.Conditions) == 0 {
		t.Fatal("no conditions mapped")
	}
	var sum float64
	for _, c := range res.Conditions {
		sum += c.Probability
	}
	if sum >= 1 {
		t.Fatalf("condition probabilities sum to %v, want < 1", sum)
	}
	if res.Recommendations.Summary == "" || len(res.Recommendations.Activities) == 0 {
		t.Fatalf("recommendations incomplete: %+v", res.Recommendations)
	}
	if res.Tier != capability.TierRuleBased {
		t.Fatalf("tier = %s, want rule_based", res.Tier)
	}
	if res.Degraded {
		t.Fatal("rule-based run reported degraded")
	}
}

func TestAnalyzeEmergencyShortCircuitsRecommendations(t *testing.T) {
	gen := advisor.NewFake("should never appear")
	p := newRuleBased(t, gen, capability.Result{Descriptor: capability.Descriptor{Advisor: true, Tier: capability.TierAssisted}})
	res := p.Analyze(context.Background(), "I have crushing chest pain and can't breathe")

	if !res.Emergency {
		t.Fatal("emergency input not flagged")
	}
	if len(res.EmergencyMatches) == 0 {
		t.Fatal("no emergency matches reported")
	}
	if res.Intent.Kind != intent.KindEmergency {
		t.Fatalf("intent = %s, want emergency", res.Intent.Kind)
	}
	kb := knowledge.MustDefault()
	if res.Recommendations.Summary != kb.EmergencyBundle().Summary {
		t.Fatalf("Summary = %q, want emergency bundle", res.Recommendations.Summary)
	}
	if res.Recommendations.Supplement != "" {
		t.Fatal("generated supplement attached during an emergency")
	}
}

func TestAnalyzeEmergencyTierInvariant(t *testing.T) {
	kb := knowledge.MustDefault()
	for _, caps := range []capability.Result{
		{},
		{Descriptor: capability.Descriptor{Advisor: true, Tier: capability.TierAssisted}},
	} {
		p := newRuleBased(t, advisor.NewFake("unused"), caps)
		res := p.Analyze(context.Background(), "I have severe chest pain and difficulty breathing")
		if !res.Emergency {
			t.Fatalf("tier %s: emergency not flagged", caps.Descriptor.Tier)
		}
		if res.Recommendations.Summary != kb.EmergencyBundle().Summary {
			t.Fatalf("tier %s: recommendations are not the emergency bundle", caps.Descriptor.Tier)
		}
	}
}

func TestAnalyzeEmptyInput(t *testing.T) {
	p := newRuleBased(t, nil, capability.Result{})
	for _, in := range []string{"", "   ", "\n\t"} {
		res := p.Analyze(context.Background(), in)
		if res.Emergency || len(res.Entities) != 0 || len(res.Conditions) != 0 {
			t.Fatalf("Analyze(%q) produced findings: %+v", in, res)
		}
		if res.Intent.Kind != intent.KindUnknown {
			t.Fatalf("Analyze(%q) intent = %s, want unknown", in, res.Intent.Kind)
		}
		if res.Recommendations.Summary == "" {
			t.Fatalf("Analyze(%q) returned no default plan", in)
		}
	}
}

func TestAnalyzeEmptyInputSkipsGenerator(t *testing.T) {
	gen := advisor.NewFake("should never appear")
	caps := capability.Result{Descriptor: capability.Descriptor{Advisor: true, Tier: capability.TierAssisted}}
	p := newRuleBased(t, gen, caps)

	res := p.Analyze(context.Background(), "   ")
	if gen.Calls != 0 {
		t.Fatalf("generator called %d times for blank input", gen.Calls)
	}
	if res.Recommendations.Supplement != "" {
		t.Fatalf("Supplement = %q for blank input", res.Recommendations.Supplement)
	}
	if res.Tier != capability.TierAssisted {
		t.Fatalf("tier = %s, must still report the active tier", res.Tier)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	p := newRuleBased(t, nil, capability.Result{})
	const in = "headache with nausea and a mild fever"
	a := p.Analyze(context.Background(), in)
	b := p.Analyze(context.Background(), in)
	a.ElapsedMS, b.ElapsedMS = 0, 0
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("repeated analysis differs:\n%+v\n%+v", a, b)
	}
}

func TestAnalyzeAssistedTierAttachesSupplement(t *testing.T) {
	gen := advisor.NewFake("gentle routine adjustments can help")
	caps := capability.Result{Descriptor: capability.Descriptor{Advisor: true, Tier: capability.TierAssisted}}
	p := newRuleBased(t, gen, caps)

	res := p.Analyze(context.Background(), "I keep getting headaches in the afternoon")
	if res.Tier != capability.TierAssisted {
		t.Fatalf("tier = %s, want ai_assisted", res.Tier)
	}
	if res.Recommendations.Supplement != "gentle routine adjustments can help" {
		t.Fatalf("Supplement = %q", res.Recommendations.Supplement)
	}
}

func TestAnalyzeNonMedicalInput(t *testing.T) {
	p := newRuleBased(t, nil, capability.Result{})
	res := p.Analyze(context.Background(), "thinking about repainting the kitchen next month")
	if len(res.Entities) != 0 {
		t.Fatalf("entities = %v for non-medical input", res.Entities)
	}
	if res.Intent.Kind != intent.KindUnknown {
		t.Fatalf("intent = %s, want unknown", res.Intent.Kind)
	}
	if res.Recommendations.Summary == "" {
		t.Fatal("non-medical input returned no default plan")
	}
}
