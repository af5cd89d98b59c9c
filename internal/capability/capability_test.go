package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/medscan-ai/medscan/internal/config"
)

func TestDeriveTierOrdering(t *testing.T) {
	cases := []struct {
		desc Descriptor
		want Tier
	}{
		{Descriptor{}, TierRuleBased},
		{Descriptor{GeneralNLP: true}, TierGeneralNLP},
		{Descriptor{GeneralNLP: true, MedicalNLP: true}, TierMedicalNLP},
		{Descriptor{MedicalNLP: true}, TierMedicalNLP},
		{Descriptor{Advisor: true}, TierAssisted},
		{Descriptor{GeneralNLP: true, MedicalNLP: true, Advisor: true}, TierAssisted},
	}
	for _, c := range cases {
		if got := deriveTier(c.desc); got != c.want {
			t.Fatalf("deriveTier(%+v) = %s, want %s", c.desc, got, c.want)
		}
	}
}

func TestTierNames(t *testing.T) {
	names := map[Tier]string{
		TierRuleBased:  "rule_based",
		TierGeneralNLP: "general_nlp",
		TierMedicalNLP: "medical_nlp",
		TierAssisted:   "ai_assisted",
	}
	for tier, want := range names {
		if tier.String() != want {
			t.Fatalf("tier %d name = %q, want %q", tier, tier.String(), want)
		}
	}
}

type failingProbe struct{}

func (failingProbe) Ping(context.Context) error { return errors.New("connection refused") }

type okProbe struct{ calls int }

func (p *okProbe) Ping(context.Context) error {
	p.calls++
	return nil
}

func TestDetectSurvivesFailedProbes(t *testing.T) {
	d := NewDetector(config.NLPConfig{GeneralModelDir: "/does/not/exist", SeqLen: 32}, failingProbe{})
	res := d.Detect(context.Background())
	if res.Descriptor.Tier != TierRuleBased {
		t.Fatalf("all probes failed, expected rule_based, got %s", res.Descriptor.Tier)
	}
	if res.General != nil || res.Medical != nil {
		t.Fatalf("failed probes must not leave handles behind")
	}
}

func TestDetectIsIdempotent(t *testing.T) {
	probe := &okProbe{}
	d := NewDetector(config.NLPConfig{}, probe)

	first := d.Detect(context.Background())
	second := d.Detect(context.Background())

	if probe.calls != 1 {
		t.Fatalf("expected one probe call, got %d", probe.calls)
	}
	if first != second {
		t.Fatalf("detection results differ across calls: %+v vs %+v", first, second)
	}
	if first.Descriptor.Tier != TierAssisted {
		t.Fatalf("advisor ping succeeded, expected ai_assisted, got %s", first.Descriptor.Tier)
	}
}
