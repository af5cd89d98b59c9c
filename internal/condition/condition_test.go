package condition

import (
	"math"
	"testing"

	"github.com/medscan-ai/medscan/internal/entity"
	"github.com/medscan-ai/medscan/internal/knowledge"
)

func symptom(label string, conf float64) entity.Entity {
	return entity.Entity{Label: label, Category: knowledge.CategorySymptom, Confidence: conf}
}

func TestMapRanksByAccumulatedVotes(t *testing.T) {
	kb := knowledge.MustDefault()
	ents := []entity.Entity{symptom("fatigue", 0.75), symptom("dizziness", 0.75)}

	got := Map(ents, kb)
	if len(got) == 0 {
		t.Fatal("expected at least one estimate")
	}
	for i := 1; i < len(got); i++ {
		if got[i].Probability > got[i-1].Probability {
			t.Fatalf("estimates not sorted: %v after %v", got[i], got[i-1])
		}
	}
	var sum float64
	for _, e := range got {
		if e.Probability <= 0 || e.Probability >= 1 {
			t.Fatalf("probability %v for %s out of (0,1)", e.Probability, e.Condition)
		}
		if len(e.Supporting) == 0 {
			t.Fatalf("estimate %s has no supporting labels", e.Condition)
		}
		sum += e.Probability
	}
	if sum >= 1 {
		t.Fatalf("probabilities sum to %v, want < 1", sum)
	}
}

func TestMapSharedConditionGetsBothVotes(t *testing.T) {
	kb := knowledge.MustDefault()
	both := Map([]entity.Entity{symptom("headache", 0.75), symptom("dizziness", 0.75)}, kb)
	alone := Map([]entity.Entity{symptom("headache", 0.75)}, kb)

	// dehydration is linked from both headache and dizziness, so with both
	// present its supporting list should carry both labels.
	var shared *Estimate
	for i := range both {
		if both[i].Condition == "Dehydration" {
			shared = &both[i]
		}
	}
	if shared == nil {
		t.Fatal("Dehydration estimate missing")
	}
	if len(shared.Supporting) != 2 {
		t.Fatalf("supporting = %v, want both symptom labels", shared.Supporting)
	}
	for _, e := range alone {
		if e.Condition == "Dehydration" && len(e.Supporting) != 1 {
			t.Fatalf("supporting = %v for single symptom", e.Supporting)
		}
	}
}

func TestMapDeterministic(t *testing.T) {
	kb := knowledge.MustDefault()
	ents := []entity.Entity{symptom("headache", 0.9), symptom("nausea", 0.75), symptom("fever", 0.75)}
	first := Map(ents, kb)
	for i := 0; i < 10; i++ {
		again := Map(ents, kb)
		if len(again) != len(first) {
			t.Fatalf("run %d: length %d != %d", i, len(again), len(first))
		}
		for j := range first {
			if again[j].Condition != first[j].Condition {
				t.Fatalf("run %d: order differs at %d: %s vs %s", i, j, again[j].Condition, first[j].Condition)
			}
			if math.Abs(again[j].Probability-first[j].Probability) > 1e-12 {
				t.Fatalf("run %d: probability differs for %s", i, first[j].Condition)
			}
		}
	}
}

func TestMapEmptyAndUnknown(t *testing.T) {
	kb := knowledge.MustDefault()
	if got := Map(nil, kb); got != nil {
		t.Fatalf("Map(nil) = %v, want nil", got)
	}
	unknown := []entity.Entity{{Label: "unrecognized thing", Confidence: 0.6}}
	if got := Map(unknown, kb); got != nil {
		t.Fatalf("Map(unknown) = %v, want nil", got)
	}
}

func TestTop(t *testing.T) {
	est := []Estimate{{Condition: "a"}, {Condition: "b"}, {Condition: "c"}}
	if got := Top(est, 2); len(got) != 2 {
		t.Fatalf("Top(2) returned %d", len(got))
	}
	if got := Top(est, 0); len(got) != 3 {
		t.Fatalf("Top(0) returned %d, want all", len(got))
	}
	if got := Top(est, 10); len(got) != 3 {
		t.Fatalf("Top(10) returned %d, want all", len(got))
	}
}
