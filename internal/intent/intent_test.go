package intent

import (
	"testing"

	"github.com/medscan-ai/medscan/internal/emergency"
	"github.com/medscan-ai/medscan/internal/entity"
	"github.com/medscan-ai/medscan/internal/knowledge"
)

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	det, err := emergency.New()
	if err != nil {
		t.Fatalf("emergency.New: %v", err)
	}
	return NewClassifier(det)
}

func symptomEntities(labels ...string) []entity.Entity {
	out := make([]entity.Entity, 0, len(labels))
	for _, l := range labels {
		out = append(out, entity.Entity{Label: l, Category: knowledge.CategorySymptom, Confidence: 0.75})
	}
	return out
}

func TestClassifyKinds(t *testing.T) {
	c := newClassifier(t)
	cases := []struct {
		text     string
		entities []entity.Entity
		want     Kind
	}{
		{"I have crushing chest pain and can't breathe", symptomEntities("chest pain"), KindEmergency},
		{"what helps with headaches?", symptomEntities("headache"), KindQuestion},
		{"Should I see a doctor", nil, KindQuestion},
		{"hello there", nil, KindGreeting},
		{"Good morning!", nil, KindGreeting},
		{"I've been feeling tired and dizzy lately", symptomEntities("fatigue", "dizziness"), KindSymptomReport},
		{"the weather is nice today", nil, KindUnknown},
		{"", nil, KindUnknown},
		{"   ", nil, KindUnknown},
	}
	for _, tc := range cases {
		got := c.Classify(tc.text, tc.entities)
		if got.Kind != tc.want {
			t.Fatalf("Classify(%q) = %s, want %s", tc.text, got.Kind, tc.want)
		}
		if got.Confidence < 0 || got.Confidence > 1 {
			t.Fatalf("Classify(%q) confidence %v out of range", tc.text, got.Confidence)
		}
	}
}

func TestEmergencyOutranksQuestion(t *testing.T) {
	c := newClassifier(t)
	got := c.Classify("is this a heart attack?", nil)
	if got.Kind != KindEmergency {
		t.Fatalf("Kind = %s, want %s", got.Kind, KindEmergency)
	}
}

func TestGreetingWithSymptomsIsSymptomReport(t *testing.T) {
	c := newClassifier(t)
	got := c.Classify("hi, I have a headache", symptomEntities("headache"))
	if got.Kind != KindSymptomReport {
		t.Fatalf("Kind = %s, want %s", got.Kind, KindSymptomReport)
	}
}

func TestConfidenceMonotonicInSignals(t *testing.T) {
	c := newClassifier(t)
	one := c.Classify("I am very tired", symptomEntities("fatigue"))
	three := c.Classify("tired, dizzy, and a pounding headache", symptomEntities("fatigue", "dizziness", "headache"))
	if three.Confidence <= one.Confidence {
		t.Fatalf("confidence %v with three symptoms not above %v with one", three.Confidence, one.Confidence)
	}
	five := c.Classify("everything hurts", symptomEntities("a", "b", "c", "d", "e"))
	if five.Confidence > 0.95 {
		t.Fatalf("confidence %v exceeds cap", five.Confidence)
	}
	if five.Confidence != three.Confidence {
		t.Fatalf("confidence should saturate at three signals: %v vs %v", five.Confidence, three.Confidence)
	}
}
