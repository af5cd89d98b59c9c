package telemetry

import "testing"

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	attrs := SafeAttributes(map[string]interface{}{
		"input_text":    "I have chest pain",
		"patient_name":  "someone",
		"api_key":       "sk-123",
		"tier":          "rule_based",
		"entity_count":  3,
		"degraded":      false,
		"probabilities": []string{"0.3", "0.2"},
	})

	keys := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		keys[string(a.Key)] = true
	}
	for _, banned := range []string{"input_text", "patient_name", "api_key"} {
		if keys[banned] {
			t.Fatalf("attribute %q should have been dropped", banned)
		}
	}
	for _, want := range []string{"tier", "entity_count", "degraded", "probabilities"} {
		if !keys[want] {
			t.Fatalf("attribute %q missing", want)
		}
	}
}

func TestSafeAttributesDropsOversizedString(t *testing.T) {
	long := make([]byte, 513)
	for i := range long {
		long[i] = 'a'
	}
	attrs := SafeAttributes(map[string]interface{}{"tier": string(long)})
	if len(attrs) != 0 {
		t.Fatalf("oversized value kept: %v", attrs)
	}
}
