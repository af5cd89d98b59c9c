// Package intent determines the communicative purpose of an input. It is
// rule-based at every capability tier so classification never depends on an
// optional backend.
package intent

import (
	"regexp"
	"strings"

	"github.com/medscan-ai/medscan/internal/emergency"
	"github.com/medscan-ai/medscan/internal/entity"
	"github.com/medscan-ai/medscan/internal/knowledge"
)

// Kind is the closed set of recognized intents.
type Kind string

const (
	KindSymptomReport Kind = "symptom_report"
	KindQuestion      Kind = "question"
	KindEmergency     Kind = "emergency"
	KindGreeting      Kind = "greeting"
	KindUnknown       Kind = "unknown"
)

// Intent is a classified purpose with a confidence score in [0,1].
type Intent struct {
	Kind       Kind    `json:"kind"`
	Confidence float64 `json:"confidence"`
}

var (
	interrogativeRe = regexp.MustCompile(`(?i)^\s*(what|how|why|when|where|which|who|should|could|can|is|are|does|do)\b`)
	questionRe      = regexp.MustCompile(`(?i)(\?|^\s*(what|how|why|when|where|which|who|should|could|can|is|are|does|do)\b|\bexplain\b)`)
	greetingRe      = regexp.MustCompile(`(?i)^\s*(hi|hiya|hello|hey|good\s+(morning|afternoon|evening)|greetings)\b`)
)

// Classifier scores intents from lexical markers and extracted entities.
type Classifier struct {
	emergencies *emergency.Detector
}

// NewClassifier wires the classifier to the emergency marker set; the same
// fixed patterns drive both the emergency flag and the emergency intent.
func NewClassifier(d *emergency.Detector) *Classifier {
	return &Classifier{emergencies: d}
}

// Classify scans emergency markers first, then question markers, then
// requires at least one symptom entity for a symptom report. Confidence grows
// monotonically with the number of agreeing signals.
func (c *Classifier) Classify(text string, entities []entity.Entity) Intent {
	if strings.TrimSpace(text) == "" {
		return Intent{Kind: KindUnknown, Confidence: 0.3}
	}

	symptoms := 0
	for _, e := range entities {
		if e.Category == knowledge.CategorySymptom {
			symptoms++
		}
	}

	if markers := c.emergencies.Matches(text); len(markers) > 0 {
		return Intent{Kind: KindEmergency, Confidence: confidence(len(markers) + symptoms)}
	}
	if questionRe.MatchString(text) {
		signals := 1
		if strings.Contains(text, "?") && interrogativeRe.MatchString(text) {
			signals++
		}
		return Intent{Kind: KindQuestion, Confidence: confidence(signals)}
	}
	if greetingRe.MatchString(text) && symptoms == 0 {
		return Intent{Kind: KindGreeting, Confidence: confidence(1)}
	}
	if symptoms > 0 {
		return Intent{Kind: KindSymptomReport, Confidence: confidence(symptoms)}
	}
	return Intent{Kind: KindUnknown, Confidence: 0.3}
}

// confidence maps the number of independent agreeing signals to [0.5,0.95].
func confidence(signals int) float64 {
	if signals < 1 {
		signals = 1
	}
	if signals > 3 {
		signals = 3
	}
	return 0.5 + 0.15*float64(signals)
}
