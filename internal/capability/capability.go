// Package capability probes the optional NLP backends once at startup and
// produces the immutable descriptor every downstream component consumes.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/medscan-ai/medscan/internal/config"
	"github.com/medscan-ai/medscan/internal/nlpmodel"
	"github.com/medscan-ai/medscan/internal/redact"
)

// Tier is the ordinal level of NLP sophistication currently active.
type Tier int

const (
	TierRuleBased Tier = iota
	TierGeneralNLP
	TierMedicalNLP
	TierAssisted
)

func (t Tier) String() string {
	switch t {
	case TierGeneralNLP:
		return "general_nlp"
	case TierMedicalNLP:
		return "medical_nlp"
	case TierAssisted:
		return "ai_assisted"
	default:
		return "rule_based"
	}
}

// MarshalJSON renders the tier by name so API consumers never deal with
// ordinals.
func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts the named form produced by MarshalJSON.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "general_nlp":
		*t = TierGeneralNLP
	case "medical_nlp":
		*t = TierMedicalNLP
	case "ai_assisted":
		*t = TierAssisted
	case "rule_based":
		*t = TierRuleBased
	default:
		return fmt.Errorf("unknown tier %q", name)
	}
	return nil
}

// Descriptor is the immutable capability summary. It is a value type: handing
// it out copies it, so nothing downstream can mutate the detected state.
type Descriptor struct {
	GeneralNLP bool `json:"general_nlp"`
	MedicalNLP bool `json:"medical_nlp"`
	Advisor    bool `json:"advisor"`
	Tier       Tier `json:"tier"`
}

// Result couples the descriptor with the loaded backend handles so nothing
// re-loads models per request.
type Result struct {
	Descriptor Descriptor
	General    *nlpmodel.Model
	Medical    *nlpmodel.Model
}

// Probe is the minimal surface the detector needs from the advisor
// collaborator.
type Probe interface {
	Ping(ctx context.Context) error
}

// Detector runs backend detection exactly once and caches the result.
type Detector struct {
	nlp     config.NLPConfig
	advisor Probe

	once sync.Once
	res  Result
}

// NewDetector prepares detection for the configured backends. advisor may be
// nil when no generator is configured.
func NewDetector(nlp config.NLPConfig, advisor Probe) *Detector {
	return &Detector{nlp: nlp, advisor: advisor}
}

// Detect probes each optional backend. Probes are isolated: one failure
// never prevents the others or aborts the process. Safe to call repeatedly;
// only the first call does work.
func (d *Detector) Detect(ctx context.Context) Result {
	d.once.Do(func() {
		d.res = d.probe(ctx)
	})
	return d.res
}

func (d *Detector) probe(ctx context.Context) Result {
	var res Result

	if dir := d.nlp.GeneralModelDir; dir != "" {
		model, err := nlpmodel.Load(dir, d.nlp.SeqLen)
		if err != nil {
			redact.Logf("capability: general NLP model unavailable: %v", err)
		} else {
			res.General = model
			res.Descriptor.GeneralNLP = true
		}
	}

	if dir := d.nlp.MedicalModelDir; dir != "" {
		model, err := nlpmodel.Load(dir, d.nlp.SeqLen)
		if err != nil {
			redact.Logf("capability: medical NLP model unavailable: %v", err)
		} else {
			res.Medical = model
			res.Descriptor.MedicalNLP = true
		}
	}

	if d.advisor != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := d.advisor.Ping(pingCtx); err != nil {
			redact.Logf("capability: advisor unavailable: %v", err)
		} else {
			res.Descriptor.Advisor = true
		}
		cancel()
	}

	res.Descriptor.Tier = deriveTier(res.Descriptor)
	redact.Logf("capability: active tier %s (general=%v medical=%v advisor=%v)",
		res.Descriptor.Tier, res.Descriptor.GeneralNLP, res.Descriptor.MedicalNLP, res.Descriptor.Advisor)
	return res
}

// deriveTier picks the highest tier whose backend initialized.
func deriveTier(d Descriptor) Tier {
	switch {
	case d.Advisor:
		return TierAssisted
	case d.MedicalNLP:
		return TierMedicalNLP
	case d.GeneralNLP:
		return TierGeneralNLP
	default:
		return TierRuleBased
	}
}
