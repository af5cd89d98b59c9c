// Package knowledge holds the static symptom/condition reference data the
// pipeline matches against. The base is loaded once at startup and is
// read-only afterwards; rebuilding it is the only way to change it.
package knowledge

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed knowledge.yaml
var defaultDefinition []byte

// Category classifies what kind of medical term an entry describes.
type Category string

const (
	CategorySymptom   Category = "symptom"
	CategoryCondition Category = "condition"
	CategoryBodyPart  Category = "body_part"
	CategoryOther     Category = "other"
)

// Severity is the static triage tier attached to a term.
type Severity string

const (
	SeverityRoutine  Severity = "routine"
	SeverityElevated Severity = "elevated"
	SeverityUrgent   Severity = "urgent"
)

// ConditionLink associates a term with a condition and how strongly the term
// supports it, in (0,1].
type ConditionLink struct {
	Name     string  `yaml:"name" json:"name"`
	Strength float64 `yaml:"strength" json:"strength"`
}

// Bundle is a static recommendation set: activities, nutrition, lifestyle,
// red flags, and consultation guidance.
type Bundle struct {
	Summary      string   `yaml:"summary" json:"summary"`
	Activities   []string `yaml:"activities" json:"activities,omitempty"`
	Nutrition    []string `yaml:"nutrition" json:"nutrition,omitempty"`
	Lifestyle    []string `yaml:"lifestyle" json:"lifestyle,omitempty"`
	RedFlags     []string `yaml:"red_flags" json:"red_flags,omitempty"`
	Consultation string   `yaml:"consultation" json:"consultation,omitempty"`
}

// Entry is one knowledge-base record, keyed by its normalized term and
// aliases.
type Entry struct {
	Term        string          `yaml:"term"`
	Aliases     []string        `yaml:"aliases"`
	Category    Category        `yaml:"category"`
	ConceptCode string          `yaml:"concept_code"`
	Severity    Severity        `yaml:"severity"`
	Conditions  []ConditionLink `yaml:"conditions"`
	Recommend   Bundle          `yaml:"recommend"`
}

type definition struct {
	Version   int     `yaml:"version"`
	Emergency Bundle  `yaml:"emergency"`
	Default   Bundle  `yaml:"default"`
	Entries   []Entry `yaml:"entries"`
}

// Base is the queryable knowledge base. Safe for concurrent reads.
type Base struct {
	byTerm    map[string]*Entry
	terms     []string // all match terms, longest first
	emergency Bundle
	fallback  Bundle
}

// Default parses the embedded knowledge definition.
func Default() (*Base, error) {
	return parse(defaultDefinition)
}

// MustDefault is Default for callers that treat a broken embedded definition
// as a build defect.
func MustDefault() *Base {
	base, err := Default()
	if err != nil {
		panic(fmt.Sprintf("embedded knowledge definition invalid: %v", err))
	}
	return base
}

// LoadFile reads a knowledge definition from a YAML file.
func LoadFile(path string) (*Base, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge file: %w", err)
	}
	base, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse knowledge file %s: %w", path, err)
	}
	return base, nil
}

// Load returns the base at path, or the embedded default when path is empty.
func Load(path string) (*Base, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	return LoadFile(path)
}

func parse(data []byte) (*Base, error) {
	var def definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decode knowledge definition: %w", err)
	}
	if len(def.Entries) == 0 {
		return nil, fmt.Errorf("knowledge definition has no entries")
	}

	base := &Base{
		byTerm:    make(map[string]*Entry, len(def.Entries)*2),
		emergency: def.Emergency,
		fallback:  def.Default,
	}

	for i := range def.Entries {
		entry := &def.Entries[i]
		if strings.TrimSpace(entry.Term) == "" {
			return nil, fmt.Errorf("entry %d has an empty term", i)
		}
		if entry.Category == "" {
			entry.Category = CategoryOther
		}
		switch entry.Category {
		case CategorySymptom, CategoryCondition, CategoryBodyPart, CategoryOther:
		default:
			return nil, fmt.Errorf("entry %q has unknown category %q", entry.Term, entry.Category)
		}
		if entry.Severity == "" {
			entry.Severity = SeverityRoutine
		}
		for _, link := range entry.Conditions {
			if link.Name == "" {
				return nil, fmt.Errorf("entry %q has a condition link without a name", entry.Term)
			}
			if link.Strength <= 0 || link.Strength > 1 {
				return nil, fmt.Errorf("entry %q condition %q strength %v outside (0,1]", entry.Term, link.Name, link.Strength)
			}
		}

		for _, raw := range append([]string{entry.Term}, entry.Aliases...) {
			key := NormalizeTerm(raw)
			if key == "" {
				continue
			}
			if _, exists := base.byTerm[key]; exists {
				return nil, fmt.Errorf("duplicate knowledge term %q", key)
			}
			base.byTerm[key] = entry
			base.terms = append(base.terms, key)
		}
	}

	// Longest terms first so greedy matching finds "chest pain" before "pain".
	sort.Slice(base.terms, func(i, j int) bool {
		if len(base.terms[i]) != len(base.terms[j]) {
			return len(base.terms[i]) > len(base.terms[j])
		}
		return base.terms[i] < base.terms[j]
	})

	return base, nil
}

// NormalizeTerm folds a surface form to the canonical lookup key:
// NFKC-normalized, lower-cased, single-spaced.
func NormalizeTerm(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// Lookup finds the entry for a term or one of its aliases.
func (b *Base) Lookup(term string) (*Entry, bool) {
	entry, ok := b.byTerm[NormalizeTerm(term)]
	return entry, ok
}

// Terms returns every match term (canonical and alias), longest first.
// Callers must not mutate the returned slice.
func (b *Base) Terms() []string {
	return b.terms
}

// EmergencyBundle is the fixed guidance returned for any emergency hit.
func (b *Base) EmergencyBundle() Bundle {
	return b.emergency
}

// DefaultBundle is the guidance used when no condition matched.
func (b *Base) DefaultBundle() Bundle {
	return b.fallback
}

// Len reports how many match terms the base knows.
func (b *Base) Len() int {
	return len(b.terms)
}
