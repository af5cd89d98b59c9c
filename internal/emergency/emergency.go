// Package emergency implements the highest-priority check of the pipeline.
// It is purely lexical so that no missing model or failed backend can ever
// suppress it.
package emergency

import (
	"fmt"
	"regexp"
)

// patternDefs is the canonical emergency marker list. A miss on any of these
// is a defect; false positives are acceptable.
var patternDefs = []struct {
	name string
	expr string
}{
	{"chest_pain", `(?i)\bchest\s+(pain|pressure|tightness)\b`},
	{"breathing_difficulty", `(?i)\b(difficulty\s+breathing|trouble\s+breathing|can'?t\s+breathe|cannot\s+breathe|struggling\s+to\s+breathe|short(ness)?\s+of\s+breath)\b`},
	{"severe_pain", `(?i)\bsevere\s+(\w+\s+)?pain\b`},
	{"stroke_signs", `(?i)\b(stroke|face\s+droop\w*|slurred\s+speech|one[\s-]sided\s+(numbness|weakness)|numb\w*\s+on\s+one\s+side)\b`},
	{"heart_attack", `(?i)\bheart\s+attack\b`},
	{"self_harm", `(?i)\b(suicide|suicidal|kill\s+myself|end\s+my\s+life|self[\s-]?harm|hurt\s+myself)\b`},
	{"unconsciousness", `(?i)\b(unconscious|unresponsive|passed\s+out|fainted)\b`},
	{"severe_bleeding", `(?i)\b(severe|heavy|uncontrolled)\s+bleeding\b|\bbleeding\s+(heavily|won'?t\s+stop)\b`},
	{"seizure", `(?i)\b(seizure|convulsion)s?\b`},
	{"choking", `(?i)\bchoking\b`},
	{"overdose", `(?i)\boverdos(e|ed|ing)\b`},
	{"anaphylaxis", `(?i)\b(anaphyla(xis|ctic)|throat\s+(is\s+)?(closing|swelling))\b`},
	{"explicit_emergency", `(?i)\b(emergency|call\s+911|call\s+an?\s+ambulance)\b`},
}

type compiledPattern struct {
	name string
	re   *regexp.Regexp
}

// Detector runs the fixed emergency pattern set over raw input text.
type Detector struct {
	patterns []compiledPattern
}

// New compiles the canonical pattern list. A compile error here must be
// treated as fatal by the caller: starting without emergency detection is
// unacceptable.
func New() (*Detector, error) {
	d := &Detector{patterns: make([]compiledPattern, 0, len(patternDefs))}
	for _, def := range patternDefs {
		re, err := regexp.Compile(def.expr)
		if err != nil {
			return nil, fmt.Errorf("compile emergency pattern %q: %w", def.name, err)
		}
		d.patterns = append(d.patterns, compiledPattern{name: def.name, re: re})
	}
	return d, nil
}

// Check reports whether the text contains any emergency marker.
func (d *Detector) Check(text string) bool {
	if text == "" {
		return false
	}
	for _, p := range d.patterns {
		if p.re.MatchString(text) {
			return true
		}
	}
	return false
}

// Matches returns the names of all matched markers, in canonical order.
func (d *Detector) Matches(text string) []string {
	if text == "" {
		return nil
	}
	var hits []string
	for _, p := range d.patterns {
		if p.re.MatchString(text) {
			hits = append(hits, p.name)
		}
	}
	return hits
}
