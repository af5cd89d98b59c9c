package entity

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/medscan-ai/medscan/internal/knowledge"
)

// Match specificity maps onto confidence: an exact multi-word phrase is
// stronger evidence than a single word, which is stronger than a stem match.
const (
	confidenceMultiWord = 0.90
	confidenceExactWord = 0.75
	confidenceStem      = 0.60
)

// RuleExtractor matches input text against the knowledge base's term list.
// It is the tier-zero extractor and the fallback for every model variant.
type RuleExtractor struct {
	kb *knowledge.Base
}

// NewRuleExtractor builds the always-available rule-based extractor.
func NewRuleExtractor(kb *knowledge.Base) *RuleExtractor {
	return &RuleExtractor{kb: kb}
}

// Extract scans for knowledge terms, longest phrase first, so "chest pain"
// claims its region before "pain" can. Never degraded: this is the floor.
func (r *RuleExtractor) Extract(_ context.Context, text string) ([]Entity, bool) {
	return r.match(text), false
}

func (r *RuleExtractor) match(text string) []Entity {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lower := lowerPreservingOffsets(text)
	claimed := make([]bool, len(lower))
	var entities []Entity

	for _, term := range r.kb.Terms() {
		for _, pos := range wholeWordOccurrences(lower, term, claimed) {
			entry, ok := r.kb.Lookup(term)
			if !ok {
				continue
			}
			claim(claimed, pos, pos+len(term))
			conf := confidenceExactWord
			if strings.ContainsRune(term, ' ') {
				conf = confidenceMultiWord
			}
			entities = append(entities, Entity{
				Text:        text[pos : pos+len(term)],
				Label:       entry.Term,
				Category:    entry.Category,
				ConceptCode: entry.ConceptCode,
				Confidence:  conf,
				Start:       pos,
				End:         pos + len(term),
			})
		}
	}

	entities = append(entities, r.stemMatches(text, lower, claimed)...)
	return finalize(entities)
}

// stemMatches catches inflections the term list misses, e.g. "aching" for
// "ache". A word qualifies when a known term is a prefix of it and the
// remainder is a short suffix.
func (r *RuleExtractor) stemMatches(text, lower string, claimed []bool) []Entity {
	var entities []Entity
	for _, w := range wordsWithOffsets(lower) {
		if regionClaimed(claimed, w.start, w.end) {
			continue
		}
		word := w.text
		for _, term := range r.kb.Terms() {
			if strings.ContainsRune(term, ' ') || len(term) < 4 {
				continue
			}
			if !strings.HasPrefix(word, term) || len(word)-len(term) > 3 || len(word) == len(term) {
				continue
			}
			entry, ok := r.kb.Lookup(term)
			if !ok {
				continue
			}
			claim(claimed, w.start, w.end)
			entities = append(entities, Entity{
				Text:        text[w.start:w.end],
				Label:       entry.Term,
				Category:    entry.Category,
				ConceptCode: entry.ConceptCode,
				Confidence:  confidenceStem,
				Start:       w.start,
				End:         w.end,
			})
			break
		}
	}
	return entities
}

// lowerPreservingOffsets lowercases text without changing its byte length:
// a rune whose lowered form encodes to a different number of bytes is kept
// as-is, so every offset into the result is a valid offset into the
// original. Knowledge terms are plain ASCII, so such runes could never be
// part of a match anyway.
func lowerPreservingOffsets(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, width := utf8.DecodeRuneInString(s[i:])
		if l := unicode.ToLower(r); utf8.RuneLen(l) == width {
			b.WriteRune(l)
		} else {
			b.WriteString(s[i : i+width])
		}
		i += width
	}
	return b.String()
}

// wholeWordOccurrences finds every boundary-delimited, unclaimed occurrence
// of term in lower.
func wholeWordOccurrences(lower, term string, claimed []bool) []int {
	var out []int
	for from := 0; from < len(lower); {
		idx := strings.Index(lower[from:], term)
		if idx < 0 {
			break
		}
		pos := from + idx
		end := pos + len(term)
		if isBoundary(lower, pos-1) && isBoundary(lower, end) && !regionClaimed(claimed, pos, end) {
			out = append(out, pos)
		}
		from = pos + 1
	}
	return out
}

func isBoundary(s string, idx int) bool {
	if idx < 0 || idx >= len(s) {
		return true
	}
	r := rune(s[idx])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func claim(claimed []bool, start, end int) {
	for i := start; i < end && i < len(claimed); i++ {
		claimed[i] = true
	}
}

func regionClaimed(claimed []bool, start, end int) bool {
	for i := start; i < end && i < len(claimed); i++ {
		if claimed[i] {
			return true
		}
	}
	return false
}

type word struct {
	text  string
	start int
	end   int
}

func wordsWithOffsets(s string) []word {
	var out []word
	start := -1
	for i, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, word{text: s[start:i], start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, word{text: s[start:], start: start, end: len(s)})
	}
	return out
}
