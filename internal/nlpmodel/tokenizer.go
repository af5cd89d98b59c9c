package nlpmodel

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// WordPieceTokenizer implements a minimal BERT-compatible tokenizer with
// byte-offset tracking, which entity extraction needs to map token spans
// back onto the input text.
type WordPieceTokenizer struct {
	vocab        map[string]int64
	lowerCase    bool
	clsID        int64
	sepID        int64
	padID        int64
	unkID        int64
	continuation string
}

// TokenOffset maps one encoded token to its [Start,End) byte range in the
// original text. Special and padding tokens carry {-1,-1}.
type TokenOffset struct {
	Start int
	End   int
}

// LoadWordPieceTokenizer builds the tokenizer from vocab.txt.
func LoadWordPieceTokenizer(path string) (*WordPieceTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()

	vocab := make(map[string]int64)
	sc := bufio.NewScanner(f)
	var idx int64
	for sc.Scan() {
		token := strings.TrimSpace(sc.Text())
		if token == "" {
			continue
		}
		vocab[token] = idx
		idx++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan vocab: %w", err)
	}

	return &WordPieceTokenizer{
		vocab:        vocab,
		lowerCase:    true,
		continuation: "##",
		clsID:        vocab["[CLS]"],
		sepID:        vocab["[SEP]"],
		padID:        vocab["[PAD]"],
		unkID:        vocab["[UNK]"],
	}, nil
}

// Encode converts text into token IDs, an attention mask, and per-token
// offsets, all of length seqLen.
func (t *WordPieceTokenizer) Encode(text string, seqLen int) ([]int64, []int64, []TokenOffset) {
	if seqLen <= 0 {
		return nil, nil, nil
	}

	words := splitWordsWithOffsets(text)
	tokens := []int64{t.clsID}
	offsets := []TokenOffset{{Start: -1, End: -1}}

	for _, w := range words {
		token := w.Text
		if t.lowerCase {
			token = strings.ToLower(token)
		}
		for _, p := range t.wordPiece(token) {
			tokens = append(tokens, p.id)
			offsets = append(offsets, TokenOffset{Start: w.Start + p.start, End: w.Start + p.end})
			if len(tokens) >= seqLen-1 {
				break
			}
		}
		if len(tokens) >= seqLen-1 {
			break
		}
	}

	tokens = append(tokens, t.sepID)
	offsets = append(offsets, TokenOffset{Start: -1, End: -1})

	attn := make([]int64, seqLen)
	for i := 0; i < len(tokens) && i < seqLen; i++ {
		attn[i] = 1
	}

	for len(tokens) < seqLen {
		tokens = append(tokens, t.padID)
		offsets = append(offsets, TokenOffset{Start: -1, End: -1})
	}

	return tokens, attn, offsets
}

type wordPiece struct {
	id    int64
	start int
	end   int
}

func (t *WordPieceTokenizer) wordPiece(token string) []wordPiece {
	if id, ok := t.vocab[token]; ok {
		return []wordPiece{{id: id, start: 0, end: len(token)}}
	}

	var pieces []wordPiece
	start := 0
	for start < len(token) {
		end := len(token)
		matched := false
		for end > start {
			sub := token[start:end]
			if start > 0 {
				sub = t.continuation + sub
			}
			if id, ok := t.vocab[sub]; ok {
				pieces = append(pieces, wordPiece{id: id, start: start, end: end})
				start = end
				matched = true
				break
			}
			end--
		}
		if !matched {
			return []wordPiece{{id: t.unkID, start: 0, end: len(token)}}
		}
	}
	if len(pieces) == 0 {
		return []wordPiece{{id: t.unkID, start: 0, end: len(token)}}
	}
	return pieces
}

type wordSpan struct {
	Text  string
	Start int
	End   int
}

// splitWordsWithOffsets splits on whitespace and peels punctuation into its
// own spans, keeping byte offsets into the original text.
func splitWordsWithOffsets(text string) []wordSpan {
	if text == "" {
		return nil
	}

	var spans []wordSpan
	flush := func(start, end int) {
		if start < 0 || end <= start {
			return
		}
		spans = append(spans, splitPunct(text, start, end)...)
	}

	start := -1
	for idx, r := range text {
		if unicode.IsSpace(r) {
			flush(start, idx)
			start = -1
			continue
		}
		if start < 0 {
			start = idx
		}
	}
	flush(start, len(text))
	return spans
}

func splitPunct(text string, start, end int) []wordSpan {
	var out []wordSpan
	word := text[start:end]
	segStart := 0
	for i, r := range word {
		if unicode.IsPunct(r) && r != '\'' && r != '-' {
			if i > segStart {
				out = append(out, wordSpan{Text: word[segStart:i], Start: start + segStart, End: start + i})
			}
			out = append(out, wordSpan{Text: string(r), Start: start + i, End: start + i + len(string(r))})
			segStart = i + len(string(r))
		}
	}
	if segStart < len(word) {
		out = append(out, wordSpan{Text: word[segStart:], Start: start + segStart, End: end})
	}
	return out
}
