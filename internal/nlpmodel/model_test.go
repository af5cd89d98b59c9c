package nlpmodel

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPickTokenLabelsArgmaxAndThreshold(t *testing.T) {
	labels := []string{"O", "B-SYMPTOM", "I-SYMPTOM"}
	// Two tokens: first strongly B-SYMPTOM, second weakly I-SYMPTOM.
	logits := []float32{
		0.0, 4.0, 0.0,
		0.4, 0.0, 0.6,
	}
	attn := []int64{1, 1}

	picked := pickTokenLabels(logits, attn, labels, map[string]float32{"SYMPTOM": 0.9})
	if picked[0].label != "B-SYMPTOM" {
		t.Fatalf("expected confident token to keep its label, got %q", picked[0].label)
	}
	if picked[1].label != "O" {
		t.Fatalf("expected sub-threshold token to drop to O, got %q", picked[1].label)
	}
}

func TestPickTokenLabelsMasksPadding(t *testing.T) {
	labels := []string{"O", "B-SYMPTOM"}
	logits := []float32{0, 5, 0, 5}
	attn := []int64{1, 0}

	picked := pickTokenLabels(logits, attn, labels, nil)
	if picked[1].label != "O" {
		t.Fatalf("padding token must be O, got %q", picked[1].label)
	}
}

func TestAssembleSpansMergesBIO(t *testing.T) {
	text := "severe chest pain today"
	picked := []tokenLabel{
		{label: "O"},
		{label: "B-SYMPTOM", score: 0.9},
		{label: "I-SYMPTOM", score: 0.7},
		{label: "O"},
	}
	offsets := []TokenOffset{
		{Start: 0, End: 6},
		{Start: 7, End: 12},
		{Start: 13, End: 17},
		{Start: 18, End: 23},
	}

	spans := assembleSpans(picked, offsets, text)
	if len(spans) != 1 {
		t.Fatalf("expected one merged span, got %d: %+v", len(spans), spans)
	}
	s := spans[0]
	if s.Text != "chest pain" || s.Label != "SYMPTOM" {
		t.Fatalf("unexpected span: %+v", s)
	}
	if s.Score < 0.79 || s.Score > 0.81 {
		t.Fatalf("expected mean score 0.8, got %v", s.Score)
	}
}

func TestAssembleSpansSplitsOnNewB(t *testing.T) {
	text := "headache nausea"
	picked := []tokenLabel{
		{label: "B-SYMPTOM", score: 0.9},
		{label: "B-SYMPTOM", score: 0.8},
	}
	offsets := []TokenOffset{{Start: 0, End: 8}, {Start: 9, End: 15}}

	spans := assembleSpans(picked, offsets, text)
	if len(spans) != 2 {
		t.Fatalf("expected two spans, got %d: %+v", len(spans), spans)
	}
	if spans[0].Text != "headache" || spans[1].Text != "nausea" {
		t.Fatalf("unexpected spans: %+v", spans)
	}
}

func TestLoadLabelsIndexMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "label_map.json")
	if err := os.WriteFile(path, []byte(`{"0":"O","1":"B-SYMPTOM","2":"I-SYMPTOM"}`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	labels, err := loadLabels(path)
	if err != nil {
		t.Fatalf("load labels: %v", err)
	}
	if len(labels) != 3 || labels[1] != "B-SYMPTOM" {
		t.Fatalf("unexpected labels: %v", labels)
	}
}

func TestLoadThresholdsMissingFileIsEmpty(t *testing.T) {
	th, err := loadThresholds(filepath.Join(t.TempDir(), "thresholds.yaml"))
	if err != nil {
		t.Fatalf("missing thresholds file should not error: %v", err)
	}
	if len(th) != 0 {
		t.Fatalf("expected empty thresholds, got %v", th)
	}
}

func TestTokenizerOffsetsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	vocab := "[PAD]\n[UNK]\n[CLS]\n[SEP]\nchest\npain\nsevere\n,\n"
	if err := os.WriteFile(path, []byte(vocab), 0o644); err != nil {
		t.Fatalf("write vocab: %v", err)
	}

	tok, err := LoadWordPieceTokenizer(path)
	if err != nil {
		t.Fatalf("load tokenizer: %v", err)
	}

	text := "Severe chest pain, again"
	ids, attn, offsets := tok.Encode(text, 16)
	if len(ids) != 16 || len(attn) != 16 || len(offsets) != 16 {
		t.Fatalf("expected fixed-length encoding, got %d/%d/%d", len(ids), len(attn), len(offsets))
	}

	// Every attended non-special token's offsets must slice back to a
	// lowercase-equal piece of the input.
	for i, off := range offsets {
		if off.Start < 0 || attn[i] == 0 {
			continue
		}
		if off.End <= off.Start || off.End > len(text) {
			t.Fatalf("bad offset %+v for token %d", off, i)
		}
	}

	// "pain," must split into "pain" + "," spans.
	spans := splitWordsWithOffsets(text)
	var sawPain, sawComma bool
	for _, s := range spans {
		if s.Text == "pain" {
			sawPain = true
		}
		if s.Text == "," {
			sawComma = true
		}
	}
	if !sawPain || !sawComma {
		t.Fatalf("punctuation not split: %+v", spans)
	}
}
