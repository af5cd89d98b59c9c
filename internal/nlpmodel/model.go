// Package nlpmodel wraps an ONNX token-classification model bundle. A bundle
// directory contains model.onnx, label_map.json, thresholds.yaml, and
// tokenizer/vocab.txt; medical bundles may add concept_map.json for
// standardized concept codes.
package nlpmodel

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"gopkg.in/yaml.v3"
)

// Span is one labeled region of input text produced by the model.
type Span struct {
	Text        string
	Label       string
	Start       int
	End         int
	Score       float32
	ConceptCode string
}

// Model wraps the ONNX session, tokenizer, labels, and optional concept map.
type Model struct {
	session   *ort.AdvancedSession
	tokenizer *WordPieceTokenizer
	labels    []string
	threshold map[string]float32
	concepts  map[string]string
	seqLen    int

	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	output        *ort.Tensor[float32]

	// The session and its bound tensors are reused across calls; inference is
	// serialized here so the model can be shared by concurrent requests.
	mu sync.Mutex
}

// Load initializes the ONNX session, tokenizer, labels, and thresholds from
// a bundle directory.
func Load(bundleDir string, seqLen int) (*Model, error) {
	if bundleDir == "" {
		return nil, errors.New("bundleDir is empty")
	}
	if seqLen <= 0 {
		seqLen = 256
	}

	modelPath := filepath.Join(bundleDir, "model.onnx")
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", modelPath, err)
	}

	libPath := resolveSharedLibraryPath(bundleDir)
	if libPath == "" {
		return nil, fmt.Errorf("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or install the runtime")
	}
	ort.SetSharedLibraryPath(libPath)
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	labels, err := loadLabels(filepath.Join(bundleDir, "label_map.json"))
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}

	threshold, err := loadThresholds(filepath.Join(bundleDir, "thresholds.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load thresholds: %w", err)
	}

	tokenizer, err := LoadWordPieceTokenizer(filepath.Join(bundleDir, "tokenizer", "vocab.txt"))
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	concepts, err := loadConceptMap(filepath.Join(bundleDir, "concept_map.json"))
	if err != nil {
		return nil, fmt.Errorf("load concept map: %w", err)
	}

	inputShape := ort.NewShape(1, int64(seqLen))
	inputIDs, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate input_ids tensor: %w", err)
	}
	attnMask, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate attention_mask tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(seqLen), int64(len(labels))))
	if err != nil {
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		[]ort.Value{inputIDs, attnMask},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &Model{
		session:       session,
		tokenizer:     tokenizer,
		labels:        labels,
		threshold:     threshold,
		concepts:      concepts,
		seqLen:        seqLen,
		inputIDs:      inputIDs,
		attentionMask: attnMask,
		output:        output,
	}, nil
}

// HasConcepts reports whether this bundle carries a concept map.
func (m *Model) HasConcepts() bool {
	return len(m.concepts) > 0
}

// ConceptFor returns the standardized concept code for a surface form, if
// the bundle knows one.
func (m *Model) ConceptFor(surface string) string {
	return m.concepts[strings.ToLower(strings.TrimSpace(surface))]
}

// Infer runs token classification over text and assembles labeled spans.
func (m *Model) Infer(text string) ([]Span, error) {
	if m == nil || m.session == nil || m.tokenizer == nil {
		return nil, errors.New("nlp model not initialized")
	}

	ids, attn, offsets := m.tokenizer.Encode(text, m.seqLen)

	m.mu.Lock()
	copy(m.inputIDs.GetData(), ids)
	copy(m.attentionMask.GetData(), attn)

	if err := m.session.Run(); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	logits := make([]float32, len(m.output.GetData()))
	copy(logits, m.output.GetData())
	m.mu.Unlock()

	picked := pickTokenLabels(logits, attn, m.labels, m.threshold)
	spans := assembleSpans(picked, offsets, text)
	for i := range spans {
		spans[i].ConceptCode = m.ConceptFor(spans[i].Text)
	}
	return spans, nil
}

// tokenLabel is the per-token classification outcome.
type tokenLabel struct {
	label string
	score float32
}

// pickTokenLabels applies a softmax over the label axis per token and keeps
// the argmax when it clears that label's threshold.
func pickTokenLabels(logits []float32, attn []int64, labels []string, threshold map[string]float32) []tokenLabel {
	numLabels := len(labels)
	if numLabels == 0 {
		return nil
	}
	numTokens := len(logits) / numLabels
	out := make([]tokenLabel, numTokens)

	for tok := 0; tok < numTokens; tok++ {
		if tok < len(attn) && attn[tok] == 0 {
			out[tok] = tokenLabel{label: "O"}
			continue
		}
		row := logits[tok*numLabels : (tok+1)*numLabels]

		var maxLogit float32 = row[0]
		for _, v := range row[1:] {
			if v > maxLogit {
				maxLogit = v
			}
		}
		var sum float64
		for _, v := range row {
			sum += math.Exp(float64(v - maxLogit))
		}

		best, bestScore := 0, float32(0)
		for i, v := range row {
			p := float32(math.Exp(float64(v-maxLogit)) / sum)
			if p > bestScore {
				best, bestScore = i, p
			}
		}

		label := labels[best]
		min := threshold[stripBIO(label)]
		if min > 0 && bestScore < min {
			label = "O"
		}
		out[tok] = tokenLabel{label: label, score: bestScore}
	}
	return out
}

// assembleSpans merges consecutive B-/I- tokens of the same type into one
// span; a bare label without BIO prefix starts a new span per token run.
func assembleSpans(picked []tokenLabel, offsets []TokenOffset, text string) []Span {
	var spans []Span
	var cur *Span
	var curScores []float32

	flush := func() {
		if cur == nil {
			return
		}
		var sum float32
		for _, s := range curScores {
			sum += s
		}
		cur.Score = sum / float32(len(curScores))
		cur.Text = text[cur.Start:cur.End]
		spans = append(spans, *cur)
		cur = nil
		curScores = nil
	}

	for i, tl := range picked {
		if i >= len(offsets) {
			break
		}
		off := offsets[i]
		if tl.label == "O" || tl.label == "" || off.Start < 0 {
			flush()
			continue
		}

		kind := stripBIO(tl.label)
		continues := cur != nil && cur.Label == kind && !strings.HasPrefix(tl.label, "B-")
		if continues {
			if off.End > cur.End {
				cur.End = off.End
			}
			curScores = append(curScores, tl.score)
			continue
		}

		flush()
		cur = &Span{Label: kind, Start: off.Start, End: off.End}
		curScores = []float32{tl.score}
	}
	flush()
	return spans
}

func stripBIO(label string) string {
	if len(label) > 2 && (label[0] == 'B' || label[0] == 'I') && label[1] == '-' {
		return label[2:]
	}
	return label
}

func loadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil && len(arr) > 0 {
		return arr, nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	out := make([]string, len(m))
	for k, v := range m {
		idx, convErr := strconv.Atoi(k)
		if convErr != nil {
			return nil, fmt.Errorf("invalid label index %q: %w", k, convErr)
		}
		if idx < 0 || idx >= len(m) {
			return nil, fmt.Errorf("label index %d out of range", idx)
		}
		out[idx] = v
	}
	return out, nil
}

func loadThresholds(path string) (map[string]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]float32{}, nil
		}
		return nil, err
	}

	var wrapper struct {
		Thresholds map[string]float32 `yaml:"thresholds"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Thresholds == nil {
		wrapper.Thresholds = map[string]float32{}
	}
	return wrapper.Thresholds, nil
}

func loadConceptMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out, nil
}

// resolveSharedLibraryPath locates a platform onnxruntime shared library.
// ONNXRUNTIME_SHARED_LIBRARY_PATH wins; otherwise common names/locations are
// probed.
func resolveSharedLibraryPath(bundleDir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"libonnxruntime.so",
		"onnxruntime.so",
		"onnxruntime.dll",
	}
	dirs := []string{
		bundleDir,
		filepath.Join(bundleDir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}

	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
