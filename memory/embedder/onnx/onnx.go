//go:build onnx

// Package onnx implements memory.Embedder with a local sentence-transformer
// model (all-MiniLM-L6-v2 style) run through ONNX Runtime. It needs no API
// credential, which makes it the offline alternative to the OpenAI embedder.
package onnx

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

const maxSeqLen = 128

// Config configures the local embedder.
type Config struct {
	// ModelPath points at the exported ONNX model file.
	ModelPath string

	// VocabPath points at the WordPiece vocab.txt (one token per line).
	VocabPath string

	// LibraryPath optionally overrides the onnxruntime shared library path.
	LibraryPath string

	// Dimensions is the model's hidden size. Defaults to 384 (MiniLM).
	Dimensions int
}

// Embedder runs tokenize -> inference -> mean pool -> normalize.
type Embedder struct {
	session *ort.DynamicAdvancedSession
	vocab   *wordPieceVocab
	dims    int
}

// New loads the model and vocabulary and prepares an inference session.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("onnx: ModelPath is required")
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("onnx: initialize runtime: %w", err)
	}

	vocab, err := loadVocab(cfg.VocabPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: load vocab: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: create session: %w", err)
	}

	return &Embedder{session: session, vocab: vocab, dims: cfg.Dimensions}, nil
}

// Embed converts text to a normalized embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ids := e.vocab.encode(text)
	if len(ids) > maxSeqLen-2 {
		ids = ids[:maxSeqLen-2]
	}

	inputIDs := make([]int64, maxSeqLen)
	attention := make([]int64, maxSeqLen)
	tokenTypes := make([]int64, maxSeqLen)

	inputIDs[0] = e.vocab.cls
	attention[0] = 1
	for i, id := range ids {
		inputIDs[i+1] = id
		attention[i+1] = 1
	}
	inputIDs[len(ids)+1] = e.vocab.sep
	attention[len(ids)+1] = 1

	shape := ort.NewShape(1, maxSeqLen)
	inputs := make([]ort.Value, 0, 3)
	for _, data := range [][]int64{inputIDs, attention, tokenTypes} {
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("onnx: create tensor: %w", err)
		}
		defer t.Destroy()
		inputs = append(inputs, t)
	}

	outputs := []ort.Value{nil}
	if err := e.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("onnx: inference: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("onnx: unexpected output tensor type")
	}
	hidden := out.GetData()
	outShape := out.GetShape()
	if len(outShape) != 3 || outShape[2] != int64(e.dims) {
		return nil, fmt.Errorf("onnx: unexpected output shape %v", outShape)
	}

	// Mean pool over attended positions.
	vec := make([]float32, e.dims)
	var attended float32
	for pos := 0; pos < int(outShape[1]) && pos < maxSeqLen; pos++ {
		if attention[pos] == 0 {
			continue
		}
		attended++
		off := pos * e.dims
		for j := 0; j < e.dims; j++ {
			vec[j] += hidden[off+j]
		}
	}
	if attended > 0 {
		for j := range vec {
			vec[j] /= attended
		}
	}

	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = float32(math.Sqrt(float64(norm)))
		for j := range vec {
			vec[j] /= norm
		}
	}
	return vec, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dims
}

// Close releases the inference session.
func (e *Embedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}

// wordPieceVocab holds a BERT WordPiece vocabulary with greedy
// longest-prefix tokenization.
type wordPieceVocab struct {
	ids           map[string]int64
	cls, sep, unk int64
}

func loadVocab(path string) (*wordPieceVocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	v := &wordPieceVocab{ids: make(map[string]int64)}
	scanner := bufio.NewScanner(f)
	var id int64
	for scanner.Scan() {
		v.ids[strings.TrimSpace(scanner.Text())] = id
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	var ok bool
	if v.cls, ok = v.ids["[CLS]"]; !ok {
		return nil, fmt.Errorf("vocab missing [CLS]")
	}
	if v.sep, ok = v.ids["[SEP]"]; !ok {
		return nil, fmt.Errorf("vocab missing [SEP]")
	}
	if v.unk, ok = v.ids["[UNK]"]; !ok {
		return nil, fmt.Errorf("vocab missing [UNK]")
	}
	return v, nil
}

func (v *wordPieceVocab) encode(text string) []int64 {
	var out []int64
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()")
		if word == "" {
			continue
		}
		if id, ok := v.ids[word]; ok {
			out = append(out, id)
			continue
		}
		out = append(out, v.pieces(word)...)
	}
	return out
}

// pieces splits a word into greedy longest-prefix subwords, falling back to
// [UNK] one rune at a time when no prefix matches.
func (v *wordPieceVocab) pieces(word string) []int64 {
	var out []int64
	runes := []rune(word)
	start := 0
	for start < len(runes) {
		matched := false
		for end := len(runes); end > start; end-- {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := v.ids[piece]; ok {
				out = append(out, id)
				start = end
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, v.unk)
			start++
		}
	}
	return out
}
