// Package openai implements memory.Embedder using the OpenAI embeddings API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/threadmind/threadmind/memory"
)

// Options configure the OpenAI embedder.
type Options struct {
	// Model is the embedding model name. Defaults to text-embedding-3-small.
	Model string

	// Dimensions is the requested vector size. Defaults to 768.
	Dimensions int
}

// Embedder calls the OpenAI embeddings endpoint. An embedder constructed
// without an API key is unconfigured: every Embed call fails with
// memory.ErrEmbedderUnavailable so turns abort instead of writing memories
// with garbage vectors.
type Embedder struct {
	client     *openai.Client
	opts       Options
	configured bool
}

// New creates an OpenAI embedder. An empty apiKey yields an unconfigured
// embedder rather than an error, so the server can still boot.
func New(apiKey string, optFns ...func(o *Options)) *Embedder {
	opts := Options{
		Model:      string(openai.EmbeddingModelTextEmbedding3Small),
		Dimensions: 768,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := &Embedder{opts: opts}
	if apiKey != "" {
		client := openai.NewClient(option.WithAPIKey(apiKey))
		e.client = &client
		e.configured = true
	}
	return e
}

// Embed converts text to its embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if !e.configured {
		return nil, memory.ErrEmbedderUnavailable
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model:      openai.EmbeddingModel(e.opts.Model),
		Dimensions: openai.Int(int64(e.opts.Dimensions)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings: empty response")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Dimensions returns the requested vector size.
func (e *Embedder) Dimensions() int {
	return e.opts.Dimensions
}
