// Package mock provides a deterministic embedder for tests. Embeddings are
// derived from a hash of the input text, so identical texts always map to
// identical vectors while distinct texts are very unlikely to collide.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder generates hash-seeded pseudo-random unit vectors.
type Embedder struct {
	dims int
}

// New creates a mock embedder producing vectors of the given dimensionality.
func New(dims int) *Embedder {
	if dims <= 0 {
		dims = 768
	}
	return &Embedder{dims: dims}
}

// Embed returns a deterministic unit vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, e.dims)
	for i := range vec {
		// LCG keeps the sequence reproducible from the text hash.
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec), nil
}

// Dimensions returns the vector size.
func (e *Embedder) Dimensions() int {
	return e.dims
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
