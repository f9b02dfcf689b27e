// Package cache wraps any memory.Embedder with a ristretto cache keyed by
// the input text. Turns embed the same short texts repeatedly (greetings,
// follow-ups), and embedding calls are the slowest part of the pipeline
// after generation, so hits skip a network round trip entirely.
package cache

import (
	"context"

	"github.com/dgraph-io/ristretto"

	"github.com/threadmind/threadmind/memory"
)

// Embedder is a caching decorator around another Embedder.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// New wraps inner with an in-process cache holding up to maxBytes of
// vectors. Cost accounting is byte-accurate: one float32 per dimension.
func New(inner memory.Embedder, maxBytes int64) (*Embedder, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Embedder{inner: inner, cache: c}, nil
}

// Embed returns the cached vector for text, or delegates to the wrapped
// embedder and caches the result. Errors are never cached.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vec, int64(len(vec)*4))
	return vec, nil
}

// Dimensions returns the wrapped embedder's vector size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Wait blocks until buffered writes have been applied. Sets are applied
// asynchronously, so a vector may not be visible to Get immediately.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Close releases the cache's internal goroutines.
func (e *Embedder) Close() {
	e.cache.Close()
}
