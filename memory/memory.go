// Package memory defines the long-term memory capabilities: converting text
// to vectors and storing/retrieving those vectors by similarity.
//
// Both capabilities are modeled as small interfaces so the turn pipeline can
// be exercised with fakes and production backends can be swapped freely:
//
//   - Embedder: text -> fixed-length vector (OpenAI API, local ONNX, mock)
//   - Index: keyed upsert + top-K similarity query (chromem-go locally,
//     a hosted vector database in production)
//
// Records are namespaced by user. Cross-chat filtering (dropping matches
// from the chat currently being answered) is the caller's concern, since
// only the caller knows which chat a query is serving.
package memory

import (
	"context"
	"errors"
	"time"
)

// ErrEmbedderUnavailable is returned by embedders that have no usable
// backend, typically because no API credential was configured. Embeddings
// are load-bearing for memory writes and retrieval, so there is no fallback:
// callers must fail the surrounding operation.
var ErrEmbedderUnavailable = errors.New("memory: embedder unavailable")

// Meta is the payload stored alongside a vector. Text carries the original
// message content so retrieval needs no second store lookup.
type Meta struct {
	ChatID    string
	UserID    string
	Text      string
	CreatedAt time.Time
}

// Record is one vector-indexed message. ID is the originating message's ID,
// so writing the same message twice replaces rather than duplicates.
type Record struct {
	ID     string
	Vector []float32
	Meta   Meta
}

// Match is a query result: a stored record plus its similarity score,
// higher is closer.
type Match struct {
	Record
	Score float32
}

// Index is the vector storage capability.
type Index interface {
	// Upsert inserts or replaces the record keyed by Record.ID.
	Upsert(ctx context.Context, rec Record) error

	// Query returns up to topK records belonging to userID, ranked by
	// similarity to vector. Fewer (or zero) results is not an error.
	Query(ctx context.Context, userID string, vector []float32, topK int) ([]Match, error)

	// Close releases backend resources.
	Close() error
}

// Embedder converts text to a fixed-length vector.
type Embedder interface {
	// Embed converts a single text to its embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
