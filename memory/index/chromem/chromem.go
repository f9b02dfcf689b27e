// Package chromem implements memory.Index on top of chromem-go, a pure Go
// embedded vector database. Each user gets a dedicated collection so queries
// are namespaced without a filter expression.
package chromem

import (
	"context"
	"fmt"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/threadmind/threadmind/memory"
)

// Index stores memory records in per-user chromem collections.
type Index struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
}

// New creates an in-process chromem index.
func New() (*Index, error) {
	return &Index{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// NewPersistent creates a chromem index persisted under dir.
func NewPersistent(dir string) (*Index, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return &Index{
		db:          db,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func (x *Index) collection(userID string) (*chromem.Collection, error) {
	x.mu.RLock()
	col, ok := x.collections[userID]
	x.mu.RUnlock()
	if ok {
		return col, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if col, ok := x.collections[userID]; ok {
		return col, nil
	}

	name := "user_" + userID
	if userID == "" {
		name = "global"
	}
	// Embeddings are always supplied by the caller, so no embedding func.
	col, err := x.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}
	x.collections[userID] = col
	return col, nil
}

// Upsert inserts or replaces the record keyed by its ID. chromem keys
// documents by ID, so re-adding the same message replaces in place.
func (x *Index) Upsert(ctx context.Context, rec memory.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("chromem: record has no id")
	}
	col, err := x.collection(rec.Meta.UserID)
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        rec.ID,
		Content:   rec.Meta.Text,
		Embedding: rec.Vector,
		Metadata: map[string]string{
			"chat_id":    rec.Meta.ChatID,
			"user_id":    rec.Meta.UserID,
			"created_at": rec.Meta.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("chromem upsert %s: %w", rec.ID, err)
	}
	return nil
}

// Query returns up to topK matches for userID ranked by cosine similarity.
// chromem rejects result counts larger than the collection, so topK is
// clamped to the current document count.
func (x *Index) Query(ctx context.Context, userID string, vector []float32, topK int) ([]memory.Match, error) {
	col, err := x.collection(userID)
	if err != nil {
		return nil, err
	}

	if n := col.Count(); n < topK {
		topK = n
	}
	if topK <= 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	matches := make([]memory.Match, 0, len(results))
	for _, res := range results {
		createdAt, _ := time.Parse(time.RFC3339Nano, res.Metadata["created_at"])
		matches = append(matches, memory.Match{
			Record: memory.Record{
				ID:     res.ID,
				Vector: res.Embedding,
				Meta: memory.Meta{
					ChatID:    res.Metadata["chat_id"],
					UserID:    res.Metadata["user_id"],
					Text:      res.Content,
					CreatedAt: createdAt,
				},
			},
			Score: res.Similarity,
		})
	}
	return matches, nil
}

// Close releases resources. The in-memory variant has nothing to release.
func (x *Index) Close() error {
	return nil
}
