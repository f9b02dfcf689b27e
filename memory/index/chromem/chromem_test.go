package chromem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadmind/threadmind/memory"
	"github.com/threadmind/threadmind/memory/embedder/mock"
)

func record(t *testing.T, e *mock.Embedder, id, chatID, userID, text string) memory.Record {
	t.Helper()
	vec, err := e.Embed(context.Background(), text)
	require.NoError(t, err)
	return memory.Record{
		ID:     id,
		Vector: vec,
		Meta: memory.Meta{
			ChatID:    chatID,
			UserID:    userID,
			Text:      text,
			CreatedAt: time.Now().UTC(),
		},
	}
}

func TestUpsertAndQueryRoundtrip(t *testing.T) {
	idx, err := New()
	require.NoError(t, err)
	defer idx.Close()
	e := mock.New(64)
	ctx := context.Background()

	rec := record(t, e, "m1", "c1", "u1", "my favorite color is blue")
	require.NoError(t, idx.Upsert(ctx, rec))

	matches, err := idx.Query(ctx, "u1", rec.Vector, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "m1", matches[0].ID)
	assert.Equal(t, "c1", matches[0].Meta.ChatID)
	assert.Equal(t, "my favorite color is blue", matches[0].Meta.Text)
	// Identical vector, cosine similarity 1.
	assert.InDelta(t, 1.0, float64(matches[0].Score), 1e-4)
}

func TestUpsertReplacesInPlace(t *testing.T) {
	idx, err := New()
	require.NoError(t, err)
	defer idx.Close()
	e := mock.New(64)
	ctx := context.Background()

	rec := record(t, e, "m1", "c1", "u1", "original text")
	require.NoError(t, idx.Upsert(ctx, rec))

	rec.Meta.Text = "replacement text"
	vec, err := e.Embed(ctx, rec.Meta.Text)
	require.NoError(t, err)
	rec.Vector = vec
	require.NoError(t, idx.Upsert(ctx, rec))

	matches, err := idx.Query(ctx, "u1", vec, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "replacement text", matches[0].Meta.Text)
}

func TestQueryClampsTopK(t *testing.T) {
	idx, err := New()
	require.NoError(t, err)
	defer idx.Close()
	e := mock.New(64)
	ctx := context.Background()

	// topK larger than the collection must not error.
	rec := record(t, e, "m1", "c1", "u1", "only record")
	require.NoError(t, idx.Upsert(ctx, rec))

	matches, err := idx.Query(ctx, "u1", rec.Vector, 5)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestQueryEmptyCollection(t *testing.T) {
	idx, err := New()
	require.NoError(t, err)
	defer idx.Close()
	e := mock.New(64)

	vec, err := e.Embed(context.Background(), "anything")
	require.NoError(t, err)

	matches, err := idx.Query(context.Background(), "u1", vec, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestUsersAreIsolated(t *testing.T) {
	idx, err := New()
	require.NoError(t, err)
	defer idx.Close()
	e := mock.New(64)
	ctx := context.Background()

	alice := record(t, e, "m1", "c1", "alice", "alice's secret")
	require.NoError(t, idx.Upsert(ctx, alice))

	matches, err := idx.Query(ctx, "bob", alice.Vector, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestUpsertRequiresID(t *testing.T) {
	idx, err := New()
	require.NoError(t, err)
	defer idx.Close()

	err = idx.Upsert(context.Background(), memory.Record{Vector: []float32{1}})
	assert.Error(t, err)
}

func TestPersistentSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	e := mock.New(64)
	ctx := context.Background()

	idx, err := NewPersistent(dir)
	require.NoError(t, err)
	rec := record(t, e, "m1", "c1", "u1", "remember me")
	require.NoError(t, idx.Upsert(ctx, rec))
	require.NoError(t, idx.Close())

	reopened, err := NewPersistent(dir)
	require.NoError(t, err)
	defer reopened.Close()

	matches, err := reopened.Query(ctx, "u1", rec.Vector, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "remember me", matches[0].Meta.Text)
}
