package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadmind/threadmind/memory/embedder/mock"
)

// countingEmbedder wraps the mock embedder and counts delegated calls.
type countingEmbedder struct {
	inner *mock.Embedder

	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	c.calls++
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) Dimensions() int { return c.inner.Dimensions() }

func (c *countingEmbedder) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestEmbedCachesByText(t *testing.T) {
	inner := &countingEmbedder{inner: mock.New(64)}
	e, err := New(inner, 1<<20)
	require.NoError(t, err)
	defer e.Close()
	ctx := context.Background()

	first, err := e.Embed(ctx, "hello")
	require.NoError(t, err)
	e.Wait()

	second, err := e.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.callCount())

	_, err = e.Embed(ctx, "different text")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.callCount())
}

func TestEmbedNeverCachesErrors(t *testing.T) {
	inner := &countingEmbedder{inner: mock.New(64), err: errors.New("backend down")}
	e, err := New(inner, 1<<20)
	require.NoError(t, err)
	defer e.Close()
	ctx := context.Background()

	_, err = e.Embed(ctx, "hello")
	require.Error(t, err)
	e.Wait()

	// Once the backend recovers, the same text goes through again.
	inner.mu.Lock()
	inner.err = nil
	inner.mu.Unlock()

	vec, err := e.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 64)
	assert.Equal(t, 2, inner.callCount())
}

func TestDimensionsDelegates(t *testing.T) {
	e, err := New(mock.New(384), 0)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, 384, e.Dimensions())
}
