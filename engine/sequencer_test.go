package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencerExcludesSameChat(t *testing.T) {
	seq := newSequencer()

	release1, err := seq.acquire(context.Background(), "c1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		release2, err := seq.acquire(context.Background(), "c1")
		assert.NoError(t, err)
		close(acquired)
		release2()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while lane was held")
	case <-time.After(50 * time.Millisecond):
	}

	release1()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never proceeded after release")
	}
}

func TestSequencerIndependentChats(t *testing.T) {
	seq := newSequencer()

	release1, err := seq.acquire(context.Background(), "c1")
	require.NoError(t, err)
	defer release1()

	done := make(chan struct{})
	go func() {
		release2, err := seq.acquire(context.Background(), "c2")
		assert.NoError(t, err)
		release2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different chat blocked on an unrelated lane")
	}
}

func TestSequencerAcquireHonorsContext(t *testing.T) {
	seq := newSequencer()

	release, err := seq.acquire(context.Background(), "c1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = seq.acquire(ctx, "c1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSequencerReleaseIsIdempotent(t *testing.T) {
	seq := newSequencer()

	release, err := seq.acquire(context.Background(), "c1")
	require.NoError(t, err)
	release()
	release()

	// Lane is free again after the double release.
	release2, err := seq.acquire(context.Background(), "c1")
	require.NoError(t, err)
	release2()
}

func TestSequencerDropsIdleLanes(t *testing.T) {
	seq := newSequencer()

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := seq.acquire(context.Background(), "c1")
			assert.NoError(t, err)
			release()
		}()
	}
	wg.Wait()

	seq.mu.Lock()
	defer seq.mu.Unlock()
	assert.Empty(t, seq.lanes)
}
