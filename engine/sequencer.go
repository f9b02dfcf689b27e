package engine

import (
	"context"
	"sync"
)

// sequencer hands out one lane per chat so turns of the same chat run
// strictly one after another, while turns of different chats never block
// each other. Without it, two in-flight turns for one chat could interleave
// their persistence and leave the stored message order diverging from
// causal order.
//
// Lanes are refcounted and removed when idle, so the map only holds chats
// with in-flight or queued turns.
type sequencer struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

type lane struct {
	sem  chan struct{}
	refs int
}

func newSequencer() *sequencer {
	return &sequencer{lanes: make(map[string]*lane)}
}

// acquire blocks until the chat's lane is free or ctx is done. The returned
// release function must be called exactly once.
func (s *sequencer) acquire(ctx context.Context, chatID string) (func(), error) {
	s.mu.Lock()
	ln, ok := s.lanes[chatID]
	if !ok {
		ln = &lane{sem: make(chan struct{}, 1)}
		s.lanes[chatID] = ln
	}
	ln.refs++
	s.mu.Unlock()

	select {
	case ln.sem <- struct{}{}:
	case <-ctx.Done():
		s.drop(chatID, ln)
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-ln.sem
			s.drop(chatID, ln)
		})
	}
	return release, nil
}

func (s *sequencer) drop(chatID string, ln *lane) {
	s.mu.Lock()
	ln.refs--
	if ln.refs == 0 {
		delete(s.lanes, chatID)
	}
	s.mu.Unlock()
}
