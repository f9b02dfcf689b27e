// Package model defines the generative capability behind one interface so
// the turn pipeline never sees a vendor SDK, and provides the fallback and
// mock completers.
package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/threadmind/threadmind/core"
)

// Completer maps an ordered list of role-tagged turns to a text completion.
type Completer interface {
	Complete(ctx context.Context, turns []core.PromptTurn) (string, error)
}

// FallbackReply is the fixed reply emitted when no generative backend is
// configured. Generation degrades gracefully for end users instead of
// failing the turn; embedding deliberately does not get the same treatment.
const FallbackReply = "I'm not connected to a language model right now, so I can't compose a reply. Your message has been saved."

// Fallback is a Completer that always returns FallbackReply. It is what an
// unconfigured generative backend degrades to.
type Fallback struct{}

// Complete returns the fixed fallback reply.
func (Fallback) Complete(ctx context.Context, turns []core.PromptTurn) (string, error) {
	return FallbackReply, nil
}

// Mock is a canned Completer for tests. It replies with the registered
// response for the last turn's text, or echoes the prompt when none is set.
type Mock struct {
	responses map[string]string

	// Calls records every prompt passed to Complete, for assertions.
	Calls [][]core.PromptTurn

	// Err, when set, is returned by every Complete call.
	Err error
}

// NewMock constructs an empty mock completer.
func NewMock() *Mock {
	return &Mock{responses: make(map[string]string)}
}

// AddResponse registers a canned reply for a last-turn text.
func (m *Mock) AddResponse(lastTurnText, reply string) {
	m.responses[lastTurnText] = reply
}

// Complete implements Completer.
func (m *Mock) Complete(ctx context.Context, turns []core.PromptTurn) (string, error) {
	m.Calls = append(m.Calls, turns)
	if m.Err != nil {
		return "", m.Err
	}
	if len(turns) == 0 {
		return "", fmt.Errorf("mock: empty prompt")
	}
	last := turns[len(turns)-1].Text
	if reply, ok := m.responses[last]; ok {
		return reply, nil
	}

	var b strings.Builder
	b.WriteString("Mock reply to: ")
	b.WriteString(last)
	return b.String(), nil
}
