package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadmind/threadmind/core"
)

func TestFallbackAlwaysReplies(t *testing.T) {
	reply, err := Fallback{}.Complete(context.Background(), []core.PromptTurn{
		{Role: core.RoleUser, Text: "anything"},
	})
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, reply)
	assert.NotEmpty(t, FallbackReply)
}

func TestMockCannedResponses(t *testing.T) {
	m := NewMock()
	m.AddResponse("what's my favorite color?", "Blue.")

	reply, err := m.Complete(context.Background(), []core.PromptTurn{
		{Role: core.RoleUser, Text: "earlier context"},
		{Role: core.RoleUser, Text: "what's my favorite color?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Blue.", reply)

	// Unregistered last turns echo, so tests can still see the prompt.
	reply, err = m.Complete(context.Background(), []core.PromptTurn{
		{Role: core.RoleUser, Text: "unregistered"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Mock reply to: unregistered", reply)

	assert.Len(t, m.Calls, 2)
}

func TestMockErr(t *testing.T) {
	m := NewMock()
	m.Err = errors.New("boom")

	_, err := m.Complete(context.Background(), []core.PromptTurn{{Role: core.RoleUser, Text: "hi"}})
	assert.Error(t, err)
	assert.Len(t, m.Calls, 1)
}

func TestMockEmptyPrompt(t *testing.T) {
	_, err := NewMock().Complete(context.Background(), nil)
	assert.Error(t, err)
}
