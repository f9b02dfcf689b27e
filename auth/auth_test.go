package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadmind/threadmind/core"
)

func TestIssueVerifyRoundtrip(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	user := core.User{ID: "u-123"}

	signed, err := tokens.Issue(user)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	userID, err := tokens.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "u-123", userID)
}

func TestVerifyFailsClosedWithoutSecret(t *testing.T) {
	tokens := NewTokens("", time.Hour)

	_, err := tokens.Issue(core.User{ID: "u-123"})
	assert.ErrorIs(t, err, ErrNoSecret)

	// Even a token signed elsewhere is refused when no secret is set.
	signed, err := NewTokens("other-secret", time.Hour).Issue(core.User{ID: "u-123"})
	require.NoError(t, err)
	_, err = tokens.Verify(signed)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signed, err := NewTokens("secret-a", time.Hour).Issue(core.User{ID: "u-123"})
	require.NoError(t, err)

	_, err = NewTokens("secret-b", time.Hour).Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMalformedAndEmpty(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)

	_, err := tokens.Verify("")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	tokens := NewTokens("test-secret", time.Nanosecond)

	signed, err := tokens.Issue(core.User{ID: "u-123"})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = tokens.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDefaultTTLApplied(t *testing.T) {
	tokens := NewTokens("test-secret", 0)
	assert.Equal(t, DefaultTokenTTL, tokens.ttl)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "correct horse battery staple"))
	assert.False(t, CheckPassword(hash, "wrong password"))
	assert.False(t, CheckPassword(nil, "correct horse battery staple"))
}
