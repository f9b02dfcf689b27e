package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadmind/threadmind/auth"
	"github.com/threadmind/threadmind/core"
	"github.com/threadmind/threadmind/engine"
	"github.com/threadmind/threadmind/logging"
	"github.com/threadmind/threadmind/memory/embedder/mock"
	"github.com/threadmind/threadmind/memory/index/chromem"
	"github.com/threadmind/threadmind/model"
	"github.com/threadmind/threadmind/store/inmem"
)

type testServer struct {
	srv       *httptest.Server
	store     *inmem.Store
	tokens    *auth.Tokens
	completer *model.Mock
	user      core.User
	chat      core.Chat
}

func newTestServer(t *testing.T, secret string) *testServer {
	t.Helper()

	st := inmem.New()
	idx, err := chromem.New()
	require.NoError(t, err)
	completer := model.NewMock()
	eng := engine.New(st, mock.New(64), idx, completer, engine.WithLogger(logging.Nop{}))

	tokens := auth.NewTokens(secret, time.Hour)
	gw := New(eng, tokens,
		WithLogger(logging.Nop{}),
		WithCheckOrigin(func(*http.Request) bool { return true }))

	user, err := st.CreateUser(context.Background(), "kim@example.com", "Kim", []byte("h"))
	require.NoError(t, err)
	chat, err := st.CreateChat(context.Background(), user.ID, "chat")
	require.NoError(t, err)

	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, store: st, tokens: tokens, completer: completer, user: user, chat: chat}
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http")
}

func (ts *testServer) dial(t *testing.T, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(ts.wsURL(), header)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func bearer(t *testing.T, tokens *auth.Tokens, user core.User) http.Header {
	t.Helper()
	signed, err := tokens.Issue(user)
	require.NoError(t, err)
	h := http.Header{}
	h.Set("Authorization", "Bearer "+signed)
	return h
}

func TestHandshakeRefusedWithoutCredential(t *testing.T) {
	ts := newTestServer(t, "test-secret")

	_, resp, err := ts.dial(t, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandshakeRefusedWithBadToken(t *testing.T) {
	ts := newTestServer(t, "test-secret")

	h := http.Header{}
	h.Set("Authorization", "Bearer not-a-real-token")
	_, resp, err := ts.dial(t, h)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandshakeRefusedWhenSecretMissing(t *testing.T) {
	ts := newTestServer(t, "")

	// A well-formed token signed under some other secret. Fail closed.
	h := bearer(t, auth.NewTokens("other-secret", time.Hour), ts.user)
	_, resp, err := ts.dial(t, h)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandshakeAcceptsCookieCredential(t *testing.T) {
	ts := newTestServer(t, "test-secret")

	signed, err := ts.tokens.Issue(ts.user)
	require.NoError(t, err)
	h := http.Header{}
	h.Set("Cookie", "token="+signed)

	conn, _, err := ts.dial(t, h)
	require.NoError(t, err)
	require.NotNil(t, conn)
}

func TestTurnProducesReplyEvent(t *testing.T) {
	ts := newTestServer(t, "test-secret")
	ts.completer.AddResponse("hello there", "General Kenobi.")

	conn, _, err := ts.dial(t, bearer(t, ts.tokens, ts.user))
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(TurnEvent{ChatID: ts.chat.ID, Content: "hello there"}))

	var reply core.Reply
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, ts.chat.ID, reply.ChatID)
	assert.Equal(t, "General Kenobi.", reply.Content)

	// The exchange is persisted behind the reply.
	require.Eventually(t, func() bool {
		msgs, err := ts.store.ListMessages(context.Background(), ts.chat.ID)
		return err == nil && len(msgs) == 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestFailedTurnSendsErrorEvent(t *testing.T) {
	ts := newTestServer(t, "test-secret")

	conn, _, err := ts.dial(t, bearer(t, ts.tokens, ts.user))
	require.NoError(t, err)

	// Unknown chat fails the turn before generation.
	require.NoError(t, conn.WriteJSON(TurnEvent{ChatID: "missing", Content: "hello"}))

	var ev ErrorEvent
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "missing", ev.ChatID)
	assert.Equal(t, "failed to process message", ev.Error)
}

func TestTurnsUseHandshakeIdentityNotPayload(t *testing.T) {
	ts := newTestServer(t, "test-secret")

	conn, _, err := ts.dial(t, bearer(t, ts.tokens, ts.user))
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(TurnEvent{ChatID: ts.chat.ID, Content: "who am I?"}))

	var reply core.Reply
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&reply))

	require.Eventually(t, func() bool {
		msgs, err := ts.store.ListMessages(context.Background(), ts.chat.ID)
		return err == nil && len(msgs) == 2
	}, 5*time.Second, 10*time.Millisecond)

	msgs, err := ts.store.ListMessages(context.Background(), ts.chat.ID)
	require.NoError(t, err)
	for _, msg := range msgs {
		assert.Equal(t, ts.user.ID, msg.UserID)
	}
}

func TestMultipleTurnsOverOneConnection(t *testing.T) {
	ts := newTestServer(t, "test-secret")
	ts.completer.AddResponse("first", "reply one")
	ts.completer.AddResponse("second", "reply two")

	conn, _, err := ts.dial(t, bearer(t, ts.tokens, ts.user))
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(TurnEvent{ChatID: ts.chat.ID, Content: "first"}))
	require.NoError(t, conn.WriteJSON(TurnEvent{ChatID: ts.chat.ID, Content: "second"}))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got []string
	for i := 0; i < 2; i++ {
		var reply core.Reply
		require.NoError(t, conn.ReadJSON(&reply))
		got = append(got, reply.Content)
	}
	assert.ElementsMatch(t, []string{"reply one", "reply two"}, got)
}
