// Package gateway is the duplex connection front of the server. It
// authenticates a WebSocket connection once at handshake, then dispatches
// each inbound turn event to the engine bound to the authenticated user and
// forwards reply events back over the same connection.
package gateway

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/threadmind/threadmind/auth"
	"github.com/threadmind/threadmind/core"
	"github.com/threadmind/threadmind/engine"
	"github.com/threadmind/threadmind/logging"
)

// TurnEvent is the inbound wire event: one user message for one chat.
type TurnEvent struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
}

// ErrorEvent is sent, best effort, when a turn fails before producing a
// reply. Failed turns never produce a Reply event.
type ErrorEvent struct {
	ChatID string `json:"chatId"`
	Error  string `json:"error"`
}

// Gateway upgrades authenticated HTTP requests to WebSocket connections
// and shuttles turn and reply events between clients and the engine.
type Gateway struct {
	engine   *engine.Engine
	tokens   *auth.Tokens
	log      logging.Logger
	upgrader websocket.Upgrader
}

// Option configures the gateway.
type Option func(*Gateway)

// WithLogger sets the gateway's logger.
func WithLogger(l logging.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// WithCheckOrigin overrides the upgrader's origin policy.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(g *Gateway) { g.upgrader.CheckOrigin = fn }
}

// New creates a gateway dispatching into eng, authenticating handshakes
// with tokens.
func New(eng *engine.Engine, tokens *auth.Tokens, opts ...Option) *Gateway {
	g := &Gateway{
		engine: eng,
		tokens: tokens,
		log:    logging.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ServeHTTP authenticates the handshake, upgrades the connection, and runs
// the connection loop until the client disconnects. Authentication happens
// once, before the upgrade: absent, malformed, or invalid credentials — and
// a server missing its signing secret — refuse the handshake.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := g.tokens.Verify(credentialFromRequest(r))
	if err != nil {
		g.log.Warn("handshake refused", "remote", r.RemoteAddr, "err", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	g.log.Info("connection established", "user_id", userID, "remote", r.RemoteAddr)
	g.serve(r.Context(), conn, userID)
}

// credentialFromRequest extracts the bearer credential from the token
// cookie or, failing that, the Authorization header.
func credentialFromRequest(r *http.Request) string {
	if c, err := r.Cookie("token"); err == nil && c.Value != "" {
		return c.Value
	}
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

// serve reads turn events until the connection closes. Every turn runs in
// its own goroutine so a slow generation does not block reading; ordering
// within a chat is the engine's per-chat lane, not the read loop. Writes
// are serialized by a mutex because gorilla connections allow only one
// concurrent writer.
func (g *Gateway) serve(ctx context.Context, conn *websocket.Conn, userID string) {
	defer conn.Close()

	var writeMu sync.Mutex
	writeJSON := func(v any) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(v); err != nil {
			g.log.Debug("write failed", "user_id", userID, "err", err)
		}
	}

	var turns sync.WaitGroup
	defer turns.Wait()

	for {
		var ev TurnEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.log.Warn("connection closed unexpectedly", "user_id", userID, "err", err)
			}
			return
		}

		turns.Add(1)
		go func(ev TurnEvent) {
			defer turns.Done()
			turn := core.Turn{ChatID: ev.ChatID, UserID: userID, Text: ev.Content}
			err := g.engine.Run(ctx, turn, func(reply core.Reply) {
				writeJSON(reply)
			})
			if err != nil {
				g.log.Error("turn failed", "user_id", userID, "chat_id", ev.ChatID, "err", err)
				writeJSON(ErrorEvent{ChatID: ev.ChatID, Error: "failed to process message"})
			}
		}(ev)
	}
}
