// Package httpapi exposes the HTTP surface around the socket: account
// registration and login, chat creation and listing, and message history.
// The turn pipeline itself never goes through here.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/threadmind/threadmind/auth"
	"github.com/threadmind/threadmind/core"
	"github.com/threadmind/threadmind/logging"
	"github.com/threadmind/threadmind/store"
)

// API serves the REST endpoints.
type API struct {
	store  store.Conversation
	tokens *auth.Tokens
	log    logging.Logger

	// CookieSecure marks the auth cookie Secure; enable behind HTTPS.
	CookieSecure bool
}

// New creates the API over the store and token authority.
func New(st store.Conversation, tokens *auth.Tokens, log logging.Logger) *API {
	if log == nil {
		log = logging.Default()
	}
	return &API{store: st, tokens: tokens, log: log}
}

// Routes returns the chi router for the API. ws, when non-nil, is mounted
// at /ws so the whole server serves from one mux.
func (a *API) Routes(ws http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/auth/register", a.handleRegister)
	r.Post("/auth/login", a.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(a.requireUser)
		r.Post("/chat", a.handleCreateChat)
		r.Get("/chat", a.handleListChats)
		r.Get("/chat/{chatID}/messages", a.handleListMessages)
	})

	if ws != nil {
		r.Handle("/ws", ws)
	}
	return r
}

type ctxKey int

const userIDKey ctxKey = 0

// requireUser authenticates REST requests with the same credential the
// socket handshake uses.
func (a *API) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.tokens.Verify(credentialFromRequest(r))
		if err != nil {
			a.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := contextWithUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		a.writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	user, err := a.store.CreateUser(r.Context(), req.Email, req.Name, hash)
	if errors.Is(err, store.ErrDuplicateEmail) {
		a.writeError(w, http.StatusBadRequest, "user already exists")
		return
	}
	if err != nil {
		a.log.Error("create user", "err", err)
		a.writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	if err := a.setAuthCookie(w, user); err != nil {
		a.writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	a.writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := a.store.UserByEmail(r.Context(), req.Email)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		a.writeError(w, http.StatusBadRequest, "invalid email or password")
		return
	}

	if err := a.setAuthCookie(w, user); err != nil {
		a.writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (a *API) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		a.writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	chat, err := a.store.CreateChat(r.Context(), userIDFromContext(r.Context()), req.Title)
	if err != nil {
		a.log.Error("create chat", "err", err)
		a.writeError(w, http.StatusInternalServerError, "failed to create chat")
		return
	}
	a.writeJSON(w, http.StatusCreated, map[string]any{"chat": chat})
}

func (a *API) handleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := a.store.ListChats(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		a.log.Error("list chats", "err", err)
		a.writeError(w, http.StatusInternalServerError, "failed to list chats")
		return
	}
	if chats == nil {
		chats = []core.Chat{}
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"chats": chats})
}

func (a *API) handleListMessages(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	chat, err := a.store.Chat(r.Context(), chatID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && chat.OwnerID != userIDFromContext(r.Context())) {
		a.writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	if err != nil {
		a.log.Error("fetch chat", "err", err)
		a.writeError(w, http.StatusInternalServerError, "failed to fetch chat")
		return
	}

	messages, err := a.store.ListMessages(r.Context(), chatID)
	if err != nil {
		a.log.Error("list messages", "err", err)
		a.writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if messages == nil {
		messages = []core.Message{}
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (a *API) setAuthCookie(w http.ResponseWriter, user core.User) error {
	token, err := a.tokens.Issue(user)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.CookieSecure,
		MaxAge:   int((7 * 24 * time.Hour).Seconds()),
	})
	return nil
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Debug("write response", "err", err)
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, msg string) {
	a.writeJSON(w, status, map[string]string{"message": msg})
}

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
