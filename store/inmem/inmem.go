// Package inmem provides an in-memory store.Conversation for tests and
// local development. A per-store sequence number breaks creation-time ties
// so message order is always the append order.
package inmem

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/threadmind/threadmind/core"
	"github.com/threadmind/threadmind/store"
)

type storedMessage struct {
	core.Message
	seq uint64
}

// Store keeps everything in process memory, guarded by one RWMutex.
type Store struct {
	mu       sync.RWMutex
	users    map[string]core.User
	byEmail  map[string]string
	chats    map[string]core.Chat
	messages map[string][]storedMessage
	seq      uint64
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users:    make(map[string]core.User),
		byEmail:  make(map[string]string),
		chats:    make(map[string]core.Chat),
		messages: make(map[string][]storedMessage),
	}
}

// CreateUser registers an account.
func (s *Store) CreateUser(ctx context.Context, email, name string, passwordHash []byte) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(email)
	if _, ok := s.byEmail[key]; ok {
		return core.User{}, store.ErrDuplicateEmail
	}
	user := core.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[user.ID] = user
	s.byEmail[key] = user.ID
	return user, nil
}

// UserByEmail looks up an account by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return core.User{}, store.ErrNotFound
	}
	return s.users[id], nil
}

// UserByID looks up an account by ID.
func (s *Store) UserByID(ctx context.Context, id string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return core.User{}, store.ErrNotFound
	}
	return user, nil
}

// CreateChat creates a chat owned by ownerID.
func (s *Store) CreateChat(ctx context.Context, ownerID, title string) (core.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := core.Chat{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Title:        title,
		LastActivity: time.Now().UTC(),
	}
	s.chats[chat.ID] = chat
	return chat, nil
}

// Chat fetches a chat by ID.
func (s *Store) Chat(ctx context.Context, id string) (core.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, ok := s.chats[id]
	if !ok {
		return core.Chat{}, store.ErrNotFound
	}
	return chat, nil
}

// ListChats returns ownerID's chats, most recent activity first.
func (s *Store) ListChats(ctx context.Context, ownerID string) ([]core.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chats []core.Chat
	for _, chat := range s.chats {
		if chat.OwnerID == ownerID {
			chats = append(chats, chat)
		}
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].LastActivity.After(chats[j].LastActivity)
	})
	return chats, nil
}

// CreateMessage appends a message to its chat.
func (s *Store) CreateMessage(ctx context.Context, p store.CreateMessageParams) (core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[p.ChatID]
	if !ok {
		return core.Message{}, store.ErrNotFound
	}

	s.seq++
	msg := core.Message{
		ID:        uuid.NewString(),
		ChatID:    p.ChatID,
		UserID:    p.UserID,
		Role:      p.Role,
		Content:   p.Content,
		CreatedAt: time.Now().UTC(),
	}
	s.messages[p.ChatID] = append(s.messages[p.ChatID], storedMessage{Message: msg, seq: s.seq})

	chat.LastActivity = msg.CreatedAt
	s.chats[p.ChatID] = chat
	return msg, nil
}

// ListRecentMessages returns the last limit messages, oldest first.
func (s *Store) ListRecentMessages(ctx context.Context, chatID string, limit int) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[chatID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]core.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Message
	}
	return out, nil
}

// ListMessages returns all of a chat's messages, oldest first.
func (s *Store) ListMessages(ctx context.Context, chatID string) ([]core.Message, error) {
	return s.ListRecentMessages(ctx, chatID, 0)
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
