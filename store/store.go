// Package store defines the conversation store: durable chats, append-only
// messages, and user accounts. The turn pipeline only appends; nothing here
// mutates an existing message.
package store

import (
	"context"
	"errors"

	"github.com/threadmind/threadmind/core"
)

// ErrNotFound is returned when a chat, message, or user does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicateEmail is returned when registering an email that already has
// an account.
var ErrDuplicateEmail = errors.New("store: email already registered")

// CreateMessageParams holds the fields for appending a message.
type CreateMessageParams struct {
	ChatID  string
	UserID  string
	Role    core.Role
	Content string
}

// Conversation is the durable record of chats and messages, plus the user
// accounts the auth surface needs. Implementations must make single writes
// atomic; the pipeline relies on no further synchronization from the store.
type Conversation interface {
	// CreateUser registers a new account. Fails with ErrDuplicateEmail if
	// the email is taken.
	CreateUser(ctx context.Context, email, name string, passwordHash []byte) (core.User, error)

	// UserByEmail looks up an account by email.
	UserByEmail(ctx context.Context, email string) (core.User, error)

	// UserByID looks up an account by ID.
	UserByID(ctx context.Context, id string) (core.User, error)

	// CreateChat creates a chat owned by ownerID.
	CreateChat(ctx context.Context, ownerID, title string) (core.Chat, error)

	// Chat fetches a chat by ID.
	Chat(ctx context.Context, id string) (core.Chat, error)

	// ListChats returns all chats owned by ownerID, most recent activity
	// first.
	ListChats(ctx context.Context, ownerID string) ([]core.Chat, error)

	// CreateMessage appends a message and bumps the chat's LastActivity.
	CreateMessage(ctx context.Context, p CreateMessageParams) (core.Message, error)

	// ListRecentMessages returns the most recent limit messages of a chat,
	// ordered oldest first.
	ListRecentMessages(ctx context.Context, chatID string, limit int) ([]core.Message, error)

	// ListMessages returns all messages of a chat, oldest first.
	ListMessages(ctx context.Context, chatID string) ([]core.Message, error)

	// Close releases store resources.
	Close() error
}
