// Package core defines the domain types shared across the server: chats,
// messages, users, the per-turn request/reply pair, and the role-tagged
// prompt turns handed to the generative model.
package core

import "time"

// Role tags who produced a message or prompt turn.
type Role string

const (
	// RoleUser marks content written by the human user.
	RoleUser Role = "user"

	// RoleModel marks content generated by the assistant.
	RoleModel Role = "model"

	// RoleSystem marks server-injected content.
	RoleSystem Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModel, RoleSystem:
		return true
	}
	return false
}

// Chat is a named conversation owned by one user. Identity is immutable;
// LastActivity is advisory metadata bumped on every append and never read
// by the turn pipeline.
type Chat struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	Title        string    `json:"title"`
	LastActivity time.Time `json:"lastActivity"`
}

// Message is one committed turn side in a chat. Messages are append-only
// and immutable once created; within a chat, creation order is the causal
// order of the conversation.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	UserID    string    `json:"userId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// User is a registered account. PasswordHash is a bcrypt hash and never
// serialized.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Turn is the ephemeral unit of work the orchestrator executes: one user
// input bound to an authenticated identity and a target chat. Turns are
// never persisted; their side effects (messages, memory records) are.
type Turn struct {
	ChatID string
	UserID string
	Text   string
}

// Reply is the single outbound event produced by a successful turn. Its
// JSON shape is the full wire contract back to the client.
type Reply struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
}

// PromptTurn is one role-tagged entry of the assembled prompt sent to the
// generative model.
type PromptTurn struct {
	Role Role
	Text string
}
