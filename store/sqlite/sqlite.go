// Package sqlite implements store.Conversation on SQLite via the pure Go
// modernc.org/sqlite driver. Messages carry a monotonically increasing seq
// column so their order is total even when two writes land in the same
// timestamp tick.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/threadmind/threadmind/core"
	"github.com/threadmind/threadmind/store"
)

// Store is a SQLite-backed conversation store.
type Store struct {
	db *sql.DB
}

// New opens or creates the database at dbPath and applies the schema.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL DEFAULT '',
		password_hash BLOB NOT NULL,
		created_at    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chats (
		id            TEXT PRIMARY KEY,
		owner_id      TEXT NOT NULL REFERENCES users(id),
		title         TEXT NOT NULL DEFAULT '',
		last_activity TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chats_owner ON chats(owner_id, last_activity DESC);

	CREATE TABLE IF NOT EXISTS messages (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT NOT NULL UNIQUE,
		chat_id    TEXT NOT NULL REFERENCES chats(id),
		user_id    TEXT NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateUser registers an account.
func (s *Store) CreateUser(ctx context.Context, email, name string, passwordHash []byte) (core.User, error) {
	user := core.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, strings.ToLower(user.Email), user.Name, user.PasswordHash, user.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, store.ErrDuplicateEmail
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// UserByEmail looks up an account by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (core.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?`,
		strings.ToLower(email))
	return scanUser(row)
}

// UserByID looks up an account by ID.
func (s *Store) UserByID(ctx context.Context, id string) (core.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (core.User, error) {
	var user core.User
	var createdAt string
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, store.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return user, nil
}

// CreateChat creates a chat owned by ownerID.
func (s *Store) CreateChat(ctx context.Context, ownerID, title string) (core.Chat, error) {
	chat := core.Chat{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Title:        title,
		LastActivity: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, owner_id, title, last_activity) VALUES (?, ?, ?, ?)`,
		chat.ID, chat.OwnerID, chat.Title, chat.LastActivity.Format(time.RFC3339Nano))
	if err != nil {
		return core.Chat{}, fmt.Errorf("insert chat: %w", err)
	}
	return chat, nil
}

// Chat fetches a chat by ID.
func (s *Store) Chat(ctx context.Context, id string) (core.Chat, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, title, last_activity FROM chats WHERE id = ?`, id)

	var chat core.Chat
	var lastActivity string
	err := row.Scan(&chat.ID, &chat.OwnerID, &chat.Title, &lastActivity)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Chat{}, store.ErrNotFound
	}
	if err != nil {
		return core.Chat{}, fmt.Errorf("scan chat: %w", err)
	}
	chat.LastActivity, _ = time.Parse(time.RFC3339Nano, lastActivity)
	return chat, nil
}

// ListChats returns ownerID's chats, most recent activity first.
func (s *Store) ListChats(ctx context.Context, ownerID string) ([]core.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, title, last_activity FROM chats WHERE owner_id = ? ORDER BY last_activity DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []core.Chat
	for rows.Next() {
		var chat core.Chat
		var lastActivity string
		if err := rows.Scan(&chat.ID, &chat.OwnerID, &chat.Title, &lastActivity); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chat.LastActivity, _ = time.Parse(time.RFC3339Nano, lastActivity)
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// CreateMessage appends a message and bumps the chat's LastActivity.
func (s *Store) CreateMessage(ctx context.Context, p store.CreateMessageParams) (core.Message, error) {
	msg := core.Message{
		ID:        uuid.NewString(),
		ChatID:    p.ChatID,
		UserID:    p.UserID,
		Role:      p.Role,
		Content:   p.Content,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Message{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	createdAt := msg.CreatedAt.Format(time.RFC3339Nano)
	res, err := tx.ExecContext(ctx,
		`UPDATE chats SET last_activity = ? WHERE id = ?`, createdAt, p.ChatID)
	if err != nil {
		return core.Message{}, fmt.Errorf("touch chat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Message{}, store.ErrNotFound
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, user_id, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ChatID, msg.UserID, string(msg.Role), msg.Content, createdAt)
	if err != nil {
		return core.Message{}, fmt.Errorf("insert message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Message{}, fmt.Errorf("commit: %w", err)
	}
	return msg, nil
}

// ListRecentMessages returns the last limit messages, oldest first.
func (s *Store) ListRecentMessages(ctx context.Context, chatID string, limit int) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, user_id, role, content, created_at
		 FROM (SELECT * FROM messages WHERE chat_id = ? ORDER BY seq DESC LIMIT ?)
		 ORDER BY seq ASC`,
		chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListMessages returns all of a chat's messages, oldest first.
func (s *Store) ListMessages(ctx context.Context, chatID string) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, user_id, role, content, created_at FROM messages WHERE chat_id = ? ORDER BY seq ASC`,
		chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]core.Message, error) {
	var msgs []core.Message
	for rows.Next() {
		var msg core.Message
		var role, createdAt string
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.UserID, &role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = core.Role(role)
		msg.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
