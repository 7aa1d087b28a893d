// Package history stores conversation threads and their transcripts.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/verba-ai/verba/pkg/models"
)

const createChatsTable = `
CREATE TABLE IF NOT EXISTS chats (
	id TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	title TEXT
);
`

const createMessagesTable = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id TEXT,
	role TEXT,
	content TEXT,
	timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (chat_id) REFERENCES chats (id) ON DELETE CASCADE
);
`

// Store persists chats and messages in SQLite.
type Store struct {
	db *sql.DB
}

// New opens the database at dbPath and runs auto-migration. Foreign
// keys are enabled so deleting a chat cascades to its messages.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	for _, stmt := range []string{createChatsTable, createMessagesTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate history db: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// CreateChat creates a new conversation thread and returns its ID.
func (s *Store) CreateChat(ctx context.Context, title string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, title, created_at) VALUES (?, ?, ?)`,
		id, title, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}
	return id, nil
}

// ListChats returns all chats, newest first.
func (s *Store) ListChats(ctx context.Context) ([]models.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, COALESCE(title, ''), created_at FROM chats ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		var c models.Chat
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// Messages returns a chat's transcript in timestamp order.
func (s *Store) Messages(ctx context.Context, chatID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, role, content, timestamp FROM messages WHERE chat_id = ? ORDER BY timestamp, id`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SaveMessage appends a message to a chat.
func (s *Store) SaveMessage(ctx context.Context, chatID, role, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (chat_id, role, content, timestamp) VALUES (?, ?, ?, ?)`,
		chatID, role, content, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// SetTitle renames a chat.
func (s *Store) SetTitle(ctx context.Context, chatID, title string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chats SET title = ? WHERE id = ?`, title, chatID)
	if err != nil {
		return fmt.Errorf("set chat title: %w", err)
	}
	return nil
}

// DeleteChat removes a chat and, via cascade, its messages.
func (s *Store) DeleteChat(ctx context.Context, chatID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

// DeleteAll removes every chat and message.
func (s *Store) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chats`); err != nil {
		return fmt.Errorf("delete chats: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
