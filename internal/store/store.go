package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatrelay/internal/models"
)

// Store is the conversation persistence client consumed by the relay. The
// database itself is an external collaborator; everything here is a narrow
// query/mutation wrapper around it.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const previewRunes = 120

// GetOrCreate resolves the conversation for a session identifier, inserting a
// new one when none exists. Two concurrent callers racing on a brand-new
// session may both insert; later lookups settle on the newest row.
func (s *Store) GetOrCreate(ctx context.Context, sessionID string, now time.Time) (*models.Conversation, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}

	var conv models.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, preview, created_at, updated_at FROM conversations
		 WHERE session_id = ? ORDER BY id DESC LIMIT 1`,
		sessionID,
	).Scan(&conv.ID, &conv.SessionID, &conv.Preview, &conv.CreatedAt, &conv.UpdatedAt)
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup conversation: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (session_id, preview, created_at, updated_at) VALUES (?, '', ?, ?)`,
		sessionID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("conversation id: %w", err)
	}
	return &models.Conversation{ID: id, SessionID: sessionID, CreatedAt: now, UpdatedAt: now}, nil
}

// Append stores a message and updates the owning conversation's timestamp and
// preview in the same transaction.
func (s *Store) Append(ctx context.Context, conversationID int64, role models.Role, content string, at time.Time) (*models.Message, error) {
	if conversationID <= 0 {
		return nil, errors.New("conversation id is required")
	}
	if content == "" {
		return nil, errors.New("content cannot be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		conversationID, role, content, at,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ?, preview = ? WHERE id = ?`,
		at, truncatePreview(content), conversationID,
	); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit message: %w", err)
	}

	return &models.Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      at,
	}, nil
}

// RecentHistory returns the last limit messages for a conversation as an
// oldest-first window with role and content preserved verbatim.
func (s *Store) RecentHistory(ctx context.Context, conversationID int64, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM messages WHERE conversation_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.Role, &e.Content); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// rows came newest-first; the window is consumed oldest-first
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// List returns conversation summaries, most recently updated first.
func (s *Store) List(ctx context.Context, pageLimit int) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, preview, created_at, updated_at FROM conversations
		 ORDER BY updated_at DESC, id DESC LIMIT ?`,
		pageLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Preview, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// Count reports the total number of conversations for the admin listing.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count conversations: %w", err)
	}
	return n, nil
}

// Thread returns one conversation and its ordered messages. Returns
// sql.ErrNoRows when the conversation does not exist.
func (s *Store) Thread(ctx context.Context, conversationID int64) (*models.Conversation, []*models.Message, error) {
	var conv models.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, preview, created_at, updated_at FROM conversations WHERE id = ?`,
		conversationID,
	).Scan(&conv.ID, &conv.SessionID, &conv.Preview, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("get conversation: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at FROM messages
		 WHERE conversation_id = ? ORDER BY created_at ASC, id ASC`,
		conversationID,
	)
	if err != nil {
		return &conv, nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m := new(models.Message)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return &conv, nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return &conv, messages, rows.Err()
}

func truncatePreview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewRunes {
		return content
	}
	return string(runes[:previewRunes])
}
