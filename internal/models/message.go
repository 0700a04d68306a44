package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem is only ever sent upstream as the fixed instruction; it is
	// never persisted.
	RoleSystem Role = "system"
)

type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// HistoryEntry is the read-only projection of a message handed to the
// upstream completion request: role and content only, oldest-first.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
