package models

import "time"

// Conversation is a persisted thread of messages tied to one external
// session identifier. Preview holds a truncated copy of the most recent
// message so listings do not have to join against messages.
type Conversation struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Preview   string    `json:"preview"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
