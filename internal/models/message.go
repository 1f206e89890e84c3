package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of conversation history for a (tenant, user) pair.
type Message struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	TenantID  *uuid.UUID `json:"tenant_id,omitempty" db:"tenant_id"`
	UserID    string     `json:"user_id" db:"user_id"`
	Role      string     `json:"role" db:"role"`
	Content   string     `json:"content" db:"content"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// MemoryEntry is a key-value record of stored user context (preferences,
// facts the operator wants templates to see).
type MemoryEntry struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	UserID    string         `json:"user_id" db:"user_id"`
	Key       string         `json:"key" db:"key"`
	Value     map[string]any `json:"value" db:"value"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// UserState tracks the mode a user's session is in (e.g. "onboarding").
type UserState struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Mode      string    `json:"mode" db:"mode"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
