// Package memory persists per-user conversation context: the message
// history the assembler replays into prompts, operator-written memory
// entries, and the session state mode. All rows are keyed by
// (tenant_id, user_id).
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/promptdeck/promptdeck/internal/database"
	"github.com/promptdeck/promptdeck/internal/models"
	"github.com/promptdeck/promptdeck/internal/tenant"
)

type Store struct {
	db database.Querier
}

func NewStore(db database.Querier) *Store {
	return &Store{db: db}
}

func (s *Store) AddMessage(ctx context.Context, userID, role, content string) (*models.Message, error) {
	if role != models.RoleUser && role != models.RoleAssistant {
		return nil, &models.ValidationError{Msg: fmt.Sprintf("unknown message role %q", role)}
	}

	var m models.Message
	err := s.db.QueryRow(ctx,
		`INSERT INTO conversation_messages (tenant_id, user_id, role, content)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, tenant_id, user_id, role, content, created_at`,
		tenantParam(ctx), userID, role, content,
	).Scan(&m.ID, &m.TenantID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt)
	if err != nil {
		return nil, &models.StoreError{Op: "add message", Err: err}
	}
	return &m, nil
}

// RecentMessages returns up to limit messages in chronological order.
func (s *Store) RecentMessages(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, user_id, role, content, created_at
		 FROM conversation_messages
		 WHERE tenant_id IS NOT DISTINCT FROM $1 AND user_id = $2
		 ORDER BY created_at DESC LIMIT $3`,
		tenantParam(ctx), userID, limit,
	)
	if err != nil {
		return nil, &models.StoreError{Op: "recent messages", Err: err}
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.TenantID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, &models.StoreError{Op: "scan message", Err: err}
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StoreError{Op: "recent messages", Err: err}
	}

	// Query reads newest-first; callers want oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *Store) CountMessages(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM conversation_messages
		 WHERE tenant_id IS NOT DISTINCT FROM $1 AND user_id = $2`,
		tenantParam(ctx), userID,
	).Scan(&n)
	if err != nil {
		return 0, &models.StoreError{Op: "count messages", Err: err}
	}
	return n, nil
}

func (s *Store) ClearHistory(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM conversation_messages
		 WHERE tenant_id IS NOT DISTINCT FROM $1 AND user_id = $2`,
		tenantParam(ctx), userID,
	)
	if err != nil {
		return &models.StoreError{Op: "clear history", Err: err}
	}
	return nil
}

func (s *Store) SetMemory(ctx context.Context, userID, key string, value map[string]any) error {
	if key == "" {
		return &models.ValidationError{Msg: "memory key must not be empty"}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode memory value: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO user_memory (tenant_id, user_id, key, value)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tenant_id, user_id, key)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		tenantParam(ctx), userID, key, data,
	)
	if err != nil {
		return &models.StoreError{Op: "set memory", Err: err}
	}
	return nil
}

func (s *Store) GetMemory(ctx context.Context, userID, key string) (map[string]any, error) {
	var value map[string]any
	err := s.db.QueryRow(ctx,
		`SELECT value FROM user_memory
		 WHERE tenant_id IS NOT DISTINCT FROM $1 AND user_id = $2 AND key = $3`,
		tenantParam(ctx), userID, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "memory entry", Key: key}
	}
	if err != nil {
		return nil, &models.StoreError{Op: "get memory", Err: err}
	}
	return value, nil
}

// AllMemory returns every memory entry for the user keyed by entry key.
func (s *Store) AllMemory(ctx context.Context, userID string) (map[string]any, error) {
	rows, err := s.db.Query(ctx,
		`SELECT key, value FROM user_memory
		 WHERE tenant_id IS NOT DISTINCT FROM $1 AND user_id = $2
		 ORDER BY key`,
		tenantParam(ctx), userID,
	)
	if err != nil {
		return nil, &models.StoreError{Op: "all memory", Err: err}
	}
	defer rows.Close()

	memory := make(map[string]any)
	for rows.Next() {
		var key string
		var value map[string]any
		if err := rows.Scan(&key, &value); err != nil {
			return nil, &models.StoreError{Op: "scan memory", Err: err}
		}
		memory[key] = value
	}
	return memory, rows.Err()
}

func (s *Store) DeleteMemory(ctx context.Context, userID, key string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM user_memory
		 WHERE tenant_id IS NOT DISTINCT FROM $1 AND user_id = $2 AND key = $3`,
		tenantParam(ctx), userID, key,
	)
	if err != nil {
		return &models.StoreError{Op: "delete memory", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &models.NotFoundError{Resource: "memory entry", Key: key}
	}
	return nil
}

func (s *Store) SetState(ctx context.Context, userID, mode string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO user_state (tenant_id, user_id, mode)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (tenant_id, user_id)
		 DO UPDATE SET mode = EXCLUDED.mode, updated_at = now()`,
		tenantParam(ctx), userID, mode,
	)
	if err != nil {
		return &models.StoreError{Op: "set state", Err: err}
	}
	return nil
}

// State reports the user's session mode. found is false when the user
// has no state row, which is not an error.
func (s *Store) State(ctx context.Context, userID string) (mode string, found bool, err error) {
	err = s.db.QueryRow(ctx,
		`SELECT mode FROM user_state
		 WHERE tenant_id IS NOT DISTINCT FROM $1 AND user_id = $2`,
		tenantParam(ctx), userID,
	).Scan(&mode)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &models.StoreError{Op: "get state", Err: err}
	}
	return mode, true, nil
}

func tenantParam(ctx context.Context) *uuid.UUID {
	id := tenant.IDFromContext(ctx)
	if id == uuid.Nil {
		return nil
	}
	return &id
}
