// Package assembler gathers everything a template can reference into a
// single ContextVariables value: conversation history, memory entries,
// and session state for one (tenant, user) pair.
package assembler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/promptdeck/promptdeck/internal/models"
)

type HistoryProvider interface {
	RecentMessages(ctx context.Context, userID string, limit int) ([]models.Message, error)
	CountMessages(ctx context.Context, userID string) (int, error)
}

type MemoryProvider interface {
	AllMemory(ctx context.Context, userID string) (map[string]any, error)
}

type StateProvider interface {
	State(ctx context.Context, userID string) (string, bool, error)
}

// Assembler reads through the memory store's three providers. The
// split interfaces exist so the pipeline tests can fake each concern
// independently.
type Assembler struct {
	history HistoryProvider
	memory  MemoryProvider
	state   StateProvider
}

func New(history HistoryProvider, memory MemoryProvider, state StateProvider) *Assembler {
	return &Assembler{history: history, memory: memory, state: state}
}

type BuildOptions struct {
	HistoryLimit  int
	IncludeMemory bool
	IncludeState  bool
}

// Build assembles the variables for one rendering call. The timestamp
// is taken once here so one assembly sees one clock reading.
func (a *Assembler) Build(ctx context.Context, userID string, opts BuildOptions) (*models.ContextVariables, error) {
	vars := &models.ContextVariables{
		UserID:    userID,
		Memory:    map[string]any{},
		Timestamp: time.Now(),
	}

	if opts.HistoryLimit > 0 {
		messages, err := a.history.RecentMessages(ctx, userID, opts.HistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		total, err := a.history.CountMessages(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("count history: %w", err)
		}

		vars.History = make([]models.HistoryEntry, len(messages))
		for i, m := range messages {
			vars.History[i] = models.HistoryEntry{Role: m.Role, Content: m.Content}
		}
		vars.HistoryText = HistoryText(messages)
		vars.HasHistory = len(messages) > 0
		vars.MessageCount = total
	}

	if opts.IncludeMemory {
		memory, err := a.memory.AllMemory(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load memory: %w", err)
		}
		if memory != nil {
			vars.Memory = memory
		}
	}

	if opts.IncludeState {
		mode, found, err := a.state.State(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load state: %w", err)
		}
		vars.State = mode
		vars.HasState = found
	}

	return vars, nil
}

// HistoryText flattens messages into the transcript form templates
// embed directly, one "Role: content" line per message.
func HistoryText(messages []models.Message) string {
	if len(messages) == 0 {
		return ""
	}

	lines := make([]string, len(messages))
	for i, m := range messages {
		lines[i] = roleLabel(m.Role) + ": " + m.Content
	}
	return strings.Join(lines, "\n")
}

func roleLabel(role string) string {
	switch role {
	case models.RoleUser:
		return "User"
	case models.RoleAssistant:
		return "Assistant"
	default:
		return role
	}
}
