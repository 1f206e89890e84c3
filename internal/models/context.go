package models

import "time"

// HistoryEntry is one message as exposed to templates.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ContextVariables holds everything the assembler gathered for one
// rendering call. It is built fresh per assembly and never persisted.
type ContextVariables struct {
	UserID         string
	History        []HistoryEntry
	HistoryText    string
	Memory         map[string]any
	State          string
	HasState       bool
	CurrentMessage string
	Timestamp      time.Time
	HasHistory     bool
	MessageCount   int
}

// Map flattens the variables into the shape the rendering engine
// consumes. The "state" key is present only when a state exists;
// templates guard on "has_state" before referencing it, since the
// engine treats an absent key as a render error.
func (c *ContextVariables) Map() map[string]any {
	history := make([]map[string]any, len(c.History))
	for i, h := range c.History {
		history[i] = map[string]any{"role": h.Role, "content": h.Content}
	}

	memory := c.Memory
	if memory == nil {
		memory = map[string]any{}
	}

	vars := map[string]any{
		"user_id":         c.UserID,
		"history":         history,
		"history_text":    c.HistoryText,
		"memory":          memory,
		"has_state":       c.HasState,
		"current_message": c.CurrentMessage,
		"timestamp":       c.Timestamp.UTC().Format(time.RFC3339),
		"has_history":     c.HasHistory,
		"message_count":   c.MessageCount,
	}
	if c.HasState {
		vars["state"] = c.State
	}
	return vars
}
