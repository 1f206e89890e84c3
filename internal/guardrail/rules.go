package guardrail

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/promptdeck/promptdeck/internal/models"
)

// RuleTypeInstruction is the only rule kind the compositor interprets.
// Other kinds are stored and returned untouched for downstream systems.
const RuleTypeInstruction = "instruction"

// Rule is one entry in a guardrail config. Fields beyond the known
// three survive a store round trip byte-for-byte via Extra.
type Rule struct {
	Type     string
	Priority int
	Content  string
	Extra    map[string]json.RawMessage
}

// Config is a named, tenant-scoped set of rules. A nil TenantID means
// system scope, visible to every tenant as a read-only fallback.
type Config struct {
	ID          uuid.UUID        `json:"id"`
	TenantID    *uuid.UUID       `json:"tenant_id,omitempty"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Rules       []Rule           `json:"rules"`
	Lifecycle   models.Lifecycle `json:"lifecycle"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("rule must be a JSON object: %w", err)
	}

	*r = Rule{}
	for key, val := range raw {
		switch key {
		case "type":
			if err := json.Unmarshal(val, &r.Type); err != nil {
				return fmt.Errorf("rule type: %w", err)
			}
		case "priority":
			if err := json.Unmarshal(val, &r.Priority); err != nil {
				return fmt.Errorf("rule priority: %w", err)
			}
		case "content":
			if err := json.Unmarshal(val, &r.Content); err != nil {
				return fmt.Errorf("rule content: %w", err)
			}
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]json.RawMessage)
			}
			r.Extra[key] = val
		}
	}
	return nil
}

func (r Rule) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.Extra)+3)
	for key, val := range r.Extra {
		out[key] = val
	}

	typ, err := json.Marshal(r.Type)
	if err != nil {
		return nil, err
	}
	out["type"] = typ

	prio, err := json.Marshal(r.Priority)
	if err != nil {
		return nil, err
	}
	out["priority"] = prio

	if r.Content != "" {
		content, err := json.Marshal(r.Content)
		if err != nil {
			return nil, err
		}
		out["content"] = content
	}

	return json.Marshal(out)
}

// ValidateRules checks the structural contract every stored rule set
// must meet. It does not restrict rule kinds.
func ValidateRules(rules []Rule) error {
	for i, r := range rules {
		if r.Type == "" {
			return &models.ValidationError{Msg: fmt.Sprintf("rule %d: missing type", i)}
		}
	}
	return nil
}
