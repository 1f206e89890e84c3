package workers

import (
	"testing"

	"github.com/promptdeck/promptdeck/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestLastUserMessages(t *testing.T) {
	messages := []models.Message{
		{Role: models.RoleUser, Content: "one"},
		{Role: models.RoleAssistant, Content: "reply"},
		{Role: models.RoleUser, Content: "two"},
		{Role: models.RoleUser, Content: "three"},
	}

	assert.Equal(t, []string{"two", "three"}, lastUserMessages(messages, 2))
	assert.Equal(t, []string{"one", "two", "three"}, lastUserMessages(messages, 10))
	assert.Empty(t, lastUserMessages(nil, 3))
}

func TestExtractJSON(t *testing.T) {
	raw := "Here are the scores:\n```json\n[{\"valence\":0.1}]\n```"
	assert.Equal(t, `[{"valence":0.1}]`, extractJSON(raw))

	plain := `[{"valence":0.1}]`
	assert.Equal(t, plain, extractJSON(plain))
}
