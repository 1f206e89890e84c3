package render

import (
	"errors"
	"testing"

	"github.com/promptdeck/promptdeck/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSubstitution(t *testing.T) {
	out, err := Render("Hello {{name}}!", map[string]any{"name": "World"})
	require.NoError(t, err)
	assert.Equal(t, "Hello World!", out)
}

func TestRenderMissingVariable(t *testing.T) {
	_, err := Render("Hello {{name}}!", map[string]any{})
	require.Error(t, err)

	var re *models.RenderError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "name", re.Variable)
}

func TestRenderFilters(t *testing.T) {
	tests := []struct {
		name    string
		content string
		vars    map[string]any
		want    string
	}{
		{"upper", "{{greeting|upper}}", map[string]any{"greeting": "hello"}, "HELLO"},
		{"lower", "{{greeting|lower}}", map[string]any{"greeting": "HELLO"}, "hello"},
		{"trim", "{{greeting|trim}}", map[string]any{"greeting": "  hi  "}, "hi"},
		{"chained", "{{greeting|trim|upper}}", map[string]any{"greeting": " hi "}, "HI"},
		{"spaced", "{{ greeting | upper }}", map[string]any{"greeting": "hi"}, "HI"},
		{"join default sep", "{{tags|join}}", map[string]any{"tags": []string{"a", "b", "c"}}, "a, b, c"},
		{"join explicit sep", `{{.tags | join "; "}}`, map[string]any{"tags": []string{"a", "b"}}, "a; b"},
		{"join any slice", "{{tags|join}}", map[string]any{"tags": []any{"x", 2}}, "x, 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Render(tt.content, tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRenderJoinRejectsNonList(t *testing.T) {
	_, err := Render("{{name|join}}", map[string]any{"name": "scalar"})
	require.Error(t, err)

	var re *models.RenderError
	assert.True(t, errors.As(err, &re))
}

func TestRenderUnknownFilterIsSyntaxError(t *testing.T) {
	err := Validate("{{name|shell}}")
	require.Error(t, err)

	var se *models.SyntaxError
	assert.True(t, errors.As(err, &se))
}

func TestRenderControlFlow(t *testing.T) {
	content := "{{if .has_history}}History:\n{{range .history}}{{.role}}: {{.content}}\n{{end}}{{end}}Done"
	vars := map[string]any{
		"has_history": true,
		"history": []map[string]any{
			{"role": "user", "content": "hi"},
			{"role": "assistant", "content": "hello"},
		},
	}

	out, err := Render(content, vars)
	require.NoError(t, err)
	assert.Equal(t, "History:\nuser: hi\nassistant: hello\nDone", out)
}

func TestRenderControlFlowFalseBranch(t *testing.T) {
	out, err := Render("{{if .has_history}}never{{end}}empty", map[string]any{"has_history": false})
	require.NoError(t, err)
	assert.Equal(t, "empty", out)
}

func TestValidateRejectsUnbalanced(t *testing.T) {
	err := Validate("{{if .x}}no end")
	require.Error(t, err)

	var se *models.SyntaxError
	assert.True(t, errors.As(err, &se))
}

func TestValidateAcceptsPlainText(t *testing.T) {
	assert.NoError(t, Validate("no variables at all"))
}

func TestRenderDeterministic(t *testing.T) {
	content := "{{user_id}}: {{current_message|trim}}"
	vars := map[string]any{"user_id": "u1", "current_message": " ping "}

	first, err := Render(content, vars)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Render(content, vars)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestExtractVariables(t *testing.T) {
	vars := ExtractVariables("{{greeting}} {{name|upper}} {{greeting}} {{if .x}}{{end}}")
	assert.Equal(t, []string{"greeting", "name"}, vars)
}

func TestNormalizeLeavesKeywordsAlone(t *testing.T) {
	out, err := Render("{{if .ok}}yes{{else}}no{{end}}", map[string]any{"ok": true})
	require.NoError(t, err)
	assert.Equal(t, "yes", out)
}
