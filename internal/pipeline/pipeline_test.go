package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/promptdeck/promptdeck/internal/assembler"
	"github.com/promptdeck/promptdeck/internal/guardrail"
	"github.com/promptdeck/promptdeck/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTemplates struct {
	byName map[string]*models.Template
}

func (f *fakeTemplates) GetByName(_ context.Context, name string) (*models.Template, error) {
	t, ok := f.byName[name]
	if !ok {
		return nil, &models.NotFoundError{Resource: "template", Key: name}
	}
	return t, nil
}

type fakeGuardrails struct {
	byName map[string]*guardrail.Config
}

func (f *fakeGuardrails) Resolve(_ context.Context, name string) (*guardrail.Config, error) {
	cfg, ok := f.byName[name]
	if !ok {
		return nil, &models.NotFoundError{Resource: "guardrail config", Key: name}
	}
	return cfg, nil
}

type fakeBuilder struct {
	vars *models.ContextVariables
	err  error
}

func (f *fakeBuilder) Build(context.Context, string, assembler.BuildOptions) (*models.ContextVariables, error) {
	if f.err != nil {
		return nil, f.err
	}
	v := *f.vars
	return &v, nil
}

type fakeAffect struct {
	summary string
	err     error
}

func (f *fakeAffect) RecentSummary(context.Context, uuid.UUID, string) (string, error) {
	return f.summary, f.err
}

func activeTemplate(name, content string) *models.Template {
	return &models.Template{
		ID:             uuid.New(),
		Name:           name,
		Content:        content,
		CurrentVersion: 3,
		Lifecycle:      models.LifecycleActive,
	}
}

func emptyVars() *models.ContextVariables {
	return &models.ContextVariables{
		UserID:    "u1",
		Memory:    map[string]any{},
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func newTestPipeline(tmpl *models.Template, cfg *guardrail.Config, affect AffectProvider) *Pipeline {
	templates := &fakeTemplates{byName: map[string]*models.Template{}}
	if tmpl != nil {
		templates.byName[tmpl.Name] = tmpl
	}
	guardrails := &fakeGuardrails{byName: map[string]*guardrail.Config{}}
	if cfg != nil {
		guardrails.byName[cfg.Name] = cfg
	}
	return New(templates, guardrails, &fakeBuilder{vars: emptyVars()}, affect)
}

func TestAssembleRendersTemplate(t *testing.T) {
	tmpl := activeTemplate("greet", "Hello {{user_id}}! You said: {{current_message}}")
	p := newTestPipeline(tmpl, nil, nil)

	res, err := p.Assemble(context.Background(), AssembleRequest{
		UserID:       "u1",
		TemplateName: "greet",
		UserMessage:  "ping",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello u1! You said: ping", res.Prompt)
	assert.Equal(t, tmpl.ID, res.TemplateID)
	assert.Equal(t, 3, res.TemplateVersion)
	assert.Positive(t, res.EstimatedTokens)
}

func TestAssembleReproducible(t *testing.T) {
	p := newTestPipeline(activeTemplate("greet", "{{user_id}} at {{timestamp}}"), nil, nil)
	req := AssembleRequest{UserID: "u1", TemplateName: "greet"}

	first, err := p.Assemble(context.Background(), req)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := p.Assemble(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first.Prompt, again.Prompt)
	}
}

func TestAssembleUnknownTemplate(t *testing.T) {
	p := newTestPipeline(nil, nil, nil)

	_, err := p.Assemble(context.Background(), AssembleRequest{UserID: "u1", TemplateName: "nope"})
	assert.True(t, models.IsNotFound(err))
}

func TestAssembleInactiveTemplate(t *testing.T) {
	tmpl := activeTemplate("paused", "hi")
	tmpl.Lifecycle = models.LifecycleInactive
	p := newTestPipeline(tmpl, nil, nil)

	_, err := p.Assemble(context.Background(), AssembleRequest{UserID: "u1", TemplateName: "paused"})
	assert.True(t, models.IsNotFound(err))
}

func TestAssembleMissingVariableFailsClosed(t *testing.T) {
	p := newTestPipeline(activeTemplate("greet", "{{undeclared}}"), nil, nil)

	_, err := p.Assemble(context.Background(), AssembleRequest{UserID: "u1", TemplateName: "greet"})
	require.Error(t, err)

	var re *models.RenderError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "undeclared", re.Variable)
}

func TestAssembleAppliesGuardrails(t *testing.T) {
	cfg := &guardrail.Config{Name: "clinical", Rules: []guardrail.Rule{
		{Type: guardrail.RuleTypeInstruction, Priority: 2, Content: "Stay factual."},
		{Type: guardrail.RuleTypeInstruction, Priority: 9, Content: "Never diagnose."},
	}}
	p := newTestPipeline(activeTemplate("greet", "Hello {{user_id}}."), cfg, nil)

	res, err := p.Assemble(context.Background(), AssembleRequest{
		UserID:          "u1",
		TemplateName:    "greet",
		GuardrailConfig: "clinical",
	})
	require.NoError(t, err)
	assert.Equal(t, "Never diagnose.\n\nStay factual.\n\nHello u1.", res.Prompt)
	assert.Equal(t, "clinical", res.GuardrailConfig)
}

func TestAssembleUnknownGuardrailFailsClosed(t *testing.T) {
	p := newTestPipeline(activeTemplate("greet", "hi"), nil, nil)

	_, err := p.Assemble(context.Background(), AssembleRequest{
		UserID:          "u1",
		TemplateName:    "greet",
		GuardrailConfig: "nope",
	})
	assert.True(t, models.IsNotFound(err))
}

func TestAssembleInjectsAffect(t *testing.T) {
	affect := &fakeAffect{summary: "[User sentiment: guarded, disengaged]"}
	p := newTestPipeline(activeTemplate("greet", "Context.\nUser: {{current_message}}"), nil, affect)

	res, err := p.Assemble(context.Background(), AssembleRequest{
		UserID:        "u1",
		TemplateName:  "greet",
		UserMessage:   "hello",
		IncludeAffect: true,
	})
	require.NoError(t, err)
	assert.True(t, res.AffectInjected)
	assert.Equal(t, "Context.\n[User sentiment: guarded, disengaged]\nUser: hello", res.Prompt)
}

func TestAssembleAffectFailureDegrades(t *testing.T) {
	affect := &fakeAffect{err: errors.New("redis down")}
	p := newTestPipeline(activeTemplate("greet", "Hello {{user_id}}."), nil, affect)

	res, err := p.Assemble(context.Background(), AssembleRequest{
		UserID:        "u1",
		TemplateName:  "greet",
		IncludeAffect: true,
	})
	require.NoError(t, err)
	assert.False(t, res.AffectInjected)
	assert.Equal(t, "Hello u1.", res.Prompt)
}

func TestAssembleValidatesRequest(t *testing.T) {
	p := newTestPipeline(nil, nil, nil)

	var ve *models.ValidationError
	_, err := p.Assemble(context.Background(), AssembleRequest{TemplateName: "x"})
	assert.True(t, errors.As(err, &ve))

	_, err = p.Assemble(context.Background(), AssembleRequest{UserID: "u1"})
	assert.True(t, errors.As(err, &ve))
}
