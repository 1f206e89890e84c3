// Package pipeline orchestrates one prompt assembly: template lookup,
// context building, rendering, guardrail composition, and affect
// injection. Assembly never writes; given the same stored data and
// inputs it produces the same prompt.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/promptdeck/promptdeck/internal/assembler"
	"github.com/promptdeck/promptdeck/internal/guardrail"
	"github.com/promptdeck/promptdeck/internal/models"
	"github.com/promptdeck/promptdeck/internal/render"
	"github.com/promptdeck/promptdeck/internal/sentiment"
	"github.com/promptdeck/promptdeck/internal/tenant"
	"github.com/promptdeck/promptdeck/pkg/tokenizer"
)

type TemplateStore interface {
	GetByName(ctx context.Context, name string) (*models.Template, error)
}

type GuardrailResolver interface {
	Resolve(ctx context.Context, name string) (*guardrail.Config, error)
}

type ContextBuilder interface {
	Build(ctx context.Context, userID string, opts assembler.BuildOptions) (*models.ContextVariables, error)
}

type AffectProvider interface {
	RecentSummary(ctx context.Context, tenantID uuid.UUID, userID string) (string, error)
}

type Pipeline struct {
	templates  TemplateStore
	guardrails GuardrailResolver
	builder    ContextBuilder
	affect     AffectProvider
}

// New builds a pipeline. affect may be nil, which disables injection.
func New(templates TemplateStore, guardrails GuardrailResolver, builder ContextBuilder, affect AffectProvider) *Pipeline {
	return &Pipeline{templates: templates, guardrails: guardrails, builder: builder, affect: affect}
}

type AssembleRequest struct {
	UserID          string `json:"user_id"`
	TemplateName    string `json:"template_name"`
	UserMessage     string `json:"user_message"`
	GuardrailConfig string `json:"guardrail_config,omitempty"`
	HistoryLimit    int    `json:"history_limit,omitempty"`
	IncludeAffect   bool   `json:"include_affect,omitempty"`
}

type AssembleResult struct {
	Prompt          string    `json:"prompt"`
	TemplateID      uuid.UUID `json:"template_id"`
	TemplateVersion int       `json:"template_version"`
	GuardrailConfig string    `json:"guardrail_config,omitempty"`
	AffectInjected  bool      `json:"affect_injected"`
	EstimatedTokens int       `json:"estimated_tokens"`
}

// Assemble runs the full pipeline. Every stage fails closed except
// affect injection, which degrades to an unannotated prompt.
func (p *Pipeline) Assemble(ctx context.Context, req AssembleRequest) (*AssembleResult, error) {
	if req.UserID == "" {
		return nil, &models.ValidationError{Msg: "user_id must not be empty"}
	}
	if req.TemplateName == "" {
		return nil, &models.ValidationError{Msg: "template_name must not be empty"}
	}

	tmpl, err := p.templates.GetByName(ctx, req.TemplateName)
	if err != nil {
		return nil, err
	}
	if tmpl.Lifecycle != models.LifecycleActive {
		return nil, &models.NotFoundError{Resource: "template", Key: req.TemplateName}
	}

	vars, err := p.builder.Build(ctx, req.UserID, assembler.BuildOptions{
		HistoryLimit:  req.HistoryLimit,
		IncludeMemory: true,
		IncludeState:  true,
	})
	if err != nil {
		return nil, err
	}
	vars.CurrentMessage = req.UserMessage

	prompt, err := render.Render(tmpl.Content, vars.Map())
	if err != nil {
		return nil, err
	}

	result := &AssembleResult{
		TemplateID:      tmpl.ID,
		TemplateVersion: tmpl.CurrentVersion,
	}

	if req.GuardrailConfig != "" {
		cfg, err := p.guardrails.Resolve(ctx, req.GuardrailConfig)
		if err != nil {
			return nil, err
		}
		prompt = guardrail.Apply(prompt, cfg)
		result.GuardrailConfig = cfg.Name
	}

	if req.IncludeAffect && p.affect != nil {
		summary, err := p.affect.RecentSummary(ctx, tenant.IDFromContext(ctx), req.UserID)
		if err != nil {
			slog.Warn("affect lookup failed, assembling without it",
				"user_id", req.UserID, "error", err)
		} else if summary != "" {
			prompt = sentiment.Inject(prompt, summary)
			result.AffectInjected = true
		}
	}

	result.Prompt = prompt
	result.EstimatedTokens = tokenizer.CountTokens(prompt)
	return result, nil
}
