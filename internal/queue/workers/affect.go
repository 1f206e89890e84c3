// Package workers holds the asynq task handlers run by cmd/worker.
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/promptdeck/promptdeck/internal/cache"
	"github.com/promptdeck/promptdeck/internal/config"
	"github.com/promptdeck/promptdeck/internal/llm"
	"github.com/promptdeck/promptdeck/internal/memory"
	"github.com/promptdeck/promptdeck/internal/models"
	"github.com/promptdeck/promptdeck/internal/queue"
	"github.com/promptdeck/promptdeck/internal/sentiment"
	"github.com/promptdeck/promptdeck/internal/tenant"
)

const analyzeWindow = 5 // user messages per analysis

const classifyPrompt = `Score each numbered message on five affect dimensions.
valence is -1 to 1; arousal, dominance, trust, engagement are 0 to 1.
Respond with a JSON array only, one object per message, e.g.
[{"valence":0.2,"arousal":0.5,"dominance":0.5,"trust":0.6,"engagement":0.7}]`

// AffectWorker re-scores a user's recent messages and publishes the
// summary line the pipeline's affect provider reads.
type AffectWorker struct {
	memory  *memory.Store
	tenants *tenant.Service
	gateway llm.Gateway
	cache   *cache.Cache
	cfg     config.SentimentConfig
}

func NewAffectWorker(mem *memory.Store, tenants *tenant.Service, gateway llm.Gateway, c *cache.Cache, cfg config.SentimentConfig) *AffectWorker {
	return &AffectWorker{memory: mem, tenants: tenants, gateway: gateway, cache: c, cfg: cfg}
}

func (w *AffectWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.AffectAnalyzePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return fmt.Errorf("parse tenant ID: %w", err)
	}

	tn, err := w.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load tenant: %w", err)
	}
	ctx = tenant.WithTenant(ctx, tn)

	messages, err := w.memory.RecentMessages(ctx, payload.UserID, analyzeWindow*2)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}

	userMessages := lastUserMessages(messages, analyzeWindow)
	if len(userMessages) == 0 {
		slog.Info("no user messages to analyze", "user_id", payload.UserID)
		return nil
	}

	vectors, err := w.classify(ctx, userMessages)
	if err != nil {
		return fmt.Errorf("classify messages: %w", err)
	}

	summary := sentiment.Describe(sentiment.Average(vectors))
	key := sentiment.AffectKey(tenantID, payload.UserID)
	if err := w.cache.SetString(ctx, key, summary, w.cfg.SummaryTTL); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}

	slog.Info("affect summary updated",
		"tenant", tenantID, "user_id", payload.UserID,
		"messages", len(userMessages), "summary", summary)
	return nil
}

func (w *AffectWorker) classify(ctx context.Context, messages []string) ([]sentiment.AffectVector, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var sb strings.Builder
	for i, m := range messages {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, m)
	}

	resp, err := w.gateway.Chat(ctx, llm.ChatRequest{
		Model: w.cfg.Model,
		Messages: []llm.Message{
			{Role: "system", Content: classifyPrompt},
			{Role: "user", Content: sb.String()},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, err
	}

	var vectors []sentiment.AffectVector
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &vectors); err != nil {
		return nil, fmt.Errorf("parse classifier output: %w", err)
	}
	return vectors, nil
}

func lastUserMessages(messages []models.Message, limit int) []string {
	var out []string
	for i := len(messages) - 1; i >= 0 && len(out) < limit; i-- {
		if messages[i].Role == models.RoleUser {
			out = append(out, messages[i].Content)
		}
	}
	// Collected newest-first; restore chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// extractJSON tolerates models that wrap the array in prose or fences.
func extractJSON(s string) string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
