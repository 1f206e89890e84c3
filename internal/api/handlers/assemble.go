package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/promptdeck/promptdeck/internal/config"
	"github.com/promptdeck/promptdeck/internal/llm"
	"github.com/promptdeck/promptdeck/internal/memory"
	"github.com/promptdeck/promptdeck/internal/models"
	"github.com/promptdeck/promptdeck/internal/pipeline"
	"github.com/promptdeck/promptdeck/internal/queue"
	"github.com/promptdeck/promptdeck/internal/tenant"
)

type AssembleHandler struct {
	pipeline *pipeline.Pipeline
	gateway  llm.Gateway
	memory   *memory.Store
	queue    *queue.Client
	cfg      *config.Config
}

func NewAssembleHandler(p *pipeline.Pipeline, gw llm.Gateway, mem *memory.Store, q *queue.Client, cfg *config.Config) *AssembleHandler {
	return &AssembleHandler{pipeline: p, gateway: gw, memory: mem, queue: q, cfg: cfg}
}

// Assemble returns the composed prompt without calling any model. This
// is the dry-run surface operators use to inspect what a template
// produces.
func (h *AssembleHandler) Assemble(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.pipeline.Assemble(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type chatRequest struct {
	pipeline.AssembleRequest
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

type chatResponse struct {
	Reply    string                   `json:"reply"`
	Model    string                   `json:"model"`
	Provider string                   `json:"provider"`
	Assembly *pipeline.AssembleResult `json:"assembly"`
}

// Chat assembles the prompt, runs the model turn, persists both sides
// of the exchange, and queues an affect re-score.
func (h *AssembleHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Msg: "invalid request body"})
		return
	}
	if req.UserMessage == "" {
		writeError(w, &models.ValidationError{Msg: "user_message must not be empty"})
		return
	}
	h.applyDefaults(&req.AssembleRequest)

	result, err := h.pipeline.Assemble(r.Context(), req.AssembleRequest)
	if err != nil {
		writeError(w, err)
		return
	}

	model := req.Model
	if model == "" {
		model = h.cfg.LLM.DefaultModel
	}

	resp, err := h.gateway.Chat(r.Context(), llm.ChatRequest{
		Provider: req.Provider,
		Model:    model,
		Messages: []llm.Message{{Role: "user", Content: result.Prompt}},
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.memory.AddMessage(r.Context(), req.UserID, models.RoleUser, req.UserMessage); err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.memory.AddMessage(r.Context(), req.UserID, models.RoleAssistant, resp.Content); err != nil {
		writeError(w, err)
		return
	}

	if h.queue != nil && h.cfg.Sentiment.Enabled {
		err := h.queue.EnqueueAffectAnalyze(queue.AffectAnalyzePayload{
			TenantID: tenant.IDFromContext(r.Context()).String(),
			UserID:   req.UserID,
		})
		if err != nil {
			slog.Warn("enqueue affect analysis failed", "user_id", req.UserID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Reply:    resp.Content,
		Model:    resp.Model,
		Provider: resp.Provider,
		Assembly: result,
	})
}

func (h *AssembleHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (pipeline.AssembleRequest, bool) {
	var req pipeline.AssembleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Msg: "invalid request body"})
		return req, false
	}
	h.applyDefaults(&req)
	return req, true
}

func (h *AssembleHandler) applyDefaults(req *pipeline.AssembleRequest) {
	if req.TemplateName == "" {
		req.TemplateName = h.cfg.Prompt.DefaultTemplateName
	}
	if req.HistoryLimit == 0 {
		req.HistoryLimit = h.cfg.Prompt.HistoryLimit
	}
}
