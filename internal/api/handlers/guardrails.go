package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/promptdeck/promptdeck/internal/guardrail"
	"github.com/promptdeck/promptdeck/internal/models"
)

type GuardrailHandler struct {
	store *guardrail.Store
}

func NewGuardrailHandler(store *guardrail.Store) *GuardrailHandler {
	return &GuardrailHandler{store: store}
}

func (h *GuardrailHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req guardrail.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Msg: "invalid request body"})
		return
	}

	cfg, err := h.store.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

func (h *GuardrailHandler) List(w http.ResponseWriter, r *http.Request) {
	configs, err := h.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"configs": configs, "count": len(configs)})
}

func (h *GuardrailHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := guardrailID(w, r)
	if !ok {
		return
	}

	cfg, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *GuardrailHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := guardrailID(w, r)
	if !ok {
		return
	}

	var req guardrail.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Msg: "invalid request body"})
		return
	}

	cfg, err := h.store.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *GuardrailHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := guardrailID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GuardrailHandler) Presets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"presets": guardrail.PresetNames})
}

func guardrailID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "configID"))
	if err != nil {
		writeError(w, &models.ValidationError{Msg: "invalid config ID"})
		return uuid.Nil, false
	}
	return id, true
}
