package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/promptdeck/promptdeck/internal/models"
	"github.com/promptdeck/promptdeck/internal/template"
)

type TemplateHandler struct {
	store *template.Store
}

func NewTemplateHandler(store *template.Store) *TemplateHandler {
	return &TemplateHandler{store: store}
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req template.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Msg: "invalid request body"})
		return
	}

	t, err := h.store.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := template.ListOptions{
		IncludeInactive: r.URL.Query().Get("include_inactive") == "true",
	}

	templates, err := h.store.List(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates, "count": len(templates)})
}

func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := templateID(w, r)
	if !ok {
		return
	}

	t, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TemplateHandler) GetByName(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.GetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := templateID(w, r)
	if !ok {
		return
	}

	var req template.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Msg: "invalid request body"})
		return
	}

	t, err := h.store.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TemplateHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	id, ok := templateID(w, r)
	if !ok {
		return
	}

	var req struct {
		Version   int    `json:"version"`
		CreatedBy string `json:"created_by,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Msg: "invalid request body"})
		return
	}
	if req.Version < 1 {
		writeError(w, &models.ValidationError{Msg: "version must be positive"})
		return
	}

	t, err := h.store.Rollback(r.Context(), id, req.Version, req.CreatedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TemplateHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := templateID(w, r)
	if !ok {
		return
	}

	versions, err := h.store.GetVersionHistory(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions, "count": len(versions)})
}

func (h *TemplateHandler) Clone(w http.ResponseWriter, r *http.Request) {
	id, ok := templateID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Msg: "invalid request body"})
		return
	}

	t, err := h.store.Clone(r.Context(), id, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *TemplateHandler) SetShareable(w http.ResponseWriter, r *http.Request) {
	id, ok := templateID(w, r)
	if !ok {
		return
	}

	var req struct {
		Shareable bool `json:"shareable"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Msg: "invalid request body"})
		return
	}

	if err := h.store.SetShareable(r.Context(), id, req.Shareable); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"shareable": req.Shareable})
}

func (h *TemplateHandler) ListShared(w http.ResponseWriter, r *http.Request) {
	templates, err := h.store.ListShared(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates, "count": len(templates)})
}

func (h *TemplateHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.store.Activate)
}

func (h *TemplateHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.store.Deactivate)
}

func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := templateID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TemplateHandler) lifecycle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id uuid.UUID) error) {
	id, ok := templateID(w, r)
	if !ok {
		return
	}

	if err := op(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func templateID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "templateID"))
	if err != nil {
		writeError(w, &models.ValidationError{Msg: "invalid template ID"})
		return uuid.Nil, false
	}
	return id, true
}
