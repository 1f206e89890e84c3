package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/promptdeck/promptdeck/internal/memory"
	"github.com/promptdeck/promptdeck/internal/models"
)

type MemoryHandler struct {
	store *memory.Store
}

func NewMemoryHandler(store *memory.Store) *MemoryHandler {
	return &MemoryHandler{store: store}
}

func (h *MemoryHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}

	messages, err := h.store.RecentMessages(r.Context(), userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	total, err := h.store.CountMessages(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages, "total": total})
}

func (h *MemoryHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearHistory(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MemoryHandler) AllMemory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.AllMemory(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memory": entries})
}

func (h *MemoryHandler) SetMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value map[string]any `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Msg: "invalid request body"})
		return
	}

	userID := chi.URLParam(r, "userID")
	key := chi.URLParam(r, "key")
	if err := h.store.SetMemory(r.Context(), userID, key, req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key})
}

func (h *MemoryHandler) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	key := chi.URLParam(r, "key")
	if err := h.store.DeleteMemory(r.Context(), userID, key); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MemoryHandler) SetState(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Msg: "invalid request body"})
		return
	}

	userID := chi.URLParam(r, "userID")
	if err := h.store.SetState(r.Context(), userID, req.Mode); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mode": req.Mode})
}

func (h *MemoryHandler) GetState(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	mode, found, err := h.store.State(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mode": mode, "found": found})
}
