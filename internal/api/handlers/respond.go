package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/promptdeck/promptdeck/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps the store/render error taxonomy onto HTTP statuses.
// Unrecognized errors become opaque 500s; the detail goes to the log,
// not the client.
func writeError(w http.ResponseWriter, err error) {
	var (
		notFound   *models.NotFoundError
		validation *models.ValidationError
		syntax     *models.SyntaxError
		render     *models.RenderError
		conflict   *models.ConflictError
	)

	switch {
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": notFound.Error()})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validation.Error()})
	case errors.As(err, &syntax):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": syntax.Error()})
	case errors.As(err, &render):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": render.Error()})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": conflict.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
