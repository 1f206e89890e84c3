package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/promptdeck/promptdeck/internal/database"
	"github.com/promptdeck/promptdeck/internal/models"
	"github.com/promptdeck/promptdeck/internal/tenant"
)

type APIKeyMiddleware struct {
	db            database.Querier
	headerName    string
	tenantService *tenant.Service
}

func NewAPIKeyMiddleware(db database.Querier, headerName string, ts *tenant.Service) *APIKeyMiddleware {
	return &APIKeyMiddleware{
		db:            db,
		headerName:    headerName,
		tenantService: ts,
	}
}

// Authenticate resolves the tenant for requests carrying an API key.
// Requests without the header pass through for the JWT middleware.
func (m *APIKeyMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(m.headerName)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		hash := HashAPIKey(key)

		var ak models.APIKey
		err := m.db.QueryRow(r.Context(),
			`SELECT id, tenant_id, key_hash, name, last_used_at, expires_at, created_at
			 FROM api_keys WHERE key_hash = $1`, hash,
		).Scan(&ak.ID, &ak.TenantID, &ak.KeyHash, &ak.Name, &ak.LastUsedAt, &ak.ExpiresAt, &ak.CreatedAt)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		if ak.ExpiresAt != nil && ak.ExpiresAt.Before(time.Now()) {
			writeError(w, http.StatusUnauthorized, "API key expired")
			return
		}

		t, err := m.tenantService.GetByID(r.Context(), ak.TenantID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "tenant not found")
			return
		}

		go m.touchLastUsed(ak.ID.String())

		ctx := tenant.WithTenant(r.Context(), t)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *APIKeyMiddleware) touchLastUsed(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := m.db.Exec(ctx, "UPDATE api_keys SET last_used_at = now() WHERE id = $1", id); err != nil {
		slog.Warn("update api key last_used_at failed", "error", err)
	}
}

func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
