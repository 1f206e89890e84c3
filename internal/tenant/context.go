package tenant

import (
	"context"

	"github.com/google/uuid"
	"github.com/promptdeck/promptdeck/internal/models"
)

type contextKey string

const tenantKey contextKey = "tenant"

func WithTenant(ctx context.Context, t *models.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

func FromContext(ctx context.Context) *models.Tenant {
	t, _ := ctx.Value(tenantKey).(*models.Tenant)
	return t
}

// IDFromContext returns uuid.Nil when no tenant is bound, which the
// stores read as system scope.
func IDFromContext(ctx context.Context) uuid.UUID {
	if t := FromContext(ctx); t != nil {
		return t.ID
	}
	return uuid.Nil
}
