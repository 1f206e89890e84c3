package sentiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/promptdeck/promptdeck/internal/cache"
)

// AffectKey is the redis key the analysis worker writes summaries to
// and the provider reads them from.
func AffectKey(tenantID uuid.UUID, userID string) string {
	return fmt.Sprintf("affect:%s:%s", tenantID, userID)
}

// Provider reads the most recent affect summary for a user. Lookups
// are bounded by a short timeout so a slow redis can never stall
// prompt assembly.
type Provider struct {
	cache   *cache.Cache
	timeout time.Duration
}

func NewProvider(c *cache.Cache, timeout time.Duration) *Provider {
	return &Provider{cache: c, timeout: timeout}
}

// RecentSummary returns the summary line, or "" when none is stored.
// Errors degrade to absence; affect is advisory and never blocks.
func (p *Provider) RecentSummary(ctx context.Context, tenantID uuid.UUID, userID string) (string, error) {
	if p == nil || p.cache == nil {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	summary, err := p.cache.GetString(ctx, AffectKey(tenantID, userID))
	if errors.Is(err, cache.ErrMiss) {
		return "", nil
	}
	if err != nil {
		slog.Warn("affect summary lookup failed", "user_id", userID, "error", err)
		return "", nil
	}
	return summary, nil
}
