package guardrail

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/promptdeck/promptdeck/internal/models"
	"github.com/promptdeck/promptdeck/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configCols = []string{
	"id", "tenant_id", "name", "description", "rules", "lifecycle", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewStore(mock)
}

func tenantCtx(id uuid.UUID) context.Context {
	return tenant.WithTenant(context.Background(), &models.Tenant{ID: id})
}

func TestStoreResolveSystemFallback(t *testing.T) {
	mock, store := newMockStore(t)
	tenantID := uuid.New()
	cfgID := uuid.New()
	now := time.Now()

	rules := []Rule{{Type: RuleTypeInstruction, Priority: 10, Content: "Never diagnose."}}
	mock.ExpectQuery("SELECT .+ FROM guardrail_configs").
		WithArgs("clinical", &tenantID).
		WillReturnRows(pgxmock.NewRows(configCols).AddRow(
			cfgID, (*uuid.UUID)(nil), "clinical", "preset", rules, models.LifecycleActive, now, now,
		))

	cfg, err := store.Resolve(tenantCtx(tenantID), "clinical")
	require.NoError(t, err)
	assert.Equal(t, "clinical", cfg.Name)
	assert.Nil(t, cfg.TenantID)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, "Never diagnose.", cfg.Rules[0].Content)
}

func TestStoreResolveUnknown(t *testing.T) {
	mock, store := newMockStore(t)
	tenantID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM guardrail_configs").
		WithArgs("nope", &tenantID).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Resolve(tenantCtx(tenantID), "nope")
	assert.True(t, models.IsNotFound(err))
}

func TestStoreCreateRequiresName(t *testing.T) {
	_, store := newMockStore(t)

	_, err := store.Create(context.Background(), CreateRequest{Rules: []Rule{}})
	assert.Error(t, err)
}

func TestStoreCreateValidatesRules(t *testing.T) {
	_, store := newMockStore(t)

	_, err := store.Create(context.Background(), CreateRequest{
		Name:  "broken",
		Rules: []Rule{{Priority: 1}},
	})

	var ve *models.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestStoreDeleteMissing(t *testing.T) {
	mock, store := newMockStore(t)
	tenantID := uuid.New()
	id := uuid.New()

	mock.ExpectExec("UPDATE guardrail_configs SET lifecycle").
		WithArgs(id, &tenantID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.Delete(tenantCtx(tenantID), id)
	assert.True(t, models.IsNotFound(err))
}
