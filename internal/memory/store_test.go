package memory

import (
	"context"
	"errors"
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

func TestAddMessageRejectsUnknownRole(t *testing.T) {
	_, store := newMockStore(t)

	_, err := store.AddMessage(context.Background(), "u1", "system", "hi")

	var ve *models.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestRecentMessagesChronologicalOrder(t *testing.T) {
	mock, store := newMockStore(t)
	tenantID := uuid.New()
	base := time.Now()

	// DESC from the database: newest first.
	rows := pgxmock.NewRows([]string{"id", "tenant_id", "user_id", "role", "content", "created_at"}).
		AddRow(uuid.New(), &tenantID, "u1", models.RoleAssistant, "third", base).
		AddRow(uuid.New(), &tenantID, "u1", models.RoleUser, "second", base.Add(-time.Minute)).
		AddRow(uuid.New(), &tenantID, "u1", models.RoleUser, "first", base.Add(-2*time.Minute))

	mock.ExpectQuery("SELECT id, tenant_id, user_id, role, content, created_at").
		WithArgs(&tenantID, "u1", 10).
		WillReturnRows(rows)

	messages, err := store.RecentMessages(tenantCtx(tenantID), "u1", 10)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "second", messages[1].Content)
	assert.Equal(t, "third", messages[2].Content)
}

func TestStateAbsentIsNotAnError(t *testing.T) {
	mock, store := newMockStore(t)
	tenantID := uuid.New()

	mock.ExpectQuery("SELECT mode FROM user_state").
		WithArgs(&tenantID, "u1").
		WillReturnError(pgx.ErrNoRows)

	mode, found, err := store.State(tenantCtx(tenantID), "u1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, mode)
}

func TestDeleteMemoryMissing(t *testing.T) {
	mock, store := newMockStore(t)
	tenantID := uuid.New()

	mock.ExpectExec("DELETE FROM user_memory").
		WithArgs(&tenantID, "u1", "nope").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := store.DeleteMemory(tenantCtx(tenantID), "u1", "nope")
	assert.True(t, models.IsNotFound(err))
}

func TestSetMemoryEmptyKey(t *testing.T) {
	_, store := newMockStore(t)

	err := store.SetMemory(context.Background(), "u1", "", nil)

	var ve *models.ValidationError
	assert.True(t, errors.As(err, &ve))
}
