package assembler

import (
	"context"
	"testing"

	"github.com/promptdeck/promptdeck/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	messages []models.Message
	total    int
	memory   map[string]any
	mode     string
	hasMode  bool
}

func (f *fakeStore) RecentMessages(_ context.Context, _ string, limit int) ([]models.Message, error) {
	if len(f.messages) > limit {
		return f.messages[len(f.messages)-limit:], nil
	}
	return f.messages, nil
}

func (f *fakeStore) CountMessages(context.Context, string) (int, error) { return f.total, nil }

func (f *fakeStore) AllMemory(context.Context, string) (map[string]any, error) {
	return f.memory, nil
}

func (f *fakeStore) State(context.Context, string) (string, bool, error) {
	return f.mode, f.hasMode, nil
}

func TestBuildWithHistory(t *testing.T) {
	store := &fakeStore{
		messages: []models.Message{
			{Role: models.RoleUser, Content: "hi"},
			{Role: models.RoleAssistant, Content: "hello"},
		},
		total: 7,
	}
	a := New(store, store, store)

	vars, err := a.Build(context.Background(), "u1", BuildOptions{HistoryLimit: 10})
	require.NoError(t, err)

	assert.Equal(t, "u1", vars.UserID)
	assert.True(t, vars.HasHistory)
	assert.Equal(t, 7, vars.MessageCount)
	assert.Equal(t, "User: hi\nAssistant: hello", vars.HistoryText)
	require.Len(t, vars.History, 2)
	assert.Equal(t, "user", vars.History[0].Role)
}

func TestBuildEmptyHistory(t *testing.T) {
	store := &fakeStore{}
	a := New(store, store, store)

	vars, err := a.Build(context.Background(), "u1", BuildOptions{HistoryLimit: 10})
	require.NoError(t, err)

	assert.False(t, vars.HasHistory)
	assert.Zero(t, vars.MessageCount)
	assert.Empty(t, vars.HistoryText)
}

func TestBuildStateOnlyWhenPresent(t *testing.T) {
	store := &fakeStore{mode: "onboarding", hasMode: true}
	a := New(store, store, store)

	vars, err := a.Build(context.Background(), "u1", BuildOptions{IncludeState: true})
	require.NoError(t, err)
	assert.True(t, vars.HasState)
	assert.Equal(t, "onboarding", vars.State)

	m := vars.Map()
	assert.Equal(t, "onboarding", m["state"])

	store.hasMode = false
	vars, err = a.Build(context.Background(), "u1", BuildOptions{IncludeState: true})
	require.NoError(t, err)
	assert.False(t, vars.HasState)
	_, ok := vars.Map()["state"]
	assert.False(t, ok)
}

func TestBuildMemoryDefaultsToEmptyMap(t *testing.T) {
	store := &fakeStore{}
	a := New(store, store, store)

	vars, err := a.Build(context.Background(), "u1", BuildOptions{IncludeMemory: true})
	require.NoError(t, err)
	assert.NotNil(t, vars.Memory)
	assert.Empty(t, vars.Memory)
}
