package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thdev-org/marks-daybook/internal/models"
	apperrors "github.com/thdev-org/marks-daybook/pkg/errors"
)

type mockUserRepo struct {
	users       map[int64]models.User
	loseRace    bool
	createCalls int
}

func (m *mockUserRepo) FindByTelegramID(_ context.Context, telegramID int64) (*models.User, error) {
	user, ok := m.users[telegramID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &user, nil
}

func (m *mockUserRepo) Create(_ context.Context, user *models.User) (bool, error) {
	m.createCalls++
	if m.users == nil {
		m.users = make(map[int64]models.User)
	}
	if _, exists := m.users[user.TelegramID]; exists {
		return false, nil
	}
	if m.loseRace {
		// Another writer won between the lookup and the insert.
		m.users[user.TelegramID] = models.User{ID: "raced", TelegramID: user.TelegramID, Name: user.Name}
		return false, nil
	}
	user.ID = "user-1"
	m.users[user.TelegramID] = *user
	return true, nil
}

func TestUserServiceRegisterOrFetchCreates(t *testing.T) {
	repo := &mockUserRepo{}
	svc := NewUserService(repo, nil)

	user, isNew, err := svc.RegisterOrFetch(context.Background(), 42, "Alice")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, int64(42), user.TelegramID)
	assert.Equal(t, "Alice", user.Name)
}

func TestUserServiceRegisterOrFetchIdempotent(t *testing.T) {
	repo := &mockUserRepo{}
	svc := NewUserService(repo, nil)

	first, isNew, err := svc.RegisterOrFetch(context.Background(), 42, "Alice")
	require.NoError(t, err)
	assert.True(t, isNew)

	second, isNew, err := svc.RegisterOrFetch(context.Background(), 42, "Alice")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.createCalls)
}

func TestUserServiceRegisterOrFetchLostRace(t *testing.T) {
	repo := &mockUserRepo{loseRace: true}
	svc := NewUserService(repo, nil)

	user, isNew, err := svc.RegisterOrFetch(context.Background(), 42, "Alice")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, "raced", user.ID)
}

func TestUserServiceFindByTelegramIDNotRegistered(t *testing.T) {
	svc := NewUserService(&mockUserRepo{}, nil)

	_, err := svc.FindByTelegramID(context.Background(), 42)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
