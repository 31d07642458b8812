package users

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlab/boardroom/internal/auth"
	"github.com/driftlab/boardroom/internal/models"
)

type memoryUsers struct {
	byID       map[uuid.UUID]*models.User
	byUsername map[string]*models.User
	byEmail    map[string]*models.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{
		byID:       make(map[uuid.UUID]*models.User),
		byUsername: make(map[string]*models.User),
		byEmail:    make(map[string]*models.User),
	}
}

func (m *memoryUsers) CreateUser(_ context.Context, user *models.User) (*models.User, error) {
	cp := *user
	m.byID[user.ID] = &cp
	m.byUsername[user.Username] = &cp
	m.byEmail[user.Email] = &cp
	return &cp, nil
}

func (m *memoryUsers) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", models.ErrNotFound)
	}
	return u, nil
}

func (m *memoryUsers) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	u, ok := m.byUsername[username]
	if !ok {
		return nil, fmt.Errorf("get user: %w", models.ErrNotFound)
	}
	return u, nil
}

func (m *memoryUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("get user: %w", models.ErrNotFound)
	}
	return u, nil
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	tokens, err := auth.NewHMACTokenService("test-secret-change-me", time.Hour, nil)
	require.NoError(t, err)
	return NewApp(newMemoryUsers(), tokens)
}

func TestRegisterIssuesUsableToken(t *testing.T) {
	app := newTestApp(t)

	user, token, err := app.Register(context.Background(), RegisterRequest{
		Username: "ada",
		Email:    "ada@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEqual(t, "correct horse", user.PasswordHash, "password is never stored in the clear")
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	app := newTestApp(t)

	_, _, err := app.Register(context.Background(), RegisterRequest{
		Username: "ada", Email: "ada@example.com", Password: "correct horse",
	})
	require.NoError(t, err)

	_, _, err = app.Register(context.Background(), RegisterRequest{
		Username: "ada", Email: "other@example.com", Password: "correct horse",
	})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, _, err = app.Register(context.Background(), RegisterRequest{
		Username: "ada2", Email: "ada@example.com", Password: "correct horse",
	})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestRegisterValidation(t *testing.T) {
	app := newTestApp(t)

	cases := []RegisterRequest{
		{Username: "", Email: "a@b.c", Password: "longenough"},
		{Username: "ada", Email: "not-an-email", Password: "longenough"},
		{Username: "ada", Email: "a@b.c", Password: "short"},
	}
	for _, req := range cases {
		_, _, err := app.Register(context.Background(), req)
		assert.ErrorIs(t, err, models.ErrValidation)
	}
}

func TestLogin(t *testing.T) {
	app := newTestApp(t)
	_, _, err := app.Register(context.Background(), RegisterRequest{
		Username: "ada", Email: "ada@example.com", Password: "correct horse",
	})
	require.NoError(t, err)

	user, token, err := app.Login(context.Background(), "ada", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "ada", user.Username)
	assert.NotEmpty(t, token)

	_, _, err = app.Login(context.Background(), "ada", "wrong password")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	// Unknown user and bad password are indistinguishable to the caller.
	_, _, err = app.Login(context.Background(), "nobody", "whatever")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}
