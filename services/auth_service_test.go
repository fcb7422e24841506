package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	auth := NewAuthService(env.users)
	ctx := context.Background()

	user, err := auth.Register(ctx, RegisterInput{
		FirstName: "Ichiro",
		Nickname:  "ichi",
		Email:     "Ichi@Example.com",
		Password:  "correct horse",
	})
	require.NoError(t, err)
	assert.Empty(t, user.PasswordHash, "the hash never leaves the service")
	assert.Equal(t, "ichi@example.com", user.Email)

	logged, err := auth.Login(ctx, LoginInput{Email: "ichi@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)

	_, err = auth.Login(ctx, LoginInput{Email: "ichi@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "whatever"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterRejectsShortPasswordAndDuplicates(t *testing.T) {
	env := newTestEnv(t)
	auth := NewAuthService(env.users)
	ctx := context.Background()

	_, err := auth.Register(ctx, RegisterInput{Nickname: "a", Email: "a@example.com", Password: "short"})
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	_, err = auth.Register(ctx, RegisterInput{Nickname: "a", Email: "a@example.com", Password: "long enough"})
	require.NoError(t, err)
	_, err = auth.Register(ctx, RegisterInput{Nickname: "b", Email: "a@example.com", Password: "long enough"})
	assert.ErrorIs(t, err, ErrUserEmailConflict)
}
