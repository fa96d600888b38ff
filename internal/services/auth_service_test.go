package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsPatrick/finance-os/internal/apperr"
)

func TestRegisterAndLogin(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuthService(db, "test-secret")

	user, err := svc.Register(RegisterInput{
		Name: "Ada", Email: "ada@example.com", Password: "hunter2hunter2",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2hunter2", user.PasswordHash)

	_, err = svc.Register(RegisterInput{
		Name: "Ada Again", Email: "ada@example.com", Password: "hunter2hunter2",
	})
	assert.Equal(t, 409, apperr.StatusOf(err))

	token, logged, err := svc.Login(LoginInput{Email: "ada@example.com", Password: "hunter2hunter2"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(user.ID), claims["user_id"])
	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuthService(db, "test-secret")

	_, err := svc.Register(RegisterInput{
		Name: "Ada", Email: "ada@example.com", Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	_, _, err = svc.Login(LoginInput{Email: "ada@example.com", Password: "wrong"})
	assert.Equal(t, 400, apperr.StatusOf(err))

	_, _, err = svc.Login(LoginInput{Email: "nobody@example.com", Password: "whatever"})
	assert.Equal(t, 400, apperr.StatusOf(err))
}
