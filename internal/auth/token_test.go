package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func TestTokenManager(t *testing.T) {
	user := &domain.User{
		ID:    42,
		Email: "alice@x.com",
		Roles: []domain.Role{domain.RoleUser, domain.RoleAgent},
	}

	t.Run("Should round-trip claims through a signed token", func(t *testing.T) {
		tm := NewTokenManager("test-secret", 60)
		token, expiresAt, err := tm.GenerateToken(user)
		require.NoError(t, err)
		assert.True(t, expiresAt.After(time.Now()))

		claims, err := tm.ParseToken(token)
		require.NoError(t, err)
		assert.Equal(t, "alice@x.com", claims.Email)
		assert.Equal(t, []string{"USER", "AGENT"}, claims.Roles)

		id, err := claims.UserID()
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
	})

	t.Run("Should reject tokens signed with a different secret", func(t *testing.T) {
		token, _, err := NewTokenManager("secret-a", 60).GenerateToken(user)
		require.NoError(t, err)

		_, err = NewTokenManager("secret-b", 60).ParseToken(token)
		require.Error(t, err)
	})

	t.Run("Should reject garbage tokens", func(t *testing.T) {
		tm := NewTokenManager("test-secret", 60)
		_, err := tm.ParseToken("not.a.jwt")
		require.Error(t, err)
	})

	t.Run("Should default a non-positive TTL to an hour", func(t *testing.T) {
		tm := NewTokenManager("test-secret", 0)
		_, expiresAt, err := tm.GenerateToken(user)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)
	})
}

func TestPasswordHashing(t *testing.T) {
	t.Run("Should verify a matching password", func(t *testing.T) {
		hash, err := HashPassword("hunter2secret", 4)
		require.NoError(t, err)
		assert.NotEqual(t, "hunter2secret", hash)
		require.NoError(t, ComparePassword(hash, "hunter2secret"))
	})

	t.Run("Should reject a wrong password", func(t *testing.T) {
		hash, err := HashPassword("hunter2secret", 4)
		require.NoError(t, err)
		require.Error(t, ComparePassword(hash, "wrong"))
	})
}
