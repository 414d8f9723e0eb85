package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/groupsplit/internal/models"
)

var testUser = &models.User{
	ID:        "u1",
	Username:  "alice",
	Email:     "alice@example.com",
	FirstName: "Alice",
	LastName:  "Liddell",
}

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute, 24*time.Hour)

	t.Run("access token round trip", func(t *testing.T) {
		token, err := m.Generate(testUser)
		require.NoError(t, err)

		claims, err := m.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.UserID)
		assert.Equal(t, "alice", claims.Username)
		assert.Equal(t, "alice@example.com", claims.Email)
		assert.Equal(t, "Alice", claims.FirstName)
		assert.Equal(t, "Liddell", claims.LastName)
		assert.Equal(t, AccessToken, claims.TokenType)
	})

	t.Run("token types are not interchangeable", func(t *testing.T) {
		access, err := m.Generate(testUser)
		require.NoError(t, err)
		refresh, err := m.GenerateRefresh(testUser)
		require.NoError(t, err)

		_, err = m.ValidateRefresh(access)
		assert.ErrorIs(t, err, ErrInvalidToken)
		_, err = m.Validate(refresh)
		assert.ErrorIs(t, err, ErrInvalidToken)

		claims, err := m.ValidateRefresh(refresh)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.UserID)
		assert.Empty(t, claims.Email)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := NewJWTManager("test-secret", -time.Minute, time.Hour)
		token, err := expired.Generate(testUser)
		require.NoError(t, err)

		_, err = m.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTManager("other-secret", time.Minute, time.Hour)
		token, err := other.Generate(testUser)
		require.NoError(t, err)

		_, err = m.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := m.Validate("")
		assert.ErrorIs(t, err, ErrMissingToken)
	})
}

func TestRefreshCookie(t *testing.T) {
	c := RefreshCookie("tok", true)
	assert.Equal(t, "refresh_token", c.Name)
	assert.Equal(t, 86400, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

	h := http.Header{}
	h.Add("Cookie", "theme=dark; refresh_token=tok")
	assert.Equal(t, "tok", RefreshTokenFromHeader(h))
	assert.Empty(t, RefreshTokenFromHeader(http.Header{}))

	cleared := ClearRefreshCookie(true)
	assert.Equal(t, -1, cleared.MaxAge)
	assert.Empty(t, cleared.Value)
}
