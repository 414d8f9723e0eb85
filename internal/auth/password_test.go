package auth

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/groupsplit/internal/storage/sqlstore"
	"github.com/mmynk/groupsplit/internal/validation"
)

func newTestAuthenticator(t *testing.T) *PasswordAuthenticator {
	t.Helper()
	store, err := sqlstore.NewSQLite(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	a := NewPasswordAuthenticator(store)
	a.cost = bcrypt.MinCost
	return a
}

func validRegistration() RegistrationInput {
	return RegistrationInput{
		Username:  "alice",
		FirstName: "Alice",
		LastName:  "Liddell",
		Email:     "alice@example.com",
		Password:  "wonderland",
		Password1: "wonderland",
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthenticator(t)

	user, err := a.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "wonderland", user.PasswordHash)

	tests := []struct {
		name    string
		mutate  func(*RegistrationInput)
		field   string
		message string
	}{
		{
			name:    "password mismatch",
			mutate:  func(in *RegistrationInput) { in.Username = "bob"; in.Email = "bob@example.com"; in.Password1 = "other" },
			field:   "password1",
			message: "Passwords do not match.",
		},
		{
			name:    "mismatch reported before duplicate username",
			mutate:  func(in *RegistrationInput) { in.Password1 = "other" },
			field:   "password1",
			message: "Passwords do not match.",
		},
		{
			name:    "duplicate username",
			mutate:  func(in *RegistrationInput) { in.Email = "new@example.com" },
			field:   "username",
			message: "Username is already taken.",
		},
		{
			name:    "duplicate email",
			mutate:  func(in *RegistrationInput) { in.Username = "alice2" },
			field:   "email",
			message: "Email is already registered.",
		},
		{
			name:    "malformed email",
			mutate:  func(in *RegistrationInput) { in.Username = "carol"; in.Email = "not-an-email" },
			field:   "email",
			message: "Enter a valid email address.",
		},
		{
			name:    "blank username",
			mutate:  func(in *RegistrationInput) { in.Username = "" },
			field:   "username",
			message: "This field may not be blank.",
		},
		{
			name:    "username with spaces",
			mutate:  func(in *RegistrationInput) { in.Username = "a b" },
			field:   "username",
			message: "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validRegistration()
			tt.mutate(&in)

			_, err := a.Register(ctx, in)
			verr, ok := validation.As(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.Equal(t, validation.Invalid, verr.Kind)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.message, verr.Message)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthenticator(t)
	_, err := a.Register(ctx, validRegistration())
	require.NoError(t, err)

	t.Run("success records last login", func(t *testing.T) {
		user, err := a.Authenticate(ctx, "alice@example.com", "wonderland")
		require.NoError(t, err)
		require.NotNil(t, user.LastLogin)

		stored, err := a.storage.GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.NotNil(t, stored.LastLogin)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := a.Authenticate(ctx, "nobody@example.com", "wonderland")
		verr, ok := validation.As(err)
		require.True(t, ok)
		assert.Equal(t, validation.Authentication, verr.Kind)
		assert.Equal(t, "email", verr.Field)
		assert.Equal(t, "Email does not exist.", verr.Message)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := a.Authenticate(ctx, "alice@example.com", "looking-glass")
		verr, ok := validation.As(err)
		require.True(t, ok)
		assert.Equal(t, validation.Authentication, verr.Kind)
		assert.Equal(t, "password", verr.Field)
		assert.Equal(t, "Invalid password.", verr.Message)
	})
}
