package auth

import (
	"context"

	"github.com/mmynk/groupsplit/internal/models"
)

// RegistrationInput is a sign-up form as submitted.
type RegistrationInput struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
	Password  string
	// Password1 must repeat Password.
	Password1 string
}

// Authenticator defines the interface for authentication implementations.
// This abstraction allows swapping between different auth methods (password, passkeys, OAuth, etc.)
// without changing the service layer code.
type Authenticator interface {
	// Register creates a new user account.
	// Form problems are returned as *validation.Error.
	Register(ctx context.Context, in RegistrationInput) (*models.User, error)

	// Authenticate verifies the user's credentials and returns the user if successful.
	// An unknown email and a wrong credential are distinct Authentication errors.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}
