package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mcnijman/go-emailaddress"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/groupsplit/internal/models"
	"github.com/mmynk/groupsplit/internal/storage"
	"github.com/mmynk/groupsplit/internal/validation"
)

const (
	maxUsernameLength = 150
	// bcrypt ignores input past 72 bytes, and x/crypto refuses it outright.
	maxPasswordBytes = 72
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// UserStorage defines the interface for user persistence operations.
// This allows the authenticator to be independent of the storage implementation.
type UserStorage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

// PasswordAuthenticator implements password-based authentication using bcrypt.
type PasswordAuthenticator struct {
	storage UserStorage
	cost    int
}

// NewPasswordAuthenticator creates a new password-based authenticator.
func NewPasswordAuthenticator(storage UserStorage) *PasswordAuthenticator {
	return &PasswordAuthenticator{
		storage: storage,
		cost:    bcrypt.DefaultCost,
	}
}

// ValidateCredential checks that the password fits bcrypt.
func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	if len(credential) > maxPasswordBytes {
		return validation.Newf("password", "Ensure this field has no more than %d characters.", maxPasswordBytes)
	}
	return nil
}

// Register creates a new user account with a hashed password.
//
// Checks run in order: required fields, email syntax, username syntax,
// password length, password confirmation, username uniqueness, email
// uniqueness. The first failure is returned.
func (a *PasswordAuthenticator) Register(ctx context.Context, in RegistrationInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	err := validation.First(
		validation.Required("username", in.Username),
		validation.Required("email", in.Email),
		validation.Required("password", in.Password),
		validation.Required("password1", in.Password1),
		validation.MaxLength("username", in.Username, maxUsernameLength),
		validation.MaxLength("first_name", in.FirstName, maxUsernameLength),
		validation.MaxLength("last_name", in.LastName, maxUsernameLength),
		validEmail("email", in.Email),
		validUsername("username", in.Username),
	)
	if err != nil {
		return nil, err
	}
	if err := a.ValidateCredential(in.Password); err != nil {
		return nil, err
	}
	if in.Password != in.Password1 {
		return nil, validation.New("password1", "Passwords do not match.")
	}

	if err := a.checkTaken(ctx, in); err != nil {
		return nil, err
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), a.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: string(hashedPassword),
	}

	// Save to storage
	if err := a.storage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// Lost a race with a concurrent sign-up.
			if takenErr := a.checkTaken(ctx, in); takenErr != nil {
				return nil, takenErr
			}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (a *PasswordAuthenticator) checkTaken(ctx context.Context, in RegistrationInput) error {
	taken, err := exists(a.storage.GetUserByUsername(ctx, in.Username))
	if err != nil {
		return err
	}
	if taken {
		return validation.New("username", "Username is already taken.")
	}

	taken, err = exists(a.storage.GetUserByEmail(ctx, in.Email))
	if err != nil {
		return err
	}
	if taken {
		return validation.New("email", "Email is already registered.")
	}
	return nil
}

func exists(_ *models.User, err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("failed to look up user: %w", err)
	}
}

// Authenticate verifies the email and password, returning the user if valid.
// A successful login records last_login.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, credential string) (*models.User, error) {
	email = strings.TrimSpace(email)
	err := validation.First(
		validation.Required("email", email),
		validation.Required("password", credential),
	)
	if err != nil {
		return nil, err
	}

	// Get user by email
	user, err := a.storage.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, validation.Unauthenticated("email", "Email does not exist.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	// Compare password hash
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credential)); err != nil {
		return nil, validation.Unauthenticated("password", "Invalid password.")
	}

	now := time.Now().UTC()
	if err := a.storage.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.LastLogin = &now

	return user, nil
}

func validEmail(field, value string) validation.Rule {
	return func() *validation.Error {
		if _, err := emailaddress.Parse(value); err != nil {
			return validation.New(field, "Enter a valid email address.")
		}
		return nil
	}
}

func validUsername(field, value string) validation.Rule {
	return func() *validation.Error {
		if !usernamePattern.MatchString(value) {
			return validation.New(field, "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
		}
		return nil
	}
}
