package models

import "time"

// User represents a registered user account.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Username is the unique handle other users address this user by.
	Username string

	// Email is the user's email address (unique). Used for login.
	Email string

	FirstName string
	LastName  string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	CreatedAt time.Time

	// LastLogin is nil until the first successful login.
	LastLogin *time.Time
}

// Ref returns the weak reference form of the user.
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username}
}

// UserRef identifies a user without owning it.
type UserRef struct {
	ID       string
	Username string
}
