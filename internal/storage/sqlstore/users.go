package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/groupsplit/internal/models"
	"github.com/mmynk/groupsplit/internal/storage"
)

type userRow struct {
	ID           string        `db:"id"`
	Username     string        `db:"username"`
	Email        string        `db:"email"`
	FirstName    string        `db:"first_name"`
	LastName     string        `db:"last_name"`
	PasswordHash string        `db:"password_hash"`
	CreatedAt    int64         `db:"created_at"`
	LastLogin    sql.NullInt64 `db:"last_login"`
}

func (r *userRow) toModel() *models.User {
	user := &models.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		PasswordHash: r.PasswordHash,
		CreatedAt:    time.Unix(0, r.CreatedAt).UTC(),
	}
	if r.LastLogin.Valid {
		t := time.Unix(0, r.LastLogin.Int64).UTC()
		user.LastLogin = &t
	}
	return user
}

const userColumns = `id, username, email, first_name, last_name, password_hash, created_at, last_login`

// CreateUser inserts a new user into the database.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.exec(ctx,
		`INSERT INTO users (id, username, email, first_name, last_name, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName,
		user.PasswordHash, user.CreatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Username, storage.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by their ID.
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id", id)
}

// GetUserByEmail retrieves a user by their email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

// GetUserByUsername retrieves a user by their username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username", username)
}

// getUser looks a user up by one unique column. column is never user input.
func (s *Store) getUser(ctx context.Context, column, value string) (*models.User, error) {
	var row userRow
	err := s.get(ctx, &row, `SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)
	if err != nil {
		return nil, notFound(err, "user", value)
	}
	return row.toModel(), nil
}

// GetUsersByUsernames retrieves multiple users by username.
// Users that don't exist are omitted from the result.
func (s *Store) GetUsersByUsernames(ctx context.Context, usernames []string) (map[string]*models.User, error) {
	users := make(map[string]*models.User, len(usernames))
	if len(usernames) == 0 {
		return users, nil
	}

	var rows []userRow
	if err := s.selectIn(ctx, &rows, `SELECT `+userColumns+` FROM users WHERE username IN (?)`, usernames); err != nil {
		return nil, fmt.Errorf("failed to get users by usernames: %w", err)
	}
	for i := range rows {
		users[rows[i].Username] = rows[i].toModel()
	}
	return users, nil
}

// UpdateLastLogin records a successful login.
func (s *Store) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	res, err := s.exec(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, at.UnixNano(), userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return requireAffected(res, "user", userID)
}
