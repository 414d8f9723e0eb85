// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/groupsplit/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write would break a uniqueness constraint.
	ErrConflict = errors.New("record already exists")
)

// UserStore persists user accounts.
type UserStore interface {
	// CreateUser persists a new user. The store assigns ID and CreatedAt when unset.
	CreateUser(ctx context.Context, user *models.User) error

	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// GetUsersByUsernames returns the users that exist, keyed by username.
	// Unknown usernames are omitted.
	GetUsersByUsernames(ctx context.Context, usernames []string) (map[string]*models.User, error)

	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

// GroupStore persists groups and their member sets.
type GroupStore interface {
	// CreateGroup persists a group together with its initial members.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup returns the group with its current members.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	ListGroups(ctx context.Context) ([]*models.Group, error)

	// UpdateGroup changes name and description only.
	UpdateGroup(ctx context.Context, group *models.Group) error

	// DeleteGroup removes the group, its memberships and its expenses.
	DeleteGroup(ctx context.Context, groupID string) error

	// AddGroupMember is a no-op when the user is already a member.
	AddGroupMember(ctx context.Context, groupID, userID string) error

	// RemoveGroupMember is a no-op when the user is not a member.
	RemoveGroupMember(ctx context.Context, groupID, userID string) error

	IsGroupMember(ctx context.Context, groupID, userID string) (bool, error)

	// ListGroupIDsForUser returns the IDs of every group userID belongs to.
	ListGroupIDsForUser(ctx context.Context, userID string) ([]string, error)
}

// ExpenseStore persists expenses.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, expense *models.Expense) error
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// ListExpensesByGroups returns every expense of the given groups ordered by
	// creation time, then ID. An empty groupIDs yields an empty slice.
	ListExpensesByGroups(ctx context.Context, groupIDs []string) ([]*models.Expense, error)

	// ListExpenses returns every expense in the same order.
	ListExpenses(ctx context.Context) ([]*models.Expense, error)

	DeleteExpense(ctx context.Context, expenseID string) error
}

// Store defines the full storage surface.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	UserStore
	GroupStore
	ExpenseStore

	// WithinTx runs fn against a Store bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Calling WithinTx on a transaction-bound Store reuses the transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Close releases any resources held by the store.
	Close() error
}
