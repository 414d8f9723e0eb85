package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/groupsplit/internal/models"
	"github.com/mmynk/groupsplit/internal/storage"
)

type expenseRow struct {
	ID             string          `db:"id"`
	GroupID        string          `db:"group_id"`
	GroupName      string          `db:"group_name"`
	Description    string          `db:"description"`
	Amount         decimal.Decimal `db:"amount"`
	PaidBy         string          `db:"paid_by"`
	PaidByUsername string          `db:"paid_by_username"`
	CreatedBy      string          `db:"created_by"`
	CreatedAt      int64           `db:"created_at"`
}

type splitRow struct {
	ExpenseID string `db:"expense_id"`
	UserID    string `db:"user_id"`
	Username  string `db:"username"`
}

func (r *expenseRow) toModel() *models.Expense {
	return &models.Expense{
		ID:          r.ID,
		GroupID:     r.GroupID,
		GroupName:   r.GroupName,
		Description: r.Description,
		Amount:      r.Amount,
		PaidBy:      models.UserRef{ID: r.PaidBy, Username: r.PaidByUsername},
		SplitAmong:  []models.UserRef{},
		CreatedBy:   r.CreatedBy,
		CreatedAt:   time.Unix(0, r.CreatedAt).UTC(),
	}
}

const expenseSelect = `SELECT e.id, e.group_id, g.name AS group_name, e.description, e.amount,
	e.paid_by, u.username AS paid_by_username, e.created_by, e.created_at
	FROM expenses e
	JOIN groups g ON g.id = e.group_id
	JOIN users u ON u.id = e.paid_by`

const expenseOrder = ` ORDER BY e.created_at, e.id`

// CreateExpense inserts an expense and its split rows in one transaction.
func (s *Store) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}

	return s.withTx(ctx, func(tx *Store) error {
		_, err := tx.exec(ctx,
			`INSERT INTO expenses (id, group_id, description, amount, paid_by, created_by, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			expense.ID, expense.GroupID, expense.Description, expense.Amount.StringFixed(2),
			expense.PaidBy.ID, expense.CreatedBy, expense.CreatedAt.UnixNano(),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("expense %s: %w", expense.ID, storage.ErrConflict)
			}
			return fmt.Errorf("failed to insert expense: %w", err)
		}

		for i, u := range expense.SplitAmong {
			_, err := tx.exec(ctx,
				"INSERT INTO expense_splits (expense_id, user_id, seq) VALUES (?, ?, ?)",
				expense.ID, u.ID, i,
			)
			if err != nil {
				return fmt.Errorf("failed to insert expense split: %w", err)
			}
		}
		return nil
	})
}

// GetExpense retrieves an expense by ID with its split list.
func (s *Store) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	var row expenseRow
	if err := s.get(ctx, &row, expenseSelect+" WHERE e.id = ?", expenseID); err != nil {
		return nil, notFound(err, "expense", expenseID)
	}

	expenses := []*models.Expense{row.toModel()}
	if err := s.attachSplits(ctx, expenses); err != nil {
		return nil, err
	}
	return expenses[0], nil
}

// ListExpensesByGroups retrieves the expenses of the given groups.
func (s *Store) ListExpensesByGroups(ctx context.Context, groupIDs []string) ([]*models.Expense, error) {
	if len(groupIDs) == 0 {
		return []*models.Expense{}, nil
	}

	var rows []expenseRow
	if err := s.selectIn(ctx, &rows, expenseSelect+" WHERE e.group_id IN (?)"+expenseOrder, groupIDs); err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	return s.expensesFromRows(ctx, rows)
}

// ListExpenses retrieves every expense.
func (s *Store) ListExpenses(ctx context.Context) ([]*models.Expense, error) {
	var rows []expenseRow
	if err := s.selectAll(ctx, &rows, expenseSelect+expenseOrder); err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	return s.expensesFromRows(ctx, rows)
}

// DeleteExpense removes an expense and its split rows.
func (s *Store) DeleteExpense(ctx context.Context, expenseID string) error {
	return s.withTx(ctx, func(tx *Store) error {
		if _, err := tx.exec(ctx, "DELETE FROM expense_splits WHERE expense_id = ?", expenseID); err != nil {
			return fmt.Errorf("failed to delete expense splits: %w", err)
		}
		res, err := tx.exec(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
		if err != nil {
			return fmt.Errorf("failed to delete expense: %w", err)
		}
		return requireAffected(res, "expense", expenseID)
	})
}

func (s *Store) expensesFromRows(ctx context.Context, rows []expenseRow) ([]*models.Expense, error) {
	expenses := make([]*models.Expense, len(rows))
	for i := range rows {
		expenses[i] = rows[i].toModel()
	}
	if err := s.attachSplits(ctx, expenses); err != nil {
		return nil, err
	}
	return expenses, nil
}

// attachSplits loads split lists for all expenses with one query.
func (s *Store) attachSplits(ctx context.Context, expenses []*models.Expense) error {
	if len(expenses) == 0 {
		return nil
	}

	ids := make([]string, len(expenses))
	byID := make(map[string]*models.Expense, len(expenses))
	for i, e := range expenses {
		ids[i] = e.ID
		byID[e.ID] = e
	}

	var rows []splitRow
	err := s.selectIn(ctx, &rows,
		`SELECT s.expense_id, s.user_id, u.username
		 FROM expense_splits s JOIN users u ON u.id = s.user_id
		 WHERE s.expense_id IN (?) ORDER BY s.expense_id, s.seq`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("failed to load expense splits: %w", err)
	}
	for _, r := range rows {
		e := byID[r.ExpenseID]
		e.SplitAmong = append(e.SplitAmong, models.UserRef{ID: r.UserID, Username: r.Username})
	}
	return nil
}
