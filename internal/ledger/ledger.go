// Package ledger records expenses against groups and projects them for a
// viewing user. Every write validates against the group's membership at the
// moment of writing; nothing recorded is re-validated later.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/groupsplit/internal/models"
	"github.com/mmynk/groupsplit/internal/storage"
	"github.com/mmynk/groupsplit/internal/validation"
)

// ErrForbidden is returned when the acting user may not touch an expense.
var ErrForbidden = errors.New("acting user is not a member of the expense's group")

// ExpenseInput is an expense as submitted, before validation.
type ExpenseInput struct {
	GroupID     string
	Description string
	// Amount is the decimal string as entered, e.g. "12.50".
	Amount string
	// PaidBy and SplitAmong are usernames.
	PaidBy     string
	SplitAmong []string
}

// Ledger validates and stores expenses.
type Ledger struct {
	store storage.Store
	clock *Clock
}

// New creates a Ledger over store.
func New(store storage.Store, clock *Clock) *Ledger {
	return &Ledger{store: store, clock: clock}
}

// checkFields runs the per-field format checks that need no storage.
func (in ExpenseInput) checkFields() (decimal.Decimal, error) {
	err := validation.First(
		validation.Required("description", in.Description),
		validation.MaxLength("description", in.Description, validation.MaxTextLength),
		validation.Required("amount", in.Amount),
	)
	if err != nil {
		return decimal.Zero, err
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(in.Amount))
	if err != nil {
		return decimal.Zero, validation.New("amount", "A valid number is required.")
	}

	err = validation.First(
		validation.AmountFormat("amount", amount),
		validation.Required("paid_by", in.PaidBy),
		validation.NotEmpty("split_among", len(in.SplitAmong)),
	)
	return amount, err
}

// RecordExpense validates in against the group's current membership and
// stores it. actorID becomes the expense's creator.
//
// Format checks run first. Then, in order: the amount must be positive, the
// payer must be a member, and every split entry must be a member. The first
// failure is returned as a *validation.Error. The membership read and the
// insert share one transaction.
func (l *Ledger) RecordExpense(ctx context.Context, actorID string, in ExpenseInput) (*models.Expense, error) {
	amount, err := in.checkFields()
	if err != nil {
		return nil, err
	}

	var expense *models.Expense
	err = l.store.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
		group, err := groupFor(ctx, tx, in.GroupID)
		if err != nil {
			return err
		}

		paidBy, err := resolveUsers(ctx, tx, "paid_by", []string{in.PaidBy})
		if err != nil {
			return err
		}
		splitAmong, err := resolveUsers(ctx, tx, "split_among", dedupe(in.SplitAmong))
		if err != nil {
			return err
		}

		err = validation.First(
			validation.PositiveAmount("amount", amount),
			validation.MemberOf("paid_by", paidBy[0], group),
			validation.AllMembersOf("split_among", splitAmong, group),
		)
		if err != nil {
			return err
		}

		expense = &models.Expense{
			GroupID:     group.ID,
			GroupName:   group.Name,
			Description: in.Description,
			Amount:      amount.Round(validation.AmountPlaces),
			PaidBy:      paidBy[0],
			SplitAmong:  splitAmong,
			CreatedBy:   actorID,
			CreatedAt:   l.clock.Now(),
		}
		return tx.CreateExpense(ctx, expense)
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("Expense recorded",
		"expense_id", expense.ID,
		"group_id", expense.GroupID,
		"amount", expense.Amount.StringFixed(2),
		"shares", len(expense.SplitAmong)+1,
	)
	return expense, nil
}

// ExpensesForGroups returns every expense of the given groups ordered by
// creation time, then ID. No groups means no expenses.
func (l *Ledger) ExpensesForGroups(ctx context.Context, groupIDs []string) ([]*models.Expense, error) {
	if len(groupIDs) == 0 {
		return []*models.Expense{}, nil
	}
	expenses, err := l.store.ListExpensesByGroups(ctx, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	return expenses, nil
}

// GetExpense returns one expense.
func (l *Ledger) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	return l.store.GetExpense(ctx, expenseID)
}

// ListExpenses returns the expenses of one group, or of every group when
// groupID is empty.
func (l *Ledger) ListExpenses(ctx context.Context, groupID string) ([]*models.Expense, error) {
	if groupID == "" {
		return l.store.ListExpenses(ctx)
	}
	if _, err := l.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return l.ExpensesForGroups(ctx, []string{groupID})
}

// DeleteExpense removes an expense. The actor must currently belong to the
// expense's group. The deleted expense is returned.
func (l *Ledger) DeleteExpense(ctx context.Context, actorID, expenseID string) (*models.Expense, error) {
	var expense *models.Expense
	err := l.store.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
		var err error
		expense, err = tx.GetExpense(ctx, expenseID)
		if err != nil {
			return err
		}

		ok, err := tx.IsGroupMember(ctx, expense.GroupID, actorID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrForbidden
		}
		return tx.DeleteExpense(ctx, expenseID)
	})
	if err != nil {
		return nil, err
	}
	return expense, nil
}
