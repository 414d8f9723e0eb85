package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is an amount fronted by one group member and shared with others.
// It is validated once, when recorded, and never changes afterwards.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the owning group.
	GroupID string

	// GroupName is filled in by storage reads for display.
	GroupName string

	Description string

	// Amount is strictly positive with at most two decimal places.
	Amount decimal.Decimal

	// PaidBy is the member who fronted the money.
	PaidBy UserRef

	// SplitAmong lists the members sharing the expense, in recorded order.
	// The payer counts as an extra share-holder whether or not listed here.
	SplitAmong []UserRef

	// CreatedBy is the ID of the user who recorded the expense.
	CreatedBy string

	CreatedAt time.Time
}

// IsSplitWith reports whether userID appears in SplitAmong.
func (e *Expense) IsSplitWith(userID string) bool {
	for _, u := range e.SplitAmong {
		if u.ID == userID {
			return true
		}
	}
	return false
}
