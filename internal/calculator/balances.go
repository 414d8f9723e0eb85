package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/groupsplit/internal/models"
)

// ProjectedExpense is an expense reshaped for one viewer.
type ProjectedExpense struct {
	Expense *models.Expense
	Share   Share
}

// Summary is a viewer's aggregate position across projected expenses.
type Summary struct {
	// Receivable is the sum of NetAmount over expenses the viewer paid.
	Receivable decimal.Decimal
	// Payable is the sum of NetAmount over expenses the viewer owes on.
	Payable decimal.Decimal
	// Net is Receivable - Payable. Positive means the viewer is owed money.
	Net decimal.Decimal

	ExpenseCount     int
	PaidCount        int
	ParticipantCount int
}

// Project applies CalculateShare to every expense for viewerID, keeping the
// input order. Nothing is summed here.
func Project(expenses []*models.Expense, viewerID string) []ProjectedExpense {
	projected := make([]ProjectedExpense, len(expenses))
	for i, e := range expenses {
		projected[i] = ProjectedExpense{Expense: e, Share: CalculateShare(e, viewerID)}
	}
	return projected
}

// Summarize folds projected expenses into receivable and payable totals.
// Each NetAmount is already rounded per expense, so the totals are plain sums
// and may drift from a single aggregate rounding by a cent per expense.
func Summarize(projected []ProjectedExpense) Summary {
	summary := Summary{
		Receivable:   decimal.Zero,
		Payable:      decimal.Zero,
		ExpenseCount: len(projected),
	}

	for _, p := range projected {
		switch p.Share.Role {
		case RolePayer:
			summary.Receivable = summary.Receivable.Add(p.Share.NetAmount)
			summary.PaidCount++
		case RoleParticipant:
			summary.Payable = summary.Payable.Add(p.Share.NetAmount)
			summary.ParticipantCount++
		}
	}

	summary.Net = summary.Receivable.Sub(summary.Payable)
	return summary
}
