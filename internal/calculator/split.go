package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/groupsplit/internal/models"
)

// Places is the number of decimal places every monetary result is rounded to.
const Places = 2

// Role is the viewer's relationship to one expense.
type Role int

const (
	RoleUninvolved Role = iota
	RolePayer
	RoleParticipant
)

func (r Role) String() string {
	switch r {
	case RolePayer:
		return "payer"
	case RoleParticipant:
		return "participant"
	default:
		return "uninvolved"
	}
}

// Share is one viewer's view of one expense.
type Share struct {
	Role Role

	// TotalShares is len(SplitAmong)+1: the payer always holds one share on
	// top of whoever is listed, even if also listed.
	TotalShares int

	// ShareAmount is amount / TotalShares rounded to Places.
	ShareAmount decimal.Decimal

	// UserShare is ShareAmount when the viewer is involved, zero otherwise.
	UserShare decimal.Decimal

	// NetAmount is what the payer gets back from everyone else, or what a
	// participant owes the payer. Always non-negative; Role gives direction.
	NetAmount decimal.Decimal

	// Direction is "Paid By" for the payer, "Paid To <payer>" for a
	// participant and empty when uninvolved.
	Direction string
}

// Involved reports whether the viewer pays or owes on the expense.
func (s Share) Involved() bool {
	return s.Role != RoleUninvolved
}

// ShareAmount divides amount into totalShares equal parts, rounding half to
// even at two places. Ties round to the even cent: 0.05/2 is 0.02.
func ShareAmount(amount decimal.Decimal, totalShares int) decimal.Decimal {
	if totalShares <= 0 {
		return decimal.Zero
	}
	return amount.Div(decimal.NewFromInt(int64(totalShares))).RoundBank(Places)
}

// CalculateShare computes the viewer's share, role and net position on expense.
// It is pure: no storage, no clock, no validation.
func CalculateShare(expense *models.Expense, viewerID string) Share {
	total := len(expense.SplitAmong) + 1
	share := ShareAmount(expense.Amount, total)

	result := Share{
		TotalShares: total,
		ShareAmount: share,
		UserShare:   decimal.Zero,
		NetAmount:   decimal.Zero,
	}

	switch {
	case viewerID != "" && viewerID == expense.PaidBy.ID:
		result.Role = RolePayer
		result.UserShare = share
		result.NetAmount = share.Mul(decimal.NewFromInt(int64(total - 1))).RoundBank(Places)
		result.Direction = "Paid By"
	case viewerID != "" && expense.IsSplitWith(viewerID):
		result.Role = RoleParticipant
		result.UserShare = share
		result.NetAmount = share
		result.Direction = "Paid To " + expense.PaidBy.Username
	}

	return result
}

// MemberShare pairs a user with their share of an expense.
type MemberShare struct {
	User models.UserRef
	Share
}

// CalculateShares returns the share of the payer followed by every listed
// participant, in recorded order. A payer who is also listed appears once.
func CalculateShares(expense *models.Expense) []MemberShare {
	shares := make([]MemberShare, 0, len(expense.SplitAmong)+1)
	shares = append(shares, MemberShare{User: expense.PaidBy, Share: CalculateShare(expense, expense.PaidBy.ID)})
	for _, u := range expense.SplitAmong {
		if u.ID == expense.PaidBy.ID {
			continue
		}
		shares = append(shares, MemberShare{User: u, Share: CalculateShare(expense, u.ID)})
	}
	return shares
}
