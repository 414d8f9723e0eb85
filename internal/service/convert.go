package service

import (
	"time"

	"github.com/mmynk/groupsplit/internal/calculator"
	"github.com/mmynk/groupsplit/internal/models"
	"github.com/mmynk/groupsplit/pkg/api"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func usernames(refs []models.UserRef) []string {
	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = r.Username
	}
	return names
}

func toAPIUser(u *models.User) *api.User {
	out := &api.User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		CreatedAt: formatTime(u.CreatedAt),
	}
	if u.LastLogin != nil {
		out.LastLogin = formatTime(*u.LastLogin)
	}
	return out
}

func toAPIGroup(g *models.Group) *api.Group {
	return &api.Group{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Members:     usernames(g.Members),
		CreatedAt:   formatTime(g.CreatedAt),
	}
}

func toAPIExpense(e *models.Expense) *api.Expense {
	shares := calculator.CalculateShares(e)
	out := &api.Expense{
		ID:          e.ID,
		GroupID:     e.GroupID,
		GroupName:   e.GroupName,
		Description: e.Description,
		Amount:      e.Amount.StringFixed(calculator.Places),
		PaidBy:      e.PaidBy.Username,
		SplitAmong:  usernames(e.SplitAmong),
		CreatedBy:   e.CreatedBy,
		CreatedAt:   formatTime(e.CreatedAt),
		Shares:      make([]*api.Share, len(shares)),
	}
	for i, s := range shares {
		out.Shares[i] = &api.Share{
			Username: s.User.Username,
			Role:     s.Role.String(),
			Share:    s.UserShare.StringFixed(calculator.Places),
			Net:      s.NetAmount.StringFixed(calculator.Places),
		}
	}
	return out
}

func toUserExpense(p calculator.ProjectedExpense) *api.UserExpense {
	e := p.Expense
	out := &api.UserExpense{
		ID:                   e.ID,
		GroupID:              e.GroupID,
		Group:                e.GroupName,
		Description:          e.Description,
		Amount:               e.Amount.StringFixed(calculator.Places),
		PaidBy:               e.PaidBy.Username,
		SplitAmong:           usernames(e.SplitAmong),
		UserShare:            p.Share.UserShare.StringFixed(calculator.Places),
		AmountToReceiveOrPay: p.Share.NetAmount.StringFixed(calculator.Places),
		Role:                 p.Share.Role.String(),
	}
	if p.Share.Involved() {
		direction := p.Share.Direction
		out.PaidToOrBy = &direction
	}
	return out
}
