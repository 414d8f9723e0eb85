package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/groupsplit/internal/calculator"
	"github.com/mmynk/groupsplit/internal/events"
	"github.com/mmynk/groupsplit/internal/ledger"
	"github.com/mmynk/groupsplit/internal/metrics"
	"github.com/mmynk/groupsplit/pkg/api"
)

// ExpenseService implements the Connect ExpenseService.
type ExpenseService struct {
	ledger     *ledger.Ledger
	aggregator *ledger.Aggregator
	publisher  events.Publisher
	metrics    *metrics.Metrics
}

var _ api.ExpenseServiceHandler = (*ExpenseService)(nil)

// NewExpenseService creates a new ExpenseService.
func NewExpenseService(l *ledger.Ledger, a *ledger.Aggregator, publisher events.Publisher, m *metrics.Metrics) *ExpenseService {
	return &ExpenseService{ledger: l, aggregator: a, publisher: publisher, metrics: m}
}

// CreateExpense validates and records an expense on behalf of the caller.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateExpense request received",
		"group_id", req.Msg.GroupID,
		"amount", req.Msg.Amount.String(),
		"paid_by", req.Msg.PaidBy,
		"split_count", len(req.Msg.SplitAmong),
	)

	expense, err := s.ledger.RecordExpense(ctx, p.UserID, ledger.ExpenseInput{
		GroupID:     req.Msg.GroupID,
		Description: req.Msg.Description,
		Amount:      req.Msg.Amount.String(),
		PaidBy:      req.Msg.PaidBy,
		SplitAmong:  req.Msg.SplitAmong,
	})
	if err != nil {
		slog.Warn("CreateExpense rejected", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(s.metrics, err)
	}

	s.metrics.ExpenseRecorded()
	publish(ctx, s.publisher, events.NewExpenseEvent(events.ExpenseRecorded, p.UserID, expense))

	slog.Info("Expense created", "expense_id", expense.ID, "group_id", expense.GroupID)
	return connect.NewResponse(&api.CreateExpenseResponse{Expense: toAPIExpense(expense)}), nil
}

// GetExpense retrieves one expense with its per-member shares.
func (s *ExpenseService) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	if _, err := caller(ctx); err != nil {
		return nil, err
	}

	expense, err := s.ledger.GetExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, toConnectError(s.metrics, err)
	}
	return connect.NewResponse(&api.GetExpenseResponse{Expense: toAPIExpense(expense)}), nil
}

// ListExpenses lists a group's expenses, or every expense without a group.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	if _, err := caller(ctx); err != nil {
		return nil, err
	}

	expenses, err := s.ledger.ListExpenses(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(s.metrics, err)
	}

	out := make([]*api.Expense, len(expenses))
	for i, e := range expenses {
		out[i] = toAPIExpense(e)
	}
	return connect.NewResponse(&api.ListExpensesResponse{Expenses: out}), nil
}

// DeleteExpense removes an expense. Only current members of its group may.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	expense, err := s.ledger.DeleteExpense(ctx, p.UserID, req.Msg.ExpenseID)
	if err != nil {
		slog.Warn("DeleteExpense failed", "expense_id", req.Msg.ExpenseID, "user_id", p.UserID, "error", err)
		return nil, toConnectError(s.metrics, err)
	}

	publish(ctx, s.publisher, events.NewExpenseEvent(events.ExpenseDeleted, p.UserID, expense))
	slog.Info("Expense deleted", "expense_id", expense.ID)
	return connect.NewResponse(&api.DeleteExpenseResponse{}), nil
}

// ListUserExpenses returns every expense in the caller's groups, seen from
// the caller's side.
func (s *ExpenseService) ListUserExpenses(ctx context.Context, req *connect.Request[api.ListUserExpensesRequest]) (*connect.Response[api.ListUserExpensesResponse], error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	projected, err := s.aggregator.ViewerExpenses(ctx, p.UserID)
	if err != nil {
		return nil, toConnectError(s.metrics, err)
	}

	out := make([]*api.UserExpense, len(projected))
	for i, pe := range projected {
		out[i] = toUserExpense(pe)
	}

	slog.Debug("ListUserExpenses successful", "user_id", p.UserID, "count", len(out))
	return connect.NewResponse(&api.ListUserExpensesResponse{Expenses: out}), nil
}

// GetUserBalance returns the caller's receivable and payable totals.
func (s *ExpenseService) GetUserBalance(ctx context.Context, req *connect.Request[api.GetUserBalanceRequest]) (*connect.Response[api.GetUserBalanceResponse], error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := s.aggregator.ViewerSummary(ctx, p.UserID)
	if err != nil {
		return nil, toConnectError(s.metrics, err)
	}

	return connect.NewResponse(&api.GetUserBalanceResponse{
		Receivable:       summary.Receivable.StringFixed(calculator.Places),
		Payable:          summary.Payable.StringFixed(calculator.Places),
		Net:              summary.Net.StringFixed(calculator.Places),
		ExpenseCount:     int32(summary.ExpenseCount),
		PaidCount:        int32(summary.PaidCount),
		ParticipantCount: int32(summary.ParticipantCount),
	}), nil
}
