package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/groupsplit/internal/calculator"
)

// ErrNoGroups is returned when the viewer belongs to no group at all. A
// viewer whose groups simply have no expenses gets an empty result instead.
var ErrNoGroups = errors.New("user is not part of any groups")

// Aggregator projects the ledger for one viewing user.
type Aggregator struct {
	registry *Registry
	ledger   *Ledger
}

// NewAggregator creates an Aggregator.
func NewAggregator(registry *Registry, ledger *Ledger) *Aggregator {
	return &Aggregator{registry: registry, ledger: ledger}
}

// ViewerExpenses returns every expense across the viewer's groups, projected
// for the viewer, in ledger order.
func (a *Aggregator) ViewerExpenses(ctx context.Context, viewerID string) ([]calculator.ProjectedExpense, error) {
	groupIDs, err := a.registry.GroupsFor(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list viewer groups: %w", err)
	}
	if len(groupIDs) == 0 {
		return nil, ErrNoGroups
	}

	expenses, err := a.ledger.ExpensesForGroups(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	return calculator.Project(expenses, viewerID), nil
}

// ViewerSummary folds ViewerExpenses into receivable and payable totals.
func (a *Aggregator) ViewerSummary(ctx context.Context, viewerID string) (calculator.Summary, error) {
	projected, err := a.ViewerExpenses(ctx, viewerID)
	if err != nil {
		return calculator.Summary{}, err
	}
	return calculator.Summarize(projected), nil
}
