package calculator

import (
	"testing"

	"github.com/mmynk/groupsplit/internal/models"
)

func TestProjectKeepsOrder(t *testing.T) {
	first := expense("90", alice, bob, carol)
	second := expense("40", bob, alice)
	second.ID = "e2"
	third := expense("12", carol, bob)
	third.ID = "e3"

	projected := Project([]*models.Expense{first, second, third}, alice.ID)
	if len(projected) != 3 {
		t.Fatalf("got %d projections, want 3", len(projected))
	}
	wantRoles := []Role{RolePayer, RoleParticipant, RoleUninvolved}
	for i, p := range projected {
		if p.Expense.ID != []string{"e1", "e2", "e3"}[i] {
			t.Errorf("projection %d is %s", i, p.Expense.ID)
		}
		if p.Share.Role != wantRoles[i] {
			t.Errorf("projection %d role = %v, want %v", i, p.Share.Role, wantRoles[i])
		}
	}
}

func TestSummarize(t *testing.T) {
	expenses := []*models.Expense{
		expense("90", alice, bob, carol), // alice receives 60
		expense("40", bob, alice),        // alice owes 20
		expense("10", carol, alice, bob), // alice owes 3.33
		expense("12", carol, bob),        // not alice's
	}

	summary := Summarize(Project(expenses, alice.ID))
	if !summary.Receivable.Equal(dec("60")) {
		t.Errorf("Receivable = %s, want 60", summary.Receivable)
	}
	if !summary.Payable.Equal(dec("23.33")) {
		t.Errorf("Payable = %s, want 23.33", summary.Payable)
	}
	if !summary.Net.Equal(dec("36.67")) {
		t.Errorf("Net = %s, want 36.67", summary.Net)
	}
	if summary.ExpenseCount != 4 || summary.PaidCount != 1 || summary.ParticipantCount != 2 {
		t.Errorf("counts = %d/%d/%d, want 4/1/2", summary.ExpenseCount, summary.PaidCount, summary.ParticipantCount)
	}
}

func TestSummarize_PerExpenseRounding(t *testing.T) {
	// Three 10.00 expenses over three shares each: the per-expense share is
	// 3.33, so the total owed is 9.99 rather than 10.00.
	var expenses []*models.Expense
	for i := 0; i < 3; i++ {
		expenses = append(expenses, expense("10", carol, alice, bob))
	}
	summary := Summarize(Project(expenses, alice.ID))
	if !summary.Payable.Equal(dec("9.99")) {
		t.Errorf("Payable = %s, want 9.99", summary.Payable)
	}
}

func TestSummarize_Empty(t *testing.T) {
	summary := Summarize(nil)
	if !summary.Net.IsZero() || summary.ExpenseCount != 0 {
		t.Errorf("empty summary = %+v", summary)
	}
}
