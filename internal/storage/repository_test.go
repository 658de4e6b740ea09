package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"smartbudget/internal/core"
	"smartbudget/internal/store"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "smartbudget.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteExpenses(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	at := time.Date(2025, 3, 18, 10, 15, 0, 123, time.UTC)

	ref, err := repo.AppendExpense(ctx, "u1", core.Expense{
		Description: "Groceries",
		Amount:      decimal.RequireFromString("400.10"),
		Category:    "Food",
		OccurredAt:  at,
	})
	if err != nil || ref != "1" {
		t.Fatalf("AppendExpense: ref=%q err=%v", ref, err)
	}
	if _, err := repo.AppendExpense(ctx, "u1", core.Expense{Description: "Misc", Amount: decimal.NewFromInt(5), OccurredAt: at}); err != nil {
		t.Fatalf("AppendExpense: %v", err)
	}
	if _, err := repo.AppendExpense(ctx, "u2", core.Expense{Description: "Other user", Amount: decimal.NewFromInt(1), OccurredAt: at}); err != nil {
		t.Fatalf("AppendExpense: %v", err)
	}

	got, err := repo.ListExpenses(ctx, "u1")
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 expenses, got %d", len(got))
	}
	first := got[0]
	if first.ID != "1" || first.Description != "Groceries" || first.Category != "Food" {
		t.Fatalf("unexpected expense %+v", first)
	}
	if !first.Amount.Equal(decimal.RequireFromString("400.1")) {
		t.Fatalf("amount = %s", first.Amount)
	}
	if !first.OccurredAt.Equal(at) {
		t.Fatalf("occurredAt = %v, want %v", first.OccurredAt, at)
	}
	if got[1].Category != "" {
		t.Fatalf("blank category should round trip as blank, got %q", got[1].Category)
	}
}

func TestSQLiteDebtsAndGoalsOptionalDates(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, _ = repo.AppendDebt(ctx, "u", core.Debt{Description: "Credit Card", TotalAmount: decimal.NewFromInt(200)})
	_, _ = repo.AppendDebt(ctx, "u", core.Debt{Description: "Car Loan", TotalAmount: decimal.NewFromInt(900), DueDate: core.NewDate(2025, 4, 1)})
	_, _ = repo.AppendGoal(ctx, "u", core.Goal{Description: "Fund", TargetAmount: decimal.NewFromInt(1000), TargetDate: core.NewDate(2025, 12, 31)})
	_, _ = repo.AppendGoal(ctx, "u", core.Goal{Description: "Holiday", TargetAmount: decimal.NewFromInt(300)})

	debts, err := repo.ListDebts(ctx, "u")
	if err != nil || len(debts) != 2 {
		t.Fatalf("ListDebts: %v %v", debts, err)
	}
	if !debts[0].DueDate.IsEmpty() {
		t.Fatalf("expected no due date, got %v", debts[0].DueDate)
	}
	if core.FormatDate(debts[1].DueDate, "") != "04/01/2025" {
		t.Fatalf("unexpected due date %v", debts[1].DueDate)
	}

	goals, err := repo.ListGoals(ctx, "u")
	if err != nil || len(goals) != 2 {
		t.Fatalf("ListGoals: %v %v", goals, err)
	}
	if core.FormatDate(goals[0].TargetDate, "") != "12/31/2025" || !goals[1].TargetDate.IsEmpty() {
		t.Fatalf("unexpected goal dates %+v", goals)
	}
}

func TestSQLiteConversationOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now().UTC()
	for _, q := range []string{"first", "second", "third"} {
		if err := repo.AppendTurn(ctx, "u", core.ConversationTurn{Query: q, Response: "ok", OccurredAt: now}); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}
	turns, err := repo.ListConversation(ctx, "u")
	if err != nil {
		t.Fatalf("ListConversation: %v", err)
	}
	if len(turns) != 3 || turns[0].Query != "first" || turns[2].Query != "third" {
		t.Fatalf("unexpected order %+v", turns)
	}
}

func TestSQLiteValidation(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	if _, err := repo.AppendGoal(ctx, "", core.Goal{Description: "x"}); !errors.Is(err, store.ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
	if err := repo.AppendTurn(ctx, "u", core.ConversationTurn{}); !errors.Is(err, core.ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	if err := RunMigrations(path); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second run: %v", err)
	}
	version, dirty, err := SchemaVersion(path)
	if err != nil || dirty || version != 2 {
		t.Fatalf("SchemaVersion = %d dirty=%v err=%v", version, dirty, err)
	}
}
