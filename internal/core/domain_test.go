package core

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCategoryKey(t *testing.T) {
	cases := map[string]string{
		"":       Uncategorized,
		"   ":    Uncategorized,
		"Food":   "Food",
		" Food ": "Food",
	}
	for in, want := range cases {
		if got := CategoryKey(in); got != want {
			t.Errorf("CategoryKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	good := Expense{Description: "ok", Amount: decimal.NewFromInt(1), OccurredAt: now}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	zero := good
	zero.Amount = decimal.Zero
	if err := zero.Validate(); err != nil {
		t.Fatalf("zero amount should be allowed, got %v", err)
	}

	bads := []Expense{
		{Description: "", Amount: decimal.NewFromInt(1), OccurredAt: now},
		{Description: strings.Repeat("x", 201), Amount: decimal.NewFromInt(1), OccurredAt: now},
		{Description: "a", Amount: decimal.NewFromInt(-1), OccurredAt: now},
		{Description: "a", Amount: decimal.NewFromInt(1)}, // zero time
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDebtAndGoalValidate(t *testing.T) {
	if err := (Debt{Description: "Card", TotalAmount: decimal.NewFromInt(200)}).Validate(); err != nil {
		t.Fatalf("debt without due date should be valid: %v", err)
	}
	if err := (Debt{Description: "Card", TotalAmount: decimal.NewFromInt(-5)}).Validate(); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := (Goal{Description: " ", TargetAmount: decimal.NewFromInt(5)}).Validate(); err != ErrEmptyDescription {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}
}

func TestLedgerCloneIsIndependent(t *testing.T) {
	l := Ledger{Expenses: []Expense{{Description: "a"}}}
	c := l.Clone()
	c.Expenses[0].Description = "b"
	c.Expenses = append(c.Expenses, Expense{Description: "c"})
	if l.Expenses[0].Description != "a" || len(l.Expenses) != 1 {
		t.Fatalf("clone shares storage with original: %+v", l.Expenses)
	}
}
