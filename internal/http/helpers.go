package http

import (
	"net/http"
	"strings"
	"time"

	"smartbudget/internal/aggregate"
	"smartbudget/internal/core"
)

// HeaderUserID carries the authenticated user's identity, set by the
// fronting auth proxy.
const HeaderUserID = "X-User-ID"

func userIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderUserID))
}

// Amounts are rendered as two-decimal strings and dates as MM/DD/YYYY;
// a missing date is null.

type expenseJSON struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category,omitempty"`
	OccurredAt  string `json:"occurred_at"`
}

type debtJSON struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	TotalAmount string  `json:"total_amount"`
	DueDate     *string `json:"due_date"`
}

type goalJSON struct {
	ID           string  `json:"id"`
	Description  string  `json:"description"`
	TargetAmount string  `json:"target_amount"`
	TargetDate   *string `json:"target_date"`
}

type turnJSON struct {
	Query      string `json:"query"`
	Response   string `json:"response"`
	OccurredAt string `json:"occurred_at"`
}

type categoryJSON struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

type ledgerJSON struct {
	Expenses []expenseJSON `json:"expenses"`
	Debts    []debtJSON    `json:"debts"`
	Goals    []goalJSON    `json:"goals"`
}

type summaryJSON struct {
	Year              int            `json:"year"`
	Month             int            `json:"month"`
	Currency          string         `json:"currency"`
	MonthTotal        string         `json:"month_total"`
	MonthlySpend      []categoryJSON `json:"monthly_spend"`
	TotalExpenses     string         `json:"total_expenses"`
	TotalDebt         string         `json:"total_debt"`
	TotalGoals        string         `json:"total_goals"`
	PendingSuggestion *string        `json:"pending_suggestion"`
}

type adviceJSON struct {
	Response string `json:"response"`
}

type queuedJSON struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

func optionalDateJSON(d core.Date) *string {
	if d.IsEmpty() {
		return nil
	}
	s := core.FormatDate(d, "")
	return &s
}

func toExpenseJSON(e core.Expense) expenseJSON {
	return expenseJSON{
		ID:          e.ID,
		Description: e.Description,
		Amount:      core.FormatAmount(e.Amount),
		Category:    e.Category,
		OccurredAt:  e.OccurredAt.UTC().Format(time.RFC3339),
	}
}

func toDebtJSON(d core.Debt) debtJSON {
	return debtJSON{
		ID:          d.ID,
		Description: d.Description,
		TotalAmount: core.FormatAmount(d.TotalAmount),
		DueDate:     optionalDateJSON(d.DueDate),
	}
}

func toGoalJSON(g core.Goal) goalJSON {
	return goalJSON{
		ID:           g.ID,
		Description:  g.Description,
		TargetAmount: core.FormatAmount(g.TargetAmount),
		TargetDate:   optionalDateJSON(g.TargetDate),
	}
}

func toLedgerJSON(l core.Ledger) ledgerJSON {
	out := ledgerJSON{
		Expenses: make([]expenseJSON, 0, len(l.Expenses)),
		Debts:    make([]debtJSON, 0, len(l.Debts)),
		Goals:    make([]goalJSON, 0, len(l.Goals)),
	}
	for _, e := range l.Expenses {
		out.Expenses = append(out.Expenses, toExpenseJSON(e))
	}
	for _, d := range l.Debts {
		out.Debts = append(out.Debts, toDebtJSON(d))
	}
	for _, g := range l.Goals {
		out.Goals = append(out.Goals, toGoalJSON(g))
	}
	return out
}

func toTurnsJSON(turns []core.ConversationTurn) []turnJSON {
	out := make([]turnJSON, 0, len(turns))
	for _, t := range turns {
		out = append(out, turnJSON{
			Query:      t.Query,
			Response:   t.Response,
			OccurredAt: t.OccurredAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

func toCategoriesJSON(spend core.CategorySpend) []categoryJSON {
	sorted := aggregate.Sorted(spend)
	out := make([]categoryJSON, 0, len(sorted))
	for _, c := range sorted {
		out = append(out, categoryJSON{Name: c.Name, Amount: core.FormatAmount(c.Amount)})
	}
	return out
}
