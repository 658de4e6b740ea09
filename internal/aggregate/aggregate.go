// Package aggregate derives spending summaries from a ledger snapshot.
//
// Every function here is a pure function of its inputs. Derived figures are
// recomputed from the full snapshot each time rather than patched in place.
package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"smartbudget/internal/core"
)

// RecomputeMonthlySpend sums expenses per category for the calendar month
// and year of now. Comparison uses now's location.
func RecomputeMonthlySpend(expenses []core.Expense, now time.Time) core.CategorySpend {
	year, month := now.Year(), now.Month()
	loc := now.Location()
	out := core.CategorySpend{}
	for _, e := range expenses {
		at := e.OccurredAt.In(loc)
		if at.Year() != year || at.Month() != month {
			continue
		}
		key := core.CategoryKey(e.Category)
		out[key] = out[key].Add(e.Amount)
	}
	return out
}

// SpendingByCategory sums the whole expense history per category.
func SpendingByCategory(expenses []core.Expense) core.CategorySpend {
	out := core.CategorySpend{}
	for _, e := range expenses {
		key := core.CategoryKey(e.Category)
		out[key] = out[key].Add(e.Amount)
	}
	return out
}

func TotalExpenses(expenses []core.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

func TotalDebt(debts []core.Debt) decimal.Decimal {
	total := decimal.Zero
	for _, d := range debts {
		total = total.Add(d.TotalAmount)
	}
	return total
}

func TotalGoals(goals []core.Goal) decimal.Decimal {
	total := decimal.Zero
	for _, g := range goals {
		total = total.Add(g.TargetAmount)
	}
	return total
}

// Sorted orders a spend map by amount descending, then by name.
func Sorted(spend core.CategorySpend) []core.CategoryAmount {
	list := make([]core.CategoryAmount, 0, len(spend))
	for name, amount := range spend {
		list = append(list, core.CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(list, func(i, j int) bool {
		if c := list[i].Amount.Cmp(list[j].Amount); c != 0 {
			return c > 0
		}
		return list[i].Name < list[j].Name
	})
	return list
}

// Overview builds the month overview for now's calendar month.
func Overview(expenses []core.Expense, now time.Time) core.MonthOverview {
	spend := RecomputeMonthlySpend(expenses, now)
	return core.MonthOverview{
		Year:       now.Year(),
		Month:      int(now.Month()),
		Total:      spend.Total(),
		ByCategory: Sorted(spend),
	}
}
