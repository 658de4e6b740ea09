package core

import "github.com/shopspring/decimal"

// CategorySpend maps a category name (or Uncategorized) to its summed amount.
type CategorySpend map[string]decimal.Decimal

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int
	Month      int // 1-12
	Total      decimal.Decimal
	ByCategory []CategoryAmount
}

// Total sums every category.
func (m CategorySpend) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range m {
		total = total.Add(v)
	}
	return total
}

// Clone copies the mapping.
func (m CategorySpend) Clone() CategorySpend {
	out := make(CategorySpend, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
