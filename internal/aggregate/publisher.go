package aggregate

import (
	"sync/atomic"
	"time"

	"smartbudget/internal/core"
)

// Publisher holds the most recently published monthly spend mapping.
// Each Publish replaces the previous mapping wholesale.
type Publisher struct {
	current atomic.Pointer[published]
}

type published struct {
	spend core.CategorySpend
	year  int
	month time.Month
}

// Publish recomputes the monthly spend from a full expense snapshot and
// replaces the published mapping.
func (p *Publisher) Publish(expenses []core.Expense, now time.Time) core.CategorySpend {
	spend := RecomputeMonthlySpend(expenses, now)
	p.current.Store(&published{spend: spend, year: now.Year(), month: now.Month()})
	return spend.Clone()
}

// Current returns a copy of the published mapping, empty before the first Publish.
func (p *Publisher) Current() core.CategorySpend {
	if m := p.current.Load(); m != nil {
		return m.spend.Clone()
	}
	return core.CategorySpend{}
}

// PublishedFor reports whether the current mapping was computed for the
// calendar month of now.
func (p *Publisher) PublishedFor(now time.Time) bool {
	m := p.current.Load()
	return m != nil && m.year == now.Year() && m.month == now.Month()
}
