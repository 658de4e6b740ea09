package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Uncategorized is the grouping key for expenses without a category.
const Uncategorized = "Uncategorized"

// Category labels the classifier may choose from.
const (
	CategoryFood           = "Food"
	CategoryTransportation = "Transportation"
	CategoryUtilities      = "Utilities"
	CategoryEntertainment  = "Entertainment"
	CategoryShopping       = "Shopping"
	CategoryBills          = "Bills"
	CategoryOther          = "Other"
)

// Categories returns the closed label set in prompt order.
func Categories() []string {
	return []string{
		CategoryFood,
		CategoryTransportation,
		CategoryUtilities,
		CategoryEntertainment,
		CategoryShopping,
		CategoryBills,
		CategoryOther,
	}
}

type (
	// Date is a calendar date. The zero value means "no date".
	Date struct {
		time.Time
	}

	Expense struct {
		ID          string
		Description string
		Amount      decimal.Decimal
		Category    string // optional
		OccurredAt  time.Time
	}

	Debt struct {
		ID          string
		Description string
		TotalAmount decimal.Decimal
		DueDate     Date // optional
	}

	Goal struct {
		ID           string
		Description  string
		TargetAmount decimal.Decimal
		TargetDate   Date // optional
	}

	ConversationTurn struct {
		Query      string
		Response   string
		OccurredAt time.Time
	}

	// Ledger is a snapshot of one user's expenses, debts and goals.
	Ledger struct {
		Expenses []Expense
		Debts    []Debt
		Goals    []Goal
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyDescription = errors.New("empty description")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
	ErrEmptyQuery       = errors.New("empty query")
)

const maxDescriptionLen = 200

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// IsEmpty reports whether the date is absent.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// CategoryKey returns the grouping key for a category, mapping blank to Uncategorized.
func CategoryKey(category string) string {
	c := strings.TrimSpace(category)
	if c == "" {
		return Uncategorized
	}
	return c
}

func validateDescription(desc string) error {
	if len(strings.TrimSpace(desc)) == 0 {
		return ErrEmptyDescription
	}
	if len(desc) > maxDescriptionLen {
		return ErrDescriptionLong
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if err := validateDescription(e.Description); err != nil {
		return err
	}
	if err := validateAmount(e.Amount); err != nil {
		return err
	}
	if e.OccurredAt.IsZero() {
		return errors.New("expense date cannot be zero")
	}
	return nil
}

func (d Debt) Validate() error {
	if err := validateDescription(d.Description); err != nil {
		return err
	}
	return validateAmount(d.TotalAmount)
}

func (g Goal) Validate() error {
	if err := validateDescription(g.Description); err != nil {
		return err
	}
	return validateAmount(g.TargetAmount)
}

func (t ConversationTurn) Validate() error {
	if strings.TrimSpace(t.Query) == "" {
		return ErrEmptyQuery
	}
	return nil
}

// Clone returns a copy whose slices can be mutated independently.
func (l Ledger) Clone() Ledger {
	return Ledger{
		Expenses: append([]Expense(nil), l.Expenses...),
		Debts:    append([]Debt(nil), l.Debts...),
		Goals:    append([]Goal(nil), l.Goals...),
	}
}
