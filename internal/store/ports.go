// Package store declares the persistence ports for ledger records and
// conversation turns. Every call is scoped to one user id.
package store

import (
	"context"
	"errors"

	"smartbudget/internal/core"
)

var ErrMissingUser = errors.New("missing user id")

// Ports for outbound adapters.
type (
	ExpenseStore interface {
		AppendExpense(ctx context.Context, userID string, e core.Expense) (ref string, err error)
		ListExpenses(ctx context.Context, userID string) ([]core.Expense, error)
	}

	DebtStore interface {
		AppendDebt(ctx context.Context, userID string, d core.Debt) (ref string, err error)
		ListDebts(ctx context.Context, userID string) ([]core.Debt, error)
	}

	GoalStore interface {
		AppendGoal(ctx context.Context, userID string, g core.Goal) (ref string, err error)
		ListGoals(ctx context.Context, userID string) ([]core.Goal, error)
	}

	// ConversationStore keeps turns in insertion order.
	ConversationStore interface {
		AppendTurn(ctx context.Context, userID string, t core.ConversationTurn) error
		ListConversation(ctx context.Context, userID string) ([]core.ConversationTurn, error)
	}

	Store interface {
		ExpenseStore
		DebtStore
		GoalStore
		ConversationStore
	}
)
