// Package memory is an in-process Store used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"smartbudget/internal/core"
	"smartbudget/internal/store"
)

type ledger struct {
	expenses []core.Expense
	debts    []core.Debt
	goals    []core.Goal
	turns    []core.ConversationTurn
}

type Store struct {
	mu    sync.Mutex
	users map[string]*ledger
	seq   int
}

func New() *Store {
	return &Store{users: map[string]*ledger{}}
}

var _ store.Store = (*Store)(nil)

func (s *Store) user(userID string) (*ledger, error) {
	if userID == "" {
		return nil, store.ErrMissingUser
	}
	l, ok := s.users[userID]
	if !ok {
		l = &ledger{}
		s.users[userID] = l
	}
	return l, nil
}

// nextRef returns a synthetic record reference. Callers hold mu.
func (s *Store) nextRef() string {
	s.seq++
	return fmt.Sprintf("mem:%d", s.seq)
}

func (s *Store) AppendExpense(_ context.Context, userID string, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.user(userID)
	if err != nil {
		return "", err
	}
	ref := s.nextRef()
	if e.ID == "" {
		e.ID = ref
	}
	l.expenses = append(l.expenses, e)
	return ref, nil
}

func (s *Store) AppendDebt(_ context.Context, userID string, d core.Debt) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.user(userID)
	if err != nil {
		return "", err
	}
	ref := s.nextRef()
	if d.ID == "" {
		d.ID = ref
	}
	l.debts = append(l.debts, d)
	return ref, nil
}

func (s *Store) AppendGoal(_ context.Context, userID string, g core.Goal) (string, error) {
	if err := g.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.user(userID)
	if err != nil {
		return "", err
	}
	ref := s.nextRef()
	if g.ID == "" {
		g.ID = ref
	}
	l.goals = append(l.goals, g)
	return ref, nil
}

func (s *Store) AppendTurn(_ context.Context, userID string, t core.ConversationTurn) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.user(userID)
	if err != nil {
		return err
	}
	l.turns = append(l.turns, t)
	return nil
}

func (s *Store) ListExpenses(_ context.Context, userID string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.user(userID)
	if err != nil {
		return nil, err
	}
	return append([]core.Expense(nil), l.expenses...), nil
}

func (s *Store) ListDebts(_ context.Context, userID string) ([]core.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.user(userID)
	if err != nil {
		return nil, err
	}
	return append([]core.Debt(nil), l.debts...), nil
}

func (s *Store) ListGoals(_ context.Context, userID string) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.user(userID)
	if err != nil {
		return nil, err
	}
	return append([]core.Goal(nil), l.goals...), nil
}

func (s *Store) ListConversation(_ context.Context, userID string) ([]core.ConversationTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.user(userID)
	if err != nil {
		return nil, err
	}
	return append([]core.ConversationTurn(nil), l.turns...), nil
}
