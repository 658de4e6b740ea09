// Package conversation holds one user's ordered, append-only chat history.
package conversation

import (
	"context"
	"fmt"
	"sync"

	"smartbudget/internal/core"
	"smartbudget/internal/store"
)

// Log is safe for concurrent use. A turn becomes visible only after the
// store has accepted it.
type Log struct {
	mu     sync.RWMutex
	userID string
	store  store.ConversationStore
	turns  []core.ConversationTurn
}

// New returns a Log seeded with previously persisted turns.
func New(userID string, s store.ConversationStore, turns []core.ConversationTurn) *Log {
	return &Log{userID: userID, store: s, turns: append([]core.ConversationTurn(nil), turns...)}
}

// Load reads the persisted history for userID.
func Load(ctx context.Context, userID string, s store.ConversationStore) (*Log, error) {
	l := New(userID, s, nil)
	if err := l.Refresh(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Refresh replaces the in-memory history with the store's, picking up turns
// appended through other Logs. The store's order wins. A read that raced an
// in-process Append and came back shorter is ignored.
func (l *Log) Refresh(ctx context.Context) error {
	turns, err := l.store.ListConversation(ctx, l.userID)
	if err != nil {
		return fmt.Errorf("list conversation: %w", err)
	}
	l.mu.Lock()
	if len(turns) >= len(l.turns) {
		l.turns = turns
	}
	l.mu.Unlock()
	return nil
}

// Append persists the turn, then appends it in memory. No dedup and no cap.
func (l *Log) Append(ctx context.Context, turn core.ConversationTurn) error {
	if err := turn.Validate(); err != nil {
		return err
	}
	if err := l.store.AppendTurn(ctx, l.userID, turn); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	l.mu.Lock()
	l.turns = append(l.turns, turn)
	l.mu.Unlock()
	return nil
}

// Turns returns a copy of the full history.
func (l *Log) Turns() []core.ConversationTurn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]core.ConversationTurn(nil), l.turns...)
}

// Window returns the last n turns, or all of them when n <= 0.
func (l *Log) Window(n int) []core.ConversationTurn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	turns := l.turns
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return append([]core.ConversationTurn(nil), turns...)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}
