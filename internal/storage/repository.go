package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"smartbudget/internal/core"
	"smartbudget/internal/store"

	_ "modernc.org/sqlite"
)

const (
	timestampLayout = time.RFC3339Nano
	dayLayout       = "2006-01-02"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// A single writer avoids SQLITE_BUSY on concurrent appends.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) insert(ctx context.Context, query string, args ...any) (string, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return "", err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func (r *SQLiteRepository) AppendExpense(ctx context.Context, userID string, e core.Expense) (string, error) {
	if userID == "" {
		return "", store.ErrMissingUser
	}
	if err := e.Validate(); err != nil {
		return "", err
	}
	ref, err := r.insert(ctx,
		`INSERT INTO expenses (user_id, description, amount, category, occurred_at) VALUES (?, ?, ?, ?, ?)`,
		userID, e.Description, e.Amount.String(), e.Category, e.OccurredAt.UTC().Format(timestampLayout))
	if err != nil {
		return "", fmt.Errorf("create expense: %w", err)
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", ref,
		"user_id", userID,
		"amount", e.Amount.String(),
		"category", e.Category)
	return ref, nil
}

func (r *SQLiteRepository) AppendDebt(ctx context.Context, userID string, d core.Debt) (string, error) {
	if userID == "" {
		return "", store.ErrMissingUser
	}
	if err := d.Validate(); err != nil {
		return "", err
	}
	ref, err := r.insert(ctx,
		`INSERT INTO debts (user_id, description, total_amount, due_date) VALUES (?, ?, ?, ?)`,
		userID, d.Description, d.TotalAmount.String(), nullDate(d.DueDate))
	if err != nil {
		return "", fmt.Errorf("create debt: %w", err)
	}
	slog.DebugContext(ctx, "Debt saved to SQLite", "id", ref, "user_id", userID)
	return ref, nil
}

func (r *SQLiteRepository) AppendGoal(ctx context.Context, userID string, g core.Goal) (string, error) {
	if userID == "" {
		return "", store.ErrMissingUser
	}
	if err := g.Validate(); err != nil {
		return "", err
	}
	ref, err := r.insert(ctx,
		`INSERT INTO goals (user_id, description, target_amount, target_date) VALUES (?, ?, ?, ?)`,
		userID, g.Description, g.TargetAmount.String(), nullDate(g.TargetDate))
	if err != nil {
		return "", fmt.Errorf("create goal: %w", err)
	}
	slog.DebugContext(ctx, "Goal saved to SQLite", "id", ref, "user_id", userID)
	return ref, nil
}

func (r *SQLiteRepository) AppendTurn(ctx context.Context, userID string, t core.ConversationTurn) error {
	if userID == "" {
		return store.ErrMissingUser
	}
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversation_turns (user_id, query, response, occurred_at) VALUES (?, ?, ?, ?)`,
		userID, t.Query, t.Response, t.OccurredAt.UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("create conversation turn: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, description, amount, category, occurred_at FROM expenses WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			id                                 int64
			desc, amount, category, occurredAt string
		)
		if err := rows.Scan(&id, &desc, &amount, &category, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse expense %d amount: %w", id, err)
		}
		at, err := time.Parse(timestampLayout, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parse expense %d timestamp: %w", id, err)
		}
		out = append(out, core.Expense{
			ID:          strconv.FormatInt(id, 10),
			Description: desc,
			Amount:      amt,
			Category:    category,
			OccurredAt:  at,
		})
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListDebts(ctx context.Context, userID string) ([]core.Debt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, description, total_amount, due_date FROM debts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	defer rows.Close()

	var out []core.Debt
	for rows.Next() {
		var (
			id           int64
			desc, amount string
			due          sql.NullString
		)
		if err := rows.Scan(&id, &desc, &amount, &due); err != nil {
			return nil, fmt.Errorf("scan debt: %w", err)
		}
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse debt %d amount: %w", id, err)
		}
		out = append(out, core.Debt{
			ID:          strconv.FormatInt(id, 10),
			Description: desc,
			TotalAmount: amt,
			DueDate:     scanDate(due),
		})
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, description, target_amount, target_date FROM goals WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		var (
			id           int64
			desc, amount string
			target       sql.NullString
		)
		if err := rows.Scan(&id, &desc, &amount, &target); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse goal %d amount: %w", id, err)
		}
		out = append(out, core.Goal{
			ID:           strconv.FormatInt(id, 10),
			Description:  desc,
			TargetAmount: amt,
			TargetDate:   scanDate(target),
		})
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListConversation(ctx context.Context, userID string) ([]core.ConversationTurn, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT query, response, occurred_at FROM conversation_turns WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	defer rows.Close()

	var out []core.ConversationTurn
	for rows.Next() {
		var q, resp, occurredAt string
		if err := rows.Scan(&q, &resp, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan conversation turn: %w", err)
		}
		at, err := time.Parse(timestampLayout, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parse conversation timestamp: %w", err)
		}
		out = append(out, core.ConversationTurn{Query: q, Response: resp, OccurredAt: at})
	}
	return out, rows.Err()
}

func nullDate(d core.Date) sql.NullString {
	if d.IsEmpty() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Format(dayLayout), Valid: true}
}

func scanDate(s sql.NullString) core.Date {
	if !s.Valid {
		return core.Date{}
	}
	t, err := time.Parse(dayLayout, s.String)
	if err != nil {
		slog.Warn("Ignoring malformed stored date", "value", s.String)
		return core.Date{}
	}
	return core.Date{Time: t}
}
