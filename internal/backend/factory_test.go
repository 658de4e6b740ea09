package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"smartbudget/internal/advice"
	"smartbudget/internal/config"
	"smartbudget/internal/core"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(discardLogger())

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "ledger.db")}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"unknown type", Config{Type: "sheets"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.CreateBackend(ctx, tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateBackend() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer res.Close()

			if err := res.Ready(ctx); err != nil {
				t.Fatalf("Ready() = %v", err)
			}
			e := core.Expense{Description: "Lunch", Amount: decimal.NewFromInt(400), Category: "Food"}
			if _, err := res.Store.AppendExpense(ctx, "u1", e); err != nil {
				t.Fatalf("AppendExpense() = %v", err)
			}
			got, err := res.Store.ListExpenses(ctx, "u1")
			if err != nil || len(got) != 1 {
				t.Fatalf("ListExpenses() = %v, %v", got, err)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	got, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db"})
	if err != nil || got.Type != SQLiteBackend || got.SQLiteDBPath != "x.db" {
		t.Errorf("FromAppConfig() = %+v, %v", got, err)
	}
}

func TestNewAdviceClient_OfflineWithoutKey(t *testing.T) {
	client, err := NewAdviceClient(context.Background(), &config.Config{}, discardLogger())
	if err != nil {
		t.Fatalf("NewAdviceClient() = %v", err)
	}
	if _, err := client.Complete(context.Background(), "hello"); !errors.Is(err, advice.ErrUnavailable) {
		t.Errorf("offline client error = %v, want ErrUnavailable", err)
	}
}

func TestConnectAMQP_Disabled(t *testing.T) {
	if c := ConnectAMQP(&config.Config{}, discardLogger()); c != nil {
		t.Error("expected nil client without AMQP_URL")
	}
}

func TestBackendResult_CloseNil(t *testing.T) {
	var r *BackendResult
	if err := r.Close(); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}
}
