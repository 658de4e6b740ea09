package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(Config{
		Component: ComponentSession,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	newBufferLogger(&buf).WithComponent(ComponentAdvice).Info("hello", FieldUserID, "u1")
	out := buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=advice") {
		t.Fatalf("unexpected component fields: %s", out)
	}
	if !strings.Contains(out, "user_id=u1") {
		t.Fatalf("missing user field: %s", out)
	}
}

func TestFromContextReturnsStoredLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf).With(FieldRequestID, "req-1")
	ctx := context.WithValue(context.Background(), LoggerContextKey, logger)

	FromContext(ctx).Info("inside")
	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Fatalf("request id not attached: %s", buf.String())
	}
}

func TestFromContextDefault(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("unexpected default logger %+v", l)
	}
}

func TestStructuredLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf))
	ctx := context.Background()

	sl.LogAdvice(ctx, "u1", "chat", "timeout", 42, errors.New("deadline"))
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "advice_flow=chat") {
		t.Fatalf("unexpected advice log: %s", buf.String())
	}

	buf.Reset()
	req := httptest.NewRequest(http.MethodPost, "/chat", nil)
	sl.LogHTTPEnd(ctx, req, http.StatusInternalServerError, 3, "127.0.0.1")
	if !strings.Contains(buf.String(), "level=ERROR") || !strings.Contains(buf.String(), "status_code=500") {
		t.Fatalf("unexpected http log: %s", buf.String())
	}

	buf.Reset()
	sl.LogRecordCommitted(ctx, "u1", "expense", "mem:1", "400.00", "Food")
	if !strings.Contains(buf.String(), "record_kind=expense") || !strings.Contains(buf.String(), "category=Food") {
		t.Fatalf("unexpected commit log: %s", buf.String())
	}
}
