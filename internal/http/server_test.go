package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"smartbudget/internal/advice"
	"smartbudget/internal/amqp"
	"smartbudget/internal/log"
	"smartbudget/internal/services"
	"smartbudget/internal/store/memory"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*amqp.AdviceRequestMessage
	err  error
}

func (p *fakePublisher) PublishAdviceRequest(_ context.Context, msg *amqp.AdviceRequestMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func scriptedAdvice() advice.Client {
	return advice.ClientFunc(func(_ context.Context, prompt string) (string, error) {
		if strings.HasPrefix(prompt, "Categorize this expense") {
			return " Food\n", nil
		}
		return "Spend less on snacks.", nil
	})
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Sessions == nil {
		sessions, err := services.NewSessions(services.Deps{
			Store:  memory.New(),
			Advice: scriptedAdvice(),
			Logger: log.Discard(),
			Now:    func() time.Time { return testNow },
		}, 16, time.Hour)
		if err != nil {
			t.Fatalf("NewSessions: %v", err)
		}
		t.Cleanup(sessions.Wait)
		opts.Sessions = sessions
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.RateLimitPerMinute == 0 {
		opts.RateLimitPerMinute = 1000
	}
	srv := NewServer(opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s missing security headers", path)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s missing request id", path)
		}
	}

	failing := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("disk gone") }})
	rr := do(t, failing, http.MethodGet, "/readyz", "", "")
	if rr.Code != http.StatusServiceUnavailable || !strings.Contains(rr.Body.String(), "disk gone") {
		t.Fatalf("readyz = %d %s", rr.Code, rr.Body.String())
	}
}

func TestCreateExpenseValidationAndSuccess(t *testing.T) {
	srv := newTestServer(t, Options{})

	tests := []struct {
		name     string
		method   string
		user     string
		body     string
		wantCode int
	}{
		{"wrong method", http.MethodGet, "u1", "", http.StatusMethodNotAllowed},
		{"missing user", http.MethodPost, "", `{"description":"Lunch","amount":"400"}`, http.StatusUnauthorized},
		{"malformed body", http.MethodPost, "u1", `{"description":`, http.StatusBadRequest},
		{"invalid amount", http.MethodPost, "u1", `{"description":"Lunch","amount":"abc"}`, http.StatusUnprocessableEntity},
		{"negative amount", http.MethodPost, "u1", `{"description":"Lunch","amount":-5}`, http.StatusUnprocessableEntity},
		{"missing description", http.MethodPost, "u1", `{"description":"  ","amount":"400"}`, http.StatusUnprocessableEntity},
		{"success", http.MethodPost, "u1", `{"description":"Lunch","amount":400,"category":"Food"}`, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, "/expenses", tt.user, tt.body)
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.wantCode, rr.Body.String())
			}
		})
	}

	ledger := decode[ledgerJSON](t, do(t, srv, http.MethodGet, "/ledger", "u1", ""))
	if len(ledger.Expenses) != 1 {
		t.Fatalf("ledger = %+v", ledger)
	}
	got := ledger.Expenses[0]
	if got.Description != "Lunch" || got.Amount != "400.00" || got.Category != "Food" || got.ID == "" {
		t.Errorf("expense = %+v", got)
	}
}

func TestSummaryAndSuggestion(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/categories/suggest", "u1", `{"description":"Lunch at cafe"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("suggest status=%d", rr.Code)
	}
	if got := decode[map[string]string](t, rr)["category"]; got != "Food" {
		t.Errorf("suggested %q, want Food", got)
	}
	summary := decode[summaryJSON](t, do(t, srv, http.MethodGet, "/summary", "u1", ""))
	if summary.PendingSuggestion == nil || *summary.PendingSuggestion != "Food" {
		t.Errorf("pending suggestion = %v", summary.PendingSuggestion)
	}

	do(t, srv, http.MethodPost, "/expenses", "u1", `{"description":"Lunch","amount":"400","category":"Food"}`)
	do(t, srv, http.MethodPost, "/expenses", "u1", `{"description":"Bus","amount":"100","category":"Transportation"}`)
	do(t, srv, http.MethodPost, "/debts", "u1", `{"description":"Card","amount":"5000","due_date":"12/31/2024"}`)
	do(t, srv, http.MethodPost, "/goals", "u1", `{"description":"Laptop","amount":"80000"}`)

	summary = decode[summaryJSON](t, do(t, srv, http.MethodGet, "/summary", "u1", ""))
	if summary.PendingSuggestion != nil {
		t.Errorf("commit should clear the suggestion, got %q", *summary.PendingSuggestion)
	}
	if summary.Year != 2024 || summary.Month != 3 || summary.Currency != "KES" {
		t.Errorf("summary header = %+v", summary)
	}
	if summary.MonthTotal != "500.00" || summary.TotalDebt != "5000.00" || summary.TotalGoals != "80000.00" {
		t.Errorf("totals = %+v", summary)
	}
	want := []categoryJSON{{"Food", "400.00"}, {"Transportation", "100.00"}}
	if len(summary.MonthlySpend) != len(want) {
		t.Fatalf("monthly spend = %+v", summary.MonthlySpend)
	}
	for i := range want {
		if summary.MonthlySpend[i] != want[i] {
			t.Errorf("monthly spend[%d] = %+v, want %+v", i, summary.MonthlySpend[i], want[i])
		}
	}
}

func TestSuggestRequiresDescription(t *testing.T) {
	srv := newTestServer(t, Options{})
	if rr := do(t, srv, http.MethodPost, "/categories/suggest", "u1", `{}`); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rr.Code)
	}
}

func TestDebtAndGoalDates(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/debts", "u1", `{"description":"Loan","amount":"1000","due_date":"not a date"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d", rr.Code)
	}
	if d := decode[debtJSON](t, rr); d.DueDate != nil || d.TotalAmount != "1000.00" {
		t.Errorf("debt = %+v", d)
	}

	rr = do(t, srv, http.MethodPost, "/goals", "u1", `{"description":"Trip","amount":"2500.5","target_date":"6/1/2025"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d", rr.Code)
	}
	if g := decode[goalJSON](t, rr); g.TargetDate == nil || *g.TargetDate != "06/01/2025" || g.TargetAmount != "2500.50" {
		t.Errorf("goal = %+v", g)
	}
}

func TestAnalysisAndChat(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/analysis", "", "")
	if got := decode[adviceJSON](t, rr).Response; got != services.LoginRequired {
		t.Errorf("anonymous analysis = %q", got)
	}

	rr = do(t, srv, http.MethodPost, "/analysis", "u1", "")
	if got := decode[adviceJSON](t, rr).Response; got != "Spend less on snacks." {
		t.Errorf("analysis = %q", got)
	}
	rr = do(t, srv, http.MethodPost, "/chat", "u1", `{"query":"Should I save more?"}`)
	if got := decode[adviceJSON](t, rr).Response; got != "Spend less on snacks." {
		t.Errorf("chat = %q", got)
	}

	turns := decode[[]turnJSON](t, do(t, srv, http.MethodGet, "/conversation", "u1", ""))
	if len(turns) != 2 || turns[0].Query != services.AnalysisQuery || turns[1].Query != "Should I save more?" {
		t.Errorf("conversation = %+v", turns)
	}
}

func TestAsyncAdvice(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		srv := newTestServer(t, Options{})
		rr := do(t, srv, http.MethodPost, "/analysis", "u1", `{"async":true}`)
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rr.Code)
		}
	})

	t.Run("queued", func(t *testing.T) {
		pub := &fakePublisher{}
		srv := newTestServer(t, Options{Publisher: pub})

		rr := do(t, srv, http.MethodPost, "/chat", "u1", `{"query":"Can I afford a trip?","async":true}`)
		if rr.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", rr.Code)
		}
		queued := decode[queuedJSON](t, rr)
		if len(pub.msgs) != 1 || pub.msgs[0].RequestID != queued.RequestID {
			t.Fatalf("published %+v, response %+v", pub.msgs, queued)
		}
		if m := pub.msgs[0]; m.UserID != "u1" || m.Kind != amqp.KindChat || m.Query != "Can I afford a trip?" {
			t.Errorf("message = %+v", m)
		}

		if rr := do(t, srv, http.MethodPost, "/chat", "u1", `{"query":" ","async":true}`); rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("blank async query status = %d, want 422", rr.Code)
		}
	})

	t.Run("broker down", func(t *testing.T) {
		srv := newTestServer(t, Options{Publisher: &fakePublisher{err: amqp.ErrCircuitOpen}})
		rr := do(t, srv, http.MethodPost, "/analysis", "u1", `{"async":"true"}`)
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rr.Code)
		}
	})
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, Options{RateLimitPerMinute: 1})

	if rr := do(t, srv, http.MethodPost, "/expenses", "u1", `{"description":"Tea","amount":"50"}`); rr.Code != http.StatusCreated {
		t.Fatalf("first status = %d", rr.Code)
	}
	rr := do(t, srv, http.MethodPost, "/expenses", "u1", `{"description":"Tea","amount":"50"}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/ledger", "u1", ""); rr.Code != http.StatusOK {
		t.Errorf("reads are not limited, got %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{})
	do(t, srv, http.MethodGet, "/healthz", "", "")

	rr := do(t, srv, http.MethodGet, "/metrics", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `smartbudget_http_requests_total{endpoint="GET /healthz"`) {
		t.Errorf("metrics output missing request counter")
	}
}

func TestChatKeepsQueryWhitespace(t *testing.T) {
	srv := newTestServer(t, Options{})

	do(t, srv, http.MethodPost, "/chat", "u1", `{"query":"  Should I save more?\n"}`)

	turns := decode[[]turnJSON](t, do(t, srv, http.MethodGet, "/conversation", "u1", ""))
	if len(turns) != 1 || turns[0].Query != "  Should I save more?\n" {
		t.Errorf("conversation = %+v", turns)
	}
}
