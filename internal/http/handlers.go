package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"smartbudget/internal/aggregate"
	"smartbudget/internal/amqp"
	"smartbudget/internal/core"
	"smartbudget/internal/log"
	"smartbudget/internal/metrics"
	"smartbudget/internal/services"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.ready == nil {
		checks["store"] = "ok"
	} else if err := s.ready(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	if s.publisher == nil {
		checks["advice_queue"] = "not_configured"
	} else {
		checks["advice_queue"] = "ok"
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}

	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	e, err := sess.AddExpense(r.Context(), p.Get("description"), amount, p.Get("category"))
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(toExpenseJSON(e)).Write(w)
}

func (s *Server) handleCreateDebt(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}

	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	d, err := sess.AddDebt(r.Context(), p.Get("description"), amount, p.Get("due_date"))
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(toDebtJSON(d)).Write(w)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}

	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	g, err := sess.AddGoal(r.Context(), p.Get("description"), amount, p.Get("target_date"))
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(toGoalJSON(g)).Write(w)
}

// handleSuggestCategory returns the model's category for a description and
// publishes it as the session's pending suggestion.
func (s *Server) handleSuggestCategory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}

	description := p.Get("description")
	if description == "" {
		s.fail(w, r, log.OpSuggest, core.ErrEmptyDescription)
		return
	}
	category := sess.SuggestCategory(r.Context(), description)
	NewJSONResponse().Body(map[string]string{"category": category}).Write(w)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	NewJSONResponse().Body(toLedgerJSON(sess.Ledger())).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	ledger := sess.Ledger()
	overview := sess.Overview()
	out := summaryJSON{
		Year:          overview.Year,
		Month:         overview.Month,
		Currency:      core.Currency,
		MonthTotal:    core.FormatAmount(overview.Total),
		MonthlySpend:  toCategoriesJSON(sess.MonthlySpend()),
		TotalExpenses: core.FormatAmount(aggregate.TotalExpenses(ledger.Expenses)),
		TotalDebt:     core.FormatAmount(aggregate.TotalDebt(ledger.Debts)),
		TotalGoals:    core.FormatAmount(aggregate.TotalGoals(ledger.Goals)),
	}
	if suggestion, ok := sess.PendingSuggestion(); ok {
		out.PendingSuggestion = &suggestion
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	NewJSONResponse().Body(toTurnsJSON(sess.Conversation(r.Context()))).Write(w)
}

// handleAnalysis answers synchronously, or queues the request for the worker
// when the body sets async.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	userID := userIDFromRequest(r)
	if userID != "" && p.GetBool("async") {
		s.enqueue(w, r, amqp.NewAdviceRequestMessage(userID, amqp.KindAnalysis, ""))
		return
	}
	response := s.sessions.FinancialAnalysis(r.Context(), userID)
	NewJSONResponse().Body(adviceJSON{Response: response}).Write(w)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	userID := userIDFromRequest(r)
	query := p.GetRaw("query")
	if userID != "" && p.GetBool("async") {
		if strings.TrimSpace(query) == "" {
			s.fail(w, r, log.OpChat, core.ErrEmptyQuery)
			return
		}
		s.enqueue(w, r, amqp.NewAdviceRequestMessage(userID, amqp.KindChat, query))
		return
	}
	response := s.sessions.ChatResponse(r.Context(), userID, query)
	NewJSONResponse().Body(adviceJSON{Response: response}).Write(w)
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, msg *amqp.AdviceRequestMessage) {
	if s.publisher == nil {
		ServiceUnavailableError("async advice is not configured").Write(w)
		return
	}
	if err := s.publisher.PublishAdviceRequest(r.Context(), msg); err != nil {
		requestLogger(r).LogError(r.Context(), "Failed to queue advice request", err, log.ComponentAMQP, log.OpPublish,
			log.NewFields().WithUser(msg.UserID))
		ServiceUnavailableError("advice queue unavailable").Write(w)
		return
	}
	metrics.AdviceQueuedTotal.WithLabelValues(msg.Kind).Inc()
	NewJSONResponse().
		Status(http.StatusAccepted).
		Body(queuedJSON{RequestID: msg.RequestID, Status: "queued"}).
		Write(w)
}

// session resolves the caller's session, writing the error response on failure.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*services.Session, bool) {
	sess, err := s.sessions.Get(r.Context(), userIDFromRequest(r))
	if err != nil {
		s.fail(w, r, log.OpLoad, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, err.Error()).Write(w)
		} else {
			BadRequestError("malformed request body").Write(w)
		}
		return nil, false
	}
	return p, true
}

// fail maps domain errors onto status codes. Anything unrecognized is
// logged and reported as 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, services.ErrNotAuthenticated):
		UnauthorizedError("missing " + HeaderUserID + " header").Write(w)
	case isValidationError(err):
		UnprocessableEntityError(err.Error()).Write(w)
	default:
		requestLogger(r).LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op,
			log.NewFields().WithUser(userIDFromRequest(r)))
		InternalServerError("internal error").Write(w)
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidAmount,
		core.ErrEmptyDescription,
		core.ErrDescriptionLong,
		core.ErrEmptyQuery,
		core.ErrInvalidDate,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// requestLogger returns the logger installed by the trace middleware.
func requestLogger(r *http.Request) *log.StructuredLogger {
	return log.NewStructuredLogger(log.FromContext(r.Context()))
}
