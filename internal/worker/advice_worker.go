package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"smartbudget/internal/amqp"
)

// Advisor runs advice flows for a user. *services.Sessions implements it.
type Advisor interface {
	FinancialAnalysis(ctx context.Context, userID string) string
	ChatResponse(ctx context.Context, userID, query string) string
	Forget(userID string)
}

// AdviceWorker handles advice requests queued by the API server.
type AdviceWorker struct {
	advisor Advisor
	logger  *slog.Logger
}

func NewAdviceWorker(advisor Advisor, logger *slog.Logger) *AdviceWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdviceWorker{advisor: advisor, logger: logger.With("component", "worker")}
}

// HandleAdviceRequest runs the requested flow. The session is reloaded first
// so records committed by the API server since the last request are seen.
// Advice failures are not errors here: the fallback text is appended to the
// conversation like any other answer.
func (w *AdviceWorker) HandleAdviceRequest(ctx context.Context, msg *amqp.AdviceRequestMessage) error {
	start := time.Now()
	w.advisor.Forget(msg.UserID)

	var answer string
	switch msg.Kind {
	case amqp.KindAnalysis:
		answer = w.advisor.FinancialAnalysis(ctx, msg.UserID)
	case amqp.KindChat:
		answer = w.advisor.ChatResponse(ctx, msg.UserID, msg.Query)
	default:
		return fmt.Errorf("unknown advice kind %q", msg.Kind)
	}

	w.logger.InfoContext(ctx, "Processed advice request",
		"request_id", msg.RequestID,
		"user_id", msg.UserID,
		"kind", msg.Kind,
		"answer_chars", len(answer),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Run consumes advice requests until ctx ends.
func (w *AdviceWorker) Run(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeAdviceRequests(ctx, w.HandleAdviceRequest)
}
