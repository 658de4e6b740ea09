// Package advice defines the boundary to the text-completion model.
// Only a prompt string goes in and a response string comes out.
package advice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartbudget/internal/metrics"
)

var (
	ErrUnavailable = errors.New("advice service unavailable")
	ErrTimeout     = errors.New("advice request timed out")
	ErrUnknown     = errors.New("advice request failed")
)

// Client completes a prompt.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, prompt string) (string, error)

func (f ClientFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Classify maps err onto ErrUnavailable, ErrTimeout or ErrUnknown.
// Errors already wrapping one of them keep their kind; nil stays nil.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrTimeout), errors.Is(err, ErrUnknown):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnknown, err)
	}
}

// Outcome returns the metrics label for a classified error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "unknown"
	}
}

// Instrumented records call counts and latency for one flow.
type Instrumented struct {
	next Client
	flow string
}

func NewInstrumented(next Client, flow string) *Instrumented {
	return &Instrumented{next: next, flow: flow}
}

func (c *Instrumented) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := c.next.Complete(ctx, prompt)
	err = Classify(err)
	metrics.AdviceRequestDuration.WithLabelValues(c.flow).Observe(time.Since(start).Seconds())
	metrics.AdviceRequestsTotal.WithLabelValues(c.flow, Outcome(err)).Inc()
	return out, err
}

// WithTimeout bounds every call to d. A zero d leaves calls unbounded.
func WithTimeout(next Client, d time.Duration) Client {
	if d <= 0 {
		return next
	}
	return ClientFunc(func(ctx context.Context, prompt string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		out, err := next.Complete(ctx, prompt)
		if err != nil && ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w: after %s", ErrTimeout, d)
		}
		return out, err
	})
}

// Offline serves deployments without model credentials. Every call is
// unavailable, so callers answer with their fallback text.
var Offline Client = ClientFunc(func(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: no model configured", ErrUnavailable)
})
