package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartbudget/internal/amqp"
	"smartbudget/internal/log"
	"smartbudget/internal/middleware/ratelimit"
	"smartbudget/internal/middleware/security"
	"smartbudget/internal/middleware/trace"
	"smartbudget/internal/services"
)

// SessionProvider resolves per-user sessions and runs the advice flows.
// *services.Sessions implements it.
type SessionProvider interface {
	Get(ctx context.Context, userID string) (*services.Session, error)
	FinancialAnalysis(ctx context.Context, userID string) string
	ChatResponse(ctx context.Context, userID, query string) string
}

// Options configures NewServer.
type Options struct {
	Addr     string
	Sessions SessionProvider
	// Publisher queues async advice requests; nil disables the async flag.
	Publisher amqp.Publisher
	// Ready probes the ledger store for /readyz; nil means always ready.
	Ready  func(ctx context.Context) error
	Logger *log.Logger

	RateLimitPerMinute int
}

type Server struct {
	http.Server
	sessions    SessionProvider
	publisher   amqp.Publisher
	ready       func(ctx context.Context) error
	logger      *log.Logger
	rateLimiter *ratelimit.Limiter
	started     time.Time

	shutdownOnce sync.Once
}

type route struct {
	pattern string
	handler http.HandlerFunc
	// limited routes count against the per-client rate limit.
	limited bool
}

func (s *Server) routes() []route {
	return []route{
		{"GET /healthz", s.handleHealth, false},
		{"GET /readyz", s.handleReady, false},
		{"POST /expenses", s.handleCreateExpense, true},
		{"POST /debts", s.handleCreateDebt, true},
		{"POST /goals", s.handleCreateGoal, true},
		{"POST /categories/suggest", s.handleSuggestCategory, true},
		{"GET /ledger", s.handleLedger, false},
		{"GET /summary", s.handleSummary, false},
		{"GET /conversation", s.handleConversation, false},
		{"POST /analysis", s.handleAnalysis, true},
		{"POST /chat", s.handleChat, true},
	}
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		sessions:  opts.Sessions,
		publisher: opts.Publisher,
		ready:     opts.Ready,
		logger:    logger.WithComponent(log.ComponentHTTP),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		started: time.Now(),
	}

	detector := security.NewDetector()
	limit := s.rateLimiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
	})

	mux := http.NewServeMux()
	routes := s.routes()
	for _, rt := range routes {
		var h http.Handler = rt.handler
		if rt.limited {
			h = limit(h)
		}
		mux.Handle(rt.pattern, h)
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(logger, detector.ExtractClientIP)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           tracer.Middleware(detector.Middleware(headers.Middleware(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		// Synchronous analysis and chat wait on the model.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	s.logger.Debug("HTTP routes mounted", "routes", describeRoutes(routes))
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func describeRoutes(routes []route) string {
	patterns := make([]string, 0, len(routes))
	for _, rt := range routes {
		patterns = append(patterns, rt.pattern)
	}
	return strings.Join(patterns, ", ")
}
