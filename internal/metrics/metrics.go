// Package metrics declares the Prometheus collectors shared by the server and worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartbudget_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smartbudget_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5, 15},
	}, []string{"method", "endpoint"})

	// AdviceRequestsTotal counts advice model calls by flow and outcome
	// (ok, unavailable, timeout, unknown).
	AdviceRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartbudget_advice_requests_total",
		Help: "Advice model calls, labeled by flow and outcome",
	}, []string{"flow", "outcome"})

	AdviceRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smartbudget_advice_request_duration_seconds",
		Help:    "Latency distribution of advice model calls",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"flow"})

	LedgerCommitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartbudget_ledger_commits_total",
		Help: "Ledger records committed, labeled by kind",
	}, []string{"kind"})

	SessionsLoadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartbudget_sessions_loaded_total",
		Help: "User sessions loaded from the store",
	})

	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartbudget_http_rate_limited_total",
		Help: "Requests rejected by the per-client rate limiter",
	})

	SuspiciousRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartbudget_http_suspicious_requests_total",
		Help: "Requests matching a known probing pattern",
	})

	// AdviceQueuedTotal counts advice requests handed to the broker, by kind.
	AdviceQueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartbudget_advice_queued_total",
		Help: "Advice requests published for the worker, labeled by kind",
	}, []string{"kind"})
)
