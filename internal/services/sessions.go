package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"smartbudget/internal/cache"
	"smartbudget/internal/log"
)

// Sessions caches one Session per user. An evicted session is reloaded
// from the store on next use; only its pending suggestion is lost. A request
// still holding an evicted session may commit into it; that commit drops
// whichever session replaced it so the record is not missed.
type Sessions struct {
	deps     Deps
	cache    *cache.LRUCache[*Session]
	inflight sync.WaitGroup
}

func NewSessions(deps Deps, size int, ttl time.Duration) (*Sessions, error) {
	if deps.Store == nil {
		return nil, errors.New("sessions: store is required")
	}
	if deps.Advice == nil {
		return nil, errors.New("sessions: advice client is required")
	}
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	c := cache.NewLRUCache[*Session](size, ttl)
	c.OnEvict(func(_ string, s *Session) { s.retire() })
	return &Sessions{
		deps:  deps,
		cache: c,
	}, nil
}

// Cache exposes the session cache so its expired entries can be cleaned.
func (r *Sessions) Cache() *cache.LRUCache[*Session] {
	return r.cache
}

// Get returns the cached session for userID, loading it on first use.
// A blank user id yields ErrNotAuthenticated.
func (r *Sessions) Get(ctx context.Context, userID string) (*Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	if s, ok := r.cache.Get(userID); ok {
		return s, nil
	}
	s, err := loadSession(ctx, userID, r.deps, &r.inflight)
	if err != nil {
		return nil, err
	}
	s.forget = func() { r.Forget(userID) }
	s, _ = r.cache.SetIfAbsent(userID, s)
	return s, nil
}

// Forget drops the cached session so the next Get reloads it.
func (r *Sessions) Forget(userID string) {
	r.cache.Delete(strings.TrimSpace(userID))
}

// FinancialAnalysis runs the analysis flow for userID. A missing identity
// yields LoginRequired and a load failure yields AnalysisFallback.
func (r *Sessions) FinancialAnalysis(ctx context.Context, userID string) string {
	s, err := r.Get(ctx, userID)
	if errors.Is(err, ErrNotAuthenticated) {
		return LoginRequired
	}
	if err != nil {
		r.logLoadError(ctx, userID, err)
		return AnalysisFallback
	}
	return s.FinancialAnalysis(ctx)
}

// ChatResponse runs the chat flow for userID, with the same soft failures
// as FinancialAnalysis.
func (r *Sessions) ChatResponse(ctx context.Context, userID, query string) string {
	s, err := r.Get(ctx, userID)
	if errors.Is(err, ErrNotAuthenticated) {
		return LoginRequired
	}
	if err != nil {
		r.logLoadError(ctx, userID, err)
		return ChatFallback
	}
	return s.ChatResponse(ctx, query)
}

func (r *Sessions) logLoadError(ctx context.Context, userID string, err error) {
	log.NewStructuredLogger(r.deps.Logger).LogError(ctx, "Failed to load session", err,
		log.ComponentSession, log.OpLoad, log.NewFields().WithUser(userID))
}

// Wait blocks until every advice call started through these sessions has finished.
func (r *Sessions) Wait() {
	r.inflight.Wait()
}
