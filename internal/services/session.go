package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"smartbudget/internal/advice"
	"smartbudget/internal/aggregate"
	"smartbudget/internal/conversation"
	"smartbudget/internal/core"
	"smartbudget/internal/log"
	"smartbudget/internal/metrics"
	"smartbudget/internal/prompt"
	"smartbudget/internal/store"
)

// Texts returned instead of an error when a flow cannot complete.
const (
	AnalysisFallback = "Oops! Something went wrong with the analysis. Please try again later."
	ChatFallback     = "Sorry, I couldn't answer that right now. Please try again later."
	CategoryFallback = core.CategoryOther
	LoginRequired    = "Please log in to get personalized financial advice."

	// AnalysisQuery is the query text logged for financial analysis turns.
	AnalysisQuery = "Financial analysis"
)

// Advice flows, used as metric and log labels.
const (
	FlowAnalysis = "analysis"
	FlowChat     = "chat"
	FlowCategory = "category"
)

var ErrNotAuthenticated = errors.New("not authenticated")

// Deps are the collaborators shared by every session.
type Deps struct {
	Store  store.Store
	Advice advice.Client
	Logger *log.Logger

	// AdviceTimeout bounds each advice call, including calls that outlive
	// the request that started them. Zero means no bound.
	AdviceTimeout time.Duration
	// HistoryWindow limits how many recent turns go into chat prompts.
	// Zero renders the whole history.
	HistoryWindow int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Session owns one user's ledger snapshot, conversation and derived state.
// It is safe for concurrent use.
type Session struct {
	userID string
	store  store.Store
	now    func() time.Time
	window int
	log    *log.StructuredLogger
	logger *log.Logger

	analysis advice.Client
	chat     advice.Client
	category advice.Client

	// commitMu serializes store appends so the snapshot keeps store order.
	// mu guards only the in-memory state and is never held across I/O.
	commitMu   sync.Mutex
	mu         sync.RWMutex
	ledger     core.Ledger
	pending    string
	hasPending bool
	// generation increments on every expense commit.
	generation uint64

	spend    aggregate.Publisher
	conv     *conversation.Log
	inflight *sync.WaitGroup

	// retired is set once the registry has dropped this session. A commit
	// into a retired session calls forget so any replacement reloads.
	retired atomic.Bool
	forget  func()
}

// LoadSession reads the user's records concurrently and publishes the
// current monthly spend.
func LoadSession(ctx context.Context, userID string, deps Deps) (*Session, error) {
	return loadSession(ctx, userID, deps, nil)
}

func loadSession(ctx context.Context, userID string, deps Deps, inflight *sync.WaitGroup) (*Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrNotAuthenticated
	}

	var (
		expenses []core.Expense
		debts    []core.Debt
		goals    []core.Goal
		conv     *conversation.Log
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if expenses, err = deps.Store.ListExpenses(gctx, userID); err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if debts, err = deps.Store.ListDebts(gctx, userID); err != nil {
			return fmt.Errorf("list debts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if goals, err = deps.Store.ListGoals(gctx, userID); err != nil {
			return fmt.Errorf("list goals: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		conv, err = conversation.Load(gctx, userID, deps.Store)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	s := newSession(userID, deps, inflight)
	s.ledger = core.Ledger{Expenses: expenses, Debts: debts, Goals: goals}
	s.conv = conv
	s.spend.Publish(expenses, s.now())

	metrics.SessionsLoadedTotal.Inc()
	s.logger.DebugContext(ctx, "Session loaded",
		log.FieldUserID, userID,
		"expenses", len(expenses),
		"debts", len(debts),
		"goals", len(goals),
		"turns", conv.Len())
	return s, nil
}

func newSession(userID string, deps Deps, inflight *sync.WaitGroup) *Session {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentSession)
	if inflight == nil {
		inflight = &sync.WaitGroup{}
	}
	client := advice.WithTimeout(deps.Advice, deps.AdviceTimeout)
	return &Session{
		userID:   userID,
		store:    deps.Store,
		now:      now,
		window:   deps.HistoryWindow,
		log:      log.NewStructuredLogger(logger),
		logger:   logger,
		analysis: advice.NewInstrumented(client, FlowAnalysis),
		chat:     advice.NewInstrumented(client, FlowChat),
		category: advice.NewInstrumented(client, FlowCategory),
		inflight: inflight,
	}
}

func (s *Session) UserID() string {
	return s.userID
}

// Ledger returns a copy of the current snapshot.
func (s *Session) Ledger() core.Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Clone()
}

// MonthlySpend returns the published category spend, republishing first
// when the session clock has moved into another month since the last commit.
func (s *Session) MonthlySpend() core.CategorySpend {
	now := s.now()
	if !s.spend.PublishedFor(now) {
		s.mu.RLock()
		expenses := s.ledger.Expenses
		s.mu.RUnlock()
		return s.spend.Publish(expenses, now)
	}
	return s.spend.Current()
}

// Overview summarizes the calendar month of the session clock.
func (s *Session) Overview() core.MonthOverview {
	s.mu.RLock()
	expenses := s.ledger.Expenses
	s.mu.RUnlock()
	return aggregate.Overview(expenses, s.now())
}

// Conversation returns the full ordered history, including turns appended
// by other processes sharing the store.
func (s *Session) Conversation(ctx context.Context) []core.ConversationTurn {
	s.refreshConversation(ctx)
	return s.conv.Turns()
}

func (s *Session) refreshConversation(ctx context.Context) {
	if err := s.conv.Refresh(ctx); err != nil {
		s.logger.WarnContext(ctx, "Using cached conversation",
			log.FieldUserID, s.userID,
			log.FieldError, err)
	}
}

// retire marks the session as dropped from the registry.
func (s *Session) retire() {
	s.retired.Store(true)
}

// afterCommit drops a replacement session that may have been loaded before
// this commit reached the store.
func (s *Session) afterCommit() {
	if s.retired.Load() && s.forget != nil {
		s.forget()
	}
}

// PendingSuggestion returns the category suggested since the last expense commit.
func (s *Session) PendingSuggestion() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending, s.hasPending
}

// SuggestCategory asks the model for a category and publishes it as the
// pending suggestion. A suggestion that started before an expense commit is
// returned but not published.
func (s *Session) SuggestCategory(ctx context.Context, description string) string {
	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()

	category := s.classify(ctx, description)

	s.mu.Lock()
	if s.generation == gen {
		s.pending = category
		s.hasPending = true
	}
	s.mu.Unlock()
	return category
}

func (s *Session) classify(ctx context.Context, description string) string {
	p := prompt.BuildCategoryPrompt(description)
	out, err := s.category.Complete(ctx, p)
	out = strings.TrimSpace(out)
	if err == nil && out == "" {
		err = fmt.Errorf("%w: empty category", advice.ErrUnknown)
	}
	s.log.LogAdvice(ctx, s.userID, FlowCategory, advice.Outcome(err), len(p), err)
	if err != nil {
		return CategoryFallback
	}
	return out
}

// AddExpense commits an expense dated now. A blank category is filled by a
// fresh classification, never from the pending suggestion. The commit clears
// the pending suggestion and republishes the monthly spend.
func (s *Session) AddExpense(ctx context.Context, description string, amount decimal.Decimal, category string) (core.Expense, error) {
	e := core.Expense{
		Description: strings.TrimSpace(description),
		Amount:      amount,
		Category:    strings.TrimSpace(category),
		OccurredAt:  s.now(),
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if e.Category == "" {
		e.Category = s.classify(ctx, e.Description)
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	ref, err := s.store.AppendExpense(ctx, s.userID, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("append expense: %w", err)
	}
	e.ID = ref

	s.mu.Lock()
	s.ledger.Expenses = append(s.ledger.Expenses, e)
	s.pending, s.hasPending = "", false
	s.generation++
	s.spend.Publish(s.ledger.Expenses, s.now())
	s.mu.Unlock()
	s.afterCommit()

	metrics.LedgerCommitsTotal.WithLabelValues("expense").Inc()
	s.log.LogRecordCommitted(ctx, s.userID, "expense", ref, core.FormatAmount(e.Amount), e.Category)
	return e, nil
}

// AddDebt commits a debt. A blank or malformed due date becomes "no date".
func (s *Session) AddDebt(ctx context.Context, description string, amount decimal.Decimal, dueDate string) (core.Debt, error) {
	d := core.Debt{
		Description: strings.TrimSpace(description),
		TotalAmount: amount,
		DueDate:     s.optionalDate(ctx, "due_date", dueDate),
	}
	if err := d.Validate(); err != nil {
		return core.Debt{}, err
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	ref, err := s.store.AppendDebt(ctx, s.userID, d)
	if err != nil {
		return core.Debt{}, fmt.Errorf("append debt: %w", err)
	}
	d.ID = ref

	s.mu.Lock()
	s.ledger.Debts = append(s.ledger.Debts, d)
	s.mu.Unlock()
	s.afterCommit()

	metrics.LedgerCommitsTotal.WithLabelValues("debt").Inc()
	s.log.LogRecordCommitted(ctx, s.userID, "debt", ref, core.FormatAmount(d.TotalAmount), "")
	return d, nil
}

// AddGoal commits a goal. A blank or malformed target date becomes "no date".
func (s *Session) AddGoal(ctx context.Context, description string, amount decimal.Decimal, targetDate string) (core.Goal, error) {
	g := core.Goal{
		Description:  strings.TrimSpace(description),
		TargetAmount: amount,
		TargetDate:   s.optionalDate(ctx, "target_date", targetDate),
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	ref, err := s.store.AppendGoal(ctx, s.userID, g)
	if err != nil {
		return core.Goal{}, fmt.Errorf("append goal: %w", err)
	}
	g.ID = ref

	s.mu.Lock()
	s.ledger.Goals = append(s.ledger.Goals, g)
	s.mu.Unlock()
	s.afterCommit()

	metrics.LedgerCommitsTotal.WithLabelValues("goal").Inc()
	s.log.LogRecordCommitted(ctx, s.userID, "goal", ref, core.FormatAmount(g.TargetAmount), "")
	return g, nil
}

func (s *Session) optionalDate(ctx context.Context, field, value string) core.Date {
	d, ok := core.ParseOptionalDate(value)
	if !ok {
		s.logger.WarnContext(ctx, "Ignoring malformed date",
			log.FieldUserID, s.userID,
			"field", field,
			"value", value)
	}
	return d
}

// FinancialAnalysis asks the model for a report on the whole ledger. The
// result, or the fallback text, is appended to the conversation.
func (s *Session) FinancialAnalysis(ctx context.Context) string {
	if s == nil {
		return LoginRequired
	}
	p := prompt.BuildAnalysisPrompt(s.Ledger(), s.now())
	return s.ask(ctx, FlowAnalysis, s.analysis, AnalysisQuery, p, AnalysisFallback)
}

// ChatResponse answers one user question with the ledger and conversation
// as context. The turn is appended whether the model answered or not.
func (s *Session) ChatResponse(ctx context.Context, query string) string {
	if s == nil {
		return LoginRequired
	}
	if strings.TrimSpace(query) == "" {
		return ChatFallback
	}
	s.refreshConversation(ctx)
	p := prompt.BuildChatPrompt(query, s.Ledger(), s.conv.Window(s.window), s.now())
	return s.ask(ctx, FlowChat, s.chat, query, p, ChatFallback)
}

// ask runs the advice call and the conversation append detached from ctx's
// cancellation. If ctx ends first the caller gets the fallback while the
// call still completes and its turn is still appended.
func (s *Session) ask(ctx context.Context, flow string, client advice.Client, query, p, fallback string) string {
	done := make(chan string, 1)
	detached := context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		out, err := client.Complete(detached, p)
		out = strings.TrimSpace(out)
		if err == nil && out == "" {
			err = fmt.Errorf("%w: empty response", advice.ErrUnknown)
		}
		s.log.LogAdvice(detached, s.userID, flow, advice.Outcome(err), len(p), err)
		if err != nil {
			out = fallback
		}

		turn := core.ConversationTurn{Query: query, Response: out, OccurredAt: s.now()}
		if err := s.conv.Append(detached, turn); err != nil {
			s.log.LogError(detached, "Failed to append conversation turn", err,
				log.ComponentSession, log.OpAppend, log.NewFields().WithUser(s.userID))
		}
		done <- out
	}()

	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		s.logger.WarnContext(detached, "Advice request abandoned by caller",
			log.FieldUserID, s.userID,
			log.FieldAdviceFlow, flow,
			log.FieldError, ctx.Err())
		return fallback
	}
}

// Wait blocks until every advice call started by this session has finished.
func (s *Session) Wait() {
	s.inflight.Wait()
}
