package maker

// engine.go — per-market scheduler and the central run loop.
//
// One goroutine per market serializes every decision for that market's
// two tokens. Push events and poll reconciles only mutate shared state
// and kick the owning worker; all quoting happens inside the worker under
// the market lock. Nothing in the decision path may terminate the
// process: transport errors are logged and retried next cycle.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polymaker/internal/domain"
	"github.com/alejandrodnm/polymaker/internal/ports"
)

const (
	defaultPollInterval    = 10 * time.Second
	defaultDecideInterval  = 2 * time.Second
	defaultRefreshInterval = 30 * time.Minute
	retryBackoff           = 5 * time.Second

	minPollInterval = 5 * time.Second
	maxPollInterval = 30 * time.Second
)

// Config holds configuration for the quoting engine.
type Config struct {
	PollInterval    time.Duration // snapshot reconcile cadence, clamped to [5s, 30s]
	DecideInterval  time.Duration // per-market fallback decision cadence
	RefreshInterval time.Duration // remote hyperparameter refresh cadence
	DepthBandPct    float64       // near-touch depth band for book summaries
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.PollInterval < minPollInterval {
		c.PollInterval = minPollInterval
	}
	if c.PollInterval > maxPollInterval {
		c.PollInterval = maxPollInterval
	}
	if c.DecideInterval <= 0 {
		c.DecideInterval = defaultDecideInterval
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = defaultRefreshInterval
	}
	return c
}

// Engine quotes a set of binary markets against the CLOB.
type Engine struct {
	cfg Config

	markets []domain.Market
	byToken map[string]domain.Market

	paramsMu sync.RWMutex
	params   map[string]domain.Hyperparameters

	books *BookStore
	state *StateStore
	risk  *RiskController
	life  *Lifecycle

	executor ports.OrderExecutor
	merger   ports.MergeExecutor
	provider ports.ParamsProvider
	bookFeed ports.BookFeed
	userFeed ports.UserFeed
	store    ports.EngineStorage

	// per-market serialization: lock guards the decision, kick coalesces
	// wake-ups from feeds and polls.
	locks map[string]*sync.Mutex
	kicks map[string]chan struct{}

	counters *activityCounters
}

// New assembles an engine over the given markets. Markets whose type has
// no valid hyperparameter row are excluded with a warning; an empty
// tradable set is an error because the engine would sit idle forever.
func New(
	cfg Config,
	markets []domain.Market,
	params map[string]domain.Hyperparameters,
	executor ports.OrderExecutor,
	merger ports.MergeExecutor,
	provider ports.ParamsProvider,
	bookFeed ports.BookFeed,
	userFeed ports.UserFeed,
	store ports.EngineStorage,
) (*Engine, error) {
	cfg = cfg.withDefaults()

	tradable, valid := filterTradable(markets, params)
	if len(tradable) == 0 {
		return nil, fmt.Errorf("engine: no tradable markets after hyperparameter validation")
	}

	state := NewStateStore()
	e := &Engine{
		cfg:      cfg,
		markets:  tradable,
		byToken:  make(map[string]domain.Market, len(tradable)*2),
		params:   valid,
		books:    NewBookStore(cfg.DepthBandPct),
		state:    state,
		risk:     NewRiskController(store),
		life:     NewLifecycle(executor, state),
		executor: executor,
		merger:   merger,
		provider: provider,
		bookFeed: bookFeed,
		userFeed: userFeed,
		store:    store,
		locks:    make(map[string]*sync.Mutex, len(tradable)),
		kicks:    make(map[string]chan struct{}, len(tradable)),
		counters: newActivityCounters(),
	}
	for _, mkt := range tradable {
		e.byToken[mkt.YesTokenID] = mkt
		e.byToken[mkt.NoTokenID] = mkt
		e.locks[mkt.ConditionID] = &sync.Mutex{}
		e.kicks[mkt.ConditionID] = make(chan struct{}, 1)
	}
	return e, nil
}

func filterTradable(markets []domain.Market, params map[string]domain.Hyperparameters) ([]domain.Market, map[string]domain.Hyperparameters) {
	valid := make(map[string]domain.Hyperparameters, len(params))
	for mt, h := range params {
		if err := h.Validate(); err != nil {
			slog.Warn("engine: dropping hyperparameter row", "market_type", mt, "err", err)
			continue
		}
		valid[mt] = h
	}

	tradable := make([]domain.Market, 0, len(markets))
	for _, mkt := range markets {
		if !mkt.Active || mkt.Closed {
			slog.Info("engine: skipping inactive market",
				"market", domain.TruncateQuestion(mkt.Question, mkt.ConditionID, 35))
			continue
		}
		if mkt.YesTokenID == "" || mkt.NoTokenID == "" {
			slog.Warn("engine: skipping market with missing token ids", "condition", mkt.ConditionID)
			continue
		}
		if _, ok := valid[mkt.MarketType]; !ok {
			slog.Warn("engine: skipping market, no valid hyperparameters for type",
				"market", domain.TruncateQuestion(mkt.Question, mkt.ConditionID, 35),
				"market_type", mkt.MarketType)
			continue
		}
		tradable = append(tradable, mkt)
	}
	return tradable, valid
}

// Run wires the feeds, starts the poll loop, the lease sweeper, and one
// worker goroutine per market, then blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	tokens := make([]string, 0, len(e.markets)*2)
	conditions := make([]string, 0, len(e.markets))
	for _, mkt := range e.markets {
		tokens = append(tokens, mkt.YesTokenID, mkt.NoTokenID)
		conditions = append(conditions, mkt.ConditionID)
	}

	e.bookFeed.OnSnapshot(func(tokenID string, bids, asks []domain.PriceLevel) {
		e.books.ApplySnapshot(tokenID, bids, asks)
		e.kickToken(tokenID)
	})
	e.bookFeed.OnDelta(func(tokenID string, side domain.Side, price, size float64) {
		e.books.ApplyDelta(tokenID, side, price, size)
		e.kickToken(tokenID)
	})
	e.bookFeed.OnReset(func() {
		slog.Warn("engine: book feed reconnected, invalidating resident books")
		e.books.InvalidateAll()
	})
	e.userFeed.OnEvent(e.handleUserEvent)

	if err := e.bookFeed.Subscribe(ctx, tokens); err != nil {
		return fmt.Errorf("engine: subscribe book feed: %w", err)
	}
	if err := e.userFeed.Subscribe(ctx, conditions); err != nil {
		return fmt.Errorf("engine: subscribe user feed: %w", err)
	}

	var wg sync.WaitGroup
	for _, mkt := range e.markets {
		wg.Add(1)
		go func(m domain.Market) {
			defer wg.Done()
			e.worker(ctx, m)
		}(mkt)
	}

	wg.Add(3)
	go func() { defer wg.Done(); e.pollLoop(ctx) }()
	go func() { defer wg.Done(); e.sweepLoop(ctx) }()
	go func() { defer wg.Done(); e.refreshLoop(ctx) }()

	slog.Info("engine: running",
		"markets", len(e.markets),
		"poll_interval", e.cfg.PollInterval,
		"decide_interval", e.cfg.DecideInterval,
	)

	<-ctx.Done()

	if err := e.bookFeed.Close(); err != nil {
		slog.Warn("engine: error closing book feed", "err", err)
	}
	if err := e.userFeed.Close(); err != nil {
		slog.Warn("engine: error closing user feed", "err", err)
	}
	wg.Wait()

	e.counters.flush(context.Background(), e.store)
	return ctx.Err()
}

// handleUserEvent folds one authenticated push event into local state.
// Push confirmations are authoritative: they clear the lease the
// optimistic write left behind.
func (e *Engine) handleUserEvent(ev domain.UserEvent) {
	switch ev.Type {
	case domain.UserEventFill:
		e.state.ApplyFill(ev.Fill)
		e.counters.addFill(ev.Fill)
		if e.store != nil {
			if err := e.store.SaveFill(context.Background(), ev.Fill); err != nil {
				slog.Warn("engine: error saving fill", "err", err)
			}
		}
		slog.Info("engine: fill",
			"token", ev.Fill.TokenID,
			"side", ev.Fill.Side,
			"price", ev.Fill.Price,
			"size", ev.Fill.Size,
		)
		e.kickToken(ev.Fill.TokenID)
	case domain.UserEventPlaced, domain.UserEventCancelled:
		e.state.ApplyOrderEvent(ev)
		e.kickToken(ev.Order.TokenID)
	}
}

// kickToken wakes the worker owning the token's market. Non-blocking: a
// pending kick already covers any number of further events.
func (e *Engine) kickToken(tokenID string) {
	mkt, ok := e.byToken[tokenID]
	if !ok {
		return
	}
	e.kickMarket(mkt.ConditionID)
}

func (e *Engine) kickMarket(conditionID string) {
	ch, ok := e.kicks[conditionID]
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// worker serializes all decisions for one market.
func (e *Engine) worker(ctx context.Context, mkt domain.Market) {
	ticker := time.NewTicker(e.cfg.DecideInterval)
	defer ticker.Stop()

	kick := e.kicks[mkt.ConditionID]
	for {
		select {
		case <-ctx.Done():
			return
		case <-kick:
			e.decide(ctx, mkt)
		case <-ticker.C:
			e.decide(ctx, mkt)
		}
	}
}

// decide runs one full decision cycle for a market: merge trigger first,
// then quote evaluation for each token under the market lock.
func (e *Engine) decide(ctx context.Context, mkt domain.Market) {
	lock := e.locks[mkt.ConditionID]
	lock.Lock()
	defer lock.Unlock()

	if ctx.Err() != nil {
		return
	}

	e.maybeMerge(ctx, mkt)

	params, ok := e.paramsFor(mkt.MarketType)
	if !ok {
		return
	}
	now := time.Now()
	riskOff := e.risk.IsRiskOff(mkt.ConditionID, now)

	for _, tokenID := range mkt.Tokens() {
		e.decideToken(ctx, mkt, tokenID, params, riskOff)
	}
}

func (e *Engine) decideToken(ctx context.Context, mkt domain.Market, tokenID string, params domain.Hyperparameters, riskOff bool) {
	book, hasBook := e.books.Summary(tokenID)

	in := QuoteInput{
		Book:       book,
		HasBook:    hasBook,
		Position:   e.state.Position(tokenID),
		Reverse:    e.state.Position(mkt.ReverseToken(tokenID)),
		Params:     params,
		RiskOff:    riskOff,
		Volatility: e.books.Volatility(tokenID),
	}
	if o, ok := e.state.Order(tokenID, domain.SideBuy); ok {
		in.BuyOrder = &o
	}
	if o, ok := e.state.Order(tokenID, domain.SideSell); ok {
		in.SellOrder = &o
	}

	dec := Evaluate(in)

	if dec.Liquidate {
		e.counters.addStopLoss()
		e.risk.OpenRiskOff(ctx, mkt.ConditionID, tokenID, time.Now(), dec.RiskOffHours)
		if err := e.life.Liquidate(ctx, tokenID, book.BestBid, in.Position.Size, mkt.NegRisk); err != nil {
			slog.Error("engine: liquidation failed", "token", tokenID, "err", err)
		}
		return
	}

	if dec.Buy != nil {
		placed, cancelled := e.life.ApplyQuote(ctx, *dec.Buy, mkt.NegRisk)
		e.counters.addOrders(placed, cancelled)
	}
	if dec.Sell != nil {
		placed, cancelled := e.life.ApplyQuote(ctx, *dec.Sell, mkt.NegRisk)
		e.counters.addOrders(placed, cancelled)
	}
}

// pollLoop reconciles local state against exchange snapshots. A failed
// fetch backs off a fixed 5s and leaves local state untouched.
func (e *Engine) pollLoop(ctx context.Context) {
	timer := time.NewTimer(e.cfg.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := e.pollOnce(ctx); err != nil {
			slog.Warn("engine: poll failed, backing off", "err", err)
			timer.Reset(retryBackoff)
			continue
		}
		timer.Reset(e.cfg.PollInterval)
	}
}

func (e *Engine) pollOnce(ctx context.Context) error {
	fetchedAt := time.Now()

	positions, err := e.executor.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("fetch positions: %w", err)
	}
	orders, err := e.executor.GetOpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("fetch open orders: %w", err)
	}

	e.state.ReconcilePositions(fetchedAt, positions)
	extras := e.state.ReconcileOrders(fetchedAt, orders)

	// Duplicate resting orders on one (token, side) are a failed-replace
	// remnant; keep the newest, cancel the rest.
	for _, o := range extras {
		if err := e.executor.CancelOrder(ctx, o.ExchangeID); err != nil {
			slog.Warn("engine: error cancelling duplicate order",
				"order", o.ExchangeID, "token", o.TokenID, "err", err)
		}
	}

	if e.store != nil {
		if err := e.store.SavePositionSnapshot(ctx, fetchedAt, e.state.Positions()); err != nil {
			slog.Warn("engine: error saving position snapshot", "err", err)
		}
	}

	e.counters.rollover(ctx, e.store)

	for _, mkt := range e.markets {
		e.kickMarket(mkt.ConditionID)
	}
	return nil
}

// sweepLoop expires stale leases so a lost confirmation cannot freeze a
// (token, side) slot forever.
func (e *Engine) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(leaseTimeout / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, lease := range e.state.SweepLeases(now) {
				slog.Warn("engine: lease expired without confirmation",
					"token", lease.TokenID,
					"side", lease.Side,
					"age", now.Sub(lease.RequestedAt).Round(time.Millisecond),
				)
				if e.store != nil {
					ev := domain.RiskEvent{
						Type:       domain.RiskEventLeaseExpired,
						TokenID:    lease.TokenID,
						Detail:     fmt.Sprintf("side=%s requested_at=%s", lease.Side, lease.RequestedAt.Format(time.RFC3339)),
						OccurredAt: now,
					}
					if err := e.store.SaveRiskEvent(ctx, ev); err != nil {
						slog.Warn("engine: error saving lease expiry", "err", err)
					}
				}
				e.kickToken(lease.TokenID)
			}
		}
	}
}

// refreshLoop re-fetches hyperparameters from the remote source. The
// market list stays fixed for the session; only tuning values move.
func (e *Engine) refreshLoop(ctx context.Context) {
	if e.provider == nil {
		return
	}
	ticker := time.NewTicker(e.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fresh, err := e.provider.FetchHyperparameters(ctx)
			if err != nil {
				slog.Warn("engine: hyperparameter refresh failed, keeping current", "err", err)
				continue
			}
			updated := 0
			e.paramsMu.Lock()
			for mt, h := range fresh {
				if err := h.Validate(); err != nil {
					slog.Warn("engine: dropping refreshed hyperparameter row", "market_type", mt, "err", err)
					continue
				}
				e.params[mt] = h
				updated++
			}
			e.paramsMu.Unlock()
			slog.Info("engine: hyperparameters refreshed", "rows", updated)
		}
	}
}

func (e *Engine) paramsFor(marketType string) (domain.Hyperparameters, bool) {
	e.paramsMu.RLock()
	defer e.paramsMu.RUnlock()
	h, ok := e.params[marketType]
	return h, ok
}

// activityCounters accumulates the current day's totals for the daily
// summary row. Flushed on shutdown and whenever the date rolls over.
type activityCounters struct {
	mu    sync.Mutex
	day   domain.DailySummary
	dirty bool
}

func newActivityCounters() *activityCounters {
	return &activityCounters{day: domain.DailySummary{Date: dateOf(time.Now())}}
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (c *activityCounters) addOrders(placed, cancelled int) {
	c.mu.Lock()
	c.day.OrdersPlaced += placed
	c.day.OrdersCancelled += cancelled
	c.dirty = c.dirty || placed > 0 || cancelled > 0
	c.mu.Unlock()
}

func (c *activityCounters) addFill(f domain.Fill) {
	c.mu.Lock()
	c.day.Fills++
	c.dirty = true
	c.mu.Unlock()
}

func (c *activityCounters) addMerge(volume float64) {
	c.mu.Lock()
	c.day.Merges++
	c.day.MergeVolume += volume
	c.dirty = true
	c.mu.Unlock()
}

func (c *activityCounters) addStopLoss() {
	c.mu.Lock()
	c.day.StopLosses++
	c.dirty = true
	c.mu.Unlock()
}

// rollover flushes the previous day's row once the UTC date changes.
func (c *activityCounters) rollover(ctx context.Context, store ports.EngineStorage) {
	c.mu.Lock()
	stale := !dateOf(time.Now()).Equal(c.day.Date)
	c.mu.Unlock()
	if stale {
		c.flush(ctx, store)
	}
}

// flush persists the accumulated day and resets for the next one.
func (c *activityCounters) flush(ctx context.Context, store ports.EngineStorage) {
	c.mu.Lock()
	day := c.day
	dirty := c.dirty
	c.day = domain.DailySummary{Date: dateOf(time.Now())}
	c.dirty = false
	c.mu.Unlock()

	if !dirty || store == nil {
		return
	}
	if err := store.SaveDailySummary(ctx, day); err != nil {
		slog.Warn("engine: error saving daily summary", "err", err)
	}
}
