// Package executor drives the dual-leg arbitrage flow: quote both venues,
// trim the size to the coarser lot step, submit matching market orders on
// both venues at once, and reconcile the fills against the quotes.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/perpflow/fundarb/internal/arbitrage"
	"github.com/perpflow/fundarb/internal/domain"
)

// Notification event types emitted by the engine.
const (
	EventExecution  = "execution"
	EventPartialLeg = "partial_leg"
)

// Config tunes the engine. Zero values fall back to the defaults below.
type Config struct {
	// MaxSlippageBps aborts an execution before any order is sent when the
	// combined quoted slippage of both legs exceeds this bound.
	MaxSlippageBps float64

	// QuoteTimeout bounds the funding-rate and order-book fetches.
	QuoteTimeout time.Duration

	// SubmitTimeout bounds each leg's order submission individually.
	SubmitTimeout time.Duration

	// LockTTL is how long the per-symbol execution lock is held at most.
	LockTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxSlippageBps <= 0 {
		c.MaxSlippageBps = 50
	}
	if c.QuoteTimeout <= 0 {
		c.QuoteTimeout = 10 * time.Second
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 15 * time.Second
	}
	if c.LockTTL <= 0 {
		c.LockTTL = time.Minute
	}
	return c
}

// Alerter delivers operator notifications. Implemented by notify.Notifier.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Engine is the dual-leg trade orchestrator. One Engine is safe for
// concurrent use; every operation owns its own quotes and fills.
type Engine struct {
	binance     domain.VenueClient
	hyperliquid domain.VenueClient
	cfg         Config
	locks       domain.LockManager
	alerts      Alerter
	logger      *slog.Logger
}

// New creates an Engine over the two venue clients.
func New(binance, hyperliquid domain.VenueClient, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		binance:     binance,
		hyperliquid: hyperliquid,
		cfg:         cfg.withDefaults(),
		logger:      logger.With(slog.String("component", "executor")),
	}
}

// SetLockManager enables per-symbol execution locking for Enter and Exit.
func (e *Engine) SetLockManager(lm domain.LockManager) { e.locks = lm }

// SetAlerter enables operator notifications on fills and partial failures.
func (e *Engine) SetAlerter(a Alerter) { e.alerts = a }

func (e *Engine) client(v domain.Venue) domain.VenueClient {
	if v == domain.VenueBinance {
		return e.binance
	}
	return e.hyperliquid
}

// CompareFundingRates fetches both venues' hourly funding snapshots
// concurrently and returns the joined set ranked by effective rate.
func (e *Engine) CompareFundingRates(ctx context.Context) ([]domain.JointFundingRate, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.QuoteTimeout)
	defer cancel()

	var binanceRates, hlRates []domain.FundingSnapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		binanceRates, err = e.binance.FetchHourlyFundingRates(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		hlRates, err = e.hyperliquid.FetchHourlyFundingRates(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("executor: compare funding rates: %w", err)
	}

	return arbitrage.Join(binanceRates, hlRates), nil
}

// LegQuotes is the output of Quote: the funding decision plus one quote per
// leg, each priced against half the requested notional.
type LegQuotes struct {
	Symbol     string
	Joint      domain.JointFundingRate
	ShortVenue domain.Venue

	// Short is the sell leg's quote, Long the buy leg's.
	Short domain.Quote
	Long  domain.Quote
}

// Quote decides which venue takes the short leg from the current funding
// rates and prices an entry of notional USD split evenly across both legs.
func (e *Engine) Quote(ctx context.Context, symbol string, notional float64) (LegQuotes, error) {
	joined, err := e.CompareFundingRates(ctx)
	if err != nil {
		return LegQuotes{}, err
	}
	joint, err := arbitrage.Find(joined, symbol)
	if err != nil {
		return LegQuotes{}, err
	}

	shortVenue := arbitrage.ShortVenue(joint)
	buyQuote, sellQuote, err := e.quoteLegs(ctx, symbol, notional, shortVenue.Other(), shortVenue)
	if err != nil {
		return LegQuotes{}, err
	}

	e.logger.InfoContext(ctx, "quoted both legs",
		slog.String("symbol", symbol),
		slog.String("short_venue", string(shortVenue)),
		slog.Float64("short_px", sellQuote.ExpectedExecutionPrice),
		slog.Float64("long_px", buyQuote.ExpectedExecutionPrice),
	)

	return LegQuotes{
		Symbol:     symbol,
		Joint:      joint,
		ShortVenue: shortVenue,
		Short:      sellQuote,
		Long:       buyQuote,
	}, nil
}

// quoteLegs fetches both venues' books concurrently (a join barrier: sizing
// never starts before both snapshots are in) and prices half the notional on
// each side. The buy leg walks asks, the sell leg walks bids.
func (e *Engine) quoteLegs(ctx context.Context, symbol string, notional float64, buyVenue, sellVenue domain.Venue) (buyQuote, sellQuote domain.Quote, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.QuoteTimeout)
	defer cancel()

	var buyBook, sellBook domain.Orderbook
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		buyBook, err = e.client(buyVenue).FetchOrderBook(gctx, symbol)
		return err
	})
	g.Go(func() error {
		var err error
		sellBook, err = e.client(sellVenue).FetchOrderBook(gctx, symbol)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Quote{}, domain.Quote{}, fmt.Errorf("executor: fetch books %s: %w", symbol, err)
	}

	half := notional / 2
	buyQuote, err = arbitrage.QuoteBook(buyBook, half, e.client(buyVenue).TakerFee(), false)
	if err != nil {
		return domain.Quote{}, domain.Quote{}, err
	}
	sellQuote, err = arbitrage.QuoteBook(sellBook, half, e.client(sellVenue).TakerFee(), true)
	if err != nil {
		return domain.Quote{}, domain.Quote{}, err
	}
	return buyQuote, sellQuote, nil
}

// Enter opens a delta-matched position of notional USD in symbol: short on
// the venue paying the better funding, long on the other.
func (e *Engine) Enter(ctx context.Context, symbol string, notional float64) (*ExecutionReport, error) {
	startedAt := time.Now().UTC()

	unlock, err := e.lock(ctx, symbol)
	if err != nil {
		return nil, err
	}
	defer unlock()

	lq, err := e.Quote(ctx, symbol, notional)
	if err != nil {
		return nil, err
	}
	if err := e.checkSlippage(symbol, lq.Long, lq.Short); err != nil {
		return nil, err
	}

	size, err := e.trimmedSize(ctx, symbol, lq.Short.RealizedSize)
	if err != nil {
		return nil, err
	}

	buyFill, sellFill, err := e.submitBothLegs(ctx, symbol, size, lq.Long.Venue, lq.Short.Venue)
	if err != nil {
		return nil, err
	}

	report := buildReport(symbol, ActionEnter, size, lq.Long, lq.Short, buyFill, sellFill, startedAt)
	e.finish(ctx, report)
	return report, nil
}

// Exit closes an existing two-sided position in symbol. The exit size is
// derived from the requested notional but capped at the smaller of the two
// open position sizes; sides are the reverse of each venue's exposure. A
// notional of zero closes the whole pair.
func (e *Engine) Exit(ctx context.Context, symbol string, notional float64) (*ExecutionReport, error) {
	startedAt := time.Now().UTC()

	unlock, err := e.lock(ctx, symbol)
	if err != nil {
		return nil, err
	}
	defer unlock()

	shortPos, longPos, err := e.findPositionPair(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if notional <= 0 {
		// Close everything: quote the full pair at entry-price notional.
		// A stale entry price only shifts the quoted amount; the position
		// cap below still bounds the submitted size.
		notional = 2 * math.Min(shortPos.Size, longPos.Size) * math.Max(shortPos.EntryPrice, longPos.EntryPrice)
		if notional <= 0 {
			return nil, fmt.Errorf("executor: exit %s: nothing left to close", symbol)
		}
	}

	// Closing buys back the short and sells the long.
	buyVenue, sellVenue := shortPos.Venue, longPos.Venue
	buyQuote, sellQuote, err := e.quoteLegs(ctx, symbol, notional, buyVenue, sellVenue)
	if err != nil {
		return nil, err
	}
	if err := e.checkSlippage(symbol, buyQuote, sellQuote); err != nil {
		return nil, err
	}

	size, err := e.trimmedSize(ctx, symbol, sellQuote.RealizedSize)
	if err != nil {
		return nil, err
	}
	if cap := math.Min(shortPos.Size, longPos.Size); size > cap {
		step, stepErr := e.coarserLotStep(ctx, symbol)
		if stepErr != nil {
			return nil, stepErr
		}
		size = FloorToStep(cap, step)
		e.logger.InfoContext(ctx, "exit size capped at open position",
			slog.String("symbol", symbol), slog.Float64("size", size))
	}
	if size <= 0 {
		return nil, fmt.Errorf("executor: exit %s: nothing left to close", symbol)
	}

	buyFill, sellFill, err := e.submitBothLegs(ctx, symbol, size, buyVenue, sellVenue)
	if err != nil {
		return nil, err
	}

	report := buildReport(symbol, ActionExit, size, buyQuote, sellQuote, buyFill, sellFill, startedAt)
	e.finish(ctx, report)
	return report, nil
}

func (e *Engine) lock(ctx context.Context, symbol string) (func(), error) {
	if e.locks == nil {
		return func() {}, nil
	}
	unlock, err := e.locks.Acquire(ctx, "exec:"+symbol, e.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("executor: %s: %w", symbol, err)
	}
	return unlock, nil
}

func (e *Engine) checkSlippage(symbol string, buyQuote, sellQuote domain.Quote) error {
	total := arbitrage.Bps(buyQuote.Slippage + sellQuote.Slippage)
	if total > e.cfg.MaxSlippageBps {
		return fmt.Errorf("executor: %s: quoted slippage %.4f bps exceeds limit %.4f bps",
			symbol, total, e.cfg.MaxSlippageBps)
	}
	return nil
}

// trimmedSize rounds the quoted size to the coarser of the two venues' lot
// steps. The same size goes to both legs so they stay delta-matched.
func (e *Engine) trimmedSize(ctx context.Context, symbol string, quotedSize float64) (float64, error) {
	step, err := e.coarserLotStep(ctx, symbol)
	if err != nil {
		return 0, err
	}
	size := TrimToStep(quotedSize, step)
	if size <= 0 {
		return 0, fmt.Errorf("executor: %s: quoted size %v trims to zero at step %v", symbol, quotedSize, step)
	}
	e.logger.DebugContext(ctx, "trimmed order size",
		slog.String("symbol", symbol),
		slog.Float64("quoted", quotedSize),
		slog.Float64("step", step),
		slog.Float64("size", size),
	)
	return size, nil
}

func (e *Engine) coarserLotStep(ctx context.Context, symbol string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.QuoteTimeout)
	defer cancel()

	var binanceStep, hlStep float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		binanceStep, err = e.binance.LotStepSize(gctx, symbol)
		return err
	})
	g.Go(func() error {
		var err error
		hlStep, err = e.hyperliquid.LotStepSize(gctx, symbol)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("executor: lot step %s: %w", symbol, err)
	}
	return coarserStep(binanceStep, hlStep), nil
}

type legOutcome struct {
	venue domain.Venue
	isBuy bool
	fill  domain.OrderFill
	err   error
}

// submitBothLegs fires one market order per venue in its own goroutine and
// waits for both. The two submissions are deliberately not tied to a shared
// cancellable group: a leg that already reached a live venue must be allowed
// to finish even when its sibling has failed, otherwise a fill could go
// unreported.
func (e *Engine) submitBothLegs(ctx context.Context, symbol string, size float64, buyVenue, sellVenue domain.Venue) (buyFill, sellFill domain.OrderFill, err error) {
	e.logger.InfoContext(ctx, "submitting both legs",
		slog.String("symbol", symbol),
		slog.Float64("size", size),
		slog.String("buy_venue", string(buyVenue)),
		slog.String("sell_venue", string(sellVenue)),
	)

	results := make(chan legOutcome, 2)
	submit := func(venue domain.Venue, isBuy bool) {
		legCtx, cancel := context.WithTimeout(ctx, e.cfg.SubmitTimeout)
		defer cancel()
		fill, err := e.client(venue).SubmitMarketOrder(legCtx, symbol, size, isBuy)
		results <- legOutcome{venue: venue, isBuy: isBuy, fill: fill, err: err}
	}
	go submit(buyVenue, true)
	go submit(sellVenue, false)

	var filled []domain.OrderFill
	var failed []legOutcome
	for i := 0; i < 2; i++ {
		out := <-results
		if out.err != nil {
			failed = append(failed, out)
			continue
		}
		filled = append(filled, out.fill)
		if out.isBuy {
			buyFill = out.fill
		} else {
			sellFill = out.fill
		}
	}

	switch len(failed) {
	case 0:
		return buyFill, sellFill, nil
	case 1:
		perr := &PartialLegError{
			Symbol:      symbol,
			FailedVenue: failed[0].venue,
			Filled:      filled,
			Err:         failed[0].err,
		}
		e.logger.ErrorContext(ctx, "one leg failed", slog.String("error", perr.Error()))
		e.alert(ctx, EventPartialLeg, "Partial leg failure", perr.Error())
		return domain.OrderFill{}, domain.OrderFill{}, perr
	default:
		return domain.OrderFill{}, domain.OrderFill{}, fmt.Errorf(
			"executor: %s: both legs failed: %w; %w", symbol, failed[0].err, failed[1].err)
	}
}

func (e *Engine) finish(ctx context.Context, report *ExecutionReport) {
	e.logger.InfoContext(ctx, "execution reconciled",
		slog.String("id", report.ID),
		slog.String("symbol", report.Symbol),
		slog.String("action", string(report.Action)),
		slog.Float64("size", report.Size),
		slog.Float64("quoted_slippage_bps", report.QuotedSlippageBps),
		slog.Float64("realized_slippage_bps", report.RealizedSlippageBps),
		slog.Float64("quoted_spread_bps", report.QuotedSpreadBps),
		slog.Float64("realized_spread_bps", report.RealizedSpreadBps),
	)
	e.alert(ctx, EventExecution, fmt.Sprintf("%s %s filled", report.Symbol, report.Action),
		fmt.Sprintf("size %.6f, realized spread %.2f bps (quoted %.2f)",
			report.Size, report.RealizedSpreadBps, report.QuotedSpreadBps))
}

func (e *Engine) alert(ctx context.Context, event, title, message string) {
	if e.alerts == nil {
		return
	}
	if err := e.alerts.Notify(ctx, event, title, message); err != nil {
		e.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event), slog.String("error", err.Error()))
	}
}

// findPositionPair locates symbol's open position on each venue and returns
// them as (short, long). A one-sided or missing position is an error: the
// engine only ever closes delta-matched pairs.
func (e *Engine) findPositionPair(ctx context.Context, symbol string) (shortPos, longPos domain.Position, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.QuoteTimeout)
	defer cancel()

	var binancePos, hlPos []domain.Position
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		binancePos, err = e.binance.OpenPositions(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		hlPos, err = e.hyperliquid.OpenPositions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Position{}, domain.Position{}, fmt.Errorf("executor: open positions: %w", err)
	}

	var found []domain.Position
	for _, p := range append(binancePos, hlPos...) {
		if p.Symbol == symbol {
			found = append(found, p)
		}
	}
	if len(found) != 2 {
		return domain.Position{}, domain.Position{}, fmt.Errorf(
			"executor: exit %s: expected an open position on both venues, found %d", symbol, len(found))
	}
	if found[0].Direction == found[1].Direction {
		return domain.Position{}, domain.Position{}, fmt.Errorf(
			"executor: exit %s: both positions are %s, not a hedged pair", symbol, found[0].Direction)
	}
	if found[0].Direction == domain.DirectionShort {
		return found[0], found[1], nil
	}
	return found[1], found[0], nil
}
