package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpflow/fundarb/internal/domain"
)

// stubVenue is an in-memory domain.VenueClient for orchestrator tests.
type stubVenue struct {
	name      domain.Venue
	book      domain.Orderbook
	rates     []domain.FundingSnapshot
	step      float64
	positions []domain.Position
	fillPrice float64
	submitErr error

	mu        sync.Mutex
	submitted []domain.OrderFill
}

func (s *stubVenue) Name() domain.Venue { return s.name }

func (s *stubVenue) FetchOrderBook(_ context.Context, symbol string) (domain.Orderbook, error) {
	ob := s.book
	ob.Venue = s.name
	ob.Symbol = symbol
	return ob, nil
}

func (s *stubVenue) FetchHourlyFundingRates(context.Context) ([]domain.FundingSnapshot, error) {
	return s.rates, nil
}

func (s *stubVenue) SubmitMarketOrder(_ context.Context, symbol string, size float64, isBuy bool) (domain.OrderFill, error) {
	if s.submitErr != nil {
		return domain.OrderFill{}, s.submitErr
	}
	fill := domain.OrderFill{
		Symbol:   symbol,
		Venue:    s.name,
		Side:     domain.SideFor(isBuy),
		Size:     size,
		AvgPrice: s.fillPrice,
	}
	s.mu.Lock()
	s.submitted = append(s.submitted, fill)
	s.mu.Unlock()
	return fill, nil
}

func (s *stubVenue) LotStepSize(context.Context, string) (float64, error) { return s.step, nil }

func (s *stubVenue) OpenPositions(context.Context) ([]domain.Position, error) {
	return s.positions, nil
}

func (s *stubVenue) AccountBalance(context.Context) (domain.Balance, error) {
	return domain.Balance{Venue: s.name}, nil
}

func (s *stubVenue) FundingHistory(context.Context, string, int) ([]domain.FundingPayment, error) {
	return nil, nil
}

func (s *stubVenue) TakerFee() float64 { return 0.0005 }

func (s *stubVenue) submittedFills() []domain.OrderFill {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OrderFill(nil), s.submitted...)
}

func deepBook() domain.Orderbook {
	return domain.Orderbook{
		Bids: domain.BookSide{{Price: 100, Size: 50}, {Price: 99, Size: 50}},
		Asks: domain.BookSide{{Price: 101, Size: 50}, {Price: 102, Size: 50}},
	}
}

func testEngine(binance, hyperliquid *stubVenue, cfg Config) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(binance, hyperliquid, cfg, logger)
}

func newStubs() (*stubVenue, *stubVenue) {
	binance := &stubVenue{
		name:      domain.VenueBinance,
		book:      deepBook(),
		rates:     []domain.FundingSnapshot{{Symbol: "ETH", HourlyRate: 0.0004, MarkPrice: 100.5}},
		step:      0.1,
		fillPrice: 100,
	}
	hyperliquid := &stubVenue{
		name:      domain.VenueHyperliquid,
		book:      deepBook(),
		rates:     []domain.FundingSnapshot{{Symbol: "ETH", HourlyRate: -0.0001, OpenInterest: 1e6}},
		step:      0.5,
		fillPrice: 101,
	}
	return binance, hyperliquid
}

func TestQuotePicksShortVenueAndSplitsNotional(t *testing.T) {
	binance, hyperliquid := newStubs()
	e := testEngine(binance, hyperliquid, Config{MaxSlippageBps: 500})

	lq, err := e.Quote(context.Background(), "ETH", 400)
	require.NoError(t, err)

	// Binance pays the algebraically larger rate and takes the short leg.
	assert.Equal(t, domain.VenueBinance, lq.ShortVenue)
	assert.Equal(t, domain.VenueBinance, lq.Short.Venue)
	assert.Equal(t, domain.VenueHyperliquid, lq.Long.Venue)

	// Each leg is priced against half the notional.
	assert.InDelta(t, 2.0, lq.Short.RealizedSize, 1e-9)          // 200 USD of 100-bids
	assert.InDelta(t, 200.0/101.0, lq.Long.RealizedSize, 1e-9)   // 200 USD of 101-asks
	assert.InDelta(t, 0.0005, lq.Joint.EffectiveRate, 1e-12)
}

func TestQuoteUnknownToken(t *testing.T) {
	binance, hyperliquid := newStubs()
	e := testEngine(binance, hyperliquid, Config{})

	_, err := e.Quote(context.Background(), "DOGE", 400)
	require.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestEnterSubmitsMatchedLegs(t *testing.T) {
	binance, hyperliquid := newStubs()
	e := testEngine(binance, hyperliquid, Config{MaxSlippageBps: 500})

	report, err := e.Enter(context.Background(), "ETH", 400)
	require.NoError(t, err)

	// Short quote realizes 2.0 tokens; the coarser step (0.5) keeps it at 2.0.
	assert.InDelta(t, 2.0, report.Size, 1e-9)
	assert.Equal(t, ActionEnter, report.Action)

	bFills := binance.submittedFills()
	hlFills := hyperliquid.submittedFills()
	require.Len(t, bFills, 1)
	require.Len(t, hlFills, 1)

	// Both legs carry the same trimmed size, opposite sides.
	assert.Equal(t, domain.SideSell, bFills[0].Side)
	assert.Equal(t, domain.SideBuy, hlFills[0].Side)
	assert.InDelta(t, bFills[0].Size, hlFills[0].Size, 1e-9)

	// Reconciliation: sold at 100, bought at 101.
	assert.Equal(t, domain.VenueHyperliquid, report.Buy.Venue)
	assert.Equal(t, domain.VenueBinance, report.Sell.Venue)
	assert.InDelta(t, -99.0, report.RealizedSpreadBps, 0.5)
	assert.NotEmpty(t, report.ID)
}

func TestEnterAbortsOnSlippageGuard(t *testing.T) {
	binance, hyperliquid := newStubs()
	// Combined quoted slippage is ~99.5 bps against the 100.5 mids.
	e := testEngine(binance, hyperliquid, Config{MaxSlippageBps: 10})

	_, err := e.Enter(context.Background(), "ETH", 400)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slippage")

	// The guard fires before anything reaches a venue.
	assert.Empty(t, binance.submittedFills())
	assert.Empty(t, hyperliquid.submittedFills())
}

func TestEnterPartialLegFailure(t *testing.T) {
	binance, hyperliquid := newStubs()
	hyperliquid.submitErr = domain.ErrOrderRejected
	e := testEngine(binance, hyperliquid, Config{MaxSlippageBps: 500})

	_, err := e.Enter(context.Background(), "ETH", 400)
	require.Error(t, err)

	var perr *PartialLegError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.VenueHyperliquid, perr.FailedVenue)
	require.Len(t, perr.Filled, 1, "the surviving fill must be reported")
	assert.Equal(t, domain.VenueBinance, perr.Filled[0].Venue)
	assert.ErrorIs(t, err, domain.ErrOrderRejected)

	// The filled binance leg is not unwound.
	assert.Len(t, binance.submittedFills(), 1)
}

func TestEnterBothLegsFailed(t *testing.T) {
	binance, hyperliquid := newStubs()
	binance.submitErr = domain.ErrVenueUnavailable
	hyperliquid.submitErr = domain.ErrOrderRejected
	e := testEngine(binance, hyperliquid, Config{MaxSlippageBps: 500})

	_, err := e.Enter(context.Background(), "ETH", 400)
	require.Error(t, err)

	var perr *PartialLegError
	assert.False(t, errors.As(err, &perr), "no partial error when nothing filled")
	assert.ErrorIs(t, err, domain.ErrVenueUnavailable)
	assert.ErrorIs(t, err, domain.ErrOrderRejected)
}

func TestExitCapsAtOpenPosition(t *testing.T) {
	binance, hyperliquid := newStubs()
	binance.positions = []domain.Position{
		{Venue: domain.VenueBinance, Symbol: "ETH", Direction: domain.DirectionShort, Size: 3},
	}
	hyperliquid.positions = []domain.Position{
		{Venue: domain.VenueHyperliquid, Symbol: "ETH", Direction: domain.DirectionLong, Size: 3},
	}
	e := testEngine(binance, hyperliquid, Config{MaxSlippageBps: 500})

	// 1000 USD would quote ~5 tokens per leg; the open pair only has 3.
	report, err := e.Exit(context.Background(), "ETH", 1000)
	require.NoError(t, err)
	assert.Equal(t, ActionExit, report.Action)
	assert.InDelta(t, 3.0, report.Size, 1e-9)

	// Closing reverses the exposure: buy back the binance short, sell the
	// hyperliquid long.
	bFills := binance.submittedFills()
	hlFills := hyperliquid.submittedFills()
	require.Len(t, bFills, 1)
	require.Len(t, hlFills, 1)
	assert.Equal(t, domain.SideBuy, bFills[0].Side)
	assert.Equal(t, domain.SideSell, hlFills[0].Side)
}

func TestExitZeroNotionalClosesWholePair(t *testing.T) {
	binance, hyperliquid := newStubs()
	binance.positions = []domain.Position{
		{Venue: domain.VenueBinance, Symbol: "ETH", Direction: domain.DirectionShort, Size: 1.5, EntryPrice: 100},
	}
	hyperliquid.positions = []domain.Position{
		{Venue: domain.VenueHyperliquid, Symbol: "ETH", Direction: domain.DirectionLong, Size: 1.5, EntryPrice: 101},
	}
	e := testEngine(binance, hyperliquid, Config{MaxSlippageBps: 500})

	report, err := e.Exit(context.Background(), "ETH", 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, report.Size, 1e-9)
}

func TestExitRequiresHedgedPair(t *testing.T) {
	binance, hyperliquid := newStubs()
	binance.positions = []domain.Position{
		{Venue: domain.VenueBinance, Symbol: "ETH", Direction: domain.DirectionShort, Size: 3},
	}
	e := testEngine(binance, hyperliquid, Config{MaxSlippageBps: 500})

	_, err := e.Exit(context.Background(), "ETH", 1000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both venues")
}

type stubLocks struct{ err error }

func (s stubLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	if s.err != nil {
		return nil, s.err
	}
	return func() {}, nil
}

func TestEnterRespectsExecutionLock(t *testing.T) {
	binance, hyperliquid := newStubs()
	e := testEngine(binance, hyperliquid, Config{MaxSlippageBps: 500})
	e.SetLockManager(stubLocks{err: domain.ErrLockHeld})

	_, err := e.Enter(context.Background(), "ETH", 400)
	require.ErrorIs(t, err, domain.ErrLockHeld)
	assert.Empty(t, binance.submittedFills())
}
