// Package binance adapts Binance USDⓈ-M futures to the domain.VenueClient
// boundary using the adshao/go-binance SDK. Symbols cross this boundary in
// base form ("ETH"); the USDT-margined pair suffix stays inside this package.
package binance

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"github.com/perpflow/fundarb/internal/domain"
)

const (
	// depthLimit is the number of levels requested per book side.
	depthLimit = 100

	// defaultFundingIntervalHours applies when the venue does not report an
	// interval for a symbol.
	defaultFundingIntervalHours = 8.0

	// quoteAsset restricts the tradable universe to USDT-margined perps.
	quoteAsset = "USDT"
)

// Config holds the adapter's credentials and fee schedule.
type Config struct {
	APIKey    string
	APISecret string
	TakerFee  float64
}

// Client implements domain.VenueClient for Binance USDⓈ-M futures.
type Client struct {
	api    *futures.Client
	fee    float64
	logger *slog.Logger

	// exchangeInfo is fetched once and reused; lot steps do not move
	// within a process lifetime.
	mu    sync.Mutex
	steps map[string]float64
}

// New creates a Binance futures adapter.
func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		api:    futures.NewClient(cfg.APIKey, cfg.APISecret),
		fee:    cfg.TakerFee,
		logger: logger.With(slog.String("component", "binance")),
	}
}

// Name returns the venue identifier.
func (c *Client) Name() domain.Venue { return domain.VenueBinance }

// TakerFee returns the configured taker fee fraction.
func (c *Client) TakerFee() float64 { return c.fee }

func pair(symbol string) string { return symbol + quoteAsset }

func venueErr(op string, err error) error {
	return fmt.Errorf("binance: %s: %w: %w", op, domain.ErrVenueUnavailable, err)
}

func malformedErr(op string, err error) error {
	return fmt.Errorf("binance: %s: %w: %w", op, domain.ErrMalformedResponse, err)
}

// FetchOrderBook returns the current futures book for symbol, best price
// first on both sides.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string) (domain.Orderbook, error) {
	res, err := c.api.NewDepthService().Symbol(pair(symbol)).Limit(depthLimit).Do(ctx)
	if err != nil {
		return domain.Orderbook{}, venueErr("fetch order book "+symbol, err)
	}

	ob := domain.Orderbook{
		Venue:  domain.VenueBinance,
		Symbol: symbol,
		Bids:   make(domain.BookSide, 0, len(res.Bids)),
		Asks:   make(domain.BookSide, 0, len(res.Asks)),
	}
	for _, b := range res.Bids {
		price, qty, err := b.Parse()
		if err != nil {
			return domain.Orderbook{}, malformedErr("parse bid "+symbol, err)
		}
		ob.Bids = append(ob.Bids, domain.PriceLevel{Price: price, Size: qty})
	}
	for _, a := range res.Asks {
		price, qty, err := a.Parse()
		if err != nil {
			return domain.Orderbook{}, malformedErr("parse ask "+symbol, err)
		}
		ob.Asks = append(ob.Asks, domain.PriceLevel{Price: price, Size: qty})
	}
	return ob, nil
}

// FetchHourlyFundingRates snapshots the premium index for every USDT perp and
// normalises each funding rate to hourly terms using the per-symbol funding
// interval.
func (c *Client) FetchHourlyFundingRates(ctx context.Context) ([]domain.FundingSnapshot, error) {
	premium, err := c.api.NewPremiumIndexService().Do(ctx)
	if err != nil {
		return nil, venueErr("premium index", err)
	}
	intervals, err := c.fundingIntervals(ctx)
	if err != nil {
		return nil, err
	}

	snaps := make([]domain.FundingSnapshot, 0, len(premium))
	for _, p := range premium {
		if !strings.HasSuffix(p.Symbol, quoteAsset) {
			continue
		}
		rate, err := strconv.ParseFloat(p.LastFundingRate, 64)
		if err != nil {
			continue // symbols without a funding rate (delivery contracts)
		}
		mark, err := strconv.ParseFloat(p.MarkPrice, 64)
		if err != nil {
			return nil, malformedErr("parse mark price "+p.Symbol, err)
		}
		interval, ok := intervals[p.Symbol]
		if !ok {
			interval = defaultFundingIntervalHours
		}
		snaps = append(snaps, domain.FundingSnapshot{
			Symbol:     strings.TrimSuffix(p.Symbol, quoteAsset),
			HourlyRate: rate / interval,
			MarkPrice:  mark,
		})
	}
	return snaps, nil
}

func (c *Client) fundingIntervals(ctx context.Context) (map[string]float64, error) {
	infos, err := c.api.NewFundingRateInfoService().Do(ctx)
	if err != nil {
		return nil, venueErr("funding rate info", err)
	}
	intervals := make(map[string]float64, len(infos))
	for _, info := range infos {
		if info.FundingIntervalHours > 0 {
			intervals[info.Symbol] = float64(info.FundingIntervalHours)
		}
	}
	return intervals, nil
}

// LotStepSize returns the LOT_SIZE step for symbol's perp.
func (c *Client) LotStepSize(ctx context.Context, symbol string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.steps == nil {
		info, err := c.api.NewExchangeInfoService().Do(ctx)
		if err != nil {
			return 0, venueErr("exchange info", err)
		}
		c.steps = make(map[string]float64, len(info.Symbols))
		for _, s := range info.Symbols {
			f := s.LotSizeFilter()
			if f == nil {
				continue
			}
			step, err := strconv.ParseFloat(f.StepSize, 64)
			if err != nil {
				return 0, malformedErr("parse step size "+s.Symbol, err)
			}
			c.steps[s.Symbol] = step
		}
	}

	step, ok := c.steps[pair(symbol)]
	if !ok {
		return 0, fmt.Errorf("binance: lot step %s: %w", symbol, domain.ErrTokenNotFound)
	}
	return step, nil
}

// SubmitMarketOrder places a MARKET order and returns the confirmed fill.
func (c *Client) SubmitMarketOrder(ctx context.Context, symbol string, size float64, isBuy bool) (domain.OrderFill, error) {
	side := futures.SideTypeSell
	if isBuy {
		side = futures.SideTypeBuy
	}

	step, err := c.LotStepSize(ctx, symbol)
	if err != nil {
		return domain.OrderFill{}, err
	}

	res, err := c.api.NewCreateOrderService().
		Symbol(pair(symbol)).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(formatQuantity(size, step)).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT).
		Do(ctx)
	if err != nil {
		return domain.OrderFill{}, fmt.Errorf("binance: market order %s: %w: %w", symbol, domain.ErrOrderRejected, err)
	}

	filled, err := strconv.ParseFloat(res.ExecutedQuantity, 64)
	if err != nil {
		return domain.OrderFill{}, malformedErr("parse executed quantity "+symbol, err)
	}
	avgPrice, err := strconv.ParseFloat(res.AvgPrice, 64)
	if err != nil {
		return domain.OrderFill{}, malformedErr("parse avg price "+symbol, err)
	}

	c.logger.InfoContext(ctx, "market order filled",
		slog.String("symbol", symbol),
		slog.String("side", string(side)),
		slog.Float64("size", filled),
		slog.Float64("avg_price", avgPrice),
	)

	return domain.OrderFill{
		Symbol:   symbol,
		Venue:    domain.VenueBinance,
		Side:     domain.SideFor(isBuy),
		Size:     filled,
		AvgPrice: avgPrice,
	}, nil
}

// OpenPositions returns all non-flat futures positions.
func (c *Client) OpenPositions(ctx context.Context) ([]domain.Position, error) {
	risks, err := c.api.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, venueErr("position risk", err)
	}

	var positions []domain.Position
	for _, r := range risks {
		amt, err := strconv.ParseFloat(r.PositionAmt, 64)
		if err != nil || amt == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(r.EntryPrice, 64)
		pnl, _ := strconv.ParseFloat(r.UnRealizedProfit, 64)

		direction := domain.DirectionLong
		size := amt
		if amt < 0 {
			direction = domain.DirectionShort
			size = -amt
		}
		positions = append(positions, domain.Position{
			Venue:         domain.VenueBinance,
			Symbol:        strings.TrimSuffix(r.Symbol, quoteAsset),
			Direction:     direction,
			Size:          size,
			EntryPrice:    entry,
			UnrealizedPnL: pnl,
		})
	}
	return positions, nil
}

// AccountBalance returns the USDT futures wallet balance.
func (c *Client) AccountBalance(ctx context.Context) (domain.Balance, error) {
	balances, err := c.api.NewGetBalanceService().Do(ctx)
	if err != nil {
		return domain.Balance{}, venueErr("account balance", err)
	}
	for _, b := range balances {
		if b.Asset != quoteAsset {
			continue
		}
		total, err := strconv.ParseFloat(b.Balance, 64)
		if err != nil {
			return domain.Balance{}, malformedErr("parse balance", err)
		}
		available, _ := strconv.ParseFloat(b.AvailableBalance, 64)
		return domain.Balance{Venue: domain.VenueBinance, Total: total, Available: available}, nil
	}
	return domain.Balance{Venue: domain.VenueBinance}, nil
}

// FundingHistory returns symbol's funding observations over the past days,
// most recent first, normalised to hourly terms.
func (c *Client) FundingHistory(ctx context.Context, symbol string, days int) ([]domain.FundingPayment, error) {
	rates, err := c.api.NewFundingRateService().
		Symbol(pair(symbol)).
		Limit(days*6 + 6). // one payment per interval, intervals can be as short as 4h
		Do(ctx)
	if err != nil {
		return nil, venueErr("funding history "+symbol, err)
	}
	intervals, err := c.fundingIntervals(ctx)
	if err != nil {
		return nil, err
	}
	interval, ok := intervals[pair(symbol)]
	if !ok {
		interval = defaultFundingIntervalHours
	}

	since := time.Now().AddDate(0, 0, -days)
	var payments []domain.FundingPayment
	for i := len(rates) - 1; i >= 0; i-- {
		r := rates[i]
		at := time.UnixMilli(r.FundingTime)
		if at.Before(since) {
			continue
		}
		rate, err := strconv.ParseFloat(r.FundingRate, 64)
		if err != nil {
			return nil, malformedErr("parse funding rate "+symbol, err)
		}
		payments = append(payments, domain.FundingPayment{
			Venue:      domain.VenueBinance,
			Symbol:     symbol,
			HourlyRate: rate / interval,
			Time:       at,
		})
	}
	return payments, nil
}

// formatQuantity renders size with exactly the precision the lot step allows,
// so float dust from the trim never leaks into the request.
func formatQuantity(size, step float64) string {
	decimals := 0
	if step > 0 {
		s := strconv.FormatFloat(step, 'f', -1, 64)
		if i := strings.IndexByte(s, '.'); i >= 0 {
			decimals = len(s) - i - 1
		}
	}
	return strconv.FormatFloat(size, 'f', decimals, 64)
}
