// Package hyperliquid adapts the Hyperliquid perp DEX to the
// domain.VenueClient boundary. Market data comes from the public info
// endpoint; orders go through the signed exchange endpoint.
package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/perpflow/fundarb/internal/domain"
)

// MainnetURL is the default API root.
const MainnetURL = "https://api.hyperliquid.xyz"

// Config holds the adapter's endpoint, credentials and fee schedule.
type Config struct {
	BaseURL string

	// PrivateKey enables trading. Leave empty for read-only use together
	// with WalletAddress.
	PrivateKey string

	// WalletAddress is the account to query positions for when no private
	// key is configured.
	WalletAddress string

	TakerFee float64

	// MarketSlippage is the price band applied to the IoC limit order that
	// emulates a market order.
	MarketSlippage float64
}

// Client implements domain.VenueClient for Hyperliquid.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *Signer
	wallet     common.Address
	fee        float64
	slippage   float64
	logger     *slog.Logger

	// universe is fetched once; asset indexes and size decimals are fixed
	// per listing.
	mu       sync.Mutex
	universe []assetMeta
}

// New creates a Hyperliquid adapter. A private key is only required for
// SubmitMarketOrder; all other methods work unauthenticated.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	c := &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		fee:        cfg.TakerFee,
		slippage:   cfg.MarketSlippage,
		logger:     logger.With(slog.String("component", "hyperliquid")),
	}
	if c.baseURL == "" {
		c.baseURL = MainnetURL
	}
	if c.slippage <= 0 {
		c.slippage = 0.005
	}

	if cfg.PrivateKey != "" {
		signer, err := NewSigner(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		c.signer = signer
		c.wallet = signer.Address()
	} else if cfg.WalletAddress != "" {
		c.wallet = common.HexToAddress(cfg.WalletAddress)
	}
	return c, nil
}

// Name returns the venue identifier.
func (c *Client) Name() domain.Venue { return domain.VenueHyperliquid }

// TakerFee returns the configured taker fee fraction.
func (c *Client) TakerFee() float64 { return c.fee }

func venueErr(op string, err error) error {
	return fmt.Errorf("hyperliquid: %s: %w: %w", op, domain.ErrVenueUnavailable, err)
}

func malformedErr(op string, err error) error {
	return fmt.Errorf("hyperliquid: %s: %w: %w", op, domain.ErrMalformedResponse, err)
}

// post sends a JSON body to path and decodes the response into out.
func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("hyperliquid: marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("hyperliquid: create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return venueErr("post "+path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return venueErr("read "+path+" response", err)
	}
	if res.StatusCode != http.StatusOK {
		return venueErr(path, fmt.Errorf("status %d: %s", res.StatusCode, data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return malformedErr("decode "+path+" response", err)
	}
	return nil
}

func (c *Client) info(ctx context.Context, payload any, out any) error {
	return c.post(ctx, "/info", payload, out)
}

// FetchOrderBook returns the current L2 book for symbol, best price first on
// both sides.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string) (domain.Orderbook, error) {
	var res l2BookResponse
	err := c.info(ctx, map[string]string{"type": "l2Book", "coin": symbol}, &res)
	if err != nil {
		return domain.Orderbook{}, err
	}
	if len(res.Levels) != 2 {
		return domain.Orderbook{}, malformedErr("l2Book "+symbol, fmt.Errorf("expected 2 sides, got %d", len(res.Levels)))
	}

	parseSide := func(levels []bookLevel) (domain.BookSide, error) {
		side := make(domain.BookSide, 0, len(levels))
		for _, l := range levels {
			price, err := strconv.ParseFloat(l.Px, 64)
			if err != nil {
				return nil, malformedErr("parse level price "+symbol, err)
			}
			size, err := strconv.ParseFloat(l.Sz, 64)
			if err != nil {
				return nil, malformedErr("parse level size "+symbol, err)
			}
			side = append(side, domain.PriceLevel{Price: price, Size: size})
		}
		return side, nil
	}

	bids, err := parseSide(res.Levels[0])
	if err != nil {
		return domain.Orderbook{}, err
	}
	asks, err := parseSide(res.Levels[1])
	if err != nil {
		return domain.Orderbook{}, err
	}
	return domain.Orderbook{
		Venue:  domain.VenueHyperliquid,
		Symbol: symbol,
		Bids:   bids,
		Asks:   asks,
	}, nil
}

// FetchHourlyFundingRates snapshots funding, mark price and open interest for
// the whole perp universe. Hyperliquid funding is already hourly.
func (c *Client) FetchHourlyFundingRates(ctx context.Context) ([]domain.FundingSnapshot, error) {
	var raw []json.RawMessage
	if err := c.info(ctx, map[string]string{"type": "metaAndAssetCtxs"}, &raw); err != nil {
		return nil, err
	}
	if len(raw) != 2 {
		return nil, malformedErr("metaAndAssetCtxs", fmt.Errorf("expected 2 elements, got %d", len(raw)))
	}

	var meta metaResponse
	if err := json.Unmarshal(raw[0], &meta); err != nil {
		return nil, malformedErr("decode universe", err)
	}
	var ctxs []assetCtx
	if err := json.Unmarshal(raw[1], &ctxs); err != nil {
		return nil, malformedErr("decode asset contexts", err)
	}
	if len(ctxs) < len(meta.Universe) {
		return nil, malformedErr("metaAndAssetCtxs", fmt.Errorf("universe/context length mismatch"))
	}
	c.cacheUniverse(meta.Universe)

	snaps := make([]domain.FundingSnapshot, 0, len(meta.Universe))
	for i, asset := range meta.Universe {
		rate, err := strconv.ParseFloat(ctxs[i].Funding, 64)
		if err != nil {
			return nil, malformedErr("parse funding "+asset.Name, err)
		}
		mark, err := strconv.ParseFloat(ctxs[i].MarkPx, 64)
		if err != nil {
			return nil, malformedErr("parse mark price "+asset.Name, err)
		}
		oi, err := strconv.ParseFloat(ctxs[i].OpenInterest, 64)
		if err != nil {
			return nil, malformedErr("parse open interest "+asset.Name, err)
		}
		snaps = append(snaps, domain.FundingSnapshot{
			Symbol:       asset.Name,
			HourlyRate:   rate,
			MarkPrice:    mark,
			OpenInterest: oi * mark, // venue reports tokens; normalise to USD
		})
	}
	return snaps, nil
}

func (c *Client) cacheUniverse(universe []assetMeta) {
	c.mu.Lock()
	c.universe = universe
	c.mu.Unlock()
}

// asset resolves symbol to its universe index and size decimals.
func (c *Client) asset(ctx context.Context, symbol string) (index, szDecimals int, err error) {
	c.mu.Lock()
	universe := c.universe
	c.mu.Unlock()

	if universe == nil {
		var meta metaResponse
		if err := c.info(ctx, map[string]string{"type": "meta"}, &meta); err != nil {
			return 0, 0, err
		}
		c.cacheUniverse(meta.Universe)
		universe = meta.Universe
	}

	for i, a := range universe {
		if a.Name == symbol {
			return i, a.SzDecimals, nil
		}
	}
	return 0, 0, fmt.Errorf("hyperliquid: asset %s: %w", symbol, domain.ErrTokenNotFound)
}

// LotStepSize derives the minimum size increment from the asset's size
// decimals.
func (c *Client) LotStepSize(ctx context.Context, symbol string) (float64, error) {
	_, szDecimals, err := c.asset(ctx, symbol)
	if err != nil {
		return 0, err
	}
	step := 1.0
	for i := 0; i < szDecimals; i++ {
		step /= 10
	}
	return step, nil
}

// OpenPositions returns the wallet's open perp positions.
func (c *Client) OpenPositions(ctx context.Context) ([]domain.Position, error) {
	var res clearinghouseResponse
	err := c.info(ctx, map[string]string{"type": "clearinghouseState", "user": c.wallet.Hex()}, &res)
	if err != nil {
		return nil, err
	}

	var positions []domain.Position
	for _, ap := range res.AssetPositions {
		szi, err := strconv.ParseFloat(ap.Position.Szi, 64)
		if err != nil || szi == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(ap.Position.EntryPx, 64)
		pnl, _ := strconv.ParseFloat(ap.Position.UnrealizedPnl, 64)

		direction := domain.DirectionLong
		size := szi
		if szi < 0 {
			direction = domain.DirectionShort
			size = -szi
		}
		positions = append(positions, domain.Position{
			Venue:         domain.VenueHyperliquid,
			Symbol:        ap.Position.Coin,
			Direction:     direction,
			Size:          size,
			EntryPrice:    entry,
			UnrealizedPnL: pnl,
		})
	}
	return positions, nil
}

// AccountBalance returns the account value and withdrawable collateral.
func (c *Client) AccountBalance(ctx context.Context) (domain.Balance, error) {
	var res clearinghouseResponse
	err := c.info(ctx, map[string]string{"type": "clearinghouseState", "user": c.wallet.Hex()}, &res)
	if err != nil {
		return domain.Balance{}, err
	}
	total, err := strconv.ParseFloat(res.MarginSummary.AccountValue, 64)
	if err != nil {
		return domain.Balance{}, malformedErr("parse account value", err)
	}
	available, _ := strconv.ParseFloat(res.Withdrawable, 64)
	return domain.Balance{Venue: domain.VenueHyperliquid, Total: total, Available: available}, nil
}

// FundingHistory returns symbol's hourly funding observations over the past
// days, most recent first.
func (c *Client) FundingHistory(ctx context.Context, symbol string, days int) ([]domain.FundingPayment, error) {
	start := time.Now().AddDate(0, 0, -days).UnixMilli()
	var entries []fundingHistoryEntry
	err := c.info(ctx, map[string]any{"type": "fundingHistory", "coin": symbol, "startTime": start}, &entries)
	if err != nil {
		return nil, err
	}

	payments := make([]domain.FundingPayment, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		rate, err := strconv.ParseFloat(entries[i].FundingRate, 64)
		if err != nil {
			return nil, malformedErr("parse funding rate "+symbol, err)
		}
		payments = append(payments, domain.FundingPayment{
			Venue:      domain.VenueHyperliquid,
			Symbol:     symbol,
			HourlyRate: rate,
			Time:       time.UnixMilli(entries[i].Time),
		})
	}
	return payments, nil
}
