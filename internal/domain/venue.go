// Package domain defines the value objects exchanged between the quoting
// engine, the funding-rate comparator, the dual-leg executor, and the venue
// adapters. All types here are plain values owned by the call that produced
// them; nothing is shared across goroutines.
package domain

import (
	"context"
	"time"
)

// Venue identifies one of the two perpetual-futures platforms being arbitraged.
type Venue string

const (
	VenueBinance     Venue = "binance"
	VenueHyperliquid Venue = "hyperliquid"
)

// Other returns the opposite venue.
func (v Venue) Other() Venue {
	if v == VenueBinance {
		return VenueHyperliquid
	}
	return VenueBinance
}

// VenueClient is the narrow boundary behind which all per-venue API plumbing
// (HTTP signing, JSON mapping, symbol formatting) lives. The core engine only
// ever talks to a venue through this interface.
//
// Every method must honour ctx cancellation and return within a bounded time;
// implementations are expected to carry their own HTTP timeouts on top.
type VenueClient interface {
	// Name returns the venue this client talks to.
	Name() Venue

	// FetchOrderBook returns the current bids and asks for symbol.
	// Fails with ErrVenueUnavailable on transport errors and
	// ErrMalformedResponse on schema mismatches.
	FetchOrderBook(ctx context.Context, symbol string) (Orderbook, error)

	// FetchHourlyFundingRates returns a snapshot of all tradable perp
	// symbols on the venue with their funding rate normalised to hourly.
	FetchHourlyFundingRates(ctx context.Context) ([]FundingSnapshot, error)

	// SubmitMarketOrder places a market order for size tokens and blocks
	// until the venue confirms the fill. Fails with ErrOrderRejected or
	// ErrVenueUnavailable.
	SubmitMarketOrder(ctx context.Context, symbol string, size float64, isBuy bool) (OrderFill, error)

	// LotStepSize returns the minimum order-size increment for symbol.
	LotStepSize(ctx context.Context, symbol string) (float64, error)

	// OpenPositions returns the account's open perp positions.
	OpenPositions(ctx context.Context) ([]Position, error)

	// AccountBalance returns the account's collateral balance in USD terms.
	AccountBalance(ctx context.Context) (Balance, error)

	// FundingHistory returns the funding rates paid over the past days for
	// symbol, most recent first.
	FundingHistory(ctx context.Context, symbol string, days int) ([]FundingPayment, error)

	// TakerFee returns the venue's taker fee as a decimal fraction.
	TakerFee() float64
}

// LockManager serialises executions that must not run concurrently, keyed by
// an arbitrary string (the executor uses the token symbol). Acquire returns an
// unlock function on success and ErrLockHeld when another holder owns the key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
