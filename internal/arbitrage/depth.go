// Package arbitrage holds the pure math of the funding-rate arbitrage: the
// depth-weighted quoting walk, the effective-rate comparison, and the bps
// helpers. Nothing in this package performs I/O.
package arbitrage

import (
	"fmt"

	"github.com/perpflow/fundarb/internal/domain"
)

// depthRelEpsilon bounds the residual notional tolerated after walking the
// whole book, relative to the requested amount. It only absorbs float
// accumulation error from the final partial fill.
const depthRelEpsilon = 1e-9

// QuoteSide computes the price a market order of `amount` quote currency
// would realize against one side of a book, walking levels best-first.
// referencePrice (usually the mid price) anchors the slippage figure and
// feeRate is the venue's taker fee, carried through into the Quote.
//
// Returns domain.ErrEmptyOrderBook on an empty side and
// domain.ErrInsufficientDepth when the side's total depth cannot cover amount.
func QuoteSide(venue domain.Venue, side domain.BookSide, amount, referencePrice, feeRate float64) (domain.Quote, error) {
	if amount <= 0 {
		return domain.Quote{}, fmt.Errorf("arbitrage: amount must be positive, got %v", amount)
	}
	if len(side) == 0 {
		return domain.Quote{}, fmt.Errorf("arbitrage: quote %s: %w", venue, domain.ErrEmptyOrderBook)
	}

	remaining := amount
	var totalCost, totalQty float64

	for _, level := range side {
		levelNotional := level.Notional()
		if levelNotional > remaining {
			// Partial take from this level.
			qty := remaining / level.Price
			totalCost += qty * level.Price
			totalQty += qty
			remaining -= qty * level.Price
			break
		}
		totalCost += levelNotional
		totalQty += level.Size
		remaining -= levelNotional
	}

	if remaining > amount*depthRelEpsilon {
		return domain.Quote{}, fmt.Errorf("arbitrage: quote %s: %w", venue, domain.ErrInsufficientDepth)
	}

	executionPrice := totalCost / totalQty

	return domain.Quote{
		Venue:                  venue,
		ExpectedExecutionPrice: executionPrice,
		ReferencePrice:         referencePrice,
		Slippage:               PctDiff(executionPrice, referencePrice),
		PlatformFee:            feeRate,
		RealizedSize:           totalQty,
	}, nil
}

// QuoteBook quotes a market order against ob: bids when sell is true, asks
// otherwise. The reference price is the book's mid price.
func QuoteBook(ob domain.Orderbook, amount, feeRate float64, sell bool) (domain.Quote, error) {
	mid, ok := ob.MidPrice()
	if !ok {
		return domain.Quote{}, fmt.Errorf("arbitrage: quote %s %s: %w", ob.Venue, ob.Symbol, domain.ErrEmptyOrderBook)
	}
	return QuoteSide(ob.Venue, ob.Side(sell), amount, mid, feeRate)
}
