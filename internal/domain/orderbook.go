package domain

// PriceLevel is a single price+size entry of an order book. Both fields are
// non-negative; size is denominated in tokens, price in the quote currency.
type PriceLevel struct {
	Price float64
	Size  float64
}

// Notional returns the quote-currency value resting at this level.
func (l PriceLevel) Notional() float64 {
	return l.Price * l.Size
}

// BookSide is one side of an order book ordered best price first (descending
// for bids, ascending for asks), exactly as returned by the venue. The engine
// trusts this ordering and never re-sorts.
type BookSide []PriceLevel

// TotalNotional returns the quote-currency depth of the whole side.
func (s BookSide) TotalNotional() float64 {
	var total float64
	for _, l := range s {
		total += l.Notional()
	}
	return total
}

// Orderbook is a point-in-time snapshot of both sides of a venue's book for
// one symbol. It is fetched fresh per quote request and discarded after use.
type Orderbook struct {
	Venue  Venue
	Symbol string
	Bids   BookSide
	Asks   BookSide
}

// MidPrice returns the average of the best bid and best ask, or false when
// either side is empty.
func (ob Orderbook) MidPrice() (float64, bool) {
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return 0, false
	}
	return (ob.Bids[0].Price + ob.Asks[0].Price) / 2, true
}

// Side returns the bids when sell is true, otherwise the asks. A market sell
// consumes bids; a market buy consumes asks.
func (ob Orderbook) Side(sell bool) BookSide {
	if sell {
		return ob.Bids
	}
	return ob.Asks
}
