package domain

// Side indicates whether an order buys or sells the base token.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// SideFor returns SideBuy when isBuy is true, otherwise SideSell.
func SideFor(isBuy bool) Side {
	if isBuy {
		return SideBuy
	}
	return SideSell
}

// Quote is the output of the depth-weighted quoting engine for a single leg:
// the price a market order of the requested notional would realize against
// the current book, plus the costs of getting it.
type Quote struct {
	Venue Venue

	// ExpectedExecutionPrice is the volume-weighted price over the consumed
	// levels.
	ExpectedExecutionPrice float64

	// ReferencePrice is the mid price the slippage was measured against.
	ReferencePrice float64

	// Slippage is the unsigned relative deviation of the execution price
	// from the reference price (decimal fraction). Direction must be read
	// off the order side.
	Slippage float64

	// PlatformFee is the venue's taker fee (decimal fraction).
	PlatformFee float64

	// RealizedSize is the token quantity the notional buys at the expected
	// execution price.
	RealizedSize float64
}

// OrderFill is a confirmed fill reported by a venue after a market order. It
// is a terminal record and is never mutated.
type OrderFill struct {
	Symbol   string
	Venue    Venue
	Side     Side
	Size     float64
	AvgPrice float64
}
