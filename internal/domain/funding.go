package domain

import "time"

// FundingSnapshot is one venue's current view of a perp symbol: the funding
// rate normalised to hourly terms (signed, decimal fraction), the mark price,
// and the open interest in USD.
type FundingSnapshot struct {
	Symbol       string
	HourlyRate   float64
	MarkPrice    float64
	OpenInterest float64
}

// JointFundingRate pairs both venues' hourly funding rates for one symbol and
// carries the effective rate used to rank arbitrage opportunities. Symbols not
// listed on both venues never appear in a joint rate.
type JointFundingRate struct {
	Symbol                  string
	BinanceRate             float64
	BinanceMarkPrice        float64
	HyperliquidRate         float64
	HyperliquidOpenInterest float64
	EffectiveRate           float64
}

// FundingPayment is one historical funding observation for a symbol on one
// venue, used by the funding-history view.
type FundingPayment struct {
	Venue      Venue
	Symbol     string
	HourlyRate float64
	Time       time.Time
}

// MarkPriceUpdate is one streamed mark-price tick. FundingRate is the raw
// rate for the symbol's funding interval, not normalised to hourly terms.
type MarkPriceUpdate struct {
	Symbol          string
	MarkPrice       float64
	FundingRate     float64
	NextFundingTime time.Time
}
