package arbitrage

import "math"

// PctDiff returns the unsigned relative deviation of price from reference as
// a decimal fraction.
func PctDiff(price, reference float64) float64 {
	return math.Abs(price-reference) / reference
}

// Bps converts a decimal fraction to basis points.
func Bps(frac float64) float64 {
	return frac * 10_000
}

// SpreadBps returns the entry spread between the two legs in basis points,
// measured from the buy leg. A positive value means the sell leg printed above
// the buy leg, i.e. the spread worked in the position's favour.
func SpreadBps(sellPrice, buyPrice float64) float64 {
	return ((sellPrice - buyPrice) / buyPrice) * 10_000
}
