package arbitrage

import (
	"fmt"
	"math"
	"sort"

	"github.com/perpflow/fundarb/internal/domain"
)

// EffectiveRate combines two hourly funding rates for the same token into the
// income achievable by holding offsetting positions across the two venues.
//
// Opposite signs: both legs collect, so the incomes add. Same sign: one leg
// collects and the other pays, so only the differential is captured.
func EffectiveRate(a, b float64) float64 {
	if math.Signbit(a) != math.Signbit(b) {
		return math.Abs(a) + math.Abs(b)
	}
	return math.Max(math.Abs(a), math.Abs(b)) - math.Min(math.Abs(a), math.Abs(b))
}

// Join inner-joins the two venues' funding snapshots by symbol and returns the
// result sorted by effective rate descending. A token not listed on both
// venues is excluded; ties keep input order (stable sort).
func Join(binance, hyperliquid []domain.FundingSnapshot) []domain.JointFundingRate {
	hlBySymbol := make(map[string]domain.FundingSnapshot, len(hyperliquid))
	for _, snap := range hyperliquid {
		hlBySymbol[snap.Symbol] = snap
	}

	joined := make([]domain.JointFundingRate, 0, len(binance))
	for _, b := range binance {
		hl, ok := hlBySymbol[b.Symbol]
		if !ok {
			continue
		}
		joined = append(joined, domain.JointFundingRate{
			Symbol:                  b.Symbol,
			BinanceRate:             b.HourlyRate,
			BinanceMarkPrice:        b.MarkPrice,
			HyperliquidRate:         hl.HourlyRate,
			HyperliquidOpenInterest: hl.OpenInterest,
			EffectiveRate:           EffectiveRate(b.HourlyRate, hl.HourlyRate),
		})
	}

	sort.SliceStable(joined, func(i, j int) bool {
		return joined[i].EffectiveRate > joined[j].EffectiveRate
	})

	return joined
}

// Find returns the joint rate for symbol or domain.ErrTokenNotFound.
func Find(joined []domain.JointFundingRate, symbol string) (domain.JointFundingRate, error) {
	for _, j := range joined {
		if j.Symbol == symbol {
			return j, nil
		}
	}
	return domain.JointFundingRate{}, fmt.Errorf("arbitrage: %s: %w", symbol, domain.ErrTokenNotFound)
}

// ShortVenue picks the venue whose funding rate is algebraically larger: the
// short leg there receives (or pays the least) funding. This is a total order
// on the signed rates, not on magnitudes.
func ShortVenue(j domain.JointFundingRate) domain.Venue {
	if j.BinanceRate > j.HyperliquidRate {
		return domain.VenueBinance
	}
	return domain.VenueHyperliquid
}
