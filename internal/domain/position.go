package domain

// Direction is the exposure of an open perp position.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// CloseSide returns the order side that flattens a position with this
// direction: shorts are bought back, longs are sold.
func (d Direction) CloseSide() Side {
	if d == DirectionShort {
		return SideBuy
	}
	return SideSell
}

// Position is an open perp position on one venue.
type Position struct {
	Venue         Venue
	Symbol        string
	Direction     Direction
	Size          float64 // tokens, always positive
	EntryPrice    float64
	UnrealizedPnL float64

	// AnnualizedFundingRate is the venue's current hourly rate scaled to a
	// yearly figure, for operator display.
	AnnualizedFundingRate float64
}

// Balance is the account collateral on one venue, in USD terms.
type Balance struct {
	Venue     Venue
	Total     float64
	Available float64
}
