package executor

import (
	"time"

	"github.com/google/uuid"

	"github.com/perpflow/fundarb/internal/arbitrage"
	"github.com/perpflow/fundarb/internal/domain"
)

// Action distinguishes opening a position from closing one.
type Action string

const (
	ActionEnter Action = "enter"
	ActionExit  Action = "exit"
)

// Leg is one side of a completed dual-leg execution: the pre-trade quote it
// was sized from and the fill the venue confirmed.
type Leg struct {
	Venue domain.Venue
	Side  domain.Side
	Quote domain.Quote
	Fill  domain.OrderFill

	// RealizedSlippage is the unsigned deviation of the fill's average
	// price from the quote's reference price (decimal fraction).
	RealizedSlippage float64
}

// ExecutionReport reconciles a dual-leg execution against its pre-trade
// quotes. It is informational output for the operator, not a corrective
// input: nothing downstream acts on it automatically.
type ExecutionReport struct {
	ID     string
	Symbol string
	Action Action

	// Size is the trimmed token quantity submitted on both legs.
	Size float64

	Buy  Leg
	Sell Leg

	// Quoted vs realized totals, in basis points. Spread is measured from
	// the buy leg; positive means the sell leg printed above the buy leg.
	QuotedSlippageBps   float64
	RealizedSlippageBps float64
	QuotedSpreadBps     float64
	RealizedSpreadBps   float64

	StartedAt   time.Time
	CompletedAt time.Time
}

func buildReport(symbol string, action Action, size float64, buyQuote, sellQuote domain.Quote, buyFill, sellFill domain.OrderFill, startedAt time.Time) *ExecutionReport {
	buyLeg := Leg{
		Venue:            buyQuote.Venue,
		Side:             domain.SideBuy,
		Quote:            buyQuote,
		Fill:             buyFill,
		RealizedSlippage: arbitrage.PctDiff(buyFill.AvgPrice, buyQuote.ReferencePrice),
	}
	sellLeg := Leg{
		Venue:            sellQuote.Venue,
		Side:             domain.SideSell,
		Quote:            sellQuote,
		Fill:             sellFill,
		RealizedSlippage: arbitrage.PctDiff(sellFill.AvgPrice, sellQuote.ReferencePrice),
	}

	return &ExecutionReport{
		ID:                  uuid.New().String(),
		Symbol:              symbol,
		Action:              action,
		Size:                size,
		Buy:                 buyLeg,
		Sell:                sellLeg,
		QuotedSlippageBps:   arbitrage.Bps(buyQuote.Slippage + sellQuote.Slippage),
		RealizedSlippageBps: arbitrage.Bps(buyLeg.RealizedSlippage + sellLeg.RealizedSlippage),
		QuotedSpreadBps:     arbitrage.SpreadBps(sellQuote.ExpectedExecutionPrice, buyQuote.ExpectedExecutionPrice),
		RealizedSpreadBps:   arbitrage.SpreadBps(sellFill.AvgPrice, buyFill.AvgPrice),
		StartedAt:           startedAt,
		CompletedAt:         time.Now().UTC(),
	}
}
