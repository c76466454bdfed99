package executor

import (
	"fmt"
	"strings"

	"github.com/perpflow/fundarb/internal/domain"
)

// PartialLegError reports a dual-leg submission where exactly one leg failed.
// The surviving fill is carried so the operator can see the residual
// one-sided exposure; the engine never unwinds it automatically.
type PartialLegError struct {
	Symbol      string
	FailedVenue domain.Venue
	Filled      []domain.OrderFill
	Err         error
}

func (e *PartialLegError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "executor: %s: leg on %s failed: %v", e.Symbol, e.FailedVenue, e.Err)
	if len(e.Filled) == 0 {
		b.WriteString(" (no leg filled)")
		return b.String()
	}
	b.WriteString("; filled:")
	for _, f := range e.Filled {
		fmt.Fprintf(&b, " %s %s %.6f @ %.6f", f.Venue, f.Side, f.Size, f.AvgPrice)
	}
	b.WriteString("; position is one-sided, unwind manually")
	return b.String()
}

func (e *PartialLegError) Unwrap() error { return e.Err }
