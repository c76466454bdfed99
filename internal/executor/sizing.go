package executor

import "math"

// sizeEpsilon absorbs float error when checking step multiples.
const sizeEpsilon = 1e-9

// TrimToStep rounds qty to the nearest multiple of step without ever
// exceeding qty. step <= 0 means the venue enforces no increment and qty is
// returned unchanged.
func TrimToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	steps := math.Round(qty / step)
	trimmed := steps * step
	if trimmed > qty*(1+sizeEpsilon) {
		trimmed = (steps - 1) * step
	}
	if trimmed < 0 {
		return 0
	}
	return trimmed
}

// FloorToStep rounds qty down to a multiple of step. Used when a hard upper
// bound (an open position's size) must not be crossed.
func FloorToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	return math.Floor(qty/step+sizeEpsilon) * step
}

// coarserStep returns the more restrictive (larger) of two lot steps. Sizing
// both legs to the coarser step keeps them delta-matched on both venues.
func coarserStep(a, b float64) float64 {
	return math.Max(a, b)
}
