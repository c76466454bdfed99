package executor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimToStep(t *testing.T) {
	cases := []struct {
		name string
		qty  float64
		step float64
		want float64
	}{
		{"exact multiple", 1.5, 0.5, 1.5},
		{"rounds down", 1.24, 0.1, 1.2},
		{"never exceeds qty", 1.26, 0.1, 1.2},
		{"coarse step", 7.9, 1, 7},
		{"smaller than step", 0.4, 1, 0},
		{"no step", 1.2345, 0, 1.2345},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := TrimToStep(tc.qty, tc.step)
			assert.InDelta(t, tc.want, got, 1e-9)
			assert.LessOrEqual(t, got, tc.qty*(1+sizeEpsilon), "trimmed size must not exceed quoted size")
			if tc.step > 0 {
				_, frac := math.Modf(got/tc.step + sizeEpsilon)
				assert.InDelta(t, 0, frac, 1e-6, "trimmed size must be a step multiple")
			}
		})
	}
}

func TestFloorToStep(t *testing.T) {
	assert.InDelta(t, 1.2, FloorToStep(1.29, 0.1), 1e-9)
	assert.InDelta(t, 1.3, FloorToStep(1.3, 0.1), 1e-9)
	assert.InDelta(t, 0, FloorToStep(0.09, 0.1), 1e-9)
	assert.InDelta(t, 2.75, FloorToStep(2.75, 0), 1e-9)
}

func TestCoarserStep(t *testing.T) {
	assert.Equal(t, 0.1, coarserStep(0.001, 0.1))
	assert.Equal(t, 0.1, coarserStep(0.1, 0.01))
}
