package levelscale_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/autobalance/internal/game/levelscale"
)

func TestInterpolate_Breakpoints(t *testing.T) {
	a := levelscale.Anchors{100, 300, 900}
	assert.Equal(t, 100.0, levelscale.Interpolate(1, a))
	assert.Equal(t, 100.0, levelscale.Interpolate(60, a))
	assert.Equal(t, 300.0, levelscale.Interpolate(63, a))
	assert.Equal(t, 300.0, levelscale.Interpolate(70, a))
	assert.Equal(t, 900.0, levelscale.Interpolate(73, a))
	assert.Equal(t, 900.0, levelscale.Interpolate(80, a))
}

func TestInterpolate_Blends(t *testing.T) {
	a := levelscale.Anchors{100, 400, 1000}
	assert.InDelta(t, 200.0, levelscale.Interpolate(61, a), 1e-9)
	assert.InDelta(t, 600.0, levelscale.Interpolate(71, a), 1e-9)
}

func TestRatio(t *testing.T) {
	low := levelscale.Anchors{50, 50, 50}
	high := levelscale.Anchors{200, 200, 200}
	assert.InDelta(t, 4.0, levelscale.Ratio(80, 20, high, low), 1e-9)
	assert.Equal(t, 1.0, levelscale.Ratio(80, 20, high, levelscale.Anchors{}))
}

// Property: values between breakpoints are convex combinations of the
// neighbouring anchors.
func TestPropertyInterpolateConvex(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := levelscale.Anchors{
			rapid.Float64Range(1, 1e5).Draw(rt, "a1"),
			rapid.Float64Range(1, 1e5).Draw(rt, "a2"),
			rapid.Float64Range(1, 1e5).Draw(rt, "a3"),
		}
		level := rapid.Float64Range(0, 90).Draw(rt, "level")
		got := levelscale.Interpolate(level, a)

		lo, hi := a[0], a[0]
		switch {
		case level > 60 && level < 63:
			lo, hi = math.Min(a[0], a[1]), math.Max(a[0], a[1])
		case level >= 63 && level <= 70:
			lo, hi = a[1], a[1]
		case level > 70 && level < 73:
			lo, hi = math.Min(a[1], a[2]), math.Max(a[1], a[2])
		case level >= 73:
			lo, hi = a[2], a[2]
		}
		if got < lo-1e-6 || got > hi+1e-6 {
			rt.Fatalf("Interpolate(%v) = %v outside [%v, %v]", level, got, lo, hi)
		}
	})
}
