// Package levelscale blends per-era base stats across level transitions and
// derives the ratio used to rescale world multipliers.
package levelscale

// Era breakpoints. Levels between a cap and the next era's start blend
// linearly between the two anchors.
const (
	firstEraCap    = 60
	secondEraStart = 63
	secondEraCap   = 70
	thirdEraStart  = 73
)

// Anchors holds one base value per content era.
type Anchors [3]float64

// Interpolate returns the base value at level.
//
// Postcondition: Returns an anchor at and beyond the breakpoints, and a convex
// combination of the two neighbouring anchors between them.
func Interpolate(level float64, a Anchors) float64 {
	switch {
	case level <= firstEraCap:
		return a[0]
	case level < secondEraStart:
		w := (secondEraStart - level) / (secondEraStart - firstEraCap)
		return w*a[0] + (1-w)*a[1]
	case level <= secondEraCap:
		return a[1]
	case level < thirdEraStart:
		w := (thirdEraStart - level) / (thirdEraStart - secondEraCap)
		return w*a[1] + (1-w)*a[2]
	default:
		return a[2]
	}
}

// Ratio returns Interpolate(target) / Interpolate(current), or 1 when the
// current base value is not positive.
func Ratio(target, current int, targetAnchors, currentAnchors Anchors) float64 {
	base := Interpolate(float64(current), currentAnchors)
	if base <= 0 {
		return 1
	}
	return Interpolate(float64(target), targetAnchors) / base
}
