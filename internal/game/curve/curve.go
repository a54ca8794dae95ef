// Package curve turns an effective player count into a difficulty multiplier.
//
// Four formula kinds are supported. Each maps the player count onto a
// normalised value in [0, 1] which is then stretched between the curve floor
// and ceiling of the supplied inflection settings.
package curve

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidCapacity is returned when an instance capacity is not positive.
var ErrInvalidCapacity = errors.New("invalid capacity")

// Kind selects the formula used to normalise a player count.
type Kind int

const (
	// Tan is a symmetric hyperbolic tangent centred on the inflection value.
	Tan Kind = iota
	// Log rises quickly below the inflection value and flattens above it.
	Log
	// Exp rises slowly below the inflection value and steepens above it.
	Exp
	// Pol is a power curve; the inflection value acts as the exponent.
	Pol
)

// expSteepness is the k constant of the EXP formula.
const expSteepness = 3.0

var kindNames = map[Kind]string{Tan: "tan", Log: "log", Exp: "exp", Pol: "pol"}

// String returns the lower-case formula name.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a case-insensitive formula name to a Kind.
//
// Postcondition: Returns the Kind or a non-nil error for unknown names.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return k, nil
		}
	}
	return Tan, fmt.Errorf("unknown formula %q: must be one of [tan, log, exp, pol]", s)
}

// Inflection holds the resolved curve settings for one stat axis.
type Inflection struct {
	// Value is the player count at which the curve is centred.
	Value float64
	// Floor is the multiplier at zero players.
	Floor float64
	// Ceiling is the multiplier at full capacity.
	Ceiling float64
}

// Multiplier evaluates the formula for the given effective player count.
// TAN curves reach Ceiling exactly at full capacity. This departs from the
// legacy ceiling adjustment C / (atMax*(C-F) + F), which agrees only when
// Floor is 0.
//
// Precondition: maxPlayers > 0.
// Postcondition: Returns a value within [min(Floor, Ceiling), max(Floor, Ceiling)],
// or ErrInvalidCapacity when maxPlayers <= 0.
func Multiplier(players float64, s Inflection, kind Kind, maxPlayers int) (float64, error) {
	if maxPlayers <= 0 {
		return 0, fmt.Errorf("curve.Multiplier: capacity %d: %w", maxPlayers, ErrInvalidCapacity)
	}
	capacity := float64(maxPlayers)
	diff := capacity / 5 * 1.5

	norm := normalise(players, s.Value, diff, capacity, kind)
	adj := 1.0
	if kind == Tan {
		adj = tanAdjustment(s, diff, capacity)
	}

	out := norm*(s.Ceiling*adj-s.Floor) + s.Floor
	return clamp(out, math.Min(s.Floor, s.Ceiling), math.Max(s.Floor, s.Ceiling)), nil
}

// tanAdjustment scales the ceiling so the TAN curve lands on Ceiling exactly
// when the instance is full.
func tanAdjustment(s Inflection, diff, capacity float64) float64 {
	atMax := normalise(capacity, s.Value, diff, capacity, Tan)
	if atMax <= 0 || s.Ceiling == 0 {
		return 1
	}
	if atMax*(s.Ceiling-s.Floor)+s.Floor <= 0 {
		return 1
	}
	return (s.Floor + (s.Ceiling-s.Floor)/atMax) / s.Ceiling
}

func normalise(players, value, diff, capacity float64, kind Kind) float64 {
	switch kind {
	case Log:
		shifted := (players-value)/diff + 5
		if shifted <= -1 {
			return 0
		}
		return clamp(math.Log1p(shifted)/math.Log1p(10), 0, 1)
	case Exp:
		shifted := (players-value)/diff + 5
		return clamp((math.Exp(shifted/expSteepness)-1)/(math.Exp(10/expSteepness)-1), 0, 1)
	case Pol:
		return math.Pow(math.Max(0, players/capacity), value/capacity)
	default:
		return (math.Tanh((players-value)/diff) + 1) / 2
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
