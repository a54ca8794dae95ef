package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cory-johannsen/autobalance/internal/game/tuning"
)

// Record is one parsed override entry: an id followed by up to width values.
type Record struct {
	ID     uint32
	Values []tuning.Opt[float64]
}

// Value returns the i-th value, unset when it was omitted.
func (r Record) Value(i int) tuning.Opt[float64] {
	if i < 0 || i >= len(r.Values) {
		return tuning.Opt[float64]{}
	}
	return r.Values[i]
}

// unsetValue is the legacy placeholder for a skipped value.
const unsetValue = -1

// ParseRecords parses comma-separated records of the form "id v1 ... vN".
// Trailing values may be omitted, and "-" or -1 skips a value; all leave it
// unset. Other negative values are rejected.
//
// Precondition: width >= 0.
// Postcondition: Returns one Record per non-empty entry, each with exactly
// width values, or a non-nil error naming the first malformed entry.
func ParseRecords(s string, width int) ([]Record, error) {
	var out []Record
	for i, entry := range strings.Split(s, ",") {
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		id, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("record %d: invalid id %q", i+1, fields[0])
		}
		if len(fields)-1 > width {
			return nil, fmt.Errorf("record %d (id %d): %d values, at most %d allowed", i+1, id, len(fields)-1, width)
		}
		rec := Record{ID: uint32(id), Values: make([]tuning.Opt[float64], width)}
		for j, f := range fields[1:] {
			if f == "-" {
				continue
			}
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("record %d (id %d): invalid value %q", i+1, id, f)
			}
			if v == unsetValue {
				continue
			}
			if v < 0 {
				return nil, fmt.Errorf("record %d (id %d): value %q must not be negative", i+1, id, f)
			}
			rec.Values[j] = tuning.Some(v)
		}
		out = append(out, rec)
	}
	return out, nil
}

func optInt(o tuning.Opt[float64]) tuning.Opt[int] {
	if v, ok := o.Get(); ok {
		return tuning.Some(int(v))
	}
	return tuning.Opt[int]{}
}

func inflectionTable(s string) (map[uint32]tuning.InflectionOverride, error) {
	recs, err := ParseRecords(s, 3)
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]tuning.InflectionOverride, len(recs))
	for _, r := range recs {
		out[r.ID] = tuning.InflectionOverride{Value: r.Value(0), Floor: r.Value(1), Ceiling: r.Value(2)}
	}
	return out, nil
}

func modifierTable(s string) (map[uint32]tuning.Modifiers, error) {
	recs, err := ParseRecords(s, 6)
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]tuning.Modifiers, len(recs))
	for _, r := range recs {
		out[r.ID] = tuning.Modifiers{
			Global:     r.Value(0),
			Health:     r.Value(1),
			Mana:       r.Value(2),
			Armor:      r.Value(3),
			Damage:     r.Value(4),
			CCDuration: r.Value(5),
		}
	}
	return out, nil
}

func levelTable(s string) (map[uint32]tuning.LevelOverride, error) {
	recs, err := ParseRecords(s, 4)
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]tuning.LevelOverride, len(recs))
	for _, r := range recs {
		out[r.ID] = tuning.LevelOverride{
			SkipHigher: optInt(r.Value(0)),
			SkipLower:  optInt(r.Value(1)),
			Ceiling:    optInt(r.Value(2)),
			Floor:      optInt(r.Value(3)),
		}
	}
	return out, nil
}

func floatTable(s string) (map[uint32]float64, error) {
	recs, err := ParseRecords(s, 1)
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]float64, len(recs))
	for _, r := range recs {
		v, ok := r.Value(0).Get()
		if !ok {
			return nil, fmt.Errorf("id %d: missing value", r.ID)
		}
		out[r.ID] = v
	}
	return out, nil
}

func intTable(s string) (map[uint32]int, error) {
	floats, err := floatTable(s)
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]int, len(floats))
	for id, v := range floats {
		out[id] = int(v)
	}
	return out, nil
}

func idSet(s string) (map[uint32]bool, error) {
	recs, err := ParseRecords(s, 0)
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]bool, len(recs))
	for _, r := range recs {
		out[r.ID] = true
	}
	return out, nil
}
