package config

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseRecords(t *testing.T) {
	recs, err := ParseRecords("36 1.5 0.2, 43 - - 3,  , 48", 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, uint32(36), recs[0].ID)
	assert.Equal(t, 1.5, recs[0].Value(0).Or(0))
	assert.Equal(t, 0.2, recs[0].Value(1).Or(0))
	assert.False(t, recs[0].Value(2).IsSet())

	assert.Equal(t, uint32(43), recs[1].ID)
	assert.False(t, recs[1].Value(0).IsSet())
	assert.Equal(t, 3.0, recs[1].Value(2).Or(0))

	assert.Equal(t, uint32(48), recs[2].ID)
	assert.Len(t, recs[2].Values, 3)
	assert.False(t, recs[2].Value(7).IsSet())
}

func TestParseRecords_MinusOneIsUnset(t *testing.T) {
	recs, err := ParseRecords("36 -1 0.5 1.5, 43 -1.0 -1 2", 3)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.False(t, recs[0].Value(0).IsSet())
	assert.Equal(t, 0.5, recs[0].Value(1).Or(0))
	assert.Equal(t, 1.5, recs[0].Value(2).Or(0))
	assert.False(t, recs[1].Value(0).IsSet())
	assert.False(t, recs[1].Value(1).IsSet())
	assert.Equal(t, 2.0, recs[1].Value(2).Or(0))

	inf, err := inflectionTable("36 -1 0.5 1.5")
	require.NoError(t, err)
	assert.False(t, inf[36].Value.IsSet())
	assert.Equal(t, 0.5, inf[36].Floor.Or(0))
	assert.Equal(t, 1.5, inf[36].Ceiling.Or(0))
}

func TestParseRecords_Empty(t *testing.T) {
	recs, err := ParseRecords("", 6)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestParseRecords_Errors(t *testing.T) {
	for _, in := range []string{"abc 1", "-4 1", "36 1 2 3 4", "36 one", "36 -0.5", "36 1 -2"} {
		_, err := ParseRecords(in, 3)
		assert.Error(t, err, "input %q", in)
	}
}

func TestFloatTableRequiresValue(t *testing.T) {
	_, err := floatTable("36")
	assert.Error(t, err)
	_, err = floatTable("36 -1")
	assert.Error(t, err)
}

func TestIntTableRejectsNegative(t *testing.T) {
	_, err := intTable("36 -2")
	assert.Error(t, err)
}

func TestPropertyParseRecordsRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		width := rapid.IntRange(0, 6).Draw(t, "width")
		n := rapid.IntRange(0, 8).Draw(t, "records")
		var parts []string
		want := make([][]int, n)
		for i := range n {
			vals := rapid.SliceOfN(rapid.IntRange(0, 1000), 0, width).Draw(t, fmt.Sprintf("values%d", i))
			want[i] = vals
			fields := []string{fmt.Sprint(i + 1)}
			for _, v := range vals {
				fields = append(fields, fmt.Sprint(v))
			}
			parts = append(parts, strings.Join(fields, " "))
		}

		recs, err := ParseRecords(strings.Join(parts, ","), width)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if len(recs) != n {
			t.Fatalf("got %d records, want %d", len(recs), n)
		}
		for i, r := range recs {
			if len(r.Values) != width {
				t.Fatalf("record %d has %d values, want %d", i, len(r.Values), width)
			}
			for j := range width {
				got, set := r.Value(j).Get()
				if j < len(want[i]) {
					if !set || got != float64(want[i][j]) {
						t.Fatalf("record %d value %d = %v/%v, want %d", i, j, got, set, want[i][j])
					}
				} else if set {
					t.Fatalf("record %d value %d should be unset", i, j)
				}
			}
		}
	})
}
