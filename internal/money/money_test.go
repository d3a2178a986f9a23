package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"564.02", "564.02"},
		{"1.005", "1.01"},
		{"1.0049", "1"},
		{"2.675", "2.68"},
		{"-1.005", "-1"},
		{"-1.006", "-1.01"},
		{"0", "0"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got := Round2(MustParse(tc.in))
			assert.True(t, got.Equal(MustParse(tc.want)), "Round2(%s) = %s, want %s", tc.in, got, tc.want)
		})
	}
}

func TestRound2IsShiftInvariant(t *testing.T) {
	raws := []string{"0.005", "12.345", "-3.335", "99.995", "0.0049999"}
	shifts := []string{"0.02", "-0.5", "-100.01", "7.77"}
	for _, raw := range raws {
		for _, shift := range shifts {
			x := MustParse(raw)
			k := MustParse(shift)
			assert.True(t, Round2(x.Add(k)).Equal(Round2(x).Add(k)), "raw=%s shift=%s", raw, shift)
		}
	}
}

func TestParseIsLenient(t *testing.T) {
	assert.True(t, Parse("").IsZero())
	assert.True(t, Parse("abc").IsZero())
	assert.True(t, Parse(" 12.50 ").Equal(MustParse("12.5")))
}

func TestFromAny(t *testing.T) {
	var decoded []any
	err := json.Unmarshal([]byte(`[10, "2.50", "", "x", null, true, {"a":1}]`), &decoded)
	assert.NoError(t, err)

	want := []string{"10", "2.5", "0", "0", "0", "0", "0"}
	for i, v := range decoded {
		assert.True(t, FromAny(v).Equal(MustParse(want[i])), "index %d", i)
	}
	assert.Equal(t, 10, IntFromAny("10.9"))
	assert.Equal(t, 0, IntFromAny("ten"))
}

func TestWithinTolerance(t *testing.T) {
	assert.True(t, WithinTolerance(MustParse("700"), MustParse("700.01")))
	assert.False(t, WithinTolerance(MustParse("700"), MustParse("700.011")))
	assert.True(t, NonNegative(decimal.NewFromInt(-3)).IsZero())
}
