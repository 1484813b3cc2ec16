package bands

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decs(ss ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(ss))
	for i, s := range ss {
		out[i] = dec(s)
	}
	return out
}

func TestBand_Resolve(t *testing.T) {
	band := Band{
		Thresholds: decs("1", "5", "10", "20"),
		Values:     []string{"3", "7", "15", "30"},
	}

	tests := []struct {
		name   string
		amount string
		want   string
	}{
		{"below first threshold", "0.5", "3"},
		{"exactly first threshold", "1", "3"},
		{"between thresholds", "4.999", "3"},
		{"exactly middle threshold", "5", "7"},
		{"just below third", "9.999", "7"},
		{"exactly last threshold", "20", "30"},
		{"far above last threshold", "5000", "30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := band.Resolve(dec(tt.amount))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBand_ResolveAboveLastIsStable(t *testing.T) {
	band := Band{Thresholds: decs("1", "5", "10"), Values: []string{"a", "b", "c"}}

	last, err := band.Resolve(dec("10"))
	require.NoError(t, err)
	for _, amount := range []string{"10.001", "11", "100", "99999.999"} {
		got, err := band.Resolve(dec(amount))
		require.NoError(t, err)
		assert.Equal(t, last, got, "amount %s", amount)
	}
}

func TestBand_Misconfigured(t *testing.T) {
	tests := []struct {
		name string
		band Band
	}{
		{"empty", Band{}},
		{"no values", Band{Thresholds: decs("1")}},
		{"mismatched lengths", Band{Thresholds: decs("1", "2"), Values: []string{"a"}}},
		{"not increasing", Band{Thresholds: decs("1", "1"), Values: []string{"a", "b"}}},
		{"descending", Band{Thresholds: decs("5", "1"), Values: []string{"a", "b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.band.Resolve(dec("3"))
			assert.ErrorIs(t, err, ErrMisconfigured)
		})
	}
}

func TestBand_ResolveInt(t *testing.T) {
	band := Band{Thresholds: decs("0", "10"), Values: []string{"2", "9"}}
	days, err := band.ResolveInt(dec("12"))
	require.NoError(t, err)
	assert.Equal(t, 9, days)

	bad := Band{Thresholds: decs("0"), Values: []string{"two"}}
	_, err = bad.ResolveInt(dec("1"))
	assert.ErrorIs(t, err, ErrMisconfigured)
}

func TestDirectional_Resolve(t *testing.T) {
	d := Directional{
		Thresholds: decs("1", "10"),
		Forward:    []string{"OLD_NEW_LOW", "OLD_NEW_HIGH"},
		Reverse:    []string{"NEW_OLD_LOW", "NEW_OLD_HIGH"},
	}

	got, err := d.Resolve(dec("15"), true)
	require.NoError(t, err)
	assert.Equal(t, "OLD_NEW_HIGH", got)

	got, err = d.Resolve(dec("2"), false)
	require.NoError(t, err)
	assert.Equal(t, "NEW_OLD_LOW", got)

	_, err = Directional{Thresholds: decs("1"), Forward: []string{"x"}}.Resolve(dec("2"), false)
	assert.ErrorIs(t, err, ErrMisconfigured)
}
