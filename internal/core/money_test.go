package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"1.١٢", 0, false},
		{"٣", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if !tc.ok {
			assert.ErrorIs(t, err, ErrInvalidAmount, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.out, got, "input %q", tc.in)
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		cents  int64
		plain  string
		signed string
	}{
		{5500, "$55.00", "+$55.00"},
		{-1505, "-$15.05", "-$15.05"},
		{0, "$0.00", "$0.00"},
		{7, "$0.07", "+$0.07"},
	}
	for _, tc := range cases {
		m := Money{Cents: tc.cents}
		assert.Equal(t, tc.plain, m.String(), "String(%d)", tc.cents)
		assert.Equal(t, tc.signed, m.Signed(), "Signed(%d)", tc.cents)
	}
	assert.Equal(t, int64(4000), Money{Cents: -4000}.Abs().Cents)
}
