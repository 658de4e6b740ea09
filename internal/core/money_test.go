package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"0", "0", true},
		{".5", "0.5", true},
		{"5.", "5", true},
		{"1.005", "1.01", true}, // half-up rounding
		{"12.345", "12.35", true},
		{" 2.50 ", "2.5", true},
		{"400", "400", true},
		{"-1", "", false},
		{"+1", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{".", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			want := decimal.RequireFromString(tc.out)
			if err != nil || !got.Equal(want) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestFormatKES(t *testing.T) {
	cases := []struct {
		in   decimal.Decimal
		want string
	}{
		{decimal.NewFromInt(400), "400.00 KES"},
		{decimal.RequireFromString("12.5"), "12.50 KES"},
		{decimal.Zero, "0.00 KES"},
	}
	for _, tc := range cases {
		if got := FormatKES(tc.in); got != tc.want {
			t.Errorf("FormatKES(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
