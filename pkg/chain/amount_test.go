package chain

import (
	"math/big"
	"testing"
)

func TestToUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int
		want     string
		wantErr  bool
	}{
		{name: "whole stable amount", amount: "50", decimals: 6, want: "50000000"},
		{name: "trailing zeros", amount: "50.00", decimals: 6, want: "50000000"},
		{name: "fractional stable", amount: "0.5", decimals: 6, want: "500000"},
		{name: "full precision stable", amount: "1.234567", decimals: 6, want: "1234567"},
		{name: "native wei", amount: "0.25", decimals: 18, want: "250000000000000000"},
		{name: "one wei", amount: "0.000000000000000001", decimals: 18, want: "1"},
		{name: "too many decimals", amount: "1.2345678", decimals: 6, wantErr: true},
		{name: "zero", amount: "0", decimals: 6, wantErr: true},
		{name: "negative", amount: "-1", decimals: 6, wantErr: true},
		{name: "not a number", amount: "fifty", decimals: 6, wantErr: true},
		{name: "empty", amount: "", decimals: 6, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToUnits(tt.amount, tt.decimals)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ToUnits(%q, %d) expected error, got %v", tt.amount, tt.decimals, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToUnits(%q, %d) unexpected error: %v", tt.amount, tt.decimals, err)
			}
			if got.String() != tt.want {
				t.Errorf("ToUnits(%q, %d) = %s, want %s", tt.amount, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestFromUnits(t *testing.T) {
	tests := []struct {
		name     string
		units    string
		decimals int
		want     string
	}{
		{name: "whole stable amount", units: "50000000", decimals: 6, want: "50"},
		{name: "fractional stable", units: "500000", decimals: 6, want: "0.5"},
		{name: "native wei", units: "250000000000000000", decimals: 18, want: "0.25"},
		{name: "one wei", units: "1", decimals: 18, want: "0.000000000000000001"},
		{name: "zero", units: "0", decimals: 6, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units, ok := new(big.Int).SetString(tt.units, 10)
			if !ok {
				t.Fatalf("bad test units %q", tt.units)
			}
			if got := FromUnits(units, tt.decimals); got != tt.want {
				t.Errorf("FromUnits(%s, %d) = %s, want %s", tt.units, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestFromUnitsNil(t *testing.T) {
	if got := FromUnits(nil, 6); got != "0" {
		t.Errorf("FromUnits(nil, 6) = %s, want 0", got)
	}
}

// A display amount converted to units and back is numerically unchanged,
// modulo canonical formatting of trailing zeros.
func TestUnitsRoundTrip(t *testing.T) {
	tests := []struct {
		amount   string
		decimals int
		want     string
	}{
		{"50", 6, "50"},
		{"50.00", 6, "50"},
		{"0.5", 6, "0.5"},
		{"1.234567", 6, "1.234567"},
		{"0.25", 18, "0.25"},
	}

	for _, tt := range tests {
		units, err := ToUnits(tt.amount, tt.decimals)
		if err != nil {
			t.Fatalf("ToUnits(%q, %d): %v", tt.amount, tt.decimals, err)
		}
		if got := FromUnits(units, tt.decimals); got != tt.want {
			t.Errorf("round trip %q with %d decimals = %q, want %q", tt.amount, tt.decimals, got, tt.want)
		}
	}
}
