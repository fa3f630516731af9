package numeric

import (
	"errors"
	"math"
	"testing"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		name       string
		in         float64
		szDecimals int32
		want       string
	}{
		{"integer", 2060, 4, "2060"},
		{"slippage buy", 2000 * 1.03, 4, "2060"},
		{"five sig figs", 1234.567, 2, "1234.6"},
		{"decimal cap", 0.123456789, 4, "0.12"},
		{"decimal cap zero size decimals", 0.0123456789, 0, "0.012346"},
		{"strip zeros", 1900.0, 4, "1900"},
		{"large rounds to sig figs", 123456.7, 5, "123460"},
		{"half away from zero", 1.00005, 0, "1.0001"},
		{"small price", 0.06, 0, "0.06"},
		{"tp", 1900 * 1.1, 4, "2090"},
		{"sl", 1900 * 0.95, 4, "1805"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatPrice(tt.in, tt.szDecimals)
			if err != nil {
				t.Fatalf("FormatPrice(%v) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("FormatPrice(%v, %d) = %s, want %s", tt.in, tt.szDecimals, got, tt.want)
			}
		})
	}
}

func TestFormatPriceInvalid(t *testing.T) {
	for _, in := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := FormatPrice(in, 2); !errors.Is(err, ErrInvalidPrice) {
			t.Errorf("FormatPrice(%v) err = %v, want ErrInvalidPrice", in, err)
		}
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in         float64
		szDecimals int32
		want       string
	}{
		{100.0 / 2000, 4, "0.05"},
		{100.0 / 1900, 4, "0.0526"},
		{2.0 / 1950, 4, "0.001"},
		{100.0 / 30000, 5, "0.00333"},
		{1.25, 1, "1.3"},
		{3, 0, "3"},
	}
	for _, tt := range tests {
		got, err := FormatSize(tt.in, tt.szDecimals)
		if err != nil {
			t.Fatalf("FormatSize(%v) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("FormatSize(%v, %d) = %s, want %s", tt.in, tt.szDecimals, got, tt.want)
		}
	}
}

func TestFormatSizeRoundsToZero(t *testing.T) {
	if _, err := FormatSize(0.00004, 4); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("err = %v, want ErrInvalidSize", err)
	}
}

func TestEncodeForHash(t *testing.T) {
	if got := EncodeForHash(2060); got != 206000000000 {
		t.Errorf("EncodeForHash(2060) = %d", got)
	}
	if got := EncodeForHash(0.0526); got != 5260000 {
		t.Errorf("EncodeForHash(0.0526) = %d", got)
	}
}

// The wire form of a normalized price hashes the same as the float it came from.
func TestWireRoundTripPreservesHash(t *testing.T) {
	prices := []float64{2060, 1900, 0.0526, 1234.6, 0.06, 27.123, 0.000123}
	for _, p := range prices {
		s, err := FormatPrice(p, 0)
		if err != nil {
			t.Fatalf("FormatPrice(%v): %v", p, err)
		}
		back, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%s): %v", s, err)
		}
		if EncodeForHash(back) != EncodeForHash(p) {
			t.Errorf("hash(%s) = %d, hash(%v) = %d", s, EncodeForHash(back), p, EncodeForHash(p))
		}
	}
}

func TestFormatPriceWithinTolerance(t *testing.T) {
	for szd := int32(0); szd <= 6; szd++ {
		for _, p := range []float64{0.5, 1.2345678, 99.99999, 1850.123, 45000.77} {
			s, err := FormatPrice(p, szd)
			if err != nil {
				continue
			}
			back, _ := Parse(s)
			tol := math.Max(math.Pow(10, -float64(MaxDecimals-szd)), p*1e-4)
			if math.Abs(back-p) > tol {
				t.Errorf("FormatPrice(%v, %d) = %s, off by %v", p, szd, s, math.Abs(back-p))
			}
		}
	}
}
