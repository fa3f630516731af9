// Package numeric normalizes prices and sizes to the venue's wire conventions.
package numeric

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

const (
	// MaxDecimals is the venue's decimal budget shared between price and size.
	MaxDecimals = 6
	// SigFigs is the number of significant digits a price may carry.
	SigFigs = 5

	hashScale = 1e8
)

var (
	ErrInvalidPrice = errors.New("invalid price")
	ErrInvalidSize  = errors.New("invalid size")
)

// FormatPrice rounds x to SigFigs significant digits and then to at most
// MaxDecimals-szDecimals decimal places, half away from zero.
func FormatPrice(x float64, szDecimals int32) (string, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) || x <= 0 {
		return "", fmt.Errorf("%w: %v", ErrInvalidPrice, x)
	}
	d := RoundPrice(decimal.NewFromFloat(x), szDecimals)
	if !d.IsPositive() {
		return "", fmt.Errorf("%w: %v rounds to zero", ErrInvalidPrice, x)
	}
	return d.String(), nil
}

// RoundPrice applies the price rule to an exact decimal.
func RoundPrice(d decimal.Decimal, szDecimals int32) decimal.Decimal {
	if d.IsZero() {
		return d
	}
	// position of the most significant digit, 10^magnitude
	digits := int32(len(d.Abs().Coefficient().String()))
	magnitude := digits + d.Exponent() - 1
	d = d.Round(SigFigs - 1 - magnitude)

	maxDec := MaxDecimals - szDecimals
	if maxDec < 0 {
		maxDec = 0
	}
	if -d.Exponent() > maxDec {
		d = d.Round(maxDec)
	}
	return d
}

// FormatSize rounds x to szDecimals decimal places. The result must stay
// strictly positive.
func FormatSize(x float64, szDecimals int32) (string, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "", fmt.Errorf("%w: %v", ErrInvalidSize, x)
	}
	d := decimal.NewFromFloat(x).Round(szDecimals)
	if !d.IsPositive() {
		return "", fmt.Errorf("%w: %v rounds to %s at %d decimals", ErrInvalidSize, x, d.String(), szDecimals)
	}
	return d.String(), nil
}

// EncodeForHash scales x by 10^8 and rounds to the nearest integer. Only used
// inside connection-id hashing.
func EncodeForHash(x float64) uint64 {
	return uint64(math.Round(x * hashScale))
}

// EncodeWire parses a wire decimal string and returns its hash encoding.
func EncodeWire(s string) (uint64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse wire decimal %q: %w", s, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative wire decimal %q", s)
	}
	return EncodeForHash(f), nil
}

// Parse reads a wire decimal back as float64.
func Parse(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
