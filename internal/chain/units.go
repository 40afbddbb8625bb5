package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// TokenDecimals is the fixed-point scale of every academy token.
const TokenDecimals = 18

// ParseUnits converts a human decimal string ("12.5") into base units.
// More fractional digits than decimals is an error rather than a silent
// truncation.
func ParseUnits(s string, decimals int32) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount must not be negative: %s", s)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", s, decimals)
	}
	return scaled.BigInt(), nil
}

// ParseEther is ParseUnits with 18 decimals.
func ParseEther(s string) (*big.Int, error) { return ParseUnits(s, TokenDecimals) }

// FormatUnits renders base units with at most places fractional digits,
// trimming trailing zeros. A nil amount renders as "0".
func FormatUnits(amount *big.Int, decimals int32, places int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).Truncate(places).String()
}

// FormatEther renders an 18-decimal amount with up to 4 fractional digits.
func FormatEther(amount *big.Int) string { return FormatUnits(amount, TokenDecimals, 4) }
