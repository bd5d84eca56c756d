// Package amount converts between human decimal strings and integer base units.
// All arithmetic is done on arbitrary-precision integers.
package amount

import (
	"fmt"
	"math/big"
	"strings"

	"cosmossdk.io/math"

	"github.com/strangelove-ventures/permit2-distributor/types"
)

var ten = big.NewInt(10)

// ToBaseUnits converts a non-negative decimal string such as "1.5" into base units for a
// token with the given decimals ("1500000" for 6 decimals).
func ToBaseUnits(decimal string, decimals uint8) (string, error) {
	if decimals > types.MaxTokenDecimals {
		return "", fmt.Errorf("%w: decimals %d exceeds %d", types.ErrInvalidAmount, decimals, types.MaxTokenDecimals)
	}
	s := strings.TrimSpace(decimal)
	if s == "" {
		return "", fmt.Errorf("%w: empty amount", types.ErrInvalidAmount)
	}
	if s[0] == '-' {
		return "", fmt.Errorf("%w: negative amount %q", types.ErrInvalidAmount, decimal)
	}

	intPart, fracPart, hasPoint := strings.Cut(s, ".")
	if !isDigits(intPart) || (hasPoint && !isDigits(fracPart)) {
		return "", fmt.Errorf("%w: %q is not a decimal number", types.ErrInvalidAmount, decimal)
	}
	if len(fracPart) > int(decimals) {
		return "", fmt.Errorf("%w: %q has more than %d fractional digits", types.ErrInvalidAmount, decimal, decimals)
	}

	digits := intPart + fracPart + strings.Repeat("0", int(decimals)-len(fracPart))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return "", fmt.Errorf("%w: %q is not a decimal number", types.ErrInvalidAmount, decimal)
	}
	if v.BitLen() > math.MaxBitLen {
		return "", fmt.Errorf("%w: %q overflows 256 bits", types.ErrInvalidAmount, decimal)
	}
	return v.String(), nil
}

// ToDecimalString renders base units for display with at most precision fractional digits,
// rounding half up and trimming trailing zeros. Zero renders as "0" and positive values
// smaller than the smallest displayable unit render as "<0.0…1".
func ToDecimalString(integer string, decimals uint8, precision int) (string, error) {
	if decimals > types.MaxTokenDecimals {
		return "", fmt.Errorf("%w: decimals %d exceeds %d", types.ErrInvalidAmount, decimals, types.MaxTokenDecimals)
	}
	if precision < 0 {
		return "", fmt.Errorf("%w: negative precision %d", types.ErrInvalidAmount, precision)
	}
	parsed, err := ParseBaseUnits(integer)
	if err != nil {
		return "", err
	}
	if parsed.IsZero() {
		return "0", nil
	}
	if precision > int(decimals) {
		precision = int(decimals)
	}

	value := parsed.BigInt()
	drop := int(decimals) - precision
	if drop > 0 {
		unit := pow10(drop)
		if value.Cmp(unit) < 0 {
			return "<" + smallestUnit(precision), nil
		}
		half := new(big.Int).Div(unit, big.NewInt(2))
		value.Add(value, half)
		value.Div(value, unit)
	}

	scale := pow10(precision)
	whole, frac := new(big.Int).QuoRem(value, scale, new(big.Int))
	if precision == 0 || frac.Sign() == 0 {
		return whole.String(), nil
	}
	fracStr := frac.String()
	fracStr = strings.Repeat("0", precision-len(fracStr)) + fracStr
	return whole.String() + "." + strings.TrimRight(fracStr, "0"), nil
}

// ParseBaseUnits parses a non-negative base-unit integer string that fits in 256 bits.
func ParseBaseUnits(s string) (math.Int, error) {
	s = strings.TrimSpace(s)
	if !isDigits(s) {
		return math.Int{}, fmt.Errorf("%w: %q is not a base-unit integer", types.ErrInvalidAmount, s)
	}
	v, ok := math.NewIntFromString(s)
	if !ok {
		return math.Int{}, fmt.Errorf("%w: %q overflows 256 bits", types.ErrInvalidAmount, s)
	}
	return v, nil
}

// isDigits reports whether s is a non-empty run of ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(ten, big.NewInt(int64(n)), nil)
}

func smallestUnit(precision int) string {
	if precision == 0 {
		return "1"
	}
	return "0." + strings.Repeat("0", precision-1) + "1"
}
