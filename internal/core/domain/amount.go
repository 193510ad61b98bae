package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountDecimals is the number of fractional digits of one NUSD. It matches
// TRX (sun) and USDT-TRC20 so on-chain integers map to base units 1:1.
const AmountDecimals = 6

// ErrMalformedAmount is returned by ParseAmount for unparseable input.
var ErrMalformedAmount = errors.New("malformed amount")

// ParseAmount converts a decimal string such as "12.5" into base units.
// Sign is preserved; callers enforce positivity.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedAmount, err)
	}
	scaled := d.Shift(AmountDecimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("%w: more than %d decimal places", ErrMalformedAmount, AmountDecimals)
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: out of range", ErrMalformedAmount)
	}
	return scaled.IntPart(), nil
}

// FormatAmount renders base units as a decimal string without trailing zeros.
func FormatAmount(units int64) string {
	return decimal.New(units, -AmountDecimals).String()
}
