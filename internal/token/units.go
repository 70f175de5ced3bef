package token

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits of USDT
const Decimals = 6

// FormatUSDT renders token units as a human-readable USDT amount
func FormatUSDT(units uint64) string {
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(units), -Decimals)
	return fmt.Sprintf("%s USDT", d.String())
}

// ParseUSDT converts a human-readable amount such as "552" or "0.5" to token units
func ParseUSDT(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount: %w", err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative")
	}

	units := d.Shift(Decimals)
	if !units.Equal(units.Truncate(0)) {
		return 0, fmt.Errorf("amount has more than %d decimals", Decimals)
	}

	bi := units.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("amount too large")
	}
	return bi.Uint64(), nil
}
