package chain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ToUnits converts a user-facing decimal amount string into fixed-point
// integer units for the given token decimals. The conversion is exact: an
// amount with more fractional digits than the token supports is rejected
// rather than rounded, and no binary floating point is involved.
func ToUnits(amount string, decimals int) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be greater than zero")
	}
	if d.Exponent() < int32(-decimals) {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}
	units := d.Shift(int32(decimals))
	if !units.IsInteger() {
		return nil, fmt.Errorf("amount %s is not representable in %d decimals", amount, decimals)
	}
	return units.BigInt(), nil
}

// FromUnits converts fixed-point integer units back into a decimal string.
func FromUnits(units *big.Int, decimals int) string {
	if units == nil {
		return "0"
	}
	return decimal.NewFromBigInt(units, int32(-decimals)).String()
}
