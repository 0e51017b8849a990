package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amounts fit the settlements column, numeric(20,4).
const (
	amountScale     = 4
	amountIntDigits = 16
)

// checkAmount bounds an amount to amountIntDigits integer digits and
// amountScale decimal places. Only the exponent and digit count are inspected
// before the bound holds, so huge exponents are rejected without expanding them.
func checkAmount(d decimal.Decimal) (decimal.Decimal, error) {
	if d.IsZero() {
		return decimal.Zero, nil
	}
	exp := int64(d.Exponent())
	if exp > amountIntDigits || exp < -(amountScale+2*amountIntDigits) ||
		int64(d.NumDigits())+exp > amountIntDigits {
		return decimal.Decimal{}, fmt.Errorf("%w: amount out of range", ErrInvalidRequest)
	}
	if exp < -amountScale && !d.Equal(d.Truncate(amountScale)) {
		return decimal.Decimal{}, fmt.Errorf("%w: amount has more than %d decimal places", ErrInvalidRequest, amountScale)
	}
	return d, nil
}
