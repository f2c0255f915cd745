// Package money holds the decimal helpers shared by the schedule generator
// and the recalculation engine. Amounts are shopspring decimals rounded to
// cents; nothing in the engine touches float64.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fraction digits every stored amount carries.
const Scale = 2

var (
	// Epsilon absorbs sub-cent noise when comparing a tendered amount to
	// an installment's due amount, or a balance to zero.
	Epsilon = decimal.RequireFromString("0.005")

	hundred = decimal.NewFromInt(100)
)

// Round rounds half away from zero to cents.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Floor0 clamps negative amounts to zero.
func Floor0(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Percent converts a percentage (10 for 10%) into a fraction (0.1).
func Percent(rate decimal.Decimal) decimal.Decimal {
	return rate.Div(hundred)
}

// IsCents reports whether d has no more than two fraction digits.
func IsCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(Scale))
}

// Sum adds up amounts.
func Sum(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Format renders an amount with exactly two fraction digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

// Parse reads a money string and rejects anything finer than cents.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !IsCents(d) {
		return decimal.Zero, fmt.Errorf("invalid amount %q: more than %d fraction digits", s, Scale)
	}
	return d, nil
}

// Split divides total into n cent amounts whose sum is exactly total.
//
// Every part except the last gets round(total/n), clamped so it never
// exceeds what is still unallocated. The last part takes whatever remains,
// which absorbs the rounding residue. A non-positive total yields n zeros.
func Split(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	parts := make([]decimal.Decimal, n)
	share := Floor0(Round(total.Div(decimal.NewFromInt(int64(n)))))
	allocated := decimal.Zero
	for i := 0; i < n-1; i++ {
		unallocated := Floor0(total.Sub(allocated))
		part := share
		if part.GreaterThan(unallocated) {
			part = unallocated
		}
		parts[i] = part
		allocated = allocated.Add(part)
	}
	parts[n-1] = Floor0(Round(total.Sub(allocated)))
	return parts
}
