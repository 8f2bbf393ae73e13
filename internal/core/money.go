// Package core holds the clinic's financial domain: money arithmetic,
// transaction/expense records, period aggregation and the proportional
// payment allocation used by insurance reconciliation.
package core

import (
	"github.com/shopspring/decimal"
)

// Money is an exact fixed-point amount held as integer cents. Report totals
// must match the sum of their rows to the cent, so all arithmetic stays in
// integers; decimals only appear transiently for percentage and ratio
// application, rounded half-up back to cents.
type Money struct {
	Cents int64
}

// FromCents wraps an integer minor-unit amount.
func FromCents(cents int64) Money {
	return Money{Cents: cents}
}

// ParseAmount normalizes an external amount (decimal string, dot or comma
// separator) into Money. Anything non-numeric, NaN-like or negative fails
// with ErrInvalidAmount. Zero is a valid amount: a fully covered visit has a
// zero patient share.
func ParseAmount(s string) (Money, error) {
	d, err := decimal.NewFromString(normalizeSeparators(s))
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.IsNegative() {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: d.Round(2).Shift(2).IntPart()}, nil
}

func normalizeSeparators(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case ',':
			out = append(out, '.')
		case ' ', '\t':
			// trimmed
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// Cmp returns -1, 0 or 1 comparing m against o.
func (m Money) Cmp(o Money) int {
	switch {
	case m.Cents < o.Cents:
		return -1
	case m.Cents > o.Cents:
		return 1
	}
	return 0
}

func (m Money) IsZero() bool     { return m.Cents == 0 }
func (m Money) IsNegative() bool { return m.Cents < 0 }

// MulPercent applies an integer percentage (coverage computation), rounding
// half-up to cents.
func (m Money) MulPercent(pct int64) Money {
	d := m.Decimal().Mul(decimal.New(pct, -2))
	return Money{Cents: d.Round(2).Shift(2).IntPart()}
}

// MulRatio scales m by num/den, rounding half-up to cents. The ratio may
// exceed 1 (overpayment) or sit below 1 (underpayment).
func (m Money) MulRatio(num, den Money) Money {
	d := m.Decimal().Mul(num.Decimal()).Div(den.Decimal())
	return Money{Cents: d.Round(2).Shift(2).IntPart()}
}

// Decimal exposes the amount as a shopspring decimal for transient math.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the canonical two-decimal form used on every serialization
// boundary; raw floats never cross the wire.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}
