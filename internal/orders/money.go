package orders

import (
	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount. It encodes to JSON as a number with two
// fractional digits and decodes from either a JSON number or string.
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money { return Money{Decimal: d} }

// MustMoney parses s and panics on malformed input; meant for fixtures.
func MustMoney(s string) Money { return Money{Decimal: decimal.RequireFromString(s)} }

func (m Money) Mul(qty int) Money {
	return Money{Decimal: m.Decimal.Mul(decimal.NewFromInt(int64(qty)))}
}

func (m Money) Add(o Money) Money {
	return Money{Decimal: m.Decimal.Add(o.Decimal)}
}

func (m Money) Equal(o Money) bool { return m.Decimal.Equal(o.Decimal) }

func (m Money) String() string { return m.Decimal.StringFixed(2) }

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.StringFixed(2)), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	return m.Decimal.UnmarshalJSON(b)
}
