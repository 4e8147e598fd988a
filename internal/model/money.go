package model

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Money is a decimal amount paired with an ISO-4217 currency code.
// Amounts are never exchanged as bare floats.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NewMoney builds a Money from a float amount and currency code.
// Intended for configuration and test fixtures; persisted values
// round-trip through decimal directly.
func NewMoney(amount float64, code string) Money {
	return Money{Amount: decimal.NewFromFloat(amount), Currency: code}
}

// Validate checks the currency code against the ISO-4217 registry and
// rejects negative amounts.
func (m Money) Validate() error {
	if _, err := currency.ParseISO(m.Currency); err != nil {
		return eris.Wrapf(err, "model: invalid currency %q", m.Currency)
	}
	if m.Amount.IsNegative() {
		return eris.Errorf("model: negative amount %s %s", m.Amount, m.Currency)
	}
	return nil
}

// Mul scales the amount by a dimensionless factor.
func (m Money) Mul(factor float64) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromFloat(factor)), Currency: m.Currency}
}

// Add sums two amounts. Currencies must match; mixing currencies is a
// programming error, not a runtime condition, so Add panics on mismatch.
func (m Money) Add(other Money) Money {
	if other.Currency != "" && m.Currency != "" && other.Currency != m.Currency {
		panic(fmt.Sprintf("model: currency mismatch %s + %s", m.Currency, other.Currency))
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}
}

// Sub subtracts other from m under the same currency rules as Add.
func (m Money) Sub(other Money) Money {
	return m.Add(Money{Amount: other.Amount.Neg(), Currency: other.Currency})
}

// Round returns the amount rounded to two decimal places.
func (m Money) Round() Money {
	return Money{Amount: m.Amount.Round(2), Currency: m.Currency}
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// Float returns the amount as a float64 for breakdown reporting.
func (m Money) Float() float64 {
	f, _ := m.Amount.Float64()
	return f
}

// String renders the amount with its currency code, e.g. "264.00 USD".
func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}
