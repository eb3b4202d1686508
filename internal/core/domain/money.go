package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
)

// Money holds an amount in minor units (cents).
// Example: $10.50 is stored as 1050.
type Money struct {
	Amount   int64
	Currency Currency
}

func NewMoney(amount int64, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

// Add adds two Money values of the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: cannot add %s to %s", other.Currency, m.Currency)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Subtract subtracts Money of the same currency, refusing to go negative.
func (m Money) Subtract(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: cannot subtract %s from %s", other.Currency, m.Currency)
	}
	if m.Amount < other.Amount {
		return Money{}, ErrInsufficientFunds
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

var minorFactor = decimal.NewFromInt(100)

// ParseAmount converts a major-unit decimal string ("120.50") into minor
// units. The arithmetic is exact: anything finer than a cent, anything
// non-numeric, and anything non-positive is rejected with
// ErrInvalidAmount before any store access happens.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	if d.LessThanOrEqual(decimal.Zero) {
		return 0, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidAmount, d)
	}
	minor := d.Mul(minorFactor)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%w: %s has sub-cent precision", ErrInvalidAmount, d)
	}
	return minor.IntPart(), nil
}

// FormatAmount renders minor units as a major-unit string ("120.50").
func FormatAmount(minor int64) string {
	return decimal.NewFromInt(minor).Div(minorFactor).StringFixed(2)
}
