package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the only currency the package catalog is priced in.
const DefaultCurrency = "USD"

// Money is a non-negative amount with a currency tag, kept at two
// fractional digits (round half up).
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoney validates and rounds amount. An empty currency means DefaultCurrency.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if amount.IsNegative() {
		return Money{}, fmt.Errorf("%w: money cannot be negative (%s)", ErrInvalidArgument, amount)
	}
	cur := strings.ToUpper(strings.TrimSpace(currency))
	if cur == "" {
		cur = DefaultCurrency
	}
	// decimal.Round rounds half away from zero, which is half up for non-negative amounts.
	return Money{amount: amount.Round(2), currency: cur}, nil
}

// ParseMoney parses a decimal string such as "9.99".
func ParseMoney(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("%w: invalid money amount %q", ErrInvalidArgument, s)
	}
	return NewMoney(d, currency)
}

// MustParseMoney is ParseMoney for package-level constants.
func MustParseMoney(s, currency string) Money {
	m, err := ParseMoney(s, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// MoneyFromCents rebuilds Money from a minor-unit amount (storage format).
func MoneyFromCents(cents int64, currency string) (Money, error) {
	return NewMoney(decimal.New(cents, -2), currency)
}

func ZeroMoney(currency string) Money {
	m, _ := NewMoney(decimal.Zero, currency)
	return m
}

func (m Money) Amount() decimal.Decimal { return m.amount }

func (m Money) Currency() string {
	if m.currency == "" {
		return DefaultCurrency
	}
	return m.currency
}

// Cents returns the amount in minor units, as payment processors expect.
func (m Money) Cents() int64 {
	return m.amount.Shift(2).IntPart()
}

func (m Money) IsZero() bool { return m.amount.IsZero() }

func (m Money) Add(other Money) (Money, error) {
	if m.Currency() != other.Currency() {
		return Money{}, fmt.Errorf("%w: cannot add %s to %s", ErrInvalidArgument, other.Currency(), m.Currency())
	}
	return NewMoney(m.amount.Add(other.amount), m.Currency())
}

func (m Money) Sub(other Money) (Money, error) {
	if m.Currency() != other.Currency() {
		return Money{}, fmt.Errorf("%w: cannot subtract %s from %s", ErrInvalidArgument, other.Currency(), m.Currency())
	}
	return NewMoney(m.amount.Sub(other.amount), m.Currency())
}

// Equal compares amount and currency.
func (m Money) Equal(other Money) bool {
	return m.Currency() == other.Currency() && m.amount.Equal(other.amount)
}

func (m Money) String() string {
	return m.Currency() + " " + m.amount.StringFixed(2)
}
