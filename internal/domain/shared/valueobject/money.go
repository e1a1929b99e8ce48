package valueobject

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	USD Currency = "USD"
)

// DefaultCurrency is the only currency rent is collected in
const DefaultCurrency = USD

// CentPlaces is the number of decimal places money is rounded to
const CentPlaces int32 = 2

var usPrinter = message.NewPrinter(language.AmericanEnglish)

// Round2 rounds an amount half away from zero to whole cents
func Round2(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(CentPlaces)
}

// Money is an immutable amount in a currency
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates Money with the given amount and currency
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{amount: amount, currency: currency}, nil
}

// NewMoneyUSD creates Money in US dollars
func NewMoneyUSD(amount decimal.Decimal) Money {
	return Money{amount: amount, currency: USD}
}

// ParseMoneyUSD parses a decimal dollar string such as "1200.50"
func ParseMoneyUSD(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoneyUSD(d), nil
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// IsPositive reports whether the amount is greater than zero
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// Round2 returns the amount rounded to cents
func (m Money) Round2() Money {
	return Money{amount: Round2(m.amount), currency: m.currency}
}

// String returns the amount with two decimals, e.g. "1200.50"
func (m Money) String() string {
	return m.amount.StringFixed(CentPlaces)
}

// Format renders the amount for people, e.g. "$1,200.50"
func (m Money) Format() string {
	rounded := Round2(m.amount)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Abs()
	}
	whole := rounded.Truncate(0)
	cents := rounded.Sub(whole).Shift(CentPlaces).IntPart()
	symbol := "$"
	if m.currency != USD && m.currency != "" {
		symbol = string(m.currency) + " "
	}
	return usPrinter.Sprintf("%s%s%d.%02d", sign, symbol, whole.IntPart(), cents)
}

// FormatUSD formats a dollar amount for display
func FormatUSD(amount decimal.Decimal) string {
	return NewMoneyUSD(amount).Format()
}
