// Package money implements exact fixed-point monetary arithmetic.
//
// Amounts are held as int64 minor units (cents, pence, whole yen). Every
// binary operation requires both operands to share a currency.
package money

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

// RuleCurrencyMismatch is the business rule raised when operands differ in currency.
const RuleCurrencyMismatch = "currency_mismatch"

var (
	maxAmount = decimal.NewFromInt(math.MaxInt64)
	minAmount = decimal.NewFromInt(math.MinInt64)
	hundred   = decimal.NewFromInt(100)
)

// Money is an immutable amount of a currency in minor units.
type Money struct {
	amount   int64
	currency Currency
}

// FromMinorUnits builds Money from an amount already in minor units.
func FromMinorUnits(amount int64, currency Currency) Money {
	return Money{amount: amount, currency: currency}
}

// Zero returns a zero amount of the given currency.
func Zero(currency Currency) Money {
	return Money{currency: currency}
}

// FromDecimal converts a major-unit amount (e.g. 19.99) to Money, rounding to
// the nearest minor unit.
func FromDecimal(value float64, currency Currency) (Money, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Money{}, apperrors.Validation("amount", value, "must be a finite number")
	}
	return fromMajor(decimal.NewFromFloat(value), currency)
}

// FromDecimalString parses a major-unit amount such as "19.99".
func FromDecimalString(value string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Money{}, apperrors.Validation("amount", value, "must be a decimal number")
	}
	return fromMajor(d, currency)
}

func fromMajor(d decimal.Decimal, currency Currency) (Money, error) {
	if currency.IsZero() {
		return Money{}, apperrors.Validation("currency", "", "is required")
	}
	minor, err := toMinor(d.Shift(currency.decimals))
	if err != nil {
		return Money{}, err
	}
	return Money{amount: minor, currency: currency}, nil
}

// toMinor rounds half away from zero and checks the int64 range.
func toMinor(d decimal.Decimal) (int64, error) {
	r := d.Round(0)
	if r.GreaterThan(maxAmount) || r.LessThan(minAmount) {
		return 0, apperrors.Validation("amount", r.String(), "amount out of range")
	}
	return r.IntPart(), nil
}

// Amount returns the value in minor units.
func (m Money) Amount() int64 { return m.amount }

// Currency returns the money's currency.
func (m Money) Currency() Currency { return m.currency }

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.amount, -m.currency.decimals)
}

func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return apperrors.BusinessRule(RuleCurrencyMismatch,
			fmt.Sprintf("cannot combine %s with %s", m.currency.code, other.currency.code))
	}
	return nil
}

// Add returns m + other.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	sum := m.amount + other.amount
	if (other.amount > 0 && sum < m.amount) || (other.amount < 0 && sum > m.amount) {
		return Money{}, apperrors.Validation("amount", nil, "addition overflows")
	}
	return Money{amount: sum, currency: m.currency}, nil
}

// Subtract returns m - other.
func (m Money) Subtract(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	diff := m.amount - other.amount
	if (other.amount > 0 && diff > m.amount) || (other.amount < 0 && diff < m.amount) {
		return Money{}, apperrors.Validation("amount", nil, "subtraction overflows")
	}
	return Money{amount: diff, currency: m.currency}, nil
}

// Multiply scales m by factor, rounding half away from zero.
func (m Money) Multiply(factor float64) (Money, error) {
	if math.IsNaN(factor) || math.IsInf(factor, 0) {
		return Money{}, apperrors.Validation("factor", factor, "must be a finite number")
	}
	minor, err := toMinor(decimal.NewFromInt(m.amount).Mul(decimal.NewFromFloat(factor)))
	if err != nil {
		return Money{}, err
	}
	return Money{amount: minor, currency: m.currency}, nil
}

// MultiplyInt scales m by an integer quantity exactly.
func (m Money) MultiplyInt(n int64) (Money, error) {
	if n != 0 && m.amount != 0 {
		product := m.amount * n
		if product/n != m.amount || (m.amount == -1 && n == math.MinInt64) || (n == -1 && m.amount == math.MinInt64) {
			return Money{}, apperrors.Validation("amount", nil, "multiplication overflows")
		}
		return Money{amount: product, currency: m.currency}, nil
	}
	return Money{currency: m.currency}, nil
}

// Divide splits m by divisor, rounding half away from zero.
func (m Money) Divide(divisor float64) (Money, error) {
	if math.IsNaN(divisor) || math.IsInf(divisor, 0) {
		return Money{}, apperrors.Validation("divisor", divisor, "must be a finite number")
	}
	if divisor == 0 {
		return Money{}, apperrors.Validation("divisor", divisor, "division by zero")
	}
	minor, err := toMinor(decimal.NewFromInt(m.amount).Div(decimal.NewFromFloat(divisor)))
	if err != nil {
		return Money{}, err
	}
	return Money{amount: minor, currency: m.currency}, nil
}

// Percentage returns pct percent of m, rounding half away from zero.
func (m Money) Percentage(pct float64) (Money, error) {
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return Money{}, apperrors.Validation("percentage", pct, "must be a finite number")
	}
	minor, err := toMinor(decimal.NewFromInt(m.amount).Mul(decimal.NewFromFloat(pct)).Div(hundred))
	if err != nil {
		return Money{}, err
	}
	return Money{amount: minor, currency: m.currency}, nil
}

// Negate returns -m.
func (m Money) Negate() (Money, error) {
	if m.amount == math.MinInt64 {
		return Money{}, apperrors.Validation("amount", nil, "negation overflows")
	}
	return Money{amount: -m.amount, currency: m.currency}, nil
}

// Abs returns |m|.
func (m Money) Abs() (Money, error) {
	if m.amount < 0 {
		return m.Negate()
	}
	return m, nil
}

// Compare returns -1, 0 or +1 as m is less than, equal to or greater than other.
func (m Money) Compare(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	switch {
	case m.amount < other.amount:
		return -1, nil
	case m.amount > other.amount:
		return 1, nil
	default:
		return 0, nil
	}
}

// GreaterThan reports m > other.
func (m Money) GreaterThan(other Money) (bool, error) {
	c, err := m.Compare(other)
	return c > 0, err
}

// GreaterThanOrEqual reports m >= other.
func (m Money) GreaterThanOrEqual(other Money) (bool, error) {
	c, err := m.Compare(other)
	return c >= 0, err
}

// LessThan reports m < other.
func (m Money) LessThan(other Money) (bool, error) {
	c, err := m.Compare(other)
	return c < 0, err
}

// LessThanOrEqual reports m <= other.
func (m Money) LessThanOrEqual(other Money) (bool, error) {
	c, err := m.Compare(other)
	return c <= 0, err
}

// Equal reports whether both amount and currency match.
func (m Money) Equal(other Money) bool {
	return m.amount == other.amount && m.currency == other.currency
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.amount == 0 }

// IsPositive reports whether the amount is above zero.
func (m Money) IsPositive() bool { return m.amount > 0 }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.amount < 0 }

// Min returns the smaller of a and b.
func Min(a, b Money) (Money, error) {
	c, err := a.Compare(b)
	if err != nil {
		return Money{}, err
	}
	if c <= 0 {
		return a, nil
	}
	return b, nil
}

// Max returns the larger of a and b.
func Max(a, b Money) (Money, error) {
	c, err := a.Compare(b)
	if err != nil {
		return Money{}, err
	}
	if c >= 0 {
		return a, nil
	}
	return b, nil
}

// Sum adds amounts, starting from zero in currency.
func Sum(currency Currency, amounts ...Money) (Money, error) {
	total := Zero(currency)
	for _, a := range amounts {
		var err error
		if total, err = total.Add(a); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

// DecimalString renders the amount in major units with the currency's fixed digits.
func (m Money) DecimalString() string {
	return m.Decimal().StringFixed(m.currency.decimals)
}

// Format renders the amount with its currency symbol, e.g. "£19.99" or "¥1500".
func (m Money) Format() string {
	if m.amount < 0 {
		return "-" + m.currency.symbol + m.Decimal().Abs().StringFixed(m.currency.decimals)
	}
	return m.currency.symbol + m.DecimalString()
}

// String renders e.g. "19.99 GBP".
func (m Money) String() string {
	return m.DecimalString() + " " + m.currency.code
}

type moneyJSON struct {
	Amount   int64    `json:"amount"`
	Currency Currency `json:"currency"`
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount, Currency: m.currency})
}

// UnmarshalJSON implements json.Unmarshaler, rejecting missing or unsupported
// currencies.
func (m *Money) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var raw moneyJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Currency.IsZero() {
		return apperrors.Validation("currency", nil, "currency is required")
	}
	*m = Money{amount: raw.Amount, currency: raw.Currency}
	return nil
}
