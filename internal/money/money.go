// Package money converts between the decimal string amounts used on the API
// surface and the int64 minor units stored in the ledger. All arithmetic
// inside the engine happens on minor units; decimals exist only at the edges.
package money

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	apperrors "finledger/internal/errors"
)

// ValidCurrency reports whether code is a known ISO 4217 currency code.
func ValidCurrency(code string) bool {
	return money.GetCurrency(code) != nil
}

// exponent returns the number of decimal places for the currency.
// Unknown currencies default to 2, which keeps parsing usable for tests
// that fabricate codes.
func exponent(currency string) int32 {
	if c := money.GetCurrency(currency); c != nil {
		return int32(c.Fraction)
	}
	return 2
}

// Parse converts a decimal string like "123.45" into minor units for the
// given currency. It rejects malformed input and values with more fractional
// digits than the currency carries.
func Parse(amount, currency string) (int64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid amount: "+amount)
	}
	exp := exponent(currency)
	scaled := d.Shift(exp)
	if !scaled.IsInteger() {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount has too many decimal places for "+currency)
	}
	return scaled.IntPart(), nil
}

// Format renders minor units as a plain decimal string, e.g. 12345 -> "123.45".
func Format(minor int64, currency string) string {
	return decimal.New(minor, -exponent(currency)).StringFixed(exponent(currency))
}

// Display renders minor units with the currency symbol/grammar, e.g. "$123.45".
// Used by exports; the JSON API sticks to Format.
func Display(minor int64, currency string) string {
	if money.GetCurrency(currency) == nil {
		return Format(minor, currency)
	}
	return money.New(minor, currency).Display()
}
