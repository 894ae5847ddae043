// Package money converts store amounts between int64 minor units, decimal strings and
// localized display strings.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const minorExponent = 2

// ErrNegativeAmount is returned when a configured price is below zero.
var ErrNegativeAmount = errors.New("money: amount must not be negative")

// ParseMinor parses a major unit decimal such as "49.99" into minor units.
// Blank input parses as zero.
func ParseMinor(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("money: parse %q: %w", value, err)
	}
	if d.IsNegative() {
		return 0, ErrNegativeAmount
	}
	return d.Shift(minorExponent).Round(0).IntPart(), nil
}

// Major converts minor units into a major unit decimal.
func Major(amount int64) decimal.Decimal {
	return decimal.New(amount, -minorExponent)
}

// Number renders minor units as a JSON number with two decimals.
func Number(amount int64) json.Number {
	return json.Number(Major(amount).StringFixed(minorExponent))
}

// Formatter renders amounts with the currency symbol and number format of a locale.
type Formatter struct {
	printer *message.Printer
	unit    currency.Unit
}

// NewFormatter builds a formatter for a BCP 47 locale and an ISO 4217 currency code.
func NewFormatter(locale, code string) (Formatter, error) {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return Formatter{}, fmt.Errorf("money: parse locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return Formatter{}, fmt.Errorf("money: parse currency %q: %w", code, err)
	}
	return Formatter{printer: message.NewPrinter(tag), unit: unit}, nil
}

// MustFormatter is NewFormatter falling back to English when the locale or currency is unknown.
func MustFormatter(locale, code string) Formatter {
	f, err := NewFormatter(locale, code)
	if err == nil {
		return f
	}
	unit, cerr := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if cerr != nil {
		unit = currency.MustParseISO("EGP")
	}
	return Formatter{printer: message.NewPrinter(language.English), unit: unit}
}

// Format renders minor units, for example "EGP 250.00" in English.
func (f Formatter) Format(amount int64) string {
	if f.printer == nil {
		return Major(amount).StringFixed(minorExponent)
	}
	return f.printer.Sprint(currency.Symbol(f.unit.Amount(Major(amount).InexactFloat64())))
}

// Currency returns the ISO code of the formatter currency.
func (f Formatter) Currency() string {
	return f.unit.String()
}
