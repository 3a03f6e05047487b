// Package money provides the pure monetary helpers shared by the ledger: cleaning
// user supplied amounts, currency aware rounding and equality, display formatting
// and tax calculation. Nothing in this package touches storage.
//
// Amounts are always decimal.Decimal values. Currency metadata (minor unit
// fraction, display template) comes from go-money's ISO 4217 table.
//
// Example usage:
//
//	amount, err := money.Clean("$ 1,234.50")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(money.Format(amount, "USD")) // $1,234.50
package money

import (
	"fmt"
	"strings"
	"unicode"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultFraction is used for currencies go-money does not know about.
const DefaultFraction = 2

// EmptyAmountError is returned when an amount string holds no digits at all.
type EmptyAmountError struct {
	Input string
}

func (e *EmptyAmountError) Error() string {
	return fmt.Sprintf("amount %q contains no value", e.Input)
}

// Clean parses a user supplied amount using "," as thousands separator and "."
// as decimal point.
func Clean(s string) (decimal.Decimal, error) {
	return CleanWith(s, ",", ".")
}

// CleanWith parses a user supplied amount such as "$ 1.234,50" into a decimal.
// Currency symbols, ISO codes, whitespace and thousands separators are dropped and
// the configured decimal point is normalised to ".".
func CleanWith(s, thousands, decimalPoint string) (decimal.Decimal, error) {
	value := strings.TrimSpace(s)

	// A value that already went through cleaning ("1234.50") must not lose its
	// decimal point when "." is the thousands separator.
	if thousands == "." && len(value) >= 3 && value[len(value)-3] == '.' {
		thousands = ""
	}

	var b strings.Builder
	for _, r := range value {
		switch {
		case unicode.IsSpace(r), unicode.Is(unicode.Sc, r), unicode.IsLetter(r):
			continue
		}
		b.WriteRune(r)
	}

	cleaned := b.String()
	if thousands != "" {
		cleaned = strings.ReplaceAll(cleaned, thousands, "")
	}
	if decimalPoint != "" && decimalPoint != "." {
		cleaned = strings.ReplaceAll(cleaned, decimalPoint, ".")
	}

	// Accounting style negatives: (12.00)
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		cleaned = "-" + strings.Trim(cleaned, "()")
	}

	if cleaned == "" || cleaned == "-" {
		return decimal.Zero, &EmptyAmountError{Input: s}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// Fraction returns the number of minor unit digits for a currency.
func Fraction(currency string) int32 {
	if c := gomoney.GetCurrency(strings.ToUpper(currency)); c != nil {
		return int32(c.Fraction)
	}
	return DefaultFraction
}

// Round rounds an amount to the minor unit of its currency.
func Round(d decimal.Decimal, currency string) decimal.Decimal {
	return d.Round(Fraction(currency))
}

// Equals reports whether two amounts are the same once rounded to the currency's
// minor unit, so 10.001 USD equals 10.00 USD.
func Equals(a, b decimal.Decimal, currency string) bool {
	return Round(a, currency).Equal(Round(b, currency))
}

// Subtract returns a - b rounded to the currency's minor unit.
func Subtract(a, b decimal.Decimal, currency string) decimal.Decimal {
	return Round(a.Sub(b), currency)
}

// Sum adds amounts together.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Format renders an amount for display, e.g. "$1,234.50" or "€10.00".
// Unknown currencies fall back to "1234.50 XYZ".
func Format(d decimal.Decimal, currency string) string {
	code := strings.ToUpper(currency)
	c := gomoney.GetCurrency(code)
	if c == nil {
		return fmt.Sprintf("%s %s", d.StringFixed(DefaultFraction), code)
	}

	minor := d.Shift(int32(c.Fraction)).Round(0).IntPart()
	return gomoney.New(minor, code).Display()
}
