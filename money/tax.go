package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// CalculateTax returns the tax due on a net amount for a percentage rate,
// rounded to two decimals: CalculateTax(100, 10) == 10.00.
func CalculateTax(net, ratePercent decimal.Decimal) decimal.Decimal {
	if ratePercent.IsZero() {
		return decimal.Zero
	}
	return net.Mul(ratePercent).Div(hundred).Round(2)
}
