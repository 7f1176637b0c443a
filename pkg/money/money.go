// Package money holds the shared currency math for the settlement engine.
// All amounts are decimal to avoid binary-float cent drift.
package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Round rounds a monetary amount to 2 decimal places, half up.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// GMVCommission computes the commission owed on a GMV figure at the given
// percentage rate. Non-positive inputs yield zero.
func GMVCommission(gmv, ratePercent decimal.Decimal) decimal.Decimal {
	if gmv.LessThanOrEqual(decimal.Zero) || ratePercent.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return Round(gmv.Mul(ratePercent).Div(hundred))
}

// Percent applies ratePercent to amount without rounding. Callers that sum
// several contributions round once at the end.
func Percent(amount, ratePercent decimal.Decimal) decimal.Decimal {
	return amount.Mul(ratePercent).Div(hundred)
}
