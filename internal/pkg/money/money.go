package money

import "github.com/shopspring/decimal"

// Scale is the number of decimal places kept for monetary values.
const Scale = 2

var (
	minutesPerHour = decimal.NewFromInt(60)
	hundred        = decimal.NewFromInt(100)
)

// Round rounds half away from zero to two decimal places. For the
// non-negative amounts the engine produces this is round-half-up.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Sum adds amounts without rounding.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// NonNegative returns d, or zero when d is negative.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Hours converts a minute count to fractional hours.
func Hours(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(minutesPerHour)
}

// Percent renders a fractional rate as a percentage, e.g. 0.075 -> 7.5.
func Percent(rate decimal.Decimal) decimal.Decimal {
	return rate.Mul(hundred)
}
