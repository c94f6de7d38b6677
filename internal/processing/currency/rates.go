package currency

import (
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// InvertRates turns upstream rates quoted as "code per 1 base" into "base per
// 1 code". Non-positive rates are dropped and the base itself is exactly 1.
func InvertRates(base string, upstream map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(upstream)+1)
	for code, rate := range upstream {
		if code == base || !rate.IsPositive() {
			continue
		}
		out[code] = one.Div(rate)
	}
	out[base] = one
	return out
}
