package currency

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vietddude/ratesync/internal/core/domain"
	"github.com/vietddude/ratesync/internal/core/reconcile"
)

// ErrNoRate marks a supported currency that is missing from the rates.
var ErrNoRate = errors.New("no rate")

// Expander builds rate candidates for stored country rows.
type Expander struct {
	Supported SupportedSet
	Rates     map[string]decimal.Decimal
	Date      time.Time
}

// Expand yields one candidate per currency of row. Malformed and unsupported
// codes are discarded; a supported code without a rate fails.
func (x Expander) Expand(i int, row domain.CountryCurrencies) []reconcile.Candidate[domain.CurrencyRateRecord] {
	name := strings.TrimSpace(row.CountryName)
	if name == "" {
		return []reconcile.Candidate[domain.CurrencyRateRecord]{{
			Key: fmt.Sprintf("row[%d]", i),
			Err: domain.NewDiscard(domain.ReasonMissingKey, "country row has no name"),
		}}
	}

	date := domain.TruncateDate(x.Date)
	out := make([]reconcile.Candidate[domain.CurrencyRateRecord], 0, len(row.Currencies))
	for _, raw := range row.Currencies {
		code := strings.ToUpper(strings.TrimSpace(raw))
		rec := domain.CurrencyRateRecord{
			CountryName:  name,
			CurrencyCode: code,
			RateDate:     date,
		}
		c := reconcile.Candidate[domain.CurrencyRateRecord]{Key: rec.Key()}

		switch rate, ok := x.Rates[code]; {
		case !domain.IsCurrencyCode(code):
			c.Err = domain.NewDiscard(domain.ReasonInvalid, "currency code %q", raw)
		case !x.Supported.Contains(code):
			c.Err = domain.NewDiscard(domain.ReasonUnsupported, "currency %s", code)
		case !ok:
			c.Err = fmt.Errorf("currency %s: %w", code, ErrNoRate)
		default:
			rec.Rate = rate
			c.Entity = rec
		}
		out = append(out, c)
	}
	return out
}
