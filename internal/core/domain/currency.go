package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBaseCurrency is the currency every stored rate is expressed in.
const DefaultBaseCurrency = "ILS"

// RateDateLayout is the wire and storage layout of a rate date.
const RateDateLayout = "2006-01-02"

// CurrencyRateRecord holds how many units of the base currency buy one unit
// of CurrencyCode on RateDate.
type CurrencyRateRecord struct {
	CountryName  string          `json:"country_name"`
	CurrencyCode string          `json:"currency_code"`
	Rate         decimal.Decimal `json:"shekel_rate"`
	RateDate     time.Time       `json:"rate_date"`
}

// Key returns the natural key used for logging.
func (r CurrencyRateRecord) Key() string {
	return r.CountryName + "/" + r.CurrencyCode + "/" + r.RateDate.Format(RateDateLayout)
}

// CurrencyRate is a stored rate row.
type CurrencyRate struct {
	ID int64 `json:"id"`
	CurrencyRateRecord
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsCurrencyCode reports whether code is exactly three upper-case ASCII letters.
func IsCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}

// TruncateDate drops the time of day and moves t to UTC.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
