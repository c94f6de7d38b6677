package currency

import (
	"context"
	"log/slog"
	"slices"
)

// FallbackCurrencies is used when the upstream list of supported currencies
// cannot be fetched.
var FallbackCurrencies = []string{
	"AUD", "BGN", "BRL", "CAD", "CHF", "CNY", "CZK", "DKK", "EUR", "GBP", "HKD",
	"HUF", "IDR", "ILS", "INR", "ISK", "JPY", "KRW", "MXN", "MYR", "NOK", "NZD",
	"PHP", "PLN", "RON", "SEK", "SGD", "THB", "TRY", "USD", "ZAR",
}

// SupportedSet is the set of currency codes the rates upstream knows.
type SupportedSet map[string]struct{}

// NewSupportedSet builds a set from codes.
func NewSupportedSet(codes ...string) SupportedSet {
	s := make(SupportedSet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

func (s SupportedSet) Contains(code string) bool {
	_, ok := s[code]
	return ok
}

// Codes returns the codes in sorted order.
func (s SupportedSet) Codes() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// LoadSupported fetches the supported currencies once. Any failure, or an
// empty answer, falls back to FallbackCurrencies.
func LoadSupported(ctx context.Context, fetch func(context.Context) (map[string]string, error), log *slog.Logger) SupportedSet {
	names, err := fetch(ctx)
	if err != nil {
		log.Warn("Failed to fetch supported currencies, using fallback list",
			"error", err,
			"fallback_count", len(FallbackCurrencies),
		)
		return NewSupportedSet(FallbackCurrencies...)
	}
	if len(names) == 0 {
		log.Warn("Upstream returned no supported currencies, using fallback list")
		return NewSupportedSet(FallbackCurrencies...)
	}

	set := make(SupportedSet, len(names))
	for code := range names {
		set[code] = struct{}{}
	}
	log.Info("Loaded supported currencies", "count", len(set))
	return set
}
