package storage

import (
	"context"
	"time"

	"github.com/vietddude/ratesync/internal/core/domain"
)

// CountryFilter narrows ListCountries.
type CountryFilter struct {
	Continent string
	UNMember  *bool
	Limit     int
	Offset    int
}

// RateFilter narrows ListRates.
type RateFilter struct {
	CurrencyCode string
	CountryName  string
	Since        time.Time
	Limit        int
	Offset       int
}

// CountryRepository handles country storage operations
type CountryRepository interface {
	// UpsertCountry inserts a country or updates the row with the same name
	UpsertCountry(ctx context.Context, c *domain.CountryRecord) error

	// GetCountryByName retrieves a country by its exact name, nil if absent
	GetCountryByName(ctx context.Context, name string) (*domain.Country, error)

	// ListCountries lists countries ordered by name
	ListCountries(ctx context.Context, filter CountryFilter) ([]*domain.Country, error)

	// CountryCurrencies lists every country with at least one currency
	CountryCurrencies(ctx context.Context) ([]domain.CountryCurrencies, error)

	// CountCountries returns the number of stored countries
	CountCountries(ctx context.Context) (int, error)
}

// RateRepository handles currency rate storage operations
type RateRepository interface {
	// UpsertRate inserts a rate or updates the row with the same natural key
	UpsertRate(ctx context.Context, r *domain.CurrencyRateRecord) error

	// ListRates lists rates, newest first
	ListRates(ctx context.Context, filter RateFilter) ([]*domain.CurrencyRate, error)

	// LatestRates returns the newest rate of each currency code
	LatestRates(ctx context.Context) ([]*domain.CurrencyRate, error)

	// LatestRate returns the newest rate of one currency code, nil if absent
	LatestRate(ctx context.Context, code string) (*domain.CurrencyRate, error)

	// RateHistory returns the rates of a country's currency over the last days
	RateHistory(ctx context.Context, country, code string, days int) ([]*domain.CurrencyRate, error)

	// CountRates returns the number of stored rates
	CountRates(ctx context.Context) (int, error)
}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}
