package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/ratesync/internal/core/domain"
	"github.com/vietddude/ratesync/internal/infra/storage"
)

type rateKey struct {
	country string
	code    string
	date    string
}

// MemoryStorage keeps countries and rates in process memory with the same
// merge-on-conflict behavior as the postgres store.
type MemoryStorage struct {
	countries map[string]*domain.Country
	rates     map[rateKey]*domain.CurrencyRate
	nextID    int64
	now       func() time.Time
	mu        sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		countries: make(map[string]*domain.Country),
		rates:     make(map[rateKey]*domain.CurrencyRate),
		now:       time.Now,
	}
}

func (s *MemoryStorage) Health(ctx context.Context) error { return nil }

// -----------------------------------------------------------------------------
// Country Repository
// -----------------------------------------------------------------------------

type CountryRepo struct {
	store *MemoryStorage
}

func NewCountryRepo(store *MemoryStorage) *CountryRepo {
	return &CountryRepo{store: store}
}

func copyCountry(c *domain.Country) *domain.Country {
	out := *c
	out.Capitals = slices.Clone(c.Capitals)
	out.Currencies = slices.Clone(c.Currencies)
	out.Timezones = maps.Clone(c.Timezones)
	return &out
}

func (r *CountryRepo) UpsertCountry(ctx context.Context, c *domain.CountryRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := r.store.now()
	rec := *c
	rec.Capitals = slices.Clone(c.Capitals)
	rec.Currencies = slices.Clone(c.Currencies)
	rec.Timezones = maps.Clone(c.Timezones)

	if existing, ok := r.store.countries[c.Name]; ok {
		existing.CountryRecord = rec
		existing.UpdatedAt = now
		return nil
	}

	r.store.nextID++
	r.store.countries[c.Name] = &domain.Country{
		ID:            r.store.nextID,
		CountryRecord: rec,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return nil
}

func (r *CountryRepo) GetCountryByName(ctx context.Context, name string) (*domain.Country, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	c, ok := r.store.countries[name]
	if !ok {
		return nil, nil
	}
	return copyCountry(c), nil
}

func (r *CountryRepo) ListCountries(ctx context.Context, filter storage.CountryFilter) ([]*domain.Country, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.Country
	for _, c := range r.store.countries {
		if filter.Continent != "" && !strings.EqualFold(c.Continent, filter.Continent) {
			continue
		}
		if filter.UNMember != nil && c.IsUNMember != *filter.UNMember {
			continue
		}
		out = append(out, copyCountry(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *CountryRepo) CountryCurrencies(ctx context.Context) ([]domain.CountryCurrencies, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []domain.CountryCurrencies
	for _, c := range r.store.countries {
		if len(c.Currencies) == 0 {
			continue
		}
		out = append(out, domain.CountryCurrencies{
			CountryName: c.Name,
			Currencies:  slices.Clone(c.Currencies),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CountryName < out[j].CountryName })
	return out, nil
}

func (r *CountryRepo) CountCountries(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.countries), nil
}

// -----------------------------------------------------------------------------
// Rate Repository
// -----------------------------------------------------------------------------

type RateRepo struct {
	store *MemoryStorage
}

func NewRateRepo(store *MemoryStorage) *RateRepo {
	return &RateRepo{store: store}
}

func (r *RateRepo) UpsertRate(ctx context.Context, rate *domain.CurrencyRateRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := r.store.now()
	rec := *rate
	rec.RateDate = domain.TruncateDate(rate.RateDate)
	key := rateKey{rec.CountryName, rec.CurrencyCode, rec.RateDate.Format(domain.RateDateLayout)}

	if existing, ok := r.store.rates[key]; ok {
		existing.Rate = rec.Rate
		existing.UpdatedAt = now
		return nil
	}

	r.store.nextID++
	r.store.rates[key] = &domain.CurrencyRate{
		ID:                 r.store.nextID,
		CurrencyRateRecord: rec,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	return nil
}

// sortedRates returns copies ordered by date desc, then country and code.
func (r *RateRepo) sortedRates(keep func(*domain.CurrencyRate) bool) []*domain.CurrencyRate {
	var out []*domain.CurrencyRate
	for _, rate := range r.store.rates {
		if keep(rate) {
			c := *rate
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RateDate.Equal(out[j].RateDate) {
			return out[i].RateDate.After(out[j].RateDate)
		}
		if out[i].CountryName != out[j].CountryName {
			return out[i].CountryName < out[j].CountryName
		}
		return out[i].CurrencyCode < out[j].CurrencyCode
	})
	return out
}

func (r *RateRepo) ListRates(ctx context.Context, filter storage.RateFilter) ([]*domain.CurrencyRate, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := r.sortedRates(func(rate *domain.CurrencyRate) bool {
		if filter.CurrencyCode != "" && rate.CurrencyCode != strings.ToUpper(filter.CurrencyCode) {
			return false
		}
		if filter.CountryName != "" && !strings.Contains(strings.ToLower(rate.CountryName), strings.ToLower(filter.CountryName)) {
			return false
		}
		if !filter.Since.IsZero() && rate.RateDate.Before(domain.TruncateDate(filter.Since)) {
			return false
		}
		return true
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *RateRepo) LatestRates(ctx context.Context) ([]*domain.CurrencyRate, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	all := r.sortedRates(func(*domain.CurrencyRate) bool { return true })
	seen := make(map[string]bool)
	var out []*domain.CurrencyRate
	for _, rate := range all {
		if seen[rate.CurrencyCode] {
			continue
		}
		seen[rate.CurrencyCode] = true
		out = append(out, rate)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrencyCode < out[j].CurrencyCode })
	return out, nil
}

func (r *RateRepo) LatestRate(ctx context.Context, code string) (*domain.CurrencyRate, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	code = strings.ToUpper(code)
	out := r.sortedRates(func(rate *domain.CurrencyRate) bool { return rate.CurrencyCode == code })
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *RateRepo) RateHistory(ctx context.Context, country, code string, days int) ([]*domain.CurrencyRate, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	code = strings.ToUpper(code)
	since := domain.TruncateDate(r.store.now()).AddDate(0, 0, -days)
	return r.sortedRates(func(rate *domain.CurrencyRate) bool {
		return rate.CountryName == country && rate.CurrencyCode == code && !rate.RateDate.Before(since)
	}), nil
}

func (r *RateRepo) CountRates(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.rates), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
