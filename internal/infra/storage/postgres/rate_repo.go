package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vietddude/ratesync/internal/core/domain"
	"github.com/vietddude/ratesync/internal/infra/storage"
)

type rateRow struct {
	ID           int64           `db:"id"`
	CountryName  string          `db:"country_name"`
	CurrencyCode string          `db:"currency_code"`
	Rate         decimal.Decimal `db:"shekel_rate"`
	RateDate     time.Time       `db:"rate_date"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func (r *rateRow) toDomain() *domain.CurrencyRate {
	return &domain.CurrencyRate{
		ID: r.ID,
		CurrencyRateRecord: domain.CurrencyRateRecord{
			CountryName:  r.CountryName,
			CurrencyCode: strings.TrimSpace(r.CurrencyCode),
			Rate:         r.Rate,
			RateDate:     domain.TruncateDate(r.RateDate),
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func toRates(rows []rateRow) []*domain.CurrencyRate {
	out := make([]*domain.CurrencyRate, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out
}

const rateColumns = `id, country_name, currency_code, shekel_rate, rate_date, created_at, updated_at`

// RateRepo implements storage.RateRepository using PostgreSQL.
type RateRepo struct {
	db *DB
}

// NewRateRepo creates a new PostgreSQL rate repository.
func NewRateRepo(db *DB) *RateRepo {
	return &RateRepo{db: db}
}

// UpsertRate saves a rate, overwriting the rate of the same country, code and date.
func (r *RateRepo) UpsertRate(ctx context.Context, rate *domain.CurrencyRateRecord) error {
	query := `
		INSERT INTO currency_rates (country_name, currency_code, shekel_rate, rate_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (country_name, currency_code, rate_date) DO UPDATE SET
			shekel_rate = EXCLUDED.shekel_rate,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		rate.CountryName,
		rate.CurrencyCode,
		rate.Rate,
		domain.TruncateDate(rate.RateDate),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert rate %s: %w", rate.Key(), err)
	}
	return nil
}

// ListRates lists rates matching filter, newest first.
func (r *RateRepo) ListRates(ctx context.Context, filter storage.RateFilter) ([]*domain.CurrencyRate, error) {
	var (
		where []string
		args  []any
	)
	if filter.CurrencyCode != "" {
		args = append(args, strings.ToUpper(filter.CurrencyCode))
		where = append(where, fmt.Sprintf("currency_code = $%d", len(args)))
	}
	if filter.CountryName != "" {
		args = append(args, "%"+filter.CountryName+"%")
		where = append(where, fmt.Sprintf("country_name ILIKE $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, domain.TruncateDate(filter.Since))
		where = append(where, fmt.Sprintf("rate_date >= $%d", len(args)))
	}

	query := `SELECT ` + rateColumns + ` FROM currency_rates`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rate_date DESC, country_name, currency_code" +
		pageClause(&args, filter.Limit, filter.Offset)

	var rows []rateRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list rates: %w", err)
	}
	return toRates(rows), nil
}

// LatestRates returns the newest rate of every currency code.
func (r *RateRepo) LatestRates(ctx context.Context) ([]*domain.CurrencyRate, error) {
	query := `
		SELECT DISTINCT ON (currency_code) ` + rateColumns + `
		FROM currency_rates
		ORDER BY currency_code, rate_date DESC, updated_at DESC
	`

	var rows []rateRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get latest rates: %w", err)
	}
	return toRates(rows), nil
}

// LatestRate returns the newest rate of one currency code.
func (r *RateRepo) LatestRate(ctx context.Context, code string) (*domain.CurrencyRate, error) {
	query := `
		SELECT ` + rateColumns + `
		FROM currency_rates
		WHERE currency_code = $1
		ORDER BY rate_date DESC, updated_at DESC
		LIMIT 1
	`

	var row rateRow
	err := r.db.GetContext(ctx, &row, query, strings.ToUpper(code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest rate: %w", err)
	}
	return row.toDomain(), nil
}

// RateHistory returns a country's rates for code over the last days.
func (r *RateRepo) RateHistory(ctx context.Context, country, code string, days int) ([]*domain.CurrencyRate, error) {
	query := `
		SELECT ` + rateColumns + `
		FROM currency_rates
		WHERE country_name = $1 AND currency_code = $2
			AND rate_date >= CURRENT_DATE - $3::int
		ORDER BY rate_date DESC
	`

	var rows []rateRow
	if err := r.db.SelectContext(ctx, &rows, query, country, strings.ToUpper(code), days); err != nil {
		return nil, fmt.Errorf("failed to get rate history: %w", err)
	}
	return toRates(rows), nil
}

// CountRates returns the number of rates.
func (r *RateRepo) CountRates(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM currency_rates`); err != nil {
		return 0, fmt.Errorf("failed to count rates: %w", err)
	}
	return n, nil
}
