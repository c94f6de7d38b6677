package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/vietddude/ratesync/internal/core/domain"
	"github.com/vietddude/ratesync/internal/infra/storage"
)

// timezoneInfo maps the JSONB timezone_info column.
type timezoneInfo map[string]string

func (t timezoneInfo) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	data, err := json.Marshal(map[string]string(t))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (t *timezoneInfo) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*t = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported timezone_info type %T", src)
	}
	m := map[string]string{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*t = m
	return nil
}

type countryRow struct {
	ID           int64          `db:"id"`
	Name         string         `db:"country_name"`
	Capitals     pq.StringArray `db:"capitals"`
	Continent    sql.NullString `db:"continent"`
	Currencies   pq.StringArray `db:"currencies"`
	IsUNMember   bool           `db:"is_un_member"`
	Population   int64          `db:"population"`
	TimezoneInfo timezoneInfo   `db:"timezone_info"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r *countryRow) toDomain() *domain.Country {
	return &domain.Country{
		ID: r.ID,
		CountryRecord: domain.CountryRecord{
			Name:       r.Name,
			Capitals:   []string(r.Capitals),
			Continent:  r.Continent.String,
			Currencies: []string(r.Currencies),
			IsUNMember: r.IsUNMember,
			Population: r.Population,
			Timezones:  map[string]string(r.TimezoneInfo),
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

const countryColumns = `id, country_name, capitals, continent, currencies, is_un_member,
	population, timezone_info, created_at, updated_at`

// CountryRepo implements storage.CountryRepository using PostgreSQL.
type CountryRepo struct {
	db *DB
}

// NewCountryRepo creates a new PostgreSQL country repository.
func NewCountryRepo(db *DB) *CountryRepo {
	return &CountryRepo{db: db}
}

// UpsertCountry saves a country, updating every mutable column on conflict.
func (r *CountryRepo) UpsertCountry(ctx context.Context, c *domain.CountryRecord) error {
	query := `
		INSERT INTO countries (country_name, capitals, continent, currencies, is_un_member,
			population, timezone_info, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (country_name) DO UPDATE SET
			capitals = EXCLUDED.capitals,
			continent = EXCLUDED.continent,
			currencies = EXCLUDED.currencies,
			is_un_member = EXCLUDED.is_un_member,
			population = EXCLUDED.population,
			timezone_info = EXCLUDED.timezone_info,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		c.Name,
		pq.Array(c.Capitals),
		nullString(c.Continent),
		pq.Array(c.Currencies),
		c.IsUNMember,
		c.Population,
		timezoneInfo(c.Timezones),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert country %q: %w", c.Name, err)
	}
	return nil
}

// GetCountryByName retrieves a country by name.
func (r *CountryRepo) GetCountryByName(ctx context.Context, name string) (*domain.Country, error) {
	var row countryRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+countryColumns+` FROM countries WHERE country_name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get country: %w", err)
	}
	return row.toDomain(), nil
}

// ListCountries lists countries matching filter ordered by name.
func (r *CountryRepo) ListCountries(ctx context.Context, filter storage.CountryFilter) ([]*domain.Country, error) {
	var (
		where []string
		args  []any
	)
	if filter.Continent != "" {
		args = append(args, filter.Continent)
		where = append(where, fmt.Sprintf("LOWER(continent) = LOWER($%d)", len(args)))
	}
	if filter.UNMember != nil {
		args = append(args, *filter.UNMember)
		where = append(where, fmt.Sprintf("is_un_member = $%d", len(args)))
	}

	query := `SELECT ` + countryColumns + ` FROM countries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY country_name" + pageClause(&args, filter.Limit, filter.Offset)

	var rows []countryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list countries: %w", err)
	}

	countries := make([]*domain.Country, 0, len(rows))
	for i := range rows {
		countries = append(countries, rows[i].toDomain())
	}
	return countries, nil
}

// CountryCurrencies lists the currencies of every country that has any.
func (r *CountryRepo) CountryCurrencies(ctx context.Context) ([]domain.CountryCurrencies, error) {
	query := `
		SELECT country_name, currencies
		FROM countries
		WHERE currencies IS NOT NULL AND cardinality(currencies) > 0
		ORDER BY country_name
	`

	var rows []struct {
		Name       string         `db:"country_name"`
		Currencies pq.StringArray `db:"currencies"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list country currencies: %w", err)
	}

	out := make([]domain.CountryCurrencies, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.CountryCurrencies{
			CountryName: row.Name,
			Currencies:  []string(row.Currencies),
		})
	}
	return out, nil
}

// CountCountries returns the number of countries.
func (r *CountryRepo) CountCountries(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM countries`); err != nil {
		return 0, fmt.Errorf("failed to count countries: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// pageClause appends LIMIT/OFFSET placeholders and their args.
func pageClause(args *[]any, limit, offset int) string {
	var clause string
	if limit > 0 {
		*args = append(*args, limit)
		clause += fmt.Sprintf(" LIMIT $%d", len(*args))
	}
	if offset > 0 {
		*args = append(*args, offset)
		clause += fmt.Sprintf(" OFFSET $%d", len(*args))
	}
	return clause
}
