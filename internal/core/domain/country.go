package domain

import "time"

// CountryRecord is a normalized country ready to be persisted.
// Name is the natural key.
type CountryRecord struct {
	Name       string            `json:"country_name"`
	Capitals   []string          `json:"capitals"`
	Continent  string            `json:"continent"`
	Currencies []string          `json:"currencies"`
	IsUNMember bool              `json:"is_un_member"`
	Population int64             `json:"population"`
	Timezones  map[string]string `json:"timezone_info"`
}

// Country is a stored country row.
type Country struct {
	ID int64 `json:"id"`
	CountryRecord
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CountryCurrencies is the input row of a currency run.
type CountryCurrencies struct {
	CountryName string
	Currencies  []string
}
