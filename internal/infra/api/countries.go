package api

import (
	"context"
	"encoding/json"
	"io"
)

// CountriesClient fetches country metadata from REST Countries.
type CountriesClient struct {
	*Client
	url string
}

// NewCountriesClient creates a client for the given endpoint, which should
// already carry the fields filter.
func NewCountriesClient(url string, opts Options) *CountriesClient {
	if opts.Name == "" {
		opts.Name = "restcountries"
	}
	return &CountriesClient{Client: NewClient(opts), url: url}
}

// FetchCountries returns every country as a raw JSON object. Numbers are
// kept as json.Number.
func (c *CountriesClient) FetchCountries(ctx context.Context) ([]map[string]any, error) {
	var countries []map[string]any
	err := c.get(ctx, c.url, func(r io.Reader) error {
		dec := json.NewDecoder(r)
		dec.UseNumber()
		countries = nil
		return dec.Decode(&countries)
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("Fetched countries", "count", len(countries))
	return countries, nil
}
