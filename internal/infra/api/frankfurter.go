package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vietddude/ratesync/internal/core/domain"
)

// FrankfurterClient fetches currencies and exchange rates from Frankfurter.
type FrankfurterClient struct {
	*Client
	baseURL string
}

// NewFrankfurterClient creates a client rooted at baseURL.
func NewFrankfurterClient(baseURL string, opts Options) *FrankfurterClient {
	if opts.Name == "" {
		opts.Name = "frankfurter"
	}
	return &FrankfurterClient{Client: NewClient(opts), baseURL: strings.TrimRight(baseURL, "/")}
}

// FetchSupportedCurrencies returns the supported currency codes and names.
func (c *FrankfurterClient) FetchSupportedCurrencies(ctx context.Context) (map[string]string, error) {
	var currencies map[string]string
	err := c.get(ctx, c.baseURL+"/currencies", func(r io.Reader) error {
		currencies = nil
		return json.NewDecoder(r).Decode(&currencies)
	})
	if err != nil {
		return nil, err
	}
	return currencies, nil
}

type latestResponse struct {
	Amount decimal.Decimal            `json:"amount"`
	Base   string                     `json:"base"`
	Date   string                     `json:"date"`
	Rates  map[string]decimal.Decimal `json:"rates"`
}

// FetchRates returns how many units of each currency one unit of base buys,
// and the date the rates were published for.
func (c *FrankfurterClient) FetchRates(ctx context.Context, base string) (map[string]decimal.Decimal, time.Time, error) {
	endpoint := fmt.Sprintf("%s/latest?from=%s", c.baseURL, url.QueryEscape(strings.ToUpper(base)))

	var resp latestResponse
	err := c.get(ctx, endpoint, func(r io.Reader) error {
		resp = latestResponse{}
		return json.NewDecoder(r).Decode(&resp)
	})
	if err != nil {
		return nil, time.Time{}, err
	}

	date := domain.TruncateDate(time.Now())
	if resp.Date != "" {
		parsed, err := time.Parse(domain.RateDateLayout, resp.Date)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("parse rate date %q: %w", resp.Date, err)
		}
		date = parsed
	}

	c.log.Info("Fetched exchange rates", "base", base, "date", date.Format(domain.RateDateLayout), "count", len(resp.Rates))
	return resp.Rates, date, nil
}
