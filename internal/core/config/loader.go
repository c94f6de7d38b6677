package config

import (
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vietddude/ratesync/internal/core/domain"
	"github.com/vietddude/ratesync/internal/core/retry"
	"gopkg.in/yaml.v2"
)

const (
	DefaultCountriesURL = "https://restcountries.com/v3.1/all?fields=name,capital,continents,currencies,unMember,population,timezones"
	DefaultCurrencyURL  = "https://api.frankfurter.app"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// SetDefaults fills unset fields.
func (c *AppConfig) SetDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.API.CountriesURL == "" {
		c.API.CountriesURL = DefaultCountriesURL
	}
	if c.API.CurrencyURL == "" {
		c.API.CurrencyURL = DefaultCurrencyURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = 30 * time.Second
	}
	if c.API.BaseCurrency == "" {
		c.API.BaseCurrency = domain.DefaultBaseCurrency
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = "ratesync/1.0"
	}

	if c.Scheduler.CountriesCron == "" {
		c.Scheduler.CountriesCron = "0 2 * * 0"
	}
	if c.Scheduler.CurrenciesCron == "" {
		c.Scheduler.CurrenciesCron = "0 */6 * * *"
	}
	if c.Scheduler.LockTTL == 0 {
		c.Scheduler.LockTTL = 30 * time.Minute
	}

	if c.Processing.CountryBatchSize <= 0 {
		c.Processing.CountryBatchSize = 50
	}
	if c.Processing.CurrencyBatchSize <= 0 {
		c.Processing.CurrencyBatchSize = 100
	}
	if c.Processing.Workers <= 0 {
		c.Processing.Workers = 1
	}

	if c.Breaker.FailureThreshold <= 0 {
		c.Breaker.FailureThreshold = retry.DefaultBreakerConfig.FailureThreshold
	}
	if c.Breaker.RecoveryTimeout <= 0 {
		c.Breaker.RecoveryTimeout = retry.DefaultBreakerConfig.RecoveryTimeout
	}
}

// NetworkPolicy returns the network retry policy with overrides applied.
func (c *AppConfig) NetworkPolicy() retry.Policy {
	return c.Retry.Network.Apply(retry.NetworkPolicy())
}

// StoragePolicy returns the storage retry policy with overrides applied.
func (c *AppConfig) StoragePolicy() retry.Policy {
	return c.Retry.Storage.Apply(retry.StoragePolicy())
}

// Validate checks values that defaults cannot fix.
func (c *AppConfig) Validate() error {
	if !domain.IsCurrencyCode(c.API.BaseCurrency) {
		return fmt.Errorf("api.base_currency %q is not a currency code", c.API.BaseCurrency)
	}
	if err := c.NetworkPolicy().Validate(); err != nil {
		return fmt.Errorf("retry.network: %w", err)
	}
	if err := c.StoragePolicy().Validate(); err != nil {
		return fmt.Errorf("retry.storage: %w", err)
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.Scheduler.CountriesCron); err != nil {
		return fmt.Errorf("scheduler.countries_cron: %w", err)
	}
	if _, err := parser.Parse(c.Scheduler.CurrenciesCron); err != nil {
		return fmt.Errorf("scheduler.currencies_cron: %w", err)
	}
	return nil
}
