package config

import (
	"time"

	"github.com/vietddude/ratesync/internal/core/retry"
	redisclient "github.com/vietddude/ratesync/internal/infra/redis"
	"github.com/vietddude/ratesync/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig        `yaml:"server"`
	Database   postgres.Config     `yaml:"database"`
	Redis      redisclient.Config  `yaml:"redis"`
	Logging    LoggingConfig       `yaml:"logging"`
	API        APIConfig           `yaml:"api"`
	Retry      RetryConfig         `yaml:"retry"`
	Scheduler  SchedulerConfig     `yaml:"scheduler"`
	Processing ProcessingConfig    `yaml:"processing"`
	Breaker    retry.BreakerConfig `yaml:"breaker"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// APIConfig holds upstream API settings.
type APIConfig struct {
	CountriesURL string        `yaml:"countries_url"`
	CurrencyURL  string        `yaml:"currency_url"`
	Timeout      time.Duration `yaml:"timeout"`
	BaseCurrency string        `yaml:"base_currency"`
	RateLimit    float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	UserAgent    string        `yaml:"user_agent"`
}

// RetryConfig overrides the stock retry policies.
type RetryConfig struct {
	Network retry.Config `yaml:"network"`
	Storage retry.Config `yaml:"storage"`
}

// SchedulerConfig holds cron expressions for the sync tasks.
type SchedulerConfig struct {
	CountriesCron  string        `yaml:"countries_cron"`
	CurrenciesCron string        `yaml:"currencies_cron"`
	RunOnStart     bool          `yaml:"run_on_start"`
	LockTTL        time.Duration `yaml:"lock_ttl"`
}

// ProcessingConfig holds batch settings.
type ProcessingConfig struct {
	CountryBatchSize  int `yaml:"country_batch_size"`
	CurrencyBatchSize int `yaml:"currency_batch_size"`
	Workers           int `yaml:"workers"`
}
