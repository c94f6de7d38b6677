package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vietddude/ratesync/internal/core/domain"
	"github.com/vietddude/ratesync/internal/core/retry"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func testOptions(t *testing.T, attempts int) Options {
	t.Helper()
	policy := retry.NetworkPolicy()
	policy.MaxAttempts = attempts
	policy.BaseDelay = time.Millisecond
	policy.MaxDelay = 2 * time.Millisecond
	policy.Jitter = false

	exec, err := retry.NewExecutor("network", policy, retry.Chain(ClassifyHTTP), retry.WithLogger(quiet))
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}
	return Options{Timeout: 5 * time.Second, Executor: exec, Logger: quiet}
}

func TestFetchCountries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept header = %q", r.Header.Get("Accept"))
		}
		fmt.Fprint(w, `[{"name":{"common":"Israel"},"population":9216900,"unMember":true}]`)
	}))
	defer srv.Close()

	c := NewCountriesClient(srv.URL, testOptions(t, 3))
	countries, err := c.FetchCountries(context.Background())
	if err != nil {
		t.Fatalf("FetchCountries() error = %v", err)
	}
	if len(countries) != 1 {
		t.Fatalf("got %d countries, want 1", len(countries))
	}
	pop, ok := countries[0]["population"].(json.Number)
	if !ok || pop.String() != "9216900" {
		t.Errorf("population = %#v, want json.Number 9216900", countries[0]["population"])
	}
}

func TestRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	c := NewCountriesClient(srv.URL, testOptions(t, 3))
	if _, err := c.FetchCountries(context.Background()); err != nil {
		t.Fatalf("FetchCountries() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("server called %d times, want 3", calls.Load())
	}
}

func TestRetryExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewCountriesClient(srv.URL, testOptions(t, 3))
	_, err := c.FetchCountries(context.Background())

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusTooManyRequests {
		t.Fatalf("FetchCountries() error = %v, want 429 StatusError", err)
	}
	if statusErr.RetryAfter != "1" {
		t.Errorf("RetryAfter = %q, want 1", statusErr.RetryAfter)
	}
	if calls.Load() != 3 {
		t.Errorf("server called %d times, want 3", calls.Load())
	}
}

func TestFailFastOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewCountriesClient(srv.URL, testOptions(t, 3))
	if _, err := c.FetchCountries(context.Background()); err == nil {
		t.Fatal("FetchCountries() should fail on 404")
	}
	if calls.Load() != 1 {
		t.Errorf("server called %d times, want 1", calls.Load())
	}
}

func TestFailFastOnBadJSON(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{not json`)
	}))
	defer srv.Close()

	c := NewCountriesClient(srv.URL, testOptions(t, 3))
	if _, err := c.FetchCountries(context.Background()); err == nil {
		t.Fatal("FetchCountries() should fail on malformed JSON")
	}
	if calls.Load() != 1 {
		t.Errorf("server called %d times, want 1", calls.Load())
	}
}

func TestFetchSupportedCurrencies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/currencies" {
			t.Errorf("path = %s, want /currencies", r.URL.Path)
		}
		fmt.Fprint(w, `{"ILS":"Israeli New Shekel","USD":"United States Dollar"}`)
	}))
	defer srv.Close()

	c := NewFrankfurterClient(srv.URL+"/", testOptions(t, 1))
	got, err := c.FetchSupportedCurrencies(context.Background())
	if err != nil {
		t.Fatalf("FetchSupportedCurrencies() error = %v", err)
	}
	if len(got) != 2 || got["USD"] != "United States Dollar" {
		t.Errorf("FetchSupportedCurrencies() = %v", got)
	}
}

func TestFetchRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest" || r.URL.Query().Get("from") != "ILS" {
			t.Errorf("request = %s, want /latest?from=ILS", r.URL)
		}
		fmt.Fprint(w, `{"amount":1.0,"base":"ILS","date":"2024-01-05","rates":{"USD":0.27,"EUR":0.25}}`)
	}))
	defer srv.Close()

	c := NewFrankfurterClient(srv.URL, testOptions(t, 1))
	rates, date, err := c.FetchRates(context.Background(), "ils")
	if err != nil {
		t.Fatalf("FetchRates() error = %v", err)
	}
	if !rates["USD"].Equal(decimal.RequireFromString("0.27")) {
		t.Errorf("USD = %s, want 0.27", rates["USD"])
	}
	if got := date.Format(domain.RateDateLayout); got != "2024-01-05" {
		t.Errorf("date = %s, want 2024-01-05", got)
	}
}

func TestBreakerWrapsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	opts := testOptions(t, 2)
	opts.Breaker = retry.NewCircuitBreaker("frankfurter", retry.BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Hour}, quiet)
	c := NewFrankfurterClient(srv.URL, opts)

	if _, err := c.FetchSupportedCurrencies(context.Background()); err == nil {
		t.Fatal("first call should fail")
	}
	_, err := c.FetchSupportedCurrencies(context.Background())
	if !errors.Is(err, retry.ErrCircuitOpen) {
		t.Errorf("second call error = %v, want ErrCircuitOpen", err)
	}
	if calls.Load() != 2 {
		t.Errorf("server called %d times, want 2 (one retried call, then open)", calls.Load())
	}
}
