package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/vietddude/ratesync/internal/core/config"
	"github.com/vietddude/ratesync/internal/core/retry"
	"github.com/vietddude/ratesync/internal/scheduler"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

const countriesJSON = `[
	{"name":{"common":"Israel"},"capital":["Jerusalem"],"continents":["Asia"],"currencies":{"ILS":{}},"unMember":true,"population":9216900,"timezones":["UTC+02:00"]},
	{"name":{"common":"United States"},"capital":["Washington, D.C."],"continents":["North America"],"currencies":{"USD":{}},"unMember":true,"population":329484123,"timezones":["UTC-05:00"]},
	{"name":{"common":"Atlantis"},"continents":["Europe"],"currencies":{"XYZ":{}},"population":1,"timezones":["UTC"]}
]`

func upstreams(t *testing.T) (countriesURL, currencyURL string) {
	t.Helper()
	countries := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, countriesJSON)
	}))
	t.Cleanup(countries.Close)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /currencies", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ILS":"Israeli New Sheqel","USD":"United States Dollar"}`)
	})
	mux.HandleFunc("GET /latest", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("from") != "ILS" {
			t.Errorf("latest from = %q, want ILS", r.URL.Query().Get("from"))
		}
		fmt.Fprint(w, `{"amount":1.0,"base":"ILS","date":"2024-01-05","rates":{"USD":0.27}}`)
	})
	frankfurter := httptest.NewServer(mux)
	t.Cleanup(frankfurter.Close)

	return countries.URL, frankfurter.URL
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	countriesURL, currencyURL := upstreams(t)
	cfg := &config.AppConfig{}
	cfg.API.CountriesURL = countriesURL
	cfg.API.CurrencyURL = currencyURL
	cfg.Retry.Network = retry.Config{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	cfg.Retry.Storage = retry.Config{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestRunTaskAll(t *testing.T) {
	cfg := testConfig(t)
	app, err := NewApp(context.Background(), cfg, quiet)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer app.Close()

	results, err := app.RunTask(context.Background(), TaskAll)
	if err != nil {
		t.Fatalf("RunTask() error = %v", err)
	}
	if len(results) != 2 || results[0].Task != "countries" || results[1].Task != "currencies" {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Stats.Successful != 3 {
		t.Errorf("countries stats = %+v", results[0].Stats)
	}
	if got := results[1].Stats; got.Total != 3 || got.Successful != 2 || got.Unsupported != 1 {
		t.Errorf("currencies stats = %+v, want total 3, successful 2, unsupported 1", got)
	}

	usd, err := app.Rates().LatestRate(context.Background(), "USD")
	if err != nil || usd == nil {
		t.Fatalf("LatestRate(USD) = %v, %v", usd, err)
	}
	if want := decimal.NewFromInt(1).Div(decimal.RequireFromString("0.27")); !usd.Rate.Equal(want) {
		t.Errorf("USD rate = %s, want %s", usd.Rate, want)
	}
	if n, _ := app.Countries().CountCountries(context.Background()); n != 3 {
		t.Errorf("countries stored = %d, want 3", n)
	}

	last, err := app.LastResults(context.Background())
	if err != nil || len(last) != 2 {
		t.Errorf("LastResults() = %v, %v", last, err)
	}
}

func TestRunTaskUnknown(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t), quiet)
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()

	if _, err := app.RunTask(context.Background(), "planets"); !errors.Is(err, scheduler.ErrUnknownTask) {
		t.Errorf("RunTask() error = %v, want ErrUnknownTask", err)
	}
}

func TestRunTaskCurrenciesBeforeCountries(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t), quiet)
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()

	results, err := app.RunTask(context.Background(), "currencies")
	if err == nil {
		t.Fatal("RunTask() succeeded with no stored countries")
	}
	if len(results) != 1 || results[0].Success {
		t.Errorf("results = %+v, want one failed run", results)
	}
}

func TestResultsSharedThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.URL = "redis://" + mr.Addr()

	first, err := NewApp(context.Background(), cfg, quiet)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := first.RunTask(context.Background(), "countries"); err != nil {
		t.Fatalf("RunTask() error = %v", err)
	}
	first.Close()

	second, err := NewApp(context.Background(), cfg, quiet)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	last, err := second.LastResults(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r, ok := last["countries"]; !ok || !r.Success || r.Stats.Successful != 3 {
		t.Errorf("LastResults() = %+v, want the first app's countries run", last)
	}
	if mr.Exists("ratesync:lock:countries") {
		t.Error("run lock was not released")
	}
}

func TestStartStop(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Port = 0
	app, err := NewApp(context.Background(), cfg, quiet)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
