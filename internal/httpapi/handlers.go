package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vietddude/ratesync/internal/core/domain"
	"github.com/vietddude/ratesync/internal/infra/storage"
	"github.com/vietddude/ratesync/internal/scheduler"
)

var minAmount = decimal.RequireFromString("0.01")

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.deps.Health.Health(ctx); err != nil {
		s.log.Warn("Health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, Response{
			Message: "unhealthy",
			Data:    map[string]string{"status": "unhealthy", "database": err.Error()},
		})
		return
	}
	ok(w, "healthy", map[string]string{"status": "healthy", "database": "connected"})
}

func (s *Server) handleListCountries(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 100, 1, 1000)
	if err != nil {
		fail(w, http.StatusBadRequest, "%v", err)
		return
	}
	offset, err := intQuery(r, "offset", 0, 0, 1<<31-1)
	if err != nil {
		fail(w, http.StatusBadRequest, "%v", err)
		return
	}

	filter := storage.CountryFilter{
		Continent: r.URL.Query().Get("continent"),
		Limit:     limit,
		Offset:    offset,
	}
	if raw := r.URL.Query().Get("un_member"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			fail(w, http.StatusBadRequest, "un_member must be a boolean")
			return
		}
		filter.UNMember = &v
	}

	countries, err := s.deps.Countries.ListCountries(r.Context(), filter)
	if err != nil {
		s.log.Error("Failed to list countries", "error", err)
		fail(w, http.StatusInternalServerError, "failed to retrieve countries")
		return
	}
	ok(w, "Retrieved "+strconv.Itoa(len(countries))+" countries", countries)
}

func (s *Server) handleGetCountry(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	country, err := s.deps.Countries.GetCountryByName(r.Context(), name)
	if err != nil {
		s.log.Error("Failed to get country", "name", name, "error", err)
		fail(w, http.StatusInternalServerError, "failed to retrieve country")
		return
	}
	if country == nil {
		fail(w, http.StatusNotFound, "country %s not found", name)
		return
	}
	ok(w, "Country retrieved successfully", country)
}

func (s *Server) handleListRates(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 100, 1, 1000)
	if err != nil {
		fail(w, http.StatusBadRequest, "%v", err)
		return
	}
	offset, err := intQuery(r, "offset", 0, 0, 1<<31-1)
	if err != nil {
		fail(w, http.StatusBadRequest, "%v", err)
		return
	}

	rates, err := s.deps.Rates.ListRates(r.Context(), storage.RateFilter{
		CurrencyCode: strings.ToUpper(r.URL.Query().Get("currency_code")),
		CountryName:  r.URL.Query().Get("country_name"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		s.log.Error("Failed to list rates", "error", err)
		fail(w, http.StatusInternalServerError, "failed to retrieve currency rates")
		return
	}
	ok(w, "Retrieved "+strconv.Itoa(len(rates))+" currency rates", rates)
}

func (s *Server) handleLatestRates(w http.ResponseWriter, r *http.Request) {
	rates, err := s.deps.Rates.LatestRates(r.Context())
	if err != nil {
		s.log.Error("Failed to get latest rates", "error", err)
		fail(w, http.StatusInternalServerError, "failed to retrieve latest rates")
		return
	}
	ok(w, "Retrieved "+strconv.Itoa(len(rates))+" latest currency rates", rates)
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(r.PathValue("code"))

	amount := decimal.NewFromInt(1)
	if raw := r.URL.Query().Get("amount"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			fail(w, http.StatusBadRequest, "amount must be a number")
			return
		}
		amount = v
	}
	if amount.LessThan(minAmount) {
		fail(w, http.StatusBadRequest, "amount must be at least %s", minAmount)
		return
	}

	rate, err := s.deps.Rates.LatestRate(r.Context(), code)
	if err != nil {
		s.log.Error("Failed to get rate", "currency", code, "error", err)
		fail(w, http.StatusInternalServerError, "failed to convert currency")
		return
	}
	if rate == nil {
		fail(w, http.StatusNotFound, "currency %s not found", code)
		return
	}

	ok(w, "Conversion successful", map[string]any{
		"from_currency": code,
		"to_currency":   s.deps.BaseCurrency,
		"amount":        amount,
		"rate":          rate.Rate,
		"rate_date":     rate.RateDate.Format(domain.RateDateLayout),
		"result":        amount.Mul(rate.Rate),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	country := r.PathValue("country")
	code := strings.ToUpper(r.PathValue("code"))
	days, err := intQuery(r, "days", 30, 1, 365)
	if err != nil {
		fail(w, http.StatusBadRequest, "%v", err)
		return
	}

	rates, err := s.deps.Rates.RateHistory(r.Context(), country, code, days)
	if err != nil {
		s.log.Error("Failed to get rate history", "country", country, "currency", code, "error", err)
		fail(w, http.StatusInternalServerError, "failed to retrieve rate history")
		return
	}
	ok(w, "Retrieved "+strconv.Itoa(len(rates))+" historical rates", rates)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	task := r.PathValue("task")

	results, err := s.deps.Trigger.RunTask(r.Context(), task)
	switch {
	case errors.Is(err, scheduler.ErrUnknownTask):
		fail(w, http.StatusNotFound, "unknown task %s", task)
		return
	case errors.Is(err, scheduler.ErrTaskRunning), errors.Is(err, scheduler.ErrLocked):
		writeJSON(w, http.StatusConflict, Response{Message: err.Error(), Data: results})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, Response{Message: err.Error(), Data: results})
		return
	}
	ok(w, "Processing of "+task+" completed successfully", results)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	results, err := s.deps.Trigger.LastResults(r.Context())
	if err != nil {
		s.log.Error("Failed to load task results", "error", err)
		fail(w, http.StatusInternalServerError, "failed to retrieve task results")
		return
	}
	ok(w, "Retrieved "+strconv.Itoa(len(results))+" task results", results)
}
