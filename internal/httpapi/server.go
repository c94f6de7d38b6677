package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vietddude/ratesync/internal/core/domain"
	"github.com/vietddude/ratesync/internal/infra/storage"
	"github.com/vietddude/ratesync/internal/metrics"
)

// Trigger runs sync tasks on demand and reports their last results.
type Trigger interface {
	RunTask(ctx context.Context, task string) ([]domain.RunResult, error)
	LastResults(ctx context.Context) (map[string]domain.RunResult, error)
}

// Deps are the collaborators of the read API.
type Deps struct {
	Countries    storage.CountryRepository
	Rates        storage.RateRepository
	Health       storage.HealthChecker
	Trigger      Trigger
	BaseCurrency string
	Logger       *slog.Logger
}

// Server serves the read API, health and metrics.
type Server struct {
	deps   Deps
	log    *slog.Logger
	server *http.Server
}

// NewServer creates a new API server listening on port.
func NewServer(deps Deps, port int) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.BaseCurrency == "" {
		deps.BaseCurrency = domain.DefaultBaseCurrency
	}
	s := &Server{deps: deps, log: deps.Logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /countries", s.handleListCountries)
	mux.HandleFunc("GET /countries/{name}", s.handleGetCountry)

	mux.HandleFunc("GET /currencies", s.handleListRates)
	mux.HandleFunc("GET /currencies/latest", s.handleLatestRates)
	mux.HandleFunc("GET /currencies/convert/{code}", s.handleConvert)
	mux.HandleFunc("GET /currencies/history/{country}/{code}", s.handleHistory)

	mux.HandleFunc("POST /process/{task}", s.handleProcess)
	mux.HandleFunc("GET /tasks", s.handleTasks)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.instrument(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Stop.
func (s *Server) Start() error {
	s.log.Info("Starting API server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument logs and counts every request by its matched route.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		s.log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", elapsed,
		)
	})
}
