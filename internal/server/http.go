package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/localrivet/summbench/internal/errortypes"
	"github.com/localrivet/summbench/internal/llm"
	"github.com/localrivet/summbench/internal/schema"
	"github.com/localrivet/summbench/internal/tools"
)

// StatusServer serves health, metrics and stored runs over HTTP.
type StatusServer struct {
	addr     string
	svc      Service
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// NewStatusServer creates a StatusServer. A nil gatherer serves the default
// Prometheus registry.
func NewStatusServer(addr string, svc Service, gatherer prometheus.Gatherer, logger *slog.Logger) *StatusServer {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusServer{addr: addr, svc: svc, gatherer: gatherer, logger: logger.With("component", "http")}
}

// Handler returns the HTTP routes.
func (s *StatusServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /runs/{id}/records", s.handleRecords)
	return mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *StatusServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP status server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errortypes.NetworkError(err, "HTTP status server failed").WithField("addr", s.addr)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// handleHealth answers without calling the provider unless ?probe=true.
func (s *StatusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := tools.HealthResponse{Status: tools.StatusSuccess, Running: s.svc.Running()}
	if probe, _ := strconv.ParseBool(r.URL.Query().Get("probe")); probe {
		resp.Report = s.svc.Health(r.Context())
		if resp.Report.Status != llm.StatusHealthy {
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *StatusServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := tools.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			HandleError(w, s.logger, errortypes.ValidationError(err, "limit must be an integer"))
			return
		}
		limit = n
	}

	runs, err := s.svc.Runs(r.Context(), limit)
	if err != nil {
		HandleError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tools.ListRunsResponse{Status: tools.StatusSuccess, Runs: runs})
}

func (s *StatusServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.svc.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		HandleError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *StatusServer) handleRecords(w http.ResponseWriter, r *http.Request) {
	var strategy schema.Strategy
	if v := r.URL.Query().Get("strategy"); v != "" {
		parsed, err := schema.ParseStrategy(v)
		if err != nil {
			HandleError(w, s.logger, errortypes.ValidationError(err, "unknown strategy"))
			return
		}
		strategy = parsed
	}

	records, err := s.svc.Results(r.Context(), r.PathValue("id"), strategy)
	if err != nil {
		HandleError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tools.GetResultsResponse{Status: tools.StatusSuccess, Records: records})
}
