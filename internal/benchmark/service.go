// Package benchmark wires the summarizer, judge, scorers, pipeline and result
// sinks into a runnable benchmark service.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/localrivet/summbench/internal/config"
	"github.com/localrivet/summbench/internal/dataset"
	"github.com/localrivet/summbench/internal/errortypes"
	"github.com/localrivet/summbench/internal/export"
	"github.com/localrivet/summbench/internal/invoker"
	"github.com/localrivet/summbench/internal/judge"
	"github.com/localrivet/summbench/internal/llm"
	"github.com/localrivet/summbench/internal/pipeline"
	"github.com/localrivet/summbench/internal/quality"
	"github.com/localrivet/summbench/internal/resultstore"
	"github.com/localrivet/summbench/internal/schema"
	"github.com/localrivet/summbench/internal/scoring"
	"github.com/localrivet/summbench/internal/summarizer"
	"github.com/localrivet/summbench/internal/telemetry"
	"github.com/localrivet/summbench/internal/vector"
)

// Common service errors
var (
	ErrRunInProgress = errors.New("a benchmark run is already in progress")
	ErrNoStore       = errors.New("result persistence is disabled")
)

// Options configures a Service. Zero-valued overrides are built from Config.
type Options struct {
	Config config.Config
	Logger *slog.Logger

	// Registry receives the Prometheus collectors. Nil disables Prometheus.
	Registry prometheus.Registerer

	// Provider replaces the transport selected by Config.Model.
	Provider llm.Provider

	// Store replaces the SQLite store opened from Config.Store.SQLitePath.
	Store resultstore.ResultStore

	// Embedder replaces the embedder selected by Config.Embedder.
	Embedder vector.Embedder
}

// RunOptions narrows a single run. Zero values fall back to the config.
type RunOptions struct {
	DatasetPath string
	ResultsDir  string
	Limit       int
	Concurrency int
	Strategies  []schema.Strategy
}

// RunResult is the outcome of a completed or interrupted run.
type RunResult struct {
	Run     resultstore.Run
	Records []schema.ResultRecord
	Paths   *export.Paths
	Report  *export.Report
}

// Service runs benchmarks and serves their results.
type Service struct {
	cfg        config.Config
	invoker    *invoker.Invoker
	summarizer summarizer.Summarizer
	judge      pipeline.Judge
	scorer     scoring.Suite
	embedder   vector.Embedder
	store      resultstore.ResultStore
	ownsStore  bool
	metrics    *telemetry.Recorder
	pricing    quality.Pricing
	weights    quality.Weights
	logger     *slog.Logger

	running atomic.Bool
	closeMu sync.Mutex
	closed  bool
	newID   func() string
}

// New builds every component from opts.
func New(opts Options) (*Service, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var prom *telemetry.Metrics
	if opts.Registry != nil {
		prom = telemetry.MustNewMetrics(opts.Registry)
	}
	metrics := telemetry.NewRecorder(telemetry.NewMetricsCollector(), prom)

	var inv *invoker.Invoker
	if opts.Provider != nil {
		inv = invoker.New(opts.Provider, invoker.Options{
			Model:   cfg.Model.Name,
			Retry:   cfg.Retry,
			Limits:  cfg.Limits,
			Logger:  logger,
			Metrics: metrics,
		})
	} else {
		var err error
		inv, err = invoker.NewFromConfig(cfg, logger, metrics)
		if err != nil {
			return nil, err
		}
	}

	s := &Service{
		cfg:     cfg,
		invoker: inv,
		metrics: metrics,
		pricing: quality.PricingFromConfig(cfg.Model),
		weights: quality.WeightsFromConfig(cfg.Weights),
		logger:  logger.With("component", "benchmark"),
		newID:   uuid.NewString,
	}

	s.store = opts.Store
	if s.store == nil && cfg.Store.SQLitePath != "" {
		store, err := resultstore.Open(cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		s.store, s.ownsStore = store, true
	}

	s.embedder = opts.Embedder
	if s.embedder == nil {
		emb, err := vector.New(vector.Config{
			Provider:   cfg.Embedder.Provider,
			Model:      cfg.Embedder.Model,
			APIKey:     cfg.Embedder.APIKey,
			BaseURL:    cfg.Embedder.BaseURL,
			Dimensions: cfg.Embedder.Dimensions,
			CacheSize:  cfg.Embedder.CacheSize,
		})
		if err != nil {
			s.Close()
			return nil, errortypes.ConfigError(err, "failed to create embedder").
				WithField("provider", cfg.Embedder.Provider)
		}
		emb.OnLookup(
			func() { metrics.Count(telemetry.MetricCacheHits) },
			func() { metrics.Count(telemetry.MetricCacheMisses) },
		)
		if vs, ok := s.store.(vector.Store); ok {
			emb.WithStore(vs)
		}
		s.embedder = emb
	}

	s.summarizer = summarizer.NewAISummarizer(inv, &summarizer.AISummarizerConfig{
		MaxContentChars:  cfg.Benchmark.MaxContentChars,
		MaxSummaryLength: cfg.Benchmark.MaxSummaryChars,
		Logger:           logger,
		Metrics:          metrics,
	})
	s.judge = judge.New(inv, logger, metrics)
	s.scorer = scoring.Suite{
		Lexical:  scoring.NewRouge(),
		Semantic: scoring.NewSemantic(s.embedder),
		Logger:   logger,
	}

	s.logger.Info("Benchmark service initialized",
		"provider", inv.Provider().Name(),
		"model", cfg.Model.Name,
		"embedder", cfg.Embedder.Provider,
		"persistence", s.store != nil)
	return s, nil
}

// Config returns the configuration the service was built with.
func (s *Service) Config() config.Config {
	return s.cfg
}

// Metrics returns the service's metrics recorder.
func (s *Service) Metrics() *telemetry.Recorder {
	return s.metrics
}

// Store returns the result store, or nil when persistence is disabled.
func (s *Service) Store() resultstore.ResultStore {
	return s.store
}

// Running reports whether a benchmark run is in progress.
func (s *Service) Running() bool {
	return s.running.Load()
}

func (s *Service) strategies(override []schema.Strategy) ([]schema.Strategy, error) {
	if len(override) > 0 {
		return override, nil
	}
	return schema.ParseStrategies(s.cfg.Benchmark.Strategies)
}

func (s *Service) runner(concurrency, total int, strategies []schema.Strategy) *pipeline.Runner {
	if concurrency <= 0 {
		concurrency = s.cfg.Limits.MaxConcurrentSamples
	}
	return pipeline.New(s.summarizer, s.judge, s.scorer, pipeline.Options{
		Strategies:           strategies,
		MaxConcurrentSamples: concurrency,
		Synthesizer:          quality.NewSynthesizer(s.weights, s.cfg.Benchmark.MaxSummaryChars),
		Pricing:              s.pricing,
		Total:                total,
		Logger:               s.logger,
		Metrics:              s.metrics,
	})
}

// Run executes one benchmark over the dataset, persists every record as it
// arrives and writes the result files. Files are written even when the run
// is cancelled, covering the records produced so far.
func (s *Service) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	strategies, err := s.strategies(opts.Strategies)
	if err != nil {
		return nil, errortypes.ValidationError(err, "invalid strategies")
	}
	if opts.DatasetPath == "" {
		opts.DatasetPath = s.cfg.Benchmark.DatasetPath
	}
	if opts.ResultsDir == "" {
		opts.ResultsDir = s.cfg.Benchmark.ResultsDir
	}
	if opts.Limit == 0 {
		opts.Limit = s.cfg.Benchmark.SampleLimit
	}

	if c := s.metrics.Collector(); c != nil {
		c.Reset()
	}

	run := resultstore.Run{
		ID:         s.newID(),
		StartedAt:  time.Now().UTC(),
		Status:     resultstore.StatusRunning,
		Model:      s.cfg.Model.Name,
		Dataset:    opts.DatasetPath,
		Strategies: strategies,
	}
	s.saveRun(ctx, run)
	s.logger.Info("Starting benchmark",
		"run_id", run.ID,
		"dataset", opts.DatasetPath,
		"limit", opts.Limit,
		"strategies", strategies)

	loader := dataset.Loader{Path: opts.DatasetPath, Limit: opts.Limit, StripHTML: s.cfg.Benchmark.StripHTML}
	total := 0
	if opts.Limit > 0 {
		total = opts.Limit
	}
	runner := s.runner(opts.Concurrency, total, strategies)

	var records []schema.ResultRecord
	runErr := runner.Run(ctx, loader.Samples(ctx), func(rec schema.ResultRecord) {
		records = append(records, rec)
		if s.store == nil {
			return
		}
		if err := s.store.SaveRecord(context.WithoutCancel(ctx), run.ID, rec); err != nil {
			errortypes.LogError(s.logger, err)
		}
	})

	result := &RunResult{Records: records}
	paths, err := export.New(opts.ResultsDir, s.logger).WriteAll(run.ID, strategies, records)
	if err != nil {
		errortypes.LogError(s.logger, errortypes.InternalError(err, "failed to write result files").
			WithField("dir", opts.ResultsDir))
		if runErr == nil {
			runErr = err
		}
	}
	result.Paths = paths
	result.Report = export.BuildReport(run.ID, strategies, records)

	run.FinishedAt = time.Now().UTC()
	run.Records = len(records)
	run.Samples = result.Report.Samples
	switch {
	case runErr == nil:
		run.Status = resultstore.StatusCompleted
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		run.Status = resultstore.StatusCancelled
		run.Error = runErr.Error()
	default:
		run.Status = resultstore.StatusFailed
		run.Error = runErr.Error()
	}
	s.saveRun(context.WithoutCancel(ctx), run)
	result.Run = run

	s.logger.Info("Benchmark complete",
		"run_id", run.ID,
		"status", run.Status,
		"records", run.Records,
		"duration", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	s.logger.Debug("Metrics report\n" + s.metrics.Collector().GetReport())
	return result, runErr
}

func (s *Service) saveRun(ctx context.Context, run resultstore.Run) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveRun(ctx, run); err != nil {
		errortypes.LogError(s.logger, err)
	}
}

// SummarizeSample runs one strategy over a single sample outside any run.
func (s *Service) SummarizeSample(ctx context.Context, sample schema.RawContent, strategy schema.Strategy) (*schema.ResultRecord, error) {
	if sample.Text == "" {
		return nil, errortypes.ValidationError(errors.New("text is empty"), "invalid sample")
	}
	return s.runner(1, 1, []schema.Strategy{strategy}).ProcessStrategy(ctx, 0, sample, strategy)
}

// Results returns the stored records of a run.
func (s *Service) Results(ctx context.Context, runID string, strategy schema.Strategy) ([]schema.ResultRecord, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	if _, err := s.store.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.store.ListRecords(ctx, runID, strategy)
}

// GetRun returns a stored run.
func (s *Service) GetRun(ctx context.Context, runID string) (*resultstore.Run, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.GetRun(ctx, runID)
}

// Runs lists stored runs, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]resultstore.Run, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.ListRuns(ctx, limit)
}

// Health probes the configured provider.
func (s *Service) Health(ctx context.Context) *llm.HealthReport {
	return llm.CheckHealth(ctx, s.cfg.Model.Name, s.invoker.Provider())
}

// Close releases the store if the service opened it.
func (s *Service) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.ownsStore && s.store != nil {
		if err := s.store.Close(); err != nil {
			return fmt.Errorf("close result store: %w", err)
		}
	}
	return nil
}
