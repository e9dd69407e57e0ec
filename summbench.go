// Package summbench benchmarks LLM summarization strategies against
// reference summaries and exposes the benchmark as a library, a CLI and an
// MCP server.
package summbench

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/localrivet/summbench/internal/benchmark"
	"github.com/localrivet/summbench/internal/config"
	"github.com/localrivet/summbench/internal/errortypes"
	"github.com/localrivet/summbench/internal/llm"
	"github.com/localrivet/summbench/internal/resultstore"
	"github.com/localrivet/summbench/internal/schema"
	"github.com/localrivet/summbench/internal/server"
)

// Re-exported types
type (
	Config       = config.Config
	RunOptions   = benchmark.RunOptions
	RunResult    = benchmark.RunResult
	Run          = resultstore.Run
	ResultRecord = schema.ResultRecord
	RawContent   = schema.RawContent
	Strategy     = schema.Strategy
	HealthReport = llm.HealthReport
)

// Strategies
const (
	StrategyFast     = schema.StrategyFast
	StrategyAdvanced = schema.StrategyAdvanced
)

// Benchmark is the summbench service.
type Benchmark struct {
	config   Config
	svc      *benchmark.Service
	registry *prometheus.Registry
	logger   *slog.Logger
}

// Options defines the options for creating a new Benchmark.
type Options struct {
	Config     *Config      // Pre-filled config. If nil, ConfigPath is used.
	ConfigPath string       // Path to config file. If both are empty, the default lookup applies.
	Logger     *slog.Logger // External logger. If nil, slog.Default() is used.

	// Provider replaces the configured model transport.
	Provider llm.Provider
}

// New creates a Benchmark from opts.
func New(opts Options) (*Benchmark, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var cfg *Config
	var err error
	if opts.Config != nil {
		cfg = opts.Config
		if err := cfg.Validate(); err != nil {
			return nil, errortypes.ConfigError(err, "invalid configuration")
		}
	} else {
		logger.Debug("Loading configuration", "path", opts.ConfigPath)
		cfg, err = config.LoadConfigWithPath(opts.ConfigPath)
		if err != nil {
			return nil, errortypes.ConfigError(err, "failed to load configuration").
				WithField("path", opts.ConfigPath)
		}
	}

	registry := prometheus.NewRegistry()
	svc, err := benchmark.New(benchmark.Options{
		Config:   *cfg,
		Logger:   logger,
		Registry: registry,
		Provider: opts.Provider,
	})
	if err != nil {
		return nil, err
	}

	return &Benchmark{config: *cfg, svc: svc, registry: registry, logger: logger}, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return config.NewConfig()
}

// Config returns a copy of the active configuration.
func (b *Benchmark) Config() Config {
	return b.config
}

// Registry returns the Prometheus registry holding the benchmark metrics.
func (b *Benchmark) Registry() *prometheus.Registry {
	return b.registry
}

// Run executes one benchmark.
func (b *Benchmark) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	return b.svc.Run(ctx, opts)
}

// SummarizeSample summarizes and scores a single text with one strategy.
func (b *Benchmark) SummarizeSample(ctx context.Context, sample RawContent, strategy Strategy) (*ResultRecord, error) {
	return b.svc.SummarizeSample(ctx, sample, strategy)
}

// Runs lists stored runs, newest first.
func (b *Benchmark) Runs(ctx context.Context, limit int) ([]Run, error) {
	return b.svc.Runs(ctx, limit)
}

// Results returns the stored records of a run.
func (b *Benchmark) Results(ctx context.Context, runID string, strategy Strategy) ([]ResultRecord, error) {
	return b.svc.Results(ctx, runID, strategy)
}

// Health probes the configured provider.
func (b *Benchmark) Health(ctx context.Context) *HealthReport {
	return b.svc.Health(ctx)
}

// NewToolServer returns an initialized MCP tool server for the benchmark,
// for embedding its tools next to other MCP servers.
func (b *Benchmark) NewToolServer(ctx context.Context) (*server.MCPToolServer, error) {
	ts := server.NewToolServer(ctx, b.config.Server.Name, b.svc, b.logger)
	if err := ts.Initialize(); err != nil {
		return nil, err
	}
	return ts, nil
}

// Serve runs the MCP stdio server and, when Config.Server.HTTPAddr is set,
// the HTTP status server. It returns when stdin closes or ctx is cancelled.
func (b *Benchmark) Serve(ctx context.Context) error {
	ts, err := b.NewToolServer(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if addr := b.config.Server.HTTPAddr; addr != "" {
		status := server.NewStatusServer(addr, b.svc, b.registry, b.logger)
		g.Go(func() error {
			return status.ListenAndServe(gctx)
		})
	}
	g.Go(func() error {
		defer ts.Stop()
		return ts.Start()
	})
	return g.Wait()
}

// Close releases the benchmark's resources.
func (b *Benchmark) Close() error {
	b.logger.Info("Closing summbench")
	return b.svc.Close()
}
