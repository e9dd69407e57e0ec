// Package server exposes the benchmark over MCP (stdio) and a small HTTP
// status API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/localrivet/gomcp/server"

	"github.com/localrivet/summbench/internal/benchmark"
	"github.com/localrivet/summbench/internal/errortypes"
	"github.com/localrivet/summbench/internal/llm"
	"github.com/localrivet/summbench/internal/resultstore"
	"github.com/localrivet/summbench/internal/schema"
	"github.com/localrivet/summbench/internal/tools"
)

// Common server error types
var (
	ErrServerNotInitialized = errors.New("server not initialized")
	ErrMissingDependencies  = errors.New("one or more required dependencies are nil")
)

// Service is the benchmark surface the servers expose.
type Service interface {
	Run(ctx context.Context, opts benchmark.RunOptions) (*benchmark.RunResult, error)
	SummarizeSample(ctx context.Context, sample schema.RawContent, strategy schema.Strategy) (*schema.ResultRecord, error)
	Results(ctx context.Context, runID string, strategy schema.Strategy) ([]schema.ResultRecord, error)
	GetRun(ctx context.Context, runID string) (*resultstore.Run, error)
	Runs(ctx context.Context, limit int) ([]resultstore.Run, error)
	Health(ctx context.Context) *llm.HealthReport
	Running() bool
}

// MCPToolServer implements BenchmarkToolServer on top of gomcp.
type MCPToolServer struct {
	name      string
	svc       Service
	logger    *slog.Logger
	baseCtx   context.Context
	mcpServer server.Server
}

var _ BenchmarkToolServer = (*MCPToolServer)(nil)

// NewToolServer creates a new MCPToolServer. Tool calls run under ctx, so
// cancelling it aborts in-flight benchmark runs.
func NewToolServer(ctx context.Context, name string, svc Service, logger *slog.Logger) *MCPToolServer {
	if logger == nil {
		logger = slog.Default()
	}
	if name == "" {
		name = "summbench"
	}
	return &MCPToolServer{
		name:    name,
		svc:     svc,
		logger:  logger.With("component", "mcp"),
		baseCtx: ctx,
	}
}

// Initialize registers the benchmark tools.
func (s *MCPToolServer) Initialize() error {
	if s.svc == nil {
		return errortypes.ConfigError(ErrMissingDependencies, "server initialization failed")
	}

	srv := server.NewServer(s.name).
		Tool(tools.ToolRunBenchmark, "Run the summarization benchmark over a dataset and write the result files",
			s.handleRunBenchmark).
		Tool(tools.ToolSummarizeSample, "Summarize one text with a strategy and score it",
			s.handleSummarizeSample).
		Tool(tools.ToolGetResults, "Return the stored records of a benchmark run",
			s.handleGetResults).
		Tool(tools.ToolListRuns, "List recent benchmark runs",
			s.handleListRuns).
		Tool(tools.ToolHealth, "Probe the configured model provider",
			s.handleHealth)

	s.mcpServer = srv
	s.logger.Info("MCP tool server initialized", "tool_count", 5)
	return nil
}

// Start serves MCP over stdio until stdin closes.
func (s *MCPToolServer) Start() error {
	if s.mcpServer == nil {
		return errortypes.ConfigError(ErrServerNotInitialized, "cannot start server")
	}
	s.logger.Info("Starting MCP tool server")
	return s.mcpServer.AsStdio().Run()
}

// Stop gracefully shuts down the MCP server.
func (s *MCPToolServer) Stop() error {
	s.logger.Info("Stopping MCP tool server")
	// The stdio transport exits when stdin is closed.
	return nil
}

func (s *MCPToolServer) handleRunBenchmark(_ *server.Context, req tools.RunBenchmarkRequest) (tools.RunBenchmarkResponse, error) {
	return s.RunBenchmark(s.baseCtx, req), nil
}

func (s *MCPToolServer) handleSummarizeSample(_ *server.Context, req tools.SummarizeSampleRequest) (tools.SummarizeSampleResponse, error) {
	return s.SummarizeSample(s.baseCtx, req), nil
}

func (s *MCPToolServer) handleGetResults(_ *server.Context, req tools.GetResultsRequest) (tools.GetResultsResponse, error) {
	return s.GetResults(s.baseCtx, req), nil
}

func (s *MCPToolServer) handleListRuns(_ *server.Context, req tools.ListRunsRequest) (tools.ListRunsResponse, error) {
	return s.ListRuns(s.baseCtx, req), nil
}

func (s *MCPToolServer) handleHealth(_ *server.Context, _ tools.HealthRequest) (tools.HealthResponse, error) {
	return s.Health(s.baseCtx), nil
}

// RunBenchmark runs a benchmark and summarizes the outcome.
func (s *MCPToolServer) RunBenchmark(ctx context.Context, req tools.RunBenchmarkRequest) tools.RunBenchmarkResponse {
	s.logger.Info("Processing run_benchmark request", "dataset", req.DatasetPath, "limit", req.Limit)
	response := tools.RunBenchmarkResponse{Status: tools.StatusSuccess}

	strategies, err := schema.ParseStrategies(req.Strategies)
	if err != nil {
		response.Status = tools.StatusError
		response.Error = toolError(s.logger, errortypes.ValidationError(err, "invalid run_benchmark request"))
		return response
	}

	res, err := s.svc.Run(ctx, benchmark.RunOptions{
		DatasetPath: req.DatasetPath,
		ResultsDir:  req.ResultsDir,
		Limit:       req.Limit,
		Concurrency: req.Concurrency,
		Strategies:  strategies,
	})
	if res != nil {
		response.RunID = res.Run.ID
		response.RunStatus = res.Run.Status
		response.Records = len(res.Records)
		if res.Paths != nil {
			for _, strategy := range res.Run.Strategies {
				response.Files = append(response.Files, res.Paths.CSV[strategy])
			}
			response.Files = append(response.Files, res.Paths.Workbook, res.Paths.Report)
		}
		if res.Report != nil {
			for _, sr := range res.Report.Strategies {
				response.Strategies = append(response.Strategies, tools.StrategySummary{
					Strategy:     string(sr.Strategy),
					Count:        sr.Count,
					PassRate:     sr.PassRate,
					Refinements:  sr.Refinements,
					MeanQuality:  sr.MeanQuality,
					P95LatencyMS: sr.P95LatencyMS,
					TotalCostUSD: sr.TotalCostUSD,
				})
			}
		}
	}
	if err != nil {
		response.Status = tools.StatusError
		response.Error = toolError(s.logger, err)
		return response
	}

	s.logger.Info("Benchmark run finished", "run_id", response.RunID, "records", response.Records)
	return response
}

// SummarizeSample summarizes and scores a single text.
func (s *MCPToolServer) SummarizeSample(ctx context.Context, req tools.SummarizeSampleRequest) tools.SummarizeSampleResponse {
	s.logger.Info("Processing summarize_sample request", "text_length", len(req.Text), "strategy", req.Strategy)
	response := tools.SummarizeSampleResponse{Status: tools.StatusSuccess}

	strategy := schema.StrategyAdvanced
	if req.Strategy != "" {
		parsed, err := schema.ParseStrategy(req.Strategy)
		if err != nil {
			response.Status = tools.StatusError
			response.Error = toolError(s.logger, errortypes.ValidationError(err, "invalid summarize_sample request"))
			return response
		}
		strategy = parsed
	}

	rec, err := s.svc.SummarizeSample(ctx, req.ToRawContent(), strategy)
	if err != nil {
		response.Status = tools.StatusError
		response.Error = toolError(s.logger, err)
		return response
	}
	response.Record = rec
	return response
}

// GetResults returns the stored records of a run.
func (s *MCPToolServer) GetResults(ctx context.Context, req tools.GetResultsRequest) tools.GetResultsResponse {
	s.logger.Info("Processing get_results request", "run_id", req.RunID, "strategy", req.Strategy)
	response := tools.GetResultsResponse{Status: tools.StatusSuccess}

	if req.RunID == "" {
		response.Status = tools.StatusError
		response.Error = toolError(s.logger, errortypes.ValidationError(errors.New("run_id cannot be empty"), "invalid get_results request"))
		return response
	}

	var strategy schema.Strategy
	if req.Strategy != "" {
		parsed, err := schema.ParseStrategy(req.Strategy)
		if err != nil {
			response.Status = tools.StatusError
			response.Error = toolError(s.logger, errortypes.ValidationError(err, "invalid get_results request"))
			return response
		}
		strategy = parsed
	}

	run, err := s.svc.GetRun(ctx, req.RunID)
	if err != nil {
		response.Status = tools.StatusError
		response.Error = toolError(s.logger, fmt.Errorf("get_results: %w", err))
		return response
	}
	records, err := s.svc.Results(ctx, req.RunID, strategy)
	if err != nil {
		response.Status = tools.StatusError
		response.Error = toolError(s.logger, err)
		return response
	}

	response.Run = run
	response.Records = records
	return response
}

// ListRuns lists recent runs.
func (s *MCPToolServer) ListRuns(ctx context.Context, req tools.ListRunsRequest) tools.ListRunsResponse {
	response := tools.ListRunsResponse{Status: tools.StatusSuccess}

	limit := req.Limit
	if limit <= 0 {
		limit = tools.DefaultListLimit
	}
	runs, err := s.svc.Runs(ctx, limit)
	if err != nil {
		response.Status = tools.StatusError
		response.Error = toolError(s.logger, err)
		return response
	}
	response.Runs = runs
	return response
}

// Health probes the provider.
func (s *MCPToolServer) Health(ctx context.Context) tools.HealthResponse {
	report := s.svc.Health(ctx)
	response := tools.HealthResponse{
		Status:  tools.StatusSuccess,
		Report:  report,
		Running: s.svc.Running(),
	}
	if report.Status == llm.StatusUnhealthy {
		response.Status = tools.StatusError
		response.Error = "provider unhealthy"
	}
	return response
}
