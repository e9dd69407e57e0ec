// Package tools defines the request and response schemas of the summbench
// MCP tools.
package tools

import (
	"github.com/localrivet/summbench/internal/llm"
	"github.com/localrivet/summbench/internal/resultstore"
	"github.com/localrivet/summbench/internal/schema"
)

const (
	// ToolRunBenchmark is the name of the run_benchmark MCP tool
	ToolRunBenchmark = "run_benchmark"

	// ToolSummarizeSample is the name of the summarize_sample MCP tool
	ToolSummarizeSample = "summarize_sample"

	// ToolGetResults is the name of the get_results MCP tool
	ToolGetResults = "get_results"

	// ToolListRuns is the name of the list_runs MCP tool
	ToolListRuns = "list_runs"

	// ToolHealth is the name of the health MCP tool
	ToolHealth = "health"

	// DefaultListLimit is the number of runs returned when no limit is given
	DefaultListLimit = 20

	// StatusSuccess and StatusError are the response status values
	StatusSuccess = "success"
	StatusError   = "error"
)

// RunBenchmarkRequest defines the input schema for run_benchmark tool.
// Empty fields fall back to the server configuration.
type RunBenchmarkRequest struct {
	// DatasetPath is the JSON dataset to read
	DatasetPath string `json:"dataset_path,omitempty"`

	// Limit caps the number of samples
	Limit int `json:"limit,omitempty"`

	// Concurrency is the number of samples processed at once
	Concurrency int `json:"concurrency,omitempty"`

	// Strategies selects "fast", "advanced" or both
	Strategies []string `json:"strategies,omitempty"`

	// ResultsDir is where the result files are written
	ResultsDir string `json:"results_dir,omitempty"`
}

// StrategySummary is the per-strategy aggregate returned after a run
type StrategySummary struct {
	Strategy     string  `json:"strategy"`
	Count        int     `json:"count"`
	PassRate     float64 `json:"pass_rate"`
	Refinements  int     `json:"refinements"`
	MeanQuality  float64 `json:"mean_quality"`
	P95LatencyMS int64   `json:"p95_latency_ms"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

// RunBenchmarkResponse defines the output schema for run_benchmark tool
type RunBenchmarkResponse struct {
	Status     string            `json:"status"`
	RunID      string            `json:"run_id,omitempty"`
	RunStatus  string            `json:"run_status,omitempty"`
	Records    int               `json:"records"`
	Files      []string          `json:"files,omitempty"`
	Strategies []StrategySummary `json:"strategies,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// SummarizeSampleRequest defines the input schema for summarize_sample tool
type SummarizeSampleRequest struct {
	// Text is the source content to summarize
	Text string `json:"text"`

	// URL and Title are passed to the prompt
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`

	// Reference is an optional baseline summary used for scoring
	Reference string `json:"reference,omitempty"`

	// Strategy is "fast" or "advanced"; empty selects "advanced"
	Strategy string `json:"strategy,omitempty"`
}

// ToRawContent converts the request into a dataset sample.
func (r SummarizeSampleRequest) ToRawContent() schema.RawContent {
	meta := map[string]string{}
	if r.Title != "" {
		meta[schema.MetaTitle] = r.Title
	}
	if r.Reference != "" {
		meta[schema.MetaBaselineSummary] = r.Reference
	}
	return schema.RawContent{URL: r.URL, Text: r.Text, Metadata: meta}
}

// SummarizeSampleResponse defines the output schema for summarize_sample tool
type SummarizeSampleResponse struct {
	Status string               `json:"status"`
	Record *schema.ResultRecord `json:"record,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// GetResultsRequest defines the input schema for get_results tool
type GetResultsRequest struct {
	RunID string `json:"run_id"`

	// Strategy filters the records; empty returns every strategy
	Strategy string `json:"strategy,omitempty"`
}

// GetResultsResponse defines the output schema for get_results tool
type GetResultsResponse struct {
	Status  string                `json:"status"`
	Run     *resultstore.Run      `json:"run,omitempty"`
	Records []schema.ResultRecord `json:"records"`
	Error   string                `json:"error,omitempty"`
}

// ListRunsRequest defines the input schema for list_runs tool
type ListRunsRequest struct {
	Limit int `json:"limit,omitempty"`
}

// ListRunsResponse defines the output schema for list_runs tool
type ListRunsResponse struct {
	Status string            `json:"status"`
	Runs   []resultstore.Run `json:"runs"`
	Error  string            `json:"error,omitempty"`
}

// HealthRequest defines the input schema for health tool
type HealthRequest struct{}

// HealthResponse defines the output schema for health tool
type HealthResponse struct {
	Status  string            `json:"status"`
	Report  *llm.HealthReport `json:"report,omitempty"`
	Running bool              `json:"running"`
	Error   string            `json:"error,omitempty"`
}
