package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/localrivet/configurator"
)

// Config represents the summbench configuration.
//
// A loaded Config is handed to components by value; nothing mutates it
// after LoadConfigWithPath returns.
type Config struct {
	// Model selects the LLM used by the summarizer and the judge.
	Model ModelConfig `json:"model"`

	// Limits bounds concurrency and request throughput.
	Limits LimitsConfig `json:"limits"`

	// Retry controls the invoker backoff schedule.
	Retry RetryConfig `json:"retry"`

	// Benchmark contains dataset and output settings.
	Benchmark BenchmarkConfig `json:"benchmark"`

	// Weights are the quality score weights. They must sum to 1.0.
	Weights WeightsConfig `json:"weights"`

	// Embedder configures the embedding backend behind the semantic scorer.
	Embedder EmbedderConfig `json:"embedder"`

	// Store contains result persistence configuration.
	Store StoreConfig `json:"store"`

	// Logging contains logging-related configuration.
	Logging LoggingConfig `json:"logging"`

	// Server contains settings for the MCP and HTTP status servers.
	Server ServerConfig `json:"server"`

	configPath string
}

// ModelConfig selects the provider, model and pricing.
type ModelConfig struct {
	// Provider is one of "google", "openai", "anthropic", "xai".
	Provider string `json:"provider" env:"MODEL_PROVIDER" validate:"required"`

	// Name is the model identifier sent to the provider.
	Name string `json:"name" env:"MODEL_NAME" validate:"required"`

	// APIKey is the provider API key. Falls back to the provider's usual env var.
	APIKey string `json:"api_key" env:"MODEL_API_KEY"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `json:"base_url" env:"MODEL_BASE_URL"`

	// InputPricePerMillion is the USD price per million input tokens.
	InputPricePerMillion float64 `json:"input_price_per_million" env:"MODEL_INPUT_PRICE"`

	// OutputPricePerMillion is the USD price per million output tokens.
	OutputPricePerMillion float64 `json:"output_price_per_million" env:"MODEL_OUTPUT_PRICE"`

	// TimeoutSeconds is the HTTP client timeout for a single call.
	TimeoutSeconds int `json:"timeout_seconds" env:"MODEL_TIMEOUT_SECONDS" validate:"min:1"`
}

// Timeout returns the transport timeout as a duration.
func (m ModelConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// LimitsConfig keeps the admission limiter independent of request rates.
type LimitsConfig struct {
	// MaxConcurrentSamples caps the samples inside the generate/verify/refine section.
	MaxConcurrentSamples int `json:"max_concurrent_samples" env:"MAX_CONCURRENT_SAMPLES" validate:"min:1"`

	// MaxRPM is the requests-per-minute ceiling. Zero disables request limiting.
	MaxRPM int `json:"max_rpm" env:"MAX_RPM"`

	// MaxTPM is the tokens-per-minute ceiling. Zero disables token limiting.
	MaxTPM int `json:"max_tpm" env:"MAX_TPM"`
}

// RetryConfig controls the rate-limit retry schedule.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `json:"max_retries" env:"MAX_RETRIES"`

	// BaseDelayMS is the first backoff delay; attempt n waits BaseDelay * 2^n.
	BaseDelayMS int `json:"base_delay_ms" env:"RETRY_BASE_DELAY_MS" validate:"min:1"`
}

// BaseDelay returns the first backoff delay as a duration.
func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMS) * time.Millisecond
}

// BenchmarkConfig contains dataset and output settings.
type BenchmarkConfig struct {
	DatasetPath     string   `json:"dataset_path" env:"DATASET_PATH" validate:"required"`
	ResultsDir      string   `json:"results_dir" env:"RESULTS_DIR" validate:"required"`
	SampleLimit     int      `json:"sample_limit" env:"SAMPLE_LIMIT"`
	Strategies      []string `json:"strategies"`
	MaxContentChars int      `json:"max_content_chars" env:"MAX_CONTENT_CHARS" validate:"min:1"`
	MaxSummaryChars int      `json:"max_summary_chars" env:"MAX_SUMMARY_CHARS" validate:"min:1"`
	StripHTML       bool     `json:"strip_html" env:"STRIP_HTML"`
}

// WeightsConfig holds the composite quality score weights.
type WeightsConfig struct {
	BertScore        float64 `json:"bert_score"`
	JudgeScore       float64 `json:"judge_score"`
	LengthCompliance float64 `json:"length_compliance"`
	RougeL           float64 `json:"rouge_l"`
}

// Sum returns the total of all weights.
func (w WeightsConfig) Sum() float64 {
	return w.BertScore + w.JudgeScore + w.LengthCompliance + w.RougeL
}

// EmbedderConfig configures the embedding backend.
type EmbedderConfig struct {
	// Provider is one of "hash", "openai", "ollama".
	Provider   string `json:"provider" env:"EMBEDDER_PROVIDER"`
	Model      string `json:"model" env:"EMBEDDER_MODEL"`
	APIKey     string `json:"api_key" env:"EMBEDDER_API_KEY"`
	BaseURL    string `json:"base_url" env:"EMBEDDER_BASE_URL"`
	Dimensions int    `json:"dimensions" env:"EMBEDDER_DIMENSIONS" validate:"min:1"`
	CacheSize  int    `json:"cache_size" env:"EMBEDDER_CACHE_SIZE" validate:"min:1"`
}

// StoreConfig contains storage-related configuration.
type StoreConfig struct {
	// SQLitePath is the path to the SQLite database file. Empty disables persistence.
	SQLitePath string `json:"sqlite_path" env:"SQLITE_PATH"`
}

// LoggingConfig contains logging-related configuration.
type LoggingConfig struct {
	// Level is the minimum log level to display ("debug", "info", "warn", "error").
	Level string `json:"level" env:"LOG_LEVEL" validate:"required"`

	// Format is the log format to use ("text", "json").
	Format string `json:"format" env:"LOG_FORMAT"`
}

// ServerConfig contains settings for the long-running server mode.
type ServerConfig struct {
	// Name is the MCP server name.
	Name string `json:"name" env:"SERVER_NAME"`

	// HTTPAddr enables the HTTP status server (metrics, runs) when set.
	HTTPAddr string `json:"http_addr" env:"HTTP_ADDR"`
}

// Default configuration values
const (
	DefaultConfigFilename = ".summbenchconfig"
	DefaultEnvPrefix      = "SUMMBENCH"
	DefaultModelProvider  = "google"
	DefaultModelName      = "gemini-2.0-flash"
	DefaultDatasetPath    = "data/summaries_1k.json"
	DefaultResultsDir     = "results"
	DefaultSQLitePath     = "results/summbench.db"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"

	DefaultMaxConcurrentSamples = 15
	DefaultMaxRPM               = 1600
	DefaultMaxTPM               = 3_200_000
	DefaultMaxRetries           = 5
	DefaultRetryBaseDelayMS     = 500
	DefaultSampleLimit          = 1000
	DefaultMaxContentChars      = 8000
	DefaultMaxSummaryChars      = 1500
	DefaultTimeoutSeconds       = 60

	StrategyFast     = "fast"
	StrategyAdvanced = "advanced"
)

// weightTolerance absorbs float rounding in user supplied weights.
const weightTolerance = 1e-6

// NewConfig creates a new Config instance with default values
func NewConfig() *Config {
	config := &Config{}
	config.Model.Provider = DefaultModelProvider
	config.Model.Name = DefaultModelName
	config.Model.InputPricePerMillion = 0.10
	config.Model.OutputPricePerMillion = 0.40
	config.Model.TimeoutSeconds = DefaultTimeoutSeconds
	config.Limits.MaxConcurrentSamples = DefaultMaxConcurrentSamples
	config.Limits.MaxRPM = DefaultMaxRPM
	config.Limits.MaxTPM = DefaultMaxTPM
	config.Retry.MaxRetries = DefaultMaxRetries
	config.Retry.BaseDelayMS = DefaultRetryBaseDelayMS
	config.Benchmark.DatasetPath = DefaultDatasetPath
	config.Benchmark.ResultsDir = DefaultResultsDir
	config.Benchmark.SampleLimit = DefaultSampleLimit
	config.Benchmark.Strategies = []string{StrategyFast, StrategyAdvanced}
	config.Benchmark.MaxContentChars = DefaultMaxContentChars
	config.Benchmark.MaxSummaryChars = DefaultMaxSummaryChars
	config.Benchmark.StripHTML = true
	config.Weights = WeightsConfig{
		BertScore:        0.60,
		JudgeScore:       0.25,
		LengthCompliance: 0.10,
		RougeL:           0.05,
	}
	config.Embedder.Provider = "hash"
	config.Embedder.Dimensions = 768
	config.Embedder.CacheSize = 4096
	config.Store.SQLitePath = DefaultSQLitePath
	config.Logging.Level = DefaultLogLevel
	config.Logging.Format = DefaultLogFormat
	config.Server.Name = "summbench"
	return config
}

// LoadConfig loads the configuration from the default path
func LoadConfig() (*Config, error) {
	return LoadConfigWithPath(DefaultConfigFilename)
}

// LoadConfigWithPath loads the configuration from a specific path. A missing
// file is not an error: defaults and environment overrides still apply.
func LoadConfigWithPath(configPath string) (*Config, error) {
	stdLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	cfg := NewConfig()

	if configPath == "" {
		configPath = DefaultConfigFilename
	}
	if configPath == DefaultConfigFilename {
		foundPath, err := configurator.FindConfigFile(configPath)
		if err == nil {
			configPath = foundPath
			stdLogger.Debug("Found config file at " + foundPath)
		}
	}

	loader := configurator.New(stdLogger).
		WithProvider(configurator.NewDefaultProvider())

	if _, err := os.Stat(configPath); err == nil {
		loader = loader.WithProvider(configurator.NewFileProvider(configPath))
	} else {
		stdLogger.Info("Config file not found, using defaults and environment", "path", configPath)
	}

	loader = loader.
		WithProvider(configurator.NewEnvProvider(DefaultEnvPrefix)).
		WithValidator(configurator.NewDefaultValidator())

	if err := loader.Load(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg.configPath = configPath
	cfg.resolveAPIKeys()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// providerKeyEnv maps providers to the env var their SDKs conventionally read.
var providerKeyEnv = map[string]string{
	"google":    "GOOGLE_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"xai":       "XAI_API_KEY",
}

func (c *Config) resolveAPIKeys() {
	if c.Model.APIKey == "" {
		if env, ok := providerKeyEnv[c.Model.Provider]; ok {
			c.Model.APIKey = os.Getenv(env)
		}
	}
	if c.Embedder.APIKey == "" && c.Embedder.Provider == "openai" {
		c.Embedder.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Validate checks cross-field constraints the tag validator cannot express.
func (c *Config) Validate() error {
	if math.Abs(c.Weights.Sum()-1.0) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %.4f", ErrInvalidWeights, c.Weights.Sum())
	}
	for _, w := range []float64{c.Weights.BertScore, c.Weights.JudgeScore, c.Weights.LengthCompliance, c.Weights.RougeL} {
		if w < 0 {
			return fmt.Errorf("%w: negative weight %.4f", ErrInvalidWeights, w)
		}
	}
	if len(c.Benchmark.Strategies) == 0 {
		return fmt.Errorf("%w: no strategies configured", ErrInvalidStrategy)
	}
	for _, s := range c.Benchmark.Strategies {
		if s != StrategyFast && s != StrategyAdvanced {
			return fmt.Errorf("%w: %q", ErrInvalidStrategy, s)
		}
	}
	if c.Limits.MaxConcurrentSamples < 1 {
		return fmt.Errorf("%w: max_concurrent_samples must be at least 1", ErrInvalidLimits)
	}
	if c.Limits.MaxRPM < 0 || c.Limits.MaxTPM < 0 || c.Retry.MaxRetries < 0 {
		return fmt.Errorf("%w: rates and retries must not be negative", ErrInvalidLimits)
	}
	return nil
}

// Configuration validation errors
var (
	ErrInvalidWeights  = errors.New("invalid quality weights")
	ErrInvalidStrategy = errors.New("invalid strategy")
	ErrInvalidLimits   = errors.New("invalid limits")
)

// SaveToFile saves the configuration to the specified file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := configurator.SaveToFile(c, path, configurator.FormatJSON); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	c.configPath = path
	return nil
}

// GetConfigPath returns the path of the currently loaded configuration file
func (c *Config) GetConfigPath() string {
	return c.configPath
}
