// Package invoker performs structured LLM exchanges: one request, a
// JSON-shaped response decoded into a target, usage accounting and a
// bounded exponential backoff on rate-limit failures.
package invoker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/localrivet/summbench/internal/config"
	"github.com/localrivet/summbench/internal/errortypes"
	"github.com/localrivet/summbench/internal/llm"
	"github.com/localrivet/summbench/internal/schema"
	"github.com/localrivet/summbench/internal/telemetry"
)

// Call is a single structured request.
type Call struct {
	System          string
	Prompt          string
	Schema          schema.Definition
	MaxOutputTokens int
}

// UsageCarrier is implemented by targets that record token usage.
type UsageCarrier interface {
	Usage() (input, output int)
	SetUsage(input, output int)
}

type validator interface {
	Validate() error
}

// Options configures an Invoker.
type Options struct {
	Model   string
	Retry   config.RetryConfig
	Limits  config.LimitsConfig
	Logger  *slog.Logger
	Metrics *telemetry.Recorder
}

// Invoker is safe for concurrent use.
type Invoker struct {
	provider   llm.Provider
	model      string
	maxRetries int
	baseDelay  time.Duration
	limiter    *Limiter
	logger     *slog.Logger
	metrics    *telemetry.Recorder

	// sleep and countTokens are replaced in tests.
	sleep       func(ctx context.Context, d time.Duration) error
	countTokens func(string) int
}

// New creates an Invoker for the given provider.
func New(provider llm.Provider, opts Options) *Invoker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	baseDelay := opts.Retry.BaseDelay()
	if baseDelay <= 0 {
		baseDelay = time.Duration(config.DefaultRetryBaseDelayMS) * time.Millisecond
	}
	return &Invoker{
		provider:    provider,
		model:       opts.Model,
		maxRetries:  max(0, opts.Retry.MaxRetries),
		baseDelay:   baseDelay,
		limiter:     NewLimiter(opts.Limits.MaxRPM, opts.Limits.MaxTPM),
		logger:      logger.With("component", "invoker", "provider", provider.Name()),
		metrics:     opts.Metrics,
		sleep:       sleepContext,
		countTokens: CountTokens,
	}
}

// Provider returns the underlying transport.
func (inv *Invoker) Provider() llm.Provider {
	return inv.provider
}

// rateLimitMarkers are the phrases providers use when rejecting a request
// on rate or quota grounds.
var rateLimitMarkers = []string{
	"rate limit", "rate_limit", "ratelimit", "rate-limit",
	"too many requests", "resource_exhausted", "quota", "429",
}

// IsRateLimited reports whether an error is a rate or quota rejection. A
// provider StatusError decides by its status code and message body;
// transport failures such as refused connections never qualify.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || hasRateLimitMarker(statusErr.Message)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return false
	}
	return hasRateLimitMarker(err.Error())
}

func hasRateLimitMarker(msg string) bool {
	msg = strings.ToLower(msg)
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Backoff returns base * 2^attempt.
func Backoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<attempt)
}

// Invoke sends call and decodes the JSON response into out, which must be a
// pointer. Rate-limited attempts are retried up to the configured number of
// times; any other failure is returned immediately.
func (inv *Invoker) Invoke(ctx context.Context, call Call, out any) error {
	req := llm.Request{
		Model:           inv.model,
		System:          call.System,
		Prompt:          call.Prompt,
		Schema:          call.Schema,
		MaxOutputTokens: call.MaxOutputTokens,
	}
	promptTokens := func() int {
		return inv.countTokens(call.System) + inv.countTokens(call.Prompt)
	}
	reserve := 0
	if inv.limiter.limitsTokens() {
		reserve = promptTokens()
	}

	for attempt := 0; ; attempt++ {
		if err := inv.limiter.Wait(ctx, reserve); err != nil {
			return fmt.Errorf("waiting for rate limiter: %w", err)
		}

		start := time.Now()
		resp, err := inv.provider.Generate(ctx, req)
		inv.metrics.LLMCall(inv.provider.Name(), err, time.Since(start))
		if err == nil {
			return inv.decode(resp, call.Schema.Name, promptTokens, out)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("model call cancelled: %w", ctxErr)
		}
		if !IsRateLimited(err) {
			return errortypes.APIError(err, "model call failed").WithFields(map[string]interface{}{
				"provider": inv.provider.Name(),
				"schema":   call.Schema.Name,
			})
		}
		if attempt >= inv.maxRetries {
			inv.metrics.Count(telemetry.MetricLLMRateLimited)
			return errortypes.RateLimitError(err, "rate limit persisted after retries").WithFields(map[string]interface{}{
				"provider": inv.provider.Name(),
				"attempts": attempt + 1,
			})
		}

		delay := Backoff(inv.baseDelay, attempt)
		inv.logger.Warn("Rate limited, backing off",
			"attempt", attempt+1, "delay", delay, "error", err)
		inv.metrics.Retry(inv.provider.Name())
		if err := inv.sleep(ctx, delay); err != nil {
			return fmt.Errorf("backoff interrupted: %w", err)
		}
	}
}

func (inv *Invoker) decode(resp *llm.Response, name string, promptTokens func() int, out any) error {
	text := stripFences(resp.Text)
	if err := json.Unmarshal([]byte(text), out); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(text)
		if repairErr != nil {
			inv.metrics.Count(telemetry.MetricLLMSchemaErrors)
			return errortypes.SchemaError(err, "model output is not valid JSON").WithField("schema", name)
		}
		if err := json.Unmarshal([]byte(repaired), out); err != nil {
			inv.metrics.Count(telemetry.MetricLLMSchemaErrors)
			return errortypes.SchemaError(err, "model output does not match schema").WithField("schema", name)
		}
		inv.metrics.Count(telemetry.MetricLLMRepaired)
		inv.logger.Debug("Repaired malformed model output", "schema", name)
	}

	if v, ok := out.(validator); ok {
		if err := v.Validate(); err != nil {
			inv.metrics.Count(telemetry.MetricLLMSchemaErrors)
			return errortypes.SchemaError(err, "model output failed validation").WithField("schema", name)
		}
	}

	input, output := resp.Usage.InputTokens, resp.Usage.OutputTokens
	if c, ok := out.(UsageCarrier); ok {
		if !resp.Usage.Reported() {
			input, output = c.Usage()
			if input == 0 && output == 0 {
				input, output = promptTokens(), inv.countTokens(resp.Text)
			}
		}
		c.SetUsage(input, output)
	}
	inv.metrics.Tokens(input, output)
	return nil
}

// stripFences removes a Markdown code fence wrapped around the payload.
func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrNoProvider is returned by NewFromConfig when the configured provider has no key.
var ErrNoProvider = errors.New("no usable LLM provider configured")

// NewFromConfig builds the configured transport and wraps it in an Invoker.
func NewFromConfig(cfg config.Config, logger *slog.Logger, metrics *telemetry.Recorder) (*Invoker, error) {
	if cfg.Model.APIKey == "" {
		return nil, errortypes.ConfigError(ErrNoProvider, "missing API key").
			WithField("provider", cfg.Model.Provider)
	}
	factory := llm.NewProviderFactory(map[string]llm.Config{
		cfg.Model.Provider: {
			APIKey:  cfg.Model.APIKey,
			ModelID: cfg.Model.Name,
			BaseURL: cfg.Model.BaseURL,
			Timeout: cfg.Model.Timeout(),
		},
	})
	provider, err := factory.GetProvider(cfg.Model.Provider)
	if err != nil {
		return nil, errortypes.ConfigError(err, "unknown model provider")
	}
	return New(provider, Options{
		Model:   cfg.Model.Name,
		Retry:   cfg.Retry,
		Limits:  cfg.Limits,
		Logger:  logger,
		Metrics: metrics,
	}), nil
}
