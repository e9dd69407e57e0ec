// Package llm contains the HTTP transports used to obtain structured JSON
// output from hosted language models.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/localrivet/summbench/internal/schema"
)

const (
	// Provider constants
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderXAI       = "xai"

	// Default settings
	DefaultTimeout         = 60 * time.Second
	DefaultMaxOutputTokens = 2048
)

// Request is a single structured generation request.
type Request struct {
	Model           string
	System          string
	Prompt          string
	Schema          schema.Definition
	MaxOutputTokens int
}

// Usage holds the token counters reported by the provider.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Reported reports whether the provider returned any usage data.
func (u Usage) Reported() bool {
	return u.InputTokens > 0 || u.OutputTokens > 0
}

// Response is the raw JSON text produced by the model plus usage.
type Response struct {
	Text  string
	Usage Usage
}

// Provider defines the interface for different LLM service providers
type Provider interface {
	// Generate sends the request and returns the model's JSON payload
	Generate(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider name
	Name() string
}

// Config holds common configuration for LLM providers
type Config struct {
	APIKey  string
	ModelID string
	BaseURL string
	Timeout time.Duration
}

func (c Config) httpClient() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (c Config) model(req Request, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if c.ModelID != "" {
		return c.ModelID
	}
	return fallback
}

func maxOutputTokens(req Request) int {
	if req.MaxOutputTokens > 0 {
		return req.MaxOutputTokens
	}
	return DefaultMaxOutputTokens
}

// StatusError is returned when a provider answers with a non-success status.
// The status code is part of the message so rate limits stay recognizable
// after wrapping.
type StatusError struct {
	Provider   string
	StatusCode int
	Status     string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error: %d %s: %s", e.Provider, e.StatusCode, e.Status, e.Message)
}
