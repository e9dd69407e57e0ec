package llm

import (
	"context"
	"time"

	"github.com/localrivet/summbench/internal/schema"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	// StatusHealthy indicates every provider answered
	StatusHealthy HealthStatus = "healthy"

	// StatusDegraded indicates some providers answered
	StatusDegraded HealthStatus = "degraded"

	// StatusUnhealthy indicates no provider answered
	StatusUnhealthy HealthStatus = "unhealthy"
)

// HealthReport contains the outcome of probing a set of providers
type HealthReport struct {
	Status        HealthStatus       `json:"status"`
	Timestamp     time.Time          `json:"timestamp"`
	Providers     map[string]bool    `json:"providers"`
	ResponseTimes map[string]float64 `json:"response_times_ms"`
	Errors        map[string]string  `json:"errors,omitempty"`
}

var probeDefinition = schema.Definition{
	Name: "HealthProbe",
	Body: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ok": map[string]any{"type": "boolean"},
		},
		"required": []string{"ok"},
	},
}

// CheckHealth sends a tiny structured request to each provider
func CheckHealth(ctx context.Context, model string, providers ...Provider) *HealthReport {
	report := &HealthReport{
		Timestamp:     time.Now(),
		Providers:     make(map[string]bool),
		ResponseTimes: make(map[string]float64),
		Errors:        make(map[string]string),
	}

	healthy := 0
	for _, p := range providers {
		probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		start := time.Now()
		_, err := p.Generate(probeCtx, Request{
			Model:           model,
			Prompt:          `Reply with {"ok": true}.`,
			Schema:          probeDefinition,
			MaxOutputTokens: 16,
		})
		cancel()

		report.ResponseTimes[p.Name()] = float64(time.Since(start)) / float64(time.Millisecond)
		report.Providers[p.Name()] = err == nil
		if err != nil {
			report.Errors[p.Name()] = err.Error()
			continue
		}
		healthy++
	}

	switch {
	case len(providers) > 0 && healthy == len(providers):
		report.Status = StatusHealthy
	case healthy > 0:
		report.Status = StatusDegraded
	default:
		report.Status = StatusUnhealthy
	}
	return report
}
