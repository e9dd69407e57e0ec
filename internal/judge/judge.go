// Package judge asks a language model for a PASS/FAIL verdict on a summary.
package judge

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/localrivet/summbench/internal/invoker"
	"github.com/localrivet/summbench/internal/prompts"
	"github.com/localrivet/summbench/internal/schema"
	"github.com/localrivet/summbench/internal/telemetry"
)

// Invoker is the structured-call capability the judge depends on.
type Invoker interface {
	Invoke(ctx context.Context, call invoker.Call, out any) error
}

// Judge evaluates summaries.
type Judge struct {
	invoker Invoker
	logger  *slog.Logger
	metrics *telemetry.Recorder
}

// New creates a Judge.
func New(inv Invoker, logger *slog.Logger, metrics *telemetry.Recorder) *Judge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Judge{
		invoker: inv,
		logger:  logger.With("component", "judge"),
		metrics: metrics,
	}
}

// Evaluate returns a fresh verdict for summary. A verdict outside PASS/FAIL
// or a score outside [0,1] is reported as a schema error.
func (j *Judge) Evaluate(ctx context.Context, summary *schema.SummaryOutput) (*schema.JudgeFeedback, error) {
	start := time.Now()
	feedback := &schema.JudgeFeedback{}
	err := j.invoker.Invoke(ctx, invoker.Call{
		System: prompts.Judge(),
		Prompt: Prompt(summary),
		Schema: schema.JudgeDefinition(),
	}, feedback)
	j.metrics.Stage("judge", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("judge (%s): %w", summary.Strategy, err)
	}

	j.logger.Debug("Verdict", "strategy", summary.Strategy, "status", feedback.Status, "score", feedback.ScoreAccuracy)
	return feedback, nil
}

// Prompt renders the judge input for summary.
func Prompt(summary *schema.SummaryOutput) string {
	var b strings.Builder
	b.WriteString("Summary Content:\n")
	b.WriteString(summary.Content)
	b.WriteString("\n\nMetadata:\n")
	fmt.Fprintf(&b, "Length: %d chars\n", summary.CharCount)
	fmt.Fprintf(&b, "Strategy: %s\n", summary.Strategy)
	fmt.Fprintf(&b, "Latency: %sms", strconv.FormatFloat(summary.LatencyMS, 'f', -1, 64))
	return b.String()
}
