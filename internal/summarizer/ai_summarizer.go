package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/localrivet/summbench/internal/invoker"
	"github.com/localrivet/summbench/internal/prompts"
	"github.com/localrivet/summbench/internal/schema"
	"github.com/localrivet/summbench/internal/telemetry"
)

// AISummarizer drafts and refines summaries with a language model.
type AISummarizer struct {
	invoker          Invoker
	maxContentChars  int
	maxSummaryLength int
	logger           *slog.Logger
	metrics          *telemetry.Recorder
}

// AISummarizerConfig holds configuration for the AISummarizer
type AISummarizerConfig struct {
	MaxContentChars  int
	MaxSummaryLength int
	Logger           *slog.Logger
	Metrics          *telemetry.Recorder
}

// NewAISummarizer creates a new AISummarizer on top of inv
func NewAISummarizer(inv Invoker, config *AISummarizerConfig) *AISummarizer {
	if config == nil {
		config = &AISummarizerConfig{}
	}
	if config.MaxContentChars <= 0 {
		config.MaxContentChars = DefaultMaxContentChars
	}
	if config.MaxSummaryLength <= 0 {
		config.MaxSummaryLength = DefaultMaxSummaryLength
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AISummarizer{
		invoker:          inv,
		maxContentChars:  config.MaxContentChars,
		maxSummaryLength: config.MaxSummaryLength,
		logger:           logger.With("component", "summarizer"),
		metrics:          config.Metrics,
	}
}

// Summarize drafts a summary of content. The returned latency, character
// count and strategy are measured here, not taken from the model.
func (s *AISummarizer) Summarize(ctx context.Context, content schema.RawContent, strategy schema.Strategy) (*schema.SummaryOutput, error) {
	var b strings.Builder
	s.writeHeader(&b, content, strategy)
	if strategy == schema.StrategyAdvanced {
		b.WriteString("\nUse your advanced chain-of-thought reasoning.")
	}
	return s.generate(ctx, "draft", b.String(), strategy)
}

// Refine rewrites original so that it addresses feedback's critique. The
// result carries only the cost of this call; callers accumulate.
func (s *AISummarizer) Refine(ctx context.Context, content schema.RawContent, strategy schema.Strategy,
	feedback *schema.JudgeFeedback, original *schema.SummaryOutput) (*schema.SummaryOutput, error) {
	var b strings.Builder
	s.writeHeader(&b, content, strategy)
	if original != nil {
		fmt.Fprintf(&b, "\nPrevious summary:\n%s\n", original.Content)
	}
	critique := ""
	if feedback != nil {
		critique = feedback.Critique
	}
	fmt.Fprintf(&b, "\nCRITIQUE: %s\n", critique)
	fmt.Fprintf(&b, "Rewrite the previous summary to fix every point in the critique. "+
		"Stay under %d characters and write in the language of the original content.", s.maxSummaryLength)
	return s.generate(ctx, "refine", b.String(), strategy)
}

func (s *AISummarizer) writeHeader(b *strings.Builder, content schema.RawContent, strategy schema.Strategy) {
	fmt.Fprintf(b, "Strategy: %s\n", strings.ToUpper(string(strategy)))
	fmt.Fprintf(b, "URL: %s\n", content.URL)
	fmt.Fprintf(b, "Title: %s\n\n", content.Title())
	fmt.Fprintf(b, "Content:\n%s\n", truncateRunes(content.Text, s.maxContentChars))
}

func (s *AISummarizer) generate(ctx context.Context, stage, prompt string, strategy schema.Strategy) (*schema.SummaryOutput, error) {
	start := time.Now()
	out := &schema.SummaryOutput{}
	err := s.invoker.Invoke(ctx, s.call(prompt), out)
	elapsed := time.Since(start)
	s.metrics.Stage(stage, err, elapsed)
	if err != nil {
		return nil, fmt.Errorf("%s summary (%s): %w", stage, strategy, err)
	}

	out.Normalize(strategy, float64(elapsed)/float64(time.Millisecond))
	s.logger.Debug("Summary generated",
		"stage", stage, "strategy", strategy, "chars", out.CharCount, "latency_ms", out.LatencyMS)
	return out, nil
}

func (s *AISummarizer) call(prompt string) invoker.Call {
	return invoker.Call{
		System: prompts.Summarizer(),
		Prompt: prompt,
		Schema: schema.SummaryDefinition(s.maxSummaryLength),
	}
}

// truncateRunes returns the first n characters of text.
func truncateRunes(text string, n int) string {
	if n <= 0 {
		return text
	}
	count := 0
	for i := range text {
		if count == n {
			return text[:i]
		}
		count++
	}
	return text
}
