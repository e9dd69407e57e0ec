// Package pipeline drives benchmark samples through generation,
// verification, at most one refinement and scoring, under a global
// admission limit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"runtime/debug"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/localrivet/summbench/internal/errortypes"
	"github.com/localrivet/summbench/internal/quality"
	"github.com/localrivet/summbench/internal/schema"
	"github.com/localrivet/summbench/internal/scoring"
	"github.com/localrivet/summbench/internal/summarizer"
	"github.com/localrivet/summbench/internal/telemetry"
)

// DefaultMaxConcurrentSamples is the admission limit when none is configured.
const DefaultMaxConcurrentSamples = 15

// Judge returns a verdict for a summary.
type Judge interface {
	Evaluate(ctx context.Context, summary *schema.SummaryOutput) (*schema.JudgeFeedback, error)
}

// Scorer computes the reference-based scores of a summary.
type Scorer interface {
	Evaluate(ctx context.Context, reference, candidate string) scoring.Result
}

// Options configures a Runner.
type Options struct {
	Strategies           []schema.Strategy
	MaxConcurrentSamples int
	Synthesizer          *quality.Synthesizer
	Pricing              quality.Pricing

	// Total is the expected number of samples, used only for progress logs.
	Total int

	Logger  *slog.Logger
	Metrics *telemetry.Recorder
}

// Runner processes samples concurrently.
type Runner struct {
	summarizer  summarizer.Summarizer
	judge       Judge
	scorer      Scorer
	strategies  []schema.Strategy
	limit       int64
	synthesizer *quality.Synthesizer
	pricing     quality.Pricing
	total       int
	logger      *slog.Logger
	metrics     *telemetry.Recorder
}

// New creates a Runner.
func New(s summarizer.Summarizer, j Judge, scorer Scorer, opts Options) *Runner {
	if opts.MaxConcurrentSamples <= 0 {
		opts.MaxConcurrentSamples = DefaultMaxConcurrentSamples
	}
	if len(opts.Strategies) == 0 {
		opts.Strategies = []schema.Strategy{schema.StrategyFast, schema.StrategyAdvanced}
	}
	if opts.Synthesizer == nil {
		opts.Synthesizer = quality.NewSynthesizer(quality.DefaultWeights(), quality.DefaultMaxChars)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		summarizer:  s,
		judge:       j,
		scorer:      scorer,
		strategies:  opts.Strategies,
		limit:       int64(opts.MaxConcurrentSamples),
		synthesizer: opts.Synthesizer,
		pricing:     opts.Pricing,
		total:       opts.Total,
		logger:      opts.Logger.With("component", "pipeline"),
		metrics:     opts.Metrics,
	}
}

type sampleResult struct {
	index   int
	records []schema.ResultRecord
}

// Run processes every sample and calls emit for each record in completion
// order. emit is only ever called from the calling goroutine. Samples that
// fail produce no records and never stop the batch. Run returns the first
// dataset error, or the context error if the run was cancelled.
func (r *Runner) Run(ctx context.Context, samples iter.Seq2[schema.RawContent, error], emit func(schema.ResultRecord)) error {
	results := make(chan sampleResult, r.limit)
	var sourceErr error

	go func() {
		defer close(results)

		sem := semaphore.NewWeighted(r.limit)
		var g errgroup.Group
		index := 0
		for sample, err := range samples {
			if err != nil {
				sourceErr = err
				break
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}

			i, s := index, sample
			index++
			g.Go(func() error {
				records := r.processAdmitted(ctx, i, s)
				sem.Release(1)
				results <- sampleResult{index: i, records: records}
				return nil
			})
		}
		_ = g.Wait()
	}()

	var done, emitted int
	for res := range results {
		done++
		for _, rec := range res.records {
			emit(rec)
			emitted++
		}
		r.logProgress(done, len(res.records))
	}

	r.logger.Info("Benchmark finished", "samples", done, "records", emitted)
	if sourceErr != nil {
		return fmt.Errorf("reading samples: %w", sourceErr)
	}
	return ctx.Err()
}

// Collect runs the pipeline and returns all records.
func (r *Runner) Collect(ctx context.Context, samples iter.Seq2[schema.RawContent, error]) ([]schema.ResultRecord, error) {
	var records []schema.ResultRecord
	err := r.Run(ctx, samples, func(rec schema.ResultRecord) {
		records = append(records, rec)
	})
	return records, err
}

func (r *Runner) logProgress(done, records int) {
	if r.total > 0 {
		r.logger.Info("Sample complete", "done", done, "total", r.total, "records", records)
		return
	}
	r.logger.Info("Sample complete", "done", done, "records", records)
}

// processAdmitted wraps ProcessSample with admission metrics.
func (r *Runner) processAdmitted(ctx context.Context, index int, sample schema.RawContent) []schema.ResultRecord {
	r.metrics.SampleStarted()
	records, err := r.ProcessSample(ctx, index, sample)

	outcome := telemetry.OutcomeSuccess
	switch {
	case err != nil:
		outcome = telemetry.OutcomePanic
		errortypes.LogError(r.logger, err)
	case len(records) == 0:
		outcome = telemetry.OutcomeFailure
	}
	r.metrics.SampleFinished(outcome)
	return records
}

// ProcessSample runs every strategy for one sample. A failing strategy is
// logged and skipped. A panic anywhere in the sample is recovered and
// returned as an error, and the sample yields no records.
func (r *Runner) ProcessSample(ctx context.Context, index int, sample schema.RawContent) (records []schema.ResultRecord, err error) {
	defer func() {
		if p := recover(); p != nil {
			records = nil
			err = errortypes.PipelineError(fmt.Errorf("panic: %v", p), "sample failed completely").
				WithField("sample", index+1).
				WithField("url", sample.URL).
				WithField("panic_stack", string(debug.Stack()))
		}
	}()

	r.logger.Debug("Processing sample", "sample", index+1, "url", sample.URL)
	for _, strategy := range r.strategies {
		rec, err := r.ProcessStrategy(ctx, index, sample, strategy)
		if err != nil {
			r.metrics.Count(telemetry.MetricStrategyFail)
			errortypes.LogError(r.logger, strategyError(err, index, sample, strategy))
			continue
		}
		records = append(records, *rec)
	}
	return records, nil
}

// ProcessStrategy produces the record for one (sample, strategy) pair.
func (r *Runner) ProcessStrategy(ctx context.Context, index int, sample schema.RawContent, strategy schema.Strategy) (*schema.ResultRecord, error) {
	draft, err := r.summarizer.Summarize(ctx, sample, strategy)
	if err != nil {
		return nil, err
	}

	outcome, err := r.verify(ctx, sample, strategy, draft)
	if err != nil {
		return nil, err
	}

	rec := r.record(ctx, index, sample, strategy, outcome)
	r.metrics.Record(string(strategy), outcome.Feedback.Passed(), outcome.Refined(), rec.QualityScore)
	r.logger.Info("Strategy complete",
		"sample", index+1,
		"strategy", strategy,
		"quality", rec.QualityScore,
		"rouge_l", rec.RougeLF1,
		"bert", rec.BertScoreF1,
		"latency_ms", rec.LatencyMS,
		"refined", rec.Refined)
	return rec, nil
}

func (r *Runner) record(ctx context.Context, index int, sample schema.RawContent, strategy schema.Strategy, o *Outcome) *schema.ResultRecord {
	summary, feedback := o.Summary, o.Feedback
	reference := sample.Reference()

	var scores scoring.Result
	if r.scorer != nil {
		scores = r.scorer.Evaluate(ctx, reference, summary.Content)
	}
	breakdown := r.synthesizer.Score(quality.Inputs{
		Bert:        scores.Bert,
		Rouge:       scores.RougeL,
		JudgeScore:  feedback.ScoreAccuracy,
		SummaryText: summary.Content,
	})

	return &schema.ResultRecord{
		URL:               sample.URL,
		LatencyMS:         int64(math.Round(summary.LatencyMS)),
		TokensInput:       summary.TokensInput,
		TokensOutput:      summary.TokensOutput,
		CostUSD:           r.pricing.Cost(summary.TokensInput, summary.TokensOutput),
		CharCount:         summary.CharCount,
		JudgeStatus:       feedback.Status,
		JudgeScore:        feedback.ScoreAccuracy,
		JudgeCritique:     feedback.Critique,
		RougeLF1:          quality.Round(scores.RougeL, 3),
		BertScoreF1:       quality.Round(scores.Bert, 3),
		QualityScore:      breakdown.Quality,
		SummaryContent:    summary.Content,
		BaselineSummary:   reference,
		BaselineCharCount: utf8.RuneCountInString(reference),
		Strategy:          strategy,
		Refined:           o.Refined(),
		SampleIndex:       index,
	}
}

func strategyError(err error, index int, sample schema.RawContent, strategy schema.Strategy) error {
	wrapped := errortypes.PipelineError(err, "strategy failed")
	var cause *errortypes.AppError
	if errors.As(err, &cause) {
		wrapped.WithField("cause_type", string(cause.Type))
	}
	return wrapped.
		WithField("sample", index+1).
		WithField("url", sample.URL).
		WithField("strategy", string(strategy))
}
