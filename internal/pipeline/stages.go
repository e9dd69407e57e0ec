package pipeline

import (
	"context"
	"fmt"

	"github.com/localrivet/summbench/internal/schema"
)

// Stage is how far a (sample, strategy) pair got through verification.
type Stage int

// Stages
const (
	// StageDraft means a draft exists but has not been verified.
	StageDraft Stage = iota
	// StageJudged means the draft carries its first verdict.
	StageJudged
	// StageRefined means the draft failed and was rewritten once.
	StageRefined
	// StageRejudged means the rewrite carries its final verdict.
	StageRejudged
)

func (s Stage) String() string {
	switch s {
	case StageDraft:
		return "draft"
	case StageJudged:
		return "judged"
	case StageRefined:
		return "refined"
	case StageRejudged:
		return "rejudged"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Outcome is the verified summary for one (sample, strategy) pair.
type Outcome struct {
	Summary  *schema.SummaryOutput
	Feedback *schema.JudgeFeedback
	Stage    Stage
}

// Refined reports whether the summary went through the rewrite.
func (o *Outcome) Refined() bool {
	return o.Stage >= StageRefined
}

// verify moves a draft through Judged and, on FAIL, through exactly one
// Refined and Rejudged step. The final verdict is reported as given.
func (r *Runner) verify(ctx context.Context, sample schema.RawContent, strategy schema.Strategy, draft *schema.SummaryOutput) (*Outcome, error) {
	out := &Outcome{Summary: draft, Stage: StageDraft}

	if strategy != schema.StrategyAdvanced {
		out.Feedback = schema.AutoPass()
		out.Stage = StageJudged
		return out, nil
	}

	feedback, err := r.judge.Evaluate(ctx, draft)
	if err != nil {
		return nil, err
	}
	out.Feedback, out.Stage = feedback, StageJudged
	if feedback.Passed() {
		return out, nil
	}

	r.logger.Info("Judge failed draft, refining", "url", sample.URL, "strategy", strategy, "critique", feedback.Critique)
	refined, err := r.summarizer.Refine(ctx, sample, strategy, feedback, draft)
	if err != nil {
		return nil, err
	}
	refined.Accumulate(draft)
	out.Summary, out.Stage = refined, StageRefined

	final, err := r.judge.Evaluate(ctx, refined)
	if err != nil {
		return nil, err
	}
	out.Feedback, out.Stage = final, StageRejudged
	return out, nil
}
