// Package summarizer produces draft and refined summaries of raw content
// under a named strategy.
package summarizer

import (
	"context"

	"github.com/localrivet/summbench/internal/invoker"
	"github.com/localrivet/summbench/internal/schema"
)

const (
	// DefaultMaxContentChars is how much of the source text is sent to the model.
	DefaultMaxContentChars = 8000

	// DefaultMaxSummaryLength is the advertised summary length bound.
	DefaultMaxSummaryLength = 1500
)

// Summarizer defines the interface for summarizing raw content.
type Summarizer interface {
	// Summarize drafts a summary of content under strategy.
	Summarize(ctx context.Context, content schema.RawContent, strategy schema.Strategy) (*schema.SummaryOutput, error)

	// Refine rewrites original to address the judge's critique.
	Refine(ctx context.Context, content schema.RawContent, strategy schema.Strategy,
		feedback *schema.JudgeFeedback, original *schema.SummaryOutput) (*schema.SummaryOutput, error)
}

// Invoker is the structured-call capability the summarizer depends on.
type Invoker interface {
	Invoke(ctx context.Context, call invoker.Call, out any) error
}
