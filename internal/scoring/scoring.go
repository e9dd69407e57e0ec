// Package scoring compares a candidate summary against a reference summary.
package scoring

import (
	"context"
	"log/slog"
)

// BertFailure is reported in place of a semantic score the scorer could not
// compute.
const BertFailure = -1.0

// Scorer compares a candidate text against a reference text.
type Scorer interface {
	Score(ctx context.Context, reference, candidate string) (float64, error)
}

// Result holds the reference-based scores for one summary.
type Result struct {
	RougeL float64
	Bert   float64
}

// Suite runs the lexical and semantic scorers together.
type Suite struct {
	Lexical  Scorer
	Semantic Scorer
	Logger   *slog.Logger
}

// Evaluate scores candidate against reference. An empty reference scores 0
// on both axes without calling either scorer; a whitespace-only reference
// is still scored. A semantic failure is logged
// and reported as BertFailure.
func (s Suite) Evaluate(ctx context.Context, reference, candidate string) Result {
	if reference == "" {
		return Result{}
	}

	var res Result
	if s.Lexical != nil {
		r, err := s.Lexical.Score(ctx, reference, candidate)
		if err != nil {
			s.logger().Warn("ROUGE-L scoring failed", "error", err)
		}
		res.RougeL = r
	}

	res.Bert = BertFailure
	if s.Semantic != nil {
		b, err := s.Semantic.Score(ctx, reference, candidate)
		if err != nil {
			s.logger().Warn("Semantic scoring failed", "error", err)
		} else {
			res.Bert = b
		}
	}
	return res
}

func (s Suite) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// f1 is the harmonic mean of precision and recall.
func f1(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}
