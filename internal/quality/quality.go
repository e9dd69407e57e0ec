// Package quality folds the individual benchmark signals into a single
// 1 to 10 quality score and prices token usage.
package quality

import (
	"math"
	"unicode/utf8"

	"github.com/localrivet/summbench/internal/config"
)

const (
	// DefaultMaxChars is the length at which the length penalty starts.
	DefaultMaxChars = 1500

	// lengthPenaltySpan is how many characters past the limit reach a zero length score.
	lengthPenaltySpan = 500

	// MissingBertNorm is used when no positive semantic score is available.
	MissingBertNorm = 0.5
)

// Weights are the composite weights. They are validated by config.
type Weights struct {
	Bert   float64
	Judge  float64
	Length float64
	Rouge  float64
}

// DefaultWeights returns bert .60, judge .25, length .10, rouge .05.
func DefaultWeights() Weights {
	return Weights{Bert: 0.60, Judge: 0.25, Length: 0.10, Rouge: 0.05}
}

// WeightsFromConfig converts the configured weights.
func WeightsFromConfig(w config.WeightsConfig) Weights {
	return Weights{Bert: w.BertScore, Judge: w.JudgeScore, Length: w.LengthCompliance, Rouge: w.RougeL}
}

// Inputs are the raw signals for one summary.
type Inputs struct {
	Bert        float64
	Rouge       float64
	JudgeScore  float64
	SummaryText string
}

// Breakdown is the normalized view of Inputs plus the final score.
type Breakdown struct {
	BertNorm    float64
	RougeNorm   float64
	JudgeNorm   float64
	LengthScore float64
	Composite   float64
	Quality     float64
}

// Synthesizer computes quality scores.
type Synthesizer struct {
	weights  Weights
	maxChars int
}

// NewSynthesizer creates a Synthesizer. maxChars <= 0 selects DefaultMaxChars.
func NewSynthesizer(weights Weights, maxChars int) *Synthesizer {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Synthesizer{weights: weights, maxChars: maxChars}
}

// Score returns the quality breakdown for in.
func (s *Synthesizer) Score(in Inputs) Breakdown {
	b := Breakdown{
		BertNorm:    NormalizeBert(in.Bert),
		RougeNorm:   NormalizeRouge(in.Rouge),
		JudgeNorm:   in.JudgeScore,
		LengthScore: LengthScore(utf8.RuneCountInString(in.SummaryText), s.maxChars),
	}
	b.Composite = b.BertNorm*s.weights.Bert +
		b.JudgeNorm*s.weights.Judge +
		b.LengthScore*s.weights.Length +
		b.RougeNorm*s.weights.Rouge
	b.Quality = Round(1+b.Composite*9, 1)
	return b
}

// NormalizeBert maps a BERT F1 onto [0,1]. Non-positive values, including
// the -1 failure sentinel, map to MissingBertNorm.
func NormalizeBert(b float64) float64 {
	if b <= 0 {
		return MissingBertNorm
	}
	return clamp((b - 0.70) / 0.25)
}

// NormalizeRouge maps a ROUGE-L F onto [0,1].
func NormalizeRouge(r float64) float64 {
	return clamp((r - 0.10) / 0.30)
}

// LengthScore is 1 up to maxChars and decays linearly to 0 over the next 500.
func LengthScore(chars, maxChars int) float64 {
	if chars <= maxChars {
		return 1.0
	}
	return math.Max(0, 1-float64(chars-maxChars)/lengthPenaltySpan)
}

// Pricing is the USD price per million tokens.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// GeminiFlashPricing is the gemini-2.0-flash list price.
var GeminiFlashPricing = Pricing{InputPerMillion: 0.10, OutputPerMillion: 0.40}

// PricingFromConfig converts the configured prices.
func PricingFromConfig(m config.ModelConfig) Pricing {
	return Pricing{InputPerMillion: m.InputPricePerMillion, OutputPerMillion: m.OutputPricePerMillion}
}

// Cost prices a call, rounded to 6 decimals.
func (p Pricing) Cost(tokensIn, tokensOut int) float64 {
	cost := float64(tokensIn)/1e6*p.InputPerMillion + float64(tokensOut)/1e6*p.OutputPerMillion
	return Round(cost, 6)
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
