// Package schema defines the data exchanged between the benchmark stages:
// raw dataset content, model outputs, judge verdicts and result records.
package schema

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Strategy is a named summarization policy.
type Strategy string

// Strategies
const (
	// StrategyFast is a single generation pass.
	StrategyFast Strategy = "fast"
	// StrategyAdvanced is generation plus judged verification and at most one refinement.
	StrategyAdvanced Strategy = "advanced"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyFast:
		return StrategyFast, nil
	case StrategyAdvanced:
		return StrategyAdvanced, nil
	default:
		return "", fmt.Errorf("unknown strategy %q", s)
	}
}

// ParseStrategies validates a list of strategy names, preserving order.
func ParseStrategies(names []string) ([]Strategy, error) {
	out := make([]Strategy, 0, len(names))
	for _, n := range names {
		s, err := ParseStrategy(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Verdict is the judge outcome.
type Verdict string

// Verdicts
const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

// Metadata keys populated by the dataset loader.
const (
	MetaTitle           = "title"
	MetaBaselineSummary = "baseline_summary"
)

// RawContent is one dataset record. It is never modified after loading.
type RawContent struct {
	URL      string            `json:"url,omitempty"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Title returns the page title or "N/A".
func (c RawContent) Title() string {
	if t := c.Metadata[MetaTitle]; t != "" {
		return t
	}
	return "N/A"
}

// Reference returns the baseline summary used for scoring, possibly empty.
func (c RawContent) Reference() string {
	return c.Metadata[MetaBaselineSummary]
}

// SummaryOutput is a draft or refined summary.
type SummaryOutput struct {
	Content      string   `json:"content"`
	Strategy     Strategy `json:"strategy"`
	CharCount    int      `json:"char_count"`
	LatencyMS    float64  `json:"latency_ms"`
	TokensInput  int      `json:"tokens_input"`
	TokensOutput int      `json:"tokens_output"`
	Language     string   `json:"language,omitempty"`
}

// Usage returns the token counters.
func (s *SummaryOutput) Usage() (int, int) {
	return s.TokensInput, s.TokensOutput
}

// SetUsage overwrites the token counters.
func (s *SummaryOutput) SetUsage(input, output int) {
	s.TokensInput = input
	s.TokensOutput = output
}

// Normalize replaces model-reported bookkeeping with measured values.
func (s *SummaryOutput) Normalize(strategy Strategy, latencyMS float64) {
	s.LatencyMS = latencyMS
	s.CharCount = utf8.RuneCountInString(s.Content)
	s.Strategy = strategy
	if s.Language == "" {
		s.Language = "unknown"
	}
}

// Accumulate adds the latency and token cost of an earlier attempt.
func (s *SummaryOutput) Accumulate(prev *SummaryOutput) {
	if prev == nil {
		return
	}
	s.LatencyMS += prev.LatencyMS
	s.TokensInput += prev.TokensInput
	s.TokensOutput += prev.TokensOutput
}

// JudgeFeedback is a single judge verdict.
type JudgeFeedback struct {
	Status        Verdict `json:"status"`
	ScoreAccuracy float64 `json:"score_accuracy"`
	Critique      string  `json:"critique,omitempty"`
}

// Passed reports whether the verdict is PASS.
func (f *JudgeFeedback) Passed() bool {
	return f != nil && f.Status == VerdictPass
}

// Validate normalizes the status casing and rejects values outside the schema.
func (f *JudgeFeedback) Validate() error {
	f.Status = Verdict(strings.ToUpper(strings.TrimSpace(string(f.Status))))
	if f.Status != VerdictPass && f.Status != VerdictFail {
		return fmt.Errorf("status must be PASS or FAIL, got %q", f.Status)
	}
	if f.ScoreAccuracy < 0 || f.ScoreAccuracy > 1 {
		return fmt.Errorf("score_accuracy must be within [0,1], got %v", f.ScoreAccuracy)
	}
	return nil
}

// AutoPass is the verdict synthesized for strategies that skip the judge.
func AutoPass() *JudgeFeedback {
	return &JudgeFeedback{Status: VerdictPass, ScoreAccuracy: AutoPassConfidence}
}

// AutoPassConfidence is the fixed judge confidence given to the fast strategy.
const AutoPassConfidence = 0.95
