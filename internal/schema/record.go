package schema

import (
	"strconv"
)

// ResultRecord is one row per processed (sample, strategy) pair.
type ResultRecord struct {
	URL               string   `json:"url" yaml:"url"`
	LatencyMS         int64    `json:"latency_ms" yaml:"latency_ms"`
	TokensInput       int      `json:"tokens_input" yaml:"tokens_input"`
	TokensOutput      int      `json:"tokens_output" yaml:"tokens_output"`
	CostUSD           float64  `json:"cost_usd" yaml:"cost_usd"`
	CharCount         int      `json:"char_count" yaml:"char_count"`
	JudgeStatus       Verdict  `json:"judge_status" yaml:"judge_status"`
	JudgeScore        float64  `json:"judge_score" yaml:"judge_score"`
	JudgeCritique     string   `json:"judge_critique" yaml:"judge_critique"`
	RougeLF1          float64  `json:"rouge_l_f1" yaml:"rouge_l_f1"`
	BertScoreF1       float64  `json:"bert_score_f1" yaml:"bert_score_f1"`
	QualityScore      float64  `json:"quality_score" yaml:"quality_score"`
	SummaryContent    string   `json:"summary_content" yaml:"summary_content"`
	BaselineSummary   string   `json:"baseline_summary" yaml:"baseline_summary"`
	BaselineCharCount int      `json:"baseline_char_count" yaml:"baseline_char_count"`
	Strategy          Strategy `json:"strategy" yaml:"strategy"`
	Refined           bool     `json:"refined" yaml:"refined"`
	SampleIndex       int      `json:"sample_index" yaml:"sample_index"`
}

// ResultColumns is the exported column order of a result table.
var ResultColumns = []string{
	"url", "latency_ms", "tokens_input", "tokens_output", "cost_usd", "char_count",
	"judge_status", "judge_score", "judge_critique",
	"rouge_l_f1", "bert_score_f1", "quality_score",
	"summary_content", "baseline_summary",
	"baseline_char_count",
}

// Values returns the record fields in ResultColumns order.
func (r ResultRecord) Values() []any {
	return []any{
		r.URL, r.LatencyMS, r.TokensInput, r.TokensOutput, r.CostUSD, r.CharCount,
		string(r.JudgeStatus), r.JudgeScore, r.JudgeCritique,
		r.RougeLF1, r.BertScoreF1, r.QualityScore,
		r.SummaryContent, r.BaselineSummary,
		r.BaselineCharCount,
	}
}

// Row returns the record formatted as text cells in ResultColumns order.
func (r ResultRecord) Row() []string {
	return []string{
		r.URL,
		strconv.FormatInt(r.LatencyMS, 10),
		strconv.Itoa(r.TokensInput),
		strconv.Itoa(r.TokensOutput),
		formatFloat(r.CostUSD),
		strconv.Itoa(r.CharCount),
		string(r.JudgeStatus),
		formatFloat(r.JudgeScore),
		r.JudgeCritique,
		formatFloat(r.RougeLF1),
		formatFloat(r.BertScoreF1),
		formatFloat(r.QualityScore),
		r.SummaryContent,
		r.BaselineSummary,
		strconv.Itoa(r.BaselineCharCount),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
