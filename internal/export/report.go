package export

import (
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/localrivet/summbench/internal/quality"
	"github.com/localrivet/summbench/internal/schema"
	"github.com/localrivet/summbench/internal/scoring"
)

// Report is the aggregate summary of a run.
type Report struct {
	RunID       string           `yaml:"run_id,omitempty"`
	GeneratedAt time.Time        `yaml:"generated_at"`
	Records     int              `yaml:"records"`
	Samples     int              `yaml:"samples"`
	Strategies  []StrategyReport `yaml:"strategies"`
}

// StrategyReport aggregates the records of one strategy.
type StrategyReport struct {
	Strategy      schema.Strategy `yaml:"strategy"`
	Count         int             `yaml:"count"`
	PassRate      float64         `yaml:"pass_rate"`
	Refinements   int             `yaml:"refinements"`
	MeanQuality   float64         `yaml:"mean_quality"`
	MeanLatencyMS float64         `yaml:"mean_latency_ms"`
	P95LatencyMS  int64           `yaml:"p95_latency_ms"`
	MeanRougeL    float64         `yaml:"mean_rouge_l_f1"`
	MeanBertScore float64         `yaml:"mean_bert_score_f1"`
	BertFailures  int             `yaml:"bert_failures"`
	TotalCostUSD  float64         `yaml:"total_cost_usd"`
}

// BuildReport aggregates records per strategy. BERT failures are counted
// separately and left out of the BERT mean.
func BuildReport(runID string, strategies []schema.Strategy, records []schema.ResultRecord) *Report {
	groups := GroupByStrategy(records)
	samples := make(map[int]struct{})
	for _, rec := range records {
		samples[rec.SampleIndex] = struct{}{}
	}

	report := &Report{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Records:     len(records),
		Samples:     len(samples),
	}
	for _, strategy := range strategies {
		report.Strategies = append(report.Strategies, aggregate(strategy, groups[strategy]))
	}
	return report
}

func aggregate(strategy schema.Strategy, records []schema.ResultRecord) StrategyReport {
	sr := StrategyReport{Strategy: strategy, Count: len(records)}
	if len(records) == 0 {
		return sr
	}

	var passed, bertN int
	var qualitySum, latencySum, rougeSum, bertSum, cost float64
	latencies := make([]int64, 0, len(records))
	for _, rec := range records {
		if rec.JudgeStatus == schema.VerdictPass {
			passed++
		}
		if rec.Refined {
			sr.Refinements++
		}
		qualitySum += rec.QualityScore
		latencySum += float64(rec.LatencyMS)
		latencies = append(latencies, rec.LatencyMS)
		rougeSum += rec.RougeLF1
		if rec.BertScoreF1 == scoring.BertFailure {
			sr.BertFailures++
		} else {
			bertSum += rec.BertScoreF1
			bertN++
		}
		cost += rec.CostUSD
	}

	n := float64(len(records))
	sr.PassRate = quality.Round(float64(passed)/n, 3)
	sr.MeanQuality = quality.Round(qualitySum/n, 2)
	sr.MeanLatencyMS = quality.Round(latencySum/n, 1)
	sr.P95LatencyMS = p95(latencies)
	sr.MeanRougeL = quality.Round(rougeSum/n, 3)
	if bertN > 0 {
		sr.MeanBertScore = quality.Round(bertSum/float64(bertN), 3)
	}
	sr.TotalCostUSD = quality.Round(cost, 6)
	return sr
}

// p95 uses the nearest-rank method.
func p95(values []int64) int64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]int64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	rank := int(math.Ceil(0.95 * float64(len(sorted))))
	return sorted[rank-1]
}

// WriteReport marshals the report as YAML to path.
func WriteReport(path string, report *Report) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var report Report
	if err := yaml.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &report, nil
}
