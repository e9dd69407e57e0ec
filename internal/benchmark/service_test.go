package benchmark

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/summbench/internal/config"
	"github.com/localrivet/summbench/internal/export"
	"github.com/localrivet/summbench/internal/llm"
	"github.com/localrivet/summbench/internal/resultstore"
	"github.com/localrivet/summbench/internal/schema"
)

const testDataset = `{"data": [
  {"markdown_content": "The council approved the new budget on Monday.", "url": "https://a", "title": "A", "summary": "The council approved the budget."},
  {"content": "<p>Rain is expected all week.</p>", "url": "https://b", "summary": "Rain all week."},
  {"content": "No reference for this one.", "url": "https://c"}
]}`

func handler(req llm.Request) (*llm.Response, error) {
	switch req.Schema.Name {
	case "SummaryOutput":
		return &llm.Response{Text: `{"content":"The council approved the budget."}`, Usage: llm.Usage{InputTokens: 100, OutputTokens: 10}}, nil
	case "JudgeFeedback":
		return &llm.Response{Text: `{"status":"PASS","score_accuracy":0.8,"critique":""}`, Usage: llm.Usage{InputTokens: 50, OutputTokens: 5}}, nil
	default:
		return &llm.Response{Text: `{"ok":true}`}, nil
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte(testDataset), 0o644))

	cfg := *config.NewConfig()
	cfg.Benchmark.DatasetPath = path
	cfg.Benchmark.ResultsDir = filepath.Join(dir, "results")
	cfg.Store.SQLitePath = filepath.Join(dir, "results", "summbench.db")
	cfg.Limits.MaxRPM = 0
	cfg.Limits.MaxTPM = 0
	cfg.Retry.MaxRetries = 0
	cfg.Retry.BaseDelayMS = 1
	return cfg
}

func newTestService(t *testing.T, cfg config.Config, p llm.Provider) *Service {
	t.Helper()
	svc, err := New(Options{Config: cfg, Provider: p, Registry: prometheus.NewRegistry()})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func scripted() *llm.ScriptedProvider {
	p := llm.NewScriptedProvider("fake")
	p.Handler = handler
	return p
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	svc := newTestService(t, cfg, scripted())
	svc.newID = func() string { return "run-1" }

	res, err := svc.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Len(t, res.Records, 6)
	assert.Equal(t, resultstore.StatusCompleted, res.Run.Status)
	assert.Equal(t, 3, res.Run.Samples)
	assert.FileExists(t, filepath.Join(cfg.Benchmark.ResultsDir, "results_fast.csv"))
	assert.FileExists(t, filepath.Join(cfg.Benchmark.ResultsDir, "results_advanced.csv"))
	assert.FileExists(t, filepath.Join(cfg.Benchmark.ResultsDir, export.WorkbookFile))
	assert.FileExists(t, filepath.Join(cfg.Benchmark.ResultsDir, export.ReportFile))

	for _, rec := range res.Records {
		assert.GreaterOrEqual(t, rec.QualityScore, 1.0)
		assert.LessOrEqual(t, rec.QualityScore, 10.0)
		if rec.URL == "https://c" {
			assert.Zero(t, rec.RougeLF1)
			assert.Zero(t, rec.BertScoreF1)
		}
		if rec.URL == "https://a" {
			assert.Equal(t, 1.0, rec.RougeLF1)
		}
		if rec.Strategy == schema.StrategyFast {
			assert.Equal(t, 0.95, rec.JudgeScore)
		} else {
			assert.Equal(t, 0.8, rec.JudgeScore)
		}
	}

	run, err := svc.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, resultstore.StatusCompleted, run.Status)
	assert.Equal(t, 6, run.Records)

	stored, err := svc.Results(context.Background(), "run-1", schema.StrategyAdvanced)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	runs, err := svc.Runs(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	assert.Equal(t, int64(3), svc.Metrics().Collector().GetCounter("samples.completed"))
}

func TestRunOverrides(t *testing.T) {
	cfg := testConfig(t)
	svc := newTestService(t, cfg, scripted())

	out := filepath.Join(t.TempDir(), "other")
	res, err := svc.Run(context.Background(), RunOptions{
		Limit:      1,
		ResultsDir: out,
		Strategies: []schema.Strategy{schema.StrategyFast},
	})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, schema.StrategyFast, res.Records[0].Strategy)
	assert.FileExists(t, filepath.Join(out, "results_fast.csv"))
	assert.NoFileExists(t, filepath.Join(out, "results_advanced.csv"))
}

func TestRunMissingDataset(t *testing.T) {
	cfg := testConfig(t)
	cfg.Benchmark.DatasetPath = filepath.Join(t.TempDir(), "missing.json")
	svc := newTestService(t, cfg, scripted())

	res, err := svc.Run(context.Background(), RunOptions{})
	require.Error(t, err)
	assert.Equal(t, resultstore.StatusFailed, res.Run.Status)
	assert.Empty(t, res.Records)
	assert.FileExists(t, res.Paths.Workbook)
}

func TestRunCancelled(t *testing.T) {
	cfg := testConfig(t)
	svc := newTestService(t, cfg, scripted())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := svc.Run(ctx, RunOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, resultstore.StatusCancelled, res.Run.Status)

	run, err := svc.GetRun(context.Background(), res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, resultstore.StatusCancelled, run.Status)
}

func TestRunInProgress(t *testing.T) {
	cfg := testConfig(t)
	p := scripted()
	p.Delay = 100 * time.Millisecond
	svc := newTestService(t, cfg, p)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Run(context.Background(), RunOptions{Limit: 1, Strategies: []schema.Strategy{schema.StrategyFast}})
		done <- err
	}()
	require.Eventually(t, svc.Running, time.Second, 5*time.Millisecond)

	_, err := svc.Run(context.Background(), RunOptions{})
	assert.ErrorIs(t, err, ErrRunInProgress)
	require.NoError(t, <-done)
	assert.False(t, svc.Running())
}

func TestSummarizeSample(t *testing.T) {
	svc := newTestService(t, testConfig(t), scripted())

	rec, err := svc.SummarizeSample(context.Background(), schema.RawContent{
		Text:     "The council approved the new budget.",
		Metadata: map[string]string{schema.MetaBaselineSummary: "The council approved the budget."},
	}, schema.StrategyAdvanced)
	require.NoError(t, err)
	assert.Equal(t, schema.VerdictPass, rec.JudgeStatus)
	assert.Equal(t, 150, rec.TokensInput)

	_, err = svc.SummarizeSample(context.Background(), schema.RawContent{}, schema.StrategyFast)
	assert.Error(t, err)
}

func TestWithoutPersistence(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.SQLitePath = ""
	svc := newTestService(t, cfg, scripted())
	assert.Nil(t, svc.Store())

	_, err := svc.Runs(context.Background(), 0)
	assert.True(t, errors.Is(err, ErrNoStore))
	_, err = svc.Results(context.Background(), "x", "")
	assert.True(t, errors.Is(err, ErrNoStore))

	res, err := svc.Run(context.Background(), RunOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
}

func TestResultsUnknownRun(t *testing.T) {
	svc := newTestService(t, testConfig(t), scripted())
	_, err := svc.Results(context.Background(), "nope", "")
	assert.ErrorIs(t, err, resultstore.ErrNotFound)
}

func TestHealth(t *testing.T) {
	svc := newTestService(t, testConfig(t), scripted())
	report := svc.Health(context.Background())
	assert.Equal(t, llm.StatusHealthy, report.Status)

	failing := llm.NewScriptedProvider("down")
	svc = newTestService(t, testConfig(t), failing)
	report = svc.Health(context.Background())
	assert.Equal(t, llm.StatusUnhealthy, report.Status)
	assert.Contains(t, report.Errors, "down")
}

func TestNewRequiresAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Model.APIKey = ""
	_, err := New(Options{Config: cfg})
	require.Error(t, err)
}
