package summbench

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/summbench/internal/errortypes"
	"github.com/localrivet/summbench/internal/llm"
)

func scriptedProvider() *llm.ScriptedProvider {
	p := llm.NewScriptedProvider("fake")
	p.Handler = func(req llm.Request) (*llm.Response, error) {
		switch req.Schema.Name {
		case "SummaryOutput":
			return &llm.Response{Text: `{"content":"Budget approved."}`, Usage: llm.Usage{InputTokens: 40, OutputTokens: 4}}, nil
		case "JudgeFeedback":
			return &llm.Response{Text: `{"status":"PASS","score_accuracy":0.9,"critique":""}`}, nil
		default:
			return &llm.Response{Text: `{"ok":true}`}, nil
		}
	}
	return p
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	dataset := filepath.Join(dir, "dataset.json")
	require.NoError(t, os.WriteFile(dataset, []byte(`{"data": [
  {"content": "The council approved the budget on Monday.", "url": "https://a", "summary": "Budget approved."}
]}`), 0o644))

	cfg := DefaultConfig()
	cfg.Benchmark.DatasetPath = dataset
	cfg.Benchmark.ResultsDir = filepath.Join(dir, "results")
	cfg.Store.SQLitePath = filepath.Join(dir, "summbench.db")
	cfg.Limits.MaxRPM = 0
	cfg.Limits.MaxTPM = 0
	cfg.Retry.MaxRetries = 0
	return cfg
}

func TestBenchmarkRun(t *testing.T) {
	b, err := New(Options{Config: testConfig(t), Provider: scriptedProvider()})
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	res, err := b.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)

	runs, err := b.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.Run.ID, runs[0].ID)

	fast, err := b.Results(ctx, res.Run.ID, StrategyFast)
	require.NoError(t, err)
	assert.Len(t, fast, 1)

	families, err := b.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestBenchmarkSummarizeSample(t *testing.T) {
	b, err := New(Options{Config: testConfig(t), Provider: scriptedProvider()})
	require.NoError(t, err)
	defer b.Close()

	rec, err := b.SummarizeSample(context.Background(), RawContent{
		URL:      "https://a",
		Text:     "The council approved the budget on Monday.",
		Metadata: map[string]string{"baseline_summary": "Budget approved."},
	}, StrategyFast)
	require.NoError(t, err)
	assert.Equal(t, "Budget approved.", rec.SummaryContent)
	assert.InDelta(t, 1.0, rec.RougeLF1, 1e-9)
}

func TestNewToolServer(t *testing.T) {
	b, err := New(Options{Config: testConfig(t), Provider: scriptedProvider()})
	require.NoError(t, err)
	defer b.Close()

	ts, err := b.NewToolServer(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, ts)
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Weights.RougeL = 0.9

	_, err := New(Options{Config: cfg, Provider: scriptedProvider()})
	require.Error(t, err)
	assert.True(t, errortypes.IsConfigError(err))
}

func TestCloseIsIdempotent(t *testing.T) {
	b, err := New(Options{Config: testConfig(t), Provider: scriptedProvider()})
	require.NoError(t, err)
	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}
