package resultstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/summbench/internal/schema"
	"github.com/localrivet/summbench/internal/vector"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "db", "results.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	started := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	older := Run{ID: "r1", StartedAt: started.Add(-time.Hour), Status: StatusCompleted}
	run := Run{
		ID:         "r2",
		StartedAt:  started,
		Status:     StatusRunning,
		Model:      "gemini-2.0-flash",
		Dataset:    "data/dataset.json",
		Strategies: []schema.Strategy{schema.StrategyFast, schema.StrategyAdvanced},
	}
	require.NoError(t, store.SaveRun(ctx, older))
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, run, *got)
	assert.True(t, got.FinishedAt.IsZero())

	run.Status = StatusCompleted
	run.FinishedAt = started.Add(time.Minute)
	run.Samples, run.Records = 3, 5
	require.NoError(t, store.SaveRun(ctx, run))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)
	assert.Equal(t, 5, runs[0].Records)
	assert.Equal(t, run.FinishedAt, runs[0].FinishedAt)

	runs, err = store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	_, err = store.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRecords(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	fast := schema.ResultRecord{
		URL: "https://example.com/a", SampleIndex: 1, Strategy: schema.StrategyFast,
		LatencyMS: 812, TokensInput: 1200, TokensOutput: 210, CostUSD: 0.000204, CharCount: 640,
		JudgeStatus: schema.VerdictPass, JudgeScore: 0.95, RougeLF1: 0.231, BertScoreF1: -1,
		QualityScore: 6.4, SummaryContent: "Résumé", BaselineSummary: "ref", BaselineCharCount: 3,
	}
	adv := fast
	adv.Strategy = schema.StrategyAdvanced
	adv.Refined = true
	adv.JudgeStatus = schema.VerdictFail
	adv.JudgeCritique = "too long"
	first := fast
	first.SampleIndex = 0

	for _, rec := range []schema.ResultRecord{adv, fast, first} {
		require.NoError(t, store.SaveRecord(ctx, "run", rec))
	}
	require.NoError(t, store.SaveRecord(ctx, "other", fast))

	all, err := store.ListRecords(ctx, "run", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, first, all[0])
	assert.Equal(t, adv, all[1])
	assert.Equal(t, fast, all[2])

	onlyFast, err := store.ListRecords(ctx, "run", schema.StrategyFast)
	require.NoError(t, err)
	assert.Len(t, onlyFast, 2)

	// Saving the same key replaces the record.
	fast.QualityScore = 9
	require.NoError(t, store.SaveRecord(ctx, "run", fast))
	all, err = store.ListRecords(ctx, "run", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, 9.0, all[2].QualityScore)
}

func TestEmbeddingStore(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, ok, err := store.GetEmbedding(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.PutEmbedding(ctx, "k", []float32{0.5, -1, 2}))
	got, ok, err := store.GetEmbedding(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float32{0.5, -1, 2}, got)
}

func TestEmbeddingStoreBacksCache(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	var calls int
	base := vector.EmbedderFunc(func(context.Context, string) ([]float32, error) {
		calls++
		return []float32{1, 2}, nil
	})

	first, err := vector.NewCachedEmbedder(base, 8)
	require.NoError(t, err)
	_, err = first.WithStore(store).CreateEmbedding(ctx, "hello")
	require.NoError(t, err)

	second, err := vector.NewCachedEmbedder(base, 8)
	require.NoError(t, err)
	v, err := second.WithStore(store).CreateEmbedding(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, []float32{1, 2}, v)
	assert.Equal(t, 1, calls)
}

func TestClosedStore(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "x.db"), nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	err = store.SaveRun(context.Background(), Run{ID: "r"})
	assert.Error(t, err)
}

func TestCancelledContext(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.ListRuns(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
