package summarizer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/summbench/internal/config"
	"github.com/localrivet/summbench/internal/invoker"
	"github.com/localrivet/summbench/internal/llm"
	"github.com/localrivet/summbench/internal/schema"
)

func newTestSummarizer(p llm.Provider) *AISummarizer {
	inv := invoker.New(p, invoker.Options{Retry: config.RetryConfig{MaxRetries: 0, BaseDelayMS: 1}})
	return NewAISummarizer(inv, nil)
}

func sample() schema.RawContent {
	return schema.RawContent{
		URL:  "https://example.com/a",
		Text: strings.Repeat("é", 9000),
		Metadata: map[string]string{
			schema.MetaTitle: "Example",
		},
	}
}

func TestNewAISummarizerDefaults(t *testing.T) {
	s := NewAISummarizer(nil, nil)
	assert.Equal(t, DefaultMaxContentChars, s.maxContentChars)
	assert.Equal(t, DefaultMaxSummaryLength, s.maxSummaryLength)

	s = NewAISummarizer(nil, &AISummarizerConfig{MaxContentChars: 100, MaxSummaryLength: 200})
	assert.Equal(t, 100, s.maxContentChars)
	assert.Equal(t, 200, s.maxSummaryLength)
}

func TestSummarizeMeasuresOutput(t *testing.T) {
	// The model claims wrong bookkeeping; it must be overwritten.
	p := llm.NewScriptedProvider("fake", llm.Reply(
		`{"content":"Résumé court","strategy":"advanced","char_count":999,"latency_ms":1}`, 100, 20))
	p.Delay = 20 * time.Millisecond
	s := newTestSummarizer(p)

	out, err := s.Summarize(context.Background(), sample(), schema.StrategyFast)
	require.NoError(t, err)

	assert.Equal(t, 12, out.CharCount)
	assert.Equal(t, schema.StrategyFast, out.Strategy)
	assert.GreaterOrEqual(t, out.LatencyMS, 20.0)
	assert.Equal(t, 100, out.TokensInput)
	assert.Equal(t, "unknown", out.Language)
}

func TestSummarizePrompt(t *testing.T) {
	p := llm.NewScriptedProvider("fake",
		llm.Reply(`{"content":"a"}`, 1, 1),
		llm.Reply(`{"content":"b"}`, 1, 1),
	)
	s := newTestSummarizer(p)

	_, err := s.Summarize(context.Background(), sample(), schema.StrategyFast)
	require.NoError(t, err)
	_, err = s.Summarize(context.Background(), schema.RawContent{Text: "short"}, schema.StrategyAdvanced)
	require.NoError(t, err)

	reqs := p.Requests()
	fast := reqs[0].Prompt
	assert.True(t, strings.HasPrefix(fast, "Strategy: FAST\nURL: https://example.com/a\nTitle: Example\n\nContent:\n"))
	assert.Equal(t, 8000, strings.Count(fast, "é"))
	assert.NotContains(t, fast, "chain-of-thought")
	assert.Equal(t, "SummaryOutput", reqs[0].Schema.Name)
	assert.NotEmpty(t, reqs[0].System)

	advanced := reqs[1].Prompt
	assert.Contains(t, advanced, "Strategy: ADVANCED")
	assert.Contains(t, advanced, "Title: N/A")
	assert.True(t, strings.HasSuffix(advanced, "Use your advanced chain-of-thought reasoning."))
}

func TestRefinePrompt(t *testing.T) {
	p := llm.NewScriptedProvider("fake", llm.Reply(`{"content":"better","language":"fr"}`, 50, 10))
	s := newTestSummarizer(p)

	feedback := &schema.JudgeFeedback{Status: schema.VerdictFail, ScoreAccuracy: 0.3, Critique: "Missing the date."}
	original := &schema.SummaryOutput{Content: "first draft", LatencyMS: 100, TokensInput: 10, TokensOutput: 5}

	out, err := s.Refine(context.Background(), sample(), schema.StrategyAdvanced, feedback, original)
	require.NoError(t, err)

	prompt := p.Requests()[0].Prompt
	assert.Contains(t, prompt, "Previous summary:\nfirst draft")
	assert.Contains(t, prompt, "CRITIQUE: Missing the date.")
	assert.Contains(t, prompt, "Stay under 1500 characters")
	assert.Contains(t, prompt, "language of the original content")
	assert.Equal(t, 8000, strings.Count(prompt, "é"))

	// Refine reports only its own cost.
	assert.Equal(t, 50, out.TokensInput)
	assert.Equal(t, 6, out.CharCount)
	assert.Equal(t, "fr", out.Language)
	assert.Equal(t, schema.StrategyAdvanced, out.Strategy)
}

func TestSummarizeError(t *testing.T) {
	p := llm.NewScriptedProvider("fake", llm.Fail(errors.New("401 unauthorized")))
	s := newTestSummarizer(p)

	out, err := s.Summarize(context.Background(), sample(), schema.StrategyFast)
	assert.Nil(t, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "draft summary (fast)")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "héllo", truncateRunes("héllo", 10))
	assert.Equal(t, "héllo", truncateRunes("héllo", 0))
	assert.Equal(t, "", truncateRunes("", 3))
}
