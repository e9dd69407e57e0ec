package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/summbench/internal/vector"
)

type stubScorer struct {
	value float64
	err   error
	calls int
}

func (s *stubScorer) Score(context.Context, string, string) (float64, error) {
	s.calls++
	return s.value, s.err
}

func TestRougeIdentical(t *testing.T) {
	score, err := NewRouge().Score(context.Background(), "The cat sat on the mat.", "the cat sat on the mat")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestRougeKnownValue(t *testing.T) {
	// LCS("police killed the gunman", "police kill the gunman") with stemming is 4 of 4.
	r := NewRouge()
	score, err := r.Score(context.Background(), "police killed the gunman", "police kill the gunman")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)

	// Without stemming: LCS = 3, P = 3/4, R = 3/4.
	r.Stem = false
	score, err = r.Score(context.Background(), "police killed the gunman", "police kill the gunman")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, score, 1e-9)

	// LCS("a b c d e", "a x c y") = 2, P = 2/4, R = 2/5.
	score, err = r.Score(context.Background(), "a b c d e", "a x c y")
	require.NoError(t, err)
	assert.InDelta(t, 2*0.5*0.4/0.9, score, 1e-9)
}

func TestRougeEmpty(t *testing.T) {
	score, err := NewRouge().Score(context.Background(), "", "something")
	require.NoError(t, err)
	assert.Zero(t, score)

	score, err = NewRouge().Score(context.Background(), "one two", "three four")
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestSentences(t *testing.T) {
	assert.Equal(t, []string{"First one.", "Second one!", "Version 2.5 is out?"},
		Sentences("First one. Second one! Version 2.5 is out?"))
	assert.Equal(t, []string{"Line a", "Line b."}, Sentences("Line a\n\nLine b."))
	assert.Equal(t, []string{"第一句。", "第二句。"}, Sentences("第一句。第二句。"))
	assert.Empty(t, Sentences("   \n "))
}

func TestSemanticIdentical(t *testing.T) {
	s := NewSemantic(vector.NewHashEmbedder(256))
	text := "The committee approved the budget. Funding for schools rises next year."

	score, err := s.Score(context.Background(), text, text)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-6)
}

func TestSemanticOrdersBySimilarity(t *testing.T) {
	s := NewSemantic(vector.NewHashEmbedder(256))
	ref := "The committee approved the budget. Funding for schools rises next year."

	near, err := s.Score(context.Background(), ref, "The committee approved a budget. School funding rises next year.")
	require.NoError(t, err)
	far, err := s.Score(context.Background(), ref, "A storm hit the coast overnight.")
	require.NoError(t, err)

	assert.Greater(t, near, far)
	assert.LessOrEqual(t, near, 1.0)
	assert.GreaterOrEqual(t, far, 0.0)
}

func TestSemanticEmbedderError(t *testing.T) {
	boom := errors.New("embedding service unavailable")
	s := NewSemantic(vector.EmbedderFunc(func(context.Context, string) ([]float32, error) {
		return nil, boom
	}))

	_, err := s.Score(context.Background(), "a.", "b.")
	assert.ErrorIs(t, err, boom)
}

func TestSuiteEmptyReference(t *testing.T) {
	lex, sem := &stubScorer{value: 0.9}, &stubScorer{value: 0.9}
	res := Suite{Lexical: lex, Semantic: sem}.Evaluate(context.Background(), "", "candidate")

	assert.Equal(t, Result{}, res)
	assert.Zero(t, lex.calls)
	assert.Zero(t, sem.calls)
}

func TestSuiteWhitespaceReferenceIsScored(t *testing.T) {
	lex, sem := &stubScorer{value: 0.2}, &stubScorer{value: 0.7}
	res := Suite{Lexical: lex, Semantic: sem}.Evaluate(context.Background(), "  \n", "candidate")

	assert.Equal(t, Result{RougeL: 0.2, Bert: 0.7}, res)
	assert.Equal(t, 1, lex.calls)
	assert.Equal(t, 1, sem.calls)
}

func TestSuiteSemanticFailure(t *testing.T) {
	lex := &stubScorer{value: 0.42}
	sem := &stubScorer{err: errors.New("model unavailable")}

	res := Suite{Lexical: lex, Semantic: sem}.Evaluate(context.Background(), "reference", "candidate")
	assert.Equal(t, 0.42, res.RougeL)
	assert.Equal(t, BertFailure, res.Bert)
}

func TestSuiteSuccess(t *testing.T) {
	res := Suite{Lexical: &stubScorer{value: 0.3}, Semantic: &stubScorer{value: 0.88}}.
		Evaluate(context.Background(), "reference", "candidate")
	assert.Equal(t, Result{RougeL: 0.3, Bert: 0.88}, res)
}
