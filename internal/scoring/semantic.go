package scoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/localrivet/summbench/internal/vector"
)

// Semantic is a BERTScore-style F1: every candidate sentence is greedily
// matched to its most similar reference sentence (precision) and vice versa
// (recall) by embedding cosine similarity.
type Semantic struct {
	embedder vector.Embedder
}

// NewSemantic creates a semantic scorer over embedder.
func NewSemantic(embedder vector.Embedder) *Semantic {
	return &Semantic{embedder: embedder}
}

// Score returns the greedy-matching F1 of candidate against reference.
func (s *Semantic) Score(ctx context.Context, reference, candidate string) (float64, error) {
	refVecs, err := s.embedAll(ctx, Sentences(reference))
	if err != nil {
		return 0, fmt.Errorf("embedding reference: %w", err)
	}
	candVecs, err := s.embedAll(ctx, Sentences(candidate))
	if err != nil {
		return 0, fmt.Errorf("embedding candidate: %w", err)
	}
	if len(refVecs) == 0 || len(candVecs) == 0 {
		return 0, nil
	}

	precision, err := greedyMatch(candVecs, refVecs)
	if err != nil {
		return 0, err
	}
	recall, err := greedyMatch(refVecs, candVecs)
	if err != nil {
		return 0, err
	}
	return f1(precision, recall), nil
}

func (s *Semantic) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := s.embedder.CreateEmbedding(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// greedyMatch averages, over from, the best similarity found in to.
func greedyMatch(from, to [][]float32) (float64, error) {
	var total float64
	for _, a := range from {
		best := 0.0
		for _, b := range to {
			sim, err := vector.CosineSimilarity(a, b)
			if errors.Is(err, vector.ErrZeroVector) {
				continue
			}
			if err != nil {
				return 0, err
			}
			best = max(best, sim)
		}
		total += best
	}
	return total / float64(len(from)), nil
}

// Sentences splits text at line breaks, at full-width sentence punctuation
// and at ASCII sentence punctuation followed by a space. Blank pieces are
// dropped.
func Sentences(text string) []string {
	var out []string
	var cur strings.Builder
	runes := []rune(text)

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		cur.WriteRune(r)
		if isSentenceEnd(r) && (r > unicode.MaxASCII || i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			flush()
		}
	}
	flush()
	return out
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}
