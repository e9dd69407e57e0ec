package scoring

import (
	"context"
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
)

// Rouge computes the ROUGE-L F-measure over stemmed, lower-cased tokens.
type Rouge struct {
	// Stem enables English Snowball stemming of tokens.
	Stem bool
}

// NewRouge creates a ROUGE-L scorer with stemming enabled.
func NewRouge() *Rouge {
	return &Rouge{Stem: true}
}

// Score returns the ROUGE-L F-measure of candidate against reference.
func (r *Rouge) Score(_ context.Context, reference, candidate string) (float64, error) {
	ref := r.tokenize(reference)
	cand := r.tokenize(candidate)
	if len(ref) == 0 || len(cand) == 0 {
		return 0, nil
	}

	lcs := lcsLength(ref, cand)
	if lcs == 0 {
		return 0, nil
	}
	return f1(float64(lcs)/float64(len(cand)), float64(lcs)/float64(len(ref))), nil
}

func (r *Rouge) tokenize(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})
	if !r.Stem {
		return tokens
	}
	for i, tok := range tokens {
		if stemmed, err := snowball.Stem(tok, "english", true); err == nil && stemmed != "" {
			tokens[i] = stemmed
		}
	}
	return tokens
}

// lcsLength returns the length of the longest common subsequence of a and b
// using two rolling rows.
func lcsLength(a, b []string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
