package vector

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder produces deterministic bag-of-words vectors without a model.
// Every lower-cased token is hashed with MD5 to a dimension and a sign, so
// texts sharing vocabulary point in similar directions.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a new HashEmbedder with the specified dimensions.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &HashEmbedder{
		dimensions: dimensions,
	}
}

// CreateEmbedding hashes the tokens of text into a unit vector. Text with
// no tokens yields the zero vector.
func (e *HashEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embedding := make([]float32, e.dimensions)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		hash := md5.Sum([]byte(tok))
		idx := binary.LittleEndian.Uint32(hash[:4]) % uint32(e.dimensions)
		if hash[4]&1 == 0 {
			embedding[idx]++
		} else {
			embedding[idx]--
		}
	}

	normalize(embedding)
	return embedding, nil
}

// normalize scales the embedding to unit length in place.
func normalize(embedding []float32) {
	var sumSquares float64
	for _, val := range embedding {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}

	magnitude := float32(math.Sqrt(sumSquares))
	for i := range embedding {
		embedding[i] /= magnitude
	}
}
