package vector

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloat32SliceRoundTrip(t *testing.T) {
	for _, input := range [][]float32{{}, {1.0}, {-1.0, 0.0, 1.0, 3.14, -2.718}} {
		blob, err := Float32SliceToBytes(input)
		require.NoError(t, err)
		assert.Len(t, blob, 4+4*len(input))

		floats, err := BytesToFloat32Slice(blob)
		require.NoError(t, err)
		assert.Equal(t, input, floats)
	}

	_, err := BytesToFloat32Slice([]byte{1})
	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
		wantErr  bool
	}{
		{"identical vectors", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0, false},
		{"orthogonal vectors", []float32{1, 0, 0}, []float32{0, 1, 0}, 0.0, false},
		{"opposite vectors", []float32{1, 2, 3}, []float32{-1, -2, -3}, -1.0, false},
		{"different length vectors", []float32{1, 2, 3}, []float32{1, 2}, 0, true},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 2, 3}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			similarity, err := CosineSimilarity(tt.a, tt.b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, similarity, 1e-9)
		})
	}
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(128)
	ctx := context.Background()

	v1, err := e.CreateEmbedding(ctx, "The cat sat on the mat.")
	require.NoError(t, err)
	require.Len(t, v1, 128)

	var sumSquares float64
	for _, x := range v1 {
		sumSquares += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-5)

	again, err := e.CreateEmbedding(ctx, "the CAT sat on the mat")
	require.NoError(t, err)
	assert.Equal(t, v1, again, "case and punctuation must not matter")

	related, _ := e.CreateEmbedding(ctx, "The cat sat on the rug.")
	unrelated, _ := e.CreateEmbedding(ctx, "Quarterly revenue grew by nine percent.")
	simRelated, err := CosineSimilarity(v1, related)
	require.NoError(t, err)
	simUnrelated, err := CosineSimilarity(v1, unrelated)
	require.NoError(t, err)
	assert.Greater(t, simRelated, simUnrelated)

	empty, err := e.CreateEmbedding(ctx, "  ...  ")
	require.NoError(t, err)
	_, err = CosineSimilarity(empty, v1)
	assert.ErrorIs(t, err, ErrZeroVector)
}

type memoryStore struct {
	data map[string][]float32
	puts int
}

func (m *memoryStore) GetEmbedding(_ context.Context, key string) ([]float32, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryStore) PutEmbedding(_ context.Context, key string, v []float32) error {
	m.data[key] = v
	m.puts++
	return nil
}

func TestCachedEmbedder(t *testing.T) {
	var calls atomic.Int32
	base := EmbedderFunc(func(ctx context.Context, text string) ([]float32, error) {
		calls.Add(1)
		return []float32{float32(len(text)), 1}, nil
	})

	var hits, misses int
	store := &memoryStore{data: map[string][]float32{}}
	c, err := NewCachedEmbedder(base, 2)
	require.NoError(t, err)
	c.WithStore(store).OnLookup(func() { hits++ }, func() { misses++ })

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		v, err := c.CreateEmbedding(ctx, "reference")
		require.NoError(t, err)
		assert.Equal(t, []float32{9, 1}, v)
	}
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 2, hits)
	assert.Equal(t, 1, misses)
	assert.Equal(t, 1, store.puts)

	// A fresh cache backed by the same store does not call the base embedder.
	fresh, err := NewCachedEmbedder(base, 2)
	require.NoError(t, err)
	fresh.WithStore(store)
	_, err = fresh.CreateEmbedding(ctx, "reference")
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 1, fresh.Len())
}

func TestCachedEmbedderPropagatesErrors(t *testing.T) {
	boom := errors.New("embedding backend down")
	c, err := NewCachedEmbedder(EmbedderFunc(func(context.Context, string) ([]float32, error) {
		return nil, boom
	}), 0)
	require.NoError(t, err)

	_, err = c.CreateEmbedding(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len())
}

func TestNewFromConfig(t *testing.T) {
	c, err := New(Config{Provider: ProviderHash, Dimensions: 32})
	require.NoError(t, err)
	v, err := c.CreateEmbedding(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Len(t, v, 32)

	_, err = New(Config{Provider: ProviderOpenAI})
	assert.Error(t, err)

	_, err = New(Config{Provider: "word2vec"})
	assert.Error(t, err)

	_, err = New(Config{Provider: ProviderOllama})
	assert.NoError(t, err)
}
