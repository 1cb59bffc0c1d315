package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"koo/internal/config"
	"koo/internal/modules/ai/domain/rag"

	einoEmbedding "github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
	dim   int
}

func (c *countingEmbedder) Dim() int { return c.dim }

func (c *countingEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	c.calls++
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0, 1}
	}
	return out, nil
}

type fixedEino struct {
	out [][]float64
	err error
}

func (f fixedEino) EmbedStrings(context.Context, []string, ...einoEmbedding.Option) ([][]float64, error) {
	return f.out, f.err
}

func TestMockEmbedderDeterministic(t *testing.T) {
	m := NewMockEmbedder(32)
	a, err := m.EmbedStrings(context.Background(), []string{"Vector search with Milvus", "vector SEARCH with milvus"})
	require.NoError(t, err)
	assert.Equal(t, a[0], a[1])
	assert.Len(t, a[0], 32)

	empty, _ := m.EmbedStrings(context.Background(), []string{"   "})
	assert.Equal(t, 1.0, empty[0][0])
}

func TestAdapterValidates(t *testing.T) {
	ctx := context.Background()

	ok := NewAdapter(fixedEino{out: [][]float64{{1, 2}, {3, 4}}}, EmbedderMeta{Dim: 2})
	vecs, err := ok.EmbedDocuments(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2}, {3, 4}}, vecs)

	short := NewAdapter(fixedEino{out: [][]float64{{1, 2}}}, EmbedderMeta{Dim: 2})
	_, err = short.EmbedDocuments(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, rag.ErrValidation)

	wrongDim := NewAdapter(fixedEino{out: [][]float64{{1, 2, 3}}}, EmbedderMeta{Dim: 2})
	_, err = wrongDim.EmbedQuery(ctx, "a")
	assert.ErrorIs(t, err, rag.ErrValidation)

	boom := errors.New("boom")
	failing := NewAdapter(fixedEino{err: boom}, EmbedderMeta{Dim: 2})
	_, err = failing.EmbedQuery(ctx, "a")
	assert.ErrorIs(t, err, boom)

	none, err := ok.EmbedDocuments(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWrapLRU(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{dim: 2}
	e := WrapLRU(inner, "m", 8, time.Minute)

	v1, err := e.EmbedQuery(ctx, "hello")
	require.NoError(t, err)
	v1[0] = 999 // 调用方修改不影响缓存
	v2, err := e.EmbedQuery(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, float32(5), v2[0])
	assert.Equal(t, 1, inner.calls)

	_, _ = e.EmbedDocuments(ctx, []string{"a"})
	_, _ = e.EmbedDocuments(ctx, []string{"a"})
	assert.Equal(t, 3, inner.calls)

	assert.Same(t, inner, WrapLRU(inner, "m", 0, time.Minute))
}

func TestVectorCodec(t *testing.T) {
	v := []float32{0.25, -1.5, 3}
	got, ok := decodeVector(encodeVector(v))
	require.True(t, ok)
	assert.Equal(t, v, got)

	_, ok = decodeVector([]byte{1, 2, 3})
	assert.False(t, ok)
}

func TestNewEmbedderFromConfig(t *testing.T) {
	ctx := context.Background()
	conf := config.Default()
	conf.AIConfig.Embedding.Provider = "mock"
	conf.VectorConfig.Dim = 16

	em, meta, err := NewEmbedderFromConfig(ctx, conf)
	require.NoError(t, err)
	assert.Equal(t, 16, meta.Dim)
	assert.IsType(t, &MockEmbedder{}, em)

	conf.AIConfig.Embedding.Provider = "word2vec"
	_, _, err = NewEmbedderFromConfig(ctx, conf)
	assert.ErrorIs(t, err, rag.ErrValidation)

	conf.AIConfig.Embedding.Provider = "ollama"
	conf.AIConfig.Embedding.Model = ""
	_, _, err = NewEmbedderFromConfig(ctx, conf)
	assert.ErrorIs(t, err, rag.ErrValidation)

	assert.Equal(t, "http://localhost:11434/v1", OllamaOpenAIBaseURL(""))
	assert.Equal(t, "http://gpu:11434/v1", OllamaOpenAIBaseURL("http://gpu:11434/"))
	assert.Equal(t, "http://gpu:11434/v1", OllamaOpenAIBaseURL("http://gpu:11434/v1"))
}
