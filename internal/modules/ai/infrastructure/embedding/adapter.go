package embedding

import (
	"context"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/domain/repository"

	"github.com/cloudwego/eino/components/embedding"
)

// Adapter 将 eino Embedder 适配为领域层的 Embedder，并校验数量与维度
type Adapter struct {
	inner embedding.Embedder
	meta  EmbedderMeta
}

var _ repository.Embedder = (*Adapter)(nil)

func NewAdapter(inner embedding.Embedder, meta EmbedderMeta) *Adapter {
	return &Adapter{inner: inner, meta: meta}
}

func (a *Adapter) Dim() int { return a.meta.Dim }

// Model 模型名，缓存键使用
func (a *Adapter) Model() string { return a.meta.Provider + ":" + a.meta.Model }

func (a *Adapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := a.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedDocuments 整批一次调用
func (a *Adapter) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	raw, err := a.inner.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(raw) != len(texts) {
		return nil, rag.Validationf("embedding returned %d vectors for %d texts", len(raw), len(texts))
	}
	out := make([][]float32, len(raw))
	for i, v := range raw {
		if a.meta.Dim > 0 && len(v) != a.meta.Dim {
			return nil, rag.Validationf("embedding dim mismatch at %d, got=%d want=%d", i, len(v), a.meta.Dim)
		}
		out[i] = toFloat32(v)
	}
	return out, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i := range v {
		out[i] = float32(v[i])
	}
	return out
}
