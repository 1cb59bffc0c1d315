package vectordb

import (
	"context"
	"math"
	"sort"
	"sync"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/domain/repository"
)

type memoryEntry struct {
	vector     []float32
	sourceType rag.SourceType
}

// MemoryIndex 进程内暴力检索的向量索引，余弦相似度，供单测与 mock 模式使用
type MemoryIndex struct {
	mu      sync.RWMutex
	dim     int
	entries map[rag.Domain]map[int64]memoryEntry
}

var _ repository.VectorIndex = (*MemoryIndex)(nil)

// NewMemoryIndex dim<=0 时不校验维度
func NewMemoryIndex(dim int) *MemoryIndex {
	return &MemoryIndex{dim: dim, entries: map[rag.Domain]map[int64]memoryEntry{}}
}

func (m *MemoryIndex) Metric() rag.ScoreMetric { return rag.MetricSimilarity }

func (m *MemoryIndex) Upsert(_ context.Context, domain rag.Domain, sourceType rag.SourceType, entries []repository.VectorEntry) error {
	for _, e := range entries {
		if m.dim > 0 && len(e.Vector) != m.dim {
			return rag.Validationf("vector dim mismatch for chunk_id=%d, got=%d want=%d", e.ChunkID, len(e.Vector), m.dim)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	part, ok := m.entries[domain]
	if !ok {
		part = map[int64]memoryEntry{}
		m.entries[domain] = part
	}
	for _, e := range entries {
		part[e.ChunkID] = memoryEntry{vector: append([]float32(nil), e.Vector...), sourceType: sourceType}
	}
	return nil
}

func (m *MemoryIndex) DeleteByChunkIDs(_ context.Context, domain rag.Domain, chunkIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range chunkIDs {
		delete(m.entries[domain], id)
	}
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, domain rag.Domain, vector []float32, topK int, filter repository.SearchFilter) ([]rag.SearchResult, error) {
	if topK <= 0 {
		return []rag.SearchResult{}, nil
	}
	if m.dim > 0 && len(vector) != m.dim {
		return nil, rag.Validationf("query vector dim mismatch, got=%d want=%d", len(vector), m.dim)
	}
	allowed := map[rag.SourceType]bool{}
	for _, st := range filter.SourceTypes {
		allowed[st] = true
	}

	m.mu.RLock()
	out := make([]rag.SearchResult, 0, len(m.entries[domain]))
	for id, e := range m.entries[domain] {
		if len(allowed) > 0 && !allowed[e.sourceType] {
			continue
		}
		out = append(out, rag.SearchResult{ChunkID: id, Score: cosine(vector, e.vector)})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// Len 某个 domain 下的条目数
func (m *MemoryIndex) Len(domain rag.Domain) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries[domain])
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
