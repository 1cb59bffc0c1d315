package repository

import (
	"context"

	"koo/internal/modules/ai/domain/rag"
)

// VectorEntry 一条待写入的向量
type VectorEntry struct {
	ChunkID int64
	Vector  []float32
}

// SearchFilter 检索过滤条件，零值表示不过滤
type SearchFilter struct {
	SourceTypes []rag.SourceType
}

// IsZero 是否无过滤
func (f SearchFilter) IsZero() bool { return len(f.SourceTypes) == 0 }

// VectorIndex 按 domain 分区的向量索引。
//
// Upsert 对每个 chunk id 先删后插；Search 返回原始分数，分数含义由 Metric 声明。
type VectorIndex interface {
	Metric() rag.ScoreMetric
	Upsert(ctx context.Context, domain rag.Domain, sourceType rag.SourceType, entries []VectorEntry) error
	DeleteByChunkIDs(ctx context.Context, domain rag.Domain, chunkIDs []int64) error
	Search(ctx context.Context, domain rag.Domain, vector []float32, topK int, filter SearchFilter) ([]rag.SearchResult, error)
}
