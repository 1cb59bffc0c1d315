package repository

import (
	"context"

	"koo/internal/modules/ai/domain/rag"
)

// UpsertOutcome 文档 upsert 的结果
type UpsertOutcome int

const (
	UpsertCreated UpsertOutcome = iota + 1
	UpsertUpdated
	UpsertUnchanged
)

func (o UpsertOutcome) String() string {
	switch o {
	case UpsertCreated:
		return "created"
	case UpsertUpdated:
		return "updated"
	case UpsertUnchanged:
		return "unchanged"
	}
	return "unknown"
}

// DocumentRepository 文档的持久化；读路径找不到时返回 (nil, nil)，已软删除的记录对读不可见
type DocumentRepository interface {
	Create(ctx context.Context, doc *rag.Document) error
	GetByID(ctx context.Context, id int64) (*rag.Document, error)
	GetBySource(ctx context.Context, sourceType rag.SourceType, sourceID string) (*rag.Document, error)
	// Update 按 id 覆盖可变字段，id 不存在返回 rag.ErrNotFound
	Update(ctx context.Context, doc *rag.Document) error
	// Upsert 以 (source_type, source_id) 为键：内容 hash 未变则不写，变化则 version+1
	Upsert(ctx context.Context, doc *rag.Document) (*rag.Document, UpsertOutcome, error)
	// SoftDelete 打墓碑，不删除行；id 不存在返回 rag.ErrNotFound
	SoftDelete(ctx context.Context, id int64) error
}

// ChunkRepository chunk 的持久化；所属文档已软删除的 chunk 对读不可见
type ChunkRepository interface {
	Create(ctx context.Context, chunk *rag.Chunk) error
	// BulkCreate 批量写入并回填 id
	BulkCreate(ctx context.Context, chunks []*rag.Chunk) error
	GetByID(ctx context.Context, id int64) (*rag.Chunk, error)
	// GetByIDs 批量读取，无法解析的 id 直接缺席
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*rag.Chunk, error)
	ListByDocument(ctx context.Context, documentID int64) ([]*rag.Chunk, error)
	// ListByContext 按 chunk_index 升序返回整个结构块
	ListByContext(ctx context.Context, documentID int64, contextID int) ([]*rag.Chunk, error)
	// DeleteByDocument 返回被删除的 chunk id
	DeleteByDocument(ctx context.Context, documentID int64) ([]int64, error)
	CountByDocument(ctx context.Context, documentID int64) (int, error)
}

// QueryLogRepository 查询日志的持久化
type QueryLogRepository interface {
	Create(ctx context.Context, log *rag.QueryLog) error
	GetByID(ctx context.Context, id int64) (*rag.QueryLog, error)
	// Update 只覆盖提供的字段，id 不存在返回 rag.ErrNotFound
	Update(ctx context.Context, id int64, update rag.QueryLogUpdate) (*rag.QueryLog, error)
	Delete(ctx context.Context, id int64) error
}
