package vectordb

import (
	"context"
	"fmt"
	"time"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/domain/repository"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChunkVector pgvector 表中的一行，(domain, chunk_id) 为主键
type ChunkVector struct {
	Domain     rag.Domain      `gorm:"column:domain;primaryKey"`
	ChunkID    int64           `gorm:"column:chunk_id;primaryKey;autoIncrement:false"`
	Embedding  pgvector.Vector `gorm:"column:embedding"`
	SourceType rag.SourceType  `gorm:"column:source_type"`
	UpdatedAt  int64           `gorm:"column:updated_at"`
}

func (ChunkVector) TableName() string { return "rag_chunk_vector" }

// PgVectorIndex 基于 PostgreSQL + pgvector 的向量索引，按余弦距离排序
type PgVectorIndex struct {
	db  *gorm.DB
	dim int
	now func() time.Time
}

var _ repository.VectorIndex = (*PgVectorIndex)(nil)

func NewPgVectorIndex(db *gorm.DB, dim int) (*PgVectorIndex, error) {
	if db == nil {
		return nil, rag.Validationf("gorm db is nil")
	}
	if dim <= 0 {
		return nil, rag.Validationf("invalid vector dim: %d", dim)
	}
	return &PgVectorIndex{db: db, dim: dim, now: time.Now}, nil
}

// EnsureSchema 创建扩展、表与 HNSW 索引。向量维度写在列类型里，因此不走 AutoMigrate
func (p *PgVectorIndex) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS rag_chunk_vector (
			domain VARCHAR(16) NOT NULL,
			chunk_id BIGINT NOT NULL,
			embedding vector(%d) NOT NULL,
			source_type VARCHAR(32) NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (domain, chunk_id)
		)`, p.dim),
		"CREATE INDEX IF NOT EXISTS idx_rag_chunk_vector_hnsw ON rag_chunk_vector USING hnsw (embedding vector_cosine_ops)",
	}
	db := p.db.WithContext(ctx)
	for _, s := range stmts {
		if err := db.Exec(s).Error; err != nil {
			return err
		}
	}
	return nil
}

func (p *PgVectorIndex) Metric() rag.ScoreMetric { return rag.MetricCosineDistance }

func (p *PgVectorIndex) Upsert(ctx context.Context, domain rag.Domain, sourceType rag.SourceType, entries []repository.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ts := p.now().Unix()
	rows := make([]ChunkVector, 0, len(entries))
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		if len(e.Vector) != p.dim {
			return rag.Validationf("vector dim mismatch for chunk_id=%d, got=%d want=%d", e.ChunkID, len(e.Vector), p.dim)
		}
		ids = append(ids, e.ChunkID)
		rows = append(rows, ChunkVector{
			Domain:     domain,
			ChunkID:    e.ChunkID,
			Embedding:  pgvector.NewVector(e.Vector),
			SourceType: sourceType,
			UpdatedAt:  ts,
		})
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("domain = ? AND chunk_id IN ?", domain, ids).Delete(&ChunkVector{}).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(rows, 200).Error
	})
}

func (p *PgVectorIndex) DeleteByChunkIDs(ctx context.Context, domain rag.Domain, chunkIDs []int64) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	return p.db.WithContext(ctx).Where("domain = ? AND chunk_id IN ?", domain, chunkIDs).Delete(&ChunkVector{}).Error
}

func (p *PgVectorIndex) Search(ctx context.Context, domain rag.Domain, vector []float32, topK int, filter repository.SearchFilter) ([]rag.SearchResult, error) {
	if topK <= 0 {
		return []rag.SearchResult{}, nil
	}
	if len(vector) != p.dim {
		return nil, rag.Validationf("query vector dim mismatch, got=%d want=%d", len(vector), p.dim)
	}
	q := pgvector.NewVector(vector)

	var rows []struct {
		ChunkID  int64   `gorm:"column:chunk_id"`
		Distance float64 `gorm:"column:distance"`
	}
	db := p.db.WithContext(ctx).
		Model(&ChunkVector{}).
		Select("chunk_id, embedding <=> ? AS distance", q).
		Where("domain = ?", domain)
	if !filter.IsZero() {
		db = db.Where("source_type IN ?", filter.SourceTypes)
	}
	err := db.Clauses(clause.OrderBy{
		Expression: clause.Expr{SQL: "embedding <=> ?", Vars: []interface{}{q}},
	}).Limit(topK).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]rag.SearchResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, rag.SearchResult{ChunkID: r.ChunkID, Score: r.Distance})
	}
	return out, nil
}
