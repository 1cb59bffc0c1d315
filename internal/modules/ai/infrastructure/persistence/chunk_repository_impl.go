package persistence

import (
	"context"
	"errors"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/domain/repository"

	"gorm.io/gorm"
)

const chunkBatchSize = 200

type chunkRepositoryImpl struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) repository.ChunkRepository {
	return &chunkRepositoryImpl{db: db}
}

// live 只返回所属文档未被软删除的 chunk
func (r *chunkRepositoryImpl) live(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("rag_chunk AS c").
		Select("c.*").
		Joins("JOIN rag_document AS d ON d.id = c.document_id AND d.deleted_at IS NULL")
}

func (r *chunkRepositoryImpl) Create(ctx context.Context, chunk *rag.Chunk) error {
	return r.db.WithContext(ctx).Create(chunk).Error
}

func (r *chunkRepositoryImpl) BulkCreate(ctx context.Context, chunks []*rag.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(chunks, chunkBatchSize).Error
}

func (r *chunkRepositoryImpl) GetByID(ctx context.Context, id int64) (*rag.Chunk, error) {
	var c rag.Chunk
	err := r.live(ctx).Where("c.id = ?", id).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *chunkRepositoryImpl) GetByIDs(ctx context.Context, ids []int64) (map[int64]*rag.Chunk, error) {
	out := make(map[int64]*rag.Chunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []*rag.Chunk
	if err := r.live(ctx).Where("c.id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, c := range rows {
		out[c.ID] = c
	}
	return out, nil
}

func (r *chunkRepositoryImpl) ListByDocument(ctx context.Context, documentID int64) ([]*rag.Chunk, error) {
	var rows []*rag.Chunk
	err := r.live(ctx).Where("c.document_id = ?", documentID).Order("c.chunk_index ASC").Find(&rows).Error
	return rows, err
}

func (r *chunkRepositoryImpl) ListByContext(ctx context.Context, documentID int64, contextID int) ([]*rag.Chunk, error) {
	var rows []*rag.Chunk
	err := r.live(ctx).
		Where("c.document_id = ? AND c.context_id = ?", documentID, contextID).
		Order("c.chunk_index ASC").
		Find(&rows).Error
	return rows, err
}

func (r *chunkRepositoryImpl) DeleteByDocument(ctx context.Context, documentID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&rag.Chunk{}).Where("document_id = ?", documentID).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Where("document_id = ?", documentID).Delete(&rag.Chunk{}).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *chunkRepositoryImpl) CountByDocument(ctx context.Context, documentID int64) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&rag.Chunk{}).Where("document_id = ?", documentID).Count(&n).Error
	return int(n), err
}
