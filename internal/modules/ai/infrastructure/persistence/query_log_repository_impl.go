package persistence

import (
	"context"
	"errors"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type queryLogRepositoryImpl struct {
	db *gorm.DB
}

func NewQueryLogRepository(db *gorm.DB) repository.QueryLogRepository {
	return &queryLogRepositoryImpl{db: db}
}

func (r *queryLogRepositoryImpl) Create(ctx context.Context, log *rag.QueryLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *queryLogRepositoryImpl) GetByID(ctx context.Context, id int64) (*rag.QueryLog, error) {
	var l rag.QueryLog
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *queryLogRepositoryImpl) Update(ctx context.Context, id int64, update rag.QueryLogUpdate) (*rag.QueryLog, error) {
	var l rag.QueryLog
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&l).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rag.NotFoundf("query log %d", id)
		}
		if err != nil {
			return err
		}
		update.Apply(&l)
		return tx.Save(&l).Error
	})
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *queryLogRepositoryImpl) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&rag.QueryLog{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return rag.NotFoundf("query log %d", id)
	}
	return nil
}
