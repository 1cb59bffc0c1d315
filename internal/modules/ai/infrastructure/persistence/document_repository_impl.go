package persistence

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/domain/repository"
	"koo/pkg/gzipx"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultRawInlineLimit raw_content 内联保存的上限（字节），超出时只保留 gzip 列
const DefaultRawInlineLimit = 32 * 1024

type documentRepositoryImpl struct {
	db          *gorm.DB
	inlineLimit int
}

func NewDocumentRepository(db *gorm.DB, inlineLimit int) repository.DocumentRepository {
	if inlineLimit <= 0 {
		inlineLimit = DefaultRawInlineLimit
	}
	return &documentRepositoryImpl{db: db, inlineLimit: inlineLimit}
}

func (r *documentRepositoryImpl) live(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Where("deleted_at IS NULL")
}

func (r *documentRepositoryImpl) Create(ctx context.Context, doc *rag.Document) error {
	content := doc.RawContent
	defer func() { doc.RawContent = content }()
	if err := r.pack(doc); err != nil {
		return err
	}
	if doc.Version <= 0 {
		doc.Version = 1
	}
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *documentRepositoryImpl) GetByID(ctx context.Context, id int64) (*rag.Document, error) {
	var d rag.Document
	err := r.live(ctx).Where("id = ?", id).Take(&d).Error
	return r.found(&d, err)
}

func (r *documentRepositoryImpl) GetBySource(ctx context.Context, sourceType rag.SourceType, sourceID string) (*rag.Document, error) {
	var d rag.Document
	err := r.live(ctx).Where("source_type = ? AND source_id = ?", sourceType, sourceID).Take(&d).Error
	return r.found(&d, err)
}

func (r *documentRepositoryImpl) Update(ctx context.Context, doc *rag.Document) error {
	content := doc.RawContent
	defer func() { doc.RawContent = content }()
	if err := r.pack(doc); err != nil {
		return err
	}
	doc.UpdatedAt = time.Now()
	res := r.live(ctx).Model(&rag.Document{}).Where("id = ?", doc.ID).
		Select("title", "raw_content", "raw_content_gz", "content_hash", "version", "updated_at").
		Updates(doc)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return rag.NotFoundf("document %d", doc.ID)
	}
	return nil
}

// Upsert 在事务内按 (source_type, source_id) 锁定存活记录后比较内容 hash
func (r *documentRepositoryImpl) Upsert(ctx context.Context, doc *rag.Document) (*rag.Document, repository.UpsertOutcome, error) {
	if doc.ContentHash == "" {
		doc.ContentHash = rag.ContentHash(doc.RawContent)
	}
	content := doc.RawContent

	var out *rag.Document
	var outcome repository.UpsertOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing rag.Document
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("source_type = ? AND source_id = ? AND deleted_at IS NULL", doc.SourceType, doc.SourceID).
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created := *doc
			created.ID = 0
			created.Version = 1
			created.DeleteMark = 0
			created.DeletedAt = nil
			if err := r.pack(&created); err != nil {
				return err
			}
			if err := tx.Create(&created).Error; err != nil {
				return err
			}
			out, outcome = &created, repository.UpsertCreated
			return nil
		}
		if err != nil {
			return err
		}

		if existing.ContentHash == doc.ContentHash {
			out, outcome = &existing, repository.UpsertUnchanged
			return nil
		}

		existing.Title = doc.Title
		existing.RawContent = content
		existing.ContentHash = doc.ContentHash
		existing.Version++
		existing.UpdatedAt = time.Now()
		if err := r.pack(&existing); err != nil {
			return err
		}
		if err := tx.Model(&existing).
			Select("title", "raw_content", "raw_content_gz", "content_hash", "version", "updated_at").
			Updates(&existing).Error; err != nil {
			return err
		}
		out, outcome = &existing, repository.UpsertUpdated
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	if err := unpack(out); err != nil {
		return nil, 0, err
	}
	return out, outcome, nil
}

func (r *documentRepositoryImpl) SoftDelete(ctx context.Context, id int64) error {
	res := r.live(ctx).Model(&rag.Document{}).Where("id = ?", id).Updates(map[string]interface{}{
		"deleted_at":  time.Now(),
		"delete_mark": id,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return rag.NotFoundf("document %d", id)
	}
	return nil
}

func (r *documentRepositoryImpl) found(d *rag.Document, err error) (*rag.Document, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := unpack(d); err != nil {
		return nil, err
	}
	return d, nil
}

// pack gzip 列总是写入，内联列仅在不超过上限时保留
func (r *documentRepositoryImpl) pack(d *rag.Document) error {
	gz, err := gzipx.CompressText(d.RawContent, gzipx.DefaultLevel)
	if err != nil {
		return err
	}
	d.RawContentGz = gz
	if len(d.RawContent) > r.inlineLimit {
		d.RawContent = ""
	}
	return nil
}

// unpack 内联列为空时从 gzip 列还原原文
func unpack(d *rag.Document) error {
	if d == nil || d.RawContent != "" || len(d.RawContentGz) == 0 {
		return nil
	}
	text, err := gzipx.DecompressText(d.RawContentGz)
	if err != nil {
		return err
	}
	if !utf8.ValidString(text) {
		return rag.Validationf("document %d raw content is not valid utf-8", d.ID)
	}
	d.RawContent = text
	return nil
}
