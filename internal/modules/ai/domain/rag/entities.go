package rag

import "time"

// Document 一次摄取的规范化内容，(source_type, source_id, delete_mark) 唯一
type Document struct {
	ID           int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Domain       Domain     `gorm:"column:domain;type:varchar(16);not null;index:idx_rag_doc_domain"`
	SourceType   SourceType `gorm:"column:source_type;type:varchar(32);not null;uniqueIndex:uniq_rag_doc_source,priority:1"`
	SourceID     string     `gorm:"column:source_id;type:varchar(255);not null;uniqueIndex:uniq_rag_doc_source,priority:2"`
	Title        *string    `gorm:"column:title;type:varchar(512)"`
	RawContent   string     `gorm:"column:raw_content"`
	RawContentGz []byte     `gorm:"column:raw_content_gz"`
	ContentHash  string     `gorm:"column:content_hash;type:char(64);not null"`
	Version      int        `gorm:"column:version;not null;default:1"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;not null"`
	DeletedAt    *time.Time `gorm:"column:deleted_at;index:idx_rag_doc_deleted"`
	// DeleteMark 存活记录为 0，软删除后写入自身 id，保证墓碑不占用唯一键
	DeleteMark int64 `gorm:"column:delete_mark;not null;default:0;uniqueIndex:uniq_rag_doc_source,priority:3"`
}

func (Document) TableName() string { return "rag_document" }

// IsDeleted 是否已软删除
func (d *Document) IsDeleted() bool { return d != nil && d.DeletedAt != nil }

// TitleOrEmpty 返回标题，未设置时为空串
func (d *Document) TitleOrEmpty() string {
	if d == nil || d.Title == nil {
		return ""
	}
	return *d.Title
}

// Chunk 文档切分出的最小检索单元
type Chunk struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	DocumentID int64     `gorm:"column:document_id;not null;index:idx_rag_chunk_doc_ctx,priority:1"`
	ContextID  int       `gorm:"column:context_id;not null;index:idx_rag_chunk_doc_ctx,priority:2"`
	ChunkIndex int       `gorm:"column:chunk_index;not null"`
	ChunkText  string    `gorm:"column:chunk_text;not null"`
	ChunkHash  string    `gorm:"column:chunk_hash;type:char(64);not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (Chunk) TableName() string { return "rag_chunk" }

// QueryLog 一次提问的审计记录
type QueryLog struct {
	ID               int64        `gorm:"column:id;primaryKey;autoIncrement"`
	QueryText        string       `gorm:"column:query_text;type:text;not null"`
	TopK             int          `gorm:"column:topk;not null"`
	SelectedChunkIDs []int64      `gorm:"column:selected_chunk_ids;type:text;serializer:json"`
	ExpendedChunkIDs []int64      `gorm:"column:expended_chunk_ids;type:text;serializer:json"`
	Answer           string       `gorm:"column:answer;type:text"`
	InputTokens      int          `gorm:"column:input_tokens;not null;default:0"`
	OutputTokens     int          `gorm:"column:output_tokens;not null;default:0"`
	TotalTokens      int          `gorm:"column:total_tokens;not null;default:0"`
	Meta             QueryLogMeta `gorm:"column:meta;type:text;serializer:json"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null"`
	UpdatedAt        time.Time    `gorm:"column:updated_at;not null"`
}

func (QueryLog) TableName() string { return "rag_query_log" }

// QueryLogMeta 记录检索过程中"看到了什么"和"用了什么"
type QueryLogMeta struct {
	TopK             int                `json:"topk"`
	HitChunkIDs      map[Domain][]int64 `json:"hit_chunk_ids"`
	SelectedChunkIDs []int64            `json:"selected_chunk_ids"`
	ExpendedChunkIDs []int64            `json:"expended_chunk_ids"`
}

// QueryLogUpdate 查询日志的部分更新，nil 表示未提供
type QueryLogUpdate struct {
	SelectedChunkIDs *[]int64
	ExpendedChunkIDs *[]int64
	Answer           *string
	InputTokens      *int
	OutputTokens     *int
	Meta             *QueryLogMeta
}

// Apply 将提供的字段写入 log，并重新计算 total_tokens
func (u QueryLogUpdate) Apply(log *QueryLog) {
	if u.SelectedChunkIDs != nil {
		log.SelectedChunkIDs = *u.SelectedChunkIDs
	}
	if u.ExpendedChunkIDs != nil {
		log.ExpendedChunkIDs = *u.ExpendedChunkIDs
	}
	if u.Answer != nil {
		log.Answer = *u.Answer
	}
	if u.InputTokens != nil {
		log.InputTokens = *u.InputTokens
	}
	if u.OutputTokens != nil {
		log.OutputTokens = *u.OutputTokens
	}
	if u.Meta != nil {
		log.Meta = *u.Meta
	}
	log.TotalTokens = log.InputTokens + log.OutputTokens
}

// Ptr 取地址的小工具
func Ptr[T any](v T) *T { return &v }
