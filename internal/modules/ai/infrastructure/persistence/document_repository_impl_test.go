package persistence

import (
	"context"
	"os"
	"strings"
	"testing"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestPackInlineLimit(t *testing.T) {
	r := &documentRepositoryImpl{inlineLimit: 8}

	small := &rag.Document{RawContent: "short"}
	require.NoError(t, r.pack(small))
	assert.Equal(t, "short", small.RawContent)
	assert.NotEmpty(t, small.RawContentGz)

	big := &rag.Document{RawContent: strings.Repeat("长文本", 10)}
	require.NoError(t, r.pack(big))
	assert.Empty(t, big.RawContent)

	require.NoError(t, unpack(big))
	assert.Equal(t, strings.Repeat("长文本", 10), big.RawContent)
}

func openTestDB(t *testing.T) *gorm.DB {
	dsn := os.Getenv("KOO_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("KOO_TEST_PG_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&rag.Document{}, &rag.Chunk{}, &rag.QueryLog{}))
	t.Cleanup(func() {
		db.Exec("DELETE FROM rag_chunk")
		db.Exec("DELETE FROM rag_document")
		db.Exec("DELETE FROM rag_query_log")
	})
	return db
}

func TestGormRepositories(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	docs := NewDocumentRepository(db, 16)
	chunks := NewChunkRepository(db)
	logs := NewQueryLogRepository(db)

	content := strings.Repeat("x", 64)
	d, outcome, err := docs.Upsert(ctx, &rag.Document{
		Domain: rag.DomainCS, SourceType: rag.SourceRawText, SourceID: "it-1",
		RawContent: content, ContentHash: rag.ContentHash(content),
	})
	require.NoError(t, err)
	assert.Equal(t, repository.UpsertCreated, outcome)
	assert.Equal(t, content, d.RawContent)

	_, outcome, err = docs.Upsert(ctx, &rag.Document{
		Domain: rag.DomainCS, SourceType: rag.SourceRawText, SourceID: "it-1",
		RawContent: content, ContentHash: rag.ContentHash(content),
	})
	require.NoError(t, err)
	assert.Equal(t, repository.UpsertUnchanged, outcome)

	require.NoError(t, chunks.BulkCreate(ctx, []*rag.Chunk{
		{DocumentID: d.ID, ContextID: 0, ChunkIndex: 0, ChunkText: "a", ChunkHash: rag.ContentHash("a")},
		{DocumentID: d.ID, ContextID: 0, ChunkIndex: 1, ChunkText: "b", ChunkHash: rag.ContentHash("b")},
	}))
	block, err := chunks.ListByContext(ctx, d.ID, 0)
	require.NoError(t, err)
	require.Len(t, block, 2)
	assert.Equal(t, "a", block[0].ChunkText)

	require.NoError(t, docs.SoftDelete(ctx, d.ID))
	block, err = chunks.ListByContext(ctx, d.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, block)

	l := &rag.QueryLog{QueryText: "q", TopK: 3}
	require.NoError(t, logs.Create(ctx, l))
	updated, err := logs.Update(ctx, l.ID, rag.QueryLogUpdate{Answer: rag.Ptr(""), InputTokens: rag.Ptr(4), OutputTokens: rag.Ptr(6)})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.TotalTokens)

	_, err = logs.Update(ctx, l.ID+1000, rag.QueryLogUpdate{})
	assert.ErrorIs(t, err, rag.ErrNotFound)
}
