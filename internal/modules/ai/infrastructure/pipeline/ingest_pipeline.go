package pipeline

import (
	"context"
	"strings"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/domain/repository"
	"koo/internal/modules/ai/infrastructure/chunking"
	"koo/pkg/zlog"

	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"
)

// IngestRequest 一次摄取请求
type IngestRequest struct {
	Document rag.SourceDocument
	// Force 即使内容未变化也重建 chunk 与向量
	Force bool
}

// IngestResult 摄取结果
type IngestResult struct {
	DocumentID int64          `json:"document_id"`
	Domain     rag.Domain     `json:"domain"`
	SourceType rag.SourceType `json:"source_type"`
	SourceID   string         `json:"source_id"`
	Version    int            `json:"version"`
	Outcome    string         `json:"outcome"`
	Unchanged  bool           `json:"unchanged"`
	ChunkCount int            `json:"chunk_count"`
	ChunkIDs   []int64        `json:"chunk_ids"`
	Purged     int            `json:"purged"`
	DurationMs int64          `json:"duration_ms"`
}

// IngestDeps 摄取 Pipeline 的协作方
type IngestDeps struct {
	Documents repository.DocumentRepository
	Chunks    repository.ChunkRepository
	Index     repository.VectorIndex
	Embedder  repository.Embedder
	Chunker   *chunking.ContextChunker
}

// IngestPipeline 让一个来源文档变为可检索（基于 Eino compose.Graph）。
// 各步骤不在同一事务中：旧 chunk 删除后若嵌入或写索引失败，文档暂时没有可检索的 chunk，重试整个摄取即可恢复。
type IngestPipeline struct {
	docs     repository.DocumentRepository
	chunks   repository.ChunkRepository
	index    repository.VectorIndex
	embedder repository.Embedder
	chunker  *chunking.ContextChunker
	r        compose.Runnable[*IngestRequest, *IngestResult]
}

func NewIngestPipeline(deps IngestDeps) (*IngestPipeline, error) {
	if deps.Documents == nil || deps.Chunks == nil {
		return nil, rag.Validationf("content store is nil")
	}
	if deps.Index == nil {
		return nil, rag.Validationf("vector index is nil")
	}
	if deps.Embedder == nil {
		return nil, rag.Validationf("embedder is nil")
	}
	chunker := deps.Chunker
	if chunker == nil {
		chunker = chunking.NewContextChunker(chunking.DefaultMaxChars)
	}
	p := &IngestPipeline{
		docs:     deps.Documents,
		chunks:   deps.Chunks,
		index:    deps.Index,
		embedder: deps.Embedder,
		chunker:  chunker,
	}
	r, err := p.buildGraph(context.Background())
	if err != nil {
		return nil, err
	}
	p.r = r
	return p, nil
}

// Ingest 执行一次摄取，可安全重试
func (p *IngestPipeline) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if p.r == nil {
		return nil, rag.Validationf("pipeline runnable is nil")
	}
	return p.r.Invoke(ctx, &req)
}

// DeleteDocument 软删除文档并尽力清理其向量
func (p *IngestPipeline) DeleteDocument(ctx context.Context, documentID int64) error {
	doc, err := p.docs.GetByID(ctx, documentID)
	if err != nil {
		return rag.Stage(rag.StageContentStore, err)
	}
	if doc == nil {
		return rag.NotFoundf("document %d", documentID)
	}
	chunks, err := p.chunks.ListByDocument(ctx, documentID)
	if err != nil {
		return rag.Stage(rag.StageContentStore, err)
	}
	if err := p.docs.SoftDelete(ctx, documentID); err != nil {
		return rag.Stage(rag.StageContentStore, err)
	}

	ids := make([]int64, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.ID)
	}
	p.purgeVectors(ctx, doc.Domain, ids)
	zlog.Info("rag document deleted",
		zap.Int64("document_id", documentID),
		zap.String("source_type", doc.SourceType.String()),
		zap.String("source_id", doc.SourceID),
		zap.Int("vectors", len(ids)),
	)
	return nil
}

// purgeVectors 检索路径会丢弃无法解析的残留向量，这里失败只记日志
func (p *IngestPipeline) purgeVectors(ctx context.Context, domain rag.Domain, ids []int64) {
	if len(ids) == 0 {
		return
	}
	if err := p.index.DeleteByChunkIDs(ctx, domain, ids); err != nil {
		zlog.Warn("rag purge stale vectors failed",
			zap.String("domain", domain.String()),
			zap.Int("count", len(ids)),
			zap.Error(err),
		)
	}
}

func (p *IngestPipeline) shouldSkip(ctx context.Context, st *ingestState) (bool, int, error) {
	if st.Req.Force || st.Outcome != repository.UpsertUnchanged {
		return false, 0, nil
	}
	n, err := p.chunks.CountByDocument(ctx, st.Doc.ID)
	if err != nil {
		return false, 0, err
	}
	// 内容非空却没有 chunk，说明上次摄取停在了一致性窗口内，需要重建
	if n == 0 && strings.TrimSpace(st.Doc.RawContent) != "" {
		return false, 0, nil
	}
	return true, n, nil
}
