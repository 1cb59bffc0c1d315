package pipeline

import (
	"context"
	"strings"
	"time"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/domain/repository"
	"koo/pkg/zlog"

	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"
)

type ingestState struct {
	Req *IngestRequest

	Doc     *rag.Document
	Outcome repository.UpsertOutcome
	Skip    bool
	Kept    int

	Purged  []int64
	Chunks  []*rag.Chunk
	Vectors [][]float32

	Start    time.Time
	UpsertMs int64
	ChunkMs  int64
	EmbedMs  int64
	IndexMs  int64
	Err      error
}

// buildGraph 节点顺序：Prepare → Upsert → Purge → Chunk → Embed → Index → Finish
func (p *IngestPipeline) buildGraph(ctx context.Context) (compose.Runnable[*IngestRequest, *IngestResult], error) {
	const (
		Prepare = "Prepare"
		Upsert  = "Upsert"
		Purge   = "Purge"
		Chunk   = "Chunk"
		Embed   = "Embed"
		Index   = "Index"
		Finish  = "Finish"
	)

	g := compose.NewGraph[*IngestRequest, *IngestResult]()

	_ = g.AddLambdaNode(Prepare, compose.InvokableLambdaWithOption(p.prepareNode), compose.WithNodeName(Prepare))
	_ = g.AddLambdaNode(Upsert, compose.InvokableLambdaWithOption(p.upsertNode), compose.WithNodeName(Upsert))
	_ = g.AddLambdaNode(Purge, compose.InvokableLambdaWithOption(p.purgeNode), compose.WithNodeName(Purge))
	_ = g.AddLambdaNode(Chunk, compose.InvokableLambdaWithOption(p.chunkNode), compose.WithNodeName(Chunk))
	_ = g.AddLambdaNode(Embed, compose.InvokableLambdaWithOption(p.embedNode), compose.WithNodeName(Embed))
	_ = g.AddLambdaNode(Index, compose.InvokableLambdaWithOption(p.indexNode), compose.WithNodeName(Index))
	_ = g.AddLambdaNode(Finish, compose.InvokableLambdaWithOption(p.finishNode), compose.WithNodeName(Finish))

	_ = g.AddEdge(compose.START, Prepare)
	_ = g.AddEdge(Prepare, Upsert)
	_ = g.AddEdge(Upsert, Purge)
	_ = g.AddEdge(Purge, Chunk)
	_ = g.AddEdge(Chunk, Embed)
	_ = g.AddEdge(Embed, Index)
	_ = g.AddEdge(Index, Finish)
	_ = g.AddEdge(Finish, compose.END)

	return g.Compile(ctx, compose.WithGraphName("RAGIngestPipeline"), compose.WithNodeTriggerMode(compose.AllPredecessor))
}

func (p *IngestPipeline) prepareNode(ctx context.Context, req *IngestRequest, _ ...any) (*ingestState, error) {
	st := &ingestState{Req: req, Start: time.Now()}
	if req == nil {
		st.Err = rag.Validationf("nil request")
		return st, nil
	}
	if err := req.Document.Validate(); err != nil {
		st.Err = err
		return st, nil
	}
	req.Document.Domain, _ = rag.ParseDomain(string(req.Document.Domain))
	req.Document.SourceType, _ = rag.ParseSourceType(string(req.Document.SourceType))
	req.Document.SourceID = strings.TrimSpace(req.Document.SourceID)
	// 文档行写入之前仍可取消
	if err := ctx.Err(); err != nil {
		st.Err = err
		return st, nil
	}
	return st, nil
}

func (p *IngestPipeline) upsertNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	if st.Err != nil {
		return st, nil
	}
	start := time.Now()
	src := st.Req.Document
	doc := &rag.Document{
		Domain:      src.Domain,
		SourceType:  src.SourceType,
		SourceID:    src.SourceID,
		Title:       src.Title,
		RawContent:  src.Content,
		ContentHash: rag.ContentHash(src.Content),
	}
	saved, outcome, err := p.docs.Upsert(ctx, doc)
	if err != nil {
		st.Err = rag.Stage(rag.StageContentStore, err)
		return st, nil
	}
	st.Doc = saved
	st.Outcome = outcome

	skip, kept, err := p.shouldSkip(ctx, st)
	if err != nil {
		st.Err = rag.Stage(rag.StageContentStore, err)
		return st, nil
	}
	st.Skip = skip
	st.Kept = kept
	st.UpsertMs = time.Since(start).Milliseconds()
	return st, nil
}

// purgeNode 已存在的文档无条件删除全部旧 chunk，再尽力清理对应向量
func (p *IngestPipeline) purgeNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	if st.Err != nil || st.Skip || st.Outcome == repository.UpsertCreated {
		return st, nil
	}
	ids, err := p.chunks.DeleteByDocument(ctx, st.Doc.ID)
	if err != nil {
		st.Err = rag.Stage(rag.StageContentStore, err)
		return st, nil
	}
	st.Purged = ids
	p.purgeVectors(ctx, st.Doc.Domain, ids)
	return st, nil
}

func (p *IngestPipeline) chunkNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	if st.Err != nil || st.Skip {
		return st, nil
	}
	start := time.Now()
	pieces := p.chunker.Chunk(st.Doc.RawContent)
	if len(pieces) == 0 {
		st.Chunks = []*rag.Chunk{}
		return st, nil
	}

	now := time.Now()
	chunks := make([]*rag.Chunk, 0, len(pieces))
	for _, pc := range pieces {
		chunks = append(chunks, &rag.Chunk{
			DocumentID: st.Doc.ID,
			ContextID:  pc.ContextID,
			ChunkIndex: pc.Index,
			ChunkText:  pc.Text,
			ChunkHash:  rag.ContentHash(pc.Text),
			CreatedAt:  now,
		})
	}
	if err := p.chunks.BulkCreate(ctx, chunks); err != nil {
		st.Err = rag.Stage(rag.StageContentStore, err)
		return st, nil
	}
	st.Chunks = chunks
	st.ChunkMs = time.Since(start).Milliseconds()
	return st, nil
}

// embedNode 全部 chunk 一次批量嵌入
func (p *IngestPipeline) embedNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	if st.Err != nil || st.Skip || len(st.Chunks) == 0 {
		return st, nil
	}
	start := time.Now()
	texts := make([]string, 0, len(st.Chunks))
	for _, c := range st.Chunks {
		texts = append(texts, c.ChunkText)
	}

	vecs, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		st.Err = rag.Stage(rag.StageEmbedding, err)
		return st, nil
	}
	if len(vecs) != len(texts) {
		st.Err = rag.Stage(rag.StageEmbedding, rag.Validationf("embedding count mismatch: got=%d want=%d", len(vecs), len(texts)))
		return st, nil
	}
	if dim := p.embedder.Dim(); dim > 0 {
		for i, v := range vecs {
			if len(v) != dim {
				st.Err = rag.Stage(rag.StageEmbedding, rag.Validationf("vector %d dim mismatch: got=%d want=%d", i, len(v), dim))
				return st, nil
			}
		}
	}
	st.Vectors = vecs
	st.EmbedMs = time.Since(start).Milliseconds()
	return st, nil
}

func (p *IngestPipeline) indexNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	if st.Err != nil || st.Skip || len(st.Chunks) == 0 {
		return st, nil
	}
	start := time.Now()
	entries := make([]repository.VectorEntry, 0, len(st.Chunks))
	for i, c := range st.Chunks {
		entries = append(entries, repository.VectorEntry{ChunkID: c.ID, Vector: st.Vectors[i]})
	}
	if err := p.index.Upsert(ctx, st.Doc.Domain, st.Doc.SourceType, entries); err != nil {
		st.Err = rag.Stage(rag.StageVectorIndex, err)
		return st, nil
	}
	st.IndexMs = time.Since(start).Milliseconds()
	return st, nil
}

func (p *IngestPipeline) finishNode(ctx context.Context, st *ingestState, _ ...any) (*IngestResult, error) {
	if st == nil {
		return nil, rag.Validationf("nil state")
	}

	if st.Err != nil && len(st.Chunks) > 0 {
		p.discardChunks(ctx, st)
	}

	res := &IngestResult{ChunkIDs: []int64{}}
	if st.Req != nil {
		res.Domain = st.Req.Document.Domain
		res.SourceType = st.Req.Document.SourceType
		res.SourceID = st.Req.Document.SourceID
	}
	if st.Doc != nil {
		res.DocumentID = st.Doc.ID
		res.Domain = st.Doc.Domain
		res.Version = st.Doc.Version
	}
	if st.Outcome != 0 {
		res.Outcome = st.Outcome.String()
	}
	res.Unchanged = st.Skip
	res.Purged = len(st.Purged)
	if st.Skip {
		res.ChunkCount = st.Kept
	} else {
		res.ChunkCount = len(st.Chunks)
		res.ChunkIDs = chunkIDs(st.Chunks)
	}
	res.DurationMs = time.Since(st.Start).Milliseconds()

	fields := []zap.Field{
		zap.Int64("document_id", res.DocumentID),
		zap.String("domain", res.Domain.String()),
		zap.String("source_type", res.SourceType.String()),
		zap.String("source_id", res.SourceID),
		zap.String("outcome", res.Outcome),
		zap.Int("version", res.Version),
		zap.Int("chunks", res.ChunkCount),
		zap.Int("purged", res.Purged),
		zap.Int64("upsert_ms", st.UpsertMs),
		zap.Int64("chunk_ms", st.ChunkMs),
		zap.Int64("embed_ms", st.EmbedMs),
		zap.Int64("index_ms", st.IndexMs),
		zap.Int64("duration_ms", res.DurationMs),
	}
	if st.Err != nil {
		zlog.Error("rag ingest done", append(fields, zap.Error(st.Err))...)
	} else {
		zlog.Info("rag ingest done", fields...)
	}
	return res, st.Err
}

func chunkIDs(chunks []*rag.Chunk) []int64 {
	out := make([]int64, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.ID)
	}
	return out
}

// discardChunks 嵌入或写索引失败时丢弃本次新建的 chunk，重试时按 hash 未变但 chunk 为空的规则整体重建
func (p *IngestPipeline) discardChunks(ctx context.Context, st *ingestState) {
	ctx = context.WithoutCancel(ctx)
	ids, err := p.chunks.DeleteByDocument(ctx, st.Doc.ID)
	if err != nil {
		zlog.Warn("rag discard chunks failed", zap.Int64("document_id", st.Doc.ID), zap.Error(err))
		return
	}
	p.purgeVectors(ctx, st.Doc.Domain, ids)
	st.Chunks = nil
}
