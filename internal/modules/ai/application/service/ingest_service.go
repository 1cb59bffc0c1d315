package service

import (
	"context"
	"strings"

	"koo/internal/modules/ai/application/dto/request"
	"koo/internal/modules/ai/application/dto/respond"
	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/infrastructure/pipeline"
	"koo/internal/modules/ai/infrastructure/source"
)

type IngestService interface {
	Ingest(ctx context.Context, req request.IngestRequest) (*respond.IngestRespond, error)
	// IngestSource 供消费者与定时任务复用：按来源描述拉取内容并摄取
	IngestSource(ctx context.Context, spec source.Spec, force bool) (*pipeline.IngestResult, error)
	DeleteDocument(ctx context.Context, documentID int64) error
}

type ingestService struct {
	sources  *source.Factory
	pipeline *pipeline.IngestPipeline
}

func NewIngestService(sources *source.Factory, p *pipeline.IngestPipeline) IngestService {
	return &ingestService{sources: sources, pipeline: p}
}

func (s *ingestService) Ingest(ctx context.Context, req request.IngestRequest) (*respond.IngestRespond, error) {
	res, err := s.IngestSource(ctx, source.Spec{
		Domain:     rag.Domain(req.Domain),
		SourceType: rag.SourceType(req.SourceType),
		SourceID:   req.SourceID,
		Title:      req.Title,
		Content:    req.Content,
	}, req.Force)
	if err != nil {
		return nil, err
	}
	return toIngestRespond(res), nil
}

func (s *ingestService) IngestSource(ctx context.Context, spec source.Spec, force bool) (*pipeline.IngestResult, error) {
	if strings.TrimSpace(spec.SourceID) == "" {
		return nil, rag.Validationf("source id is required")
	}
	src, err := s.sources.New(spec)
	if err != nil {
		return nil, err
	}
	doc, err := src.BuildDocument(ctx)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Ingest(ctx, pipeline.IngestRequest{Document: doc, Force: force})
}

func (s *ingestService) DeleteDocument(ctx context.Context, documentID int64) error {
	if documentID <= 0 {
		return rag.Validationf("invalid document id %d", documentID)
	}
	return s.pipeline.DeleteDocument(ctx, documentID)
}

func toIngestRespond(res *pipeline.IngestResult) *respond.IngestRespond {
	ids := res.ChunkIDs
	if ids == nil {
		ids = []int64{}
	}
	return &respond.IngestRespond{
		DocumentID: res.DocumentID,
		Domain:     string(res.Domain),
		SourceType: string(res.SourceType),
		SourceID:   res.SourceID,
		Version:    res.Version,
		Outcome:    res.Outcome,
		Unchanged:  res.Unchanged,
		ChunkCount: res.ChunkCount,
		ChunkIDs:   ids,
		DurationMs: res.DurationMs,
	}
}
