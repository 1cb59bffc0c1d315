package service

import (
	"context"

	"koo/internal/modules/ai/application/dto/request"
	"koo/internal/modules/ai/application/dto/respond"
	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/domain/repository"
	"koo/internal/modules/ai/infrastructure/pipeline"
)

// AskService 基于知识库回答问题
type AskService interface {
	Ask(ctx context.Context, req request.AskRequest) (*respond.AskRespond, error)
}

type askService struct {
	pipeline *pipeline.AskPipeline
}

func NewAskService(p *pipeline.AskPipeline) AskService {
	return &askService{pipeline: p}
}

func (s *askService) Ask(ctx context.Context, req request.AskRequest) (*respond.AskRespond, error) {
	domains, err := rag.ParseDomains(req.Domains)
	if err != nil {
		return nil, err
	}
	var filter repository.SearchFilter
	for _, st := range req.SourceTypes {
		v, err := rag.ParseSourceType(st)
		if err != nil {
			return nil, err
		}
		filter.SourceTypes = append(filter.SourceTypes, v)
	}

	res, err := s.pipeline.Ask(ctx, pipeline.AskRequest{
		Question: req.Question,
		TopK:     req.TopK,
		Domains:  domains,
		Filter:   filter,
	})
	if err != nil {
		return nil, err
	}
	return toAskRespond(res), nil
}

func toAskRespond(res *pipeline.AskResult) *respond.AskRespond {
	hits := make([]respond.AskHit, 0, len(res.Hits))
	for i, h := range res.Hits {
		hit := respond.AskHit{
			Rank:    i + 1,
			ChunkID: h.ChunkID,
			Domain:  string(h.Domain),
			Score:   h.Score,
			Text:    h.Text(),
		}
		if h.Chunk != nil {
			hit.DocumentID = h.Chunk.DocumentID
			hit.ContextID = h.Chunk.ContextID
		}
		hits = append(hits, hit)
	}
	sources := res.Sources
	if sources == nil {
		sources = []int{}
	}
	return &respond.AskRespond{
		QueryLogID:       res.QueryLogID,
		TraceID:          res.TraceID,
		Question:         res.Question,
		TopK:             res.TopK,
		Answer:           res.Answer,
		Sources:          sources,
		Confidence:       res.Confidence,
		Hits:             hits,
		SelectedChunkIDs: rag.ChunkIDs(res.Selected),
		ExpandedChunkIDs: rag.ChunkIDs(res.Expanded),
		ContextBlocks:    len(res.Context.Hits),
		Usage:            tokenUsage(res.Usage.InputTokens, res.Usage.OutputTokens),
		DurationMs:       res.DurationMs,
	}
}

func tokenUsage(in, out int) respond.TokenUsage {
	return respond.TokenUsage{InputTokens: in, OutputTokens: out, TotalTokens: in + out}
}
