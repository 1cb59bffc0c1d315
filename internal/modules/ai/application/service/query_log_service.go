package service

import (
	"context"

	"koo/internal/modules/ai/application/dto/respond"
	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/domain/repository"
)

type QueryLogService interface {
	Get(ctx context.Context, id int64) (*respond.QueryLogRespond, error)
	Delete(ctx context.Context, id int64) error
}

type queryLogService struct {
	repo repository.QueryLogRepository
}

func NewQueryLogService(repo repository.QueryLogRepository) QueryLogService {
	return &queryLogService{repo: repo}
}

func (s *queryLogService) Get(ctx context.Context, id int64) (*respond.QueryLogRespond, error) {
	if id <= 0 {
		return nil, rag.Validationf("invalid query log id %d", id)
	}
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, rag.NotFoundf("query log %d", id)
	}
	hits := make(map[string][]int64, len(l.Meta.HitChunkIDs))
	for d, ids := range l.Meta.HitChunkIDs {
		hits[string(d)] = ids
	}
	return &respond.QueryLogRespond{
		ID:               l.ID,
		QueryText:        l.QueryText,
		TopK:             l.TopK,
		SelectedChunkIDs: nonNilIDs(l.SelectedChunkIDs),
		ExpandedChunkIDs: nonNilIDs(l.ExpendedChunkIDs),
		HitChunkIDs:      hits,
		Answer:           l.Answer,
		Usage: respond.TokenUsage{
			InputTokens:  l.InputTokens,
			OutputTokens: l.OutputTokens,
			TotalTokens:  l.TotalTokens,
		},
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}, nil
}

func (s *queryLogService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return rag.Validationf("invalid query log id %d", id)
	}
	return s.repo.Delete(ctx, id)
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
