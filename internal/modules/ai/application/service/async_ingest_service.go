package service

import (
	"context"

	"koo/internal/modules/ai/application/dto/request"
	"koo/internal/modules/ai/application/dto/respond"
	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/infrastructure/mq"
	"koo/internal/modules/ai/infrastructure/queue"
	"koo/pkg/xerr"
)

// AsyncIngestService 把摄取请求投递到消息队列，由 IngestConsumerWorker 执行
type AsyncIngestService interface {
	Enqueue(ctx context.Context, req request.IngestRequest) (*respond.AsyncIngestRespond, error)
}

type asyncIngestService struct {
	publisher *queue.IngestPublisher
}

// NewAsyncIngestService publisher 为 nil 表示未启用 Kafka
func NewAsyncIngestService(publisher *queue.IngestPublisher) AsyncIngestService {
	return &asyncIngestService{publisher: publisher}
}

func (s *asyncIngestService) Enqueue(ctx context.Context, req request.IngestRequest) (*respond.AsyncIngestRespond, error) {
	if s.publisher == nil {
		return nil, xerr.New(xerr.BadRequest, "async ingest is disabled")
	}
	domain, err := rag.ParseDomain(req.Domain)
	if err != nil {
		return nil, err
	}
	st, err := rag.ParseSourceType(req.SourceType)
	if err != nil {
		return nil, err
	}
	if st == rag.SourceGithub {
		return nil, rag.Validationf("source type %s has no connector", st)
	}

	m, res, err := s.publisher.Publish(ctx, mq.IngestMessage{
		Domain:     domain,
		SourceType: st,
		SourceID:   req.SourceID,
		Title:      req.Title,
		Content:    req.Content,
		Force:      req.Force,
	})
	if err != nil {
		return nil, err
	}
	return &respond.AsyncIngestRespond{
		RequestID: m.RequestID,
		Topic:     s.publisher.Topic(),
		Key:       m.Key(),
		Partition: res.Partition,
		Offset:    res.Offset,
	}, nil
}
