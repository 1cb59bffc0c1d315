package queue

import (
	"context"
	"errors"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/infrastructure/mq"
	"koo/internal/modules/ai/infrastructure/pipeline"
	"koo/internal/modules/ai/infrastructure/source"
	"koo/pkg/zlog"

	"go.uber.org/zap"
)

// SourceIngester 从来源描述构建文档并运行摄取流水线
type SourceIngester interface {
	IngestSource(ctx context.Context, spec source.Spec, force bool) (*pipeline.IngestResult, error)
}

type IngestConsumerWorker struct {
	consumer mq.Consumer
	ingester SourceIngester
}

func NewIngestConsumerWorker(consumer mq.Consumer, ingester SourceIngester) *IngestConsumerWorker {
	return &IngestConsumerWorker{consumer: consumer, ingester: ingester}
}

func (w *IngestConsumerWorker) Run(ctx context.Context) error {
	if w == nil || w.consumer == nil {
		return rag.Validationf("consumer is nil")
	}
	if w.ingester == nil {
		return rag.Validationf("ingester is nil")
	}
	return w.consumer.Run(ctx, w)
}

// Handle 返回错误的消息不会被标记，留待重试；无法处理的消息记录后丢弃
func (w *IngestConsumerWorker) Handle(ctx context.Context, msg mq.Message) error {
	m, err := mq.DecodeIngest(msg)
	if err != nil {
		zlog.Warn("rag ingest consumer invalid message",
			zap.String("topic", msg.Topic),
			zap.String("key", string(msg.Key)),
			zap.Error(err))
		return nil
	}

	res, err := w.ingester.IngestSource(ctx, source.Spec{
		Domain:     m.Domain,
		SourceType: m.SourceType,
		SourceID:   m.SourceID,
		Title:      m.Title,
		Content:    m.Content,
	}, m.Force)
	if err != nil {
		if permanent(err) {
			zlog.Warn("rag ingest consumer dropped message",
				zap.String("request_id", m.RequestID),
				zap.String("key", m.Key()),
				zap.Error(err))
			return nil
		}
		return err
	}

	zlog.Info("rag ingest consumer done",
		zap.String("request_id", m.RequestID),
		zap.Int64("document_id", res.DocumentID),
		zap.String("outcome", res.Outcome),
		zap.Int("chunk_count", res.ChunkCount))
	return nil
}

// permanent 重试也不会成功的错误
func permanent(err error) bool {
	return errors.Is(err, rag.ErrValidation) ||
		errors.Is(err, rag.ErrMalformedSource) ||
		errors.Is(err, rag.ErrNotFound)
}
