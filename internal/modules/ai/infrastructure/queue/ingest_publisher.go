package queue

import (
	"context"
	"strings"
	"time"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/infrastructure/mq"
	"koo/pkg/zlog"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IngestPublisher 把摄取请求投递到 Kafka
type IngestPublisher struct {
	pub   mq.Publisher
	topic string
	now   func() time.Time
}

func NewIngestPublisher(pub mq.Publisher, topic string) (*IngestPublisher, error) {
	if pub == nil {
		return nil, rag.Validationf("publisher is nil")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, rag.Validationf("ingest topic is empty")
	}
	return &IngestPublisher{pub: pub, topic: topic, now: time.Now}, nil
}

// Publish 补齐 request id 与时间后发送，返回最终的消息内容
func (p *IngestPublisher) Publish(ctx context.Context, m mq.IngestMessage) (mq.IngestMessage, mq.PublishResult, error) {
	if strings.TrimSpace(m.RequestID) == "" {
		m.RequestID = uuid.NewString()
	}
	if m.RequestedAt.IsZero() {
		m.RequestedAt = p.now().UTC()
	}
	m.SourceID = strings.TrimSpace(m.SourceID)

	msg, err := mq.EncodeIngest(p.topic, m)
	if err != nil {
		return m, mq.PublishResult{}, err
	}
	res, err := p.pub.Publish(ctx, msg)
	if err != nil {
		return m, mq.PublishResult{}, err
	}
	zlog.Info("rag ingest queued",
		zap.String("request_id", m.RequestID),
		zap.String("key", m.Key()),
		zap.Int32("partition", res.Partition),
		zap.Int64("offset", res.Offset))
	return m, res, nil
}

func (p *IngestPublisher) Topic() string { return p.topic }

func (p *IngestPublisher) Close() error { return p.pub.Close() }
