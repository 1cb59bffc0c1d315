package kafka

import (
	"context"
	"strings"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/infrastructure/mq"

	"github.com/IBM/sarama"
)

type PublisherConfig struct {
	Brokers  []string
	ClientID string
}

type saramaPublisher struct {
	p sarama.SyncProducer
}

// NewPublisher 幂等同步生产者，等待全部副本确认
func NewPublisher(cfg PublisherConfig) (mq.Publisher, error) {
	brokers, err := requireBrokers(cfg.Brokers)
	if err != nil {
		return nil, err
	}
	p, err := sarama.NewSyncProducer(brokers, producerConfig(cfg.ClientID))
	if err != nil {
		return nil, rag.Stage("kafka producer", err)
	}
	return &saramaPublisher{p: p}, nil
}

func (s *saramaPublisher) Publish(ctx context.Context, msg mq.Message) (mq.PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return mq.PublishResult{}, err
	}
	if strings.TrimSpace(msg.Topic) == "" {
		return mq.PublishResult{}, rag.Validationf("kafka topic is empty")
	}

	partition, offset, err := s.p.SendMessage(toProducerMessage(msg))
	if err != nil {
		return mq.PublishResult{}, rag.Stage("kafka producer", err)
	}
	return mq.PublishResult{Partition: partition, Offset: offset}, nil
}

func (s *saramaPublisher) Close() error {
	if s == nil || s.p == nil {
		return nil
	}
	return s.p.Close()
}
