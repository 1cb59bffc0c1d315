package kafka

import (
	"context"
	"errors"
	"strings"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/infrastructure/mq"
	"koo/pkg/zlog"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topics   []string
	ClientID string
}

type saramaConsumer struct {
	cg     sarama.ConsumerGroup
	topics []string
}

func NewConsumer(cfg ConsumerConfig) (mq.Consumer, error) {
	brokers, err := requireBrokers(cfg.Brokers)
	if err != nil {
		return nil, err
	}
	group := strings.TrimSpace(cfg.GroupID)
	if group == "" {
		return nil, rag.Validationf("kafka consumer group id is empty")
	}
	if len(cfg.Topics) == 0 {
		return nil, rag.Validationf("kafka topics is empty")
	}

	cg, err := sarama.NewConsumerGroup(brokers, group, consumerConfig(cfg.ClientID))
	if err != nil {
		return nil, rag.Stage("kafka consumer", err)
	}
	return &saramaConsumer{cg: cg, topics: cfg.Topics}, nil
}

// Run 阻塞直到 ctx 结束，每次 rebalance 后重新加入消费组
func (c *saramaConsumer) Run(ctx context.Context, handler mq.Handler) error {
	if handler == nil {
		return rag.Validationf("handler is nil")
	}
	h := &consumerGroupHandler{h: handler}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.cg.Consume(ctx, c.topics, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return rag.Stage("kafka consumer", err)
		}
	}
}

func (c *saramaConsumer) Close() error {
	if c == nil {
		return nil
	}
	return c.cg.Close()
}

type consumerGroupHandler struct {
	h mq.Handler
}

func (consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for m := range claim.Messages() {
		if err := h.h.Handle(sess.Context(), fromConsumerMessage(m)); err != nil {
			zlog.Warn("kafka message not acknowledged",
				zap.String("topic", m.Topic),
				zap.Int32("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
			continue
		}
		sess.MarkMessage(m, "")
	}
	return nil
}
