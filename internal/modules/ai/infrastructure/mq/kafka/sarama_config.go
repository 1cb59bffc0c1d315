package kafka

import (
	"sort"
	"strings"
	"time"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/infrastructure/mq"

	"github.com/IBM/sarama"
)

var kafkaVersion = sarama.V2_8_0_0

func baseConfig(clientID string) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Version = kafkaVersion
	if id := strings.TrimSpace(clientID); id != "" {
		sc.ClientID = id
	}
	return sc
}

func producerConfig(clientID string) *sarama.Config {
	sc := baseConfig(clientID)
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 10
	sc.Producer.Retry.Backoff = 100 * time.Millisecond
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	return sc
}

func consumerConfig(clientID string) *sarama.Config {
	sc := baseConfig(clientID)
	// 摄取请求不能因为消费组首次启动而丢失
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Group.Rebalance.Timeout = 30 * time.Second
	sc.Consumer.Group.Session.Timeout = 30 * time.Second
	return sc
}

func requireBrokers(brokers []string) ([]string, error) {
	out := make([]string, 0, len(brokers))
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, rag.Validationf("kafka brokers is empty")
	}
	return out, nil
}

// toProducerMessage 头部按 key 排序，便于测试与排查
func toProducerMessage(msg mq.Message) *sarama.ProducerMessage {
	m := &sarama.ProducerMessage{
		Topic: msg.Topic,
		Value: sarama.ByteEncoder(msg.Value),
	}
	if len(msg.Key) > 0 {
		m.Key = sarama.ByteEncoder(msg.Key)
	}
	if len(msg.Headers) > 0 {
		keys := make([]string, 0, len(msg.Headers))
		for k := range msg.Headers {
			if strings.TrimSpace(k) != "" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		m.Headers = make([]sarama.RecordHeader, 0, len(keys))
		for _, k := range keys {
			m.Headers = append(m.Headers, sarama.RecordHeader{
				Key:   []byte(strings.TrimSpace(k)),
				Value: []byte(msg.Headers[k]),
			})
		}
	}
	return m
}

func fromConsumerMessage(m *sarama.ConsumerMessage) mq.Message {
	msg := mq.Message{
		Topic: m.Topic,
		Key:   m.Key,
		Value: m.Value,
	}
	if len(m.Headers) > 0 {
		msg.Headers = make(map[string]string, len(m.Headers))
		for _, hdr := range m.Headers {
			if hdr == nil || len(hdr.Key) == 0 {
				continue
			}
			msg.Headers[string(hdr.Key)] = string(hdr.Value)
		}
	}
	return msg
}
