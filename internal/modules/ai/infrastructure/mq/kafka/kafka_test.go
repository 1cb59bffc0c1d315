package kafka

import (
	"testing"
	"time"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/infrastructure/mq"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToProducerMessage(t *testing.T) {
	m := toProducerMessage(mq.Message{
		Topic:   "ingest",
		Key:     []byte("RAW_TEXT:a"),
		Value:   []byte(`{}`),
		Headers: map[string]string{"b": "2", "a": "1", " ": "skip"},
	})
	assert.Equal(t, "ingest", m.Topic)
	require.Len(t, m.Headers, 2)
	assert.Equal(t, "a", string(m.Headers[0].Key))
	assert.Equal(t, "b", string(m.Headers[1].Key))

	key, err := m.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "RAW_TEXT:a", string(key))

	assert.Nil(t, toProducerMessage(mq.Message{Topic: "t"}).Key)
}

func TestFromConsumerMessage(t *testing.T) {
	msg := fromConsumerMessage(&sarama.ConsumerMessage{
		Topic: "ingest",
		Key:   []byte("k"),
		Value: []byte("v"),
		Headers: []*sarama.RecordHeader{
			{Key: []byte(mq.HeaderRequestID), Value: []byte("r-1")},
			nil,
			{Key: nil, Value: []byte("x")},
		},
	})
	assert.Equal(t, "ingest", msg.Topic)
	assert.Equal(t, map[string]string{mq.HeaderRequestID: "r-1"}, msg.Headers)
}

func TestTopicSpecDefaults(t *testing.T) {
	td := TopicSpec{Name: "t"}.detail()
	assert.Equal(t, int32(1), td.NumPartitions)
	assert.Equal(t, int16(1), td.ReplicationFactor)
	assert.Equal(t, "604800000", *td.ConfigEntries["retention.ms"])

	td = TopicSpec{Name: "t", Partitions: 3, Replication: 2, Retention: time.Hour}.detail()
	assert.Equal(t, int32(3), td.NumPartitions)
	assert.Equal(t, "3600000", *td.ConfigEntries["retention.ms"])
}

func TestConstructorsValidate(t *testing.T) {
	_, err := NewPublisher(PublisherConfig{Brokers: []string{" "}})
	assert.ErrorIs(t, err, rag.ErrValidation)

	_, err = NewConsumer(ConsumerConfig{Brokers: []string{"localhost:9092"}})
	assert.ErrorIs(t, err, rag.ErrValidation)

	_, err = NewConsumer(ConsumerConfig{Brokers: []string{"localhost:9092"}, GroupID: "g"})
	assert.ErrorIs(t, err, rag.ErrValidation)

	err = EnsureTopic(TopicAdminConfig{Brokers: []string{"localhost:9092"}}, TopicSpec{})
	assert.ErrorIs(t, err, rag.ErrValidation)
}

func TestConsumerConfigStartsFromOldest(t *testing.T) {
	sc := consumerConfig("koo")
	assert.Equal(t, sarama.OffsetOldest, sc.Consumer.Offsets.Initial)
	assert.Equal(t, "koo", sc.ClientID)
	assert.True(t, producerConfig("").Producer.Idempotent)
}
