package initial

import (
	"koo/internal/config"
	"koo/internal/modules/ai/infrastructure/mq/kafka"
)

// EnsureKafkaTopic 确保摄取 topic 存在
func EnsureKafkaTopic(conf *config.Config) error {
	k := conf.KafkaConfig
	return kafka.EnsureTopic(
		kafka.TopicAdminConfig{Brokers: k.Brokers, ClientID: k.ClientID},
		kafka.TopicSpec{Name: k.IngestTopic, Partitions: k.Partitions, Replication: k.Replication},
	)
}
