package kafka

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"koo/internal/modules/ai/domain/rag"
	"koo/pkg/zlog"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type TopicAdminConfig struct {
	Brokers  []string
	ClientID string
}

// TopicSpec 需要确保存在的 topic
type TopicSpec struct {
	Name        string
	Partitions  int32
	Replication int16
	Retention   time.Duration
}

func (s TopicSpec) detail() *sarama.TopicDetail {
	partitions := s.Partitions
	if partitions <= 0 {
		partitions = 1
	}
	replication := s.Replication
	if replication <= 0 {
		replication = 1
	}
	retention := s.Retention
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &sarama.TopicDetail{
		NumPartitions:     partitions,
		ReplicationFactor: replication,
		ConfigEntries: map[string]*string{
			"retention.ms": strPtr(strconv.FormatInt(retention.Milliseconds(), 10)),
		},
	}
}

// EnsureTopic topic 已存在时直接返回
func EnsureTopic(cfg TopicAdminConfig, spec TopicSpec) error {
	brokers, err := requireBrokers(cfg.Brokers)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return rag.Validationf("kafka topic is empty")
	}

	admin, err := sarama.NewClusterAdmin(brokers, baseConfig(cfg.ClientID))
	if err != nil {
		return rag.Stage("kafka admin", err)
	}
	defer admin.Close()

	topics, err := admin.ListTopics()
	if err != nil {
		return rag.Stage("kafka admin", err)
	}
	if _, ok := topics[name]; ok {
		return nil
	}

	td := spec.detail()
	if err := admin.CreateTopic(name, td, false); err != nil {
		if errors.Is(err, sarama.ErrTopicAlreadyExists) {
			return nil
		}
		return rag.Stage("kafka admin", err)
	}
	zlog.Info("kafka topic created",
		zap.String("topic", name),
		zap.Int32("partitions", td.NumPartitions),
		zap.Int16("replication", td.ReplicationFactor))
	return nil
}

func strPtr(v string) *string {
	s := v
	return &s
}
