package mq

import (
	"encoding/json"
	"strings"
	"time"

	"koo/internal/modules/ai/domain/rag"
)

// IngestMessage 异步摄取请求，JSON 编码后写入摄取 topic
type IngestMessage struct {
	RequestID   string         `json:"request_id"`
	Domain      rag.Domain     `json:"domain"`
	SourceType  rag.SourceType `json:"source_type"`
	SourceID    string         `json:"source_id"`
	Title       string         `json:"title,omitempty"`
	Content     string         `json:"content,omitempty"`
	Force       bool           `json:"force,omitempty"`
	RequestedAt time.Time      `json:"requested_at"`
}

// Key 同一来源的消息落在同一分区，保证按顺序处理
func (m IngestMessage) Key() string {
	return string(m.SourceType) + ":" + m.SourceID
}

// Validate 检查路由所需字段
func (m IngestMessage) Validate() error {
	if _, err := rag.ParseDomain(string(m.Domain)); err != nil {
		return err
	}
	if _, err := rag.ParseSourceType(string(m.SourceType)); err != nil {
		return err
	}
	if strings.TrimSpace(m.SourceID) == "" {
		return rag.Validationf("source id is required")
	}
	return nil
}

// EncodeIngest 编码为待发送的消息
func EncodeIngest(topic string, m IngestMessage) (Message, error) {
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	bs, err := json.Marshal(m)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Topic: topic,
		Key:   []byte(m.Key()),
		Value: bs,
		Headers: map[string]string{
			HeaderRequestID:  m.RequestID,
			HeaderSourceType: string(m.SourceType),
		},
	}, nil
}

// DecodeIngest 解析消息体
func DecodeIngest(msg Message) (IngestMessage, error) {
	var m IngestMessage
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		return IngestMessage{}, rag.Validationf("decode ingest message: %v", err)
	}
	if err := m.Validate(); err != nil {
		return IngestMessage{}, err
	}
	return m, nil
}
