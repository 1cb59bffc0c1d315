package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockChatModel 离线模型：引用上下文第一块作答，用于 mock 模式与单测
type MockChatModel struct{}

var _ model.BaseChatModel = (*MockChatModel)(nil)

func NewMockChatModel() *MockChatModel { return &MockChatModel{} }

func (m *MockChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	var last string
	for _, msg := range input {
		if msg != nil && msg.Role == schema.User {
			last = msg.Content
		}
	}

	first := firstContextBlock(last)
	out := map[string]any{
		"answer":     "I don't know based on the provided context.",
		"sources":    []int{},
		"confidence": 0.0,
	}
	if first != "" {
		out["answer"] = first
		out["sources"] = []int{1}
		out["confidence"] = 0.5
	}
	bs, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return &schema.Message{
		Role:    schema.Assistant,
		Content: string(bs),
		ResponseMeta: &schema.ResponseMeta{
			Usage: &schema.TokenUsage{
				PromptTokens:     utf8.RuneCountInString(last) / 4,
				CompletionTokens: utf8.RuneCount(bs) / 4,
				TotalTokens:      utf8.RuneCountInString(last)/4 + utf8.RuneCount(bs)/4,
			},
		},
	}, nil
}

func (m *MockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// firstContextBlock 取出 [1] 号上下文块的正文首行
func firstContextBlock(prompt string) string {
	idx := strings.Index(prompt, "[1] chunk_id=")
	if idx < 0 {
		return ""
	}
	rest := prompt[idx:]
	lines := strings.SplitN(rest, "\n", 3)
	if len(lines) < 2 {
		return ""
	}
	return fmt.Sprintf("From context [1]: %s", strings.TrimSpace(lines[1]))
}
