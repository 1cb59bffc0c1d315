package llm

import (
	"context"
	"strings"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/domain/repository"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const imageSummaryPrompt = "Describe this image in 1-3 sentences for a knowledge base. " +
	"Focus on text, diagrams and key facts. Reply with plain text only."

// VisionSummarizer 借助多模态模型为文档中的图片生成文字描述
type VisionSummarizer struct {
	chatModel model.BaseChatModel
}

var _ repository.ImageSummarizer = (*VisionSummarizer)(nil)

func NewVisionSummarizer(cm model.BaseChatModel) *VisionSummarizer {
	return &VisionSummarizer{chatModel: cm}
}

func (s *VisionSummarizer) SummarizeImage(ctx context.Context, url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", rag.Validationf("image url is empty")
	}
	if s == nil || s.chatModel == nil {
		return "", rag.Validationf("vision model not configured")
	}

	msg := &schema.Message{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: imageSummaryPrompt},
			{Type: schema.ChatMessagePartTypeImageURL, ImageURL: &schema.ChatMessageImageURL{URL: url, Detail: schema.ImageURLDetailAuto}},
		},
	}
	resp, err := s.chatModel.Generate(ctx, []*schema.Message{msg})
	if err != nil {
		return "", rag.Stage(rag.StageAnswer, err)
	}
	if resp == nil {
		return "", nil
	}
	return strings.TrimSpace(resp.Content), nil
}
