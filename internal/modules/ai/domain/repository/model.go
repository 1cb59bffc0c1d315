package repository

import (
	"context"

	"koo/internal/modules/ai/domain/rag"
)

// Embedder 文本向量化
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// EmbedDocuments 一次调用完成整批，返回顺序与输入一致
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	Dim() int
}

// Answerer 基于已组装的上下文生成回答
type Answerer interface {
	Answer(ctx context.Context, question string, pc rag.PromptContext) (*rag.Answer, rag.Usage, error)
}

// ImageSummarizer 将图片总结为可索引的文本，只供来源适配器使用
type ImageSummarizer interface {
	SummarizeImage(ctx context.Context, imageURL string) (string, error)
}
