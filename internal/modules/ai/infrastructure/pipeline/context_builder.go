package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"koo/internal/modules/ai/domain/rag"
)

// DefaultContextMaxChars 提示上下文的默认字符预算
const DefaultContextMaxChars = 6000

// FormatBlock 渲染一个带序号的上下文块，idx 从 1 开始
func FormatBlock(idx int, h rag.RetrievalHit) string {
	ctxID := 0
	if h.Chunk != nil {
		ctxID = h.Chunk.ContextID
	}
	return fmt.Sprintf("[%d] chunk_id=%d score=%.4f context_id=%d\n%s\n",
		idx, h.ChunkID, h.Score, ctxID, strings.TrimSpace(h.Text()))
}

// PackBlocks 按顺序装入预算内的块，第一次溢出即停止，返回装入的前缀
func PackBlocks(blocks []string, budget int) []string {
	if budget <= 0 {
		budget = DefaultContextMaxChars
	}
	total := 0
	for i, b := range blocks {
		n := utf8.RuneCountInString(b)
		if total+n > budget {
			return blocks[:i]
		}
		total += n
	}
	return blocks
}

// BuildPromptContext 将扩展后的命中组装为有界的提示上下文
func BuildPromptContext(hits []rag.RetrievalHit, budget int) rag.PromptContext {
	blocks := make([]string, 0, len(hits))
	for i, h := range hits {
		blocks = append(blocks, FormatBlock(i+1, h))
	}
	kept := PackBlocks(blocks, budget)
	return rag.PromptContext{
		Text: strings.Join(kept, "\n"),
		Hits: hits[:len(kept)],
	}
}
