package rag

// SearchResult 向量索引返回的原始命中
type SearchResult struct {
	ChunkID int64
	Score   float64
}

// RetrievalHit 一次检索的命中快照，不落库
type RetrievalHit struct {
	ChunkID int64
	Chunk   *Chunk
	Score   float64
	Domain  Domain
}

// ContextKey 结构块的唯一标识
type ContextKey struct {
	DocumentID int64
	ContextID  int
}

// Key 返回命中所在的结构块
func (h RetrievalHit) Key() ContextKey {
	if h.Chunk == nil {
		return ContextKey{}
	}
	return ContextKey{DocumentID: h.Chunk.DocumentID, ContextID: h.Chunk.ContextID}
}

// Text 命中的文本，快照缺失时为空
func (h RetrievalHit) Text() string {
	if h.Chunk == nil {
		return ""
	}
	return h.Chunk.ChunkText
}

// ChunkIDs 按顺序提取 chunk id
func ChunkIDs(hits []RetrievalHit) []int64 {
	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ChunkID)
	}
	return ids
}

// Answer 回答服务的结构化输出，Sources 为上下文中 1 起始的序号
type Answer struct {
	Answer     string  `json:"answer"`
	Sources    []int   `json:"sources"`
	Confidence float64 `json:"confidence"`
}

// Usage token 用量
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// PromptContext 组装好的提示上下文，Hits[i] 对应序号 i+1 的块
type PromptContext struct {
	Text string
	Hits []RetrievalHit
}
