package respond

import "time"

// AskHit 排序后的单个命中
type AskHit struct {
	Rank       int     `json:"rank"`
	ChunkID    int64   `json:"chunk_id"`
	DocumentID int64   `json:"document_id"`
	ContextID  int     `json:"context_id"`
	Domain     string  `json:"domain"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// AskRespond 提问响应
type AskRespond struct {
	QueryLogID       int64      `json:"query_log_id"`
	TraceID          string     `json:"trace_id"`
	Question         string     `json:"question"`
	TopK             int        `json:"topk"`
	Answer           string     `json:"answer"`
	Sources          []int      `json:"sources"`
	Confidence       float64    `json:"confidence"`
	Hits             []AskHit   `json:"hits"`
	SelectedChunkIDs []int64    `json:"selected_chunk_ids"`
	ExpandedChunkIDs []int64    `json:"expanded_chunk_ids"`
	ContextBlocks    int        `json:"context_blocks"`
	Usage            TokenUsage `json:"usage"`
	DurationMs       int64      `json:"duration_ms"`
}

// IngestRespond 同步摄取结果
type IngestRespond struct {
	DocumentID int64   `json:"document_id"`
	Domain     string  `json:"domain"`
	SourceType string  `json:"source_type"`
	SourceID   string  `json:"source_id"`
	Version    int     `json:"version"`
	Outcome    string  `json:"outcome"`
	Unchanged  bool    `json:"unchanged"`
	ChunkCount int     `json:"chunk_count"`
	ChunkIDs   []int64 `json:"chunk_ids"`
	DurationMs int64   `json:"duration_ms"`
}

// AsyncIngestRespond 已入队的摄取请求
type AsyncIngestRespond struct {
	RequestID string `json:"request_id"`
	Topic     string `json:"topic"`
	Key       string `json:"key"`
	Partition int32  `json:"partition"`
	Offset    int64  `json:"offset"`
}

// QueryLogRespond 查询日志详情
type QueryLogRespond struct {
	ID               int64              `json:"id"`
	QueryText        string             `json:"query_text"`
	TopK             int                `json:"topk"`
	SelectedChunkIDs []int64            `json:"selected_chunk_ids"`
	ExpandedChunkIDs []int64            `json:"expanded_chunk_ids"`
	HitChunkIDs      map[string][]int64 `json:"hit_chunk_ids"`
	Answer           string             `json:"answer"`
	Usage            TokenUsage         `json:"usage"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}
