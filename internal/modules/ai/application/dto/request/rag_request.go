package request

// AskRequest 提问请求
type AskRequest struct {
	Question string `json:"question" binding:"required"` // 用户问题（必填）
	TopK     int    `json:"top_k"`                       // 每个 domain 的召回数量，<=0 使用配置值
	// Domains 为空时检索全部配置的 domain
	Domains     []string `json:"domains,omitempty"`
	SourceTypes []string `json:"source_types,omitempty"` // 按来源类型过滤
}

// IngestRequest 摄取请求；RAW_TEXT 需要 content，其余类型由连接器拉取内容
type IngestRequest struct {
	Domain     string `json:"domain" binding:"required"`
	SourceType string `json:"source_type" binding:"required"`
	SourceID   string `json:"source_id" binding:"required"`
	Title      string `json:"title,omitempty"`
	Content    string `json:"content,omitempty"`
	Force      bool   `json:"force,omitempty"`
}
