package pipeline

import (
	"context"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/domain/repository"

	"github.com/cloudwego/eino/compose"
)

// DefaultTopK 每个 domain 的召回数量，同时也是合并后选中的数量
const DefaultTopK = 8

// NoContextAnswer 没有任何可用上下文时的固定回答
const NoContextAnswer = "I don't know: no relevant context was found in the knowledge base. Could you rephrase or add more detail?"

// AskRequest 一次提问
type AskRequest struct {
	Question string
	// TopK <=0 时使用 Pipeline 默认值
	TopK int
	// Domains 为空时检索全部配置的 domain
	Domains []rag.Domain
	Filter  repository.SearchFilter
}

// AskResult 提问结果；Hits 为扩展前的排序命中，用于展示与引用
type AskResult struct {
	QueryLogID int64              `json:"query_log_id"`
	TraceID    string             `json:"trace_id"`
	Question   string             `json:"question"`
	TopK       int                `json:"topk"`
	Answer     string             `json:"answer"`
	Sources    []int              `json:"sources"`
	Confidence float64            `json:"confidence"`
	Hits       []rag.RetrievalHit `json:"-"`
	Selected   []rag.RetrievalHit `json:"-"`
	Expanded   []rag.RetrievalHit `json:"-"`
	Context    rag.PromptContext  `json:"-"`
	Usage      rag.Usage          `json:"usage"`
	DurationMs int64              `json:"duration_ms"`
}

// AskDeps 检索 Pipeline 的协作方
type AskDeps struct {
	Chunks          repository.ChunkRepository
	QueryLogs       repository.QueryLogRepository
	Index           repository.VectorIndex
	Embedder        repository.Embedder
	Answerer        repository.Answerer
	Domains         []rag.Domain
	TopK            int
	ContextMaxChars int
}

// AskPipeline 回答一个问题：按 domain 扇出检索、合并排序、结构块扩展、组装上下文、生成回答并写查询日志
type AskPipeline struct {
	chunks          repository.ChunkRepository
	queryLogs       repository.QueryLogRepository
	index           repository.VectorIndex
	embedder        repository.Embedder
	answerer        repository.Answerer
	domains         []rag.Domain
	topK            int
	contextMaxChars int
	r               compose.Runnable[*AskRequest, *AskResult]
}

func NewAskPipeline(deps AskDeps) (*AskPipeline, error) {
	if deps.Chunks == nil || deps.QueryLogs == nil {
		return nil, rag.Validationf("content store is nil")
	}
	if deps.Index == nil {
		return nil, rag.Validationf("vector index is nil")
	}
	if deps.Embedder == nil {
		return nil, rag.Validationf("embedder is nil")
	}
	if deps.Answerer == nil {
		return nil, rag.Validationf("answerer is nil")
	}
	p := &AskPipeline{
		chunks:          deps.Chunks,
		queryLogs:       deps.QueryLogs,
		index:           deps.Index,
		embedder:        deps.Embedder,
		answerer:        deps.Answerer,
		domains:         append([]rag.Domain(nil), deps.Domains...),
		topK:            deps.TopK,
		contextMaxChars: deps.ContextMaxChars,
	}
	if p.topK <= 0 {
		p.topK = DefaultTopK
	}
	if p.contextMaxChars <= 0 {
		p.contextMaxChars = DefaultContextMaxChars
	}
	r, err := p.buildGraph(context.Background())
	if err != nil {
		return nil, err
	}
	p.r = r
	return p, nil
}

// Ask 执行一次提问
func (p *AskPipeline) Ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	if p.r == nil {
		return nil, rag.Validationf("pipeline runnable is nil")
	}
	return p.r.Invoke(ctx, &req)
}

// TopK 默认召回数量
func (p *AskPipeline) TopK() int { return p.topK }

// Domains 默认检索的 domain
func (p *AskPipeline) Domains() []rag.Domain { return append([]rag.Domain(nil), p.domains...) }
