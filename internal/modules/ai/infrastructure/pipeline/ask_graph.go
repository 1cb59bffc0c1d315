package pipeline

import (
	"context"
	"strings"
	"time"

	"koo/internal/modules/ai/domain/rag"
	"koo/pkg/util"
	"koo/pkg/zlog"

	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// askState 检索 Pipeline 在节点间传递的中间状态
type askState struct {
	Req     *AskRequest
	TraceID string
	TopK    int
	Domains []rag.Domain
	Log     *rag.QueryLog

	QueryVec  []float32
	PerDomain [][]rag.RetrievalHit
	Hits      []rag.RetrievalHit
	Selected  []rag.RetrievalHit
	Expanded  []rag.RetrievalHit
	Context   rag.PromptContext
	Answer    *rag.Answer
	Usage     rag.Usage

	Start    time.Time
	EmbedMs  int64
	SearchMs int64
	ExpandMs int64
	AnswerMs int64
	Err      error
}

// buildGraph 节点顺序：CreateLog → EmbedQuery → FanOut → Merge → Expand → BuildContext → Answer → FinishLog
func (p *AskPipeline) buildGraph(ctx context.Context) (compose.Runnable[*AskRequest, *AskResult], error) {
	const (
		CreateLog    = "CreateLog"
		EmbedQuery   = "EmbedQuery"
		FanOut       = "FanOut"
		Merge        = "Merge"
		Expand       = "Expand"
		BuildContext = "BuildContext"
		Answer       = "Answer"
		FinishLog    = "FinishLog"
	)
	g := compose.NewGraph[*AskRequest, *AskResult]()

	_ = g.AddLambdaNode(CreateLog, compose.InvokableLambdaWithOption(p.createLogNode), compose.WithNodeName(CreateLog))
	_ = g.AddLambdaNode(EmbedQuery, compose.InvokableLambdaWithOption(p.embedQueryNode), compose.WithNodeName(EmbedQuery))
	_ = g.AddLambdaNode(FanOut, compose.InvokableLambdaWithOption(p.fanOutNode), compose.WithNodeName(FanOut))
	_ = g.AddLambdaNode(Merge, compose.InvokableLambdaWithOption(p.mergeNode), compose.WithNodeName(Merge))
	_ = g.AddLambdaNode(Expand, compose.InvokableLambdaWithOption(p.expandNode), compose.WithNodeName(Expand))
	_ = g.AddLambdaNode(BuildContext, compose.InvokableLambdaWithOption(p.buildContextNode), compose.WithNodeName(BuildContext))
	_ = g.AddLambdaNode(Answer, compose.InvokableLambdaWithOption(p.answerNode), compose.WithNodeName(Answer))
	_ = g.AddLambdaNode(FinishLog, compose.InvokableLambdaWithOption(p.finishLogNode), compose.WithNodeName(FinishLog))

	_ = g.AddEdge(compose.START, CreateLog)
	_ = g.AddEdge(CreateLog, EmbedQuery)
	_ = g.AddEdge(EmbedQuery, FanOut)
	_ = g.AddEdge(FanOut, Merge)
	_ = g.AddEdge(Merge, Expand)
	_ = g.AddEdge(Expand, BuildContext)
	_ = g.AddEdge(BuildContext, Answer)
	_ = g.AddEdge(Answer, FinishLog)
	_ = g.AddEdge(FinishLog, compose.END)

	return g.Compile(ctx, compose.WithGraphName("RAGAskPipeline"), compose.WithNodeTriggerMode(compose.AllPredecessor))
}

// createLogNode 节点 1：校验问题并先写查询日志，中途失败也可追溯
func (p *AskPipeline) createLogNode(ctx context.Context, req *AskRequest, _ ...any) (*askState, error) {
	st := &askState{Req: req, Start: time.Now(), TraceID: util.GenerateShortUUID()}
	if req == nil {
		st.Err = rag.Validationf("nil request")
		return st, nil
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		st.Err = rag.Validationf("question is empty")
		return st, nil
	}

	st.TopK = req.TopK
	if st.TopK <= 0 {
		st.TopK = p.topK
	}
	st.Domains = req.Domains
	if len(st.Domains) == 0 {
		st.Domains = p.domains
	}

	if err := ctx.Err(); err != nil {
		st.Err = err
		return st, nil
	}
	log := &rag.QueryLog{
		QueryText: req.Question,
		TopK:      st.TopK,
		Meta:      rag.QueryLogMeta{TopK: st.TopK},
	}
	if err := p.queryLogs.Create(ctx, log); err != nil {
		st.Err = rag.Stage(rag.StageContentStore, err)
		return st, nil
	}
	st.Log = log
	return st, nil
}

// embedQueryNode 节点 2：问题向量化，只做一次，所有 domain 共用
func (p *AskPipeline) embedQueryNode(ctx context.Context, st *askState, _ ...any) (*askState, error) {
	if st.Err != nil || len(st.Domains) == 0 {
		return st, nil
	}
	start := time.Now()
	vec, err := p.embedder.EmbedQuery(ctx, st.Req.Question)
	if err != nil {
		st.Err = rag.Stage(rag.StageEmbedding, err)
		return st, nil
	}
	if len(vec) == 0 {
		st.Err = rag.Stage(rag.StageEmbedding, rag.Validationf("query embedding is empty"))
		return st, nil
	}
	st.QueryVec = vec
	st.EmbedMs = time.Since(start).Milliseconds()
	return st, nil
}

// fanOutNode 节点 3：各 domain 相互独立地检索 top-k 并批量解析 chunk，合并节点作为汇合点
func (p *AskPipeline) fanOutNode(ctx context.Context, st *askState, _ ...any) (*askState, error) {
	if st.Err != nil || len(st.Domains) == 0 {
		return st, nil
	}
	start := time.Now()
	perDomain := make([][]rag.RetrievalHit, len(st.Domains))
	metric := p.index.Metric()

	eg, gctx := errgroup.WithContext(ctx)
	for i, d := range st.Domains {
		eg.Go(func() error {
			results, err := p.index.Search(gctx, d, st.QueryVec, st.TopK, st.Req.Filter)
			if err != nil {
				return rag.Stage(rag.StageVectorIndex, err)
			}
			if len(results) == 0 {
				perDomain[i] = []rag.RetrievalHit{}
				return nil
			}
			ids := make([]int64, 0, len(results))
			for _, r := range results {
				ids = append(ids, r.ChunkID)
			}
			chunks, err := p.chunks.GetByIDs(gctx, ids)
			if err != nil {
				return rag.Stage(rag.StageContentStore, err)
			}
			perDomain[i] = ResolveHits(d, results, chunks, metric)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		st.Err = err
		return st, nil
	}
	st.PerDomain = perDomain
	st.SearchMs = time.Since(start).Milliseconds()
	return st, nil
}

// mergeNode 节点 4：全局排序并选出前 top-k
func (p *AskPipeline) mergeNode(ctx context.Context, st *askState, _ ...any) (*askState, error) {
	_ = ctx
	if st.Err != nil {
		return st, nil
	}
	st.Hits = MergeHits(st.PerDomain)
	st.Selected = SelectTop(st.Hits, st.TopK)
	return st, nil
}

// expandNode 节点 5：按结构块扩展上下文
func (p *AskPipeline) expandNode(ctx context.Context, st *askState, _ ...any) (*askState, error) {
	if st.Err != nil {
		return st, nil
	}
	start := time.Now()
	expanded, err := ExpandHits(ctx, p.chunks, st.Selected)
	if err != nil {
		st.Err = rag.Stage(rag.StageContentStore, err)
		return st, nil
	}
	st.Expanded = expanded
	st.ExpandMs = time.Since(start).Milliseconds()
	return st, nil
}

// buildContextNode 节点 6：按顺序装入字符预算
func (p *AskPipeline) buildContextNode(ctx context.Context, st *askState, _ ...any) (*askState, error) {
	_ = ctx
	if st.Err != nil {
		return st, nil
	}
	st.Context = BuildPromptContext(st.Expanded, p.contextMaxChars)
	return st, nil
}

// answerNode 节点 7：调用回答服务；没有上下文时直接给出固定回答
func (p *AskPipeline) answerNode(ctx context.Context, st *askState, _ ...any) (*askState, error) {
	if st.Err != nil {
		return st, nil
	}
	if len(st.Context.Hits) == 0 {
		st.Answer = &rag.Answer{Answer: NoContextAnswer, Sources: []int{}}
		return st, nil
	}
	start := time.Now()
	ans, usage, err := p.answerer.Answer(ctx, st.Req.Question, st.Context)
	if err != nil {
		st.Err = rag.Stage(rag.StageAnswer, err)
		return st, nil
	}
	if ans == nil {
		ans = &rag.Answer{Sources: []int{}}
	}
	st.Answer = ans
	st.Usage = usage
	st.AnswerMs = time.Since(start).Milliseconds()
	return st, nil
}

// finishLogNode 节点 8：补全查询日志并组装结果
func (p *AskPipeline) finishLogNode(ctx context.Context, st *askState, _ ...any) (*AskResult, error) {
	if st == nil {
		return nil, rag.Validationf("nil state")
	}

	if st.Err == nil && st.Log != nil {
		selected := rag.ChunkIDs(st.Selected)
		expanded := rag.ChunkIDs(st.Expanded)
		meta := rag.QueryLogMeta{
			TopK:             st.TopK,
			HitChunkIDs:      hitIDsByDomain(st.Domains, st.PerDomain),
			SelectedChunkIDs: selected,
			ExpendedChunkIDs: expanded,
		}
		updated, err := p.queryLogs.Update(ctx, st.Log.ID, rag.QueryLogUpdate{
			SelectedChunkIDs: &selected,
			ExpendedChunkIDs: &expanded,
			Answer:           rag.Ptr(st.Answer.Answer),
			InputTokens:      rag.Ptr(st.Usage.InputTokens),
			OutputTokens:     rag.Ptr(st.Usage.OutputTokens),
			Meta:             &meta,
		})
		if err != nil {
			st.Err = rag.Stage(rag.StageContentStore, err)
		} else {
			st.Log = updated
		}
	}

	res := &AskResult{
		TraceID:  st.TraceID,
		TopK:     st.TopK,
		Sources:  []int{},
		Hits:     nonNil(st.Hits),
		Selected: nonNil(st.Selected),
		Expanded: nonNil(st.Expanded),
		Context:  st.Context,
		Usage:    st.Usage,
	}
	if st.Req != nil {
		res.Question = st.Req.Question
	}
	if st.Log != nil {
		res.QueryLogID = st.Log.ID
	}
	if st.Answer != nil {
		res.Answer = st.Answer.Answer
		res.Sources = st.Answer.Sources
		res.Confidence = st.Answer.Confidence
	}
	res.DurationMs = time.Since(st.Start).Milliseconds()

	domains := make([]string, 0, len(st.Domains))
	for _, d := range st.Domains {
		domains = append(domains, d.String())
	}
	fields := []zap.Field{
		zap.String("trace_id", res.TraceID),
		zap.Int64("query_log_id", res.QueryLogID),
		zap.String("question", util.TruncateRunes(util.OneLine(res.Question), 120)),
		zap.Strings("domains", domains),
		zap.Int("topk", res.TopK),
		zap.Int("hits", len(res.Hits)),
		zap.Int64s("selected_chunk_ids", rag.ChunkIDs(res.Selected)),
		zap.Int("expanded", len(res.Expanded)),
		zap.Int("context_blocks", len(res.Context.Hits)),
		zap.Int("input_tokens", res.Usage.InputTokens),
		zap.Int("output_tokens", res.Usage.OutputTokens),
		zap.Int64("embed_ms", st.EmbedMs),
		zap.Int64("search_ms", st.SearchMs),
		zap.Int64("expand_ms", st.ExpandMs),
		zap.Int64("answer_ms", st.AnswerMs),
		zap.Int64("duration_ms", res.DurationMs),
	}
	if st.Err != nil {
		zlog.Error("rag ask done", append(fields, zap.Error(st.Err))...)
	} else {
		zlog.Info("rag ask done", fields...)
	}
	return res, st.Err
}

func nonNil(hits []rag.RetrievalHit) []rag.RetrievalHit {
	if hits == nil {
		return []rag.RetrievalHit{}
	}
	return hits
}
