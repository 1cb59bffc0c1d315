package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"koo/internal/config"
	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/infrastructure/pipeline"
	"koo/internal/modules/ai/infrastructure/source"
	"koo/pkg/zlog"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultRunTimeout 单次同步的超时
const DefaultRunTimeout = 10 * time.Minute

type SourceIngester interface {
	IngestSource(ctx context.Context, spec source.Spec, force bool) (*pipeline.IngestResult, error)
}

// SyncScheduler 按 cron 表达式重新同步外部来源，内容未变化时摄取是空操作
type SyncScheduler struct {
	cron     *cron.Cron
	ingester SourceIngester
	timeout  time.Duration

	mu        sync.Mutex
	jobs      map[string]source.Spec
	scheduled map[string]cron.EntryID
}

func NewSyncScheduler(ingester SourceIngester) *SyncScheduler {
	logger := cronLogger{}
	return &SyncScheduler{
		// 标准 5 段表达式（不含秒）
		cron:      cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		ingester:  ingester,
		timeout:   DefaultRunTimeout,
		jobs:      make(map[string]source.Spec),
		scheduled: make(map[string]cron.EntryID),
	}
}

// Register 校验并登记任务，同一来源只能登记一次。
// 先校验整批任务，任一任务非法时整批都不登记。
func (s *SyncScheduler) Register(jobs []config.SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	type pending struct {
		key      string
		spec     source.Spec
		expr     string
		schedule cron.Schedule
	}
	batch := make([]pending, 0, len(jobs))
	seen := make(map[string]struct{}, len(jobs))
	for _, j := range jobs {
		spec, err := jobSpec(j)
		if err != nil {
			return err
		}
		key := jobKey(spec)
		if _, ok := s.scheduled[key]; ok {
			return rag.Validationf("duplicate sync job %s", key)
		}
		if _, ok := seen[key]; ok {
			return rag.Validationf("duplicate sync job %s", key)
		}
		seen[key] = struct{}{}
		expr := strings.TrimSpace(j.Cron)
		sched, err := cron.ParseStandard(expr)
		if err != nil {
			return rag.Validationf("sync job %s: invalid cron %q: %v", key, j.Cron, err)
		}
		batch = append(batch, pending{key: key, spec: spec, expr: expr, schedule: sched})
	}

	for _, p := range batch {
		spec := p.spec
		s.jobs[p.key] = spec
		s.scheduled[p.key] = s.cron.Schedule(p.schedule, cron.FuncJob(func() {
			_ = s.run(context.Background(), spec)
		}))
		zlog.Info("rag sync job registered", zap.String("job", p.key), zap.String("cron", p.expr))
	}
	return nil
}

// RunNow 立即执行一个已登记的任务
func (s *SyncScheduler) RunNow(ctx context.Context, key string) error {
	s.mu.Lock()
	spec, ok := s.jobs[key]
	s.mu.Unlock()
	if !ok {
		return rag.NotFoundf("sync job %s", key)
	}
	return s.run(ctx, spec)
}

// Jobs 已登记任务的 key，按 sourceType:sourceId 表示
func (s *SyncScheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for k := range s.jobs {
		out = append(out, k)
	}
	return out
}

func (s *SyncScheduler) Start() {
	s.cron.Start()
	zlog.Info("rag sync scheduler started", zap.Int("jobs", len(s.Jobs())))
}

// Stop 停止调度并等待正在运行的任务结束
func (s *SyncScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (s *SyncScheduler) run(ctx context.Context, spec source.Spec) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.ingester.IngestSource(ctx, spec, false)
	if err != nil {
		zlog.Error("rag sync job failed", zap.String("job", jobKey(spec)), zap.Error(err))
		return err
	}
	zlog.Info("rag sync job done",
		zap.String("job", jobKey(spec)),
		zap.String("outcome", res.Outcome),
		zap.Bool("unchanged", res.Unchanged),
		zap.Int("chunk_count", res.ChunkCount),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	return nil
}

func jobSpec(j config.SyncJob) (source.Spec, error) {
	domain, err := rag.ParseDomain(j.Domain)
	if err != nil {
		return source.Spec{}, err
	}
	st, err := rag.ParseSourceType(j.SourceType)
	if err != nil {
		return source.Spec{}, err
	}
	switch st {
	case rag.SourceNotion, rag.SourceSlack, rag.SourceFile:
	default:
		return source.Spec{}, rag.Validationf("source type %s cannot be resynced", st)
	}
	id := strings.TrimSpace(j.SourceID)
	if id == "" {
		return source.Spec{}, rag.Validationf("sync job source id is required")
	}
	return source.Spec{Domain: domain, SourceType: st, SourceID: id, Title: strings.TrimSpace(j.Title)}, nil
}

func jobKey(spec source.Spec) string {
	return string(spec.SourceType) + ":" + spec.SourceID
}

// cronLogger 把 cron 的内部日志转到 zlog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	zlog.L().Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	zlog.L().Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
