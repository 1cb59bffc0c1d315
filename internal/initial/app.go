package initial

import (
	"context"
	"errors"
	"strings"
	"time"

	"koo/internal/config"
	"koo/internal/modules/ai/application/service"
	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/domain/repository"
	"koo/internal/modules/ai/infrastructure/chunking"
	"koo/internal/modules/ai/infrastructure/embedding"
	"koo/internal/modules/ai/infrastructure/llm"
	"koo/internal/modules/ai/infrastructure/mq/kafka"
	"koo/internal/modules/ai/infrastructure/persistence"
	"koo/internal/modules/ai/infrastructure/persistence/memory"
	"koo/internal/modules/ai/infrastructure/pipeline"
	"koo/internal/modules/ai/infrastructure/queue"
	"koo/internal/modules/ai/infrastructure/source"
	"koo/internal/modules/ai/infrastructure/vectordb"
	"koo/pkg/redis"
	"koo/pkg/zlog"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options 组装选项
type Options struct {
	// EnsureSchema 为 true 时创建向量集合或 pgvector 表
	EnsureSchema bool
	// EnableQueue 为 true 且 kafkaConfig.enabled 时创建生产者并确保 topic 存在
	EnableQueue bool
}

// App 进程内共享的服务集合，由 cmd 与各接入层使用
type App struct {
	Conf    *config.Config
	Domains []rag.Domain

	Documents repository.DocumentRepository
	Chunks    repository.ChunkRepository
	QueryLogs repository.QueryLogRepository
	Index     repository.VectorIndex

	IngestPipeline *pipeline.IngestPipeline
	AskPipeline    *pipeline.AskPipeline
	Publisher      *queue.IngestPublisher

	IngestService      service.IngestService
	AskService         service.AskService
	AsyncIngestService service.AsyncIngestService
	QueryLogService    service.QueryLogService

	closers []func() error
}

// NewApp 按配置组装存储、向量索引、模型与流水线
func NewApp(ctx context.Context, conf *config.Config, opts Options) (*App, error) {
	app := &App{Conf: conf}
	if err := app.build(ctx, conf, opts); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context, conf *config.Config, opts Options) error {
	var err error

	if a.Domains, err = rag.ParseDomains(conf.RagConfig.Domains); err != nil {
		return err
	}
	if len(a.Domains) == 0 {
		a.Domains = rag.AllDomains()
	}

	embedder, dim, err := newEmbedder(ctx, conf)
	if err != nil {
		return err
	}

	db, err := a.openContentStore(conf)
	if err != nil {
		return err
	}
	if err := a.openVectorIndex(ctx, conf, db, dim, opts.EnsureSchema); err != nil {
		return err
	}

	cm, meta, err := llm.NewChatModelFromConfig(ctx, conf)
	if err != nil {
		return err
	}
	answerer, err := llm.NewChatAnswerer(cm, "", "")
	if err != nil {
		return err
	}
	zlog.Info("chat model ready", zap.String("provider", meta.Provider), zap.String("model", meta.Model))

	sources, err := newSourceFactory(ctx, conf)
	if err != nil {
		return err
	}

	a.IngestPipeline, err = pipeline.NewIngestPipeline(pipeline.IngestDeps{
		Documents: a.Documents,
		Chunks:    a.Chunks,
		Index:     a.Index,
		Embedder:  embedder,
		Chunker:   chunking.NewContextChunker(conf.RagConfig.ChunkMaxChars),
	})
	if err != nil {
		return err
	}
	a.AskPipeline, err = pipeline.NewAskPipeline(pipeline.AskDeps{
		Chunks:          a.Chunks,
		QueryLogs:       a.QueryLogs,
		Index:           a.Index,
		Embedder:        embedder,
		Answerer:        answerer,
		Domains:         a.Domains,
		TopK:            conf.RagConfig.TopK,
		ContextMaxChars: conf.RagConfig.ContextMaxChars,
	})
	if err != nil {
		return err
	}

	if opts.EnableQueue && conf.KafkaConfig.Enabled {
		if err := a.openPublisher(conf); err != nil {
			return err
		}
	}

	a.IngestService = service.NewIngestService(sources, a.IngestPipeline)
	a.AskService = service.NewAskService(a.AskPipeline)
	a.AsyncIngestService = service.NewAsyncIngestService(a.Publisher)
	a.QueryLogService = service.NewQueryLogService(a.QueryLogs)
	return nil
}

func (a *App) openContentStore(conf *config.Config) (*gorm.DB, error) {
	if strings.EqualFold(strings.TrimSpace(conf.DatabaseConfig.Driver), "memory") {
		store := memory.NewStore()
		a.Documents, a.Chunks, a.QueryLogs = store.Documents(), store.Chunks(), store.QueryLogs()
		return nil, nil
	}
	db, err := OpenGormDB(conf)
	if err != nil {
		return nil, err
	}
	a.Documents = persistence.NewDocumentRepository(db, conf.RagConfig.RawInlineLimit)
	a.Chunks = persistence.NewChunkRepository(db)
	a.QueryLogs = persistence.NewQueryLogRepository(db)
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	return db, nil
}

func (a *App) openVectorIndex(ctx context.Context, conf *config.Config, db *gorm.DB, dim int, ensure bool) error {
	switch strings.ToLower(strings.TrimSpace(conf.VectorConfig.Backend)) {
	case "memory":
		a.Index = vectordb.NewMemoryIndex(dim)
		return nil
	case "pgvector":
		if db == nil || db.Dialector.Name() != "postgres" {
			return rag.Validationf("pgvector backend requires the postgres driver")
		}
		idx, err := vectordb.NewPgVectorIndex(db, dim)
		if err != nil {
			return err
		}
		if ensure {
			if err := idx.EnsureSchema(ctx); err != nil {
				return rag.Stage(rag.StageVectorIndex, err)
			}
		}
		a.Index = idx
		return nil
	case "", "milvus":
		cli, err := NewMilvusClient(ctx, conf.MilvusConfig)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, cli.Close)
		return a.attachMilvus(ctx, cli, conf, dim, ensure)
	}
	return rag.Validationf("unsupported vector backend %q", conf.VectorConfig.Backend)
}

// attachMilvus 集合 schema 与索引使用同一个维度，即 embedder 的输出维度
func (a *App) attachMilvus(ctx context.Context, cli mclient.Client, conf *config.Config, dim int, ensure bool) error {
	if ensure {
		if err := EnsureMilvusCollections(ctx, cli, conf, a.Domains, dim); err != nil {
			return err
		}
	}
	metric, err := vectordb.ParseMetricType(conf.MilvusConfig.MetricType)
	if err != nil {
		return err
	}
	idx, err := vectordb.NewMilvusIndex(cli, vectordb.MilvusIndexConfig{
		CollectionPrefix: conf.MilvusConfig.CollectionPrefix,
		Dim:              dim,
		MetricType:       metric,
		Nprobe:           conf.MilvusConfig.Nprobe,
	})
	if err != nil {
		return err
	}
	a.Index = idx
	return nil
}

func (a *App) openPublisher(conf *config.Config) error {
	if err := EnsureKafkaTopic(conf); err != nil {
		return err
	}
	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:  conf.KafkaConfig.Brokers,
		ClientID: conf.KafkaConfig.ClientID,
	})
	if err != nil {
		return err
	}
	a.Publisher, err = queue.NewIngestPublisher(pub, conf.KafkaConfig.IngestTopic)
	if err != nil {
		_ = pub.Close()
		return err
	}
	a.closers = append(a.closers, a.Publisher.Close)
	return nil
}

// NewIngestWorker 创建 Kafka 消费者并绑定摄取服务
func (a *App) NewIngestWorker() (*queue.IngestConsumerWorker, error) {
	k := a.Conf.KafkaConfig
	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:  k.Brokers,
		GroupID:  k.ConsumerGroupID,
		Topics:   []string{k.IngestTopic},
		ClientID: k.ClientID,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, consumer.Close)
	return queue.NewIngestConsumerWorker(consumer, a.IngestService), nil
}

// Close 按创建的逆序释放资源
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newEmbedder(ctx context.Context, conf *config.Config) (repository.Embedder, int, error) {
	inner, meta, err := embedding.NewEmbedderFromConfig(ctx, conf)
	if err != nil {
		return nil, 0, err
	}
	adapter := embedding.NewAdapter(inner, meta)
	zlog.Info("embedder ready", zap.String("provider", meta.Provider), zap.String("model", meta.Model), zap.Int("dim", meta.Dim))

	rc := conf.RagConfig
	ttl := time.Duration(rc.QueryCacheTTLSeconds) * time.Second
	switch strings.ToLower(strings.TrimSpace(rc.QueryCache)) {
	case "lru":
		return embedding.WrapLRU(adapter, adapter.Model(), rc.QueryCacheSize, ttl), meta.Dim, nil
	case "redis":
		if err := InitRedis(ctx, conf); err != nil {
			return nil, 0, err
		}
		if !redis.IsConnected() {
			zlog.Warn("redis query cache requested but redis is not configured")
			return adapter, meta.Dim, nil
		}
		// 连接由 pkg/redis 持有，进程退出时关闭
		return embedding.WrapRedis(adapter, adapter.Model(), ttl), meta.Dim, nil
	}
	return adapter, meta.Dim, nil
}

func newSourceFactory(ctx context.Context, conf *config.Config) (*source.Factory, error) {
	opts := source.FactoryOptions{
		NotionToken:    conf.SourceConfig.Notion.Token,
		NotionPageSize: conf.SourceConfig.Notion.PageSize,
		SlackToken:     conf.SourceConfig.Slack.BotToken,
		SlackPageLimit: conf.SourceConfig.Slack.PageLimit,
	}
	if conf.SourceConfig.Notion.SummarizeImage {
		vm, _, err := llm.NewVisionModelFromConfig(ctx, conf)
		if err != nil {
			return nil, err
		}
		opts.Summarizer = llm.NewVisionSummarizer(vm)
	}
	return source.NewFactory(opts), nil
}
