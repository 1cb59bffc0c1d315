package initial

import (
	"context"
	"strings"

	"koo/internal/config"
	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/infrastructure/vectordb"
	"koo/pkg/zlog"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"go.uber.org/zap"
)

// NewMilvusClient 连接 Milvus，目标库不存在时先创建；客户端由调用方关闭
func NewMilvusClient(ctx context.Context, c config.MilvusConfig) (mclient.Client, error) {
	addr := strings.TrimSpace(c.Address)
	if addr == "" {
		return nil, rag.Validationf("milvus address is empty")
	}
	dbName := strings.TrimSpace(c.DBName)

	if dbName != "" && dbName != "default" {
		defaultCli, err := mclient.NewClient(ctx, mclient.Config{
			Address:  addr,
			Username: strings.TrimSpace(c.Username),
			Password: strings.TrimSpace(c.Password),
			DBName:   "default",
		})
		if err != nil {
			return nil, rag.Stage(rag.StageVectorIndex, err)
		}
		err = ensureDatabase(ctx, defaultCli, dbName)
		_ = defaultCli.Close()
		if err != nil {
			return nil, rag.Stage(rag.StageVectorIndex, err)
		}
	}

	cli, err := mclient.NewClient(ctx, mclient.Config{
		Address:  addr,
		Username: strings.TrimSpace(c.Username),
		Password: strings.TrimSpace(c.Password),
		DBName:   dbName,
	})
	if err != nil {
		return nil, rag.Stage(rag.StageVectorIndex, err)
	}
	return cli, nil
}

func ensureDatabase(ctx context.Context, cli mclient.Client, name string) error {
	dbs, err := cli.ListDatabases(ctx)
	if err != nil {
		return err
	}
	for _, db := range dbs {
		if db.Name == name {
			return nil
		}
	}
	return cli.CreateDatabase(ctx, name)
}

// EnsureMilvusCollections 为每个 domain 建集合与索引，重复调用无副作用。
// dim 必须与 embedder 实际输出的维度一致。
func EnsureMilvusCollections(ctx context.Context, cli mclient.Client, conf *config.Config, domains []rag.Domain, dim int) error {
	if dim <= 0 {
		return rag.Validationf("invalid vector dim: %d", dim)
	}
	metric, err := vectordb.ParseMetricType(conf.MilvusConfig.MetricType)
	if err != nil {
		return err
	}
	for _, d := range domains {
		name := vectordb.CollectionName(conf.MilvusConfig.CollectionPrefix, d)
		if err := vectordb.EnsureCollection(ctx, cli, name, dim, metric, conf.MilvusConfig.Nlist); err != nil {
			return rag.Stage(rag.StageVectorIndex, err)
		}
		zlog.Info("milvus collection ready", zap.String("collection", name), zap.Int("dim", dim))
	}
	return nil
}
