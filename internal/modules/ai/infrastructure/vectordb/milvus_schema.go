package vectordb

import (
	"context"
	"fmt"
	"strings"

	"koo/internal/modules/ai/domain/rag"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	fieldChunkID    = "chunk_id"
	fieldEmbedding  = "embedding"
	fieldSourceType = "source_type"
	fieldUpdatedAt  = "updated_at"

	defaultNlist  = 1024
	defaultNprobe = 16
)

// CollectionName 每个 domain 一个集合：{prefix}_{domain}_chunks
func CollectionName(prefix string, domain rag.Domain) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "koo"
	}
	return fmt.Sprintf("%s_%s_chunks", prefix, domain.Lower())
}

// CollectionSchema chunk 向量集合的字段定义
func CollectionSchema(name string, dim int) *entity.Schema {
	return &entity.Schema{
		CollectionName: name,
		Description:    "koo chunk embeddings",
		Fields: []*entity.Field{
			{
				Name:       fieldChunkID,
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     false,
			},
			{
				Name:       fieldEmbedding,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{entity.TypeParamDim: fmt.Sprintf("%d", dim)},
			},
			{
				Name:       fieldSourceType,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "32"},
			},
			{
				Name:     fieldUpdatedAt,
				DataType: entity.FieldTypeInt64,
			},
		},
	}
}

// ParseMetricType 配置字符串转 Milvus 度量类型，默认 COSINE
func ParseMetricType(s string) (entity.MetricType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "COSINE":
		return entity.COSINE, nil
	case "IP":
		return entity.IP, nil
	case "L2":
		return entity.L2, nil
	}
	return "", rag.Validationf("unsupported milvus metric type %q", s)
}

// EnsureCollection 集合不存在时建表并创建 IVF_FLAT 索引，最后加载到内存。重复调用无副作用。
func EnsureCollection(ctx context.Context, cli mclient.Client, name string, dim int, metric entity.MetricType, nlist int) error {
	if cli == nil {
		return fmt.Errorf("milvus client is nil")
	}
	if nlist <= 0 {
		nlist = defaultNlist
	}
	exists, err := cli.HasCollection(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		if err := cli.CreateCollection(ctx, CollectionSchema(name, dim), entity.DefaultShardNumber); err != nil {
			return err
		}
		idx, err := entity.NewIndexIvfFlat(metric, nlist)
		if err != nil {
			return err
		}
		if err := cli.CreateIndex(ctx, name, fieldEmbedding, idx, false); err != nil {
			return err
		}
	}
	return cli.LoadCollection(ctx, name, false)
}
