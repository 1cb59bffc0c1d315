package vectordb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/domain/repository"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusIndex 基于 Milvus 的向量索引，每个 domain 对应一个集合
type MilvusIndex struct {
	cli         mclient.Client
	prefix      string
	dim         int
	metricType  entity.MetricType
	searchParam entity.SearchParam
	now         func() time.Time
}

var _ repository.VectorIndex = (*MilvusIndex)(nil)

type MilvusIndexConfig struct {
	CollectionPrefix string
	Dim              int
	MetricType       entity.MetricType
	Nprobe           int
}

func NewMilvusIndex(cli mclient.Client, conf MilvusIndexConfig) (*MilvusIndex, error) {
	if cli == nil {
		return nil, rag.Validationf("milvus client is nil")
	}
	if conf.Dim <= 0 {
		return nil, rag.Validationf("invalid vector dim: %d", conf.Dim)
	}
	if conf.MetricType == "" {
		conf.MetricType = entity.COSINE
	}
	if conf.Nprobe <= 0 {
		conf.Nprobe = defaultNprobe
	}
	sp, err := entity.NewIndexIvfFlatSearchParam(conf.Nprobe)
	if err != nil {
		return nil, err
	}
	return &MilvusIndex{
		cli:         cli,
		prefix:      conf.CollectionPrefix,
		dim:         conf.Dim,
		metricType:  conf.MetricType,
		searchParam: sp,
		now:         time.Now,
	}, nil
}

func (m *MilvusIndex) Metric() rag.ScoreMetric {
	switch m.metricType {
	case entity.COSINE, entity.IP:
		return rag.MetricSimilarity
	case entity.L2:
		return rag.MetricL2Distance
	}
	return rag.MetricAuto
}

func (m *MilvusIndex) collection(domain rag.Domain) string {
	return CollectionName(m.prefix, domain)
}

// Dim 写入与检索使用的向量维度
func (m *MilvusIndex) Dim() int { return m.dim }

// Upsert 先按 chunk_id 删除，再插入并 flush
func (m *MilvusIndex) Upsert(ctx context.Context, domain rag.Domain, sourceType rag.SourceType, entries []repository.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(entries))
	vectors := make([][]float32, 0, len(entries))
	sourceTypes := make([]string, 0, len(entries))
	updatedAt := make([]int64, 0, len(entries))
	ts := m.now().Unix()
	for _, e := range entries {
		if len(e.Vector) != m.dim {
			return rag.Validationf("vector dim mismatch for chunk_id=%d, got=%d want=%d", e.ChunkID, len(e.Vector), m.dim)
		}
		ids = append(ids, e.ChunkID)
		vectors = append(vectors, e.Vector)
		sourceTypes = append(sourceTypes, string(sourceType))
		updatedAt = append(updatedAt, ts)
	}

	coll := m.collection(domain)
	if err := m.cli.Delete(ctx, coll, "", chunkIDExpr(ids)); err != nil {
		return err
	}
	if _, err := m.cli.Insert(
		ctx,
		coll,
		"",
		entity.NewColumnInt64(fieldChunkID, ids),
		entity.NewColumnFloatVector(fieldEmbedding, m.dim, vectors),
		entity.NewColumnVarChar(fieldSourceType, sourceTypes),
		entity.NewColumnInt64(fieldUpdatedAt, updatedAt),
	); err != nil {
		return err
	}
	return m.cli.Flush(ctx, coll, false)
}

func (m *MilvusIndex) DeleteByChunkIDs(ctx context.Context, domain rag.Domain, chunkIDs []int64) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	return m.cli.Delete(ctx, m.collection(domain), "", chunkIDExpr(chunkIDs))
}

func (m *MilvusIndex) Search(ctx context.Context, domain rag.Domain, vector []float32, topK int, filter repository.SearchFilter) ([]rag.SearchResult, error) {
	if topK <= 0 {
		return []rag.SearchResult{}, nil
	}
	if len(vector) != m.dim {
		return nil, rag.Validationf("query vector dim mismatch, got=%d want=%d", len(vector), m.dim)
	}
	res, err := m.cli.Search(
		ctx,
		m.collection(domain),
		[]string{},
		filterExpr(filter),
		[]string{fieldChunkID},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldEmbedding,
		m.metricType,
		topK,
		m.searchParam,
	)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return []rag.SearchResult{}, nil
	}
	return parseSearchResult(res[0])
}

func parseSearchResult(sr mclient.SearchResult) ([]rag.SearchResult, error) {
	if sr.Err != nil {
		return nil, sr.Err
	}
	out := make([]rag.SearchResult, 0, sr.ResultCount)
	idCol := sr.IDs
	chunkIDCol := columnByName(sr.Fields, fieldChunkID)
	for i := 0; i < sr.ResultCount; i++ {
		var id int64
		var err error
		if idCol != nil {
			id, err = idCol.GetAsInt64(i)
		} else if chunkIDCol != nil {
			id, err = chunkIDCol.GetAsInt64(i)
		} else {
			err = fmt.Errorf("search result has no %s column", fieldChunkID)
		}
		if err != nil {
			return nil, err
		}
		score := float32(0)
		if i < len(sr.Scores) {
			score = sr.Scores[i]
		}
		out = append(out, rag.SearchResult{ChunkID: id, Score: float64(score)})
	}
	return out, nil
}

func columnByName(cols mclient.ResultSet, name string) entity.Column {
	for _, c := range cols {
		if c != nil && c.Name() == name {
			return c
		}
	}
	return nil
}

func chunkIDExpr(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return fmt.Sprintf("%s in [%s]", fieldChunkID, strings.Join(parts, ","))
}

func filterExpr(f repository.SearchFilter) string {
	if f.IsZero() {
		return ""
	}
	parts := make([]string, 0, len(f.SourceTypes))
	for _, st := range f.SourceTypes {
		parts = append(parts, strconv.Quote(string(st)))
	}
	return fmt.Sprintf("%s in [%s]", fieldSourceType, strings.Join(parts, ","))
}
