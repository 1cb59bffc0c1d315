package pipeline

import (
	"context"
	"sort"

	"koo/internal/modules/ai/domain/rag"
)

// ResolveHits 将一个 domain 的原始命中关联到 chunk 快照并归一化分数；
// 无法解析的 chunk（文档已删或索引残留）直接丢弃
func ResolveHits(domain rag.Domain, results []rag.SearchResult, chunks map[int64]*rag.Chunk, metric rag.ScoreMetric) []rag.RetrievalHit {
	out := make([]rag.RetrievalHit, 0, len(results))
	for _, r := range results {
		c, ok := chunks[r.ChunkID]
		if !ok || c == nil {
			continue
		}
		out = append(out, rag.RetrievalHit{
			ChunkID: r.ChunkID,
			Chunk:   c,
			Score:   rag.NormalizeScore(metric, r.Score),
			Domain:  domain,
		})
	}
	return out
}

// MergeHits 按 domain 顺序拼接后按分数稳定降序排序，同分保持原有顺序
func MergeHits(perDomain [][]rag.RetrievalHit) []rag.RetrievalHit {
	n := 0
	for _, hs := range perDomain {
		n += len(hs)
	}
	merged := make([]rag.RetrievalHit, 0, n)
	for _, hs := range perDomain {
		merged = append(merged, hs...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	return merged
}

// SelectTop 取前 k 个
func SelectTop(hits []rag.RetrievalHit, k int) []rag.RetrievalHit {
	if k < 0 {
		k = 0
	}
	if len(hits) > k {
		return hits[:k]
	}
	return hits
}

// ContextLister 按结构块读取 chunk
type ContextLister interface {
	ListByContext(ctx context.Context, documentID int64, contextID int) ([]*rag.Chunk, error)
}

// ExpandHits 把每个被选中的结构块展开为完整的 chunk 序列。
// 以 (document_id, context_id) 去重，展开的 chunk 继承该块第一个命中的分数与 domain。
func ExpandHits(ctx context.Context, lister ContextLister, selected []rag.RetrievalHit) ([]rag.RetrievalHit, error) {
	seen := make(map[rag.ContextKey]struct{}, len(selected))
	out := make([]rag.RetrievalHit, 0, len(selected))
	for _, h := range selected {
		if h.Chunk == nil {
			continue
		}
		key := h.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		block, err := lister.ListByContext(ctx, key.DocumentID, key.ContextID)
		if err != nil {
			return nil, err
		}
		for _, c := range block {
			out = append(out, rag.RetrievalHit{
				ChunkID: c.ID,
				Chunk:   c,
				Score:   h.Score,
				Domain:  h.Domain,
			})
		}
	}
	return out, nil
}

// hitIDsByDomain 记录每个 domain 在截断前看到的命中
func hitIDsByDomain(domains []rag.Domain, perDomain [][]rag.RetrievalHit) map[rag.Domain][]int64 {
	out := make(map[rag.Domain][]int64, len(domains))
	for i, d := range domains {
		if i < len(perDomain) {
			out[d] = rag.ChunkIDs(perDomain[i])
		} else {
			out[d] = []int64{}
		}
	}
	return out
}
