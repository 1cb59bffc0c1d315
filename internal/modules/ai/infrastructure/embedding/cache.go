package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"

	"koo/internal/modules/ai/domain/repository"
	"koo/pkg/redis"
	"koo/pkg/zlog"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}

// WrapLRU 为查询向量加一层进程内 LRU 缓存，文档批量向量化不走缓存
func WrapLRU(e repository.Embedder, model string, size int, ttl time.Duration) repository.Embedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		model: model,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  repository.Embedder
	model string
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Dim() int { return l.next.Dim() }

func (l *lruEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(l.model, text)
	if cached, ok := l.cache.Get(key); ok {
		zlog.Debug("embedding cache hit (lru)")
		return cloneEmbedding(cached), nil
	}
	res, err := l.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, cloneEmbedding(res))
	return res, nil
}

func (l *lruEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return l.next.EmbedDocuments(ctx, texts)
}

// WrapRedis 为查询向量加一层 Redis 缓存，Redis 不可用时直接回源
func WrapRedis(e repository.Embedder, model string, ttl time.Duration) repository.Embedder {
	if e == nil || ttl <= 0 {
		return e
	}
	return &redisEmbedder{next: e, model: model, ttl: ttl}
}

type redisEmbedder struct {
	next  repository.Embedder
	model string
	ttl   time.Duration
}

func (r *redisEmbedder) Dim() int { return r.next.Dim() }

func (r *redisEmbedder) key(text string) string {
	return "koo:emb:" + cacheKey(r.model, text)
}

func (r *redisEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := r.key(text)
	bs, err := redis.GetBytes(ctx, key)
	switch {
	case err == nil:
		if v, ok := decodeVector(bs); ok && (r.Dim() <= 0 || len(v) == r.Dim()) {
			zlog.Debug("embedding cache hit (redis)")
			return v, nil
		}
	case !redis.IsNil(err):
		zlog.Warn("embedding cache read failed", zap.Error(err))
	}

	res, err := r.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := redis.Set(ctx, key, encodeVector(res), r.ttl); err != nil {
		zlog.Warn("embedding cache write failed", zap.Error(err))
	}
	return res, nil
}

func (r *redisEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return r.next.EmbedDocuments(ctx, texts)
}

// encodeVector 小端 float32 序列
func encodeVector(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

func decodeVector(bs []byte) ([]float32, bool) {
	if len(bs) == 0 || len(bs)%4 != 0 {
		return nil, false
	}
	out := make([]float32, len(bs)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(bs[i*4:]))
	}
	return out, true
}
