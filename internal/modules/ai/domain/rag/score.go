package rag

import "math"

// ScoreMetric 向量索引原始分数的含义
type ScoreMetric int

const (
	// MetricAuto 按数值范围猜测：[-1,1] 视为相似度，否则视为距离
	MetricAuto ScoreMetric = iota
	// MetricSimilarity 余弦或内积相似度，范围 [-1,1]
	MetricSimilarity
	// MetricCosineDistance 余弦距离，范围 [0,2]
	MetricCosineDistance
	// MetricL2Distance 欧氏距离，范围 [0,+inf)
	MetricL2Distance
)

func (m ScoreMetric) String() string {
	switch m {
	case MetricSimilarity:
		return "similarity"
	case MetricCosineDistance:
		return "cosine_distance"
	case MetricL2Distance:
		return "l2_distance"
	default:
		return "auto"
	}
}

// NormalizeScore 将原始分数映射到 [0,1]，越大越相关
func NormalizeScore(metric ScoreMetric, raw float64) float64 {
	if math.IsNaN(raw) {
		return 0
	}
	switch metric {
	case MetricSimilarity:
		return clamp01((raw + 1) / 2)
	case MetricCosineDistance:
		return clamp01(1 - raw/2)
	case MetricL2Distance:
		if raw < 0 {
			raw = 0
		}
		return clamp01(1 / (1 + raw))
	default:
		if raw >= -1.0001 && raw <= 1.0001 {
			return clamp01((raw + 1) / 2)
		}
		return clamp01(1 - raw)
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
