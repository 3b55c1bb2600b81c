package search

import "math"

// CosineSimilarity 计算两个向量的余弦相似度，取值[-1,1]。
// 任一向量为空、全零或两者维度不一致时返回0.0，绝不panic或除零，
// 由调用方决定是否再截断到[0,1]。
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ClampUnit 把任意分数截断到[0,1]
func ClampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
