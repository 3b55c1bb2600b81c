package search

import (
	"math"
	"sort"

	"resume-match-go/internal/types"
)

// Weights 三信号融合权重。历史版本里关键词/语义权重反复调整过
// （0.4/0.6、0.7/0.3），当前采用带地点信号的三元配置，且暴露为配置项。
type Weights struct {
	Keyword  float64 `yaml:"keyword" json:"keyword"`
	Semantic float64 `yaml:"semantic" json:"semantic"`
	Location float64 `yaml:"location" json:"location"`
}

// DefaultWeights 默认融合权重
func DefaultWeights() Weights {
	return Weights{Keyword: 0.5, Semantic: 0.4, Location: 0.1}
}

// Normalize 把每个权重截断到[0,1]；若总和超过1则等比缩回，保证总和≤1
func (w Weights) Normalize() Weights {
	w.Keyword = ClampUnit(w.Keyword)
	w.Semantic = ClampUnit(w.Semantic)
	w.Location = ClampUnit(w.Location)

	sum := w.Keyword + w.Semantic + w.Location
	if sum > 1 {
		w.Keyword /= sum
		w.Semantic /= sum
		w.Location /= sum
	}
	return w
}

// Combiner 分数融合与排序器
type Combiner struct {
	weights Weights
}

// NewCombiner 创建融合器，权重会先做规范化
func NewCombiner(weights Weights) *Combiner {
	return &Combiner{weights: weights.Normalize()}
}

// SetWeights 调整融合权重（截断+重归一化）
func (c *Combiner) SetWeights(weights Weights) {
	c.weights = weights.Normalize()
}

// Combine 按候选池顺序融合三路分数并排序。
// 任一信号缺失按0.0处理；三路全缺的候选人综合分记0.0但不剔除，
// 由调用方决定是否过滤。排序为稳定降序（同分保持池内原顺序），
// limit>0 时截断到前N。
func (c *Combiner) Combine(pool []*types.Candidate, keyword, semantic, location types.ScoreMap, limit int) []*types.RankedCandidate {
	ranked := make([]*types.RankedCandidate, 0, len(pool))

	for _, cand := range pool {
		if cand == nil {
			continue
		}
		kw := keyword[cand.CandidateID]
		sem := semantic[cand.CandidateID]
		loc := location[cand.CandidateID]

		score := c.weights.Keyword*kw + c.weights.Semantic*sem + c.weights.Location*loc

		// 多信号一致时的非线性加成
		switch {
		case kw > 0.7 && sem > 0.7:
			score *= 1.15
		case kw > 0.9 && sem > 0.5:
			score *= 1.10
		}
		if loc > 0.8 && (kw > 0.5 || sem > 0.5) {
			score *= 1.05
		}

		score = ClampUnit(score)

		ranked = append(ranked, &types.RankedCandidate{
			Candidate:   cand,
			Combined:    score,
			SearchScore: roundPercent(score),
			Components: types.ComponentScores{
				Keyword:  roundPercent(kw),
				Semantic: roundPercent(sem),
				Location: roundPercent(loc),
			},
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Combined > ranked[j].Combined
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	return ranked
}

// roundPercent 把[0,1]分数转成保留两位小数的百分数
func roundPercent(v float64) float64 {
	return math.Round(v*100*100) / 100
}
