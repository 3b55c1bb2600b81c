package search

import (
	"strings"

	"resume-match-go/internal/types"
)

// LocationMatcher 基于静态地区层级表的地理接近度打分器
type LocationMatcher struct {
	dict *Dictionary
}

// NewLocationMatcher 创建地点匹配器
func NewLocationMatcher(dict *Dictionary) *LocationMatcher {
	if dict == nil {
		dict = NewDictionary(nil, nil)
	}
	return &LocationMatcher{dict: dict}
}

// Score 计算查询地点与候选池各候选人所在地的接近度。
// queryLocation 为空时返回空表（没有地点信号）；
// 候选人没有记录所在地时从表中省略，区分"未知"和"不匹配"。
func (m *LocationMatcher) Score(queryLocation string, pool []*types.Candidate) types.ScoreMap {
	scores := make(types.ScoreMap)

	query := normalizeLocation(queryLocation)
	if query == "" {
		return scores
	}

	for _, cand := range pool {
		if cand == nil {
			continue
		}
		loc := normalizeLocation(cand.Location())
		if loc == "" {
			continue // 所在地未知，省略而非记0
		}
		scores[cand.CandidateID] = m.scorePair(query, loc)
	}

	return scores
}

// scorePair 打分阶梯，自上而下首个命中生效
func (m *LocationMatcher) scorePair(query, candidate string) float64 {
	switch {
	case query == candidate:
		return 1.0
	case strings.Contains(candidate, query):
		return 0.9
	case strings.Contains(query, candidate):
		return 0.8
	case m.dict.IsParentRegion(query, candidate):
		return 0.85
	case m.dict.IsParentRegion(candidate, query):
		return 0.75
	case m.dict.AreSiblingRegions(query, candidate):
		return 0.7
	}

	// 兜底：token 集合重叠度缩放0.5
	qTokens := tokenSet(query)
	cTokens := tokenSet(candidate)
	if len(qTokens) == 0 || len(cTokens) == 0 {
		return 0.0
	}
	overlap := 0
	for t := range qTokens {
		if cTokens[t] {
			overlap++
		}
	}
	denom := len(qTokens)
	if len(cTokens) > denom {
		denom = len(cTokens)
	}
	return 0.5 * float64(overlap) / float64(denom)
}

func normalizeLocation(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, t := range strings.Fields(s) {
		t = strings.Trim(t, ",")
		if t != "" {
			out[t] = true
		}
	}
	return out
}
