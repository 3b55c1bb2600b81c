package search

import (
	"testing"

	"resume-match-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func locationPool(locations map[string]string) []*types.Candidate {
	var pool []*types.Candidate
	for id, loc := range locations {
		pool = append(pool, &types.Candidate{
			CandidateID: id,
			Personal:    types.PersonalInfo{Location: loc},
		})
	}
	return pool
}

func TestLocationScoreLadder(t *testing.T) {
	m := NewLocationMatcher(NewDictionary(nil, nil))

	pool := locationPool(map[string]string{
		"exact":    "Jaipur",
		"contains": "Jaipur, Rajasthan",
		"parent":   "Rajasthan",
		"sibling":  "Udaipur",
		"far":      "Mumbai",
	})

	scores := m.Score("jaipur", pool)

	assert.InDelta(t, 1.0, scores["exact"], 1e-9, "完全一致")
	assert.InDelta(t, 0.9, scores["contains"], 1e-9, "候选地点包含查询地点")
	assert.InDelta(t, 0.75, scores["parent"], 1e-9, "候选地点是查询地点的父地区")
	assert.InDelta(t, 0.7, scores["sibling"], 1e-9, "同父兄弟地区")
	assert.Equal(t, 0.0, scores["far"], "无关地区")
}

func TestLocationScoreQueryIsParent(t *testing.T) {
	m := NewLocationMatcher(NewDictionary(nil, nil))

	pool := locationPool(map[string]string{"child": "Jaipur"})
	scores := m.Score("rajasthan", pool)

	assert.InDelta(t, 0.85, scores["child"], 1e-9, "查询父地区应覆盖其子城市")
}

func TestLocationScoreUnknownOmitted(t *testing.T) {
	m := NewLocationMatcher(nil)

	pool := []*types.Candidate{
		{CandidateID: "no-location"},
		{CandidateID: "has-location", Personal: types.PersonalInfo{Location: "Pune"}},
	}
	scores := m.Score("pune", pool)

	require.Contains(t, scores, "has-location")
	// 所在地未知省略，区分"未知"和"不匹配"
	assert.NotContains(t, scores, "no-location")
}

func TestLocationScoreEmptyQuery(t *testing.T) {
	m := NewLocationMatcher(nil)

	scores := m.Score("", locationPool(map[string]string{"a": "Pune"}))
	assert.Empty(t, scores)
}

func TestLocationScoreTokenOverlapFallback(t *testing.T) {
	m := NewLocationMatcher(NewDictionary(nil, map[string][]string{}))

	pool := locationPool(map[string]string{"partial": "greater noida west"})
	scores := m.Score("noida east", pool)

	// 重叠1个token，max(2,3)=3 -> 0.5*1/3
	assert.InDelta(t, 0.5/3.0, scores["partial"], 1e-9)
}
