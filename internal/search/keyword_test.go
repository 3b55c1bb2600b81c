package search

import (
	"testing"

	"resume-match-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keywordTestPool() []*types.Candidate {
	return []*types.Candidate{
		{
			CandidateID: "cand-python",
			Skills:      []string{"Python", "Django", "PostgreSQL"},
			Experience: []types.ExperienceEntry{
				{Title: "Backend Engineer", Company: "Acme", Description: "built REST APIs in python"},
			},
			Education: []types.EducationEntry{
				{Degree: "B.Tech", Field: "Computer Science", Institution: "IIT"},
			},
		},
		{
			CandidateID: "cand-java",
			Skills:      []string{"Java", "Spring"},
			Experience: []types.ExperienceEntry{
				{Title: "Software Developer", Company: "Globex"},
			},
		},
		{
			CandidateID: "cand-empty",
		},
	}
}

func TestKeywordScoreSkillExactBeatsPartial(t *testing.T) {
	scorer := NewKeywordScorer()
	parser := NewQueryParser(NewDictionary(nil, nil))

	scores := scorer.Score(parser.Parse("python"), keywordTestPool())

	require.Contains(t, scores, "cand-python")
	// 零命中的候选人不出现在表里
	assert.NotContains(t, scores, "cand-java")
	assert.NotContains(t, scores, "cand-empty")
	// 单词精确命中技能：base=1.0，覆盖度=1.0
	assert.InDelta(t, 1.0, scores["cand-python"], 1e-9)
}

func TestKeywordScoreCoverageRewardsBreadth(t *testing.T) {
	scorer := NewKeywordScorer()
	parser := NewQueryParser(NewDictionary(nil, nil))

	// cand-python命中python+django两个词，cand-java只命中java
	scores := scorer.Score(parser.Parse("python django java"), keywordTestPool())

	require.Contains(t, scores, "cand-python")
	require.Contains(t, scores, "cand-java")
	assert.Greater(t, scores["cand-python"], scores["cand-java"],
		"命中更多不同词的候选人应得更高分")
}

func TestKeywordScorePhraseMatch(t *testing.T) {
	scorer := NewKeywordScorer()
	parser := NewQueryParser(NewDictionary(nil, nil))

	scores := scorer.Score(parser.Parse(`"backend engineer"`), keywordTestPool())

	require.Contains(t, scores, "cand-python")
	assert.NotContains(t, scores, "cand-java")
	// 单短语命中经历标题：sum=1.2，max=1.2，覆盖度=1.0
	assert.InDelta(t, 1.0, scores["cand-python"], 1e-9)
}

func TestKeywordScoreEducationField(t *testing.T) {
	scorer := NewKeywordScorer()
	parser := NewQueryParser(NewDictionary(nil, nil))

	scores := scorer.Score(parser.Parse("iit"), keywordTestPool())

	require.Contains(t, scores, "cand-python")
	assert.InDelta(t, 0.6, scores["cand-python"], 1e-9)
}

func TestKeywordScoreExtraMetadataWeakSignal(t *testing.T) {
	scorer := NewKeywordScorer()
	parser := NewQueryParser(NewDictionary(nil, nil))

	pool := []*types.Candidate{
		{
			CandidateID: "cand-extra",
			Extra:       map[string]interface{}{"certifications": []interface{}{"CKA", "kubernetes administrator"}},
		},
	}
	scores := scorer.Score(parser.Parse("kubernetes"), pool)

	require.Contains(t, scores, "cand-extra")
	assert.InDelta(t, 0.2, scores["cand-extra"], 1e-9)
}

func TestKeywordScoreEmptyQuery(t *testing.T) {
	scorer := NewKeywordScorer()
	parser := NewQueryParser(NewDictionary(nil, nil))

	scores := scorer.Score(parser.Parse(""), keywordTestPool())
	assert.Empty(t, scores)
}

func TestKeywordScoresStayInUnitRange(t *testing.T) {
	scorer := NewKeywordScorer()
	parser := NewQueryParser(NewDictionary(nil, nil))

	scores := scorer.Score(parser.Parse(`python django postgresql "backend engineer"`), keywordTestPool())
	for id, s := range scores {
		assert.GreaterOrEqual(t, s, 0.0, id)
		assert.LessOrEqual(t, s, 1.0, id)
	}
}
