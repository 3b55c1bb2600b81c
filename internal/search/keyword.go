package search

import (
	"encoding/json"
	"strings"

	"resume-match-go/internal/types"
)

// 关键词匹配的字段权重。每个查询词在一份简历上取所有字段命中里
// 最强的一档计入总分。
const (
	weightSkillExact    = 1.0
	weightSkillPartial  = 0.5
	weightTitleExact    = 0.9
	weightTitlePartial  = 0.4
	weightCompanyExact  = 0.7
	weightCompanyPart   = 0.3
	weightDescription   = 0.2
	weightEducation     = 0.6
	weightExtraMetadata = 0.2
	weightPhrase        = 1.2
)

// KeywordScorer 基于结构化字段的加权关键词打分器。无状态，可并发使用。
type KeywordScorer struct{}

// NewKeywordScorer 创建关键词打分器
func NewKeywordScorer() *KeywordScorer {
	return &KeywordScorer{}
}

// candidateText 候选人字段的小写化预处理视图，避免逐词重复转换
type candidateText struct {
	skills     []string
	titles     []string
	companies  []string
	descs      []string
	educations []string
	extraBlob  string
}

func buildCandidateText(c *types.Candidate) *candidateText {
	ct := &candidateText{}
	for _, s := range c.Skills {
		if s != "" {
			ct.skills = append(ct.skills, strings.ToLower(s))
		}
	}
	for _, exp := range c.Experience {
		if exp.Title != "" {
			ct.titles = append(ct.titles, strings.ToLower(exp.Title))
		}
		if exp.Company != "" {
			ct.companies = append(ct.companies, strings.ToLower(exp.Company))
		}
		if exp.Description != "" {
			ct.descs = append(ct.descs, strings.ToLower(exp.Description))
		}
	}
	for _, edu := range c.Education {
		parts := []string{edu.Degree, edu.Field, edu.Institution}
		for _, p := range parts {
			if p != "" {
				ct.educations = append(ct.educations, strings.ToLower(p))
			}
		}
	}
	if len(c.Extra) > 0 {
		// 未识别元数据序列化为文本后做弱匹配，序列化失败时直接跳过该信号
		if blob, err := json.Marshal(c.Extra); err == nil {
			ct.extraBlob = strings.ToLower(string(blob))
		}
	}
	return ct
}

// matchTerm 返回单个查询词在候选人上的最强字段命中权重，未命中为0
func (ct *candidateText) matchTerm(term string) float64 {
	best := 0.0
	bump := func(w float64) {
		if w > best {
			best = w
		}
	}

	for _, s := range ct.skills {
		if s == term {
			bump(weightSkillExact)
		} else if strings.Contains(s, term) {
			bump(weightSkillPartial)
		}
	}
	for _, t := range ct.titles {
		if t == term {
			bump(weightTitleExact)
		} else if strings.Contains(t, term) {
			bump(weightTitlePartial)
		}
	}
	for _, co := range ct.companies {
		if co == term {
			bump(weightCompanyExact)
		} else if strings.Contains(co, term) {
			bump(weightCompanyPart)
		}
	}
	for _, d := range ct.descs {
		if strings.Contains(d, term) {
			bump(weightDescription)
		}
	}
	for _, e := range ct.educations {
		if strings.Contains(e, term) {
			bump(weightEducation)
		}
	}
	if ct.extraBlob != "" && strings.Contains(ct.extraBlob, term) {
		bump(weightExtraMetadata)
	}

	return best
}

// matchPhrase 短语命中：在技能或经历文本中逐字出现得提升权重1.2，
// 否则退回到教育/附加元数据的常规档位
func (ct *candidateText) matchPhrase(phrase string) float64 {
	for _, s := range ct.skills {
		if strings.Contains(s, phrase) {
			return weightPhrase
		}
	}
	for _, group := range [][]string{ct.titles, ct.companies, ct.descs} {
		for _, t := range group {
			if strings.Contains(t, phrase) {
				return weightPhrase
			}
		}
	}
	best := 0.0
	for _, e := range ct.educations {
		if strings.Contains(e, phrase) && weightEducation > best {
			best = weightEducation
		}
	}
	if ct.extraBlob != "" && strings.Contains(ct.extraBlob, phrase) && weightExtraMetadata > best {
		best = weightExtraMetadata
	}
	return best
}

// Score 为候选池计算关键词分数。
// 归一化：sum(每词最强命中) / (词数*1.0 + 短语数*1.2)，再乘覆盖度调整
// (0.7 + 0.3*命中词数/总词数)，奖励命中更多不同词而非单词反复强命中。
// 约定：零命中的候选人不出现在返回的 ScoreMap 里，下游把缺失当0.0处理。
func (s *KeywordScorer) Score(query *types.ParsedQuery, pool []*types.Candidate) types.ScoreMap {
	terms := query.AllTerms()
	totalUnits := len(terms) + len(query.Phrases)
	if totalUnits == 0 {
		return types.ScoreMap{}
	}

	maxPossible := float64(len(terms))*weightSkillExact + float64(len(query.Phrases))*weightPhrase

	scores := make(types.ScoreMap)
	for _, cand := range pool {
		if cand == nil {
			continue
		}
		ct := buildCandidateText(cand)

		var sum float64
		matched := 0
		for _, term := range terms {
			if w := ct.matchTerm(term); w > 0 {
				sum += w
				matched++
			}
		}
		for _, phrase := range query.Phrases {
			if w := ct.matchPhrase(phrase); w > 0 {
				sum += w
				matched++
			}
		}

		if matched == 0 {
			continue
		}

		base := sum / maxPossible
		coverage := 0.7 + 0.3*float64(matched)/float64(totalUnits)
		scores[cand.CandidateID] = ClampUnit(base * coverage)
	}

	return scores
}
