package types

import "time"

// EducationEntry 教育经历条目
type EducationEntry struct {
	Degree      string `json:"degree,omitempty"`
	Institution string `json:"institution,omitempty"`
	Field       string `json:"field,omitempty"`
	Year        int    `json:"year,omitempty"`
}

// ExperienceEntry 工作经历条目
type ExperienceEntry struct {
	Title       string `json:"title,omitempty"`
	Company     string `json:"company,omitempty"`
	Description string `json:"description,omitempty"`
	Duration    string `json:"duration,omitempty"`
}

// PersonalInfo 候选人个人信息（解析器产出的已知结构部分）
type PersonalInfo struct {
	Location string `json:"location,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// Candidate 候选人简历的结构化视图。
// 解析管线作为黑盒产出 skills/education/experience/personal_info，
// 其余未识别的章节落入 Extra。排序核心只读这些字段，
// 唯一的写回是重新生成的 Embedding 及其时间戳。
type Candidate struct {
	CandidateID string            `json:"candidate_id"`
	Name        string            `json:"name,omitempty"`
	Email       string            `json:"email,omitempty"`
	Filename    string            `json:"filename,omitempty"`
	Skills      []string          `json:"skills,omitempty"`
	Education   []EducationEntry  `json:"education,omitempty"`
	Experience  []ExperienceEntry `json:"experience,omitempty"`
	Personal    PersonalInfo      `json:"personal_info,omitempty"`
	// Extra 保存解析器产出的未识别章节，形状不可信，访问方必须容忍缺失/错型
	Extra map[string]interface{} `json:"extra,omitempty"`

	// 缓存的向量表示，可能为空（尚未生成）
	Embedding          []float64  `json:"-"`
	EmbeddingUpdatedAt *time.Time `json:"-"`
}

// Location 返回候选人所在地，未知时为空串
func (c *Candidate) Location() string {
	return c.Personal.Location
}

// Job 岗位记录
type Job struct {
	JobID           string   `json:"job_id"`
	Title           string   `json:"title"`
	Role            string   `json:"role,omitempty"`
	Description     string   `json:"description,omitempty"`
	Location        string   `json:"location,omitempty"`
	RequiredSkills  []string `json:"required_skills,omitempty"`
	PreferredSkills []string `json:"preferred_skills,omitempty"`
	RequiredExp     string   `json:"required_experience,omitempty"`
	EducationReq    string   `json:"education_requirements,omitempty"`

	Embedding          []float64  `json:"-"`
	EmbeddingUpdatedAt *time.Time `json:"-"`
}

// ScoreMap 按候选人ID索引的单信号归一化分数，取值[0,1]。
// 每次搜索调用临时构建，不落盘。
type ScoreMap map[string]float64

// ParsedQuery 查询解析结果
type ParsedQuery struct {
	// 双引号包裹的短语，整体精确匹配优先
	Phrases []string
	// 命中角色类目的词
	RoleTerms []string
	// 命中领域词典（语言/框架/数据库/云厂商）的词，值为所属类目
	DomainTerms map[string]string
	// 形如技能的词（长度>2且非纯数字，未命中词典）
	SkillTerms []string
	// 其余兜底词
	GeneralTerms []string
	// 可选的地点串
	Location string
}

// AllTerms 返回去重后的全部查询词（不含短语），保持首次出现顺序
func (q *ParsedQuery) AllTerms() []string {
	seen := make(map[string]bool)
	var out []string
	appendAll := func(terms []string) {
		for _, t := range terms {
			if t != "" && !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	appendAll(q.GeneralTerms)
	appendAll(q.SkillTerms)
	appendAll(q.RoleTerms)
	for t := range q.DomainTerms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// ComponentScores 单信号得分明细，以百分数保留两位小数，便于调用方观测
type ComponentScores struct {
	Keyword  float64 `json:"keyword"`
	Semantic float64 `json:"semantic"`
	Location float64 `json:"location"`
}

// RankedCandidate 排序结果条目。SearchScore 为[0,100]的综合分。
type RankedCandidate struct {
	Candidate   *Candidate      `json:"candidate"`
	Combined    float64         `json:"-"` // 原始[0,1]综合分，排序用
	SearchScore float64         `json:"search_score"`
	Components  ComponentScores `json:"component_scores"`
}

// CandidateFilter 候选池过滤条件，由存储协作方解释
type CandidateFilter struct {
	// FolderID 可选，限定某个目录下的简历
	FolderID string
	// OwnerID 可选，限定归属用户
	OwnerID string
}
