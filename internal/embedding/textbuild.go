package embedding

import (
	"fmt"
	"sort"
	"strings"

	"resume-match-go/internal/types"
)

const (
	// MaxInputLength 嵌入服务单次输入的字符上限，超出部分做后缀截断
	MaxInputLength = 8000
	// maxDescriptionLength 经历描述在合成文本里的截断长度
	maxDescriptionLength = 200
)

// BuildCandidateText 从候选人结构化字段合成确定性的嵌入文本。
// 技能和地点各出现两次，让向量偏向技能与地域词；字段顺序固定，
// 同一候选人永远产出同一文本。
func BuildCandidateText(c *types.Candidate) string {
	var parts []string

	if c.Name != "" {
		parts = append(parts, "Name: "+c.Name)
	}
	if c.Email != "" {
		parts = append(parts, "Email: "+c.Email)
	}

	if len(c.Skills) > 0 {
		skills := strings.Join(c.Skills, ", ")
		// 技能写两遍，加重其在向量中的占比
		parts = append(parts, "Skills: "+skills)
		parts = append(parts, "Key Skills: "+skills)
	}

	if len(c.Education) > 0 {
		var items []string
		for _, edu := range c.Education {
			item := formatEducation(edu)
			if item != "" {
				items = append(items, item)
			}
		}
		if len(items) > 0 {
			parts = append(parts, "Education: "+strings.Join(items, "; "))
		}
	}

	if len(c.Experience) > 0 {
		var items []string
		for _, exp := range c.Experience {
			item := formatExperience(exp)
			if item != "" {
				items = append(items, item)
			}
		}
		if len(items) > 0 {
			parts = append(parts, "Experience: "+strings.Join(items, "; "))
		}
	}

	if loc := c.Location(); loc != "" {
		parts = append(parts, "Location: "+loc)
		parts = append(parts, "Based in: "+loc)
	}

	// 未识别的元数据按键名排序后泛化追加，保证确定性
	if len(c.Extra) > 0 {
		keys := make([]string, 0, len(c.Extra))
		for k := range c.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v := formatExtraValue(c.Extra[k]); v != "" {
				parts = append(parts, fmt.Sprintf("%s: %s", capitalize(k), v))
			}
		}
	}

	return Truncate(strings.Join(parts, "\n"), MaxInputLength)
}

// BuildJobText 从岗位字段合成嵌入文本，完整描述放在最后
func BuildJobText(j *types.Job) string {
	var parts []string

	if j.Title != "" {
		parts = append(parts, "Title: "+j.Title)
	}
	if j.Role != "" {
		parts = append(parts, "Role: "+j.Role)
	}
	if len(j.RequiredSkills) > 0 {
		parts = append(parts, "Required Skills: "+strings.Join(j.RequiredSkills, ", "))
	}
	if len(j.PreferredSkills) > 0 {
		parts = append(parts, "Preferred Skills: "+strings.Join(j.PreferredSkills, ", "))
	}
	if j.RequiredExp != "" {
		parts = append(parts, "Required Experience: "+j.RequiredExp)
	}
	if j.EducationReq != "" {
		parts = append(parts, "Education Requirements: "+j.EducationReq)
	}
	if j.Description != "" {
		parts = append(parts, j.Description)
	}

	return Truncate(strings.Join(parts, "\n"), MaxInputLength)
}

func formatEducation(edu types.EducationEntry) string {
	var sb strings.Builder
	if edu.Degree != "" {
		sb.WriteString(edu.Degree)
	}
	if edu.Field != "" {
		if sb.Len() > 0 {
			sb.WriteString(" in ")
		}
		sb.WriteString(edu.Field)
	}
	if edu.Institution != "" {
		if sb.Len() > 0 {
			sb.WriteString(" at ")
		}
		sb.WriteString(edu.Institution)
	}
	if edu.Year != 0 {
		sb.WriteString(fmt.Sprintf(" (%d)", edu.Year))
	}
	return sb.String()
}

func formatExperience(exp types.ExperienceEntry) string {
	var sb strings.Builder
	if exp.Title != "" {
		sb.WriteString(exp.Title)
	}
	if exp.Company != "" {
		if sb.Len() > 0 {
			sb.WriteString(" at ")
		}
		sb.WriteString(exp.Company)
	}
	if exp.Description != "" {
		desc := exp.Description
		if len(desc) > maxDescriptionLength {
			desc = desc[:maxDescriptionLength] + "..."
		}
		if sb.Len() > 0 {
			sb.WriteString(": ")
		}
		sb.WriteString(desc)
	}
	return sb.String()
}

func formatExtraValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []interface{}:
		var items []string
		for _, item := range val {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return strings.Join(items, ", ")
	case []string:
		return strings.Join(val, ", ")
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Truncate 简单后缀截断到 limit 字符
func Truncate(s string, limit int) string {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
