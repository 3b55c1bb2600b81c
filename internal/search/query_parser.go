package search

import (
	"regexp"
	"strings"
	"unicode"

	"resume-match-go/internal/types"
)

// QueryParser 把自由文本查询拆解为短语、类目词、技能词和兜底词。
// 解析完全确定：相同输入永远产出相同结构，不依赖随机数和外部调用。
type QueryParser struct {
	dict *Dictionary
}

// NewQueryParser 创建查询解析器
func NewQueryParser(dict *Dictionary) *QueryParser {
	if dict == nil {
		dict = NewDictionary(nil, nil)
	}
	return &QueryParser{dict: dict}
}

var quotedPhrasePattern = regexp.MustCompile(`"([^"]*)"`)

// Parse 解析查询文本。
// 流程：先抽出双引号短语并从剩余文本移除，再按逗号/空白切词，
// 每个词按领域词典做单一最优分类（词典命中优先于通用技能判定），
// 词不会被丢弃。
func (p *QueryParser) Parse(query string) *types.ParsedQuery {
	parsed := &types.ParsedQuery{
		DomainTerms: make(map[string]string),
	}

	// 1. 抽取双引号短语
	remainder := quotedPhrasePattern.ReplaceAllStringFunc(query, func(m string) string {
		phrase := strings.TrimSpace(strings.Trim(m, `"`))
		if phrase != "" {
			parsed.Phrases = append(parsed.Phrases, strings.ToLower(phrase))
		}
		return " "
	})

	// 2. 剩余文本按逗号/空白切词
	tokens := strings.FieldsFunc(remainder, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})

	for _, tok := range tokens {
		term := strings.ToLower(strings.TrimSpace(tok))
		if term == "" {
			continue
		}

		// 3. 单一最优分类：词典命中 > 技能启发 > 兜底
		if cat, ok := p.dict.Lookup(term); ok {
			if cat == CategoryRole {
				parsed.RoleTerms = append(parsed.RoleTerms, term)
			} else {
				parsed.DomainTerms[term] = string(cat)
			}
			continue
		}

		if len(term) > 2 && !isNumeric(term) {
			parsed.SkillTerms = append(parsed.SkillTerms, term)
			continue
		}

		parsed.GeneralTerms = append(parsed.GeneralTerms, term)
	}

	return parsed
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
