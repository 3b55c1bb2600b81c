package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuotedPhrasesAndClassification(t *testing.T) {
	parser := NewQueryParser(NewDictionary(nil, nil))

	parsed := parser.Parse(`"senior engineer" python java`)
	require.NotNil(t, parsed)

	assert.Equal(t, []string{"senior engineer"}, parsed.Phrases)
	// python/java命中语言类目
	assert.Equal(t, "language", parsed.DomainTerms["python"])
	assert.Equal(t, "language", parsed.DomainTerms["java"])
	assert.Empty(t, parsed.SkillTerms)
}

func TestParseDeterministic(t *testing.T) {
	parser := NewQueryParser(NewDictionary(nil, nil))

	query := `devops "machine learning", aws kubernetes 5 experienced`
	first := parser.Parse(query)
	second := parser.Parse(query)

	assert.Equal(t, first, second, "相同输入必须产出相同解析结果")
}

func TestParseTermBuckets(t *testing.T) {
	parser := NewQueryParser(NewDictionary(nil, nil))

	parsed := parser.Parse("engineer aws blockchain 10 go")

	// 角色类目单列
	assert.Equal(t, []string{"engineer"}, parsed.RoleTerms)
	// 词典命中
	assert.Equal(t, "cloud", parsed.DomainTerms["aws"])
	assert.Equal(t, "language", parsed.DomainTerms["go"])
	// 未命中词典、长度>2且非数字的词按技能处理
	assert.Equal(t, []string{"blockchain"}, parsed.SkillTerms)
	// 纯数字落入兜底词，不丢弃
	assert.Equal(t, []string{"10"}, parsed.GeneralTerms)
}

func TestParseCommaAndWhitespaceSplitting(t *testing.T) {
	parser := NewQueryParser(NewDictionary(nil, nil))

	parsed := parser.Parse("python,java ,  react")
	assert.Equal(t, "language", parsed.DomainTerms["python"])
	assert.Equal(t, "language", parsed.DomainTerms["java"])
	assert.Equal(t, "framework", parsed.DomainTerms["react"])
}

func TestParseEmptyAndPhraseOnly(t *testing.T) {
	parser := NewQueryParser(nil)

	parsed := parser.Parse("   ")
	assert.Empty(t, parsed.Phrases)
	assert.Empty(t, parsed.AllTerms())

	parsed = parser.Parse(`"full stack developer"`)
	assert.Equal(t, []string{"full stack developer"}, parsed.Phrases)
	assert.Empty(t, parsed.AllTerms())
}

func TestAllTermsDeduplicates(t *testing.T) {
	parser := NewQueryParser(NewDictionary(nil, nil))

	parsed := parser.Parse("python python blockchain blockchain")
	terms := parsed.AllTerms()
	assert.ElementsMatch(t, []string{"python", "blockchain"}, terms)
}

func TestDictionaryRegionHierarchy(t *testing.T) {
	dict := NewDictionary(nil, nil)

	assert.Equal(t, "rajasthan", dict.RegionParent("Jaipur"))
	assert.True(t, dict.IsParentRegion("rajasthan", "jaipur"))
	assert.False(t, dict.IsParentRegion("jaipur", "rajasthan"))
	assert.True(t, dict.AreSiblingRegions("jaipur", "udaipur"))
	assert.False(t, dict.AreSiblingRegions("jaipur", "mumbai"))
	assert.False(t, dict.AreSiblingRegions("unknown-a", "unknown-b"))
}

func TestDictionaryCustomTables(t *testing.T) {
	dict := NewDictionary(
		map[string][]string{
			"language": {"Elixir"},
			"role":     {"barista"},
			"unknown":  {"ignored"},
		},
		map[string][]string{"kanto": {"tokyo", "yokohama"}},
	)

	cat, ok := dict.Lookup("elixir")
	assert.True(t, ok)
	assert.Equal(t, CategoryLanguage, cat)

	cat, ok = dict.Lookup("barista")
	assert.True(t, ok)
	assert.Equal(t, CategoryRole, cat)

	_, ok = dict.Lookup("ignored")
	assert.False(t, ok, "未识别类目的词表应被忽略")

	assert.Equal(t, "kanto", dict.RegionParent("Tokyo"))
	assert.True(t, dict.AreSiblingRegions("tokyo", "yokohama"))
}
