package search

import "strings"

// TermCategory 领域词典类目
type TermCategory string

const (
	CategoryLanguage  TermCategory = "language"
	CategoryFramework TermCategory = "framework"
	CategoryDatabase  TermCategory = "database"
	CategoryCloud     TermCategory = "cloud"
	CategoryRole      TermCategory = "role"
)

// Dictionary 静态领域词典 + 地区层级表。
// 启动时从配置加载一次，之后只读，可被任意多个搜索并发使用。
type Dictionary struct {
	terms map[string]TermCategory
	// parent -> children（均为小写规范形式）
	regionChildren map[string][]string
	// child -> parent
	regionParent map[string]string
}

// NewDictionary 构建词典。categories 的键为类目名（language/framework/
// database/cloud/role），值为该类目的词表；regions 的键为父地区，
// 值为其子地区列表。传入 nil 时使用内置默认表。
func NewDictionary(categories map[string][]string, regions map[string][]string) *Dictionary {
	if categories == nil {
		categories = defaultCategories
	}
	if regions == nil {
		regions = defaultRegions
	}

	d := &Dictionary{
		terms:          make(map[string]TermCategory),
		regionChildren: make(map[string][]string),
		regionParent:   make(map[string]string),
	}

	for name, list := range categories {
		cat, ok := knownCategories[strings.ToLower(name)]
		if !ok {
			continue // 未识别的类目直接忽略，不算致命
		}
		for _, term := range list {
			t := strings.ToLower(strings.TrimSpace(term))
			if t == "" {
				continue
			}
			// 角色类目优先，已有角色标签的词不被其他类目覆盖
			if existing, dup := d.terms[t]; dup && existing == CategoryRole {
				continue
			}
			d.terms[t] = cat
		}
	}

	for parent, children := range regions {
		p := strings.ToLower(strings.TrimSpace(parent))
		if p == "" {
			continue
		}
		for _, child := range children {
			c := strings.ToLower(strings.TrimSpace(child))
			if c == "" {
				continue
			}
			d.regionChildren[p] = append(d.regionChildren[p], c)
			d.regionParent[c] = p
		}
	}

	return d
}

var knownCategories = map[string]TermCategory{
	"language":  CategoryLanguage,
	"languages": CategoryLanguage,
	"framework": CategoryFramework,
	"database":  CategoryDatabase,
	"cloud":     CategoryCloud,
	"role":      CategoryRole,
	"roles":     CategoryRole,
}

// Lookup 查询一个词（已小写化）的类目
func (d *Dictionary) Lookup(term string) (TermCategory, bool) {
	cat, ok := d.terms[strings.ToLower(term)]
	return cat, ok
}

// RegionParent 返回某地区的父地区，没有登记时返回空串
func (d *Dictionary) RegionParent(region string) string {
	return d.regionParent[strings.ToLower(region)]
}

// IsParentRegion 判断 parent 是否为 child 的登记父地区
func (d *Dictionary) IsParentRegion(parent, child string) bool {
	return d.regionParent[strings.ToLower(child)] == strings.ToLower(parent)
}

// AreSiblingRegions 判断两个地区是否登记在同一个父地区之下
func (d *Dictionary) AreSiblingRegions(a, b string) bool {
	pa := d.regionParent[strings.ToLower(a)]
	pb := d.regionParent[strings.ToLower(b)]
	return pa != "" && pa == pb
}

// 内置默认词典，配置缺省时兜底
var defaultCategories = map[string][]string{
	"language": {
		"python", "java", "go", "golang", "javascript", "typescript", "c++",
		"c#", "ruby", "php", "rust", "kotlin", "swift", "scala", "sql", "r",
	},
	"framework": {
		"django", "flask", "fastapi", "spring", "react", "angular", "vue",
		"nodejs", "express", "rails", "laravel", "gin", "hertz", "tensorflow",
		"pytorch", "spark",
	},
	"database": {
		"mysql", "postgresql", "postgres", "mongodb", "redis", "elasticsearch",
		"cassandra", "oracle", "sqlite", "dynamodb", "clickhouse",
	},
	"cloud": {
		"aws", "azure", "gcp", "kubernetes", "docker", "terraform", "lambda",
		"ec2", "s3",
	},
	"role": {
		"engineer", "developer", "architect", "manager", "analyst", "scientist",
		"designer", "lead", "intern", "consultant", "administrator", "devops",
	},
}

var defaultRegions = map[string][]string{
	"rajasthan":   {"jaipur", "udaipur", "jodhpur", "kota"},
	"maharashtra": {"mumbai", "pune", "nagpur", "nashik"},
	"karnataka":   {"bangalore", "bengaluru", "mysore", "hubli"},
	"delhi ncr":   {"delhi", "new delhi", "gurgaon", "gurugram", "noida"},
	"tamil nadu":  {"chennai", "coimbatore", "madurai"},
	"telangana":   {"hyderabad", "warangal"},
	"california":  {"san francisco", "los angeles", "san jose", "san diego"},
	"texas":       {"austin", "dallas", "houston"},
	"new york":    {"new york city", "brooklyn", "buffalo"},
	"washington":  {"seattle", "bellevue", "redmond"},
}
