package models

import (
	"encoding/json"
	"fmt"
	"time"

	"resume-match-go/internal/types"

	"gorm.io/datatypes"
)

// Candidate 候选人主表。解析管线产出的结构化章节以JSON列存储，
// 向量表示序列化后放blob，新鲜度由 embedding_updated_at 判断。
type Candidate struct {
	CandidateID        string         `gorm:"type:char(36);primaryKey"`
	Name               string         `gorm:"type:varchar(255)"`
	Email              string         `gorm:"type:varchar(255);index:idx_candidates_email"`
	Filename           string         `gorm:"type:varchar(255)"`
	FolderID           string         `gorm:"type:char(36);index:idx_candidates_folder_id"`
	OwnerID            string         `gorm:"type:char(36);index:idx_candidates_owner_id"`
	SkillsJSON         datatypes.JSON `gorm:"type:json"`
	EducationJSON      datatypes.JSON `gorm:"type:json"`
	ExperienceJSON     datatypes.JSON `gorm:"type:json"`
	PersonalJSON       datatypes.JSON `gorm:"type:json"`
	ExtraJSON          datatypes.JSON `gorm:"type:json"`
	Embedding          []byte         `gorm:"type:mediumblob"` // JSON序列化后的[]float64
	EmbeddingUpdatedAt *time.Time     `gorm:"type:datetime(6);index:idx_candidates_embedding_updated_at"`
	CreatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// ToDomain 将数据库记录转换为领域对象
func (c *Candidate) ToDomain() (*types.Candidate, error) {
	out := &types.Candidate{
		CandidateID:        c.CandidateID,
		Name:               c.Name,
		Email:              c.Email,
		Filename:           c.Filename,
		EmbeddingUpdatedAt: c.EmbeddingUpdatedAt,
	}

	if err := unmarshalJSONColumn(c.SkillsJSON, &out.Skills); err != nil {
		return nil, fmt.Errorf("解析skills失败: %w", err)
	}
	if err := unmarshalJSONColumn(c.EducationJSON, &out.Education); err != nil {
		return nil, fmt.Errorf("解析education失败: %w", err)
	}
	if err := unmarshalJSONColumn(c.ExperienceJSON, &out.Experience); err != nil {
		return nil, fmt.Errorf("解析experience失败: %w", err)
	}
	if err := unmarshalJSONColumn(c.PersonalJSON, &out.Personal); err != nil {
		return nil, fmt.Errorf("解析personal_info失败: %w", err)
	}
	if err := unmarshalJSONColumn(c.ExtraJSON, &out.Extra); err != nil {
		return nil, fmt.Errorf("解析extra失败: %w", err)
	}

	vec, err := UnmarshalVector(c.Embedding)
	if err != nil {
		return nil, fmt.Errorf("解析候选人向量失败: %w", err)
	}
	out.Embedding = vec

	return out, nil
}

// CandidateFromDomain 将领域对象转换为数据库记录
func CandidateFromDomain(c *types.Candidate) (*Candidate, error) {
	rec := &Candidate{
		CandidateID:        c.CandidateID,
		Name:               c.Name,
		Email:              c.Email,
		Filename:           c.Filename,
		EmbeddingUpdatedAt: c.EmbeddingUpdatedAt,
	}

	var err error
	if rec.SkillsJSON, err = marshalJSONColumn(c.Skills); err != nil {
		return nil, err
	}
	if rec.EducationJSON, err = marshalJSONColumn(c.Education); err != nil {
		return nil, err
	}
	if rec.ExperienceJSON, err = marshalJSONColumn(c.Experience); err != nil {
		return nil, err
	}
	if rec.PersonalJSON, err = marshalJSONColumn(c.Personal); err != nil {
		return nil, err
	}
	if rec.ExtraJSON, err = marshalJSONColumn(c.Extra); err != nil {
		return nil, err
	}

	if rec.Embedding, err = MarshalVector(c.Embedding); err != nil {
		return nil, err
	}

	return rec, nil
}

// Job 岗位信息表
type Job struct {
	JobID               string         `gorm:"type:char(36);primaryKey"`
	Title               string         `gorm:"type:varchar(255);not null"`
	Role                string         `gorm:"type:varchar(255)"`
	Description         string         `gorm:"type:text"`
	Location            string         `gorm:"type:varchar(255)"`
	RequiredSkillsJSON  datatypes.JSON `gorm:"type:json"`
	PreferredSkillsJSON datatypes.JSON `gorm:"type:json"`
	RequiredExp         string         `gorm:"type:varchar(255)"`
	EducationReq        string         `gorm:"type:varchar(255)"`
	Status              string         `gorm:"type:varchar(50);default:'ACTIVE';index:idx_jobs_status"`
	Embedding           []byte         `gorm:"type:mediumblob"`
	EmbeddingUpdatedAt  *time.Time     `gorm:"type:datetime(6)"`
	CreatedAt           time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt           time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Job) TableName() string {
	return "jobs"
}

// ToDomain 将数据库记录转换为领域对象
func (j *Job) ToDomain() (*types.Job, error) {
	out := &types.Job{
		JobID:              j.JobID,
		Title:              j.Title,
		Role:               j.Role,
		Description:        j.Description,
		Location:           j.Location,
		RequiredExp:        j.RequiredExp,
		EducationReq:       j.EducationReq,
		EmbeddingUpdatedAt: j.EmbeddingUpdatedAt,
	}

	if err := unmarshalJSONColumn(j.RequiredSkillsJSON, &out.RequiredSkills); err != nil {
		return nil, fmt.Errorf("解析required_skills失败: %w", err)
	}
	if err := unmarshalJSONColumn(j.PreferredSkillsJSON, &out.PreferredSkills); err != nil {
		return nil, fmt.Errorf("解析preferred_skills失败: %w", err)
	}

	vec, err := UnmarshalVector(j.Embedding)
	if err != nil {
		return nil, fmt.Errorf("解析岗位向量失败: %w", err)
	}
	out.Embedding = vec

	return out, nil
}

// JobFromDomain 将领域对象转换为数据库记录
func JobFromDomain(j *types.Job) (*Job, error) {
	rec := &Job{
		JobID:              j.JobID,
		Title:              j.Title,
		Role:               j.Role,
		Description:        j.Description,
		Location:           j.Location,
		RequiredExp:        j.RequiredExp,
		EducationReq:       j.EducationReq,
		EmbeddingUpdatedAt: j.EmbeddingUpdatedAt,
	}

	var err error
	if rec.RequiredSkillsJSON, err = marshalJSONColumn(j.RequiredSkills); err != nil {
		return nil, err
	}
	if rec.PreferredSkillsJSON, err = marshalJSONColumn(j.PreferredSkills); err != nil {
		return nil, err
	}
	if rec.Embedding, err = MarshalVector(j.Embedding); err != nil {
		return nil, err
	}

	return rec, nil
}

// MarshalVector 将向量序列化为存储格式，空向量存NULL
func MarshalVector(vec []float64) ([]byte, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("序列化向量失败: %w", err)
	}
	return data, nil
}

// UnmarshalVector 从存储格式恢复向量，NULL返回nil
func UnmarshalVector(data []byte) ([]float64, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var vec []float64
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func marshalJSONColumn(v interface{}) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("序列化JSON列失败: %w", err)
	}
	return datatypes.JSON(data), nil
}

func unmarshalJSONColumn(data datatypes.JSON, dest interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}
