package models

import (
	"testing"
	"time"

	"resume-match-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateDomainConversion(t *testing.T) {
	now := time.Now().Truncate(time.Microsecond)
	domain := &types.Candidate{
		CandidateID: "c1",
		Name:        "Alice",
		Email:       "alice@example.com",
		Skills:      []string{"python", "aws"},
		Education:   []types.EducationEntry{{Degree: "B.Tech", Institution: "IIT"}},
		Experience:  []types.ExperienceEntry{{Title: "Engineer", Company: "Acme"}},
		Personal:    types.PersonalInfo{Location: "Jaipur"},
		Extra: map[string]interface{}{
			"certifications": []interface{}{"CKA"},
		},
		Embedding:          []float64{0.1, 0.2, 0.3},
		EmbeddingUpdatedAt: &now,
	}

	rec, err := CandidateFromDomain(domain)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.SkillsJSON)
	assert.NotEmpty(t, rec.Embedding)

	back, err := rec.ToDomain()
	require.NoError(t, err)
	assert.Equal(t, domain.Skills, back.Skills)
	assert.Equal(t, domain.Education, back.Education)
	assert.Equal(t, domain.Experience, back.Experience)
	assert.Equal(t, "Jaipur", back.Location())
	assert.Equal(t, domain.Embedding, back.Embedding)
	require.NotNil(t, back.EmbeddingUpdatedAt)
	assert.True(t, now.Equal(*back.EmbeddingUpdatedAt))
}

func TestCandidateToDomainEmptyColumns(t *testing.T) {
	rec := &Candidate{CandidateID: "c2", Name: "Bob"}

	back, err := rec.ToDomain()
	require.NoError(t, err, "空JSON列和空向量都应安全转换")
	assert.Empty(t, back.Skills)
	assert.Nil(t, back.Embedding)
	assert.Nil(t, back.EmbeddingUpdatedAt)
}

func TestCandidateToDomainCorruptJSON(t *testing.T) {
	rec := &Candidate{CandidateID: "c3", SkillsJSON: []byte("{not json")}
	_, err := rec.ToDomain()
	assert.Error(t, err, "损坏的JSON列必须报错，由上层决定跳过该记录")
}

func TestVectorMarshalEmptyStoresNull(t *testing.T) {
	data, err := MarshalVector(nil)
	require.NoError(t, err)
	assert.Nil(t, data, "空向量存NULL而不是空数组")

	vec, err := UnmarshalVector(nil)
	require.NoError(t, err)
	assert.Nil(t, vec)
}

func TestJobDomainConversion(t *testing.T) {
	domain := &types.Job{
		JobID:           "j1",
		Title:           "Cloud Engineer",
		RequiredSkills:  []string{"kubernetes"},
		PreferredSkills: []string{"terraform"},
		Location:        "Bangalore",
		Embedding:       []float64{0.5},
	}

	rec, err := JobFromDomain(domain)
	require.NoError(t, err)

	back, err := rec.ToDomain()
	require.NoError(t, err)
	assert.Equal(t, domain.Title, back.Title)
	assert.Equal(t, domain.RequiredSkills, back.RequiredSkills)
	assert.Equal(t, domain.PreferredSkills, back.PreferredSkills)
	assert.Equal(t, domain.Embedding, back.Embedding)
}
