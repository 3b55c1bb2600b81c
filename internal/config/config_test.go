package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	// 路径指向不存在目录，走默认配置分支
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 0.5, cfg.Search.Weights.Keyword)
	assert.Equal(t, 0.4, cfg.Search.Weights.Semantic)
	assert.Equal(t, 0.1, cfg.Search.Weights.Location)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 30, cfg.Search.FreshnessDays)
	assert.Equal(t, 20, cfg.Search.EmbeddingBatchSize)
	assert.Equal(t, 3, cfg.Search.Retry.MaxAttempts)
	assert.Equal(t, 2, cfg.Search.Retry.BaseDelaySecond)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  address: ":9090"
search:
  weights:
    keyword: 0.6
    semantic: 0.3
    location: 0.1
  default_limit: 25
dictionary:
  regions:
    rajasthan: [jaipur, udaipur]
aliyun:
  api_key: "file-key"
  embedding:
    model: text-embedding-v3
    dimensions: 1024
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 0.6, cfg.Search.Weights.Keyword)
	assert.Equal(t, 25, cfg.Search.DefaultLimit)
	assert.Equal(t, []string{"jaipur", "udaipur"}, cfg.Dictionary.Regions["rajasthan"])
	assert.Equal(t, "file-key", cfg.Aliyun.APIKey)
	// 文件未给的项仍有默认值
	assert.Equal(t, 30, cfg.Search.FreshnessDays)
}

func TestLoadConfigEnvOverridesAPIKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("aliyun:\n  api_key: from-file\n"), 0o644))

	t.Setenv("ALIYUN_API_KEY", "from-env")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Aliyun.APIKey)
}

func TestLoadConfigBadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":::not yaml"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
