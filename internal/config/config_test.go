package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, 8, c.RagConfig.TopK)
	assert.Equal(t, 900, c.RagConfig.ChunkMaxChars)
	assert.Equal(t, 6000, c.RagConfig.ContextMaxChars)
	assert.Equal(t, 1536, c.VectorConfig.Dim)
	assert.Equal(t, []string{"CS", "DEV"}, c.RagConfig.Domains)
	assert.Equal(t, "127.0.0.1:19530", c.MilvusConfig.Address)
	assert.Equal(t, 32*1024, c.RagConfig.RawInlineLimit)
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	err := applyEnv(c, envMap(map[string]string{
		"MILVUS_HOST":      "milvus.internal",
		"EMBEDDING_DIM":    "768",
		"TOPK":             "3",
		"OPENAI_API_KEY":   "sk-test",
		"KAFKA_BROKERS":    "k1:9092, k2:9092,",
		"REDIS_ADDR":       "cache:6380",
		"LLM_PROVIDER":     "ollama",
		"NOTION_API_TOKEN": "secret_n",
	}))
	require.NoError(t, err)
	assert.Equal(t, "milvus.internal:19530", c.MilvusConfig.Address)
	assert.Equal(t, 768, c.VectorConfig.Dim)
	assert.Equal(t, 3, c.RagConfig.TopK)
	assert.Equal(t, "sk-test", c.AIConfig.Embedding.APIKey)
	assert.Equal(t, "sk-test", c.AIConfig.ChatModel.APIKey)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaConfig.Brokers)
	assert.Equal(t, "cache:6380", c.RedisConfig.Addr())
	assert.Equal(t, "ollama", c.AIConfig.ChatModel.Provider)
	assert.Equal(t, "secret_n", c.SourceConfig.Notion.Token)
}

func TestEmbeddingDimFollowsEnvOverride(t *testing.T) {
	c := Default()
	c.AIConfig.Embedding.Dimensions = 1536
	assert.Equal(t, 1536, c.EmbeddingDim())

	require.NoError(t, applyEnv(c, envMap(map[string]string{"EMBEDDING_DIM": "768"})))
	assert.Equal(t, 768, c.VectorConfig.Dim)
	assert.Equal(t, 768, c.AIConfig.Embedding.Dimensions)
	assert.Equal(t, 768, c.EmbeddingDim())

	plain := Default()
	assert.Equal(t, plain.VectorConfig.Dim, plain.EmbeddingDim())
}

func TestApplyEnvKeepsExplicitKey(t *testing.T) {
	c := Default()
	c.AIConfig.ChatModel.APIKey = "from-file"
	require.NoError(t, applyEnv(c, envMap(map[string]string{"OPENAI_API_KEY": "from-env"})))
	assert.Equal(t, "from-file", c.AIConfig.ChatModel.APIKey)
	assert.Equal(t, "from-env", c.AIConfig.Embedding.APIKey)
}

func TestApplyEnvRejectsBadNumber(t *testing.T) {
	err := applyEnv(Default(), envMap(map[string]string{"TOPK": "many"}))
	assert.ErrorContains(t, err, "TOPK")
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "koo.toml")
	body := `
[ragConfig]
topK = 4
domains = ["CS"]

[vectorConfig]
backend = "pgvector"
dim = 8

[[schedulerConfig.jobs]]
cron = "@every 1h"
domain = "DEV"
sourceType = "NOTION"
sourceId = "page-1"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, c.RagConfig.TopK)
	assert.Equal(t, []string{"CS"}, c.RagConfig.Domains)
	assert.Equal(t, "pgvector", c.VectorConfig.Backend)
	// 未写入文件的字段保持默认值
	assert.Equal(t, 900, c.RagConfig.ChunkMaxChars)
	require.Len(t, c.SchedulerConfig.Jobs, 1)
	assert.Equal(t, "page-1", c.SchedulerConfig.Jobs[0].SourceID)
}

func TestLoadConfigMissingFile(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "koo", c.MainConfig.AppName)
}

func TestBuildDSN(t *testing.T) {
	d := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", DatabaseName: "koo"}
	assert.Contains(t, d.BuildDSN(), "host=db port=5432")
	d.Driver = "mysql"
	assert.Equal(t, "u:p@tcp(db:5432)/koo?charset=utf8mb4&parseTime=True&loc=Local", d.BuildDSN())
	d.DSN = "explicit"
	assert.Equal(t, "explicit", d.BuildDSN())
}
