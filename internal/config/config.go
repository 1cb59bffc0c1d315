package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const DefaultConfigPath = "configs/config_local.toml"

type MainConfig struct {
	AppName string `toml:"appName"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	// TLS 开启后通过 ssl.TlsHandler 强制跳转 HTTPS
	TLS      bool   `toml:"tls"`
	CertFile string `toml:"certFile"`
	KeyFile  string `toml:"keyFile"`
}

// DatabaseConfig 关系型存储，driver 为 mysql 或 postgres
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	DSN          string `toml:"dsn"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	DatabaseName string `toml:"databaseName"`
}

type LogConfig struct {
	LogPath string `toml:"logPath"`
	Level   string `toml:"level"`
}

type JwtConfig struct {
	Key         string `toml:"key"`
	ExpireHours int    `toml:"expireHours"`
	Issuer      string `toml:"issuer"`
}

type MilvusConfig struct {
	Address          string `toml:"address"`
	Username         string `toml:"username"`
	Password         string `toml:"password"`
	DBName           string `toml:"dbName"`
	CollectionPrefix string `toml:"collectionPrefix"`
	MetricType       string `toml:"metricType"`
	Nlist            int    `toml:"nlist"`
	Nprobe           int    `toml:"nprobe"`
}

// VectorConfig 向量索引后端：milvus | pgvector | memory
type VectorConfig struct {
	Backend string `toml:"backend"`
	Dim     int    `toml:"dim"`
}

type RagConfig struct {
	TopK            int      `toml:"topK"`
	ChunkMaxChars   int      `toml:"chunkMaxChars"`
	ContextMaxChars int      `toml:"contextMaxChars"`
	Domains         []string `toml:"domains"`
	RawInlineLimit  int      `toml:"rawInlineLimit"`
	// QueryCache 查询向量缓存：lru | redis | none
	QueryCache           string `toml:"queryCache"`
	QueryCacheSize       int    `toml:"queryCacheSize"`
	QueryCacheTTLSeconds int    `toml:"queryCacheTTLSeconds"`
}

type AIEmbeddingConfig struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"apiKey"`
	BaseURL        string `toml:"baseURL"`
	Model          string `toml:"model"`
	Dimensions     int    `toml:"dimensions"`
	TimeoutSeconds int    `toml:"timeoutSeconds"`
}

type AIChatModelConfig struct {
	Provider        string `toml:"provider"`
	APIKey          string `toml:"apiKey"`
	AccessKey       string `toml:"accessKey"`
	SecretKey       string `toml:"secretKey"`
	BaseURL         string `toml:"baseURL"`
	Region          string `toml:"region"`
	Model           string `toml:"model"`
	VisionModel     string `toml:"visionModel"`
	TimeoutSeconds  int    `toml:"timeoutSeconds"`
	RetryTimes      int    `toml:"retryTimes"`
	ByAzure         bool   `toml:"byAzure"`
	AzureAPIVersion string `toml:"azureApiVersion"`
}

type AIConfig struct {
	Embedding AIEmbeddingConfig `toml:"embedding"`
	ChatModel AIChatModelConfig `toml:"chatModel"`
	// OllamaBaseURL 本地模型服务地址，provider=ollama 时使用其 OpenAI 兼容接口
	OllamaBaseURL string `toml:"ollamaBaseURL"`
	OllamaAPIKey  string `toml:"ollamaAPIKey"`
}

type NotionSourceConfig struct {
	Token          string `toml:"token"`
	PageSize       int    `toml:"pageSize"`
	SummarizeImage bool   `toml:"summarizeImage"`
}

type SlackSourceConfig struct {
	BotToken  string `toml:"botToken"`
	PageLimit int    `toml:"pageLimit"`
}

type SourceConfig struct {
	Notion NotionSourceConfig `toml:"notion"`
	Slack  SlackSourceConfig  `toml:"slack"`
}

type KafkaConfig struct {
	Enabled         bool     `toml:"enabled"`
	Brokers         []string `toml:"brokers"`
	ClientID        string   `toml:"clientID"`
	IngestTopic     string   `toml:"ingestTopic"`
	ConsumerGroupID string   `toml:"consumerGroupID"`
	Partitions      int32    `toml:"partitions"`
	Replication     int16    `toml:"replication"`
}

type RedisConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"poolSize"`
	MinIdleConns int    `toml:"minIdleConns"`
}

// MCPConfig MCP 工具服务配置，transport 为 stdio 或 sse
type MCPConfig struct {
	Enabled                bool   `toml:"enabled"`
	Transport              string `toml:"transport"`
	Addr                   string `toml:"addr"`
	Name                   string `toml:"name"`
	Version                string `toml:"version"`
	ToolCallTimeoutSeconds int    `toml:"toolCallTimeoutSeconds"`
}

// SyncJob 定时重新同步的来源
type SyncJob struct {
	Cron       string `toml:"cron"`
	Domain     string `toml:"domain"`
	SourceType string `toml:"sourceType"`
	SourceID   string `toml:"sourceId"`
	Title      string `toml:"title"`
}

type SchedulerConfig struct {
	Enabled bool      `toml:"enabled"`
	Jobs    []SyncJob `toml:"jobs"`
}

type Config struct {
	MainConfig      `toml:"mainConfig"`
	DatabaseConfig  `toml:"databaseConfig"`
	LogConfig       `toml:"logConfig"`
	JwtConfig       `toml:"jwtConfig"`
	MilvusConfig    `toml:"milvusConfig"`
	VectorConfig    `toml:"vectorConfig"`
	RagConfig       `toml:"ragConfig"`
	AIConfig        `toml:"aiConfig"`
	SourceConfig    `toml:"sourceConfig"`
	KafkaConfig     `toml:"kafkaConfig"`
	RedisConfig     `toml:"redisConfig"`
	MCPConfig       `toml:"mcpConfig"`
	SchedulerConfig `toml:"schedulerConfig"`
}

// Default 返回带默认值的配置
func Default() *Config {
	return &Config{
		MainConfig: MainConfig{AppName: "koo", Host: "0.0.0.0", Port: 8000},
		DatabaseConfig: DatabaseConfig{
			Driver:       "mysql",
			Host:         "127.0.0.1",
			Port:         3306,
			User:         "root",
			DatabaseName: "koo",
		},
		LogConfig:    LogConfig{Level: "info"},
		JwtConfig:    JwtConfig{ExpireHours: 24, Issuer: "koo"},
		MilvusConfig: MilvusConfig{Address: "127.0.0.1:19530", CollectionPrefix: "koo", MetricType: "COSINE", Nlist: 1024, Nprobe: 16},
		VectorConfig: VectorConfig{Backend: "milvus", Dim: 1536},
		RagConfig: RagConfig{
			TopK:                 8,
			ChunkMaxChars:        900,
			ContextMaxChars:      6000,
			Domains:              []string{"CS", "DEV"},
			RawInlineLimit:       32 * 1024,
			QueryCache:           "lru",
			QueryCacheSize:       1024,
			QueryCacheTTLSeconds: 600,
		},
		AIConfig: AIConfig{
			Embedding:     AIEmbeddingConfig{Provider: "openai", Model: "text-embedding-3-small", TimeoutSeconds: 30},
			ChatModel:     AIChatModelConfig{Provider: "openai", Model: "gpt-4o-mini", TimeoutSeconds: 60},
			OllamaBaseURL: "http://localhost:11434",
		},
		SourceConfig: SourceConfig{
			Notion: NotionSourceConfig{PageSize: 100},
			Slack:  SlackSourceConfig{PageLimit: 200},
		},
		KafkaConfig: KafkaConfig{
			ClientID:        "koo",
			IngestTopic:     "koo.rag.ingest",
			ConsumerGroupID: "koo-rag-ingest",
			Partitions:      3,
			Replication:     1,
		},
		RedisConfig: RedisConfig{Host: "127.0.0.1", Port: 6379, PoolSize: 10},
		MCPConfig:   MCPConfig{Transport: "stdio", Addr: ":8081", Name: "koo", Version: "1.0.0", ToolCallTimeoutSeconds: 120},
	}
}

var (
	config *Config
	mu     sync.Mutex
)

// LoadConfig 读取配置文件并叠加 .env 与环境变量，文件不存在时使用默认值
func LoadConfig(path string) (*Config, error) {
	conf := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, conf); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("decode config %s: %w", path, err)
			}
			log.Printf("配置文件 %s 不存在，使用默认设置", path)
		}
	}
	// .env 不存在时忽略
	_ = godotenv.Load()
	if err := applyEnv(conf, os.Getenv); err != nil {
		return nil, err
	}
	return conf, nil
}

// GetConfig 获取全局配置，首次调用时加载（KOO_CONFIG 可覆盖路径）
func GetConfig() *Config {
	mu.Lock()
	defer mu.Unlock()
	if config == nil {
		path := os.Getenv("KOO_CONFIG")
		if path == "" {
			path = DefaultConfigPath
		}
		conf, err := LoadConfig(path)
		if err != nil {
			log.Printf("加载配置文件失败: %v, 使用默认设置", err)
			conf = Default()
		}
		config = conf
	}
	return config
}

// SetConfig 替换全局配置（命令行参数或测试使用）
func SetConfig(c *Config) {
	mu.Lock()
	defer mu.Unlock()
	config = c
}

func applyEnv(c *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("DATABASE_URL", &c.DatabaseConfig.DSN)
	str("DATABASE_DRIVER", &c.DatabaseConfig.Driver)

	host, port := getenv("MILVUS_HOST"), getenv("MILVUS_PORT")
	if host != "" || port != "" {
		h, p, _ := strings.Cut(c.MilvusConfig.Address, ":")
		if host != "" {
			h = host
		}
		if port != "" {
			p = port
		}
		c.MilvusConfig.Address = h + ":" + p
	}

	str("EMBEDDING_PROVIDER", &c.AIConfig.Embedding.Provider)
	str("EMBEDDING_MODEL", &c.AIConfig.Embedding.Model)
	if err := num("EMBEDDING_DIM", &c.VectorConfig.Dim); err != nil {
		return err
	}
	if strings.TrimSpace(getenv("EMBEDDING_DIM")) != "" {
		c.AIConfig.Embedding.Dimensions = c.VectorConfig.Dim
	}
	str("LLM_PROVIDER", &c.AIConfig.ChatModel.Provider)
	str("LLM_MODEL", &c.AIConfig.ChatModel.Model)
	if v := getenv("OPENAI_API_KEY"); v != "" {
		if c.AIConfig.Embedding.APIKey == "" {
			c.AIConfig.Embedding.APIKey = v
		}
		if c.AIConfig.ChatModel.APIKey == "" {
			c.AIConfig.ChatModel.APIKey = v
		}
	}
	if v := getenv("OPENAI_BASE_URL"); v != "" {
		if c.AIConfig.Embedding.BaseURL == "" {
			c.AIConfig.Embedding.BaseURL = v
		}
		if c.AIConfig.ChatModel.BaseURL == "" {
			c.AIConfig.ChatModel.BaseURL = v
		}
	}
	str("OLLAMA_BASE_URL", &c.AIConfig.OllamaBaseURL)
	str("OLLAMA_API_KEY", &c.AIConfig.OllamaAPIKey)

	str("NOTION_API_TOKEN", &c.SourceConfig.Notion.Token)
	str("SLACK_BOT_TOKEN", &c.SourceConfig.Slack.BotToken)
	if err := num("TOPK", &c.RagConfig.TopK); err != nil {
		return err
	}

	if v := getenv("KAFKA_BROKERS"); v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		c.KafkaConfig.Brokers = brokers
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		h, p, ok := strings.Cut(v, ":")
		c.RedisConfig.Host = h
		if ok {
			n, err := strconv.Atoi(p)
			if err != nil {
				return fmt.Errorf("env REDIS_ADDR: %w", err)
			}
			c.RedisConfig.Port = n
		}
	}
	str("JWT_KEY", &c.JwtConfig.Key)
	return nil
}

// BuildDSN 返回数据库连接串，未显式配置时按驱动拼装
func (d DatabaseConfig) BuildDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	switch strings.ToLower(d.Driver) {
	case "postgres", "postgresql":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			d.Host, d.Port, d.User, d.Password, d.DatabaseName)
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			d.User, d.Password, d.Host, d.Port, d.DatabaseName)
	}
}

// EmbeddingDim embedder 实际输出的维度：aiConfig.embedding.dimensions 优先，否则取 vectorConfig.dim。
// 向量索引与集合 schema 都以它为准。
func (c *Config) EmbeddingDim() int {
	if c.AIConfig.Embedding.Dimensions > 0 {
		return c.AIConfig.Embedding.Dimensions
	}
	return c.VectorConfig.Dim
}

// Addr 返回 host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
