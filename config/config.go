package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	VectorDB VectorDBConfig `mapstructure:"vectordb"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Embed    EmbedConfig    `mapstructure:"embed"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Database DatabaseConfig `mapstructure:"database"`
	Chunker  ChunkerConfig  `mapstructure:"chunker"`
	Search   SearchConfig   `mapstructure:"search"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"` // 服务器主机
	Port int    `mapstructure:"port"` // 服务器端口
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type"`     // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`     // 本地存储路径
	Bucket    string `mapstructure:"bucket"`   // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"` // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// VectorDBConfig 向量数据库配置
type VectorDBConfig struct {
	Type       string `mapstructure:"type"`        // 向量数据库类型：memory, faiss, pgvector
	Path       string `mapstructure:"path"`        // 数据库文件路径或连接串
	Collection string `mapstructure:"collection"`  // 集合/表名，pgvector后端使用
	Dim        int    `mapstructure:"dim"`         // 向量维度
	Distance   string `mapstructure:"distance"`    // 距离度量方式：cosine, l2, dot
	ScoreScale string `mapstructure:"score_scale"` // 期望的得分方向：similarity 或 distance
}

// LLMConfig 大语言模型配置
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`    // 提供商
	Model       string  `mapstructure:"model"`       // 模型名称
	APIKey      string  `mapstructure:"api_key"`     // API密钥
	Endpoint    string  `mapstructure:"endpoint"`    // API端点
	MaxTokens   int     `mapstructure:"max_tokens"`  // 最大生成token数量
	Temperature float32 `mapstructure:"temperature"` // 采样温度
}

// EmbedConfig 向量嵌入模型配置
type EmbedConfig struct {
	Provider   string `mapstructure:"provider"`   // 提供商
	Model      string `mapstructure:"model"`      // 模型名称
	APIKey     string `mapstructure:"api_key"`    // API密钥
	Endpoint   string `mapstructure:"endpoint"`   // API端点
	BatchSize  int    `mapstructure:"batch_size"` // 批处理大小
	Workers    int    `mapstructure:"workers"`    // 并行批处理的工作线程数
	Dimensions int    `mapstructure:"dimensions"` // 向量维度
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`   // 是否启用嵌入缓存
	Type     string `mapstructure:"type"`     // 缓存类型：memory 或 redis
	Address  string `mapstructure:"address"`  // Redis地址
	Password string `mapstructure:"password"` // Redis密码
	DB       int    `mapstructure:"db"`       // Redis数据库
	TTL      int    `mapstructure:"ttl"`      // 缓存TTL（秒）
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Enable        bool   `mapstructure:"enable"`         // 是否启用任务队列
	RedisAddr     string `mapstructure:"redis_addr"`     // Redis地址
	RedisPassword string `mapstructure:"redis_password"` // Redis密码
	RedisDB       int    `mapstructure:"redis_db"`       // Redis数据库编号
	Concurrency   int    `mapstructure:"concurrency"`    // 任务处理并发数
	RetryLimit    int    `mapstructure:"retry_limit"`    // 任务最大重试次数
	RetryDelay    int    `mapstructure:"retry_delay"`    // 重试延迟(秒)
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // 数据库类型，目前支持sqlite
	DSN  string `mapstructure:"dsn"`  // 数据源名称
}

// ChunkerConfig 文本分块配置
type ChunkerConfig struct {
	Policy         string   `mapstructure:"policy"`          // 分块策略：smart 或 length
	ChunkSize      int      `mapstructure:"chunk_size"`      // 分块大小
	ChunkOverlap   int      `mapstructure:"chunk_overlap"`   // 分块重叠大小
	MinChunkSize   int      `mapstructure:"min_chunk_size"`  // 最小可接受的分块大小
	BoundaryWindow int      `mapstructure:"boundary_window"` // 边界搜索窗口半径
	Abbreviations  []string `mapstructure:"abbreviations"`   // 句子边界判断的缩写例外表
}

// SearchConfig 检索配置
type SearchConfig struct {
	Limit            int     `mapstructure:"limit"`             // 检索的分块数量
	QualityThreshold float32 `mapstructure:"quality_threshold"` // 进入回答上下文的最低相似度
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别
	Format string `mapstructure:"format"` // 输出格式：text 或 json
	File   string `mapstructure:"file"`   // 日志文件路径，为空时输出到stderr
}

// Load 从文件和环境变量加载配置
// 配置文件缺失时使用默认值，解析成功后做一致性校验
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
		logrus.WithField("path", configPath).Warn("config file not found, using defaults")
	}

	setDefaults(v)

	// 环境变量覆盖，如 SERVER_PORT、EMBED_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	expandSecrets(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate 校验配置的一致性
func (c *Config) Validate() error {
	if c.VectorDB.Dim <= 0 {
		return fmt.Errorf("vectordb.dim must be positive, got %d", c.VectorDB.Dim)
	}
	if c.Embed.Dimensions != 0 && c.Embed.Dimensions != c.VectorDB.Dim {
		return fmt.Errorf("embed.dimensions (%d) does not match vectordb.dim (%d)",
			c.Embed.Dimensions, c.VectorDB.Dim)
	}

	switch c.VectorDB.ScoreScale {
	case "", "similarity", "distance":
	default:
		return fmt.Errorf("vectordb.score_scale must be %q or %q, got %q",
			"similarity", "distance", c.VectorDB.ScoreScale)
	}

	if c.Search.QualityThreshold < 0 || c.Search.QualityThreshold > 1 {
		return fmt.Errorf("search.quality_threshold must be in [0, 1], got %v", c.Search.QualityThreshold)
	}
	if c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunker.chunk_overlap (%d) must be smaller than chunker.chunk_size (%d)",
			c.Chunker.ChunkOverlap, c.Chunker.ChunkSize)
	}

	if c.Storage.Type == "minio" && c.Storage.Endpoint == "" {
		return fmt.Errorf("storage.endpoint is required for minio storage")
	}

	return nil
}

// CacheTTL 返回缓存TTL
func (c *CacheConfig) CacheTTL() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// expandSecrets 展开密钥字段中的${ENV_VAR}引用
func expandSecrets(cfg *Config) {
	cfg.Embed.APIKey = expandEnv(cfg.Embed.APIKey)
	cfg.LLM.APIKey = expandEnv(cfg.LLM.APIKey)
	cfg.Storage.AccessKey = expandEnv(cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = expandEnv(cfg.Storage.SecretKey)
	cfg.Cache.Password = expandEnv(cfg.Cache.Password)
	cfg.Queue.RedisPassword = expandEnv(cfg.Queue.RedisPassword)
}

// expandEnv 将"${NAME}"形式的值替换为环境变量内容
func expandEnv(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		if envVal := os.Getenv(value[2 : len(value)-1]); envVal != "" {
			return envVal
		}
	}
	return value
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./uploads")
	v.SetDefault("storage.bucket", "smart-rag")
	v.SetDefault("storage.use_ssl", false)

	v.SetDefault("vectordb.type", "memory")
	v.SetDefault("vectordb.path", "./data/vectors")
	v.SetDefault("vectordb.collection", "doc_chunks")
	v.SetDefault("vectordb.dim", 1536)
	v.SetDefault("vectordb.distance", "cosine")
	v.SetDefault("vectordb.score_scale", "similarity")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.temperature", 0.7)

	v.SetDefault("embed.provider", "openai")
	v.SetDefault("embed.model", "text-embedding-3-small")
	v.SetDefault("embed.batch_size", 16)
	v.SetDefault("embed.workers", 4)
	v.SetDefault("embed.dimensions", 1536)

	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", 86400)

	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.retry_limit", 3)
	v.SetDefault("queue.retry_delay", 60)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/smartrag.db")

	v.SetDefault("chunker.policy", "smart")
	v.SetDefault("chunker.chunk_size", 1000)
	v.SetDefault("chunker.chunk_overlap", 150)
	v.SetDefault("chunker.min_chunk_size", 200)
	v.SetDefault("chunker.boundary_window", 150)

	v.SetDefault("search.limit", 5)
	v.SetDefault("search.quality_threshold", 0.45)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
