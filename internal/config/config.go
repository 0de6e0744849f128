// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Agent         AgentConfig         `mapstructure:"agent"`
	Auth          AuthConfig          `mapstructure:"auth"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	ScoreStore    ScoreStoreConfig    `mapstructure:"score_store"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// LLMConfig 存储大语言模型相关的配置。
// Provider 为 "openai"（任意 OpenAI 兼容端点）或 "azure"（Azure OpenAI 部署）。
type LLMConfig struct {
	Provider         string  `mapstructure:"provider"`
	APIKey           string  `mapstructure:"api_key"`
	BaseURL          string  `mapstructure:"base_url"`
	APIVersion       string  `mapstructure:"api_version"`
	Model            string  `mapstructure:"model"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	Temperature      float64 `mapstructure:"temperature"`
	MaxTokens        int     `mapstructure:"max_tokens"`
	StructuredOutput bool    `mapstructure:"structured_output"`
}

// AgentConfig 描述模拟客户（persona）的基础设定。
type AgentConfig struct {
	Name         string `mapstructure:"name"`
	Description  string `mapstructure:"description"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// AuthConfig 存储身份识别相关的配置。
type AuthConfig struct {
	FederatedHeader string            `mapstructure:"federated_header"`
	LocalUsers      []LocalUserConfig `mapstructure:"local_users"`
}

// LocalUserConfig 描述一个本地账户。PasswordHash 优先于 Password。
type LocalUserConfig struct {
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	PasswordHash string `mapstructure:"password_hash"`
	Role         string `mapstructure:"role"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
}

// ScoreStoreConfig 配置评分存储后端。
// Driver 可选 mysql / redis / mongo / memory，留空表示禁用（降级模式）。
type ScoreStoreConfig struct {
	Driver         string `mapstructure:"driver"`
	TableName      string `mapstructure:"table_name"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	ReadRetries    int    `mapstructure:"read_retries"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
	Mongo MongoConfig `mapstructure:"mongo"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MongoConfig 存储 MongoDB 的配置。
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时不发布评分事件。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。Addresses 为空时禁用评分分析索引。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。Endpoint 为空时禁用对话归档。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// setDefaults 为所有可选项设置默认值。
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_version", "2024-08-01-preview")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 800)
	v.SetDefault("agent.name", "Cora")
	v.SetDefault("agent.description", "AI customer persona for customer service training")
	v.SetDefault("auth.federated_header", "X-MS-CLIENT-PRINCIPAL-NAME")
	v.SetDefault("jwt.access_token_expire_hours", 12)
	v.SetDefault("score_store.table_name", "conversation_scores")
	v.SetDefault("score_store.timeout_seconds", 5)
	v.SetDefault("score_store.read_retries", 2)
	v.SetDefault("database.mongo.database", "cora")
	v.SetDefault("kafka.topic", "conversation-scores")
	v.SetDefault("kafka.group_id", "cora-score-indexer")
	v.SetDefault("elasticsearch.index_name", "conversation_scores")
	v.SetDefault("minio.bucket_name", "cora-transcripts")

	// AutomaticEnv 只对 viper 已知的键生效，需要为可被环境变量覆盖的空值键注册默认值。
	for _, key := range []string{
		"llm.api_key", "agent.system_prompt", "jwt.secret", "score_store.driver",
		"database.mysql.dsn", "database.redis.addr", "database.redis.password", "database.mongo.uri",
		"kafka.brokers", "elasticsearch.addresses", "elasticsearch.username", "elasticsearch.password",
		"minio.endpoint", "minio.access_key_id", "minio.secret_access_key",
	} {
		v.SetDefault(key, "")
	}
}

// Load 从指定路径读取 YAML 配置，并允许使用 CORA_ 前缀的环境变量覆盖，例如 CORA_LLM_API_KEY。
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("CORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return cfg, nil
}

// Validate 检查启动所必需的配置项。可选的外部依赖（存储、Kafka、ES、MinIO）缺失不视为错误。
func (c Config) Validate() error {
	var errs []error
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	switch c.LLM.Provider {
	case "openai", "azure":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider))
	}
	if c.LLM.Provider == "azure" && c.LLM.BaseURL == "" {
		errs = append(errs, errors.New("llm.base_url (azure endpoint) is required for provider azure"))
	}
	switch c.ScoreStore.Driver {
	case "", "mysql", "redis", "mongo", "memory":
	default:
		errs = append(errs, fmt.Errorf("score_store.driver %q is not supported", c.ScoreStore.Driver))
	}
	if len(c.Auth.LocalUsers) > 0 && c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required when local users are configured"))
	}
	return errors.Join(errs...)
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Errorf("配置校验失败: %w", err))
	}
	Conf = cfg
}
