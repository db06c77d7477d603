// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Assistant     AssistantConfig     `mapstructure:"assistant"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。DSN 为空时不启用对话归档。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储客户端令牌相关的配置。
type JWTConfig struct {
	Secret           string `mapstructure:"secret"`
	ClientExpireDays int    `mapstructure:"client_expire_days"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时交互事件直接同步归档。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	BucketName      string        `mapstructure:"bucket_name"`
	ImagePrefix     string        `mapstructure:"image_prefix"`
	URLExpiry       time.Duration `mapstructure:"url_expiry"`
}

// LLMConfig 存储聊天补全服务相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
	Prompt     LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数。
type LLMGenerationConfig struct {
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig 配置系统提示词。为空时使用内置的提示词。
type LLMPromptConfig struct {
	System string `mapstructure:"system"`
}

// AssistantConfig 控制助手的应答方式与会话存储。
type AssistantConfig struct {
	// Mode 为 "static"（关键词匹配 + 预置回答）或 "remote"（调用补全服务）。
	Mode           string        `mapstructure:"mode"`
	ThinkingDelay  time.Duration `mapstructure:"thinking_delay"`
	HistoryLimit   int           `mapstructure:"history_limit"`
	WelcomeMessage string        `mapstructure:"welcome_message"`
	StorageTTL     time.Duration `mapstructure:"storage_ttl"`
	Archive        bool          `mapstructure:"archive"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8081")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("jwt.client_expire_days", 30)
	v.SetDefault("kafka.topic", "paydash-interactions")
	v.SetDefault("kafka.group_id", "paydash-archiver")
	v.SetDefault("elasticsearch.index_name", "paydash_interactions")
	v.SetDefault("minio.bucket_name", "paydash")
	v.SetDefault("minio.image_prefix", "samples/")
	v.SetDefault("minio.url_expiry", time.Hour)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.generation.temperature", 0.7)
	v.SetDefault("llm.generation.max_tokens", 500)
	v.SetDefault("assistant.mode", "static")
	v.SetDefault("assistant.thinking_delay", time.Second)
	v.SetDefault("assistant.history_limit", 10)
	v.SetDefault("assistant.storage_ttl", 30*24*time.Hour)
	v.SetDefault("assistant.archive", true)

	// 仅注册键名，使 AutomaticEnv 在 Unmarshal 时能够覆盖这些值。
	for _, key := range []string{
		"database.mysql.dsn", "database.redis.password", "jwt.secret",
		"kafka.brokers", "elasticsearch.addresses", "elasticsearch.username", "elasticsearch.password",
		"minio.endpoint", "minio.access_key_id", "minio.secret_access_key",
		"llm.api_key", "llm.prompt.system", "assistant.welcome_message",
	} {
		v.SetDefault(key, "")
	}
}

// Load 从指定路径读取 YAML 配置；path 为空时只使用默认值与环境变量。
// 环境变量以 PAYDASH_ 为前缀，例如 PAYDASH_LLM_API_KEY。
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("paydash")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
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

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
