// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// EnvPrefix 是覆盖配置项的环境变量前缀，例如 FEEDBACK_GITHUB_TOKEN 对应 github.token。
const EnvPrefix = "FEEDBACK"

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Feedback FeedbackConfig `mapstructure:"feedback"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Redis    RedisConfig    `mapstructure:"redis"`
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

// FeedbackConfig 存储反馈表单本身的配置。
type FeedbackConfig struct {
	// Timezone 决定文件名与内容中时间戳所用的时区。
	Timezone             string `mapstructure:"timezone"`
	StatusDisplaySeconds int    `mapstructure:"status_display_seconds"`
	// LocalExportDir 为空时不落盘，只提供下载。
	LocalExportDir     string `mapstructure:"local_export_dir"`
	SessionIdleMinutes int    `mapstructure:"session_idle_minutes"`
}

// Location 返回配置的时区，无法解析时退回本地时区。
func (c FeedbackConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// StatusDisplayWindow 返回提交结果横幅的显示时长。
func (c FeedbackConfig) StatusDisplayWindow() time.Duration {
	if c.StatusDisplaySeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.StatusDisplaySeconds) * time.Second
}

// SessionIdleTimeout 返回会话被回收前允许的空闲时长。
func (c FeedbackConfig) SessionIdleTimeout() time.Duration {
	if c.SessionIdleMinutes <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

// Remote store backends.
const (
	BackendGitHub = "github"
	BackendMinIO  = "minio"
)

// RemoteConfig 选择远端存储的实现。
type RemoteConfig struct {
	Backend string `mapstructure:"backend"`
}

// GitHubConfig 存储 GitHub contents API 的配置。
type GitHubConfig struct {
	APIBaseURL string `mapstructure:"api_base_url"`
	Owner      string `mapstructure:"owner"`
	Repo       string `mapstructure:"repo"`
	ExportDir  string `mapstructure:"export_dir"`
	Branch     string `mapstructure:"branch"`
	APIVersion string `mapstructure:"api_version"`
	// Token 只应通过环境变量或 .env 注入，为空时进入仅本机下载模式。
	Token string `mapstructure:"token"`
	// TimeoutSeconds 为 0 表示不设置超时。
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	ExportDir       string `mapstructure:"export_dir"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时不发送提交事件。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// RedisConfig 存储 Redis 的配置。Addr 为空时使用进程内的提交锁。
// InFlightTTLSeconds 会被提升到至少覆盖 github.timeout_seconds。
type RedisConfig struct {
	Addr               string `mapstructure:"addr"`
	Password           string `mapstructure:"password"`
	DB                 int    `mapstructure:"db"`
	InFlightTTLSeconds int    `mapstructure:"inflight_ttl_seconds"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")
	v.SetDefault("feedback.timezone", "Asia/Taipei")
	v.SetDefault("feedback.status_display_seconds", 3)
	v.SetDefault("feedback.local_export_dir", "")
	v.SetDefault("feedback.session_idle_minutes", 120)
	v.SetDefault("remote.backend", BackendGitHub)
	v.SetDefault("github.api_base_url", "https://api.github.com")
	v.SetDefault("github.owner", "Lance1102")
	v.SetDefault("github.repo", "pand-erp-feedback")
	v.SetDefault("github.export_dir", "data/exports")
	v.SetDefault("github.branch", "master")
	v.SetDefault("github.api_version", "2022-11-28")
	v.SetDefault("github.token", "")
	v.SetDefault("github.timeout_seconds", 0)
	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "pand-erp-feedback")
	v.SetDefault("minio.export_dir", "data/exports")
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "feedback-submitted")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.inflight_ttl_seconds", 60)
}

// Load 读取 .env（若存在）与 YAML 配置文件，环境变量优先于文件中的值。
// configPath 为空时只使用默认值与环境变量。
func Load(configPath string) (Config, error) {
	// .env 不存在是正常情况
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
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

// Init 初始化配置加载，并将结果写入全局变量 Conf。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
