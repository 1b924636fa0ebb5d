// Package config 提供应用程序的配置加载和管理功能
// 使用 TOML 格式的配置文件，支持多路径查找，敏感字段可由环境变量 / .env 覆盖
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml" // TOML 配置文件解析库
	"github.com/joho/godotenv"   // .env 文件加载

	"shop_chat_server/pkg/constants"
)

// MainConfig 主配置，包含应用基本信息
type MainConfig struct {
	AppName     string `toml:"appName"`     // 应用名称，用于日志标识等
	AppVersion  string `toml:"appVersion"`  // 应用版本
	Mode        string `toml:"mode"`        // 运行模式：dev / release
	Host        string `toml:"host"`        // 服务器监听地址，如 "0.0.0.0"
	Port        int    `toml:"port"`        // 服务器监听端口，如 8000
	TLSRedirect bool   `toml:"tlsRedirect"` // 是否开启 HTTP -> HTTPS 重定向
}

// MysqlConfig MySQL 数据库连接配置（用户、订单）
type MysqlConfig struct {
	Host         string `toml:"host"`         // MySQL 服务器地址
	Port         int    `toml:"port"`         // MySQL 端口，默认 3306
	User         string `toml:"user"`         // 数据库用户名
	Password     string `toml:"password"`     // 数据库密码
	DatabaseName string `toml:"databaseName"` // 数据库名称
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host         string `toml:"host"`         // Redis 服务器地址
	Port         int    `toml:"port"`         // Redis 端口，默认 6379
	Password     string `toml:"password"`     // Redis 密码，无密码留空
	Db           int    `toml:"db"`           // Redis 数据库编号，默认 0
	PoolSize     int    `toml:"poolSize"`     // 最大连接数
	MinIdleConns int    `toml:"minIdleConns"` // 最小空闲连接
	DialTimeout  int    `toml:"dialTimeout"`  // 建连超时（毫秒）
	ReadTimeout  int    `toml:"readTimeout"`  // 读超时（毫秒）
	WriteTimeout int    `toml:"writeTimeout"` // 写超时（毫秒）
}

// SessionConfig 会话存储配置
type SessionConfig struct {
	TTLSeconds           int `toml:"ttlSeconds"`           // 会话及索引的过期时间
	MaxMessages          int `toml:"maxMessages"`          // 单会话保留的消息条数
	KeepLatest           int `toml:"keepLatest"`           // 每个设备保留的最近会话数
	SweepIntervalSeconds int `toml:"sweepIntervalSeconds"` // 周期清理间隔，0 表示关闭
	WorkerNum            int `toml:"workerNum"`            // 异步任务 Worker 数量
	TaskBuffer           int `toml:"taskBuffer"`           // 异步任务通道缓冲区大小
}

// RateLimitConfig 固定窗口限流配置
type RateLimitConfig struct {
	MaxRequests   int64 `toml:"maxRequests"`   // 窗口内最大请求数
	WindowSeconds int   `toml:"windowSeconds"` // 窗口长度（秒）
}

// LogConfig 日志配置，使用 lumberjack 进行日志轮转
type LogConfig struct {
	LogPath    string `toml:"logPath"`    // 日志文件存储目录
	FileName   string `toml:"fileName"`   // 日志文件名
	MaxSize    int    `toml:"maxSize"`    // 单个日志文件最大大小（MB）
	MaxBackups int    `toml:"maxBackups"` // 保留旧日志文件的最大个数
	MaxAge     int    `toml:"maxAge"`     // 保留旧日志文件的最大天数
	Level      string `toml:"level"`      // 日志级别：debug, info, warn, error
}

// KafkaConfig Kafka 消息队列配置
type KafkaConfig struct {
	MessageMode   string        `toml:"messageMode"`   // "kafka" 开启投递，"off" 关闭
	HostPort      string        `toml:"hostPort"`      // Kafka 服务器地址，多个用逗号分隔
	RequestTopic  string        `toml:"requestTopic"`  // 用户消息主题
	ResponseTopic string        `toml:"responseTopic"` // AI 回复主题
	ConsumerGroup string        `toml:"consumerGroup"` // 消费者组
	Partition     int           `toml:"partition"`     // 创建主题时的分区数
	Timeout       time.Duration `toml:"timeout"`       // 超时时间（秒）
}

// AIConfig 外部 AI 服务配置
type AIConfig struct {
	URL          string `toml:"url"`          // AI 服务地址
	APIKey       string `toml:"apiKey"`       // Bearer Key
	Timeout      int    `toml:"timeout"`      // 请求超时（秒）
	FallbackText string `toml:"fallbackText"` // AI 不可用时的兜底回复
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	Secret             string `toml:"secret"`             // JWT 签名密钥，建议 32 字符以上
	AccessTokenExpiry  int    `toml:"accessTokenExpiry"`  // Access Token 有效期（分钟）
	RefreshTokenExpiry int    `toml:"refreshTokenExpiry"` // Refresh Token 有效期（小时）
}

// SnowflakeConfig 雪花算法配置
type SnowflakeConfig struct {
	MachineID int64 `toml:"machineId"` // 雪花算法节点 ID，范围 0-1023，分布式部署时每台机器需唯一
}

// Config 应用程序总配置，聚合所有子配置
type Config struct {
	MainConfig      `toml:"mainConfig"`      // 主配置
	MysqlConfig     `toml:"mysqlConfig"`     // MySQL 配置
	RedisConfig     `toml:"redisConfig"`     // Redis 配置
	SessionConfig   `toml:"sessionConfig"`   // 会话配置
	RateLimitConfig `toml:"rateLimitConfig"` // 限流配置
	LogConfig       `toml:"logConfig"`       // 日志配置
	KafkaConfig     `toml:"kafkaConfig"`     // Kafka 配置
	AIConfig        `toml:"aiConfig"`        // AI 服务配置
	JWTConfig       `toml:"jwtConfig"`       // JWT 配置
	SnowflakeConfig `toml:"snowflakeConfig"` // 雪花算法配置
}

// config 全局配置单例，延迟加载
var config *Config

// searchPaths 候选配置文件路径（优先加载本地配置）
var searchPaths = []string{
	"configs/config_local.toml",
	"configs/config.toml",
	"../../configs/config_local.toml", // 从子目录运行时的路径
	"../../configs/config.toml",
}

// LoadConfig 从多个候选路径加载配置文件
// 按顺序尝试加载，找到第一个可用的配置文件即停止
func LoadConfig(cfg *Config) error {
	for _, path := range searchPaths {
		if _, err := toml.DecodeFile(path, cfg); err == nil {
			return nil
		}
	}
	return fmt.Errorf("could not find configuration file in any of the search paths")
}

// LoadFile 从指定路径加载配置，并应用环境变量覆盖与默认值
func LoadFile(path string) (*Config, error) {
	cfg := new(Config)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	applyEnv(cfg)
	cfg.applyDefaults()
	return cfg, nil
}

// GetConfig 获取全局配置实例（单例模式）
// 首次调用时会自动加载配置文件，找不到配置文件时全部使用默认值
func GetConfig() *Config {
	if config == nil {
		config = new(Config)
		_ = LoadConfig(config)
		applyEnv(config)
		config.applyDefaults()
	}
	return config
}

// applyEnv 读取 .env（不存在则忽略）后用环境变量覆盖敏感配置
func applyEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.RedisConfig.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.RedisConfig.Port = port
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisConfig.Password = v
	}
	if v := os.Getenv("MYSQL_PASSWORD"); v != "" {
		cfg.MysqlConfig.Password = v
	}
	if v := os.Getenv("JWT_SECRET_KEY"); v != "" {
		cfg.JWTConfig.Secret = v
	}
	if v := os.Getenv("AI_API_URL"); v != "" {
		cfg.AIConfig.URL = v
	}
	if v := os.Getenv("AI_API_KEY"); v != "" {
		cfg.AIConfig.APIKey = v
	}
	if v := os.Getenv("KAFKA_BOOTSTRAP_SERVERS"); v != "" {
		cfg.KafkaConfig.HostPort = v
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if ttl, err := strconv.Atoi(v); err == nil {
			cfg.SessionConfig.TTLSeconds = ttl
		}
	}
}

// applyDefaults 为所有零值字段填充默认值
func (c *Config) applyDefaults() {
	if c.AppName == "" {
		c.AppName = "shop_chat_server"
	}
	if c.AppVersion == "" {
		c.AppVersion = "1.0.0"
	}
	if c.Mode == "" {
		c.Mode = "dev"
	}
	if c.MainConfig.Host == "" {
		c.MainConfig.Host = "0.0.0.0"
	}
	if c.MainConfig.Port == 0 {
		c.MainConfig.Port = 8000
	}

	if c.RedisConfig.Host == "" {
		c.RedisConfig.Host = "localhost"
	}
	if c.RedisConfig.Port == 0 {
		c.RedisConfig.Port = 6379
	}
	if c.PoolSize == 0 {
		c.PoolSize = 50
	}
	if c.MinIdleConns == 0 {
		c.MinIdleConns = 15
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 2000
	}
	if c.RedisConfig.ReadTimeout == 0 {
		c.RedisConfig.ReadTimeout = 1000
	}
	if c.RedisConfig.WriteTimeout == 0 {
		c.RedisConfig.WriteTimeout = 1000
	}

	if c.TTLSeconds == 0 {
		c.TTLSeconds = constants.SESSION_TTL_SECONDS
	}
	if c.MaxMessages == 0 {
		c.MaxMessages = constants.MAX_SESSION_MESSAGES
	}
	if c.KeepLatest == 0 {
		c.KeepLatest = constants.DEVICE_KEEP_LATEST
	}
	if c.WorkerNum == 0 {
		c.WorkerNum = 15
	}
	if c.TaskBuffer == 0 {
		c.TaskBuffer = 3000
	}

	if c.MaxRequests == 0 {
		c.MaxRequests = constants.RATE_LIMIT_MAX_REQUESTS
	}
	if c.WindowSeconds == 0 {
		c.WindowSeconds = constants.RATE_LIMIT_WINDOW_SECONDS
	}

	if c.LogPath == "" {
		c.LogPath = "./logs"
	}
	if c.Level == "" {
		c.Level = "info"
	}

	if c.MessageMode == "" {
		c.MessageMode = "off"
	}
	if c.HostPort == "" {
		c.HostPort = "localhost:9092"
	}
	if c.RequestTopic == "" {
		c.RequestTopic = "chat-requests"
	}
	if c.ResponseTopic == "" {
		c.ResponseTopic = "chat-responses"
	}
	if c.ConsumerGroup == "" {
		c.ConsumerGroup = "chat-service-group"
	}
	if c.Partition == 0 {
		c.Partition = 3
	}
	if c.KafkaConfig.Timeout == 0 {
		c.KafkaConfig.Timeout = 5
	}

	if c.AIConfig.Timeout == 0 {
		c.AIConfig.Timeout = 30
	}
	if c.FallbackText == "" {
		c.FallbackText = "Xin lỗi, hệ thống AI đang bận. Vui lòng thử lại sau ít phút."
	}

	if c.Secret == "" {
		c.Secret = "dev-secret-key-change-in-production-min-32-chars"
	}
	if c.AccessTokenExpiry == 0 {
		c.AccessTokenExpiry = 30
	}
	if c.RefreshTokenExpiry == 0 {
		c.RefreshTokenExpiry = constants.REFRESH_TOKEN_EXPIRY_HOURS
	}
	if c.MachineID == 0 {
		c.MachineID = 1
	}
}

// SessionTTL 会话 TTL
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// SweepInterval 周期清理间隔
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// RedisAddr 拼接 host:port
func (c *Config) RedisAddr() string {
	return c.RedisConfig.Host + ":" + strconv.Itoa(c.RedisConfig.Port)
}
