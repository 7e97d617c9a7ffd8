package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// UploadConfig 定义 CSV 上传相关配置
type UploadConfig struct {
	MaxFileSize      int64 // 上传文件大小上限（字节），默认 5 MiB
	EmailColumnIndex int   // 邮箱列下标（0 起始），默认第 0 列
}

// VerifierConfig 定义外部邮箱验证 API 的调用配置
type VerifierConfig struct {
	APIURL     string        // 批量验证端点
	Timeout    time.Duration // 单次调用超时，默认 30s
	BatchSize  int           // 每批提交的邮箱数量，默认 100
	BatchDelay time.Duration // 批次间固定延迟（限速），默认 100ms
}

// JobsConfig 定义任务保留与清理配置
type JobsConfig struct {
	Retention       time.Duration // 任务保留窗口，默认 1h
	CleanupInterval time.Duration // 后台清理周期，默认 15m
}

// PoolConfig 定义验证驱动器协程池配置
type PoolConfig struct {
	Workers   int // 并发驱动器数量上限，默认 4
	QueueSize int // 待启动任务队列长度，默认 16
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig
	Upload   UploadConfig
	Verifier VerifierConfig
	Jobs     JobsConfig
	Pool     PoolConfig
	CORS     CORSConfig
	Log      LogConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: MAILVERIFY_
// 例如: MAILVERIFY_SERVER_PORT, MAILVERIFY_VERIFIER_API_URL
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，.env 是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("mailverify")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("upload.max_file_size", 5*1024*1024)
	viper.SetDefault("upload.email_column_index", 0)
	viper.SetDefault("verifier.api_url", "https://rapid-email-verifier.fly.dev/api/validate/batch")
	viper.SetDefault("verifier.timeout", "30s")
	viper.SetDefault("verifier.batch_size", 100)
	viper.SetDefault("verifier.batch_delay", "100ms")
	viper.SetDefault("jobs.retention", "1h")
	viper.SetDefault("jobs.cleanup_interval", "15m")
	viper.SetDefault("pool.workers", 4)
	viper.SetDefault("pool.queue_size", 16)
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)

	timeout, err := time.ParseDuration(viper.GetString("verifier.timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid verifier.timeout: %w", err)
	}

	batchDelay, err := time.ParseDuration(viper.GetString("verifier.batch_delay"))
	if err != nil {
		return nil, fmt.Errorf("invalid verifier.batch_delay: %w", err)
	}

	retention, err := time.ParseDuration(viper.GetString("jobs.retention"))
	if err != nil {
		return nil, fmt.Errorf("invalid jobs.retention: %w", err)
	}

	cleanupInterval, err := time.ParseDuration(viper.GetString("jobs.cleanup_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid jobs.cleanup_interval: %w", err)
	}

	apiURL := viper.GetString("verifier.api_url")
	if apiURL == "" {
		return nil, fmt.Errorf("verifier.api_url must not be empty")
	}

	batchSize := viper.GetInt("verifier.batch_size")
	if batchSize <= 0 {
		batchSize = 100
	}

	maxFileSize := viper.GetInt64("upload.max_file_size")
	if maxFileSize <= 0 {
		maxFileSize = 5 * 1024 * 1024
	}

	workers := viper.GetInt("pool.workers")
	if workers <= 0 {
		workers = 4
	}

	queueSize := viper.GetInt("pool.queue_size")
	if queueSize <= 0 {
		queueSize = 16
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Upload: UploadConfig{
			MaxFileSize:      maxFileSize,
			EmailColumnIndex: viper.GetInt("upload.email_column_index"),
		},
		Verifier: VerifierConfig{
			APIURL:     apiURL,
			Timeout:    timeout,
			BatchSize:  batchSize,
			BatchDelay: batchDelay,
		},
		Jobs: JobsConfig{
			Retention:       retention,
			CleanupInterval: cleanupInterval,
		},
		Pool: PoolConfig{
			Workers:   workers,
			QueueSize: queueSize,
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 先尝试当前目录，再尝试父目录（从 backend/ 子目录运行的情况）。
// 已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
