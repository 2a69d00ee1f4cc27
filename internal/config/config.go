package config

import (
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// API
	APIBaseURL string
	Timeout    time.Duration

	// Retry
	RetryAttempts int
	RetryDelay    time.Duration

	// Rate Limit
	RateLimitPerMinute int

	// Upload
	UploadMaxSize int64

	// Token
	TokenPath string

	// Watch
	WatchInterval time.Duration
	MetricsPort   string
}

// Load は環境変数からConfigを読み込む。
// すべての項目にデフォルト値があり、未設定でもエラーにはならない。
// ローカルの開発サーバーに対してそのまま動作させるため。
func Load() *Config {
	cfg := &Config{}

	cfg.APIBaseURL = getEnvString("NEKOMAP_API_BASE_URL", "http://localhost:8080/api")
	cfg.Timeout = getEnvDuration("NEKOMAP_TIMEOUT", 10*time.Second)
	cfg.RetryAttempts = getEnvInt("NEKOMAP_RETRY_ATTEMPTS", 3)
	cfg.RetryDelay = getEnvDuration("NEKOMAP_RETRY_DELAY", time.Second)
	cfg.RateLimitPerMinute = getEnvInt("NEKOMAP_RATE_LIMIT", 120)
	cfg.UploadMaxSize = getEnvInt64("NEKOMAP_UPLOAD_MAX_SIZE", 5242880)
	cfg.TokenPath = getEnvString("NEKOMAP_TOKEN_PATH", "")
	cfg.WatchInterval = getEnvDuration("NEKOMAP_WATCH_INTERVAL", 5*time.Minute)
	cfg.MetricsPort = getEnvString("NEKOMAP_METRICS_PORT", "9091")

	return cfg
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
