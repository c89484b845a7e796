package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 集約ポリシーの設定値
const (
	AggregationPolicyPartial  = "partial"
	AggregationPolicyFailFast = "fail_fast"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Upstream
	LaunchesAPIURL string
	RocketsAPIURL  string
	SSRFProtection bool

	// Fetch
	FetchTimeout       time.Duration
	RocketFetchTimeout time.Duration
	FetchMaxSize       int64
	FetchMaxConcurrent int

	// Aggregation / View
	AggregationPolicy string
	PageSize          int

	// Rate Limit
	RateLimitGeneral int

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.LaunchesAPIURL = getEnvString("LAUNCHES_API_URL", "https://api.spacexdata.com/v5/launches")
	cfg.RocketsAPIURL = strings.TrimRight(getEnvString("ROCKETS_API_URL", "https://api.spacexdata.com/v4/rockets"), "/")
	cfg.SSRFProtection = getEnvBool("SSRF_PROTECTION", true)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 30*time.Second)
	cfg.RocketFetchTimeout = getEnvDuration("ROCKET_FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 10485760)
	cfg.FetchMaxConcurrent = getEnvInt("FETCH_MAX_CONCURRENT", 0)
	cfg.AggregationPolicy = getEnvString("AGGREGATION_POLICY", AggregationPolicyPartial)
	cfg.PageSize = getEnvInt("PAGE_SIZE", 20)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	var invalid []string

	switch cfg.AggregationPolicy {
	case AggregationPolicyPartial, AggregationPolicyFailFast:
	default:
		invalid = append(invalid, "AGGREGATION_POLICY")
	}
	if cfg.PageSize <= 0 {
		invalid = append(invalid, "PAGE_SIZE")
	}
	if cfg.FetchMaxConcurrent < 0 {
		invalid = append(invalid, "FETCH_MAX_CONCURRENT")
	}
	if cfg.FetchMaxSize <= 0 {
		invalid = append(invalid, "FETCH_MAX_SIZE")
	}

	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid environment variables: %v", invalid)
	}

	return cfg, nil
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

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}
