package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"sjsage522/harvester/pkg/errors"
)

// DefaultUserAgent is sent by both the HTTP fetcher and the browser when nothing else is configured
const DefaultUserAgent = "Harvester/1.0 (+https://github.com/sjsage522/harvester)"

// Config represents the process level configuration read from the environment
type Config struct {
	// Output configuration
	OutputDir    string
	ErrorLogPath string

	// Memcache configuration; an empty address disables the page cache
	MemcacheAddr string
	PageCacheTTL time.Duration
	BlockTime    time.Duration

	// Redis configuration; an empty address disables record publishing
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Metrics endpoint; empty disables the listener
	MetricsAddr string

	// Fetching
	NavTimeout time.Duration
	UserAgent  string
	// ProfileDir holds named browser profiles
	ProfileDir string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	streamMaxLength, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "1000"))
	cacheTTL, _ := strconv.Atoi(getEnv("PAGE_CACHE_TTL_SECONDS", "0"))
	blockTime, _ := strconv.Atoi(getEnv("BLOCK_TIME_SECONDS", "300"))
	navTimeout, _ := strconv.Atoi(getEnv("NAV_TIMEOUT_MS", "30000"))

	return Config{
		OutputDir:            getEnv("OUTPUT_DIR", "output"),
		ErrorLogPath:         getEnv("ERROR_LOG_PATH", "output/errors.log"),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		PageCacheTTL:         time.Duration(cacheTTL) * time.Second,
		BlockTime:            time.Duration(blockTime) * time.Second,
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "harvest"),
		RedisStreamCount:     streamCount,
		RedisStreamMaxLength: streamMaxLength,
		MetricsAddr:          getEnv("METRICS_ADDR", ""),
		NavTimeout:           time.Duration(navTimeout) * time.Millisecond,
		UserAgent:            getEnv("HARVEST_USER_AGENT", DefaultUserAgent),
		ProfileDir:           getEnv("PROFILE_DIR", "profiles"),
		Environment:          getEnv("HARVEST_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values that would break a run
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return errors.NewConfiguration("OUTPUT_DIR must not be empty", nil)
	}
	if c.NavTimeout <= 0 {
		return errors.NewConfiguration(fmt.Sprintf("NAV_TIMEOUT_MS must be positive, got %v", c.NavTimeout), nil)
	}
	if c.PageCacheTTL < 0 || c.BlockTime < 0 {
		return errors.NewConfiguration("cache durations must not be negative", nil)
	}
	if c.RedisAddr != "" {
		if c.RedisStream == "" {
			return errors.NewConfiguration("REDIS_STREAM is required when REDIS_ADDR is set", nil)
		}
		if c.RedisStreamCount < 1 {
			return errors.NewConfiguration(fmt.Sprintf("REDIS_STREAM_COUNT must be at least 1, got %d", c.RedisStreamCount), nil)
		}
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
