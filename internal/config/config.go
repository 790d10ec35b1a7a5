package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel        slog.Level
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	LineDataDir   string
	StylePath     string
	ScanInterval  time.Duration
	LineCacheSize int
	ParseCacheDir string

	ViewMinWidth  int
	ViewMinHeight int

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	CORSAllowedOrigins []string

	RateLimitEnabled   bool
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	RateLimitWhitelist []string
}

// Load reads configuration from the environment. Variables set in a .env
// file in the working directory are applied first without overriding the
// real environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	dataDir := os.Getenv("LINE_DATA_DIR")
	if dataDir == "" {
		return nil, fmt.Errorf("LINE_DATA_DIR environment variable is required")
	}

	return &Config{
		LogLevel:        getLogLevelEnv("LOG_LEVEL", slog.LevelInfo),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ReadTimeout:     getDurationEnv("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),

		LineDataDir:   dataDir,
		StylePath:     getEnv("STYLE_PATH", "data/style.xml"),
		ScanInterval:  getDurationEnv("SCAN_INTERVAL", 30*time.Second),
		LineCacheSize: getIntEnv("LINE_CACHE_SIZE", 64),
		ParseCacheDir: getEnv("PARSE_CACHE_DIR", ""),

		ViewMinWidth:  getIntEnv("VIEW_MIN_WIDTH", 320),
		ViewMinHeight: getIntEnv("VIEW_MIN_HEIGHT", 480),

		RedisEnabled:  getBoolEnv("REDIS_ENABLED", false),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		CacheTTL:      getDurationEnv("CACHE_TTL", 24*time.Hour),

		CORSAllowedOrigins: getCSVEnvDefault("CORS_ALLOWED_ORIGINS", []string{"*"}),

		RateLimitEnabled:   getBoolEnv("RATE_LIMIT_ENABLED", false),
		RateLimitRequests:  getIntEnv("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:    getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitWhitelist: getCSVEnvDefault("RATE_LIMIT_WHITELIST", nil),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getLogLevelEnv(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return defaultVal
	}
}

func getCSVEnvDefault(key string, defaultVal []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}

	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			result = append(result, t)
		}
	}
	if len(result) == 0 {
		return defaultVal
	}
	return result
}
