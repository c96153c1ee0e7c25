package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseDriver string
	DatabaseURL    string

	// Redis (비어 있으면 프로세스 내부 락 사용)
	RedisURL string

	// JWT
	JWTSecret     string
	JWTExpiration time.Duration

	// CORS
	CORSAllowedOrigins []string

	// Live score
	WSSendBuffer     int
	MaxUpdateRetries int
	MatchLockTTL     time.Duration
	UpdateRateLimit  int64
	UpdateRateRefill int64
	StatsInterval    time.Duration
}

func Load() (*Config, error) {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseDriver:     getEnv("DATABASE_DRIVER", "postgres"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		JWTSecret:          getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiration:      parseDuration(getEnv("JWT_EXPIRATION", "24h"), 24*time.Hour),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		WSSendBuffer:       int(parseInt(getEnv("WS_SEND_BUFFER", "256"), 256)),
		MaxUpdateRetries:   int(parseInt(getEnv("MAX_UPDATE_RETRIES", "3"), 3)),
		MatchLockTTL:       parseDuration(getEnv("MATCH_LOCK_TTL", "5s"), 5*time.Second),
		UpdateRateLimit:    parseInt(getEnv("UPDATE_RATE_LIMIT", "10"), 10),
		UpdateRateRefill:   parseInt(getEnv("UPDATE_RATE_REFILL", "5"), 5),
		StatsInterval:      parseDuration(getEnv("STATS_INTERVAL", "1m"), time.Minute),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int64) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
