// Package config loads engine configuration from a .env file and the
// environment. Tuning constants deliberately live here rather than in
// code: the update-rule and scheduling numbers are tunable, not sacred.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration.
type Config struct {
	Mode     string // "dev" or "prod"
	HTTPAddr string

	// Transactional store
	DBType      string // "postgres" or "sqlite"
	DatabaseURL string // postgres DSN
	SQLitePath  string

	// Graph store
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string
	Neo4jTimeout  time.Duration
	Neo4jMaxPool  int

	// Optional recommendation cache
	RedisAddr         string
	RecommendCacheTTL time.Duration

	// External auth layer hands out HS256 tokens signed with this secret.
	AuthJWTSecret string

	// Reminder digest (disabled when the token is empty)
	TelegramBotToken string

	// Per-call store timeout for the external operations.
	OpTimeout time.Duration

	// Tuning
	MasteryBaseRate      float64
	MasteryMinRate       float64
	MasteryHalfLifeDays  int
	MasteryBaseline      float64
	PassThreshold        float64
	RetryThreshold       float64
	MaxIntervalDays      int
	EligibilityThreshold float64
	DiversityFraction    float64

	// API rate limiting, requests per second per client with burst.
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads .env (if present) and the environment.
func Load() *Config {
	// Отсутствие .env не ошибка: в проде всё приходит из окружения
	_ = godotenv.Load()

	return &Config{
		Mode:     envStr("APP_MODE", "dev"),
		HTTPAddr: envStr("HTTP_ADDR", ":8080"),

		DBType:      envStr("DB_TYPE", "sqlite"),
		DatabaseURL: envStr("DATABASE_URL", ""),
		SQLitePath:  envStr("SQLITE_PATH", "data/learncore.db"),

		Neo4jURI:      envStr("NEO4J_URI", ""),
		Neo4jUser:     envStr("NEO4J_USER", "neo4j"),
		Neo4jPassword: envStr("NEO4J_PASSWORD", ""),
		Neo4jDatabase: envStr("NEO4J_DATABASE", ""),
		Neo4jTimeout:  time.Duration(envInt("NEO4J_TIMEOUT_SECONDS", 10)) * time.Second,
		Neo4jMaxPool:  envInt("NEO4J_MAX_POOL_SIZE", 50),

		RedisAddr:         envStr("REDIS_ADDR", ""),
		RecommendCacheTTL: time.Duration(envInt("RECOMMEND_CACHE_TTL_SECONDS", 60)) * time.Second,

		AuthJWTSecret: envStr("AUTH_JWT_SECRET", ""),

		TelegramBotToken: envStr("TELEGRAM_BOT_TOKEN", ""),

		OpTimeout: time.Duration(envInt("OP_TIMEOUT_SECONDS", 5)) * time.Second,

		MasteryBaseRate:      envFloat("MASTERY_BASE_RATE", 0.35),
		MasteryMinRate:       envFloat("MASTERY_MIN_RATE", 0.05),
		MasteryHalfLifeDays:  envInt("MASTERY_HALF_LIFE_DAYS", 30),
		MasteryBaseline:      envFloat("MASTERY_BASELINE", 0.30),
		PassThreshold:        envFloat("PASS_THRESHOLD", 0.80),
		RetryThreshold:       envFloat("RETRY_THRESHOLD", 0.50),
		MaxIntervalDays:      envInt("MAX_INTERVAL_DAYS", 365),
		EligibilityThreshold: envFloat("ELIGIBILITY_THRESHOLD", 0.60),
		DiversityFraction:    envFloat("DIVERSITY_FRACTION", 0.40),

		RateLimitRPS:   envFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),
	}
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}
