package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Local store
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// JWT issued by the identity provider; the API only verifies it.
	JWTSecret string

	// Generation service (OpenAI-compatible)
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	OpenAITemperature float64
	AITimeout         time.Duration

	// Remote mirror
	MirrorBackend        string
	MirrorBadgerPath     string
	MirrorGCSBucket      string
	MirrorGCSCredentials string
	MirrorSQLDSN         string
	MirrorRateLimit      float64
	MirrorBurst          int

	// Sync
	SyncInterval    time.Duration
	SyncConcurrency int

	// Admin
	AdminEmails string
	AdminToken  string

	// Server
	Port           string
	CORSOrigins    string
	SentryDSN      string
	AppEnv         string
	LogLevel       string
	TracingEnabled bool
}

func Load() *Config {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	return &Config{
		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "fitplan_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "fitplan.db"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4"),
		OpenAITemperature: parseFloat(getEnv("OPENAI_TEMPERATURE", "0.7"), 0.7),
		AITimeout:         parseDuration(getEnv("AI_TIMEOUT", "60s"), 60*time.Second),

		MirrorBackend:        getEnv("MIRROR_BACKEND", "badger"),
		MirrorBadgerPath:     getEnv("MIRROR_BADGER_PATH", "data/mirror"),
		MirrorGCSBucket:      getEnv("MIRROR_GCS_BUCKET", ""),
		MirrorGCSCredentials: getEnv("MIRROR_GCS_CREDENTIALS", ""),
		MirrorSQLDSN:         getEnv("MIRROR_SQL_DSN", ""),
		MirrorRateLimit:      parseFloat(getEnv("MIRROR_RATE_LIMIT", "50"), 50),
		MirrorBurst:          parseInt(getEnv("MIRROR_BURST", "10"), 10),

		SyncInterval:    parseDuration(getEnv("SYNC_INTERVAL", "15m"), 15*time.Minute),
		SyncConcurrency: parseInt(getEnv("SYNC_CONCURRENCY", "8"), 8),

		AdminEmails: getEnv("ADMIN_EMAILS", ""),
		AdminToken:  getEnv("ADMIN_TOKEN", ""),

		Port:           getEnv("PORT", "8080"),
		CORSOrigins:    getEnv("CORS_ORIGINS", "*"),
		SentryDSN:      getEnv("SENTRY_DSN", ""),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		TracingEnabled: parseBool(getEnv("TRACING_ENABLED", "false")),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(s string, fallback float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
