package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr                 string
	Environment          string
	HRAPIBaseURL         string
	HRAPITimeout         time.Duration
	DefaultCompanyID     string
	DirectoryMaxPageSize int
	JWTSecret            string
	JWTTTL               time.Duration
	OperatorEmail        string
	OperatorPasswordHash string
	DatabaseURL          string
	RunMigrations        bool
	MigrationsDir        string
	RedisAddr            string
	RedisPassword        string
	RateLimitPerMinute   int
	TrustProxyHeaders    bool
	MaxBodyBytes         int64
	CORSAllowedOrigins   []string
	MetricsEnabled       bool
	LogLevel             string
	LogFormat            string
}

// Load reads an optional .env file, then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("dotenv load failed", "err", err)
	}
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		Addr:                 getEnv("APP_ADDR", ":8080"),
		Environment:          getEnv("APP_ENV", "development"),
		HRAPIBaseURL:         getEnv("HR_API_BASE_URL", ""),
		HRAPITimeout:         getEnvDuration("HR_API_TIMEOUT", 10*time.Second),
		DefaultCompanyID:     getEnv("DEFAULT_COMPANY_ID", ""),
		DirectoryMaxPageSize: getEnvInt("DIRECTORY_MAX_PAGE_SIZE", 100),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		JWTTTL:               getEnvDuration("JWT_TTL", 8*time.Hour),
		OperatorEmail:        getEnv("OPERATOR_EMAIL", ""),
		OperatorPasswordHash: getEnv("OPERATOR_PASSWORD_HASH", ""),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RunMigrations:        getEnvBool("RUN_MIGRATIONS", true),
		MigrationsDir:        getEnv("MIGRATIONS_DIR", "migrations"),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RateLimitPerMinute:   getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		TrustProxyHeaders:    getEnvBool("TRUST_PROXY_HEADERS", false),
		MaxBodyBytes:         int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		CORSAllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		MetricsEnabled:       getEnvBool("METRICS_ENABLED", true),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) AuditEnabled() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.HRAPIBaseURL) == "" {
		return fmt.Errorf("HR_API_BASE_URL is required")
	}
	parsed, err := url.Parse(c.HRAPIBaseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("HR_API_BASE_URL must be an absolute http(s) URL")
	}
	if c.HRAPITimeout <= 0 {
		return fmt.Errorf("HR_API_TIMEOUT must be positive")
	}
	if c.DirectoryMaxPageSize <= 0 {
		return fmt.Errorf("DIRECTORY_MAX_PAGE_SIZE must be positive")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() {
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
		if c.OperatorEmail == "" || c.OperatorPasswordHash == "" {
			return fmt.Errorf("OPERATOR_EMAIL and OPERATOR_PASSWORD_HASH must be set in production")
		}
	}
	if c.OperatorEmail != "" && !strings.HasPrefix(c.OperatorPasswordHash, "$2") {
		return fmt.Errorf("OPERATOR_PASSWORD_HASH must be a bcrypt hash")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text")
	}
	return nil
}
