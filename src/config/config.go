package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "your-very-secure-and-long-jwt-secret-key-for-hs256-minimum-32-bytes"

type AppConfig struct {
	Port     string
	LogLevel string

	DatabaseDriver string // "sqlite" or "postgres"
	DatabasePath   string
	DatabaseURL    string

	JWTSecret string

	ReportCacheTTL     time.Duration
	ReportCacheCleanup time.Duration

	// LotMatching selects how disposals consume acquisition lots: "whole" or "split".
	LotMatching string

	MaxUploadSizeBytes int64

	RateLimitInterval time.Duration
	RateLimitBurst    int

	AllowedOrigins   []string
	BatchConcurrency int
}

var Cfg *AppConfig

// LoadConfig reads .env (if present) and the process environment into Cfg.
// Invalid values fall back to their defaults with a logged warning; settings
// that cannot be defaulted safely are reported through the returned error.
func LoadConfig() error {
	if errEnv := godotenv.Load(); errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	jwtSecret := getEnv("JWT_SECRET", defaultJWTSecret)
	if jwtSecret == defaultJWTSecret {
		log.Println("WARNING: Using default insecure JWT_SECRET. Set JWT_SECRET environment variable for production.")
	}

	cfg := &AppConfig{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", "sqlite")),
		DatabasePath:   getEnv("DATABASE_PATH", "./cryptotax.db"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		JWTSecret: jwtSecret,

		ReportCacheTTL:     getEnvAsDuration("REPORT_CACHE_TTL", 15*time.Minute),
		ReportCacheCleanup: getEnvAsDuration("REPORT_CACHE_CLEANUP", 30*time.Minute),

		LotMatching: strings.ToLower(getEnv("LOT_MATCHING", "whole")),

		MaxUploadSizeBytes: getEnvAsInt64("MAX_UPLOAD_SIZE_BYTES", 10*1024*1024),

		RateLimitInterval: getEnvAsDuration("RATE_LIMIT_INTERVAL", 100*time.Millisecond),
		RateLimitBurst:    getEnvAsInt("RATE_LIMIT_BURST", 30),

		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		BatchConcurrency: getEnvAsInt("BATCH_CONCURRENCY", 4),
	}

	if err := cfg.validate(); err != nil {
		return err
	}

	Cfg = cfg
	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBDriver=%s, LotMatching=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabaseDriver, Cfg.LotMatching)
	return nil
}

func (c *AppConfig) validate() error {
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes long, got %d", len(c.JWTSecret))
	}
	switch c.DatabaseDriver {
	case "sqlite":
	case "postgresql":
		c.DatabaseDriver = "postgres"
		fallthrough
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DATABASE_DRIVER is 'postgres'")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q (want sqlite or postgres)", c.DatabaseDriver)
	}
	if c.LotMatching != "whole" && c.LotMatching != "split" {
		log.Printf("WARNING: Invalid LOT_MATCHING %q. Using default 'whole'.", c.LotMatching)
		c.LotMatching = "whole"
	}
	if c.BatchConcurrency < 1 {
		log.Printf("WARNING: BATCH_CONCURRENCY must be positive, got %d. Using 1.", c.BatchConcurrency)
		c.BatchConcurrency = 1
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
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
