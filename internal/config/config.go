// Package config reads runtime configuration from the environment and builds
// the shared logger.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds runtime configuration for the server, relay, and worker.
type Config struct {
	Address      string
	RelayAddress string
	// BackendOrigin is where the relay forwards traffic, e.g. http://localhost:8080.
	BackendOrigin  string
	MaxUploadBytes int64

	OpenAIKey   string
	OpenAIModel string

	GuidanceEndpoint string
	GuidanceTTL      time.Duration

	// DatabaseURL selects the durable session store; empty keeps state in memory.
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	S3UseSSL      bool
	S3Region      string
	VoucherBucket string

	SigningSecret []byte
	SignedURLTTL  time.Duration
	Workers       int

	LogLevel string
}

const (
	defaultAddress      = ":8080"
	defaultRelayAddress = ":8788"
	defaultBackend      = "http://localhost:8080"
	defaultMaxUpload    = 10 << 20 // 10 MiB
	defaultModel        = "gpt-4o"
	defaultGuidanceTTL  = 12 * time.Hour
	defaultRedisAddr    = "localhost:6379"
	defaultBucket       = "voucher-exports"
	defaultSignedTTL    = 5 * time.Minute
	defaultWorkerCount  = 2
)

// Load reads configuration from the environment, consulting a local .env file
// first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{
		Address:          readEnv("INVOICEAGENT_ADDRESS", defaultAddress),
		RelayAddress:     readEnv("INVOICEAGENT_RELAY_ADDRESS", defaultRelayAddress),
		BackendOrigin:    readEnv("INVOICEAGENT_BACKEND_ORIGIN", defaultBackend),
		MaxUploadBytes:   parseInt64("INVOICEAGENT_MAX_UPLOAD_BYTES", defaultMaxUpload),
		OpenAIKey:        readEnv("OPENAI_API_KEY", ""),
		OpenAIModel:      readEnv("INVOICEAGENT_OPENAI_MODEL", defaultModel),
		GuidanceEndpoint: readEnv("INVOICEAGENT_GUIDANCE_ENDPOINT", ""),
		GuidanceTTL:      parseDuration("INVOICEAGENT_GUIDANCE_TTL", defaultGuidanceTTL),
		DatabaseURL:      readEnv("DATABASE_URL", ""),
		RedisAddr:        readEnv("INVOICEAGENT_REDIS_ADDR", defaultRedisAddr),
		RedisPassword:    readEnv("INVOICEAGENT_REDIS_PASSWORD", ""),
		RedisDB:          parseInt("INVOICEAGENT_REDIS_DB", 0),
		S3Endpoint:       readEnv("INVOICEAGENT_S3_ENDPOINT", ""),
		S3AccessKey:      readEnv("INVOICEAGENT_S3_ACCESS_KEY", ""),
		S3SecretKey:      readEnv("INVOICEAGENT_S3_SECRET_KEY", ""),
		S3UseSSL:         parseBool("INVOICEAGENT_S3_USE_SSL", false),
		S3Region:         readEnv("INVOICEAGENT_S3_REGION", "us-east-1"),
		VoucherBucket:    readEnv("INVOICEAGENT_VOUCHER_BUCKET", defaultBucket),
		SigningSecret:    parseSecret("INVOICEAGENT_SIGNING_SECRET"),
		SignedURLTTL:     parseDuration("INVOICEAGENT_SIGNED_TTL", defaultSignedTTL),
		Workers:          parseInt("INVOICEAGENT_WORKERS", defaultWorkerCount),
		LogLevel:         readEnv("INVOICEAGENT_LOG_LEVEL", "info"),
	}
	if cfg.SigningSecret == nil {
		cfg.SigningSecret = randomSecret()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkerCount
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = defaultSignedTTL
	}
	return cfg, nil
}

// NewLogger builds the process-wide logrus logger.
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseSecret(key string) []byte {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return []byte(v)
	}
	return nil
}

func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return []byte(hex.EncodeToString([]byte("fallbacksecret")))
	}
	return buf
}
