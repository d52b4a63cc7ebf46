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

// Load env vars from .env file directly
func init() {
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist (e.g. in production),
		// but we should log it just in case.
		log.Println("No .env file found or error loading it, using system environment variables")
	}
}

// Config is the fully resolved runtime configuration for both the API
// server and the worker fleets. Workers and the server share it so the
// routing table, storage endpoint, and broker URL never drift between
// processes.
type Config struct {
	Env         string
	Port        string
	ServiceName string

	DatabaseURL string

	// Object store (MinIO / any S3-compatible endpoint).
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioSecure    bool
	S3Region       string

	// Broker (RabbitMQ).
	RabbitMQHost       string
	RabbitMQPort       string
	RabbitMQUser       string
	RabbitMQPassword   string
	BrokerPrefetch     int
	BrokerHeartbeat    time.Duration
	BrokerReconnectMax time.Duration

	// Worker runtime.
	WorkerConcurrency int
	WorkerTempDir     string

	// Auth / domain-specific secrets.
	SecretKey                string
	AccessTokenExpireMinutes int
	EncryptionPassphrase     string
	AnthropicAPIKey          string
	ClamAVAddress            string

	// HTTP surface.
	AllowedOrigins  []string
	MaxUploadBytes  int64
	RateLimitPerMin int
}

// BrokerURL builds the amqp091-go dial URL from the discrete RabbitMQ
// variables, matching spec.md §6's RABBITMQ_HOST|PORT|USER|PASSWORD shape.
func (c *Config) BrokerURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.RabbitMQUser, c.RabbitMQPassword, c.RabbitMQHost, c.RabbitMQPort)
}

// EncryptionPassphraseMissing reports whether ENCRYPT/DECRYPT jobs can
// run in this deployment.
func (c *Config) EncryptionPassphraseMissing() bool {
	return c.EncryptionPassphrase == ""
}

// Load resolves Config from the environment. Required variables that are
// missing cause an error rather than a silent zero-value default, since a
// misconfigured object-store or broker endpoint fails far from here.
func Load() (*Config, error) {
	cfg := &Config{
		Env:         getEnv("NODE_ENV", "development"),
		Port:        getEnv("PORT", "3001"),
		ServiceName: getEnv("SERVICE_NAME", "fileforge"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioSecure:    getEnvBool("MINIO_SECURE", false),
		S3Region:       getEnv("S3_REGION", "us-east-1"),

		RabbitMQHost:       getEnv("RABBITMQ_HOST", "localhost"),
		RabbitMQPort:       getEnv("RABBITMQ_PORT", "5672"),
		RabbitMQUser:       getEnv("RABBITMQ_USER", "guest"),
		RabbitMQPassword:   getEnv("RABBITMQ_PASSWORD", "guest"),
		BrokerPrefetch:     getEnvInt("BROKER_PREFETCH", 1),
		BrokerHeartbeat:    getEnvDuration("BROKER_HEARTBEAT", 600*time.Second),
		BrokerReconnectMax: getEnvDuration("BROKER_RECONNECT_MAX", 30*time.Second),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		WorkerTempDir:     getEnv("WORKER_TEMP_DIR", os.TempDir()),

		SecretKey:                os.Getenv("SECRET_KEY"),
		AccessTokenExpireMinutes: getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60),
		EncryptionPassphrase:     os.Getenv("ENCRYPTION_PASSPHRASE"),
		AnthropicAPIKey:          os.Getenv("ANTHROPIC_API_KEY"),
		ClamAVAddress:            getEnv("CLAMAV_ADDRESS", "localhost:3310"),

		AllowedOrigins:  GetAllowedOrigins(),
		MaxUploadBytes:  getEnvInt64("MAX_UPLOAD_BYTES", 500<<20),
		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MIN", 60),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}
	if cfg.MinioEndpoint == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" {
		return nil, fmt.Errorf("config: MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("config: SECRET_KEY is required")
	}

	return cfg, nil
}

// GetAllowedOrigins returns a slice of allowed origins from the environment variable.
// It defaults to localhost:3000 if not set.
func GetAllowedOrigins() []string {
	originsStr := os.Getenv("ALLOWED_ORIGINS")
	if originsStr == "" {
		return []string{"http://localhost:3000"}
	}

	// Split by comma and trim spaces
	parts := strings.Split(originsStr, ",")
	var origins []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
