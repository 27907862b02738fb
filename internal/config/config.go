package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// StoreBackend selects the key-value medium behind the persistence store.
type StoreBackend string

const (
	BackendMemory   StoreBackend = "memory"
	BackendRedis    StoreBackend = "redis"
	BackendPostgres StoreBackend = "postgres"
	BackendSQLite   StoreBackend = "sqlite"
)

type Config struct {
	// Inference
	GeminiAPIKey          string        `env:"GEMINI_API_KEY"`
	GeminiModel           string        `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	GeminiEndpoint        string        `env:"GEMINI_ENDPOINT" envDefault:"https://generativelanguage.googleapis.com/"`
	GeminiTimeout         time.Duration `env:"GEMINI_TIMEOUT" envDefault:"30s"`
	GeminiTemperature     float64       `env:"GEMINI_TEMPERATURE" envDefault:"0.4"`
	GeminiTopK            int64         `env:"GEMINI_TOP_K" envDefault:"32"`
	GeminiTopP            float64       `env:"GEMINI_TOP_P" envDefault:"1"`
	GeminiMaxOutputTokens int64         `env:"GEMINI_MAX_OUTPUT_TOKENS" envDefault:"2048"`

	// Servers
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCHealthAddr  string        `env:"GRPC_HEALTH_ADDR" envDefault:":9090"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	MaxUploadBytes  int64         `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	// Storage
	StoreBackend StoreBackend `env:"STORE_BACKEND" envDefault:"sqlite"`
	RedisAddr    string       `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	DatabaseDSN  string       `env:"DATABASE_DSN" envDefault:"host=localhost user=postgres password=postgres dbname=insects port=5432 sslmode=disable"`
	SQLitePath   string       `env:"SQLITE_PATH" envDefault:"data/insects.db"`
	HistoryLimit int          `env:"HISTORY_LIMIT" envDefault:"50"`

	// Auth
	JWTSecret   string `env:"JWT_SECRET" envDefault:"dev-secret"`
	JWTAudience string `env:"JWT_AUDIENCE"`

	// Presentation
	ShareBaseURL string `env:"SHARE_BASE_URL" envDefault:"https://insectidentifier.app"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file and parses the environment into a Config.
func Load(dotenvPaths ...string) (*Config, error) {
	if len(dotenvPaths) == 0 {
		dotenvPaths = []string{".env"}
	}
	for _, path := range dotenvPaths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var problems []string

	switch c.StoreBackend {
	case BackendMemory, BackendRedis, BackendPostgres, BackendSQLite:
	default:
		problems = append(problems, fmt.Sprintf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	if c.HistoryLimit <= 0 {
		problems = append(problems, "HISTORY_LIMIT must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		problems = append(problems, "MAX_UPLOAD_BYTES must be positive")
	}
	if c.GeminiTimeout <= 0 {
		problems = append(problems, "GEMINI_TIMEOUT must be positive")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		problems = append(problems, "JWT_SECRET is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
