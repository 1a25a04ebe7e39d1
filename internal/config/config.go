package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Expense Explorer"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"expenses"`
	}

	Server struct {
		Timeout        time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		AllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	}

	Remote struct {
		BaseURL       string        `envconfig:"REMOTE_BASE_URL" default:"https://api.tensorlake.ai/v1/namespaces/default"`
		APIKey        string        `envconfig:"REMOTE_API_KEY"`
		IngestApp     string        `envconfig:"REMOTE_INGEST_APP" default:"expense_ingestion_app"`
		QueryApp      string        `envconfig:"REMOTE_QUERY_APP" default:"expense_query_app"`
		PollInterval  time.Duration `envconfig:"REMOTE_POLL_INTERVAL" default:"2s"`
		IngestTimeout time.Duration `envconfig:"REMOTE_INGEST_TIMEOUT" default:"10m"`
		QueryTimeout  time.Duration `envconfig:"REMOTE_QUERY_TIMEOUT" default:"2m"`
	}

	Dedup struct {
		Window            time.Duration `envconfig:"DEDUP_WINDOW" default:"72h"`
		DescriptionPrefix int           `envconfig:"DEDUP_DESCRIPTION_PREFIX" default:"24"`
	}

	Writer struct {
		MaxAttempts    int           `envconfig:"WRITER_MAX_ATTEMPTS" default:"4"`
		InitialBackoff time.Duration `envconfig:"WRITER_INITIAL_BACKOFF" default:"200ms"`
		MaxBackoff     time.Duration `envconfig:"WRITER_MAX_BACKOFF" default:"5s"`
		AttemptTimeout time.Duration `envconfig:"WRITER_ATTEMPT_TIMEOUT" default:"10s"`
	}

	Ingest struct {
		Concurrency    int   `envconfig:"INGEST_CONCURRENCY" default:"4"`
		MaxUploadBytes int64 `envconfig:"INGEST_MAX_UPLOAD_BYTES" default:"33554432"`
	}

	Insights struct {
		CacheTTL time.Duration `envconfig:"INSIGHTS_CACHE_TTL" default:"168h"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.Dedup.Window < 0 {
		return nil, fmt.Errorf("DEDUP_WINDOW must not be negative, got %s", cfg.Dedup.Window)
	}

	if cfg.Dedup.DescriptionPrefix < 1 {
		return nil, fmt.Errorf("DEDUP_DESCRIPTION_PREFIX must be positive, got %d", cfg.Dedup.DescriptionPrefix)
	}

	return &cfg, nil
}
