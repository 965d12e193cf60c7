// Package config centralizes how ShelfView reads environment variables and
// exposes them as strongly typed Go values.
package config

import (
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config represents runtime configuration shared by the server, the worker and
// the CLI. Every variable is prefixed with SHELFVIEW_.
type Config struct {
	HTTP     HTTP     `envPrefix:"HTTP_"`
	Database Database `envPrefix:"DATABASE_"`
	Redis    Redis    `envPrefix:"REDIS_"`
	S3       S3       `envPrefix:"S3_"`
	Worker   Worker   `envPrefix:"WORKER_"`
	Client   Client   `envPrefix:"CLIENT_"`
	Logger   Logger   `envPrefix:"LOGGER_"`
}

type HTTP struct {
	Address        string        `env:"ADDRESS" envDefault:":3000"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	MaxFileSize    int64         `env:"MAX_FILE_BYTES" envDefault:"52428800"`
	MaxImageSize   int64         `env:"MAX_IMAGE_BYTES" envDefault:"10485760"`
	SigningSecret  string        `env:"SIGNING_SECRET"`
	// AdminToken guards catalog mutations. Empty leaves them open.
	AdminToken     string        `env:"ADMIN_TOKEN"`
	SignedURLTTL   time.Duration `env:"SIGNED_TTL" envDefault:"5m"`
	PageCountCache int           `env:"PAGE_COUNT_CACHE" envDefault:"512"`
	RateLimit      RateLimit     `envPrefix:"RATE_LIMIT_"`
}

type RateLimit struct {
	Enabled   bool          `env:"ENABLED" envDefault:"true"`
	Interval  time.Duration `env:"INTERVAL" envDefault:"100ms"`
	Burst     int           `env:"BURST" envDefault:"40"`
	CacheSize int           `env:"CACHE_SIZE" envDefault:"1024"`
	TTL       time.Duration `env:"TTL" envDefault:"10m"`
}

// Database holds the Postgres DSN. An empty DSN selects the in-memory catalog.
type Database struct {
	URL string `env:"URL"`
}

// Redis configures the asynq queue. An empty address disables background jobs;
// the server then computes page counts and scaled previews on demand.
type Redis struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// S3 configures object storage. An empty endpoint selects in-memory blobs.
type S3 struct {
	Endpoint       string `env:"ENDPOINT"`
	AccessKey      string `env:"ACCESS_KEY"`
	SecretKey      string `env:"SECRET_KEY"`
	UseSSL         bool   `env:"USE_SSL" envDefault:"false"`
	Region         string `env:"REGION" envDefault:"us-east-1"`
	DocumentBucket string `env:"DOCUMENT_BUCKET" envDefault:"shelfview-documents"`
	PreviewBucket  string `env:"PREVIEW_BUCKET" envDefault:"shelfview-previews"`
}

type Worker struct {
	Concurrency int `env:"CONCURRENCY" envDefault:"2"`
}

// Client configures the CLI and the preview session controller.
type Client struct {
	ServerURL    string        `env:"SERVER_URL" envDefault:"http://localhost:3000"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"15s"`
	SpoolDir     string        `env:"SPOOL_DIR"`
	DownloadDir  string        `env:"DOWNLOAD_DIR" envDefault:"."`
}

type Logger struct {
	Level  slog.Level `env:"LEVEL" envDefault:"INFO"`
	Format string     `env:"FORMAT" envDefault:"text"`
}

// New builds a logger writing to w in the configured format.
func (l Logger) New(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.Level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

const defaultWorkerCount = 2

// Load reads a .env file when present, then parses the environment.
func Load() (*Config, error) {
	// A missing .env file is the normal case outside development.
	_ = godotenv.Load()
	return Parse()
}

// Parse reads configuration from the environment only.
func Parse() (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{
		Prefix: "SHELFVIEW_",
	})
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.HTTP.SigningSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.HTTP.SigningSecret = secret
	}
	if cfg.Worker.Concurrency <= 0 {
		cfg.Worker.Concurrency = defaultWorkerCount
	}
	if cfg.Client.FetchTimeout <= 0 {
		return nil, fmt.Errorf("client fetch timeout must be positive, got %s", cfg.Client.FetchTimeout)
	}
	return &cfg, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate signing secret: %w", err)
	}
	return string(buf), nil
}
