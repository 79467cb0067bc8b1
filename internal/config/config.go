package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Mail     MailConfig     `mapstructure:"mail"`
	Render   RenderConfig   `mapstructure:"render"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port          int    `mapstructure:"port"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig contains connection options for Redis (queue backend and progress store).
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Bucket          string `mapstructure:"bucket"`
}

// MailConfig contains SMTP settings for ticket/certificate delivery.
type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// RenderConfig tunes the generation pipeline.
type RenderConfig struct {
	// Concurrency is the worker pool size for bulk generation tasks.
	Concurrency int `mapstructure:"concurrency"`
	// MaxAttempts bounds how often a failing job is retried before it is
	// recorded as permanently failed.
	MaxAttempts int `mapstructure:"max_attempts"`
	// RetryBase is the base of the exponential backoff (base, 2*base, 4*base, ...).
	RetryBase time.Duration `mapstructure:"retry_base"`
	// MinPackScale rejects sheet grids whose uniform scale would make the
	// printed tickets illegible.
	MinPackScale float64 `mapstructure:"min_pack_scale"`
	// QRBorderFraction sizes the quiet zone around embedded QR codes as a
	// fraction of the code's larger dimension.
	QRBorderFraction float64 `mapstructure:"qr_border_fraction"`
	// ProgressTTL is how long batch progress counters and failure results
	// stay readable after the batch was submitted.
	ProgressTTL time.Duration `mapstructure:"progress_ttl"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Addr builds the host:port address used by both asynq and go-redis.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.public_base_url", "http://localhost:8080")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "event36")
	v.SetDefault("database.user", "event36")
	v.SetDefault("database.password", "event36")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "artifacts")
	v.SetDefault("mail.host", "localhost")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.from", "tickets@example.com")
	v.SetDefault("render.concurrency", 10)
	v.SetDefault("render.max_attempts", 3)
	v.SetDefault("render.retry_base", 2*time.Second)
	v.SetDefault("render.min_pack_scale", 0.15)
	v.SetDefault("render.qr_border_fraction", 0.08)
	v.SetDefault("render.progress_ttl", 24*time.Hour)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                  "API_PORT",
		"api.public_base_url":       "PUBLIC_BASE_URL",
		"database.host":             "DATABASE_HOST",
		"database.port":             "DATABASE_PORT",
		"database.name":             "POSTGRES_DB",
		"database.user":             "POSTGRES_USER",
		"database.password":         "POSTGRES_PASSWORD",
		"database.sslmode":          "DATABASE_SSLMODE",
		"redis.host":                "REDIS_HOST",
		"redis.port":                "REDIS_PORT",
		"minio.endpoint":            "MINIO_ENDPOINT",
		"minio.access_key_id":       "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":   "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":             "MINIO_USE_SSL",
		"minio.bucket":              "MINIO_BUCKET",
		"mail.host":                 "SMTP_HOST",
		"mail.port":                 "SMTP_PORT",
		"mail.username":             "SMTP_USERNAME",
		"mail.password":             "SMTP_PASSWORD",
		"mail.from":                 "SMTP_FROM",
		"render.concurrency":        "RENDER_CONCURRENCY",
		"render.max_attempts":       "RENDER_MAX_ATTEMPTS",
		"render.retry_base":         "RENDER_RETRY_BASE",
		"render.min_pack_scale":     "RENDER_MIN_PACK_SCALE",
		"render.qr_border_fraction": "RENDER_QR_BORDER_FRACTION",
		"render.progress_ttl":       "RENDER_PROGRESS_TTL",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.API.PublicBaseURL == "" {
		return errors.New("public base url is required")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	if cfg.Render.Concurrency <= 0 {
		return errors.New("render concurrency must be positive")
	}
	if cfg.Render.MaxAttempts <= 0 {
		return errors.New("render max attempts must be positive")
	}
	if cfg.Render.RetryBase <= 0 {
		return errors.New("render retry base must be positive")
	}
	if cfg.Render.MinPackScale <= 0 || cfg.Render.MinPackScale > 1 {
		return errors.New("render min pack scale must be in (0, 1]")
	}
	if cfg.Render.QRBorderFraction < 0 || cfg.Render.QRBorderFraction >= 0.5 {
		return errors.New("render qr border fraction must be in [0, 0.5)")
	}
	return nil
}
