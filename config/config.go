package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the API process needs from its environment.
type Config struct {
	Env      string
	HTTPAddr string
	LogLevel slog.Level

	DatabaseURL string

	RedisURL     string
	UserCacheTTL time.Duration

	JWTSecret string
	TokenTTL  time.Duration

	Cloudinary Cloudinary

	AgreementFolder string
	SignerQuorum    int

	KafkaBrokers       string
	KafkaTopic         string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int

	// TracesExporter is "none" or "stdout".
	TracesExporter string
}

// Cloudinary holds the object store credentials.
type Cloudinary struct {
	CloudName string
	APIKey    string
	APISecret string
}

// Missing lists the CLOUDINARY_* variables that are unset.
func (c Cloudinary) Missing() []string {
	var missing []string
	if c.CloudName == "" {
		missing = append(missing, "CLOUDINARY_CLOUD_NAME")
	}
	if c.APIKey == "" {
		missing = append(missing, "CLOUDINARY_API_KEY")
	}
	if c.APISecret == "" {
		missing = append(missing, "CLOUDINARY_API_SECRET")
	}
	return missing
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// FromEnv builds a Config from environment variables. Callers load .env files
// beforehand.
func FromEnv() (Config, error) {
	cfg := Config{
		Env:             getenv("APP_ENV", "development"),
		HTTPAddr:        getenv("HTTP_ADDR", ":4000"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		JWTSecret:       getenv("JWT_SECRET", "dev-secret-change-me"),
		AgreementFolder: getenv("AGREEMENT_FOLDER", "rentfit/agreements"),
		KafkaBrokers:    os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:      getenv("KAFKA_TOPIC", "rentfit.agreements"),
		TracesExporter:  getenv("OTEL_TRACES_EXPORTER", "none"),
		Cloudinary: Cloudinary{
			CloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
			APIKey:    os.Getenv("CLOUDINARY_API_KEY"),
			APISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		},
	}

	var err error
	if cfg.LogLevel, err = parseLevel(getenv("LOG_LEVEL", "info")); err != nil {
		return Config{}, err
	}
	if cfg.UserCacheTTL, err = durationEnv("USER_CACHE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTL, err = durationEnv("TOKEN_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = durationEnv("OUTBOX_POLL_INTERVAL", 2*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SignerQuorum, err = intEnv("AGREEMENT_SIGNER_QUORUM", 2); err != nil {
		return Config{}, err
	}
	if cfg.SignerQuorum < 1 {
		return Config{}, fmt.Errorf("config: AGREEMENT_SIGNER_QUORUM must be at least 1")
	}
	if cfg.OutboxBatchSize, err = intEnv("OUTBOX_BATCH_SIZE", 50); err != nil {
		return Config{}, err
	}
	switch cfg.TracesExporter {
	case "none", "stdout":
	default:
		return Config{}, fmt.Errorf("config: OTEL_TRACES_EXPORTER must be none or stdout, got %q", cfg.TracesExporter)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	return n, nil
}

func parseLevel(raw string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		return 0, fmt.Errorf("config: parse LOG_LEVEL: %w", err)
	}
	return lvl, nil
}
