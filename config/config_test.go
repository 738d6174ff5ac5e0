package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "HTTP_ADDR", "LOG_LEVEL", "USER_CACHE_TTL", "TOKEN_TTL", "AGREEMENT_SIGNER_QUORUM", "OUTBOX_BATCH_SIZE", "OUTBOX_POLL_INTERVAL", "AGREEMENT_FOLDER", "OTEL_TRACES_EXPORTER"} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.HTTPAddr)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 2, cfg.SignerQuorum)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "rentfit/agreements", cfg.AgreementFolder)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "none", cfg.TracesExporter)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("AGREEMENT_SIGNER_QUORUM", "3")
	t.Setenv("USER_CACHE_TTL", "30s")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 3, cfg.SignerQuorum)
	assert.Equal(t, 30*time.Second, cfg.UserCacheTTL)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("AGREEMENT_SIGNER_QUORUM", "0")
	_, err := FromEnv()
	require.Error(t, err)

	t.Setenv("AGREEMENT_SIGNER_QUORUM", "")
	t.Setenv("TOKEN_TTL", "forever")
	_, err = FromEnv()
	require.Error(t, err)

	t.Setenv("TOKEN_TTL", "")
	t.Setenv("OTEL_TRACES_EXPORTER", "jaeger")
	_, err = FromEnv()
	require.Error(t, err)
}

func TestCloudinaryMissing(t *testing.T) {
	c := Cloudinary{CloudName: "demo"}
	assert.Equal(t, []string{"CLOUDINARY_API_KEY", "CLOUDINARY_API_SECRET"}, c.Missing())
	assert.Empty(t, Cloudinary{CloudName: "a", APIKey: "b", APISecret: "c"}.Missing())
}
