package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("SESSION_TTL_HOURS", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("ADMIN_LOGIN", "")
	t.Setenv("ADMIN_PASSWORD", "")
	t.Setenv("SERVICE_VERSION", "")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, 4*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "admin", cfg.Auth.AdminLogin)
	assert.Equal(t, "1234", cfg.Auth.AdminPassword)
	assert.Equal(t, "/uploads", cfg.Images.PublicPrefix)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "dev", cfg.Observ.ServiceVersion)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("SESSION_TTL_HOURS", "2")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("MAX_UPLOAD_MB", "3")
	t.Setenv("SERVICE_VERSION", "1.4.0")

	cfg := Load()

	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, 2*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, int64(3<<20), cfg.Images.MaxUploadBytes)
	assert.Equal(t, "1.4.0", cfg.Observ.ServiceVersion)
}
