package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	unset(t, "ENV", "SERVER_PORT", "DB_HOST", "DB_PORT", "DB_USE_SSL", "JWT_SECRET", "JWT_TTL",
		"BCRYPT_COST", "PASSWORD_MIN_LENGTH", "MQ_BACKEND", "MQ_EVENTS_CHANNEL", "STORAGE_BACKEND")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.False(t, cfg.Database.UseSSL)
	assert.Equal(t, "", cfg.Auth.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, 8, cfg.Auth.PasswordMinLength)
	assert.Equal(t, "", cfg.MQ.Backend)
	assert.Equal(t, "account-events", cfg.MQ.EventsChannel)
	assert.Equal(t, "", cfg.Storage.Backend)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_USE_SSL", "true")
	t.Setenv("JWT_SECRET", "  s3cret  ")
	t.Setenv("JWT_TTL", "90m")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("MQ_BACKEND", "RabbitMQ")
	t.Setenv("STORAGE_BACKEND", "MINIO")
	t.Setenv("MINIO_BUCKET", "pics")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 90*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 4, cfg.Auth.BcryptCost)
	assert.Equal(t, "rabbitmq", cfg.MQ.Backend)
	assert.Equal(t, "minio", cfg.Storage.Backend)
	assert.Equal(t, "pics", cfg.Storage.Minio.Bucket)
}

func TestGetEnvBool_InvalidFallsBack(t *testing.T) {
	t.Setenv("SOME_FLAG", "maybe")
	assert.True(t, getEnvBool("SOME_FLAG", true))
	assert.False(t, getEnvBool("SOME_FLAG", false))
}

func TestGetEnvDuration_InvalidFallsBack(t *testing.T) {
	t.Setenv("SOME_TTL", "-5m")
	assert.Equal(t, time.Minute, getEnvDuration("SOME_TTL", time.Minute))
	t.Setenv("SOME_TTL", "soon")
	assert.Equal(t, time.Minute, getEnvDuration("SOME_TTL", time.Minute))
}

// unset clears keys for the duration of the test; t.Setenv registers the restore.
func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}
