package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-movimientos/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // sin .env ni config/
	t.Setenv("JWT_SECRET", "secreto")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, config.StoragePostgres, cfg.Storage)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.Equal(t, 120, cfg.HTTP.RateLimitPerMinute)
	assert.Equal(t, 24*time.Hour, cfg.Ledger.IdempotencyTTL)
	assert.Equal(t, 30*time.Second, cfg.DB.ConnectTimeout)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, "0 3 * * *", cfg.Reconcile.Cron)
	assert.True(t, cfg.Swagger)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "secreto")
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("IDEMPOTENCY_TTL_HOURS", "2")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
	t.Setenv("SWAGGER_ENABLED", "false")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.StorageMemory, cfg.Storage)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 2*time.Hour, cfg.Ledger.IdempotencyTTL)
	assert.Equal(t, 0, cfg.HTTP.RateLimitPerMinute)
	assert.False(t, cfg.Swagger)
}

func TestLoad_Invalida(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"sin JWT_SECRET", map[string]string{"JWT_SECRET": ""}},
		{"driver desconocido", map[string]string{"JWT_SECRET": "s", "STORAGE_DRIVER": "mongo"}},
		{"rate limit negativo", map[string]string{"JWT_SECRET": "s", "RATE_LIMIT_PER_MINUTE": "-5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}

func TestDBConfig_ConnectionString(t *testing.T) {
	c := config.DBConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss:word", DBName: "inv", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss%3Aword@db:5432/inv?sslmode=disable", c.ConnectionString())

	c.DatabaseURL = "postgresql://otro"
	assert.Equal(t, "postgresql://otro", c.ConnectionString())
}

func TestValidate_ConcurrenciaMinima(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageMemory, JWT: config.JWTConfig{Secret: "s"}}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Reconcile.Concurrency)
}
