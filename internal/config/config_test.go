package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, defaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, defaultDatabaseURL, cfg.DatabaseURL)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "SAR", cfg.Currency)
	assert.Equal(t, int64(1), cfg.NodeID)
	assert.Equal(t, 720*time.Hour, cfg.NotificationRetention)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_ParsesOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("PAYMENT_CURRENCY", "usd")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test, ,https://b.test")
	t.Setenv("RELAY_SEND_RATE", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSAllowedOrigins)
	assert.InDelta(t, 2.5, cfg.RelaySendRate, 0.0001)
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]map[string]string{
		"bad duration":        {"JWT_TTL": "soon"},
		"node out of range":   {"NODE_ID": "4096"},
		"currency length":     {"PAYMENT_CURRENCY": "RIYAL"},
		"otel w/o endpoint":   {"OTEL_ENABLED": "true", "OTEL_EXPORTER_OTLP_ENDPOINT": ""},
		"prod default secret": {"APP_ENV": "prod", "DATABASE_URL": "postgres://db/jadwa", "JWT_SECRET": ""},
		"prod sqlite":         {"APP_ENV": "prod", "DATABASE_URL": "jadwa.db", "JWT_SECRET": "s3cret"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("APP_ENV", "dev")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
