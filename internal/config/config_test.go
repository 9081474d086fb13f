package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMapboxToken = "pk.test-token"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)

	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 20*time.Second, cfg.RequestTimeout)
	assert.InDelta(t, 5, cfg.UpstreamRateLimit, 1e-9)
	assert.Equal(t, 5*time.Minute, cfg.SeismicPollInterval)
	assert.InDelta(t, 2.5, cfg.SeismicMinMagnitude, 1e-9)
	assert.Equal(t, "https://earthquake.usgs.gov/fdsnws/event/1", cfg.USGSBaseURL)

	assert.Equal(t, CacheSettings{TTL: time.Hour, MaxEntries: 500}, cfg.SoilCache)
	assert.Equal(t, CacheSettings{TTL: 30 * time.Minute, MaxEntries: 500}, cfg.RiskCache)
	assert.Equal(t, CacheSettings{TTL: 15 * time.Minute, MaxEntries: 200}, cfg.WeatherCache)
	assert.Equal(t, CacheSettings{TTL: 5 * time.Minute, MaxEntries: 100}, cfg.SeismicCache)
	assert.Equal(t, 24*time.Hour, cfg.SoilGridsCacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.ClimateCacheTTL)

	assert.InDelta(t, 4.0, cfg.AlertMinMagnitude, 1e-9)
	assert.Equal(t, 6*time.Hour, cfg.AlertDebounceWindow)

	assert.False(t, cfg.KafkaAlertsEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "geohazard-alerts", cfg.KafkaAlertTopic)
	assert.Empty(t, cfg.NATSURL)
	assert.Empty(t, cfg.DatabaseURL)

	assert.False(t, cfg.MapboxEnabled)
	assert.Equal(t, 5*time.Second, cfg.MapboxTimeout)
	assert.Equal(t, 1000, cfg.MapboxCacheSize)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SEISMIC_POLL_INTERVAL", "30s")
	t.Setenv("CACHE_RISK_TTL", "5m")
	t.Setenv("CACHE_RISK_SIZE", "50")
	t.Setenv("ALERT_SINK_KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("DATABASE_URL", "postgres://localhost/geohazard")
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.SeismicPollInterval)
	assert.Equal(t, CacheSettings{TTL: 5 * time.Minute, MaxEntries: 50}, cfg.RiskCache)
	assert.True(t, cfg.KafkaAlertsEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, "postgres://localhost/geohazard", cfg.DatabaseURL)
	assert.True(t, cfg.MapboxEnabled)
}

func TestLoad_InvalidValuesNameTheVariable(t *testing.T) {
	tests := []struct {
		env, value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"FETCH_TIMEOUT", "soon"},
		{"SEISMIC_POLL_INTERVAL", "-1s"},
		{"CACHE_SOIL_SIZE", "0"},
		{"CACHE_WEATHER_TTL", "forever"},
		{"UPSTREAM_RATE_LIMIT", "fast"},
		{"UPSTREAM_RATE_LIMIT", "0"},
		{"SEISMIC_MIN_MAGNITUDE", "11"},
		{"ALERT_SINK_KAFKA_ENABLED", "maybe"},
		{"MAPBOX_TIMEOUT", "bad"},
	}
	for _, tt := range tests {
		t.Run(tt.env+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.env)
		})
	}
}

func TestLoad_RequestTimeoutShorterThanFetch(t *testing.T) {
	t.Setenv("FETCH_TIMEOUT", "30s")
	t.Setenv("REQUEST_TIMEOUT", "10s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_TIMEOUT")
}

func TestLoad_MapboxEnabledWithoutToken(t *testing.T) {
	t.Setenv("MAPBOX_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAPBOX_TOKEN")
}

func TestLoad_MapboxExplicitlyDisabled(t *testing.T) {
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	t.Setenv("MAPBOX_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.MapboxEnabled)
}
