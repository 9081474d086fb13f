package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// CacheSettings sizes one named cache.
type CacheSettings struct {
	TTL        time.Duration
	MaxEntries int
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	// Upstream fetching.
	FetchTimeout          time.Duration
	RequestTimeout        time.Duration
	UpstreamRateLimit     float64
	USGSBaseURL           string
	OpenMeteoBaseURL      string
	OpenMeteoArchiveURL   string
	SoilGridsBaseURL      string
	SeismicPollInterval   time.Duration
	SeismicMinMagnitude   float64
	SeismicLookback       time.Duration
	SeismicNearbyRadiusKm float64

	// Caches.
	SoilCache          CacheSettings
	RiskCache          CacheSettings
	WeatherCache       CacheSettings
	SeismicCache       CacheSettings
	SoilGridsCacheTTL  time.Duration
	ClimateCacheTTL    time.Duration
	CacheSweepInterval time.Duration

	// Alerting.
	AlertMinMagnitude   float64
	AlertDebounceWindow time.Duration
	AlertHistorySize    int

	// Alert sinks and durable history.
	KafkaAlertsEnabled bool
	KafkaBrokers       []string
	KafkaAlertTopic    string
	NATSURL            string
	NATSAlertSubject   string
	DatabaseURL        string

	// Mapbox reverse geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	p := &parser{}
	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		CORSOrigins:     splitList(sharedcfg.EnvOrDefault("CORS_ORIGINS", "*")),

		FetchTimeout:          p.duration("FETCH_TIMEOUT", "10s"),
		RequestTimeout:        p.duration("REQUEST_TIMEOUT", "20s"),
		UpstreamRateLimit:     p.float("UPSTREAM_RATE_LIMIT", "5"),
		USGSBaseURL:           sharedcfg.EnvOrDefault("USGS_BASE_URL", "https://earthquake.usgs.gov/fdsnws/event/1"),
		OpenMeteoBaseURL:      sharedcfg.EnvOrDefault("OPEN_METEO_BASE_URL", "https://api.open-meteo.com/v1"),
		OpenMeteoArchiveURL:   sharedcfg.EnvOrDefault("OPEN_METEO_ARCHIVE_URL", "https://archive-api.open-meteo.com/v1"),
		SoilGridsBaseURL:      sharedcfg.EnvOrDefault("SOILGRIDS_BASE_URL", "https://rest.isric.org/soilgrids/v2.0"),
		SeismicPollInterval:   p.duration("SEISMIC_POLL_INTERVAL", "5m"),
		SeismicMinMagnitude:   p.float("SEISMIC_MIN_MAGNITUDE", "2.5"),
		SeismicLookback:       p.duration("SEISMIC_LOOKBACK", "24h"),
		SeismicNearbyRadiusKm: p.float("SEISMIC_NEARBY_RADIUS_KM", "100"),

		SoilCache:          p.cache("SOIL", "1h", "500"),
		RiskCache:          p.cache("RISK", "30m", "500"),
		WeatherCache:       p.cache("WEATHER", "15m", "200"),
		SeismicCache:       p.cache("SEISMIC", "5m", "100"),
		SoilGridsCacheTTL:  p.duration("CACHE_SOILGRIDS_TTL", "24h"),
		ClimateCacheTTL:    p.duration("CACHE_CLIMATE_TTL", "24h"),
		CacheSweepInterval: p.duration("CACHE_SWEEP_INTERVAL", "1m"),

		AlertMinMagnitude:   p.float("ALERT_MIN_MAGNITUDE", "4.0"),
		AlertDebounceWindow: p.duration("ALERT_DEBOUNCE_WINDOW", "6h"),
		AlertHistorySize:    p.int("ALERT_HISTORY_SIZE", "10000"),

		KafkaAlertsEnabled: p.bool("ALERT_SINK_KAFKA_ENABLED", "false"),
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaAlertTopic:    sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "geohazard-alerts"),
		NATSURL:            os.Getenv("NATS_URL"),
		NATSAlertSubject:   sharedcfg.EnvOrDefault("NATS_ALERT_SUBJECT", "geohazard.alerts"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),

		MapboxToken:     os.Getenv("MAPBOX_TOKEN"),
		MapboxTimeout:   p.duration("MAPBOX_TIMEOUT", "5s"),
		MapboxCacheSize: p.int("MAPBOX_CACHE_SIZE", "1000"),
	}
	cfg.MapboxEnabled = cfg.MapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		cfg.MapboxEnabled = v == "true"
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.UpstreamRateLimit <= 0:
		return errors.New("UPSTREAM_RATE_LIMIT must be positive")
	case c.SeismicMinMagnitude < 0 || c.SeismicMinMagnitude > 10:
		return errors.New("SEISMIC_MIN_MAGNITUDE must be in [0, 10]")
	case c.AlertMinMagnitude < 0 || c.AlertMinMagnitude > 10:
		return errors.New("ALERT_MIN_MAGNITUDE must be in [0, 10]")
	case c.SeismicNearbyRadiusKm <= 0:
		return errors.New("SEISMIC_NEARBY_RADIUS_KM must be positive")
	case c.RequestTimeout < c.FetchTimeout:
		return errors.New("REQUEST_TIMEOUT must not be shorter than FETCH_TIMEOUT")
	case c.KafkaAlertsEnabled && len(c.KafkaBrokers) == 0:
		return errors.New("KAFKA_BROKERS is required when ALERT_SINK_KAFKA_ENABLED is true")
	case c.KafkaAlertsEnabled && c.KafkaAlertTopic == "":
		return errors.New("KAFKA_ALERT_TOPIC is required when ALERT_SINK_KAFKA_ENABLED is true")
	case c.NATSURL != "" && c.NATSAlertSubject == "":
		return errors.New("NATS_ALERT_SUBJECT is required when NATS_URL is set")
	case c.MapboxEnabled && c.MapboxToken == "":
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	return nil
}

// parser records the first malformed variable and keeps returning defaults
// so Load can build the whole struct before reporting.
type parser struct {
	err error
}

func (p *parser) fail(name, raw string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %q", name, raw)
	}
}

func (p *parser) duration(name, def string) time.Duration {
	raw := sharedcfg.EnvOrDefault(name, def)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		p.fail(name, raw)
		d, _ = time.ParseDuration(def)
	}
	return d
}

func (p *parser) float(name, def string) float64 {
	raw := sharedcfg.EnvOrDefault(name, def)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(name, raw)
		f, _ = strconv.ParseFloat(def, 64)
	}
	return f
}

func (p *parser) int(name, def string) int {
	raw := sharedcfg.EnvOrDefault(name, def)
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		p.fail(name, raw)
		n, _ = strconv.Atoi(def)
	}
	return n
}

func (p *parser) bool(name, def string) bool {
	raw := sharedcfg.EnvOrDefault(name, def)
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(name, raw)
		b, _ = strconv.ParseBool(def)
	}
	return b
}

func (p *parser) cache(prefix, ttl, size string) CacheSettings {
	return CacheSettings{
		TTL:        p.duration("CACHE_"+prefix+"_TTL", ttl),
		MaxEntries: p.int("CACHE_"+prefix+"_SIZE", size),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
