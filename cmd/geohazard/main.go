package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/geohazard-service/internal/adapter/fetch"
	httpadapter "github.com/couchcryptid/geohazard-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/geohazard-service/internal/adapter/kafka"
	"github.com/couchcryptid/geohazard-service/internal/adapter/mapbox"
	natsadapter "github.com/couchcryptid/geohazard-service/internal/adapter/nats"
	"github.com/couchcryptid/geohazard-service/internal/adapter/openmeteo"
	"github.com/couchcryptid/geohazard-service/internal/adapter/postgres"
	"github.com/couchcryptid/geohazard-service/internal/adapter/soilgrids"
	"github.com/couchcryptid/geohazard-service/internal/adapter/usgs"
	"github.com/couchcryptid/geohazard-service/internal/alert"
	"github.com/couchcryptid/geohazard-service/internal/assessment"
	"github.com/couchcryptid/geohazard-service/internal/cache"
	"github.com/couchcryptid/geohazard-service/internal/config"
	"github.com/couchcryptid/geohazard-service/internal/domain"
	"github.com/couchcryptid/geohazard-service/internal/observability"
	"github.com/couchcryptid/geohazard-service/internal/pipeline"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// closers run in reverse order at shutdown.
	var closers []namedCloser

	// Caches, each with a sweeper reporting its size.
	newCache := func(name string, size int) *cache.Cache {
		c := cache.New(size, cache.WithName(name), cache.WithClock(clock), cache.WithSweepHook(func(s cache.Stats) {
			metrics.CacheEntries.WithLabelValues(s.Name).Set(float64(s.Size))
		}))
		go c.RunSweeper(ctx, cfg.CacheSweepInterval)
		return c
	}
	caches := assessment.Caches{
		Soil:      newCache("soil", cfg.SoilCache.MaxEntries),
		Risk:      newCache("risk", cfg.RiskCache.MaxEntries),
		Weather:   newCache("weather", cfg.WeatherCache.MaxEntries),
		Seismic:   newCache("seismic", cfg.SeismicCache.MaxEntries),
		SoilGrids: newCache("soilgrids", cfg.SoilCache.MaxEntries),
	}

	// Upstream clients, one rate limiter per host.
	fetcher := func(source string) *fetch.Client {
		return fetch.NewClient(source, cfg.FetchTimeout, cfg.UpstreamRateLimit, metrics, logger)
	}
	quakes := usgs.NewClient(fetcher(usgs.Source), cfg.USGSBaseURL)
	weather := openmeteo.NewClient(fetcher(openmeteo.SourceWeather), fetcher(openmeteo.SourceArchive),
		cfg.OpenMeteoBaseURL, cfg.OpenMeteoArchiveURL)
	soilProfiles := soilgrids.NewClient(fetcher(soilgrids.Source), cfg.SoilGridsBaseURL)

	// Reverse geocoding (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.ReverseGeocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken,
			fetch.NewClient(mapbox.Source, cfg.MapboxTimeout, cfg.UpstreamRateLimit, metrics, logger), mapbox.DefaultBaseURL)
		geocoder = mapbox.NewCachedGeocoder(client, newCache("geocode", cfg.MapboxCacheSize), metrics, logger)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	// Alert history: Postgres when configured, otherwise in memory.
	var history alert.History = alert.NewMemoryHistory(cfg.AlertHistorySize)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		closers = append(closers, namedCloser{"postgres", closeFunc(pool.Close)})
		alertLog, err := postgres.NewAlertLog(ctx, pool)
		if err != nil {
			logger.Error("failed to prepare alert log", "error", err)
			os.Exit(1)
		}
		history = alertLog
		logger.Info("alert history in postgres")
	} else {
		logger.Info("alert history in memory", "max_entries", cfg.AlertHistorySize)
	}

	// Alert sinks: the in-process hub always, Kafka and NATS when enabled.
	hub := alert.NewHub(metrics)
	sinks := []alert.NamedSink{{Name: "hub", Sink: hub}}
	if cfg.KafkaAlertsEnabled {
		writer := kafkaadapter.NewAlertWriter(cfg.KafkaBrokers, cfg.KafkaAlertTopic, logger)
		sinks = append(sinks, alert.NamedSink{Name: "kafka", Sink: writer})
		closers = append(closers, namedCloser{"kafka writer", writer})
		logger.Info("kafka alert sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAlertTopic)
	}
	if cfg.NATSURL != "" {
		pub, err := natsadapter.Connect(cfg.NATSURL, cfg.NATSAlertSubject, logger)
		if err != nil {
			logger.Error("failed to connect to nats", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, alert.NamedSink{Name: "nats", Sink: pub})
		closers = append(closers, namedCloser{"nats publisher", pub})
		logger.Info("nats alert sink enabled", "subject", cfg.NATSAlertSubject)
	}

	alertCfg := alert.DefaultConfig()
	alertCfg.SeismicMinMagnitude = cfg.AlertMinMagnitude
	alertCfg.DebounceWindow = cfg.AlertDebounceWindow
	evaluator := alert.NewEvaluator(alertCfg, alert.NewMultiSink(metrics, sinks...), history, logger, metrics, clock)
	if n, err := evaluator.Restore(ctx); err != nil {
		logger.Warn("could not restore active alerts", "error", err)
	} else if n > 0 {
		logger.Info("restored active alerts", "count", n)
	}

	svc := assessment.New(assessment.Config{
		FetchTimeout:        cfg.FetchTimeout,
		SeismicLookback:     cfg.SeismicLookback,
		SeismicRadiusKm:     cfg.SeismicNearbyRadiusKm,
		SeismicMinMagnitude: cfg.SeismicMinMagnitude,
		SoilTTL:             cfg.SoilCache.TTL,
		RiskTTL:             cfg.RiskCache.TTL,
		WeatherTTL:          cfg.WeatherCache.TTL,
		ClimateTTL:          cfg.ClimateCacheTTL,
		SeismicTTL:          cfg.SeismicCache.TTL,
		SoilGridsTTL:        cfg.SoilGridsCacheTTL,
	}, assessment.Deps{
		Weather:   weather,
		SoilGrids: soilProfiles,
		Seismic:   quakes,
		Geocoder:  geocoder,
		Evaluator: evaluator,
	}, caches, metrics, logger)

	poller := pipeline.NewSeismicPoller(quakes, evaluator, pipeline.Config{
		Interval:     cfg.SeismicPollInterval,
		Lookback:     cfg.SeismicLookback,
		MinMagnitude: cfg.SeismicMinMagnitude,
	}, logger, metrics, clock)

	srv := httpadapter.NewServer(httpadapter.Config{
		Addr:           cfg.HTTPAddr,
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
	}, httpadapter.Deps{
		Ready:    poller,
		Assessor: svc,
		Alerts:   evaluator,
		Stream:   hub,
	}, metrics, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start seismic poller.
	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		if err := poller.Run(ctx); err != nil {
			logger.Error("seismic poller error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-pollerDone:
	case <-shutdownCtx.Done():
		logger.Warn("seismic poller did not stop before shutdown timeout")
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Error("close error", "component", closers[i].name, "error", err)
		}
	}

	logger.Info("shutdown complete")
}

type namedCloser struct {
	name string
	io.Closer
}

// closeFunc adapts a Close method without an error result.
type closeFunc func()

func (f closeFunc) Close() error {
	f()
	return nil
}
