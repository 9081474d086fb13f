// Package http serves the JSON API, the alert WebSocket stream and the
// health, readiness and metrics endpoints.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/couchcryptid/geohazard-service/internal/alert"
	"github.com/couchcryptid/geohazard-service/internal/assessment"
	"github.com/couchcryptid/geohazard-service/internal/cache"
	"github.com/couchcryptid/geohazard-service/internal/domain"
	"github.com/couchcryptid/geohazard-service/internal/observability"
)

// Assessor answers the location-based queries.
type Assessor interface {
	Soil(ctx context.Context, loc domain.Location, depth, landCover string) (domain.SoilReport, error)
	Risk(ctx context.Context, loc domain.Location, landCover string) (domain.RiskAssessment, error)
	Overview(ctx context.Context, loc domain.Location, landCover string) (assessment.Overview, error)
	Recommendations(ctx context.Context, loc domain.Location, landCover string) (assessment.Recommendations, error)
	RecentEarthquakes(ctx context.Context, q assessment.RecentQuery) (assessment.RecentEarthquakes, error)
	CacheStats() []cache.Stats
}

// AlertBook exposes the active alert set and the durable history.
type AlertBook interface {
	Active(f alert.Filter) []domain.Alert
	History(ctx context.Context, f alert.Filter) ([]domain.Alert, error)
	Dismiss(ctx context.Context, id string) (domain.Alert, error)
}

// AlertStream hands out live alert subscriptions.
type AlertStream interface {
	Subscribe(buffer int) *alert.Subscription
}

// Config holds the listener settings.
type Config struct {
	Addr              string
	CORSOrigins       []string
	RequestTimeout    time.Duration
	HeartbeatInterval time.Duration
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Ready    sharedobs.ReadinessChecker
	Assessor Assessor
	Alerts   AlertBook
	Stream   AlertStream
}

// Server exposes the API plus /healthz, /readyz, and /metrics.
type Server struct {
	httpServer *http.Server
	upgrader   *websocket.Upgrader
	cfg        Config
	deps       Deps
	metrics    *observability.Metrics
	logger     *slog.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

// NewServer creates an HTTP server with every route registered.
func NewServer(cfg Config, deps Deps, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 20 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	mux := http.NewServeMux()

	s := &Server{
		upgrader: newUpgrader(cfg.CORSOrigins),
		cfg:      cfg,
		deps:     deps,
		metrics:  metrics,
		logger:   logger,
		closing:  make(chan struct{}),
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(deps.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	s.route(mux, "GET /api/v1/soil", s.handleSoil)
	s.route(mux, "GET /api/v1/risk", s.handleRisk)
	s.route(mux, "GET /api/v1/overview", s.handleOverview)
	s.route(mux, "GET /api/v1/recommendations", s.handleRecommendations)
	s.route(mux, "GET /api/v1/earthquakes/recent", s.handleRecentEarthquakes)
	s.route(mux, "GET /api/v1/alerts/active", s.handleActiveAlerts)
	s.route(mux, "GET /api/v1/alerts/history", s.handleAlertHistory)
	s.route(mux, "POST /api/v1/alerts/{id}/dismiss", s.handleDismiss)
	s.route(mux, "GET /api/v1/cache/stats", s.handleCacheStats)
	mux.HandleFunc("GET /ws/alerts", s.handleAlertStream)

	handler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}).Handler(mux)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// route registers an API handler with a per-route latency histogram.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	observer := s.metrics.HTTPRequestDuration.MustCurryWith(prometheus.Labels{"route": pattern})
	mux.Handle(pattern, promhttp.InstrumentHandlerDuration(observer, h))
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown closes open alert streams and drains connections within the
// given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
