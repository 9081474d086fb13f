package mapbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/geohazard-service/internal/cache"
	"github.com/couchcryptid/geohazard-service/internal/domain"
	"github.com/couchcryptid/geohazard-service/internal/observability"
)

// placeTTL is long because place names for a coordinate do not change.
const placeTTL = 7 * 24 * time.Hour

// CachedGeocoder wraps a ReverseGeocoder with the shared TTL cache.
type CachedGeocoder struct {
	inner   domain.ReverseGeocoder
	cache   *cache.Cache
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.ReverseGeocoder, c *cache.Cache, metrics *observability.Metrics, logger *slog.Logger) *CachedGeocoder {
	return &CachedGeocoder{inner: inner, cache: c, metrics: metrics, logger: logger}
}

func (g *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.Place, error) {
	key := cache.Key("geocode", lat, lon)
	res, err := cache.GetOrLoad(ctx, g.cache, key, nonEmptyTTL, func(ctx context.Context) (domain.Place, error) {
		return g.inner.ReverseGeocode(ctx, lat, lon)
	})
	if res.CacheErr != nil {
		g.logger.Warn("geocode cache entry discarded", "key", key, "error", res.CacheErr)
		g.metrics.CacheLookups.WithLabelValues(g.cache.Name(), "error").Inc()
	}
	result := "miss"
	if res.Hit {
		result = "hit"
	}
	g.metrics.CacheLookups.WithLabelValues(g.cache.Name(), result).Inc()
	return res.Value, err
}

// Only cache non-empty results so transient "not found" responses can be retried.
func nonEmptyTTL(p domain.Place) time.Duration {
	if p.FormattedAddress == "" {
		return 0
	}
	return placeTTL
}
