package mapbox

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geohazard-service/internal/cache"
	"github.com/couchcryptid/geohazard-service/internal/domain"
	"github.com/couchcryptid/geohazard-service/internal/observability"
)

type countingGeocoder struct {
	calls  int
	result domain.Place
	err    error
}

func (m *countingGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.Place, error) {
	m.calls++
	return m.result, m.err
}

func newCached(inner domain.ReverseGeocoder) (*CachedGeocoder, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return NewCachedGeocoder(inner, cache.New(10, cache.WithName("geocode")), m, slog.Default()), m
}

func TestCachedGeocoder_CacheHit(t *testing.T) {
	inner := &countingGeocoder{result: domain.Place{Name: "Austin", FormattedAddress: "Austin, TX"}}
	cached, m := newCached(inner)

	r1, err := cached.ReverseGeocode(context.Background(), 30.2672, -97.7431)
	require.NoError(t, err)
	r2, err := cached.ReverseGeocode(context.Background(), 30.2672, -97.7431)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.InDelta(t, 1, testutil.ToFloat64(m.CacheLookups.WithLabelValues("geocode", "hit")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CacheLookups.WithLabelValues("geocode", "miss")), 1e-9)
}

func TestCachedGeocoder_NearbyCoordinatesShareEntry(t *testing.T) {
	inner := &countingGeocoder{result: domain.Place{FormattedAddress: "Austin, TX"}}
	cached, _ := newCached(inner)

	_, _ = cached.ReverseGeocode(context.Background(), 30.26721, -97.74311)
	_, _ = cached.ReverseGeocode(context.Background(), 30.26724, -97.74309)

	assert.Equal(t, 1, inner.calls)
}

func TestCachedGeocoder_DifferentKeysMiss(t *testing.T) {
	inner := &countingGeocoder{result: domain.Place{FormattedAddress: "Place, TX"}}
	cached, _ := newCached(inner)

	_, _ = cached.ReverseGeocode(context.Background(), 30.2672, -97.7431)
	_, _ = cached.ReverseGeocode(context.Background(), 32.7767, -96.7970)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_EmptyResultNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached, _ := newCached(inner)

	_, _ = cached.ReverseGeocode(context.Background(), 0, -30)
	_, _ = cached.ReverseGeocode(context.Background(), 0, -30)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_ErrorNotCached(t *testing.T) {
	inner := &countingGeocoder{err: errors.New("boom")}
	cached, _ := newCached(inner)

	_, err := cached.ReverseGeocode(context.Background(), 1, 1)
	require.Error(t, err)
	_, err = cached.ReverseGeocode(context.Background(), 1, 1)
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
}
