package assessment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geohazard-service/internal/cache"
	"github.com/couchcryptid/geohazard-service/internal/domain"
	"github.com/couchcryptid/geohazard-service/internal/observability"
)

var errUpstream = &domain.FetchError{Source: "test", Kind: domain.FetchUpstream5xx, StatusCode: 503, Message: "down"}

type fakeWeather struct {
	calls      atomic.Int32
	weatherErr error
	block      chan struct{} // when set, FetchWeather waits for it to close
}

func (f *fakeWeather) FetchWeather(ctx context.Context, _, _ float64) (domain.Weather, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return domain.Weather{}, ctx.Err()
		}
	}
	if f.weatherErr != nil {
		return domain.Weather{}, f.weatherErr
	}
	days := 2
	return domain.Weather{
		TemperatureC:    domain.Float(24),
		HumidityPct:     domain.Float(40),
		WindSpeedKmh:    domain.Float(12),
		PrecipitationMm: domain.Float(0),
		Rain24hMm:       domain.Float(1),
		Rain48hMm:       domain.Float(4),
		Rain72hMm:       domain.Float(9),
		Rain7dMm:        domain.Float(15),
		DaysSinceRain:   &days,
		ElevationM:      domain.Float(120),
	}, nil
}

func (f *fakeWeather) FetchSoilMoisture(context.Context, float64, float64) (domain.SoilMoisture, error) {
	f.calls.Add(1)
	return domain.SoilMoisture{AveragePct: domain.Float(27)}, nil
}

func (f *fakeWeather) FetchClimateNormals(context.Context, float64, float64) (domain.ClimateNormals, error) {
	f.calls.Add(1)
	return domain.ClimateNormals{MeanAnnualTempC: domain.Float(12.5), MeanAnnualPrecipMm: domain.Float(1100)}, nil
}

type fakeSoilGrids struct {
	calls atomic.Int32
	err   error
}

func (f *fakeSoilGrids) FetchProfile(context.Context, float64, float64) (domain.SoilGridsProfile, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return domain.SoilGridsProfile{
		"0-5cm": {
			Depth:            "0-5cm",
			PH:               domain.Float(6.4),
			OrganicCarbonPct: domain.Float(2.1),
			NitrogenPct:      domain.Float(0.18),
			SandPct:          domain.Float(40),
			SiltPct:          domain.Float(40),
			ClayPct:          domain.Float(20),
			BulkDensityGcm3:  domain.Float(1.3),
			CECCmolkg:        domain.Float(18),
		},
	}, nil
}

type fakeSeismic struct {
	calls  atomic.Int32
	events []domain.EarthquakeEvent
	err    error
	last   domain.EarthquakeQuery
	mu     sync.Mutex
}

func (f *fakeSeismic) FetchEvents(_ context.Context, q domain.EarthquakeQuery) ([]domain.EarthquakeEvent, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = q
	f.mu.Unlock()
	return f.events, f.err
}

type fakeEvaluator struct {
	mu       sync.Mutex
	assessed []domain.RiskAssessment
}

func (f *fakeEvaluator) EvaluateHazard(_ context.Context, a domain.RiskAssessment) []domain.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assessed = append(f.assessed, a)
	return nil
}

type fakeGeocoder struct{}

func (fakeGeocoder) ReverseGeocode(context.Context, float64, float64) (domain.Place, error) {
	return domain.Place{Name: "Utrecht", FormattedAddress: "Utrecht, Netherlands"}, nil
}

type fixture struct {
	svc       *Service
	weather   *fakeWeather
	soilgrids *fakeSoilGrids
	seismic   *fakeSeismic
	evaluator *fakeEvaluator
	caches    Caches
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		weather:   &fakeWeather{},
		soilgrids: &fakeSoilGrids{},
		seismic:   &fakeSeismic{},
		evaluator: &fakeEvaluator{},
		caches: Caches{
			Soil:      cache.New(100, cache.WithName("soil")),
			Risk:      cache.New(100, cache.WithName("risk")),
			Weather:   cache.New(100, cache.WithName("weather")),
			Seismic:   cache.New(100, cache.WithName("seismic")),
			SoilGrids: cache.New(100, cache.WithName("soilgrids")),
		},
	}
	cfg := Config{
		FetchTimeout:        2 * time.Second,
		SeismicLookback:     24 * time.Hour,
		SeismicRadiusKm:     100,
		SeismicMinMagnitude: 2.5,
		SoilTTL:             time.Hour,
		RiskTTL:             30 * time.Minute,
		WeatherTTL:          15 * time.Minute,
		ClimateTTL:          24 * time.Hour,
		SeismicTTL:          5 * time.Minute,
		SoilGridsTTL:        24 * time.Hour,
	}
	deps := Deps{Weather: f.weather, SoilGrids: f.soilgrids, Seismic: f.seismic, Evaluator: f.evaluator}
	f.svc = New(cfg, deps, f.caches, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

var utrecht = domain.Location{Latitude: 52.09, Longitude: 5.12}

func TestRisk_AllSourcesLive(t *testing.T) {
	f := newFixture(t)

	a, err := f.svc.Risk(context.Background(), utrecht, "cropland")
	require.NoError(t, err)

	assert.False(t, a.Degraded)
	for _, src := range []string{SourceWeather, SourceMoisture, SourceClimate, SourceSoilGrids, SourceSeismic} {
		assert.Equal(t, domain.SourceLive, a.Sources[src], src)
	}
	assert.False(t, a.CurrentConditions.Estimated)
	assert.InDelta(t, 24, a.CurrentConditions.TemperatureC, 1e-9)
	assert.InDelta(t, 120, *a.Location.ElevationM, 1e-9, "grid elevation fills the location")
	assert.GreaterOrEqual(t, a.CompositeRiskScore, 0)
	assert.LessOrEqual(t, a.CompositeRiskScore, 100)
	assert.Equal(t, domain.LevelForScore(a.CompositeRiskScore), a.CompositeRiskLevel)
	assert.InDelta(t, 1.10, a.Risks.Flood.RegionalMultiplier, 1e-9)

	f.evaluator.mu.Lock()
	assert.Len(t, f.evaluator.assessed, 1)
	f.evaluator.mu.Unlock()

	f.seismic.mu.Lock()
	assert.InDelta(t, 100, f.seismic.last.RadiusKm, 1e-9)
	assert.InDelta(t, 52.09, f.seismic.last.Latitude, 1e-9)
	f.seismic.mu.Unlock()
}

func TestRisk_SecondCallServedFromCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Risk(ctx, utrecht, "cropland")
	require.NoError(t, err)
	calls := f.weather.calls.Load()

	a, err := f.svc.Risk(ctx, domain.Location{Latitude: 52.0901, Longitude: 5.1202}, "cropland")
	require.NoError(t, err)
	assert.Equal(t, calls, f.weather.calls.Load(), "rounded coordinates share the cached result")
	assert.Equal(t, domain.SourceCached, a.Sources[SourceWeather])

	f.evaluator.mu.Lock()
	assert.Len(t, f.evaluator.assessed, 1, "cached results are not re-evaluated")
	f.evaluator.mu.Unlock()
}

func TestRisk_FailedSourceDegradesOnlyItself(t *testing.T) {
	f := newFixture(t)
	f.weather.weatherErr = errUpstream
	f.seismic.err = errUpstream

	a, err := f.svc.Risk(context.Background(), utrecht, "forest")
	require.NoError(t, err)

	assert.True(t, a.Degraded)
	assert.Equal(t, domain.SourceEstimated, a.Sources[SourceWeather])
	assert.Equal(t, domain.SourceEstimated, a.Sources[SourceSeismic])
	assert.Equal(t, domain.SourceLive, a.Sources[SourceSoilGrids])
	assert.True(t, a.CurrentConditions.Estimated)
	assert.InDelta(t, defaultTempC, a.CurrentConditions.TemperatureC, 1e-9)
	assert.Contains(t, a.Risks.Landslide.Defaulted, "max_magnitude")
	assert.Contains(t, a.Risks.Flood.Defaulted, "rain_72h_mm")
	assert.False(t, a.Risks.Liquefaction.PGAAvailable)

	assert.Equal(t, 0, f.caches.Risk.Stats().Size, "degraded results are not cached")

	f.evaluator.mu.Lock()
	assert.Empty(t, f.evaluator.assessed, "degraded results raise no hazard alerts")
	f.evaluator.mu.Unlock()
}

func TestRisk_ValidationBeforeFetch(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Risk(context.Background(), domain.Location{Latitude: 91, Longitude: 0}, "")
	require.Error(t, err)
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "lat", ve.Field)
	assert.Zero(t, f.weather.calls.Load())
	assert.Zero(t, f.seismic.calls.Load())
}

func TestRisk_RequestDeadlineAbandonsSlowFetch(t *testing.T) {
	f := newFixture(t)
	f.weather.block = make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	a, err := f.svc.Risk(ctx, utrecht, "cropland")
	require.NoError(t, err)
	assert.True(t, a.Degraded)
	assert.Equal(t, domain.SourceEstimated, a.Sources[SourceWeather])

	// The abandoned fetch still completes and fills the cache.
	close(f.weather.block)
	assert.Eventually(t, func() bool {
		_, ok := f.caches.Weather.Get(cache.Key("weather", utrecht.Latitude, utrecht.Longitude))
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestSoil_LiveAndCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.Soil(ctx, utrecht, "0-5cm", "grassland")
	require.NoError(t, err)
	assert.False(t, r.Degraded)
	assert.Equal(t, "0-5cm", r.Properties.Depth)
	assert.InDelta(t, 6.4, r.Properties.PH, 1e-9)
	assert.Equal(t, domain.LandCoverGrassland, r.Metadata.LandCover)
	assert.NotContains(t, r.Sources, SourceWeather, "soil does not fetch weather")

	r, err = f.svc.Soil(ctx, utrecht, "0-5", "grassland")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCached, r.Sources[SourceSoilGrids])
	assert.Equal(t, int32(1), f.soilgrids.calls.Load())
}

func TestSoil_SoilGridsFailureUsesEstimates(t *testing.T) {
	f := newFixture(t)
	f.soilgrids.err = errUpstream

	r, err := f.svc.Soil(context.Background(), utrecht, "", "")
	require.NoError(t, err)
	assert.True(t, r.Degraded)
	assert.Equal(t, domain.SourceEstimated, r.Sources[SourceSoilGrids])
	assert.NotEmpty(t, r.Properties.Estimated)
	assert.Equal(t, domain.LandCoverCropland, r.Metadata.LandCover, "unknown cover falls back to cropland")

	_, err = f.svc.Soil(context.Background(), utrecht, "", "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.soilgrids.calls.Load(), "failures are retried, not cached")
}

func TestSoil_InvalidDepth(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Soil(context.Background(), utrecht, "30-60cm", "")
	assert.True(t, domain.IsValidation(err))
	assert.Zero(t, f.soilgrids.calls.Load())
}

func TestOverviewAndRecommendations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.svc.Overview(ctx, utrecht, "cropland")
	require.NoError(t, err)
	assert.False(t, o.Degraded)
	assert.Equal(t, o.Risk.Location.Latitude, o.Soil.Location.Latitude)
	assert.Equal(t, int32(1), f.soilgrids.calls.Load(), "soil reuses the raw fetches made for risk")

	rec, err := f.svc.Recommendations(ctx, utrecht, "cropland")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Crops)
	assert.NotEmpty(t, rec.Preparedness)
	assert.NotEmpty(t, rec.PreparednessLevel)
}

func TestGeocoderLabelsLocation(t *testing.T) {
	f := newFixture(t)
	f.svc.deps.Geocoder = fakeGeocoder{}

	a, err := f.svc.Risk(context.Background(), utrecht, "")
	require.NoError(t, err)
	assert.Equal(t, "Utrecht, Netherlands", a.Location.PlaceName)
}

func TestRecentEarthquakes(t *testing.T) {
	f := newFixture(t)
	f.seismic.events = []domain.EarthquakeEvent{{EventID: "a", Magnitude: 5.1}, {EventID: "b", Magnitude: 3.0}}

	got, err := f.svc.RecentEarthquakes(context.Background(), RecentQuery{MinMagnitude: 2.5})
	require.NoError(t, err)
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, domain.SourceLive, got.Source)

	f.seismic.mu.Lock()
	assert.Equal(t, 100, f.seismic.last.Limit)
	assert.Zero(t, f.seismic.last.RadiusKm)
	f.seismic.mu.Unlock()
}

func TestRecentEarthquakes_UpstreamDown(t *testing.T) {
	f := newFixture(t)
	f.seismic.err = errUpstream

	got, err := f.svc.RecentEarthquakes(context.Background(), RecentQuery{})
	require.NoError(t, err)
	assert.True(t, got.Degraded)
	assert.NotNil(t, got.Events)
	assert.Zero(t, got.Count)
}

func TestRecentQuery_Normalize(t *testing.T) {
	q, err := RecentQuery{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, RecentQuery{Days: 1, Limit: 100}, q)

	for _, bad := range []RecentQuery{{Days: 31}, {MinMagnitude: 11}, {Limit: 501}, {Days: -1}} {
		_, err := bad.Normalize()
		assert.True(t, domain.IsValidation(err), "%+v", bad)
	}
}

func TestCacheStats(t *testing.T) {
	f := newFixture(t)
	stats := f.svc.CacheStats()
	require.Len(t, stats, 5)
	assert.Equal(t, "soil", stats[0].Name)
	assert.Equal(t, "soilgrids", stats[4].Name)
}
