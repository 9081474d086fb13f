// Package assessment answers soil, risk, overview and recommendation queries
// for a coordinate. Upstream data is fetched in parallel and cached; any
// source that fails is replaced by climatological estimates.
package assessment

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/geohazard-service/internal/cache"
	"github.com/couchcryptid/geohazard-service/internal/domain"
	"github.com/couchcryptid/geohazard-service/internal/observability"
	"github.com/couchcryptid/geohazard-service/internal/recommend"
	"github.com/couchcryptid/geohazard-service/internal/soil"
)

// WeatherSource provides current weather, soil moisture and climate normals.
type WeatherSource interface {
	FetchWeather(ctx context.Context, lat, lon float64) (domain.Weather, error)
	FetchSoilMoisture(ctx context.Context, lat, lon float64) (domain.SoilMoisture, error)
	FetchClimateNormals(ctx context.Context, lat, lon float64) (domain.ClimateNormals, error)
}

// SoilGridsSource provides measured soil properties.
type SoilGridsSource interface {
	FetchProfile(ctx context.Context, lat, lon float64) (domain.SoilGridsProfile, error)
}

// SeismicSource lists earthquakes.
type SeismicSource interface {
	FetchEvents(ctx context.Context, q domain.EarthquakeQuery) ([]domain.EarthquakeEvent, error)
}

// HazardEvaluator turns fresh assessments into alerts.
type HazardEvaluator interface {
	EvaluateHazard(ctx context.Context, a domain.RiskAssessment) []domain.Alert
}

// Config tunes fetching and cache lifetimes.
type Config struct {
	FetchTimeout        time.Duration
	SeismicLookback     time.Duration
	SeismicRadiusKm     float64
	SeismicMinMagnitude float64
	SoilTTL             time.Duration
	RiskTTL             time.Duration
	WeatherTTL          time.Duration
	ClimateTTL          time.Duration
	SeismicTTL          time.Duration
	SoilGridsTTL        time.Duration
}

// Caches are the caches the service reads and fills.
type Caches struct {
	Soil      *cache.Cache // soil reports
	Risk      *cache.Cache // risk assessments
	Weather   *cache.Cache // weather, soil moisture and climate normals
	Seismic   *cache.Cache // nearby and recent earthquake lists
	SoilGrids *cache.Cache // raw SoilGrids profiles
}

func (c Caches) all() []*cache.Cache {
	return []*cache.Cache{c.Soil, c.Risk, c.Weather, c.Seismic, c.SoilGrids}
}

// Deps are the upstream adapters. Geocoder and Evaluator may be nil.
type Deps struct {
	Weather   WeatherSource
	SoilGrids SoilGridsSource
	Seismic   SeismicSource
	Geocoder  domain.ReverseGeocoder
	Evaluator HazardEvaluator
}

// Service runs assessments. It is safe for concurrent use.
type Service struct {
	cfg     Config
	deps    Deps
	caches  Caches
	soil    *soil.Model
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a Service.
func New(cfg Config, deps Deps, caches Caches, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		deps:    deps,
		caches:  caches,
		soil:    soil.NewModel(),
		metrics: metrics,
		logger:  logger,
	}
}

// Assessment kinds and outcomes for metrics.
const (
	kindSoil            = "soil"
	kindRisk            = "risk"
	kindOverview        = "overview"
	kindRecommendations = "recommendations"

	outcomeOK       = "ok"
	outcomeDegraded = "degraded"
	outcomeInvalid  = "invalid"
)

// Soil analyzes the soil at loc for one depth band.
func (s *Service) Soil(ctx context.Context, loc domain.Location, depth, landCover string) (domain.SoilReport, error) {
	start := time.Now()
	d, err := validate(loc, depth)
	if err != nil {
		s.observe(kindSoil, outcomeInvalid, start)
		return domain.SoilReport{}, err
	}
	report := s.soilReport(ctx, loc, d, domain.ParseLandCover(landCover))
	s.observe(kindSoil, outcomeFor(report.Degraded), start)
	return report, nil
}

func (s *Service) soilReport(ctx context.Context, loc domain.Location, d soil.Depth, lc domain.LandCover) domain.SoilReport {
	key := locationKey("soil", loc, string(d), string(lc))
	if r, ok := lookup[domain.SoilReport](s, s.caches.Soil, key); ok {
		r.Sources = markCached(r.Sources)
		return r
	}

	in := s.gather(ctx, loc, needSoil)
	report := s.analyzeSoil(in, loc, d, lc)
	report.Location = s.label(ctx, report.Location)
	if !report.Degraded {
		s.caches.Soil.Set(key, report, s.cfg.SoilTTL)
	}
	return report
}

// Risk assesses all four hazards and the composite score at loc, then hands
// the fresh assessment to the alert evaluator.
func (s *Service) Risk(ctx context.Context, loc domain.Location, landCover string) (domain.RiskAssessment, error) {
	start := time.Now()
	if err := loc.Validate(); err != nil {
		s.observe(kindRisk, outcomeInvalid, start)
		return domain.RiskAssessment{}, err
	}
	a := s.riskAssessment(ctx, loc, domain.ParseLandCover(landCover))
	s.observe(kindRisk, outcomeFor(a.Degraded), start)
	return a, nil
}

func (s *Service) riskAssessment(ctx context.Context, loc domain.Location, lc domain.LandCover) domain.RiskAssessment {
	key := locationKey("risk", loc, string(lc))
	if a, ok := lookup[domain.RiskAssessment](s, s.caches.Risk, key); ok {
		a.Sources = markCached(a.Sources)
		return a
	}

	in := s.gather(ctx, loc, needAll)
	a := s.assess(in, loc, lc)
	a.Location = s.label(ctx, a.Location)
	if a.Degraded {
		// Estimated inputs neither cache nor raise alerts.
		return a
	}
	s.caches.Risk.Set(key, a, s.cfg.RiskTTL)
	if s.deps.Evaluator != nil {
		s.deps.Evaluator.EvaluateHazard(context.WithoutCancel(ctx), a)
	}
	return a
}

// Overview is the soil report and risk assessment for one location.
type Overview struct {
	Location domain.Location       `json:"location"`
	Soil     domain.SoilReport     `json:"soil"`
	Risk     domain.RiskAssessment `json:"risk"`
	Degraded bool                  `json:"degraded"`
}

// Overview assembles the topsoil report and the risk assessment. The risk
// fetch warms the raw caches the soil report then reads.
func (s *Service) Overview(ctx context.Context, loc domain.Location, landCover string) (Overview, error) {
	start := time.Now()
	if err := loc.Validate(); err != nil {
		s.observe(kindOverview, outcomeInvalid, start)
		return Overview{}, err
	}
	lc := domain.ParseLandCover(landCover)
	a := s.riskAssessment(ctx, loc, lc)
	r := s.soilReport(ctx, loc, soil.Depth0to5, lc)

	o := Overview{Location: a.Location, Soil: r, Risk: a, Degraded: a.Degraded || r.Degraded}
	s.observe(kindOverview, outcomeFor(o.Degraded), start)
	return o, nil
}

// Recommendations pairs the engine output with the location it was made for.
type Recommendations struct {
	Location domain.Location `json:"location"`
	recommend.Recommendations
	Degraded bool `json:"degraded"`
}

// Recommendations runs the recommendation engine over the topsoil report and
// the risk assessment.
func (s *Service) Recommendations(ctx context.Context, loc domain.Location, landCover string) (Recommendations, error) {
	start := time.Now()
	if err := loc.Validate(); err != nil {
		s.observe(kindRecommendations, outcomeInvalid, start)
		return Recommendations{}, err
	}
	lc := domain.ParseLandCover(landCover)
	a := s.riskAssessment(ctx, loc, lc)
	r := s.soilReport(ctx, loc, soil.Depth0to5, lc)

	out := Recommendations{
		Location:        a.Location,
		Recommendations: recommend.Recommend(r, a),
		Degraded:        a.Degraded || r.Degraded,
	}
	s.observe(kindRecommendations, outcomeFor(out.Degraded), start)
	return out, nil
}

// RecentQuery selects the worldwide earthquake listing.
type RecentQuery struct {
	Days         int
	MinMagnitude float64
	Limit        int
}

// Normalize applies defaults (1 day, 100 events) and checks ranges.
func (q RecentQuery) Normalize() (RecentQuery, error) {
	if q.Days == 0 {
		q.Days = 1
	}
	if q.Limit == 0 {
		q.Limit = 100
	}
	switch {
	case q.Days < 1 || q.Days > 30:
		return q, &domain.ValidationError{Field: "days", Reason: "must be between 1 and 30"}
	case q.MinMagnitude < 0 || q.MinMagnitude > 10:
		return q, &domain.ValidationError{Field: "min_magnitude", Reason: "must be between 0 and 10"}
	case q.Limit < 1 || q.Limit > 500:
		return q, &domain.ValidationError{Field: "limit", Reason: "must be between 1 and 500"}
	}
	return q, nil
}

// RecentEarthquakes is the worldwide listing.
type RecentEarthquakes struct {
	Count    int                      `json:"count"`
	Events   []domain.EarthquakeEvent `json:"events"`
	Source   domain.SourceStatus      `json:"source"`
	Degraded bool                     `json:"degraded"`
}

// RecentEarthquakes lists recent events worldwide. An upstream failure
// yields an empty, degraded listing.
func (s *Service) RecentEarthquakes(ctx context.Context, q RecentQuery) (RecentEarthquakes, error) {
	q, err := q.Normalize()
	if err != nil {
		return RecentEarthquakes{}, err
	}

	key := fmt.Sprintf("recent:%d:%s:%d", q.Days, strconv.FormatFloat(q.MinMagnitude, 'f', -1, 64), q.Limit)
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	events, status, ok := fetchCached(fetchCtx, s, s.caches.Seismic, SourceSeismic, key,
		cache.Fixed[[]domain.EarthquakeEvent](s.cfg.SeismicTTL),
		func(ctx context.Context) ([]domain.EarthquakeEvent, error) {
			return s.deps.Seismic.FetchEvents(ctx, domain.EarthquakeQuery{
				Since:        domain.Now().AddDate(0, 0, -q.Days),
				MinMagnitude: q.MinMagnitude,
				Limit:        q.Limit,
			})
		})
	if !ok {
		events = []domain.EarthquakeEvent{}
	}
	return RecentEarthquakes{Count: len(events), Events: events, Source: status, Degraded: !ok}, nil
}

// CacheStats reports every cache the service owns.
func (s *Service) CacheStats() []cache.Stats {
	caches := s.caches.all()
	out := make([]cache.Stats, 0, len(caches))
	for _, c := range caches {
		out = append(out, c.Stats())
	}
	return out
}

func validate(loc domain.Location, depth string) (soil.Depth, error) {
	if err := loc.Validate(); err != nil {
		return "", err
	}
	return soil.ParseDepth(depth)
}

func (s *Service) label(ctx context.Context, loc domain.Location) domain.Location {
	loc, outcome := domain.LabelLocation(ctx, loc, s.deps.Geocoder, s.logger)
	if outcome != domain.GeocodeSkipped {
		s.metrics.GeocodeRequests.WithLabelValues(outcome).Inc()
	}
	return loc
}

func (s *Service) observe(kind, outcome string, start time.Time) {
	s.metrics.Assessments.WithLabelValues(kind, outcome).Inc()
	s.metrics.AssessmentDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func outcomeFor(degraded bool) string {
	if degraded {
		return outcomeDegraded
	}
	return outcomeOK
}

// locationKey keys a computed result. A caller-supplied elevation changes
// the result, so it is part of the key.
func locationKey(op string, loc domain.Location, extra ...string) string {
	if loc.ElevationM != nil {
		extra = append(extra, "elev="+strconv.FormatFloat(*loc.ElevationM, 'f', 0, 64))
	}
	return cache.Key(op, loc.Latitude, loc.Longitude, extra...)
}

// markCached reports a cached result's live sources as cached. Estimated
// sources stay estimated.
func markCached(sources map[string]domain.SourceStatus) map[string]domain.SourceStatus {
	out := make(map[string]domain.SourceStatus, len(sources))
	for k, v := range sources {
		if v == domain.SourceLive {
			v = domain.SourceCached
		}
		out[k] = v
	}
	return out
}

// lookup reads a computed result and counts the lookup.
func lookup[T any](s *Service, c *cache.Cache, key string) (T, bool) {
	v, ok, err := cache.GetAs[T](c, key)
	s.countLookup(c, ok, err)
	return v, ok
}

func (s *Service) countLookup(c *cache.Cache, hit bool, cacheErr error) {
	result := "miss"
	switch {
	case cacheErr != nil:
		result = "error"
		s.logger.Warn("cache entry has unexpected type", "cache", c.Name(), "error", cacheErr)
	case hit:
		result = "hit"
	}
	s.metrics.CacheLookups.WithLabelValues(c.Name(), result).Inc()
}
