package assessment

import (
	"context"
	"sync"

	"github.com/couchcryptid/geohazard-service/internal/cache"
	"github.com/couchcryptid/geohazard-service/internal/domain"
)

// Source names reported in response source maps.
const (
	SourceWeather   = "weather"
	SourceMoisture  = "soil_moisture"
	SourceClimate   = "climate"
	SourceSoilGrids = "soilgrids"
	SourceSeismic   = "seismic"
)

// need selects which upstreams a query fetches.
type need uint8

const (
	needWeather need = 1 << iota
	needMoisture
	needClimate
	needSoilGrids
	needSeismic

	needSoil = needMoisture | needClimate | needSoilGrids
	needAll  = needWeather | needSoil | needSeismic
)

// nearbyLimit caps the nearby-seismicity query.
const nearbyLimit = 200

// inputs is what the fetches produced. A nil record means the source failed
// or had nothing for the location.
type inputs struct {
	weather   *domain.Weather
	moisture  *domain.SoilMoisture
	climate   *domain.ClimateNormals
	profile   domain.SoilGridsProfile
	nearby    []domain.EarthquakeEvent
	seismicOK bool
	sources   map[string]domain.SourceStatus
}

func (in inputs) degraded() bool {
	for _, st := range in.sources {
		if st == domain.SourceEstimated {
			return true
		}
	}
	return false
}

// task fetches one source. apply stores the result on inputs; it is nil
// when the source failed.
type task struct {
	flag   need
	source string
	run    func(ctx context.Context) (apply func(*inputs), status domain.SourceStatus)
}

// gather runs the selected fetches in parallel and waits for all of them or
// for ctx to end, whichever comes first. Fetches run on a context detached
// from ctx and bounded by the fetch timeout, so a fetch abandoned by an
// ended request still completes and fills the cache. Its result is not
// applied to this call's inputs.
func (s *Service) gather(ctx context.Context, loc domain.Location, n need) inputs {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FetchTimeout)

	got := inputs{sources: make(map[string]domain.SourceStatus)}
	var tasks []task
	for _, t := range s.tasks(loc) {
		if n&t.flag != 0 {
			tasks = append(tasks, t)
			got.sources[t.source] = domain.SourceEstimated
		}
	}

	var (
		mu     sync.Mutex
		closed bool
		wg     sync.WaitGroup
	)
	for _, t := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			apply, status := t.run(fetchCtx)

			mu.Lock()
			defer mu.Unlock()
			if closed {
				return
			}
			if apply != nil {
				apply(&got)
			}
			got.sources[t.source] = status
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		cancel()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("request ended before upstream fetches completed", "error", ctx.Err())
	}

	mu.Lock()
	defer mu.Unlock()
	closed = true
	return got
}

func (s *Service) tasks(loc domain.Location) []task {
	lat, lon := loc.Latitude, loc.Longitude
	return []task{
		{needWeather, SourceWeather, func(ctx context.Context) (func(*inputs), domain.SourceStatus) {
			w, status, ok := fetchCached(ctx, s, s.caches.Weather, SourceWeather, cache.Key("weather", lat, lon),
				cache.Fixed[domain.Weather](s.cfg.WeatherTTL),
				func(ctx context.Context) (domain.Weather, error) { return s.deps.Weather.FetchWeather(ctx, lat, lon) })
			if !ok {
				return nil, status
			}
			return func(in *inputs) { in.weather = &w }, status
		}},
		{needMoisture, SourceMoisture, func(ctx context.Context) (func(*inputs), domain.SourceStatus) {
			m, status, ok := fetchCached(ctx, s, s.caches.Weather, SourceMoisture, cache.Key("moisture", lat, lon),
				cache.Fixed[domain.SoilMoisture](s.cfg.WeatherTTL),
				func(ctx context.Context) (domain.SoilMoisture, error) { return s.deps.Weather.FetchSoilMoisture(ctx, lat, lon) })
			if !ok || m.AveragePct == nil {
				return nil, domain.SourceEstimated
			}
			return func(in *inputs) { in.moisture = &m }, status
		}},
		{needClimate, SourceClimate, func(ctx context.Context) (func(*inputs), domain.SourceStatus) {
			c, status, ok := fetchCached(ctx, s, s.caches.Weather, SourceClimate, cache.Key("climate", lat, lon),
				cache.Fixed[domain.ClimateNormals](s.cfg.ClimateTTL),
				func(ctx context.Context) (domain.ClimateNormals, error) {
					return s.deps.Weather.FetchClimateNormals(ctx, lat, lon)
				})
			if !ok || (c.MeanAnnualTempC == nil && c.MeanAnnualPrecipMm == nil) {
				return nil, domain.SourceEstimated
			}
			return func(in *inputs) { in.climate = &c }, status
		}},
		{needSoilGrids, SourceSoilGrids, func(ctx context.Context) (func(*inputs), domain.SourceStatus) {
			p, status, ok := fetchCached(ctx, s, s.caches.SoilGrids, SourceSoilGrids, cache.Key("soilgrids", lat, lon),
				cache.Fixed[domain.SoilGridsProfile](s.cfg.SoilGridsTTL),
				func(ctx context.Context) (domain.SoilGridsProfile, error) {
					return s.deps.SoilGrids.FetchProfile(ctx, lat, lon)
				})
			if !ok || p.Empty() {
				return nil, domain.SourceEstimated
			}
			return func(in *inputs) { in.profile = p }, status
		}},
		{needSeismic, SourceSeismic, func(ctx context.Context) (func(*inputs), domain.SourceStatus) {
			evs, status, ok := fetchCached(ctx, s, s.caches.Seismic, SourceSeismic, cache.Key("nearby", lat, lon),
				cache.Fixed[[]domain.EarthquakeEvent](s.cfg.SeismicTTL),
				func(ctx context.Context) ([]domain.EarthquakeEvent, error) {
					return s.deps.Seismic.FetchEvents(ctx, domain.EarthquakeQuery{
						Since:        domain.Now().Add(-s.cfg.SeismicLookback),
						MinMagnitude: s.cfg.SeismicMinMagnitude,
						Limit:        nearbyLimit,
						Latitude:     lat,
						Longitude:    lon,
						RadiusKm:     s.cfg.SeismicRadiusKm,
					})
				})
			if !ok {
				return nil, status
			}
			return func(in *inputs) {
				in.nearby = evs
				in.seismicOK = true
			}, status
		}},
	}
}

// fetchCached serves key from c or loads it. A failed load is logged and
// reported as estimated; it is never cached.
func fetchCached[T any](ctx context.Context, s *Service, c *cache.Cache, source, key string, ttl cache.TTLFunc[T], load cache.LoadFunc[T]) (T, domain.SourceStatus, bool) {
	res, err := cache.GetOrLoad(ctx, c, key, ttl, load)
	s.countLookup(c, res.Hit, res.CacheErr)
	if err != nil {
		s.logger.Warn("upstream unavailable, using estimates",
			"source", source,
			"error", &domain.UpstreamUnavailable{Source: source, Err: err},
		)
		var zero T
		return zero, domain.SourceEstimated, false
	}
	if res.Hit {
		return res.Value, domain.SourceCached, true
	}
	return res.Value, domain.SourceLive, true
}
