// Command validate sweeps a latitude/longitude grid through the soil and
// hazard models using only climatological inputs (every upstream offline)
// and checks the range and monotonicity invariants the API promises:
// probabilities in [0, 1], levels matching their band, composite and health
// scores in [0, 100], texture fractions summing to 100, and hazard
// probabilities moving the right way as their driving input increases.
//
// Usage:
//
//	go run ./cmd/validate -step 10
//	go run ./cmd/validate -step 5 -land-cover forest -max-errors 50
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/geohazard-service/internal/assessment"
	"github.com/couchcryptid/geohazard-service/internal/cache"
	"github.com/couchcryptid/geohazard-service/internal/domain"
	"github.com/couchcryptid/geohazard-service/internal/observability"
	"github.com/couchcryptid/geohazard-service/internal/risk"
	"github.com/couchcryptid/geohazard-service/internal/soil"
)

var landCovers = []domain.LandCover{
	domain.LandCoverCropland,
	domain.LandCoverForest,
	domain.LandCoverGrassland,
	domain.LandCoverShrubland,
	domain.LandCoverUrban,
	domain.LandCoverBare,
	domain.LandCoverWater,
	domain.LandCoverWetland,
}

var depths = []soil.Depth{soil.Depth0to5, soil.Depth5to15, soil.Depth15to30}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	checks int
	errors []string
}

func (p *phase) check(ok bool, format string, args ...any) {
	p.checks++
	if !ok {
		p.errors = append(p.errors, fmt.Sprintf(format, args...))
	}
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// grid is the set of points swept by every phase.
type grid struct {
	step   float64
	covers []domain.LandCover
}

func (g grid) each(fn func(lat, lon float64, lc domain.LandCover)) {
	for lat := -80.0; lat <= 80; lat += g.step {
		for lon := -180.0; lon < 180; lon += g.step {
			for _, lc := range g.covers {
				fn(lat, lon, lc)
			}
		}
	}
}

func main() {
	step := flag.Float64("step", 10, "grid spacing in degrees")
	cover := flag.String("land-cover", "", "restrict the sweep to one land cover (default: all)")
	maxErrors := flag.Int("max-errors", 20, "violations printed per phase")
	flag.Parse()

	if *step <= 0 || *step > 90 {
		fmt.Fprintln(os.Stderr, "-step must be in (0, 90]")
		os.Exit(2)
	}
	g := grid{step: *step, covers: landCovers}
	if *cover != "" {
		g.covers = []domain.LandCover{domain.ParseLandCover(*cover)}
	}

	if code := run(g, *maxErrors); code != 0 {
		os.Exit(code)
	}
}

func run(g grid, maxErrors int) int {
	// Fixed clock so climatology and alert windows are reproducible.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2026, time.June, 21, 12, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	phases := []*phase{
		validateSoil(g),
		validateAssessments(g),
		validateMonotonicity(g),
	}

	failed := false
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = "FAIL"
			failed = true
		}
		fmt.Printf("%-28s %s  (%d checks, %d violations)\n", p.name, status, p.checks, len(p.errors))
		for i, e := range p.errors {
			if i == maxErrors {
				fmt.Printf("    ... %d more\n", len(p.errors)-maxErrors)
				break
			}
			fmt.Printf("    %s\n", e)
		}
	}
	if failed {
		return 1
	}
	return 0
}

// validateSoil runs the soil model directly with no upstream records.
func validateSoil(g grid) *phase {
	p := &phase{name: "soil model ranges"}
	model := soil.NewModel()
	g.each(func(lat, lon float64, lc domain.LandCover) {
		for _, d := range depths {
			r := model.Analyze(soil.Input{
				Location:  domain.Location{Latitude: lat, Longitude: lon},
				Depth:     d,
				LandCover: lc,
			})
			at := fmt.Sprintf("(%.1f,%.1f,%s,%s)", lat, lon, lc, d)
			props := r.Properties
			t := props.Texture
			p.check(r.Degraded, "%s: report without upstream data not marked degraded", at)
			p.check(inRange(props.PH, 3, 10), "%s: pH %.2f outside [3, 10]", at, props.PH)
			p.check(props.OrganicCarbonPct >= 0, "%s: negative organic carbon %.3f", at, props.OrganicCarbonPct)
			p.check(props.BulkDensityGcm3 > 0, "%s: bulk density %.3f not positive", at, props.BulkDensityGcm3)
			p.check(math.Abs(t.SandPct+t.SiltPct+t.ClayPct-100) <= 0.5,
				"%s: texture sums to %.2f", at, t.SandPct+t.SiltPct+t.ClayPct)
			p.check(t.Class != "", "%s: empty texture class", at)
			p.check(r.Health.Score >= 0 && r.Health.Score <= 100, "%s: health score %d", at, r.Health.Score)
			p.check(r.Erosion.RUSLETonsHaYr >= 0, "%s: negative soil loss %.3f", at, r.Erosion.RUSLETonsHaYr)
		}
	})
	return p
}

// validateAssessments drives the full assessment path with every upstream
// failing, which exercises the default substitution in each model.
func validateAssessments(g grid) *phase {
	p := &phase{name: "assessment ranges"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	newCache := func(name string) *cache.Cache { return cache.New(16, cache.WithName(name)) }

	src := offline{}
	svc := assessment.New(assessment.Config{
		FetchTimeout:    time.Second,
		SeismicLookback: 24 * time.Hour,
		SeismicRadiusKm: 100,
	}, assessment.Deps{
		Weather:   src,
		SoilGrids: src,
		Seismic:   src,
	}, assessment.Caches{
		Soil:      newCache("soil"),
		Risk:      newCache("risk"),
		Weather:   newCache("weather"),
		Seismic:   newCache("seismic"),
		SoilGrids: newCache("soilgrids"),
	}, metrics, logger)

	ctx := context.Background()
	g.each(func(lat, lon float64, lc domain.LandCover) {
		at := fmt.Sprintf("(%.1f,%.1f,%s)", lat, lon, lc)
		a, err := svc.Risk(ctx, domain.Location{Latitude: lat, Longitude: lon}, string(lc))
		p.check(err == nil, "%s: risk returned %v", at, err)
		if err != nil {
			return
		}
		p.check(a.Degraded, "%s: offline assessment not marked degraded", at)
		for name, h := range hazards(a.Risks) {
			p.check(h.Level != domain.LevelUnknown, "%s: %s model failed", at, name)
			p.check(inRange(h.Probability, 0, 1), "%s: %s probability %.4f outside [0, 1]", at, name, h.Probability)
			p.check(h.Level == domain.LevelForProbability(h.Probability),
				"%s: %s level %q does not match probability %.4f", at, name, h.Level, h.Probability)
		}
		p.check(a.CompositeRiskScore >= 0 && a.CompositeRiskScore <= 100,
			"%s: composite score %d outside [0, 100]", at, a.CompositeRiskScore)
		p.check(a.CompositeRiskLevel == domain.LevelForScore(a.CompositeRiskScore),
			"%s: composite level %q does not match score %d", at, a.CompositeRiskLevel, a.CompositeRiskScore)
		p.check(a.CurrentConditions.Estimated, "%s: offline conditions not marked estimated", at)
	})
	return p
}

// validateMonotonicity checks each hazard responds in the right direction
// to its main driver, holding everything else fixed.
func validateMonotonicity(g grid) *phase {
	p := &phase{name: "hazard monotonicity"}
	f := domain.Float
	rains := []float64{0, 25, 50, 100, 200, 400}
	humidities := []float64{95, 75, 55, 35, 15}
	groundwater := []float64{0.5, 2, 5, 10, 20}

	g.each(func(lat, lon float64, lc domain.LandCover) {
		at := fmt.Sprintf("(%.1f,%.1f,%s)", lat, lon, lc)

		prev := -1.0
		for _, rain := range rains {
			r, err := risk.Landslide(risk.LandslideFeatures{
				Latitude: lat, Longitude: lon, LandCover: lc,
				SlopeDeg: f(20), Rain72hMm: f(rain),
			})
			if !p.ok(err, at, "landslide") {
				break
			}
			p.check(r.Probability >= prev-1e-9, "%s: landslide falls from %.4f to %.4f as 72h rain rises to %.0f mm",
				at, prev, r.Probability, rain)
			prev = r.Probability
		}

		prev = -1.0
		for _, rain := range rains {
			r, err := risk.Flood(risk.FloodFeatures{
				Latitude: lat, Longitude: lon,
				Rain24hMm: f(rain / 3), Rain48hMm: f(2 * rain / 3), Rain72hMm: f(rain),
			})
			if !p.ok(err, at, "flood") {
				break
			}
			p.check(r.Probability >= prev-1e-9, "%s: flood falls from %.4f to %.4f as 72h rain rises to %.0f mm",
				at, prev, r.Probability, rain)
			prev = r.Probability
		}

		prev = -1.0
		for _, rh := range humidities {
			r, err := risk.Wildfire(risk.WildfireFeatures{
				LandCover: lc, TemperatureC: f(30), HumidityPct: f(rh), WindSpeedKmh: f(20),
			})
			if !p.ok(err, at, "wildfire") {
				break
			}
			p.check(r.Probability >= prev-1e-9, "%s: wildfire falls from %.4f to %.4f as humidity drops to %.0f%%",
				at, prev, r.Probability, rh)
			prev = r.Probability
		}
	})

	// Liquefaction does not depend on location; one sweep is enough.
	prev := 2.0
	for _, gw := range groundwater {
		r, err := risk.Liquefaction(risk.LiquefactionFeatures{
			SandPct: f(80), SiltPct: f(15), ClayPct: f(5), GroundwaterDepthM: f(gw),
		})
		if !p.ok(err, "(any)", "liquefaction") {
			break
		}
		p.check(r.ProbabilityGivenM7 <= prev+1e-9, "liquefaction rises from %.4f to %.4f as groundwater deepens to %.1f m",
			prev, r.ProbabilityGivenM7, gw)
		prev = r.ProbabilityGivenM7
	}
	return p
}

func (p *phase) ok(err error, at, model string) bool {
	p.check(err == nil, "%s: %s model error: %v", at, model, err)
	return err == nil
}

func hazards(r domain.Risks) map[string]domain.HazardResult {
	return map[string]domain.HazardResult{
		"landslide":    r.Landslide.HazardResult,
		"flood":        r.Flood.HazardResult,
		"wildfire":     r.Wildfire.HazardResult,
		"liquefaction": r.Liquefaction.HazardResult,
	}
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}

var errOffline = errors.New("offline validation run")

// offline fails every upstream call.
type offline struct{}

func (offline) FetchWeather(context.Context, float64, float64) (domain.Weather, error) {
	return domain.Weather{}, errOffline
}

func (offline) FetchSoilMoisture(context.Context, float64, float64) (domain.SoilMoisture, error) {
	return domain.SoilMoisture{}, errOffline
}

func (offline) FetchClimateNormals(context.Context, float64, float64) (domain.ClimateNormals, error) {
	return domain.ClimateNormals{}, errOffline
}

func (offline) FetchProfile(context.Context, float64, float64) (domain.SoilGridsProfile, error) {
	return nil, errOffline
}

func (offline) FetchEvents(context.Context, domain.EarthquakeQuery) ([]domain.EarthquakeEvent, error) {
	return nil, errOffline
}
