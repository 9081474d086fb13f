package assessment

import (
	"math"

	"github.com/couchcryptid/geohazard-service/internal/domain"
	"github.com/couchcryptid/geohazard-service/internal/risk"
	"github.com/couchcryptid/geohazard-service/internal/soil"
)

// minSignificantPGA is the ground motion below which nearby shaking is
// ignored and liquefaction falls back to susceptibility.
const minSignificantPGA = 0.05

// Weather defaults used for current conditions when the fetch failed.
const (
	defaultTempC    = 20.0
	defaultHumidity = 50.0
	defaultWindKmh  = 10.0
)

// coverRunoff is the share of rainfall each cover sheds as surface runoff,
// used as the imperviousness input of the flood model.
var coverRunoff = map[domain.LandCover]float64{
	domain.LandCoverUrban:     0.9,
	domain.LandCoverBare:      0.7,
	domain.LandCoverCropland:  0.5,
	domain.LandCoverGrassland: 0.3,
	domain.LandCoverShrubland: 0.25,
	domain.LandCoverForest:    0.1,
	domain.LandCoverWetland:   0.6,
	domain.LandCoverWater:     0.95,
}

// assess runs the topsoil analysis and the four hazard models over in.
func (s *Service) assess(in inputs, loc domain.Location, lc domain.LandCover) domain.RiskAssessment {
	report := s.analyzeSoil(in, loc, soil.Depth0to5, lc)
	props := report.Properties
	slope := report.Metadata.SlopeDegrees
	ndvi := report.Metadata.NDVI
	moisture := props.MoisturePct

	var w domain.Weather
	if in.weather != nil {
		w = *in.weather
	}
	quake := summarizeSeismic(in.nearby, in.seismicOK, loc.Latitude, loc.Longitude)
	degraded := report.Degraded

	var risks domain.Risks
	var err error
	risks.Landslide, err = risk.Landslide(risk.LandslideFeatures{
		Latitude:        loc.Latitude,
		Longitude:       loc.Longitude,
		LandCover:       lc,
		SlopeDeg:        &slope,
		SoilMoisturePct: &moisture,
		ClayPct:         &props.Texture.ClayPct,
		MaxMagnitude:    quake.maxMagnitude,
		Rain72hMm:       w.Rain72hMm,
		NDVI:            &ndvi,
		FaultDistanceKm: quake.nearestKm,
	})
	if err != nil {
		s.modelFailed("landslide", err, &risks.Landslide.HazardResult)
		degraded = true
	}

	risks.Flood, err = risk.Flood(risk.FloodFeatures{
		Latitude:        loc.Latitude,
		Longitude:       loc.Longitude,
		SlopeDeg:        &slope,
		SandPct:         &props.Texture.SandPct,
		ClayPct:         &props.Texture.ClayPct,
		SoilMoisturePct: &moisture,
		Rain24hMm:       w.Rain24hMm,
		Rain48hMm:       w.Rain48hMm,
		Rain72hMm:       w.Rain72hMm,
		AnnualPrecipMm:  domain.Float(report.Climate.MeanAnnualPrecipMm),
		ImperviousPct:   imperviousness(lc, ndvi),
	})
	if err != nil {
		s.modelFailed("flood", err, &risks.Flood.HazardResult)
		degraded = true
	}

	risks.Wildfire, err = risk.Wildfire(risk.WildfireFeatures{
		LandCover:    lc,
		TemperatureC: w.TemperatureC,
		HumidityPct:  w.HumidityPct,
		WindSpeedKmh: w.WindSpeedKmh,
		NDVI:         &ndvi,
		KBDI:         droughtIndex(moisture, w.DaysSinceRain, w.Rain7dMm),
		SlopeDeg:     &slope,
	})
	if err != nil {
		s.modelFailed("wildfire", err, &risks.Wildfire.HazardResult)
		degraded = true
	}

	silt := props.Texture.SiltPct
	risks.Liquefaction, err = risk.Liquefaction(risk.LiquefactionFeatures{
		SandPct: &props.Texture.SandPct,
		SiltPct: &silt,
		ClayPct: &props.Texture.ClayPct,
		PGAg:    quake.pga,
	})
	if err != nil {
		s.modelFailed("liquefaction", err, &risks.Liquefaction.HazardResult)
		degraded = true
	}

	score, level := risk.Composite(
		risks.Landslide.Probability,
		risks.Flood.Probability,
		risks.Wildfire.Probability,
		risks.Liquefaction.Probability,
	)

	return domain.RiskAssessment{
		Location:           report.Location,
		Risks:              risks,
		CompositeRiskScore: score,
		CompositeRiskLevel: level,
		CurrentConditions:  currentConditions(in.weather, moisture),
		Degraded:           degraded || in.degraded(),
		Sources:            in.sources,
		Timestamp:          domain.Now(),
	}
}

// analyzeSoil runs the soil model for one depth. Open-Meteo's grid elevation
// stands in when the caller gave none.
func (s *Service) analyzeSoil(in inputs, loc domain.Location, d soil.Depth, lc domain.LandCover) domain.SoilReport {
	var rec *domain.SoilGridsRecord
	if r, ok := in.profile[string(d)]; ok {
		rec = &r
	}
	if loc.ElevationM == nil && in.weather != nil && in.weather.ElevationM != nil {
		loc.ElevationM = in.weather.ElevationM
	}

	report := s.soil.Analyze(soil.Input{
		Location:  loc,
		Depth:     d,
		LandCover: lc,
		SoilGrids: rec,
		Moisture:  in.moisture,
		Climate:   in.climate,
	})
	report.Sources = in.sources
	report.Degraded = report.Degraded || in.degraded()
	return report
}

// modelFailed records a model that broke its own invariants. The hazard is
// reported as Unknown and contributes nothing to the composite.
func (s *Service) modelFailed(model string, err error, hr *domain.HazardResult) {
	s.metrics.ModelFailures.WithLabelValues(model).Inc()
	s.logger.Error("risk model failed", "model", model, "error", err)
	*hr = domain.HazardResult{Level: domain.LevelUnknown, Factors: map[string]float64{}}
}

// seismicContext condenses nearby events into model inputs. Nil fields mean
// the value is unknown and the model default applies.
type seismicContext struct {
	maxMagnitude *float64
	nearestKm    *float64
	pga          *float64
}

func summarizeSeismic(events []domain.EarthquakeEvent, ok bool, lat, lon float64) seismicContext {
	if !ok {
		return seismicContext{}
	}
	if len(events) == 0 {
		return seismicContext{maxMagnitude: domain.Float(0)}
	}

	maxMag, nearest, peak := 0.0, math.Inf(1), 0.0
	for _, ev := range events {
		epicentral := domain.HaversineKm(lat, lon, ev.Latitude, ev.Longitude)
		hypocentral := math.Hypot(epicentral, ev.DepthKm)
		maxMag = math.Max(maxMag, ev.Magnitude)
		nearest = math.Min(nearest, epicentral)
		peak = math.Max(peak, risk.CampbellPGA(ev.Magnitude, hypocentral))
	}

	sc := seismicContext{
		maxMagnitude: domain.Float(maxMag),
		nearestKm:    domain.Float(math.Round(nearest*10) / 10),
	}
	if peak >= minSignificantPGA {
		sc.pga = domain.Float(peak)
	}
	return sc
}

// imperviousness is the cover's runoff share less a vegetation benefit, in
// percent.
func imperviousness(lc domain.LandCover, ndvi float64) *float64 {
	base, ok := coverRunoff[lc]
	if !ok {
		return nil
	}
	v := math.Max(0, math.Min(1, base-math.Max(0, (ndvi-0.3)*0.5)))
	return domain.Float(v * 100)
}

// droughtIndex maps soil moisture deficit, the dry spell and recent rain onto
// the 0-800 Keetch-Byram scale. Nil without rainfall history.
func droughtIndex(moisturePct float64, daysSinceRain *int, rain7d *float64) *float64 {
	if daysSinceRain == nil || rain7d == nil {
		return nil
	}
	deficit := math.Max(0, 1-moisturePct/50)
	drySpell := math.Min(1, float64(*daysSinceRain)/30)
	rainBenefit := math.Min(0.5, *rain7d/50)
	score := 0.4*deficit + 0.4*drySpell + 0.4*(0.5-rainBenefit)
	return domain.Float(math.Round(800 * math.Min(1, score)))
}

func currentConditions(w *domain.Weather, moisturePct float64) domain.CurrentConditions {
	cc := domain.CurrentConditions{
		TemperatureC:    defaultTempC,
		HumidityPct:     defaultHumidity,
		WindSpeedKmh:    defaultWindKmh,
		SoilMoisturePct: moisturePct,
		Estimated:       true,
	}
	if w == nil {
		return cc
	}
	cc.Estimated = w.TemperatureC == nil || w.HumidityPct == nil || w.WindSpeedKmh == nil
	if w.TemperatureC != nil {
		cc.TemperatureC = *w.TemperatureC
	}
	if w.HumidityPct != nil {
		cc.HumidityPct = *w.HumidityPct
	}
	if w.WindSpeedKmh != nil {
		cc.WindSpeedKmh = *w.WindSpeedKmh
	}
	if w.PrecipitationMm != nil {
		cc.PrecipitationMm = *w.PrecipitationMm
	}
	return cc
}
