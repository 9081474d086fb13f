package risk

import (
	"math"

	"github.com/couchcryptid/geohazard-service/internal/domain"
)

// LandslideFeatures are the inputs to the landslide model.
type LandslideFeatures struct {
	Latitude  float64
	Longitude float64
	LandCover domain.LandCover

	SlopeDeg        *float64
	SoilMoisturePct *float64
	ClayPct         *float64
	MaxMagnitude    *float64 // strongest recent nearby earthquake
	Rain72hMm       *float64
	NDVI            *float64
	DrainageDensity *float64 // km/km2
	SoilDepthM      *float64
	PriorEvents     *float64 // mapped landslides within the cell
	FaultDistanceKm *float64
}

var landslideRegions = []region{
	{"himalaya", 25, 38, 70, 100, 1.20},
	{"japan", 33, 43, 129, 146, 1.15},
	{"andes", -40, 10, -80, -65, 1.15},
	{"alps", 43, 48, 5, 17, 1.10},
}

var landslideCoverRisk = map[domain.LandCover]float64{
	domain.LandCoverForest:    0.1,
	domain.LandCoverShrubland: 0.25,
	domain.LandCoverGrassland: 0.3,
	domain.LandCoverUrban:     0.3,
	domain.LandCoverCropland:  0.5,
	domain.LandCoverWetland:   0.4,
	domain.LandCoverWater:     0.2,
	domain.LandCoverBare:      0.9,
}

// Landslide estimates the probability of slope failure.
func Landslide(in LandslideFeatures) (domain.LandslideResult, error) {
	var f features
	w := newWeighted(10)

	w.add("slope", 0.22, slopeFailure(f.value("slope_deg", in.SlopeDeg, 15)))
	w.add("saturation", 0.14, f.value("soil_moisture_pct", in.SoilMoisturePct, 25)/50)
	w.add("clay", 0.08, f.value("clay_pct", in.ClayPct, 25)/50)
	w.add("seismic_activity", 0.08, (f.value("max_magnitude", in.MaxMagnitude, 5)-3)/4)
	w.add("rainfall_intensity", 0.16, stepValue(f.value("rain_72h_mm", in.Rain72hMm, 50), []step{
		{10, 0.05}, {30, 0.15}, {50, 0.3}, {100, 0.5}, {200, 0.75},
	}, 0.9))
	w.add("land_cover", 0.10, landslideCover(in.LandCover, f.value("ndvi", in.NDVI, 0.4), &f))
	w.add("drainage_density", 0.05, f.value("drainage_density", in.DrainageDensity, 2.5)/5)
	w.add("soil_depth", 0.05, f.value("soil_depth_m", in.SoilDepthM, 2.5)/5)
	w.add("prior_events", 0.06, 1-math.Exp(-f.value("prior_events", in.PriorEvents, 1.4)/2))
	w.add("fault_proximity", 0.06, stepValue(f.value("fault_distance_km", in.FaultDistanceKm, 20), []step{
		{5, 0.9}, {20, 0.6}, {50, 0.3},
	}, 0.1))

	mult := multiplierFor(landslideRegions, in.Latitude, in.Longitude)
	p := w.probability()
	if mult != 1 {
		p = math.Min(p*mult, regionalCap)
	}

	hr, err := result("landslide", p, w, &f)
	if err != nil {
		return domain.LandslideResult{}, err
	}
	return domain.LandslideResult{HazardResult: hr, RegionalMultiplier: mult}, nil
}

// slopeFailure rises steeply between 15 and 45 degrees.
func slopeFailure(deg float64) float64 {
	switch {
	case deg < 5:
		return 0.05
	case deg < 15:
		return 0.15 + (deg-5)/10*0.2
	case deg < 30:
		return 0.35 + (deg-15)/15*0.3
	case deg < 45:
		return 0.65 + (deg-30)/15*0.25
	default:
		return 0.9
	}
}

// landslideCover blends land cover with live vegetation; dense roots
// stabilize slopes.
func landslideCover(lc domain.LandCover, ndvi float64, f *features) float64 {
	base, ok := landslideCoverRisk[lc]
	if !ok {
		f.defaulted = append(f.defaulted, "land_cover")
		base = 0.4
	}
	return base*0.5 + math.Max(0, 1-ndvi*1.5)*0.5
}
