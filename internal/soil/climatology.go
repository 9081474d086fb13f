package soil

import (
	"math"

	"github.com/couchcryptid/geohazard-service/internal/domain"
)

// Regional climatological defaults. These stand in for upstream data when a
// fetcher fails so a degraded response still carries a value for every field.

// DefaultSoilMoisturePct is the global mean volumetric topsoil moisture.
const DefaultSoilMoisturePct = 28.8

// climateBand is one latitude band of the fallback climate table.
type climateBand struct {
	maxAbsLat float64
	tempC     float64
	precipMm  float64
}

var climateBands = []climateBand{
	{15, 26, 1800}, // equatorial humid
	{30, 21, 500},  // subtropical dry belt
	{50, 11, 900},  // mid-latitude temperate
	{90, 0, 600},   // subpolar and polar
}

// DefaultClimate returns mean annual temperature and precipitation for the
// latitude band containing lat.
func DefaultClimate(lat float64) (tempC, precipMm float64) {
	abs := math.Abs(lat)
	for _, b := range climateBands {
		if abs < b.maxAbsLat {
			return b.tempC, b.precipMm
		}
	}
	last := climateBands[len(climateBands)-1]
	return last.tempC, last.precipMm
}

// ZoneFor classifies climate from latitude and annual normals.
func ZoneFor(lat, tempC, precipMm float64) domain.ClimateZone {
	switch {
	case precipMm < 400:
		return domain.ZoneArid
	case tempC >= 20 && math.Abs(lat) < 30:
		return domain.ZoneTropical
	case tempC < 3:
		return domain.ZoneBoreal
	default:
		return domain.ZoneTemperate
	}
}

// EstimateElevation gives a coarse elevation when neither the caller nor the
// weather upstream supplied one.
func EstimateElevation(lat, lon float64) float64 {
	abs := math.Abs(lat)
	base := 200.0
	if abs > 60 {
		base = 300
	}
	if abs > 25 && abs < 45 && ((lon > 70 && lon < 100) || (lon > -110 && lon < -100)) {
		base = 1500
	}
	if abs < 10 {
		base = 150
	}
	return base + math.Sin(lon*0.1)*100
}

// EstimateSlope maps elevation to a typical terrain slope in degrees.
func EstimateSlope(elevationM float64) float64 {
	switch {
	case elevationM > 2000:
		return 25
	case elevationM > 1000:
		return 15
	case elevationM > 500:
		return 8
	case elevationM > 200:
		return 5
	default:
		return 2
	}
}

var coverNDVI = map[domain.LandCover]float64{
	domain.LandCoverForest:    0.70,
	domain.LandCoverGrassland: 0.50,
	domain.LandCoverShrubland: 0.40,
	domain.LandCoverCropland:  0.45,
	domain.LandCoverBare:      0.10,
	domain.LandCoverUrban:     0.15,
	domain.LandCoverWater:     0.00,
	domain.LandCoverWetland:   0.50,
}

// EstimateNDVI derives a vegetation index from land cover and climate.
func EstimateNDVI(lc domain.LandCover, tempC, precipMm float64) float64 {
	base, ok := coverNDVI[lc]
	if !ok {
		base = 0.4
	}
	switch {
	case precipMm > 1000 && tempC > 10:
		base *= 1.2
	case precipMm < 300:
		base *= 0.6
	}
	return clamp(base, 0, 0.95)
}

// RegionName labels a latitude band.
func RegionName(lat float64) string {
	switch {
	case lat > 60:
		return "Arctic/Subarctic"
	case lat > 35:
		return "Temperate"
	case lat > 23.5:
		return "Subtropical"
	case lat > -23.5:
		return "Tropical"
	case lat > -35:
		return "Subtropical (Southern)"
	default:
		return "Temperate (Southern)"
	}
}

// EstimateMoisture scales the global mean by annual precipitation.
func EstimateMoisture(precipMm float64) float64 {
	return clamp(8+precipMm*0.025, 5, 45)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
