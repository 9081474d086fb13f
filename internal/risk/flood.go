package risk

import (
	"math"

	"github.com/couchcryptid/geohazard-service/internal/domain"
)

// FloodFeatures are the inputs to the flood model.
type FloodFeatures struct {
	Latitude  float64
	Longitude float64

	HeightAboveWaterM *float64 // elevation above the nearest drainage line
	SlopeDeg          *float64
	SandPct           *float64
	ClayPct           *float64
	SoilMoisturePct   *float64
	Rain24hMm         *float64
	Rain48hMm         *float64
	Rain72hMm         *float64
	AnnualPrecipMm    *float64
	UpstreamAreaKm2   *float64
	ImperviousPct     *float64
}

var floodRegions = []region{
	{"ganges-brahmaputra delta", 20, 27, 85, 95, 1.30},
	{"mississippi delta", 28, 35, -95, -88, 1.15},
	{"low countries", 51, 54, 3, 8, 1.10},
}

const (
	// maxInundationM is the modelled depth for a certain flood on saturated
	// ground at the water line.
	maxInundationM = 3.0
	// deficitScaleM is the height above water at which inundation vanishes.
	deficitScaleM = 10.0
	// windowDays is the rainfall accumulation window of the return period fit.
	windowDays = 3.0
	// lognormalSigma is the spread of ln(3-day rainfall).
	lognormalSigma = 1.0
)

// Flood estimates flood probability, return period and inundation depth.
func Flood(in FloodFeatures) (domain.FloodResult, error) {
	var f features
	w := newWeighted(9)

	height := f.value("height_above_water_m", in.HeightAboveWaterM, 7)
	moisture := f.value("soil_moisture_pct", in.SoilMoisturePct, 30)
	annual := f.value("annual_precip_mm", in.AnnualPrecipMm, 900)
	rain72 := f.value("rain_72h_mm", in.Rain72hMm, 50)

	w.add("elevation", 0.18, math.Exp(-math.Max(0, height)/deficitScaleM))
	w.add("slope", 0.08, 1-f.value("slope_deg", in.SlopeDeg, 7.5)/15)
	w.add("infiltration", 0.12, poorInfiltration(
		f.value("sand_pct", in.SandPct, 40),
		f.value("clay_pct", in.ClayPct, 25),
	))
	w.add("saturation", 0.10, moisture/60)
	w.add("rain_24h", 0.14, f.value("rain_24h_mm", in.Rain24hMm, 50)/100)
	w.add("rain_48h", 0.10, f.value("rain_48h_mm", in.Rain48hMm, 75)/150)
	w.add("rain_72h", 0.10, rain72/200)
	w.add("upstream_area", 0.09, math.Log10(1+math.Max(0, f.value("upstream_area_km2", in.UpstreamAreaKm2, 100)))/4)
	w.add("imperviousness", 0.09, f.value("impervious_pct", in.ImperviousPct, 50)/100)

	mult := multiplierFor(floodRegions, in.Latitude, in.Longitude)
	p := w.probability()
	if mult != 1 {
		p = math.Min(p*mult, regionalCap)
	}

	hr, err := result("flood", p, w, &f)
	if err != nil {
		return domain.FloodResult{}, err
	}
	saturation := clamp01(moisture / 60)
	deficit := clamp01(height / deficitScaleM)
	return domain.FloodResult{
		HazardResult:       hr,
		ReturnPeriodYears:  round(ReturnPeriod(rain72, annual), 1),
		InundationDepthM:   round(maxInundationM*p*saturation*(1-deficit), 2),
		RegionalMultiplier: mult,
	}, nil
}

// poorInfiltration is high for clay-rich, sand-poor soils.
func poorInfiltration(sand, clay float64) float64 {
	return 0.5*clamp01(clay/50) + 0.5*clamp01(1-sand/80)
}

// ReturnPeriod fits 3-day rainfall totals to a log-normal whose median is
// the location's mean 3-day share of annual precipitation and returns the
// expected years between accumulations at least as large as rain72, in [1,1000].
func ReturnPeriod(rain72, annualPrecip float64) float64 {
	if annualPrecip < 1 {
		annualPrecip = 1
	}
	if rain72 <= 0 {
		return 1
	}
	mu := math.Log(windowDays * annualPrecip / 365)
	z := (math.Log(rain72) - mu) / lognormalSigma
	pWindow := 0.5 * math.Erfc(z/math.Sqrt2)

	windows := 365 / windowDays
	pYear := 1 - math.Pow(1-pWindow, windows)
	if pYear <= 0 {
		return 1000
	}
	return math.Max(1, math.Min(1000, 1/pYear))
}
