package risk

import (
	"math"

	"github.com/couchcryptid/geohazard-service/internal/domain"
)

// WildfireFeatures are the inputs to the wildfire model.
type WildfireFeatures struct {
	LandCover domain.LandCover

	TemperatureC   *float64
	HumidityPct    *float64
	WindSpeedKmh   *float64
	NDVI           *float64
	KBDI           *float64 // Keetch-Byram drought index, 0-800
	FiresPerDecade *float64
	SlopeDeg       *float64
}

// fuelAvailability scales the weather-driven probability by how much
// burnable fuel the cover carries.
var fuelAvailability = map[domain.LandCover]float64{
	domain.LandCoverForest:    1.0,
	domain.LandCoverShrubland: 1.0,
	domain.LandCoverGrassland: 1.0,
	domain.LandCoverCropland:  0.7,
	domain.LandCoverWetland:   0.4,
	domain.LandCoverUrban:     0.4,
	domain.LandCoverBare:      0.2,
	domain.LandCoverWater:     0.0,
}

// fuelConnectivity is the spread multiplier for continuous fuel beds.
var fuelConnectivity = map[domain.LandCover]float64{
	domain.LandCoverForest:    0.9,
	domain.LandCoverShrubland: 1.0,
	domain.LandCoverGrassland: 1.0,
	domain.LandCoverCropland:  0.6,
	domain.LandCoverWetland:   0.3,
	domain.LandCoverUrban:     0.3,
	domain.LandCoverBare:      0.1,
	domain.LandCoverWater:     0.0,
}

const kmhPerMph = 1.609344

// Wildfire estimates ignition and spread risk from fire weather and fuels.
func Wildfire(in WildfireFeatures) (domain.WildfireResult, error) {
	var f features
	w := newWeighted(5)

	temp := f.value("temperature_c", in.TemperatureC, 20)
	rh := f.value("humidity_pct", in.HumidityPct, 50)
	wind := f.value("wind_speed_kmh", in.WindSpeedKmh, 15)
	ndvi := f.value("ndvi", in.NDVI, 0.4)
	slope := f.value("slope_deg", in.SlopeDeg, 10)

	emc := EquilibriumMoisture(temp, rh)
	ffwi := FosbergIndex(emc, wind)
	dryness := clamp01(1 - ndvi/0.8)

	w.add("fuel_moisture_deficit", 0.25, 1-emc/30)
	w.add("vegetation_dryness", 0.20, dryness)
	w.add("drought", 0.20, f.value("kbdi", in.KBDI, 400)/800)
	w.add("fire_history", 0.10, 1-math.Exp(-f.value("fires_per_decade", in.FiresPerDecade, 2)/3))
	w.add("fire_weather", 0.25, ffwi/100)

	avail, ok := fuelAvailability[in.LandCover]
	if !ok {
		f.defaulted = append(f.defaulted, "land_cover")
		avail = 1
	}
	conn, ok := fuelConnectivity[in.LandCover]
	if !ok {
		conn = 0.7
	}
	p := w.probability() * avail

	hr, err := result("wildfire", p, w, &f)
	if err != nil {
		return domain.WildfireResult{}, err
	}
	return domain.WildfireResult{
		HazardResult:           hr,
		FireWeatherIndex:       round(ffwi, 1),
		VegetationDrynessIndex: round(dryness, 2),
		SpreadPotential:        SpreadPotential(wind, slope, conn),
	}, nil
}

// EquilibriumMoisture is the Simard (1968) dead fuel equilibrium moisture
// content in percent, from air temperature and relative humidity.
func EquilibriumMoisture(tempC, rh float64) float64 {
	t := tempC*9/5 + 32
	h := math.Max(0, math.Min(100, rh))
	var m float64
	switch {
	case h < 10:
		m = 0.03229 + 0.281073*h - 0.000578*h*t
	case h < 50:
		m = 2.22749 + 0.160107*h - 0.01478*t
	default:
		m = 21.0606 + 0.005565*h*h - 0.00035*h*t - 0.483199*h
	}
	return math.Max(0, m)
}

// FosbergIndex is the Fosberg Fire Weather Index for a fuel moisture and a
// wind speed in km/h. The index saturates at 100.
func FosbergIndex(emc, windKmh float64) float64 {
	x := math.Min(emc, 30) / 30
	eta := 1 - 2*x + 1.5*x*x - 0.5*x*x*x
	u := math.Max(0, windKmh) / kmhPerMph
	return math.Min(100, eta*math.Sqrt(1+u*u)/0.3002)
}

// SpreadPotential buckets wind * (1 + slope/20) * connectivity.
func SpreadPotential(windKmh, slopeDeg, connectivity float64) string {
	s := math.Max(0, windKmh) * (1 + math.Max(0, slopeDeg)/20) * connectivity
	switch {
	case s < 10:
		return "low"
	case s < 25:
		return "moderate"
	case s < 45:
		return "rapid"
	default:
		return "extreme"
	}
}
