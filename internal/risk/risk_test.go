package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/couchcryptid/geohazard-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestComposite_ReferenceScenario(t *testing.T) {
	score, level := Composite(0.8, 0.1, 0.2, 0.3)
	assert.Equal(t, 62, score)
	assert.Equal(t, domain.LevelHigh, level)
}

func TestComposite_Bounds(t *testing.T) {
	score, level := Composite(0, 0, 0, 0)
	assert.Equal(t, 0, score)
	assert.Equal(t, domain.LevelVeryLow, level)

	score, level = Composite(1, 1, 1, 1)
	assert.Equal(t, 100, score)
	assert.Equal(t, domain.LevelCritical, level)

	score, _ = Composite(2, -1, 0.5, 0.5)
	assert.LessOrEqual(t, score, 100)
	assert.GreaterOrEqual(t, score, 0)
}

func TestComposite_MonotoneInEachInput(t *testing.T) {
	base := []float64{0.3, 0.3, 0.3, 0.3}
	for i := range base {
		prev := -1
		for p := 0.0; p <= 1.0001; p += 0.05 {
			in := append([]float64(nil), base...)
			in[i] = p
			score, _ := Composite(in[0], in[1], in[2], in[3])
			require.GreaterOrEqual(t, score, prev)
			prev = score
		}
	}
}

func TestLandslide_AllDefaults(t *testing.T) {
	r, err := Landslide(LandslideFeatures{})
	require.NoError(t, err)

	assert.InDelta(t, 0.39, r.Probability, 0.02)
	assert.Equal(t, domain.LevelLow, r.Level)
	assert.Equal(t, 1.0, r.RegionalMultiplier)
	assert.Contains(t, r.Defaulted, "slope_deg")
	assert.Contains(t, r.Defaulted, "land_cover")
	assert.Len(t, r.Factors, 10)
}

func TestLandslide_SteeperWetterIsRiskier(t *testing.T) {
	in := LandslideFeatures{
		Latitude: 40, Longitude: -100, LandCover: domain.LandCoverGrassland,
		SoilMoisturePct: ptr(20), Rain72hMm: ptr(20),
	}
	prev := -1.0
	for slope := 0.0; slope <= 60; slope += 5 {
		in.SlopeDeg = ptr(slope)
		r, err := Landslide(in)
		require.NoError(t, err)
		require.GreaterOrEqual(t, r.Probability, prev, "slope %v", slope)
		prev = r.Probability
	}

	in.SlopeDeg = ptr(30)
	dry, err := Landslide(in)
	require.NoError(t, err)
	in.SoilMoisturePct, in.Rain72hMm = ptr(48), ptr(250)
	wet, err := Landslide(in)
	require.NoError(t, err)
	assert.Greater(t, wet.Probability, dry.Probability)
}

func TestLandslide_RegionalMultiplierCapped(t *testing.T) {
	extreme := LandslideFeatures{
		Latitude: 30, Longitude: 85, LandCover: domain.LandCoverBare,
		SlopeDeg: ptr(50), SoilMoisturePct: ptr(50), ClayPct: ptr(50), MaxMagnitude: ptr(7.5),
		Rain72hMm: ptr(300), NDVI: ptr(0), DrainageDensity: ptr(5), SoilDepthM: ptr(5),
		PriorEvents: ptr(20), FaultDistanceKm: ptr(1),
	}
	r, err := Landslide(extreme)
	require.NoError(t, err)
	assert.Equal(t, 1.2, r.RegionalMultiplier)
	assert.LessOrEqual(t, r.Probability, regionalCap)
	assert.Equal(t, domain.LevelCritical, r.Level)
	assert.Empty(t, r.Defaulted)
}

func TestLandslide_NaNInputIsComputationError(t *testing.T) {
	_, err := Landslide(LandslideFeatures{SlopeDeg: ptr(math.NaN())})
	var ce *domain.ComputationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "landslide", ce.Model)
}

func TestFlood_LowWetGroundFloods(t *testing.T) {
	low := FloodFeatures{
		Latitude: 40, Longitude: -100,
		HeightAboveWaterM: ptr(0.5), SlopeDeg: ptr(0.5), SandPct: ptr(15), ClayPct: ptr(45),
		SoilMoisturePct: ptr(55), Rain24hMm: ptr(120), Rain48hMm: ptr(180), Rain72hMm: ptr(220),
		AnnualPrecipMm: ptr(900), UpstreamAreaKm2: ptr(5000), ImperviousPct: ptr(70),
	}
	r, err := Flood(low)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, r.Probability, domain.HighThreshold)
	assert.Greater(t, r.InundationDepthM, 0.0)
	assert.LessOrEqual(t, r.InundationDepthM, maxInundationM)
	assert.Greater(t, r.ReturnPeriodYears, 1.0)

	high := low
	high.HeightAboveWaterM, high.SlopeDeg = ptr(80), ptr(20)
	high.Rain24hMm, high.Rain48hMm, high.Rain72hMm = ptr(0), ptr(0), ptr(0)
	r2, err := Flood(high)
	require.NoError(t, err)
	assert.Less(t, r2.Probability, r.Probability)
	assert.Equal(t, 0.0, r2.InundationDepthM, "no inundation well above the water line")
}

func TestFlood_RegionalMultiplier(t *testing.T) {
	r, err := Flood(FloodFeatures{Latitude: 23.8, Longitude: 90.4})
	require.NoError(t, err)
	assert.Equal(t, 1.3, r.RegionalMultiplier)
	assert.Contains(t, r.Defaulted, "rain_24h_mm")
}

func TestReturnPeriod(t *testing.T) {
	assert.Equal(t, 1.0, ReturnPeriod(0, 900))

	prev := 0.0
	for _, r := range []float64{5, 20, 50, 100, 200, 400, 800, 5000} {
		rp := ReturnPeriod(r, 900)
		assert.GreaterOrEqual(t, rp, prev, "rain %v", r)
		assert.GreaterOrEqual(t, rp, 1.0)
		assert.LessOrEqual(t, rp, 1000.0)
		prev = rp
	}
	assert.Equal(t, 1000.0, ReturnPeriod(5000, 900))

	// Wetter climates make the same storm more ordinary.
	assert.Less(t, ReturnPeriod(200, 2500), ReturnPeriod(200, 400))
}

func TestWildfire_HotDryWindyIsRiskier(t *testing.T) {
	mild := WildfireFeatures{
		LandCover:    domain.LandCoverForest,
		TemperatureC: ptr(15), HumidityPct: ptr(80), WindSpeedKmh: ptr(5),
		NDVI: ptr(0.8), KBDI: ptr(50), FiresPerDecade: ptr(0), SlopeDeg: ptr(5),
	}
	severe := WildfireFeatures{
		LandCover:    domain.LandCoverShrubland,
		TemperatureC: ptr(40), HumidityPct: ptr(8), WindSpeedKmh: ptr(55),
		NDVI: ptr(0.1), KBDI: ptr(700), FiresPerDecade: ptr(6), SlopeDeg: ptr(25),
	}
	m, err := Wildfire(mild)
	require.NoError(t, err)
	s, err := Wildfire(severe)
	require.NoError(t, err)

	assert.Less(t, m.Probability, 0.2)
	assert.Equal(t, domain.LevelCritical, s.Level)
	assert.Greater(t, s.FireWeatherIndex, m.FireWeatherIndex)
	assert.Equal(t, "low", m.SpreadPotential)
	assert.Equal(t, "extreme", s.SpreadPotential)
}

func TestWildfire_WaterDoesNotBurn(t *testing.T) {
	r, err := Wildfire(WildfireFeatures{
		LandCover:    domain.LandCoverWater,
		TemperatureC: ptr(40), HumidityPct: ptr(5), WindSpeedKmh: ptr(60),
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.Probability)
	assert.Equal(t, domain.LevelVeryLow, r.Level)
}

func TestEquilibriumMoisture(t *testing.T) {
	// Drier air leaves drier fuel.
	assert.Greater(t, EquilibriumMoisture(25, 80), EquilibriumMoisture(25, 40))
	assert.Greater(t, EquilibriumMoisture(25, 40), EquilibriumMoisture(25, 5))
	assert.GreaterOrEqual(t, EquilibriumMoisture(45, 0), 0.0)
}

func TestFosbergIndex(t *testing.T) {
	// Saturated fuel gives eta = 0.
	assert.InDelta(t, 0, FosbergIndex(30, 50), 1e-9)
	// Bone dry, calm air: 1/0.3002.
	assert.InDelta(t, 3.331, FosbergIndex(0, 0), 0.001)
	assert.Equal(t, 100.0, FosbergIndex(0, 500))
}

func TestSpreadPotential(t *testing.T) {
	assert.Equal(t, "low", SpreadPotential(9.9, 0, 1))
	assert.Equal(t, "moderate", SpreadPotential(10, 0, 1))
	assert.Equal(t, "rapid", SpreadPotential(10, 20, 1.25))
	assert.Equal(t, "extreme", SpreadPotential(30, 20, 1))
}

func TestLiquefaction_NoPGAUsesSusceptibility(t *testing.T) {
	r, err := Liquefaction(LiquefactionFeatures{
		SandPct: ptr(80), SiltPct: ptr(15), ClayPct: ptr(5),
		GroundwaterDepthM: ptr(0.5), DepositAgeKyr: ptr(0.5),
	})
	require.NoError(t, err)

	assert.False(t, r.PGAAvailable)
	assert.Equal(t, r.SusceptibilityScore, r.Probability)
	assert.Equal(t, "Very High", r.SusceptibilityClass)
	assert.Greater(t, r.ProbabilityGivenM7, 0.5)
	assert.Less(t, r.FactorOfSafety, 1.0)
}

func TestLiquefaction_ObservedPGA(t *testing.T) {
	in := LiquefactionFeatures{
		SandPct: ptr(60), SiltPct: ptr(30), ClayPct: ptr(10),
		GroundwaterDepthM: ptr(2), DepositAgeKyr: ptr(5),
	}
	prev := -1.0
	for _, pga := range []float64{0.01, 0.05, 0.1, 0.2, 0.4, 0.8} {
		in.PGAg = ptr(pga)
		r, err := Liquefaction(in)
		require.NoError(t, err)
		assert.True(t, r.PGAAvailable)
		require.GreaterOrEqual(t, r.Probability, prev, "pga %v", pga)
		prev = r.Probability
	}
}

func TestLiquefaction_ClayResists(t *testing.T) {
	r, err := Liquefaction(LiquefactionFeatures{
		SandPct: ptr(10), SiltPct: ptr(30), ClayPct: ptr(60),
		GroundwaterDepthM: ptr(20), DepositAgeKyr: ptr(500),
	})
	require.NoError(t, err)
	assert.Equal(t, "Very Low", r.SusceptibilityClass)
	assert.Less(t, r.ProbabilityGivenM7, 0.05)
}

func TestCampbellPGA(t *testing.T) {
	assert.InDelta(t, 0.195, CampbellPGA(7, 25), 0.01)
	assert.Greater(t, CampbellPGA(7, 10), CampbellPGA(7, 50))
	assert.Greater(t, CampbellPGA(8, 25), CampbellPGA(6, 25))
}

func TestSusceptibilityClass(t *testing.T) {
	assert.Equal(t, "Very Low", SusceptibilityClass(0.149))
	assert.Equal(t, "Low", SusceptibilityClass(0.15))
	assert.Equal(t, "Moderate", SusceptibilityClass(0.3))
	assert.Equal(t, "High", SusceptibilityClass(0.5))
	assert.Equal(t, "Very High", SusceptibilityClass(0.7))
}

func TestModels_Deterministic(t *testing.T) {
	in := FloodFeatures{Latitude: 10, Longitude: 10, Rain24hMm: ptr(33)}
	a, err := Flood(in)
	require.NoError(t, err)
	b, err := Flood(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestModels_ProbabilityRangeSweep(t *testing.T) {
	for _, v := range []float64{-1000, -1, 0, 0.5, 1, 10, 100, 1e6} {
		x := ptr(v)
		l, err := Landslide(LandslideFeatures{SlopeDeg: x, SoilMoisturePct: x, ClayPct: x, Rain72hMm: x, NDVI: x, FaultDistanceKm: x})
		require.NoError(t, err)
		f, err := Flood(FloodFeatures{HeightAboveWaterM: x, SlopeDeg: x, Rain24hMm: x, Rain72hMm: x, UpstreamAreaKm2: x, AnnualPrecipMm: x})
		require.NoError(t, err)
		w, err := Wildfire(WildfireFeatures{TemperatureC: x, HumidityPct: x, WindSpeedKmh: x, KBDI: x})
		require.NoError(t, err)
		q, err := Liquefaction(LiquefactionFeatures{SandPct: x, ClayPct: x, GroundwaterDepthM: x, PGAg: x})
		require.NoError(t, err)

		for _, p := range []float64{l.Probability, f.Probability, w.Probability, q.Probability, q.ProbabilityGivenM7} {
			assert.GreaterOrEqual(t, p, 0.0, "input %v", v)
			assert.LessOrEqual(t, p, 1.0, "input %v", v)
		}
	}
}

func TestModels_LevelMatchesReportedProbability(t *testing.T) {
	mismatch := func(model string, x float64, r domain.HazardResult) {
		t.Helper()
		assert.Equal(t, domain.LevelForProbability(r.Probability), r.Level,
			"%s at %.2f: reported probability %v", model, x, r.Probability)
	}
	for slope := 0.0; slope <= 60; slope += 0.01 {
		r, err := Landslide(LandslideFeatures{SlopeDeg: ptr(slope)})
		require.NoError(t, err)
		mismatch("landslide", slope, r.HazardResult)
	}
	for rain := 0.0; rain <= 400; rain += 0.1 {
		r, err := Flood(FloodFeatures{Rain24hMm: ptr(rain / 3), Rain72hMm: ptr(rain)})
		require.NoError(t, err)
		mismatch("flood", rain, r.HazardResult)
	}
	for rh := 0.0; rh <= 100; rh += 0.05 {
		r, err := Wildfire(WildfireFeatures{HumidityPct: ptr(rh)})
		require.NoError(t, err)
		mismatch("wildfire", rh, r.HazardResult)
	}
	for gw := 0.0; gw <= 30; gw += 0.01 {
		r, err := Liquefaction(LiquefactionFeatures{GroundwaterDepthM: ptr(gw)})
		require.NoError(t, err)
		mismatch("liquefaction", gw, r.HazardResult)
	}
}
