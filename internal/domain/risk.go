package domain

import "time"

// Level is a discrete risk band shared by every hazard model and the
// composite score.
type Level string

const (
	LevelVeryLow  Level = "Very Low"
	LevelLow      Level = "Low"
	LevelModerate Level = "Moderate"
	LevelHigh     Level = "High"
	LevelCritical Level = "Critical"
	LevelUnknown  Level = "Unknown"
)

// levelCuts are the lower bounds of each band on a [0,1] probability.
var levelCuts = []struct {
	min   float64
	level Level
}{
	{0.80, LevelCritical},
	{0.60, LevelHigh},
	{0.40, LevelModerate},
	{0.20, LevelLow},
}

// HighThreshold is the probability at which a hazard becomes alertable.
const HighThreshold = 0.60

// LevelForProbability maps p in [0,1] onto a Level. Non-decreasing in p.
func LevelForProbability(p float64) Level {
	for _, c := range levelCuts {
		if p >= c.min {
			return c.level
		}
	}
	return LevelVeryLow
}

// LevelForScore maps a 0-100 composite score onto the same bands.
func LevelForScore(score int) Level {
	return LevelForProbability(float64(score) / 100)
}

// Rank orders levels for sorting and comparisons; Unknown ranks lowest.
func (l Level) Rank() int {
	switch l {
	case LevelVeryLow:
		return 1
	case LevelLow:
		return 2
	case LevelModerate:
		return 3
	case LevelHigh:
		return 4
	case LevelCritical:
		return 5
	default:
		return 0
	}
}

// HazardResult is the common output of every risk model.
type HazardResult struct {
	Probability float64            `json:"probability"`
	Level       Level              `json:"risk_level"`
	Factors     map[string]float64 `json:"contributing_factors"`
	Defaulted   []string           `json:"defaulted_factors,omitempty"`
}

type LandslideResult struct {
	HazardResult
	RegionalMultiplier float64 `json:"regional_multiplier"`
}

type FloodResult struct {
	HazardResult
	ReturnPeriodYears  float64 `json:"return_period_years"`
	InundationDepthM   float64 `json:"max_inundation_depth_m"`
	RegionalMultiplier float64 `json:"regional_multiplier"`
}

type WildfireResult struct {
	HazardResult
	FireWeatherIndex       float64 `json:"fire_weather_index"`
	VegetationDrynessIndex float64 `json:"vegetation_dryness_index"`
	SpreadPotential        string  `json:"spread_potential"`
}

type LiquefactionResult struct {
	HazardResult
	SusceptibilityScore float64 `json:"susceptibility_score"`
	SusceptibilityClass string  `json:"susceptibility"`
	ProbabilityGivenM7  float64 `json:"probability_given_m7"`
	PGAAvailable        bool    `json:"pga_available"`
	FactorOfSafety      float64 `json:"factor_of_safety"`
}

// Risks groups the four hazard results.
type Risks struct {
	Landslide    LandslideResult    `json:"landslide"`
	Flood        FloodResult        `json:"flood"`
	Wildfire     WildfireResult     `json:"wildfire"`
	Liquefaction LiquefactionResult `json:"liquefaction"`
}

// CurrentConditions echoes the weather inputs the assessment used.
type CurrentConditions struct {
	TemperatureC    float64 `json:"temperature_c"`
	HumidityPct     float64 `json:"humidity_pct"`
	WindSpeedKmh    float64 `json:"wind_speed_kmh"`
	PrecipitationMm float64 `json:"precipitation_mm"`
	SoilMoisturePct float64 `json:"soil_moisture_pct"`
	Estimated       bool    `json:"estimated"`
}

// SourceStatus reports how one upstream contributed to a response.
type SourceStatus string

const (
	SourceLive      SourceStatus = "live"
	SourceCached    SourceStatus = "cached"
	SourceEstimated SourceStatus = "estimated"
)

// RiskAssessment is computed per request and never stored beyond the cache TTL.
type RiskAssessment struct {
	Location           Location                `json:"location"`
	Risks              Risks                   `json:"risks"`
	CompositeRiskScore int                     `json:"composite_risk_score"`
	CompositeRiskLevel Level                   `json:"composite_risk_level"`
	CurrentConditions  CurrentConditions       `json:"current_conditions"`
	Degraded           bool                    `json:"degraded"`
	Sources            map[string]SourceStatus `json:"sources"`
	Timestamp          time.Time               `json:"timestamp"`
}
