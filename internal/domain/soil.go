package domain

import "time"

// Texture holds the particle size fractions and USDA texture class.
type Texture struct {
	SandPct float64 `json:"sand_pct"`
	SiltPct float64 `json:"silt_pct"`
	ClayPct float64 `json:"clay_pct"`
	Class   string  `json:"classification"`
}

// SoilProperties are the corrected properties for one depth band. Estimated
// lists every field that came from a pedotransfer estimate instead of upstream.
type SoilProperties struct {
	Depth            string   `json:"depth"`
	PH               float64  `json:"ph"`
	OrganicCarbonPct float64  `json:"organic_carbon_pct"`
	NitrogenPct      float64  `json:"nitrogen_pct"`
	MoisturePct      float64  `json:"moisture_pct"`
	Texture          Texture  `json:"texture"`
	BulkDensityGcm3  float64  `json:"bulk_density_gcm3"`
	CECCmolkg        float64  `json:"cec_cmolkg"`
	Estimated        []string `json:"estimated,omitempty"`
}

// HealthIndex is the 0-100 soil health composite.
type HealthIndex struct {
	Score     int                `json:"score"`
	Grade     string             `json:"grade"`
	Category  string             `json:"category"`
	SubScores map[string]float64 `json:"sub_scores"`
}

// ErosionFactors are the five RUSLE terms.
type ErosionFactors struct {
	R  float64 `json:"R"`
	K  float64 `json:"K"`
	LS float64 `json:"LS"`
	C  float64 `json:"C"`
	P  float64 `json:"P"`
}

// ErosionRisk is the RUSLE soil loss estimate.
type ErosionRisk struct {
	RUSLETonsHaYr float64        `json:"rusle_tons_ha_yr"`
	RiskLevel     string         `json:"risk_level"`
	Factors       ErosionFactors `json:"factors"`
}

// CarbonSequestration estimates soil organic carbon stock in the top 30 cm.
type CarbonSequestration struct {
	CurrentStockTonsHa      float64 `json:"current_stock_tons_ha"`
	PotentialStockTonsHa    float64 `json:"potential_stock_tons_ha"`
	ImprovementPotentialPct float64 `json:"improvement_potential_pct"`
	AnnualRateTonsHaYr      float64 `json:"annual_rate_tons_ha_yr"`
	ManagementFactor        float64 `json:"management_factor"`
}

// ClimateZone is a coarse Koppen-style grouping used by the carbon ceiling
// table and the recommendation engine.
type ClimateZone string

const (
	ZoneTropical  ClimateZone = "tropical"
	ZoneArid      ClimateZone = "arid"
	ZoneTemperate ClimateZone = "temperate"
	ZoneBoreal    ClimateZone = "boreal"
)

// ClimateSummary is the climate context a soil report was computed with.
type ClimateSummary struct {
	MeanAnnualTempC    float64     `json:"mean_annual_temp_c"`
	MeanAnnualPrecipMm float64     `json:"mean_annual_precip_mm"`
	Zone               ClimateZone `json:"zone"`
	Estimated          bool        `json:"estimated"`
}

// SoilMetadata records the terrain and cover inputs the soil models used.
type SoilMetadata struct {
	NDVI         float64   `json:"ndvi"`
	SlopeDegrees float64   `json:"slope_degrees"`
	LandCover    LandCover `json:"land_cover"`
}

// SoilReport is the complete soil analysis for one location and depth.
type SoilReport struct {
	Location   Location                `json:"location"`
	Properties SoilProperties          `json:"soil_properties"`
	Health     HealthIndex             `json:"health_index"`
	Erosion    ErosionRisk             `json:"erosion_risk"`
	Carbon     CarbonSequestration     `json:"carbon_sequestration"`
	Climate    ClimateSummary          `json:"climate"`
	Metadata   SoilMetadata            `json:"metadata"`
	Degraded   bool                    `json:"degraded"`
	Sources    map[string]SourceStatus `json:"sources"`
	Timestamp  time.Time               `json:"timestamp"`
}
