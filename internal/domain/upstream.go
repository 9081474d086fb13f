package domain

import "time"

// Weather is the current conditions record from the weather fetcher.
// Pointer fields are nil when upstream omitted them.
type Weather struct {
	TemperatureC    *float64  `json:"temperature_c,omitempty"`
	HumidityPct     *float64  `json:"humidity_pct,omitempty"`
	WindSpeedKmh    *float64  `json:"wind_speed_kmh,omitempty"`
	PrecipitationMm *float64  `json:"precipitation_mm,omitempty"`
	Rain24hMm       *float64  `json:"rain_24h_mm,omitempty"`
	Rain48hMm       *float64  `json:"rain_48h_mm,omitempty"`
	Rain72hMm       *float64  `json:"rain_72h_mm,omitempty"`
	Rain7dMm        *float64  `json:"rain_7d_mm,omitempty"`
	DaysSinceRain   *int      `json:"days_since_rain,omitempty"`
	ElevationM      *float64  `json:"elevation_m,omitempty"`
	ObservedAt      time.Time `json:"observed_at"`
}

// SoilMoisture averages volumetric soil moisture over the top layers.
type SoilMoisture struct {
	AveragePct *float64           `json:"average_pct,omitempty"`
	Layers     map[string]float64 `json:"layers,omitempty"`
}

// ClimateNormals summarizes the trailing year of daily observations.
type ClimateNormals struct {
	MeanAnnualTempC    *float64 `json:"mean_annual_temp_c,omitempty"`
	MeanAnnualPrecipMm *float64 `json:"mean_annual_precip_mm,omitempty"`
}

// SoilGridsRecord holds SoilGrids v2.0 means for one depth band, already
// converted from mapped units to conventional ones.
type SoilGridsRecord struct {
	Depth            string   `json:"depth"`
	PH               *float64 `json:"ph,omitempty"`
	OrganicCarbonPct *float64 `json:"organic_carbon_pct,omitempty"`
	NitrogenPct      *float64 `json:"nitrogen_pct,omitempty"`
	SandPct          *float64 `json:"sand_pct,omitempty"`
	SiltPct          *float64 `json:"silt_pct,omitempty"`
	ClayPct          *float64 `json:"clay_pct,omitempty"`
	BulkDensityGcm3  *float64 `json:"bulk_density_gcm3,omitempty"`
	CECCmolkg        *float64 `json:"cec_cmolkg,omitempty"`
}

// SoilGridsProfile maps a depth label ("0-5cm") to its record.
type SoilGridsProfile map[string]SoilGridsRecord

// Empty reports whether no depth carried any value, which SoilGrids returns
// for ocean and masked cells.
func (p SoilGridsProfile) Empty() bool {
	for _, r := range p {
		if r.PH != nil || r.OrganicCarbonPct != nil || r.SandPct != nil || r.ClayPct != nil ||
			r.SiltPct != nil || r.NitrogenPct != nil || r.CECCmolkg != nil || r.BulkDensityGcm3 != nil {
			return false
		}
	}
	return true
}

// EarthquakeQuery selects events. A zero RadiusKm queries worldwide.
type EarthquakeQuery struct {
	Since        time.Time
	Until        time.Time
	MinMagnitude float64
	Limit        int
	Latitude     float64
	Longitude    float64
	RadiusKm     float64
}

// EarthquakeEvent is an upstream-assigned seismic event. Immutable once fetched.
type EarthquakeEvent struct {
	EventID       string    `json:"event_id"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	DepthKm       float64   `json:"depth_km"`
	Magnitude     float64   `json:"magnitude"`
	MagnitudeType string    `json:"magnitude_type"`
	Place         string    `json:"place"`
	EventTime     time.Time `json:"event_time"`
	Felt          *int      `json:"felt,omitempty"`
	Tsunami       bool      `json:"tsunami"`
	Significance  int       `json:"significance"`
	URL           string    `json:"url,omitempty"`
}

// Float returns a pointer to v, for building records with optional fields.
func Float(v float64) *float64 { return &v }
