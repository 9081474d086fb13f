// Package soil derives soil properties, health, erosion and carbon estimates
// from SoilGrids, Open-Meteo and climatological inputs.
package soil

import "github.com/couchcryptid/geohazard-service/internal/domain"

// Input is everything a soil analysis needs. Nil upstream records mean the
// fetch failed; the model substitutes regional defaults and flags the report
// as degraded.
type Input struct {
	Location  domain.Location
	Depth     Depth
	LandCover domain.LandCover
	SoilGrids *domain.SoilGridsRecord
	Moisture  *domain.SoilMoisture
	Climate   *domain.ClimateNormals
	NDVI      *float64
	SlopeDeg  *float64
	Practice  string
}

// Model holds the calibration constants for a soil analysis.
type Model struct {
	Erosion      ErosionCoefficients
	SlopeLengthM float64
}

// NewModel returns a Model with default coefficients and a 100 m slope length.
func NewModel() *Model {
	return &Model{Erosion: DefaultErosionCoefficients, SlopeLengthM: 100}
}

// Analyze runs gap filling, erosion, health and carbon in order. It never
// fails: missing data degrades to defaults.
func (m *Model) Analyze(in Input) domain.SoilReport {
	loc := in.Location
	degraded := in.SoilGrids == nil || in.Climate == nil || in.Moisture == nil || in.Moisture.AveragePct == nil

	climate := ResolveClimate(loc.Latitude, in.Climate)

	elevation := EstimateElevation(loc.Latitude, loc.Longitude)
	if loc.ElevationM != nil {
		elevation = *loc.ElevationM
	} else {
		loc.ElevationM = domain.Float(round(elevation, 1))
	}
	if loc.Region == "" {
		loc.Region = RegionName(loc.Latitude)
	}

	slope := EstimateSlope(elevation)
	if in.SlopeDeg != nil {
		slope = *in.SlopeDeg
	}
	ndvi := EstimateNDVI(in.LandCover, climate.MeanAnnualTempC, climate.MeanAnnualPrecipMm)
	if in.NDVI != nil {
		ndvi = clamp(*in.NDVI, -1, 1)
	}

	var moisture *float64
	if in.Moisture != nil {
		moisture = in.Moisture.AveragePct
	}
	depth := in.Depth
	if depth == "" {
		depth = Depth0to5
	}

	props := GapFill(GapFillInput{
		Record:      in.SoilGrids,
		MoisturePct: moisture,
		Depth:       depth,
		LandCover:   in.LandCover,
		Latitude:    loc.Latitude,
		ElevationM:  elevation,
		TempC:       climate.MeanAnnualTempC,
		PrecipMm:    climate.MeanAnnualPrecipMm,
	})

	erosion := m.Erosion.Erosion(ErosionInput{
		AnnualPrecipMm:   climate.MeanAnnualPrecipMm,
		SandPct:          props.Texture.SandPct,
		SiltPct:          props.Texture.SiltPct,
		ClayPct:          props.Texture.ClayPct,
		OrganicCarbonPct: props.OrganicCarbonPct,
		SlopeDeg:         slope,
		SlopeLengthM:     m.SlopeLengthM,
		NDVI:             ndvi,
		Practice:         in.Practice,
	})

	return domain.SoilReport{
		Location:   loc,
		Properties: props,
		Health:     Health(props),
		Erosion:    erosion,
		Carbon:     Carbon(props, climate.Zone, in.LandCover),
		Climate:    climate,
		Metadata: domain.SoilMetadata{
			NDVI:         round(ndvi, 3),
			SlopeDegrees: round(slope, 1),
			LandCover:    in.LandCover,
		},
		Degraded:  degraded,
		Timestamp: domain.Now(),
	}
}

// ResolveClimate fills missing climate normals from the latitude band table.
func ResolveClimate(lat float64, normals *domain.ClimateNormals) domain.ClimateSummary {
	temp, precip := DefaultClimate(lat)
	estimated := true
	if normals != nil {
		if normals.MeanAnnualTempC != nil && normals.MeanAnnualPrecipMm != nil {
			estimated = false
		}
		if normals.MeanAnnualTempC != nil {
			temp = *normals.MeanAnnualTempC
		}
		if normals.MeanAnnualPrecipMm != nil {
			precip = *normals.MeanAnnualPrecipMm
		}
	}
	return domain.ClimateSummary{
		MeanAnnualTempC:    round(temp, 1),
		MeanAnnualPrecipMm: round(precip, 0),
		Zone:               ZoneFor(lat, temp, precip),
		Estimated:          estimated,
	}
}
