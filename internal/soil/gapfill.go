package soil

import "github.com/couchcryptid/geohazard-service/internal/domain"

// classDefaults is the pedotransfer lookup keyed by USDA texture class:
// bulk density before organic matter correction (g/cm3), mineral CEC
// (cmol/kg), and neutral-climate pH.
var classDefaults = map[string]struct {
	bulkDensity float64
	cec         float64
	ph          float64
}{
	ClassSand:          {1.60, 3, 6.5},
	ClassLoamySand:     {1.55, 5, 6.4},
	ClassSandyLoam:     {1.50, 8, 6.3},
	ClassLoam:          {1.40, 12, 6.5},
	ClassSiltLoam:      {1.35, 14, 6.6},
	ClassSilt:          {1.35, 12, 6.8},
	ClassSandyClayLoam: {1.45, 16, 6.4},
	ClassClayLoam:      {1.35, 20, 6.6},
	ClassSiltyClayLoam: {1.30, 22, 6.7},
	ClassSandyClay:     {1.40, 24, 6.5},
	ClassSiltyClay:     {1.25, 28, 6.8},
	ClassClay:          {1.20, 30, 6.9},
}

// coverOrganicCarbon is topsoil organic carbon (%) by land cover.
var coverOrganicCarbon = map[domain.LandCover]float64{
	domain.LandCoverForest:    3.5,
	domain.LandCoverGrassland: 2.5,
	domain.LandCoverWetland:   6.0,
	domain.LandCoverCropland:  1.5,
	domain.LandCoverShrubland: 1.2,
	domain.LandCoverUrban:     1.0,
	domain.LandCoverBare:      0.4,
	domain.LandCoverWater:     1.0,
}

// GapFillInput carries everything the pedotransfer estimates may need.
type GapFillInput struct {
	Record      *domain.SoilGridsRecord
	MoisturePct *float64
	Depth       Depth
	LandCover   domain.LandCover
	Latitude    float64
	ElevationM  float64
	TempC       float64
	PrecipMm    float64
}

// GapFill turns a possibly partial SoilGrids record into complete properties.
// Texture and organic carbon are estimated first from climate and cover, then
// the remaining fields come from the texture-class table adjusted for organic
// carbon. Every substituted field is listed in Estimated.
func GapFill(in GapFillInput) domain.SoilProperties {
	rec := in.Record
	if rec == nil {
		rec = &domain.SoilGridsRecord{}
	}
	var estimated []string
	pick := func(name string, v *float64, fallback func() float64) float64 {
		if v != nil {
			return *v
		}
		estimated = append(estimated, name)
		return fallback()
	}

	estSand, estSilt, estClay := estimateTexture(in.Latitude, in.ElevationM, in.PrecipMm)
	sand := pick("sand_pct", rec.SandPct, func() float64 { return estSand })
	silt := pick("silt_pct", rec.SiltPct, func() float64 { return estSilt })
	clay := pick("clay_pct", rec.ClayPct, func() float64 { return estClay })
	sand, silt, clay = normalizeTexture(sand, silt, clay)
	class := ClassifyTexture(sand, silt, clay)
	row, ok := classDefaults[class]
	if !ok {
		row = classDefaults[ClassLoam]
	}

	oc := pick("organic_carbon_pct", rec.OrganicCarbonPct, func() float64 {
		return estimateOrganicCarbon(in.LandCover, in.TempC, in.PrecipMm) * in.Depth.organicCarbonDepthFactor()
	})
	oc = clamp(oc, 0, 60)

	props := domain.SoilProperties{
		Depth:            string(in.Depth),
		OrganicCarbonPct: round(oc, 2),
		Texture: domain.Texture{
			SandPct: round(sand, 1),
			SiltPct: round(silt, 1),
			ClayPct: round(clay, 1),
			Class:   class,
		},
	}
	props.PH = round(clamp(pick("ph", rec.PH, func() float64 {
		return row.ph + aridityPHShift(in.PrecipMm)
	}), 3, 10), 2)
	props.NitrogenPct = round(clamp(pick("nitrogen_pct", rec.NitrogenPct, func() float64 {
		return oc * 0.1
	}), 0, 5), 3)
	props.CECCmolkg = round(clamp(pick("cec_cmolkg", rec.CECCmolkg, func() float64 {
		return row.cec + oc*3.5
	}), 0, 150), 1)
	props.BulkDensityGcm3 = round(clamp(pick("bulk_density_gcm3", rec.BulkDensityGcm3, func() float64 {
		return row.bulkDensity - oc*0.08
	}), 0.9, 1.8), 2)
	props.MoisturePct = round(clamp(pick("moisture_pct", in.MoisturePct, func() float64 {
		return EstimateMoisture(in.PrecipMm)
	}), 0, 100), 1)

	props.Estimated = estimated
	return props
}

// estimateTexture returns sand, silt, clay percentages from latitude,
// elevation and rainfall.
func estimateTexture(lat, elevationM, precipMm float64) (sand, silt, clay float64) {
	absLat := lat
	if absLat < 0 {
		absLat = -absLat
	}
	sand, silt, clay = 40, 40, 20
	switch {
	case precipMm < 400:
		sand, silt, clay = 65, 25, 10
	case absLat < 15 && precipMm > 1500:
		sand, silt, clay = 30, 30, 40
	case absLat > 55:
		sand, silt, clay = 40, 45, 15
	}
	if elevationM > 1500 {
		sand += 10
		clay -= 5
		silt -= 5
	}
	return sand, silt, clay
}

func estimateOrganicCarbon(lc domain.LandCover, tempC, precipMm float64) float64 {
	oc, ok := coverOrganicCarbon[lc]
	if !ok {
		oc = 1.5
	}
	if precipMm < 400 {
		oc *= 0.5
	}
	switch {
	case tempC > 25:
		oc *= 0.8
	case tempC < 5:
		oc *= 1.3
	}
	return oc
}

// aridityPHShift: leached humid soils are acidic, arid soils calcareous.
func aridityPHShift(precipMm float64) float64 {
	switch {
	case precipMm > 1500:
		return -0.8
	case precipMm < 400:
		return 0.8
	default:
		return 0
	}
}

func normalizeTexture(sand, silt, clay float64) (float64, float64, float64) {
	sand, silt, clay = clamp(sand, 0, 100), clamp(silt, 0, 100), clamp(clay, 0, 100)
	total := sand + silt + clay
	if total <= 0 {
		return 40, 40, 20
	}
	return sand * 100 / total, silt * 100 / total, clay * 100 / total
}
