package soil

import (
	"math"

	"github.com/couchcryptid/geohazard-service/internal/domain"
)

// carbonCeiling is the attainable SOC stock (t/ha, top 30 cm) per climate
// zone and texture group. Fine soils stabilize more organic matter.
var carbonCeiling = map[domain.ClimateZone]map[string]float64{
	domain.ZoneTropical:  {"coarse": 50, "medium": 70, "fine": 90},
	domain.ZoneArid:      {"coarse": 20, "medium": 30, "fine": 40},
	domain.ZoneTemperate: {"coarse": 60, "medium": 85, "fine": 110},
	domain.ZoneBoreal:    {"coarse": 90, "medium": 120, "fine": 150},
}

// managementFactors scale how much of the gap to the ceiling a land cover
// can realistically close.
var managementFactors = map[domain.LandCover]float64{
	domain.LandCoverForest:    1.0,
	domain.LandCoverGrassland: 0.9,
	domain.LandCoverWetland:   0.9,
	domain.LandCoverShrubland: 0.8,
	domain.LandCoverCropland:  0.5,
	domain.LandCoverUrban:     0.3,
	domain.LandCoverBare:      0.2,
	domain.LandCoverWater:     0.2,
}

const (
	carbonDepthCm      = 30.0
	carbonHorizonYears = 20.0
)

// Carbon estimates current and attainable soil organic carbon stocks.
func Carbon(p domain.SoilProperties, zone domain.ClimateZone, lc domain.LandCover) domain.CarbonSequestration {
	current := p.OrganicCarbonPct * p.BulkDensityGcm3 * carbonDepthCm

	ceiling := carbonCeiling[domain.ZoneTemperate]["medium"]
	if row, ok := carbonCeiling[zone]; ok {
		ceiling = row[textureGroup(p.Texture.Class)]
	}
	potential := math.Max(current, ceiling)

	mgmt, ok := managementFactors[lc]
	if !ok {
		mgmt = 0.6
	}

	improvement := 0.0
	if current > 0 {
		improvement = (potential - current) / current * 100
	}
	return domain.CarbonSequestration{
		CurrentStockTonsHa:      round(current, 1),
		PotentialStockTonsHa:    round(potential, 1),
		ImprovementPotentialPct: round(improvement, 1),
		AnnualRateTonsHaYr:      round((potential-current)/carbonHorizonYears*mgmt, 2),
		ManagementFactor:        mgmt,
	}
}
