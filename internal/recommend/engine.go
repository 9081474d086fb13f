// Package recommend derives agronomic, preparedness and restoration advice
// from a soil report and a risk assessment. Everything here is a pure
// function of its inputs.
package recommend

import (
	"fmt"

	"github.com/couchcryptid/geohazard-service/internal/domain"
	"github.com/couchcryptid/geohazard-service/internal/soil"
)

// CropSuitability is one crop's fit to the site on a 0-100 scale.
type CropSuitability struct {
	Crop            string   `json:"crop"`
	Score           int      `json:"suitability_score"`
	Suitability     string   `json:"suitability"`
	LimitingFactors []string `json:"limiting_factors,omitempty"`
}

// NutrientStatus is the fertilizer verdict for one soil parameter.
type NutrientStatus struct {
	Nutrient           string  `json:"nutrient"`
	Value              float64 `json:"value"`
	Status             string  `json:"status"`
	Recommendation     string  `json:"recommendation"`
	OrganicAlternative string  `json:"organic_alternative,omitempty"`
}

// IrrigationSchedule is a watering plan for the current moisture state.
type IrrigationSchedule struct {
	IntervalDays          int     `json:"interval_days"`
	DepthMmPerApplication float64 `json:"depth_mm_per_application"`
	Urgency               string  `json:"urgency"`
	Method                string  `json:"method"`
	WaterHoldingCapacity  string  `json:"water_holding_capacity"`
}

// PreparednessAction lists concrete steps for one hazard.
type PreparednessAction struct {
	Hazard   string   `json:"hazard"`
	Priority string   `json:"priority"`
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Actions  []string `json:"actions"`
}

// RestorationAction is an environmental improvement suggestion.
type RestorationAction struct {
	Category              string   `json:"category"`
	Priority              string   `json:"priority"`
	Description           string   `json:"description"`
	Practices             []string `json:"practices"`
	ExpectedCarbonGainTHa float64  `json:"expected_carbon_gain_tons_ha,omitempty"`
}

// Recommendations is the full advice bundle for one location.
type Recommendations struct {
	Crops             []CropSuitability    `json:"crops"`
	Fertilizer        []NutrientStatus     `json:"fertilizer"`
	Irrigation        IrrigationSchedule   `json:"irrigation"`
	Preparedness      []PreparednessAction `json:"preparedness"`
	PreparednessLevel string               `json:"preparedness_level"`
	Restoration       []RestorationAction  `json:"restoration"`
}

// Recommend builds advice from a soil report and a risk assessment.
func Recommend(s domain.SoilReport, r domain.RiskAssessment) Recommendations {
	p := s.Properties
	return Recommendations{
		Crops:             rankCrops(p.PH, p.OrganicCarbonPct, p.NitrogenPct, p.MoisturePct, s.Climate.MeanAnnualTempC, p.Texture.Class),
		Fertilizer:        fertilizer(p),
		Irrigation:        irrigation(p.MoisturePct, p.Texture.Class, s.Climate),
		Preparedness:      preparedness(r),
		PreparednessLevel: PreparednessLevel(r.CompositeRiskScore),
		Restoration:       restoration(s),
	}
}

func fertilizer(p domain.SoilProperties) []NutrientStatus {
	out := make([]NutrientStatus, 0, 3)

	n := NutrientStatus{Nutrient: "nitrogen", Value: p.NitrogenPct}
	switch {
	case p.NitrogenPct < 0.1:
		n.Status = "Deficient"
		n.Recommendation = "Apply 120-150 kg N/ha as urea or ammonium nitrate, split across the season"
		n.OrganicAlternative = "Green manure, legume rotation or compost"
	case p.NitrogenPct < 0.2:
		n.Status = "Low"
		n.Recommendation = "Apply 80-100 kg N/ha"
		n.OrganicAlternative = "Cover crops and residue incorporation"
	default:
		n.Status = "Adequate"
		n.Recommendation = "Maintenance only: balanced NPK at crop removal rates"
	}
	out = append(out, n)

	oc := NutrientStatus{Nutrient: "organic_carbon", Value: p.OrganicCarbonPct}
	switch {
	case p.OrganicCarbonPct < 1.0:
		oc.Status = "Very Low"
		oc.Recommendation = "Add 5-10 t/ha compost or well-rotted manure"
		oc.OrganicAlternative = "Mulching, cover crops and reduced tillage"
	case p.OrganicCarbonPct < 2.0:
		oc.Status = "Low"
		oc.Recommendation = "Add 3-5 t/ha compost annually"
		oc.OrganicAlternative = "Retain crop residues"
	default:
		oc.Status = "Adequate"
		oc.Recommendation = "Keep residues on the field to hold current levels"
	}
	out = append(out, oc)

	ph := NutrientStatus{Nutrient: "ph", Value: p.PH}
	switch {
	case p.PH < 5.5:
		ph.Status = "Acidic"
		ph.Recommendation = fmt.Sprintf("Apply agricultural lime to raise pH from %.1f to 6.0-6.5", p.PH)
		ph.OrganicAlternative = "Wood ash or dolomitic lime"
	case p.PH > 8.0:
		ph.Status = "Alkaline"
		ph.Recommendation = fmt.Sprintf("Apply elemental sulfur to lower pH from %.1f to 7.0-7.5", p.PH)
		ph.OrganicAlternative = "Acidifying organic mulch"
	default:
		ph.Status = "Adequate"
		ph.Recommendation = "No pH correction needed"
	}
	return append(out, ph)
}

func irrigation(moisturePct float64, texture string, climate domain.ClimateSummary) IrrigationSchedule {
	var sch IrrigationSchedule
	switch {
	case moisturePct < 15:
		sch.IntervalDays, sch.DepthMmPerApplication, sch.Urgency = 1, 27.5, "High"
	case moisturePct < 25:
		sch.IntervalDays, sch.DepthMmPerApplication, sch.Urgency = 2, 22.5, "Moderate"
	case moisturePct < 40:
		sch.IntervalDays, sch.DepthMmPerApplication, sch.Urgency = 4, 17.5, "Low"
	default:
		sch.IntervalDays, sch.DepthMmPerApplication, sch.Urgency = 6, 12.5, "Very Low"
	}

	switch climate.Zone {
	case domain.ZoneArid:
		sch.IntervalDays = max(1, sch.IntervalDays-1)
		sch.DepthMmPerApplication *= 1.2
	case domain.ZoneTropical:
		sch.DepthMmPerApplication *= 1.1
	case domain.ZoneBoreal:
		sch.IntervalDays++
		sch.DepthMmPerApplication *= 0.8
	}
	sch.DepthMmPerApplication = float64(int(sch.DepthMmPerApplication*10+0.5)) / 10

	sch.Method = "sprinkler"
	if climate.Zone == domain.ZoneArid || climate.MeanAnnualTempC > 30 {
		sch.Method = "drip"
	}

	switch texture {
	case soil.ClassSand, soil.ClassLoamySand:
		sch.WaterHoldingCapacity = "Low"
	case soil.ClassSandyLoam:
		sch.WaterHoldingCapacity = "Medium-Low"
	case soil.ClassClay, soil.ClassSiltyClay:
		sch.WaterHoldingCapacity = "High"
	case soil.ClassSiltLoam, soil.ClassSilt, soil.ClassClayLoam, soil.ClassSiltyClayLoam:
		sch.WaterHoldingCapacity = "Medium-High"
	default:
		sch.WaterHoldingCapacity = "Medium"
	}
	return sch
}

var hazardActions = map[string]struct {
	title   string
	actions []string
}{
	domain.AlertTypeLandslide: {"Landslide risk mitigation", []string{
		"Avoid new construction on slopes steeper than 25 degrees",
		"Plant deep-rooted vegetation to stabilize slopes",
		"Install drainage to keep water out of the slope",
		"Watch for ground cracks and tilting trees or poles",
		"Agree an evacuation route for downslope households",
	}},
	domain.AlertTypeFlood: {"Flood preparedness", []string{
		"Raise electrical systems and appliances above expected flood depth",
		"Stage sandbags or flood barriers for critical openings",
		"Keep drains and waterways clear",
		"Store documents in waterproof containers",
		"Know evacuation routes and shelter locations",
	}},
	domain.AlertTypeWildfire: {"Wildfire risk management", []string{
		"Clear vegetation for 30 m around structures",
		"Use fire-resistant roofing and vents",
		"Maintain fire breaks around the property",
		"Prepare an evacuation plan and go-bag",
		"Report unattended fires immediately",
	}},
	domain.AlertTypeLiquefaction: {"Liquefaction risk reduction", []string{
		"Use deep foundations for new construction",
		"Densify soil by compaction or grouting before building",
		"Commission a geotechnical survey before heavy construction",
		"Secure gas and water connections with flexible joints",
	}},
}

func preparedness(r domain.RiskAssessment) []PreparednessAction {
	levels := []struct {
		hazard string
		p      float64
		level  domain.Level
	}{
		{domain.AlertTypeLandslide, r.Risks.Landslide.Probability, r.Risks.Landslide.Level},
		{domain.AlertTypeFlood, r.Risks.Flood.Probability, r.Risks.Flood.Level},
		{domain.AlertTypeWildfire, r.Risks.Wildfire.Probability, r.Risks.Wildfire.Level},
		{domain.AlertTypeLiquefaction, r.Risks.Liquefaction.Probability, r.Risks.Liquefaction.Level},
	}

	var out []PreparednessAction
	for _, h := range levels {
		if h.level.Rank() < domain.LevelHigh.Rank() {
			continue
		}
		priority := "high"
		if h.level == domain.LevelCritical {
			priority = "urgent"
		}
		a := hazardActions[h.hazard]
		out = append(out, PreparednessAction{
			Hazard:   h.hazard,
			Priority: priority,
			Title:    a.title,
			Summary:  fmt.Sprintf("%s probability %.0f%% (%s)", h.hazard, h.p*100, h.level),
			Actions:  a.actions,
		})
	}
	if len(out) == 0 {
		out = append(out, PreparednessAction{
			Hazard:   "general",
			Priority: "low",
			Title:    "Standard preparedness",
			Summary:  "No hazard is at High or above",
			Actions: []string{
				"Keep an emergency kit with 72 hours of supplies",
				"Know local emergency contacts and evacuation routes",
				"Subscribe to weather and hazard alerts",
			},
		})
	}
	return out
}

// PreparednessLevel maps the composite score onto a preparedness posture.
func PreparednessLevel(score int) string {
	switch {
	case score < 20:
		return "Standard"
	case score < 40:
		return "Enhanced"
	case score < 60:
		return "Elevated"
	case score < 80:
		return "High"
	default:
		return "Maximum"
	}
}

func restoration(s domain.SoilReport) []RestorationAction {
	var out []RestorationAction

	switch s.Erosion.RiskLevel {
	case "High", "Severe":
		out = append(out, RestorationAction{
			Category:    "erosion_control",
			Priority:    "high",
			Description: fmt.Sprintf("Estimated soil loss of %.1f t/ha/yr is %s.", s.Erosion.RUSLETonsHaYr, s.Erosion.RiskLevel),
			Practices:   []string{"Terracing or contour bunds", "Permanent cover crops", "Windbreaks and hedgerows", "Grassed waterways"},
		})
	case "Moderate":
		out = append(out, RestorationAction{
			Category:    "erosion_control",
			Priority:    "medium",
			Description: fmt.Sprintf("Estimated soil loss of %.1f t/ha/yr is moderate.", s.Erosion.RUSLETonsHaYr),
			Practices:   []string{"Cover crops between seasons", "Mulching", "Contour tillage"},
		})
	}

	gain := s.Carbon.PotentialStockTonsHa - s.Carbon.CurrentStockTonsHa
	if s.Properties.OrganicCarbonPct < 2 || s.Carbon.ImprovementPotentialPct > 30 {
		out = append(out, RestorationAction{
			Category:              "carbon_sequestration",
			Priority:              "medium",
			Description:           fmt.Sprintf("Soil carbon could rise by %.0f%% toward the regional ceiling.", s.Carbon.ImprovementPotentialPct),
			Practices:             []string{"No-till or reduced tillage", "Cover cropping", "Compost and organic amendments", "Agroforestry"},
			ExpectedCarbonGainTHa: gain,
		})
	}

	lc := s.Metadata.LandCover
	if (lc == domain.LandCoverBare || lc == domain.LandCoverCropland || lc == domain.LandCoverGrassland) && s.Metadata.NDVI < 0.4 {
		out = append(out, RestorationAction{
			Category:              "reforestation",
			Priority:              "medium",
			Description:           "Low vegetation cover; native tree planting would stabilize soil and store carbon.",
			Practices:             treeSpecies(s.Climate.MeanAnnualTempC),
			ExpectedCarbonGainTHa: gain,
		})
	}

	if lc == domain.LandCoverWetland {
		out = append(out, RestorationAction{
			Category:    "wetland_conservation",
			Priority:    "medium",
			Description: "Wetland soils hold large carbon stocks; keep them saturated.",
			Practices:   []string{"Avoid drainage", "Restore natural hydrology", "Buffer strips against runoff"},
		})
	}

	if s.Health.Score < 50 {
		out = append(out, RestorationAction{
			Category:    "soil_remediation",
			Priority:    "high",
			Description: fmt.Sprintf("Soil health grade %s (%d/100).", s.Health.Grade, s.Health.Score),
			Practices:   remediation(s.Health.SubScores),
		})
	}
	return out
}

func treeSpecies(tempC float64) []string {
	switch {
	case tempC > 25:
		return []string{"Teak", "Mahogany", "Acacia", "Bamboo"}
	case tempC > 15:
		return []string{"Oak", "Pine", "Maple", "Walnut"}
	case tempC > 5:
		return []string{"Spruce", "Fir", "Larch", "Alder"}
	default:
		return []string{"Arctic willow", "Dwarf birch", "Black spruce"}
	}
}

// remediation suggests one practice per sub-score below 50.
func remediation(subs map[string]float64) []string {
	fixes := []struct {
		key, practice string
	}{
		{"ph", "Correct pH with lime or sulfur"},
		{"organic_carbon_pct", "Build organic matter with compost"},
		{"nitrogen_pct", "Rotate in nitrogen-fixing legumes"},
		{"moisture_pct", "Improve water management and mulching"},
		{"cec_cmolkg", "Add clay-rich amendments or biochar to raise CEC"},
		{"bulk_density_gcm3", "Relieve compaction with deep-rooted cover crops"},
	}
	var out []string
	for _, f := range fixes {
		if v, ok := subs[f.key]; ok && v < 50 {
			out = append(out, f.practice)
		}
	}
	if len(out) == 0 {
		out = append(out, "Combine compost, cover crops and reduced tillage")
	}
	return out
}
