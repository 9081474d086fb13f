package soil

import (
	"math"

	"github.com/couchcryptid/geohazard-service/internal/domain"
)

// band is an optimal agronomic range. Sub-scores fall linearly from 100 at
// the band edge to 0 at tolerance beyond it.
type band struct {
	name      string
	low, high float64
	tolerance float64
	weight    float64
}

// healthBands weights sum to 1.
var healthBands = []band{
	{"ph", 6.0, 7.5, 2.0, 0.20},
	{"organic_carbon_pct", 2.0, 6.0, 2.0, 0.25},
	{"nitrogen_pct", 0.15, 0.50, 0.15, 0.15},
	{"moisture_pct", 20, 40, 20, 0.10},
	{"cec_cmolkg", 15, 40, 15, 0.15},
	{"bulk_density_gcm3", 1.1, 1.4, 0.4, 0.15},
}

func (b band) score(v float64) float64 {
	var dist float64
	switch {
	case v < b.low:
		dist = b.low - v
	case v > b.high:
		dist = v - b.high
	default:
		return 100
	}
	return math.Max(0, 100*(1-dist/b.tolerance))
}

func healthValue(p domain.SoilProperties, name string) float64 {
	switch name {
	case "ph":
		return p.PH
	case "organic_carbon_pct":
		return p.OrganicCarbonPct
	case "nitrogen_pct":
		return p.NitrogenPct
	case "moisture_pct":
		return p.MoisturePct
	case "cec_cmolkg":
		return p.CECCmolkg
	case "bulk_density_gcm3":
		return p.BulkDensityGcm3
	}
	return math.NaN()
}

// Health computes the 0-100 soil health index.
func Health(p domain.SoilProperties) domain.HealthIndex {
	subs := make(map[string]float64, len(healthBands))
	total := 0.0
	for _, b := range healthBands {
		v := healthValue(p, b.name)
		s := 50.0 // unmeasurable inputs score mid-range
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			s = b.score(v)
		}
		subs[b.name] = round(s, 1)
		total += s * b.weight
	}
	score := int(math.Round(clamp(total, 0, 100)))
	grade, category := Grade(score)
	return domain.HealthIndex{
		Score:     score,
		Grade:     grade,
		Category:  category,
		SubScores: subs,
	}
}

// Grade maps a score onto the fixed grade table.
func Grade(score int) (grade, category string) {
	switch {
	case score >= 80:
		return "A", "Excellent"
	case score >= 65:
		return "B+", "Good"
	case score >= 50:
		return "B", "Fair"
	case score >= 35:
		return "C", "Poor"
	default:
		return "D", "Very Poor"
	}
}
