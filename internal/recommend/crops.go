package recommend

import (
	"math"
	"slices"
	"sort"

	"github.com/couchcryptid/geohazard-service/internal/soil"
)

// moistureLevel is the coarse water demand of a crop.
type moistureLevel string

const (
	moistureLow      moistureLevel = "low"
	moistureModerate moistureLevel = "moderate"
	moistureHigh     moistureLevel = "high"
)

type crop struct {
	name     string
	phMin    float64
	phMax    float64
	minOC    float64
	minN     float64
	moisture moistureLevel
	tempMin  float64
	tempMax  float64
	textures []string
}

var crops = []crop{
	{"rice", 5.5, 7.0, 1.0, 0.10, moistureHigh, 20, 35, []string{soil.ClassClay, soil.ClassSiltyClay, soil.ClassClayLoam}},
	{"wheat", 6.0, 7.5, 1.0, 0.12, moistureModerate, 10, 25, []string{soil.ClassLoam, soil.ClassSiltLoam, soil.ClassClayLoam}},
	{"corn", 5.8, 7.0, 1.2, 0.15, moistureModerate, 18, 32, []string{soil.ClassLoam, soil.ClassSandyLoam, soil.ClassSiltLoam}},
	{"soybean", 6.0, 7.0, 0.8, 0.08, moistureModerate, 15, 30, []string{soil.ClassLoam, soil.ClassSiltLoam, soil.ClassClayLoam}},
	{"potato", 5.0, 6.5, 1.5, 0.12, moistureModerate, 10, 25, []string{soil.ClassSandyLoam, soil.ClassLoam}},
	{"tomato", 6.0, 6.8, 1.5, 0.15, moistureModerate, 18, 30, []string{soil.ClassLoam, soil.ClassSandyLoam}},
	{"cotton", 6.0, 8.0, 0.8, 0.10, moistureLow, 20, 35, []string{soil.ClassLoam, soil.ClassSandyLoam, soil.ClassSandyClayLoam}},
	{"sugarcane", 5.5, 7.5, 1.2, 0.15, moistureHigh, 22, 35, []string{soil.ClassLoam, soil.ClassClayLoam, soil.ClassSiltLoam}},
	{"cassava", 5.5, 7.0, 0.5, 0.05, moistureLow, 22, 32, []string{soil.ClassSandyLoam, soil.ClassLoam}},
	{"barley", 6.0, 8.0, 0.8, 0.10, moistureLow, 8, 22, []string{soil.ClassLoam, soil.ClassSiltLoam}},
	{"millet", 5.5, 7.5, 0.5, 0.05, moistureLow, 20, 35, []string{soil.ClassSandyLoam, soil.ClassLoam, soil.ClassSand}},
	{"coffee", 5.0, 6.5, 2.0, 0.15, moistureModerate, 15, 25, []string{soil.ClassLoam, soil.ClassClayLoam}},
}

// maxCropPoints is pH 2 + OC 1 + N 1 + moisture 1 + texture 2 + temperature 1.
const maxCropPoints = 8

func classifyMoisture(pct float64) moistureLevel {
	switch {
	case pct < 20:
		return moistureLow
	case pct < 40:
		return moistureModerate
	default:
		return moistureHigh
	}
}

// score awards points per matching requirement. pH within half a unit of the
// range earns partial credit.
func (c crop) score(ph, oc, n, moisturePct, tempC float64, texture string) (int, []string) {
	pts := 0
	var limits []string

	switch {
	case ph >= c.phMin && ph <= c.phMax:
		pts += 2
	case ph >= c.phMin-0.5 && ph <= c.phMax+0.5:
		pts++
		limits = append(limits, "ph")
	default:
		limits = append(limits, "ph")
	}
	if oc >= c.minOC {
		pts++
	} else {
		limits = append(limits, "organic_carbon")
	}
	if n >= c.minN {
		pts++
	} else {
		limits = append(limits, "nitrogen")
	}
	if classifyMoisture(moisturePct) == c.moisture {
		pts++
	} else {
		limits = append(limits, "moisture")
	}
	if slices.Contains(c.textures, texture) {
		pts += 2
	} else {
		limits = append(limits, "texture")
	}
	if tempC >= c.tempMin && tempC <= c.tempMax {
		pts++
	} else {
		limits = append(limits, "temperature")
	}
	return pts, limits
}

func suitability(score int) string {
	switch {
	case score >= 75:
		return "Excellent"
	case score >= 50:
		return "Good"
	case score >= 25:
		return "Fair"
	default:
		return "Poor"
	}
}

// rankCrops scores every crop and sorts best first, by name on ties.
func rankCrops(ph, oc, n, moisturePct, tempC float64, texture string) []CropSuitability {
	out := make([]CropSuitability, 0, len(crops))
	for _, c := range crops {
		pts, limits := c.score(ph, oc, n, moisturePct, tempC, texture)
		score := int(math.Round(float64(pts) * 100 / maxCropPoints))
		out = append(out, CropSuitability{
			Crop:            c.name,
			Score:           score,
			Suitability:     suitability(score),
			LimitingFactors: limits,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Crop < out[j].Crop
	})
	return out
}
