package soil

import (
	"fmt"

	"github.com/couchcryptid/geohazard-service/internal/domain"
)

// Depth is a supported SoilGrids depth band.
type Depth string

const (
	Depth0to5   Depth = "0-5cm"
	Depth5to15  Depth = "5-15cm"
	Depth15to30 Depth = "15-30cm"
)

// Depths lists the supported bands, shallowest first.
var Depths = []Depth{Depth0to5, Depth5to15, Depth15to30}

// ParseDepth accepts "0-5cm" style labels with or without the unit. An empty
// string selects the topsoil band.
func ParseDepth(s string) (Depth, error) {
	switch s {
	case "", "0-5", string(Depth0to5):
		return Depth0to5, nil
	case "5-15", string(Depth5to15):
		return Depth5to15, nil
	case "15-30", string(Depth15to30):
		return Depth15to30, nil
	}
	return "", &domain.ValidationError{
		Field:  "depth",
		Reason: fmt.Sprintf("unsupported depth %q, expected one of 0-5cm, 5-15cm, 15-30cm", s),
	}
}

// organicCarbonDepthFactor scales topsoil organic carbon estimates down the profile.
func (d Depth) organicCarbonDepthFactor() float64 {
	switch d {
	case Depth5to15:
		return 0.75
	case Depth15to30:
		return 0.55
	default:
		return 1.0
	}
}

// USDA texture classes.
const (
	ClassSand          = "Sand"
	ClassLoamySand     = "Loamy Sand"
	ClassSandyLoam     = "Sandy Loam"
	ClassLoam          = "Loam"
	ClassSiltLoam      = "Silt Loam"
	ClassSilt          = "Silt"
	ClassSandyClayLoam = "Sandy Clay Loam"
	ClassClayLoam      = "Clay Loam"
	ClassSiltyClayLoam = "Silty Clay Loam"
	ClassSandyClay     = "Sandy Clay"
	ClassSiltyClay     = "Silty Clay"
	ClassClay          = "Clay"
)

// ClassifyTexture applies the USDA texture triangle rules. Fractions are
// normalized to sum to 100 first.
func ClassifyTexture(sand, silt, clay float64) string {
	total := sand + silt + clay
	if total <= 0 {
		return ClassLoam
	}
	sand, silt, clay = sand*100/total, silt*100/total, clay*100/total

	switch {
	case silt+1.5*clay < 15:
		return ClassSand
	case silt+2*clay < 30:
		return ClassLoamySand
	case (clay >= 7 && clay < 20 && sand > 52) || (clay < 7 && silt < 50):
		return ClassSandyLoam
	case clay >= 7 && clay < 27 && silt >= 28 && silt < 50 && sand <= 52:
		return ClassLoam
	case silt >= 80 && clay < 12:
		return ClassSilt
	case silt >= 50 && clay < 27:
		return ClassSiltLoam
	case clay >= 20 && clay < 35 && silt < 28 && sand > 45:
		return ClassSandyClayLoam
	case clay >= 27 && clay < 40 && sand > 20 && sand <= 45:
		return ClassClayLoam
	case clay >= 27 && clay < 40 && sand <= 20:
		return ClassSiltyClayLoam
	case clay >= 35 && sand > 45:
		return ClassSandyClay
	case clay >= 40 && silt >= 40:
		return ClassSiltyClay
	case clay >= 40:
		return ClassClay
	}
	return ClassLoam
}

// textureGroup collapses a USDA class into coarse, medium, or fine.
func textureGroup(class string) string {
	switch class {
	case ClassSand, ClassLoamySand, ClassSandyLoam:
		return "coarse"
	case ClassClay, ClassSiltyClay, ClassSandyClay, ClassClayLoam, ClassSiltyClayLoam:
		return "fine"
	default:
		return "medium"
	}
}
