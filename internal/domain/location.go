package domain

import (
	"fmt"
	"math"
	"strings"
)

// Location identifies every query. ElevationM is nil when the caller did not
// supply one; the soil climatology estimates it in that case.
type Location struct {
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	ElevationM *float64 `json:"elevation_m,omitempty"`
	PlaceName  string   `json:"place_name,omitempty"`
	Region     string   `json:"region,omitempty"`
}

// Validate checks coordinate and elevation ranges.
func (l Location) Validate() error {
	switch {
	case math.IsNaN(l.Latitude) || l.Latitude < -90 || l.Latitude > 90:
		return &ValidationError{Field: "lat", Reason: fmt.Sprintf("latitude %v out of range [-90, 90]", l.Latitude)}
	case math.IsNaN(l.Longitude) || l.Longitude < -180 || l.Longitude > 180:
		return &ValidationError{Field: "lon", Reason: fmt.Sprintf("longitude %v out of range [-180, 180]", l.Longitude)}
	case l.ElevationM != nil && (math.IsNaN(*l.ElevationM) || *l.ElevationM < -500 || *l.ElevationM > 9000):
		return &ValidationError{Field: "elevation", Reason: fmt.Sprintf("elevation %v out of range [-500, 9000]", *l.ElevationM)}
	}
	return nil
}

// LandCover is the surface class used by the soil and risk models.
type LandCover string

const (
	LandCoverCropland  LandCover = "cropland"
	LandCoverForest    LandCover = "forest"
	LandCoverGrassland LandCover = "grassland"
	LandCoverShrubland LandCover = "shrubland"
	LandCoverUrban     LandCover = "urban"
	LandCoverBare      LandCover = "bare"
	LandCoverWater     LandCover = "water"
	LandCoverWetland   LandCover = "wetland"
)

// ParseLandCover normalizes a land cover name. Unknown or empty values fall
// back to cropland.
func ParseLandCover(s string) LandCover {
	switch lc := LandCover(strings.ToLower(strings.TrimSpace(s))); lc {
	case LandCoverCropland, LandCoverForest, LandCoverGrassland, LandCoverShrubland,
		LandCoverUrban, LandCoverBare, LandCoverWater, LandCoverWetland:
		return lc
	default:
		return LandCoverCropland
	}
}

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// Bucket returns the geographic grid cell used to debounce hazard alerts.
// Cells are cellDeg degrees on a side, keyed by their south-west corner.
func Bucket(lat, lon, cellDeg float64) string {
	if cellDeg <= 0 {
		cellDeg = 0.1
	}
	return fmt.Sprintf("%.2f:%.2f", floorTo(lat, cellDeg), floorTo(lon, cellDeg))
}

// floorTo snaps v down to a multiple of step, tolerating float error so
// 40.7 with step 0.1 lands on 40.7 rather than 40.6.
func floorTo(v, step float64) float64 {
	return math.Floor(v/step+1e-9) * step
}
