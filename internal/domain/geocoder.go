package domain

import "context"

// Place is a reverse geocoding answer.
type Place struct {
	Name             string
	FormattedAddress string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// ReverseGeocoder labels coordinates with a human-readable place.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (Place, error)
}
