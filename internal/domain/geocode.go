package domain

import (
	"context"
	"log/slog"
)

// Geocode outcomes reported by LabelLocation.
const (
	GeocodeSkipped = "skipped"
	GeocodeSuccess = "success"
	GeocodeEmpty   = "empty"
	GeocodeError   = "error"
)

// LabelLocation fills PlaceName from the geocoder when the caller did not
// supply one. A nil geocoder or a failed lookup leaves the location as it was
// (graceful degradation); the outcome is returned for metrics.
func LabelLocation(ctx context.Context, loc Location, geocoder ReverseGeocoder, logger *slog.Logger) (Location, string) {
	if geocoder == nil || loc.PlaceName != "" {
		return loc, GeocodeSkipped
	}

	place, err := geocoder.ReverseGeocode(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lat", loc.Latitude,
			"lon", loc.Longitude,
			"error", err,
		)
		return loc, GeocodeError
	}
	if place.FormattedAddress == "" {
		return loc, GeocodeEmpty
	}
	loc.PlaceName = place.FormattedAddress
	return loc, GeocodeSuccess
}
