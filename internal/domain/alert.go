package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Severity of an alert, most severe first.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityWatch    Severity = "watch"
	SeverityAdvisory Severity = "advisory"
)

// Rank orders severities so that critical sorts first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	case SeverityWatch:
		return 2
	case SeverityAdvisory:
		return 3
	default:
		return 4
	}
}

// ValidSeverity reports whether s is one of the four defined severities.
func ValidSeverity(s string) bool {
	return Severity(s).Rank() < 4
}

// Alert types.
const (
	AlertTypeEarthquake   = "earthquake"
	AlertTypeLandslide    = "landslide"
	AlertTypeFlood        = "flood"
	AlertTypeWildfire     = "wildfire"
	AlertTypeLiquefaction = "liquefaction"
	AlertTypeComposite    = "composite"
)

// Alert is created when a threshold is crossed. Only IsActive changes after
// creation.
type Alert struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Severity    Severity       `json:"severity"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Lat         *float64       `json:"lat,omitempty"`
	Lon         *float64       `json:"lon,omitempty"`
	RadiusKm    *float64       `json:"radius_km,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	IsActive    bool           `json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

// alertNamespace scopes alert UUIDs so they cannot collide with other v5 IDs.
var alertNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:geohazard:alert"))

// SeismicAlertID derives a stable alert ID from the upstream event ID.
func SeismicAlertID(eventID string) string {
	return uuid.NewSHA1(alertNamespace, []byte("earthquake|"+eventID)).String()
}

// HazardAlertID derives a stable alert ID for a hazard breach in a bucket.
// windowStart is the start of the debounce window the breach belongs to, so
// resubmitting the same breach inside one window yields the same ID.
func HazardAlertID(bucket, hazard string, windowStart time.Time) string {
	name := fmt.Sprintf("hazard|%s|%s|%d", bucket, hazard, windowStart.Unix())
	return uuid.NewSHA1(alertNamespace, []byte(name)).String()
}
