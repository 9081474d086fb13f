// Package usgs fetches earthquakes from the USGS FDSN event service.
package usgs

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/geohazard-service/internal/adapter/fetch"
	"github.com/couchcryptid/geohazard-service/internal/domain"
)

// Source is the upstream name used in metrics, errors and source maps.
const Source = "usgs"

// Client implements the seismic fetcher against FDSN GeoJSON.
type Client struct {
	http    *fetch.Client
	baseURL string
}

// NewClient creates a USGS client rooted at baseURL
// (https://earthquake.usgs.gov/fdsnws/event/1 in production).
func NewClient(httpClient *fetch.Client, baseURL string) *Client {
	return &Client{http: httpClient, baseURL: baseURL}
}

// FetchEvents returns events matching q, newest first. Malformed features are
// dropped; an event with no ID cannot be deduplicated and is never returned.
func (c *Client) FetchEvents(ctx context.Context, q domain.EarthquakeQuery) ([]domain.EarthquakeEvent, error) {
	params := url.Values{
		"format":       {"geojson"},
		"orderby":      {"time"},
		"minmagnitude": {strconv.FormatFloat(q.MinMagnitude, 'f', -1, 64)},
	}
	if !q.Since.IsZero() {
		params.Set("starttime", q.Since.UTC().Format("2006-01-02T15:04:05"))
	}
	if !q.Until.IsZero() {
		params.Set("endtime", q.Until.UTC().Format("2006-01-02T15:04:05"))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.RadiusKm > 0 {
		params.Set("latitude", strconv.FormatFloat(q.Latitude, 'f', 4, 64))
		params.Set("longitude", strconv.FormatFloat(q.Longitude, 'f', 4, 64))
		params.Set("maxradiuskm", strconv.FormatFloat(q.RadiusKm, 'f', -1, 64))
	}

	var fc featureCollection
	if err := c.http.GetJSON(ctx, c.baseURL+"/query", params, &fc); err != nil {
		return nil, err
	}

	events := make([]domain.EarthquakeEvent, 0, len(fc.Features))
	for _, f := range fc.Features {
		if ev, ok := f.event(); ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

// USGS GeoJSON response types.

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID         string     `json:"id"`
	Properties properties `json:"properties"`
	Geometry   struct {
		Coordinates []float64 `json:"coordinates"` // [lon, lat, depth]
	} `json:"geometry"`
}

type properties struct {
	Mag     *float64 `json:"mag"`
	MagType string   `json:"magType"`
	Place   string   `json:"place"`
	Time    int64    `json:"time"` // epoch millis
	URL     string   `json:"url"`
	Felt    *int     `json:"felt"`
	Tsunami int      `json:"tsunami"`
	Sig     int      `json:"sig"`
}

func (f feature) event() (domain.EarthquakeEvent, bool) {
	coords := f.Geometry.Coordinates
	if f.ID == "" || len(coords) < 2 || f.Properties.Mag == nil {
		return domain.EarthquakeEvent{}, false
	}
	ev := domain.EarthquakeEvent{
		EventID:       f.ID,
		Longitude:     coords[0],
		Latitude:      coords[1],
		Magnitude:     *f.Properties.Mag,
		MagnitudeType: f.Properties.MagType,
		Place:         f.Properties.Place,
		EventTime:     time.UnixMilli(f.Properties.Time).UTC(),
		Felt:          f.Properties.Felt,
		Tsunami:       f.Properties.Tsunami != 0,
		Significance:  f.Properties.Sig,
		URL:           f.Properties.URL,
	}
	if len(coords) > 2 {
		ev.DepthKm = coords[2]
	}
	return ev, true
}
