package mapbox

import (
	"context"
	"fmt"
	"net/url"

	"github.com/couchcryptid/geohazard-service/internal/adapter/fetch"
	"github.com/couchcryptid/geohazard-service/internal/domain"
)

// Source is the upstream name used in metrics and errors.
const Source = "mapbox"

// DefaultBaseURL is the Mapbox Geocoding v5 places endpoint.
const DefaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Client implements domain.ReverseGeocoder using the Mapbox Geocoding API.
type Client struct {
	token   string
	http    *fetch.Client
	baseURL string
}

// NewClient creates a Mapbox reverse geocoding client.
func NewClient(token string, httpClient *fetch.Client, baseURL string) *Client {
	return &Client{token: token, http: httpClient, baseURL: baseURL}
}

// ReverseGeocode converts coordinates to place details. No match is an empty
// Place, not an error.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.Place, error) {
	// Mapbox uses lon,lat order.
	u := fmt.Sprintf("%s/%.6f,%.6f.json", c.baseURL, lon, lat)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"place,locality,region,country"},
	}

	var resp response
	if err := c.http.GetJSON(ctx, u, params, &resp); err != nil {
		return domain.Place{}, err
	}
	if len(resp.Features) == 0 {
		return domain.Place{}, nil
	}

	f := resp.Features[0]
	return domain.Place{
		Name:             f.Text,
		FormattedAddress: f.PlaceName,
		Confidence:       f.Relevance,
	}, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}
