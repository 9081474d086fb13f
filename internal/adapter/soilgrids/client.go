// Package soilgrids fetches soil property means from ISRIC SoilGrids v2.0.
package soilgrids

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/geohazard-service/internal/adapter/fetch"
	"github.com/couchcryptid/geohazard-service/internal/domain"
)

// Source is the upstream name used in metrics, errors and source maps.
const Source = "soilgrids"

// conversion divides a SoilGrids mapped value into conventional units and
// stores it on the record.
type conversion struct {
	divisor float64
	set     func(r *domain.SoilGridsRecord, v float64)
}

var conversions = map[string]conversion{
	"phh2o":    {10, func(r *domain.SoilGridsRecord, v float64) { r.PH = &v }},
	"soc":      {100, func(r *domain.SoilGridsRecord, v float64) { r.OrganicCarbonPct = &v }},
	"nitrogen": {1000, func(r *domain.SoilGridsRecord, v float64) { r.NitrogenPct = &v }},
	"sand":     {10, func(r *domain.SoilGridsRecord, v float64) { r.SandPct = &v }},
	"silt":     {10, func(r *domain.SoilGridsRecord, v float64) { r.SiltPct = &v }},
	"clay":     {10, func(r *domain.SoilGridsRecord, v float64) { r.ClayPct = &v }},
	"cec":      {10, func(r *domain.SoilGridsRecord, v float64) { r.CECCmolkg = &v }},
	"bdod":     {100, func(r *domain.SoilGridsRecord, v float64) { r.BulkDensityGcm3 = &v }},
}

var (
	properties = []string{"phh2o", "soc", "nitrogen", "sand", "silt", "clay", "cec", "bdod"}
	depths     = []string{"0-5cm", "5-15cm", "15-30cm"}
)

// Client queries the SoilGrids properties endpoint.
type Client struct {
	http    *fetch.Client
	baseURL string
}

// NewClient creates a SoilGrids client rooted at baseURL
// (https://rest.isric.org/soilgrids/v2.0 in production).
func NewClient(httpClient *fetch.Client, baseURL string) *Client {
	return &Client{http: httpClient, baseURL: baseURL}
}

// FetchProfile returns the top three depth bands in one request. Properties
// SoilGrids has no estimate for (water, ice, urban masks) stay nil.
func (c *Client) FetchProfile(ctx context.Context, lat, lon float64) (domain.SoilGridsProfile, error) {
	params := url.Values{
		"lat":   {strconv.FormatFloat(lat, 'f', 4, 64)},
		"lon":   {strconv.FormatFloat(lon, 'f', 4, 64)},
		"value": {"mean"},
	}
	for _, p := range properties {
		params.Add("property", p)
	}
	for _, d := range depths {
		params.Add("depth", d)
	}

	var resp response
	if err := c.http.GetJSON(ctx, c.baseURL+"/properties/query", params, &resp); err != nil {
		return nil, err
	}

	profile := make(domain.SoilGridsProfile, len(depths))
	for _, d := range depths {
		profile[d] = domain.SoilGridsRecord{Depth: d}
	}
	for _, layer := range resp.Properties.Layers {
		conv, ok := conversions[strings.ToLower(layer.Name)]
		if !ok {
			continue
		}
		for _, d := range layer.Depths {
			rec, ok := profile[d.Label]
			if !ok || d.Values.Mean == nil {
				continue
			}
			conv.set(&rec, *d.Values.Mean/conv.divisor)
			profile[d.Label] = rec
		}
	}
	return profile, nil
}

// SoilGrids response types.

type response struct {
	Properties struct {
		Layers []layer `json:"layers"`
	} `json:"properties"`
}

type layer struct {
	Name   string `json:"name"`
	Depths []struct {
		Label  string `json:"label"`
		Values struct {
			Mean *float64 `json:"mean"`
		} `json:"values"`
	} `json:"depths"`
}
