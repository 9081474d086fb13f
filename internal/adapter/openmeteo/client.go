// Package openmeteo fetches current weather, recent rainfall, soil moisture
// and trailing-year climate normals from the keyless Open-Meteo APIs.
package openmeteo

import (
	"context"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/geohazard-service/internal/adapter/fetch"
	"github.com/couchcryptid/geohazard-service/internal/domain"
)

// Source names used in metrics, errors and source maps.
const (
	SourceWeather  = "open-meteo"
	SourceArchive  = "open-meteo-archive"
	pastRainDays   = 7
	normalsDays    = 365
	archiveLagDays = 5
)

var moistureLayers = []string{
	"soil_moisture_0_to_1cm",
	"soil_moisture_1_to_3cm",
	"soil_moisture_3_to_9cm",
	"soil_moisture_9_to_27cm",
}

// Client talks to the forecast and archive endpoints. They are separate
// hosts with separate rate limits, so each gets its own fetch.Client.
type Client struct {
	forecast   *fetch.Client
	archive    *fetch.Client
	baseURL    string
	archiveURL string
}

// NewClient creates an Open-Meteo client.
func NewClient(forecast, archive *fetch.Client, baseURL, archiveURL string) *Client {
	return &Client{forecast: forecast, archive: archive, baseURL: baseURL, archiveURL: archiveURL}
}

func coords(lat, lon float64) url.Values {
	return url.Values{
		"latitude":  {strconv.FormatFloat(lat, 'f', 4, 64)},
		"longitude": {strconv.FormatFloat(lon, 'f', 4, 64)},
	}
}

type weatherResponse struct {
	Elevation *float64 `json:"elevation"`
	Current   struct {
		Time          string   `json:"time"`
		Temperature   *float64 `json:"temperature_2m"`
		Humidity      *float64 `json:"relative_humidity_2m"`
		Precipitation *float64 `json:"precipitation"`
		WindSpeed     *float64 `json:"wind_speed_10m"`
	} `json:"current"`
	Daily struct {
		Precipitation []*float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

// FetchWeather returns current conditions plus trailing rainfall totals.
// Daily sums end with today, so the 24h total is today's accumulation.
func (c *Client) FetchWeather(ctx context.Context, lat, lon float64) (domain.Weather, error) {
	params := coords(lat, lon)
	params.Set("current", "temperature_2m,relative_humidity_2m,precipitation,wind_speed_10m")
	params.Set("daily", "precipitation_sum")
	params.Set("past_days", strconv.Itoa(pastRainDays))
	params.Set("forecast_days", "1")
	params.Set("wind_speed_unit", "kmh")
	params.Set("timezone", "UTC")

	var resp weatherResponse
	if err := c.forecast.GetJSON(ctx, c.baseURL+"/forecast", params, &resp); err != nil {
		return domain.Weather{}, err
	}

	w := domain.Weather{
		TemperatureC:    resp.Current.Temperature,
		HumidityPct:     resp.Current.Humidity,
		WindSpeedKmh:    resp.Current.WindSpeed,
		PrecipitationMm: resp.Current.Precipitation,
		ElevationM:      resp.Elevation,
		ObservedAt:      parseTime(resp.Current.Time),
	}
	daily := resp.Daily.Precipitation
	w.Rain24hMm = trailingSum(daily, 1)
	w.Rain48hMm = trailingSum(daily, 2)
	w.Rain72hMm = trailingSum(daily, 3)
	w.Rain7dMm = trailingSum(daily, pastRainDays)
	w.DaysSinceRain = daysSinceRain(daily)
	return w, nil
}

type moistureResponse struct {
	Hourly map[string][]*float64 `json:"hourly"`
}

// FetchSoilMoisture averages the latest reported value of each top layer,
// converted from m3/m3 to percent. AveragePct is nil when no layer reported.
func (c *Client) FetchSoilMoisture(ctx context.Context, lat, lon float64) (domain.SoilMoisture, error) {
	params := coords(lat, lon)
	params.Set("forecast_days", "1")
	params.Set("timezone", "UTC")
	params.Set("hourly", strings.Join(moistureLayers, ","))

	var resp moistureResponse
	if err := c.forecast.GetJSON(ctx, c.baseURL+"/forecast", params, &resp); err != nil {
		return domain.SoilMoisture{}, err
	}

	sm := domain.SoilMoisture{Layers: make(map[string]float64)}
	var sum float64
	for _, l := range moistureLayers {
		if v, ok := latest(resp.Hourly[l]); ok {
			pct := round1(v * 100)
			sm.Layers[l] = pct
			sum += pct
		}
	}
	if n := len(sm.Layers); n > 0 {
		sm.AveragePct = domain.Float(round1(sum / float64(n)))
	}
	return sm, nil
}

type archiveResponse struct {
	Daily struct {
		TempMax       []*float64 `json:"temperature_2m_max"`
		TempMin       []*float64 `json:"temperature_2m_min"`
		Precipitation []*float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

// FetchClimateNormals summarizes the trailing year of daily archive data.
// Precipitation is scaled to a full year when days are missing.
func (c *Client) FetchClimateNormals(ctx context.Context, lat, lon float64) (domain.ClimateNormals, error) {
	end := domain.Now().AddDate(0, 0, -archiveLagDays)
	start := end.AddDate(0, 0, -normalsDays)

	params := coords(lat, lon)
	params.Set("start_date", start.Format(time.DateOnly))
	params.Set("end_date", end.Format(time.DateOnly))
	params.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum")
	params.Set("timezone", "UTC")

	var resp archiveResponse
	if err := c.archive.GetJSON(ctx, c.archiveURL+"/archive", params, &resp); err != nil {
		return domain.ClimateNormals{}, err
	}

	var normals domain.ClimateNormals
	var tempSum float64
	var tempN int
	for _, series := range [][]*float64{resp.Daily.TempMax, resp.Daily.TempMin} {
		for _, v := range series {
			if v != nil {
				tempSum += *v
				tempN++
			}
		}
	}
	if tempN > 0 {
		normals.MeanAnnualTempC = domain.Float(round1(tempSum / float64(tempN)))
	}

	var precipSum float64
	var precipN int
	for _, v := range resp.Daily.Precipitation {
		if v != nil {
			precipSum += *v
			precipN++
		}
	}
	if precipN > 0 {
		normals.MeanAnnualPrecipMm = domain.Float(math.Round(precipSum * normalsDays / float64(precipN)))
	}
	return normals, nil
}

// trailingSum adds the last n non-null values; nil when none are present.
func trailingSum(values []*float64, n int) *float64 {
	if len(values) == 0 {
		return nil
	}
	from := max(0, len(values)-n)
	var sum float64
	seen := false
	for _, v := range values[from:] {
		if v != nil {
			sum += *v
			seen = true
		}
	}
	if !seen {
		return nil
	}
	return domain.Float(round1(sum))
}

// daysSinceRain counts back from today to the last day with at least 1 mm.
func daysSinceRain(values []*float64) *int {
	if len(values) == 0 {
		return nil
	}
	for i := len(values) - 1; i >= 0; i-- {
		if values[i] != nil && *values[i] >= 1 {
			d := len(values) - 1 - i
			return &d
		}
	}
	d := len(values)
	return &d
}

func latest(values []*float64) (float64, bool) {
	for i := len(values) - 1; i >= 0; i-- {
		if values[i] != nil {
			return *values[i], true
		}
	}
	return 0, false
}

func parseTime(s string) time.Time {
	t, err := time.Parse("2006-01-02T15:04", s)
	if err != nil {
		return domain.Now()
	}
	return t.UTC()
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
