// Package domain models the records shared by the geohazard scoring core:
// locations, upstream observations, soil properties, hazard results and alerts.
//
// # Data Sources
//
// All upstreams are keyless public APIs:
//
//	USGS FDSN event service   earthquakes (GeoJSON)
//	Open-Meteo forecast API    current weather, past-days rain, soil moisture
//	Open-Meteo archive API     trailing-year daily temperature and precipitation
//	ISRIC SoilGrids v2.0       soil properties per depth band
//
// Upstream records keep every optional field as a pointer. A nil field means
// "not reported" and is filled by the soil and risk models with documented
// defaults; zero is a real measurement.
//
// # Units
//
// Units are explicit in JSON field names and must be preserved by any
// consumer: rusle_tons_ha_yr, cec_cmolkg, bulk_density_gcm3, wind_speed_kmh,
// depth_km, radius_km. SoilGrids mapped units are converted on ingest:
//
//	phh2o     pH x10         -> pH
//	soc       dg/kg          -> %      (/100)
//	nitrogen  cg/kg          -> %      (/1000)
//	sand/silt/clay g/kg      -> %      (/10)
//	cec       mmol(c)/kg     -> cmol/kg (/10)
//	bdod      cg/cm3         -> g/cm3  (/100)
//
// # Risk Levels
//
// Every hazard probability and the 0-100 composite share one band table:
//
//	[0.0, 0.2) Very Low | [0.2, 0.4) Low | [0.4, 0.6) Moderate
//	[0.6, 0.8) High     | [0.8, 1.0] Critical
//
// High is the alert threshold.
//
// # Alert IDs
//
// Alert IDs are UUID v5 values derived from the upstream event ID (seismic) or
// from bucket|hazard|window start (hazard breaches). Re-evaluating the same
// condition yields the same ID, which keeps history appends idempotent
// (ON CONFLICT DO NOTHING in Postgres). See [SeismicAlertID] and [HazardAlertID].
package domain
