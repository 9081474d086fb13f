package soil

import (
	"math"

	"github.com/couchcryptid/geohazard-service/internal/domain"
)

// ErosionCoefficients are the curve-fit constants behind R, K and C. They are
// calibration data, exposed so a deployment can tune them against a
// reference dataset.
type ErosionCoefficients struct {
	// R = RA * P^RB, capped at RMax (MJ mm ha-1 h-1 yr-1).
	RA, RB, RMax float64
	// KMax caps the Williams erodibility before SI conversion.
	KMax float64
	// C = exp(-CAlpha * NDVI / (CBeta - NDVI)).
	CAlpha, CBeta float64
}

// DefaultErosionCoefficients are the values used when none are configured.
var DefaultErosionCoefficients = ErosionCoefficients{
	RA:     0.0483,
	RB:     1.61,
	RMax:   20000,
	KMax:   0.8,
	CAlpha: 2,
	CBeta:  1,
}

// usToSIErodibility converts K from US customary to t ha h ha-1 MJ-1 mm-1.
const usToSIErodibility = 0.1317

// practiceFactors are RUSLE support practice factors.
var practiceFactors = map[string]float64{
	"":               1.0,
	"none":           1.0,
	"contouring":     0.75,
	"strip_cropping": 0.5,
	"terracing":      0.35,
}

// ErosionInput describes one site for RUSLE.
type ErosionInput struct {
	AnnualPrecipMm   float64
	SandPct          float64
	SiltPct          float64
	ClayPct          float64
	OrganicCarbonPct float64
	SlopeDeg         float64
	SlopeLengthM     float64
	NDVI             float64
	Practice         string
}

// Erosion estimates annual soil loss with RUSLE.
func (c ErosionCoefficients) Erosion(in ErosionInput) domain.ErosionRisk {
	f := domain.ErosionFactors{
		R:  c.rainfallErosivity(in.AnnualPrecipMm),
		K:  c.erodibility(in.SandPct, in.SiltPct, in.ClayPct, in.OrganicCarbonPct),
		LS: slopeFactor(in.SlopeDeg, in.SlopeLengthM),
		C:  c.coverFactor(in.NDVI),
		P:  practiceFactor(in.Practice),
	}
	return ErosionFromFactors(f)
}

// ErosionFromFactors computes A = R*K*LS*C*P from precomputed factors.
// Negative factors are treated as zero.
func ErosionFromFactors(f domain.ErosionFactors) domain.ErosionRisk {
	f.R, f.K, f.LS, f.C, f.P = nonNeg(f.R), nonNeg(f.K), nonNeg(f.LS), nonNeg(f.C), nonNeg(f.P)
	a := round(f.R*f.K*f.LS*f.C*f.P, 2)
	return domain.ErosionRisk{
		RUSLETonsHaYr: a,
		RiskLevel:     ErosionTier(a),
		Factors: domain.ErosionFactors{
			R:  round(f.R, 1),
			K:  round(f.K, 4),
			LS: round(f.LS, 3),
			C:  round(f.C, 4),
			P:  f.P,
		},
	}
}

// ErosionTier buckets annual soil loss in tons/ha/yr.
func ErosionTier(a float64) string {
	switch {
	case a < 5:
		return "Very Low"
	case a < 10:
		return "Low"
	case a < 20:
		return "Moderate"
	case a < 40:
		return "High"
	default:
		return "Severe"
	}
}

func (c ErosionCoefficients) rainfallErosivity(p float64) float64 {
	if p <= 0 {
		return 0
	}
	return math.Min(c.RMax, c.RA*math.Pow(p, c.RB))
}

// erodibility is the Williams (EPIC) approximation of the Wischmeier nomograph.
func (c ErosionCoefficients) erodibility(sand, silt, clay, oc float64) float64 {
	sn1 := 1 - sand/100
	fcsand := 0.2 + 0.3*math.Exp(-0.256*sand*(1-silt/100))
	fclsi := 1.0
	if clay+silt > 0 {
		fclsi = math.Pow(silt/(clay+silt), 0.3)
	}
	forgc := 1 - 0.25*oc/(oc+math.Exp(3.72-2.95*oc))
	fhisand := 1 - 0.7*sn1/(sn1+math.Exp(-5.51+22.9*sn1))
	k := math.Min(c.KMax, fcsand*fclsi*forgc*fhisand)
	return k * usToSIErodibility
}

// slopeFactor is the Wischmeier & Smith LS with the McCool slope exponent.
func slopeFactor(slopeDeg, lengthM float64) float64 {
	if lengthM <= 0 {
		lengthM = 100
	}
	slopeDeg = clamp(slopeDeg, 0, 89)
	theta := slopeDeg * math.Pi / 180
	slopePct := math.Tan(theta) * 100

	var m float64
	switch {
	case slopePct < 1:
		m = 0.2
	case slopePct < 3:
		m = 0.3
	case slopePct < 5:
		m = 0.4
	default:
		m = 0.5
	}
	s := math.Sin(theta)
	return math.Pow(lengthM/22.13, m) * (65.41*s*s + 4.56*s + 0.065)
}

func (c ErosionCoefficients) coverFactor(ndvi float64) float64 {
	ndvi = clamp(ndvi, 0, 0.95)
	beta := c.CBeta
	if beta <= ndvi {
		beta = ndvi + 0.01
	}
	return clamp(math.Exp(-c.CAlpha*ndvi/(beta-ndvi)), 0, 1)
}

func practiceFactor(practice string) float64 {
	if p, ok := practiceFactors[practice]; ok {
		return p
	}
	return 1.0
}

func nonNeg(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
