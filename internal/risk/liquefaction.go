package risk

import (
	"math"

	"github.com/couchcryptid/geohazard-service/internal/domain"
)

// LiquefactionFeatures are the inputs to the liquefaction model.
type LiquefactionFeatures struct {
	SandPct           *float64
	SiltPct           *float64
	ClayPct           *float64
	GroundwaterDepthM *float64
	DepositAgeKyr     *float64 // age of the surficial deposit in thousands of years
	PGAg              *float64 // observed peak ground acceleration, in g
}

// Simplified procedure constants (Seed & Idriss).
const (
	scenarioMagnitude  = 7.0
	scenarioDistanceKm = 25.0
	criticalDepthM     = 5.0
	soilUnitWeight     = 18.0 // kN/m3
	waterUnitWeight    = 9.81 // kN/m3
)

// Liquefaction scores susceptibility and, given ground motion, the
// probability of liquefaction at a critical depth of 5 m.
func Liquefaction(in LiquefactionFeatures) (domain.LiquefactionResult, error) {
	var f features
	w := newWeighted(3)

	sand := f.value("sand_pct", in.SandPct, 40)
	silt := f.value("silt_pct", in.SiltPct, 40)
	clay := f.value("clay_pct", in.ClayPct, 20)
	gw := f.value("groundwater_depth_m", in.GroundwaterDepthM, 5)

	w.add("grain_size", 0.45, clamp01((sand+silt)/100)*clamp01(1-clay/35))
	w.add("groundwater", 0.35, stepValue(gw, []step{
		{1, 0.95}, {3, 0.7}, {5, 0.5}, {10, 0.25},
	}, 0.1))
	w.add("deposit_age", 0.20, stepValue(f.value("deposit_age_kyr", in.DepositAgeKyr, 11.7), []step{
		{1, 1.0}, {11.7, 0.7}, {126, 0.3},
	}, 0.1))

	susceptibility := clamp01(w.z)
	pgaM7 := CampbellPGA(scenarioMagnitude, scenarioDistanceKm)
	fsM7 := FactorOfSafety(susceptibility, pgaM7, scenarioMagnitude, gw)
	pM7 := liquefactionProbability(fsM7)

	p, fs := susceptibility, fsM7
	pgaAvailable := in.PGAg != nil
	if pgaAvailable {
		// Observed motion carries no magnitude; scale to the M7.5 reference.
		fs = FactorOfSafety(susceptibility, *in.PGAg, 7.5, gw)
		p = liquefactionProbability(fs)
		w.factors["pga_g"] = round(*in.PGAg, 3)
	}

	if err := checkProbability("liquefaction", pM7); err != nil {
		return domain.LiquefactionResult{}, err
	}
	hr, err := result("liquefaction", p, w, &f)
	if err != nil {
		return domain.LiquefactionResult{}, err
	}
	return domain.LiquefactionResult{
		HazardResult:        hr,
		SusceptibilityScore: round(susceptibility, 3),
		SusceptibilityClass: SusceptibilityClass(susceptibility),
		ProbabilityGivenM7:  round(pM7, 3),
		PGAAvailable:        pgaAvailable,
		FactorOfSafety:      round(math.Min(fs, 99), 2),
	}, nil
}

// SusceptibilityClass buckets a [0,1] susceptibility score.
func SusceptibilityClass(s float64) string {
	switch {
	case s < 0.15:
		return "Very Low"
	case s < 0.3:
		return "Low"
	case s < 0.5:
		return "Moderate"
	case s < 0.7:
		return "High"
	default:
		return "Very High"
	}
}

// CampbellPGA is the Campbell (1997) median horizontal PGA in g for a
// magnitude at a rupture distance in km.
func CampbellPGA(magnitude, distanceKm float64) float64 {
	r := math.Sqrt(distanceKm*distanceKm + math.Pow(0.149*math.Exp(0.647*magnitude), 2))
	return math.Exp(-3.512 + 0.904*magnitude - 1.328*math.Log(r))
}

// FactorOfSafety is CRR / CSR at the critical depth. CRR falls with
// susceptibility; CSR follows the simplified procedure with the Idriss
// magnitude scaling factor.
func FactorOfSafety(susceptibility, pga, magnitude, groundwaterM float64) float64 {
	z := criticalDepthM
	sigma := soilUnitWeight * z
	pore := 0.0
	if groundwaterM < z {
		pore = waterUnitWeight * (z - math.Max(0, groundwaterM))
	}
	sigmaEff := sigma - pore
	rd := 1 - 0.00765*z
	msf := math.Pow(10, 2.24) / math.Pow(magnitude, 2.56)

	csr := 0.65 * math.Max(0, pga) * (sigma / sigmaEff) * rd / msf
	crr := 0.05 + 0.45*(1-clamp01(susceptibility))
	if csr <= 0 {
		return math.Inf(1)
	}
	return crr / csr
}

// liquefactionProbability maps a factor of safety onto a probability
// (Juang et al. logistic fit).
func liquefactionProbability(fs float64) float64 {
	if math.IsInf(fs, 1) {
		return 0
	}
	return 1 / (1 + math.Pow(fs/0.96, 3.9))
}
