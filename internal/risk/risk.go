// Package risk implements the landslide, flood, wildfire and liquefaction
// hazard models and the composite score built from them.
//
// Every model follows the same shape: raw features are normalized into
// factors in [0,1], combined with a weight vector that sums to 1, and passed
// through a logistic curve centred on 0.5. Model specific post-processing
// (regional multipliers, fuel availability) follows. Features are optional;
// a missing feature takes a mid-range default and is reported in Defaulted.
package risk

import (
	"fmt"
	"math"
	"sort"

	"github.com/couchcryptid/geohazard-service/internal/domain"
)

// steepness is the logistic slope k in p = 1 / (1 + exp(-k (z - 0.5))).
const steepness = 8.0

func logistic(z float64) float64 {
	return 1 / (1 + math.Exp(-steepness*(z-0.5)))
}

// features tracks which inputs fell back to defaults.
type features struct {
	defaulted []string
}

// value returns *v, or def when v is nil and records the name.
func (f *features) value(name string, v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	f.defaulted = append(f.defaulted, name)
	return def
}

func (f *features) list() []string {
	if len(f.defaulted) == 0 {
		return nil
	}
	sort.Strings(f.defaulted)
	return f.defaulted
}

// weighted accumulates z = sum(w_i * x_i) and remembers each factor.
type weighted struct {
	z       float64
	factors map[string]float64
}

func newWeighted(n int) *weighted {
	return &weighted{factors: make(map[string]float64, n)}
}

func (w *weighted) add(name string, weight, x float64) {
	x = clamp01(x)
	w.z += weight * x
	w.factors[name] = round(x, 3)
}

func (w *weighted) probability() float64 {
	return logistic(w.z)
}

// checkProbability rejects NaN or out-of-range model output.
func checkProbability(model string, p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1 {
		return &domain.ComputationError{Model: model, Reason: fmt.Sprintf("probability %v outside [0,1]", p)}
	}
	return nil
}

func result(model string, p float64, w *weighted, f *features) (domain.HazardResult, error) {
	if err := checkProbability(model, p); err != nil {
		return domain.HazardResult{}, err
	}
	// Band on the reported value so Level always matches Probability.
	p = round(p, 3)
	return domain.HazardResult{
		Probability: p,
		Level:       domain.LevelForProbability(p),
		Factors:     w.factors,
		Defaulted:   f.list(),
	}, nil
}

// Composite folds the four model probabilities into a 0-100 score that
// leans on the worst hazard: round(100 * (0.6*max + 0.4*mean)).
func Composite(landslide, flood, wildfire, liquefaction float64) (int, domain.Level) {
	ps := []float64{landslide, flood, wildfire, liquefaction}
	peak, sum := 0.0, 0.0
	for _, p := range ps {
		p = clamp01(p)
		peak = math.Max(peak, p)
		sum += p
	}
	score := int(math.Round(100 * (0.6*peak + 0.4*sum/float64(len(ps)))))
	if score > 100 {
		score = 100
	}
	return score, domain.LevelForScore(score)
}

// region is a lat/lon box with a post-sigmoid probability multiplier.
type region struct {
	name                           string
	minLat, maxLat, minLon, maxLon float64
	multiplier                     float64
}

// multiplierFor returns the first matching region's multiplier, or 1.
func multiplierFor(regions []region, lat, lon float64) float64 {
	for _, r := range regions {
		if lat >= r.minLat && lat <= r.maxLat && lon >= r.minLon && lon <= r.maxLon {
			return r.multiplier
		}
	}
	return 1
}

// regionalCap bounds probabilities after a regional multiplier.
const regionalCap = 0.99

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// step is one row of a threshold table: values below `below` map to `value`.
type step struct {
	below float64
	value float64
}

func stepValue(v float64, table []step, otherwise float64) float64 {
	for _, s := range table {
		if v < s.below {
			return s.value
		}
	}
	return otherwise
}
