package fusion

import (
	"fmt"
	"math"
	"sort"

	"github.com/couchcryptid/storm-outage-risk/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// WeightTolerance is the allowed deviation of a fusion weight vector's sum from 1.
const WeightTolerance = 1e-6

// sumSlack absorbs float64 rounding when a sum sits exactly on the tolerance.
const sumSlack = 1e-12

// Weights maps an output feature to its per-weather-variable coefficients,
// ordered like the configured weather variables.
type Weights map[string][]float64

// Features returns the weighted feature names in sorted order.
func (w Weights) Features() []string {
	names := make([]string, 0, len(w))
	for name := range w {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every vector has one coefficient per weather variable
// and sums to 1 within WeightTolerance. field prefixes error locations.
func (w Weights) Validate(field string, numVars int) error {
	for _, feature := range w.Features() {
		coeffs := w[feature]
		if len(coeffs) != numVars {
			return domain.NewConfigurationError(field+"."+feature,
				"expected %d weights (one per weather variable), got %d", numVars, len(coeffs))
		}
		sum := floats.Sum(coeffs)
		if !scalar.EqualWithinAbs(sum, 1, WeightTolerance+sumSlack) {
			return domain.NewConfigurationError(field+"."+feature,
				"weights sum to %g, want 1", sum)
		}
	}
	return nil
}

// FuseImpact combines weather scores into one impact per feature and
// component: for each feature, observedᵀ · alpha[feature], where observed rows
// are weather variables and columns are components.
func FuseImpact(alpha Weights, observed mat.Matrix) (map[string][]float64, error) {
	vars, components := observed.Dims()
	out := make(map[string][]float64, len(alpha))
	for feature, coeffs := range alpha {
		if len(coeffs) != vars {
			return nil, domain.NewConfigurationError("fusion."+feature,
				"expected %d weights, got %d", vars, len(coeffs))
		}
		var impact mat.VecDense
		impact.MulVec(observed.T(), mat.NewVecDense(vars, coeffs))
		values := make([]float64, components)
		for c := range values {
			values[c] = impact.AtVec(c)
		}
		out[feature] = values
	}
	return out, nil
}

// FuseBounds fuses the low and high score matrices and pairs the results per
// component, rounded with Round3.
func FuseBounds(alpha Weights, scores Scores) (map[string][]domain.Bound, error) {
	low, err := FuseImpact(alpha, scores.Low)
	if err != nil {
		return nil, fmt.Errorf("fuse low bound: %w", err)
	}
	high, err := FuseImpact(alpha, scores.High)
	if err != nil {
		return nil, fmt.Errorf("fuse high bound: %w", err)
	}

	out := make(map[string][]domain.Bound, len(low))
	for feature, lows := range low {
		bounds := make([]domain.Bound, len(lows))
		for c := range lows {
			bounds[c] = domain.Bound{Low: Round3(lows[c]), High: Round3(high[feature][c])}
		}
		out[feature] = bounds
	}
	return out, nil
}

// Round3 rounds v to three decimals, the precision impacts are persisted with.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
