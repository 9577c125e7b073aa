package probability

import (
	"fmt"
	"math"

	"github.com/couchcryptid/storm-outage-risk/internal/domain"
	"github.com/couchcryptid/storm-outage-risk/internal/severity"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// MinStd floors a looked-up standard deviation so the covariance stays
// positive definite. A zero-width distribution degenerates to a step at its mean.
const MinStd = 1e-9

// Kind selects which feature set and tables a Model evaluates.
type Kind int

const (
	Node Kind = iota
	Edge
)

func (k Kind) String() string {
	switch k {
	case Node:
		return "node"
	case Edge:
		return "edge"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Model holds everything needed to turn a component's feature values and
// fused impacts into an outage probability interval. Ranges, Mean and Std
// must cover every entry of Features.
type Model struct {
	Kind     Kind
	Features []string
	Ranges   map[string]severity.ForecastedRange
	Mean     severity.Table
	Std      severity.Table
}

// Validate checks that every feature has a forecasted range and a mean and std
// value for each of its levels.
func (m *Model) Validate() error {
	if len(m.Features) == 0 {
		return domain.NewConfigurationError(m.Kind.String()+"s.features", "no features configured")
	}
	for _, f := range m.Features {
		field := m.Kind.String() + "s.features." + f
		r, ok := m.Ranges[f]
		if !ok || len(r) == 0 {
			return domain.NewConfigurationError(field, "no forecasted range")
		}
		if got := len(m.Mean[f]); got != len(r) {
			return domain.NewConfigurationError(field, "mean table has %d levels, want %d", got, len(r))
		}
		if got := len(m.Std[f]); got != len(r) {
			return domain.NewConfigurationError(field, "std table has %d levels, want %d", got, len(r))
		}
	}
	return nil
}

// Estimate is the outcome of ComponentProbability.
type Estimate struct {
	Probability domain.Bound
	// Levels holds the severity level assigned to each feature.
	Levels []int
	// Fallbacks names features whose value lay outside every interval and
	// were assigned the highest level.
	Fallbacks []string
}

// ComponentProbability classifies each feature value into a severity level,
// builds a multivariate normal from the per-level means and standard
// deviations (diagonal covariance), and evaluates its CDF at the low and high
// fused impact vectors. values, low and high are aligned with m.Features.
func (m *Model) ComponentProbability(values, low, high []float64) (Estimate, error) {
	n := len(m.Features)
	if len(values) != n || len(low) != n || len(high) != n {
		return Estimate{}, fmt.Errorf("%w: %s has %d features, got %d values and %d/%d impacts",
			domain.ErrInvalidEvent, m.Kind, n, len(values), len(low), len(high))
	}
	for i, f := range m.Features {
		if !isFinite(low[i]) || !isFinite(high[i]) {
			return Estimate{}, fmt.Errorf("%w: %s impact for %s is not finite: (%g, %g)",
				domain.ErrInvalidEvent, m.Kind, f, low[i], high[i])
		}
	}

	est := Estimate{Levels: make([]int, n)}
	mu := make([]float64, n)
	variances := make([]float64, n)
	for i, f := range m.Features {
		level, ok := m.Ranges[f].Level(values[i])
		if !ok {
			est.Fallbacks = append(est.Fallbacks, f)
		}
		est.Levels[i] = level

		mean, okMean := m.Mean.At(f, level)
		std, okStd := m.Std.At(f, level)
		if !okMean || !okStd {
			return Estimate{}, domain.NewConfigurationError(m.Kind.String()+"s.features."+f,
				"no mean/std for level %d", level)
		}
		mu[i] = mean
		std = math.Max(math.Abs(std), MinStd)
		variances[i] = std * std
	}

	dist, ok := distmv.NewNormal(mu, mat.NewDiagDense(n, variances), nil)
	if !ok {
		return Estimate{}, fmt.Errorf("%w: %s covariance is not positive definite", domain.ErrConfiguration, m.Kind)
	}
	est.Probability = domain.Bound{
		Low:  diagonalCDF(dist, low),
		High: diagonalCDF(dist, high),
	}
	return est, nil
}

// diagonalCDF evaluates P(X <= x) for a normal with diagonal covariance,
// which factors into the product of the marginal CDFs.
func diagonalCDF(dist *distmv.Normal, x []float64) float64 {
	p := 1.0
	for i, v := range x {
		p *= dist.MarginalNormalSingle(i, nil).CDF(v)
	}
	return p
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
