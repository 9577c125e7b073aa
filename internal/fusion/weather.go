package fusion

import (
	"fmt"
	"math"

	"github.com/couchcryptid/storm-outage-risk/internal/domain"
	"gonum.org/v1/gonum/mat"
)

// UnclassifiedPolicy decides what happens to a weather value outside every window.
type UnclassifiedPolicy string

const (
	// PolicyReject fails the whole event with domain.ErrUnclassifiedWeather.
	PolicyReject UnclassifiedPolicy = "reject"
	// PolicyClamp scores values below the table as the first window and
	// values above it as the last window.
	PolicyClamp UnclassifiedPolicy = "clamp"
)

// Valid reports whether p is a known policy.
func (p UnclassifiedPolicy) Valid() bool {
	return p == PolicyReject || p == PolicyClamp
}

// Window is one closed slot of a WeatherLevels table.
type Window struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// WeatherLevels splits a weather variable's declared global range into equal
// windows. The window at index i scores (i+1)/len.
type WeatherLevels []Window

// NewWeatherLevels builds levels windows over [globalMin, globalMax].
func NewWeatherLevels(globalMin, globalMax float64, levels int) WeatherLevels {
	if levels < 1 {
		return nil
	}
	step := (globalMax - globalMin) / float64(levels)
	w := make(WeatherLevels, levels)
	for i := range w {
		w[i] = Window{
			Min: globalMin + float64(i)*step,
			Max: globalMin + float64(i+1)*step,
		}
	}
	w[levels-1].Max = globalMax
	return w
}

// Score returns the normalized score of the first window containing v.
// ok is false when no window contains v.
func (w WeatherLevels) Score(v float64) (score float64, ok bool) {
	for i, win := range w {
		if win.Min <= v && v <= win.Max {
			return float64(i+1) / float64(len(w)), true
		}
	}
	return 0, false
}

// clamp scores v as the nearest boundary window.
func (w WeatherLevels) clamp(v float64) float64 {
	if len(w) == 0 {
		return 0
	}
	if v < w[0].Min {
		return 1 / float64(len(w))
	}
	return 1
}

// Unclassified records a weather value that matched no window.
type Unclassified struct {
	Variable  string  `json:"variable"`
	Component int     `json:"component"`
	Value     float64 `json:"value"`
}

// Scores holds the low and high weather score matrices for one event:
// rows are weather variables in configured order, columns are components.
type Scores struct {
	Low          *mat.Dense
	High         *mat.Dense
	Unclassified []Unclassified
}

// ScoreEvent converts each component's hourly series into (low, high) scores:
// the minimum and maximum of the series are classified independently. series
// maps a variable to per-component hourly values. NaN hours are ignored.
func ScoreEvent(series map[string][][]float64, variables []string, tables map[string]WeatherLevels, policy UnclassifiedPolicy) (Scores, error) {
	if len(variables) == 0 {
		return Scores{}, domain.NewConfigurationError("weather", "no weather variables configured")
	}
	components := -1
	for _, name := range variables {
		rows, ok := series[name]
		if !ok {
			return Scores{}, fmt.Errorf("%w: missing series for weather variable %q", domain.ErrInvalidEvent, name)
		}
		if components >= 0 && len(rows) != components {
			return Scores{}, fmt.Errorf("%w: variable %q has %d components, want %d", domain.ErrInvalidEvent, name, len(rows), components)
		}
		components = len(rows)
	}
	if components == 0 {
		return Scores{}, fmt.Errorf("%w: no components in weather series", domain.ErrInvalidEvent)
	}

	scores := Scores{
		Low:  mat.NewDense(len(variables), components, nil),
		High: mat.NewDense(len(variables), components, nil),
	}
	for i, name := range variables {
		table, ok := tables[name]
		if !ok {
			return Scores{}, domain.NewConfigurationError("weather."+name, "no level table for weather variable")
		}
		for c, hours := range series[name] {
			lo, hi, ok := seriesExtremes(hours)
			if !ok {
				return Scores{}, fmt.Errorf("%w: variable %q component %d has no observations", domain.ErrInvalidEvent, name, c)
			}
			for _, bound := range []struct {
				value float64
				dst   *mat.Dense
			}{{lo, scores.Low}, {hi, scores.High}} {
				score, ok := table.Score(bound.value)
				if !ok {
					scores.Unclassified = append(scores.Unclassified, Unclassified{Variable: name, Component: c, Value: bound.value})
					if policy != PolicyClamp {
						return scores, fmt.Errorf("%w: %s=%g at component %d", domain.ErrUnclassifiedWeather, name, bound.value, c)
					}
					score = table.clamp(bound.value)
				}
				bound.dst.Set(i, c, score)
			}
		}
	}
	return scores, nil
}

func seriesExtremes(values []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		ok = true
	}
	return lo, hi, ok
}
