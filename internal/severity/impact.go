package severity

import "gonum.org/v1/gonum/floats"

// Range is a configured (min, max) pair for a feature's mean or standard deviation.
type Range struct {
	Min float64 `json:"min" mapstructure:"min"`
	Max float64 `json:"max" mapstructure:"max"`
}

// Table maps a feature name to its per-level values; index 0 holds level 1.
type Table map[string][]float64

// At returns the value of feature at the 1-based level.
func (t Table) At(feature string, level int) (float64, bool) {
	values, ok := t[feature]
	if !ok || level < 1 || level > len(values) {
		return 0, false
	}
	return values[level-1], true
}

// BuildLevels returns n evenly spaced values from minValue to maxValue inclusive.
func BuildLevels(minValue, maxValue float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{minValue}
	}
	out := floats.Span(make([]float64, n), minValue, maxValue)
	out[n-1] = maxValue
	return out
}

// BuildImpactTable interpolates each feature's configured range over levels+1
// points and drops the first, so levels 1..levels map to the remaining values.
// Mean and std features are independent: a feature present in only one input
// appears only in the matching output table.
func BuildImpactTable(std, mean map[string]Range, levels int) (meanTable, stdTable Table) {
	return buildTable(mean, levels), buildTable(std, levels)
}

func buildTable(ranges map[string]Range, levels int) Table {
	t := make(Table, len(ranges))
	for feature, r := range ranges {
		points := BuildLevels(r.Min, r.Max, levels+1)
		if len(points) > 0 {
			points = points[1:]
		}
		t[feature] = points
	}
	return t
}
