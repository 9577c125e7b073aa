package severity

import (
	"errors"
	"fmt"
	"slices"
)

// DefaultLevels is the number of severity levels used when none is configured.
const DefaultLevels = 10

// DegenerateEpsilon widens a zero-width domain so every interval keeps a
// non-empty extent when all observed values are identical.
const DegenerateEpsilon = 1e-6

var (
	// ErrInvalidLevels is returned when the level count is below one.
	ErrInvalidLevels = errors.New("severity levels must be at least 1")
	// ErrNoValues is returned when there are no observations and no manual bounds to bin.
	ErrNoValues = errors.New("no values to bin")
)

// Interval is a closed range. Low may exceed High when the range is inverted.
type Interval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether v lies in the interval regardless of its direction.
func (iv Interval) Contains(v float64) bool {
	return (iv.Low <= v && v <= iv.High) || (iv.High <= v && v <= iv.Low)
}

// ForecastedRange is an ordered partition of a feature's domain into equal-width
// intervals. Index i holds severity level i+1.
type ForecastedRange []Interval

// BinOptions controls how BinRanges builds a ForecastedRange.
type BinOptions struct {
	// Inverted maps the largest raw value to level 1 (e.g. elevation, where
	// lower ground is more exposed).
	Inverted bool
	// Min and Max override the sample extremes when set.
	Min *float64
	Max *float64
}

// BinRanges partitions [min, max] of values into levels equal-width intervals.
func BinRanges(values []float64, levels int, opts BinOptions) (ForecastedRange, error) {
	if levels < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLevels, levels)
	}

	lo, hi, err := domainBounds(values, opts)
	if err != nil {
		return nil, err
	}
	if hi == lo {
		hi = lo + DegenerateEpsilon
	}

	start, end := lo, hi
	if opts.Inverted {
		start, end = hi, lo
	}
	width := (end - start) / float64(levels)

	r := make(ForecastedRange, levels)
	for i := range r {
		r[i] = Interval{
			Low:  start + float64(i)*width,
			High: start + float64(i+1)*width,
		}
	}
	r[levels-1].High = end
	return r, nil
}

func domainBounds(values []float64, opts BinOptions) (float64, float64, error) {
	var lo, hi float64
	switch {
	case opts.Min != nil && opts.Max != nil:
		lo, hi = *opts.Min, *opts.Max
	case len(values) == 0:
		return 0, 0, ErrNoValues
	default:
		lo, hi = slices.Min(values), slices.Max(values)
		if opts.Min != nil {
			lo = *opts.Min
		}
		if opts.Max != nil {
			hi = *opts.Max
		}
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi, nil
}

// Level returns the 1-based level of the first interval containing v. When no
// interval matches, ok is false and the highest level is returned.
func (r ForecastedRange) Level(v float64) (level int, ok bool) {
	for i, iv := range r {
		if iv.Contains(v) {
			return i + 1, true
		}
	}
	return len(r), false
}

// ClassifyLevel returns the severity level of v within r, falling back to the
// highest level for values outside every interval.
func ClassifyLevel(v float64, r ForecastedRange) int {
	level, _ := r.Level(v)
	return level
}
