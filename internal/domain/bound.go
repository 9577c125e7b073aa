package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Bound is a (low, high) pair: a fused impact interval or a probability interval.
type Bound struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Midpoint returns (Low+High)/2.
func (b Bound) Midpoint() float64 {
	return (b.Low + b.High) / 2
}

// Component returns the low bound for j == 0 and the high bound otherwise.
func (b Bound) Component(j int) float64 {
	if j == 0 {
		return b.Low
	}
	return b.High
}

// ParseBoundCell parses an impact table cell of the form "(low, high)".
func ParseBoundCell(s string) (Bound, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "(")
	trimmed = strings.TrimSuffix(trimmed, ")")

	lowStr, highStr, ok := strings.Cut(trimmed, ",")
	if !ok {
		return Bound{}, fmt.Errorf("%w: impact cell %q is not a (low, high) pair", ErrInvalidEvent, s)
	}
	low, err := parseImpactValue(lowStr)
	if err != nil {
		return Bound{}, fmt.Errorf("%w: impact cell %q: %v", ErrInvalidEvent, s, err)
	}
	high, err := parseImpactValue(highStr)
	if err != nil {
		return Bound{}, fmt.Errorf("%w: impact cell %q: %v", ErrInvalidEvent, s, err)
	}
	return Bound{Low: low, High: high}, nil
}

// parseImpactValue parses one side of a cell. ParseFloat accepts "nan" and
// "inf", which have no meaning as an impact.
func parseImpactValue(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("value %q is not finite", strings.TrimSpace(s))
	}
	return v, nil
}

// FormatBoundCell renders b in the "(low, high)" cell format.
func FormatBoundCell(b Bound) string {
	return "(" + strconv.FormatFloat(b.Low, 'f', -1, 64) + ", " + strconv.FormatFloat(b.High, 'f', -1, 64) + ")"
}
