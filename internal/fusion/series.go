package fusion

import (
	"fmt"
	"math"

	"github.com/couchcryptid/storm-outage-risk/internal/domain"
	"github.com/couchcryptid/storm-outage-risk/internal/severity"
	"gonum.org/v1/gonum/floats"
)

// Extremes returns the global minimum and maximum of every weather variable
// across all given event series, ignoring NaN hours. Useful for choosing the
// global range of a WeatherLevels table.
func Extremes(events ...map[string][][]float64) map[string]severity.Range {
	out := make(map[string]severity.Range)
	for _, series := range events {
		for name, components := range series {
			for _, hours := range components {
				lo, hi, ok := seriesExtremes(hours)
				if !ok {
					continue
				}
				r, seen := out[name]
				if !seen {
					out[name] = severity.Range{Min: lo, Max: hi}
					continue
				}
				out[name] = severity.Range{Min: math.Min(r.Min, lo), Max: math.Max(r.Max, hi)}
			}
		}
	}
	return out
}

// EdgeSeriesFromNodes derives each edge's hourly series as the mean of its two
// endpoint nodes. endpoints[e] holds the (source, target) node indices of edge
// e. Endpoint series of unequal length are truncated to the shorter one.
func EdgeSeriesFromNodes(nodes [][]float64, endpoints [][2]int) ([][]float64, error) {
	out := make([][]float64, len(endpoints))
	for e, ends := range endpoints {
		for _, n := range ends {
			if n < 0 || n >= len(nodes) {
				return nil, fmt.Errorf("%w: edge %d references node %d without a series", domain.ErrInvalidEvent, e, n)
			}
		}
		src, dst := nodes[ends[0]], nodes[ends[1]]
		n := min(len(src), len(dst))
		mean := make([]float64, n)
		floats.AddTo(mean, src[:n], dst[:n])
		floats.Scale(0.5, mean)
		out[e] = mean
	}
	return out, nil
}
