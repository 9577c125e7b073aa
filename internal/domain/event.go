package domain

import (
	"context"
	"encoding/json"
	"math"
	"time"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Hourly is one component's time series for a weather variable. Missing
// hours are NaN in memory and null on the wire.
type Hourly []float64

func (h *Hourly) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Hourly, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	*h = out
	return nil
}

func (h Hourly) MarshalJSON() ([]byte, error) {
	raw := make([]*float64, len(h))
	for i := range h {
		if !math.IsNaN(h[i]) {
			raw[i] = &h[i]
		}
	}
	return json.Marshal(raw)
}

// WeatherEvent is one storm episode over the network. Components are either
// described by raw hourly series per weather variable (rows ordered by
// component num) or by a precomputed impact table whose cells are
// "(low, high)" strings. When both are present the impact table wins.
type WeatherEvent struct {
	ID        string    `json:"id"`
	BeginTime time.Time `json:"begin_time"`
	EndTime   time.Time `json:"end_time"`

	NodeSeries map[string][]Hourly `json:"node_series,omitempty"`
	// EdgeSeries is optional; when absent each edge averages its endpoints.
	EdgeSeries map[string][]Hourly `json:"edge_series,omitempty"`

	NodeImpacts map[string][]string `json:"node_impacts,omitempty"`
	EdgeImpacts map[string][]string `json:"edge_impacts,omitempty"`
}

// SeriesValues converts wire series into plain float slices keyed by variable.
func SeriesValues(series map[string][]Hourly) map[string][][]float64 {
	if series == nil {
		return nil
	}
	out := make(map[string][][]float64, len(series))
	for name, rows := range series {
		values := make([][]float64, len(rows))
		for i, row := range rows {
			values[i] = row
		}
		out[name] = values
	}
	return out
}

// NodeRisk is the assessed outage risk of one node.
type NodeRisk struct {
	Num  int    `json:"num"`
	Name string `json:"name,omitempty"`
	// Own is the node's probability before upstream risk is folded in.
	Own Bound `json:"own"`
	// Probability includes risk inherited from the path to the root.
	Probability Bound            `json:"probability"`
	Midpoint    float64          `json:"midpoint"`
	Levels      map[string]int   `json:"levels"`
	Impacts     map[string]Bound `json:"impacts"`
}

// EdgeRisk is the assessed outage risk of one edge.
type EdgeRisk struct {
	Num         int              `json:"num"`
	Name        string           `json:"name,omitempty"`
	Source      int              `json:"source"`
	Target      int              `json:"target"`
	Probability Bound            `json:"probability"`
	Midpoint    float64          `json:"midpoint"`
	Levels      map[string]int   `json:"levels"`
	Impacts     map[string]Bound `json:"impacts"`
}

// Assessment is the outage risk of every component of a network for one
// weather event.
type Assessment struct {
	ID        string    `json:"id"`
	NetworkID string    `json:"network_id"`
	EventID   string    `json:"event_id"`
	BeginTime time.Time `json:"begin_time"`
	EndTime   time.Time `json:"end_time"`

	Nodes []NodeRisk `json:"nodes"`
	Edges []EdgeRisk `json:"edges"`

	// UnclassifiedValues counts feature and weather values that fell outside
	// every configured interval.
	UnclassifiedValues int       `json:"unclassified_values"`
	ProcessedAt        time.Time `json:"processed_at"`
}
