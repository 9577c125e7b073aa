// Command genmock generates a synthetic radial feeder network and a set of
// weather events shaped by a model configuration, plus the assessments the
// engine produces for them. The output is deterministic for a given seed so
// the fixtures can be checked in and diffed.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -model configs/model.yaml \
//	  -nodes 25 -events 6 -hours 24 -seed 7 \
//	  -network-out data/mock/network.json \
//	  -events-out data/mock/weather_events.json \
//	  -assessments-out data/mock/assessments.json \
//	  -impacts-out data/mock/impact_tables.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/couchcryptid/storm-outage-risk/internal/config"
	"github.com/couchcryptid/storm-outage-risk/internal/domain"
	"github.com/couchcryptid/storm-outage-risk/internal/engine"
	"github.com/couchcryptid/storm-outage-risk/internal/observability"
	"github.com/jonboulle/clockwork"
)

var baseDate = time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)

// Feature values are drawn from the manual bin range when one is configured,
// otherwise from this default.
const (
	defaultFeatureMin = 1.0
	defaultFeatureMax = 100.0
	// missingRate is the share of hourly readings emitted as null.
	missingRate = 0.02
)

type options struct {
	modelPath      string
	nodes          int
	events         int
	hours          int
	seed           uint64
	networkOut     string
	eventsOut      string
	assessmentsOut string
	impactsOut     string
}

// impactTables is the precomputed "(low, high)" impact form of one event,
// replayable as a weather event without series.
type impactTables struct {
	EventID     string              `json:"id"`
	BeginTime   time.Time           `json:"begin_time"`
	EndTime     time.Time           `json:"end_time"`
	NodeImpacts map[string][]string `json:"node_impacts"`
	EdgeImpacts map[string][]string `json:"edge_impacts,omitempty"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var o options
	flag.StringVar(&o.modelPath, "model", "configs/model.yaml", "model configuration file")
	flag.IntVar(&o.nodes, "nodes", 25, "number of network nodes, including the substation")
	flag.IntVar(&o.events, "events", 6, "number of weather events")
	flag.IntVar(&o.hours, "hours", 24, "hourly readings per event")
	flag.Uint64Var(&o.seed, "seed", 7, "random seed")
	flag.StringVar(&o.networkOut, "network-out", "", "output path for the network snapshot")
	flag.StringVar(&o.eventsOut, "events-out", "", "output path for the weather events")
	flag.StringVar(&o.assessmentsOut, "assessments-out", "", "optional output path for the assessments")
	flag.StringVar(&o.impactsOut, "impacts-out", "", "optional output path for per-event impact tables")
	flag.Parse()

	if o.networkOut == "" || o.eventsOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -network-out, -events-out")
	}
	if o.nodes < 1 || o.events < 1 || o.hours < 1 {
		return fmt.Errorf("-nodes, -events and -hours must be positive")
	}

	model, err := config.LoadModel(o.modelPath)
	if err != nil {
		return err
	}

	// Set a fixed clock for reproducible ProcessedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	rng := rand.New(rand.NewPCG(o.seed, o.seed^0x9e3779b97f4a7c15))

	network := generateNetwork(rng, model, o.nodes)
	if err := writeJSON(o.networkOut, network); err != nil {
		return fmt.Errorf("writing network: %w", err)
	}
	log.Printf("wrote network: %s (%d nodes, %d edges)", o.networkOut, len(network.Nodes), len(network.Edges))

	events := generateEvents(rng, model, network, o.events, o.hours)
	if err := writeJSON(o.eventsOut, events); err != nil {
		return fmt.Errorf("writing events: %w", err)
	}
	log.Printf("wrote events: %s (%d events)", o.eventsOut, len(events))

	if o.assessmentsOut == "" && o.impactsOut == "" {
		return nil
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assessor, err := engine.NewAssessor(network, model, logger, observability.NewMetricsForTesting())
	if err != nil {
		return err
	}

	if o.impactsOut != "" {
		tables := make([]impactTables, len(events))
		for i, e := range events {
			nodes, edges, err := assessor.ImpactTables(e)
			if err != nil {
				return fmt.Errorf("fusing impacts: %w", err)
			}
			tables[i] = impactTables{EventID: e.ID, BeginTime: e.BeginTime, EndTime: e.EndTime, NodeImpacts: nodes, EdgeImpacts: edges}
		}
		if err := writeJSON(o.impactsOut, tables); err != nil {
			return fmt.Errorf("writing impact tables: %w", err)
		}
		log.Printf("wrote impact tables: %s", o.impactsOut)
	}

	if o.assessmentsOut == "" {
		return nil
	}
	assessments, err := assessor.AssessAll(context.Background(), events, 4)
	if err != nil {
		return fmt.Errorf("assessing events: %w", err)
	}
	if err := writeJSON(o.assessmentsOut, assessments); err != nil {
		return fmt.Errorf("writing assessments: %w", err)
	}
	log.Printf("wrote assessments: %s", o.assessmentsOut)

	printStats(assessments)
	return nil
}

// generateNetwork builds a radial tree: node i attaches to one of the three
// nodes numbered just below it, so depth grows with size like a feeder.
func generateNetwork(rng *rand.Rand, model *config.Model, n int) *domain.Network {
	network := &domain.Network{ID: fmt.Sprintf("mock-feeder-%d", n)}
	for i := range n {
		network.Nodes = append(network.Nodes, domain.Node{
			Num:      i,
			Name:     nodeName(i),
			Features: drawFeatures(rng, model.Nodes.Features),
		})
	}
	for i := 1; i < n; i++ {
		parent := max(0, i-1-rng.IntN(3))
		network.Edges = append(network.Edges, domain.Edge{
			Num:      i - 1,
			Name:     fmt.Sprintf("line-%d-%d", parent, i),
			Source:   parent,
			Target:   i,
			Features: drawFeatures(rng, model.Edges.Features),
		})
	}
	return network
}

func nodeName(i int) string {
	if i == 0 {
		return "substation"
	}
	return fmt.Sprintf("pole-%03d", i)
}

func drawFeatures(rng *rand.Rand, specs []config.FeatureSpec) map[string]float64 {
	out := make(map[string]float64, len(specs))
	for _, f := range specs {
		lo, hi := defaultFeatureMin, defaultFeatureMax
		if f.ManualMin != nil {
			lo = *f.ManualMin
		}
		if f.ManualMax != nil {
			hi = *f.ManualMax
		}
		out[f.Name] = round2(lo + rng.Float64()*(hi-lo))
	}
	return out
}

// generateEvents draws storms whose intensity rises and falls over the event
// window. Every reading stays inside the configured weather range.
func generateEvents(rng *rand.Rand, model *config.Model, network *domain.Network, count, hours int) []domain.WeatherEvent {
	events := make([]domain.WeatherEvent, count)
	for e := range events {
		begin := baseDate.Add(time.Duration(e*12) * time.Hour)
		peak := 0.3 + 0.7*rng.Float64()

		series := make(map[string][]domain.Hourly, len(model.Weather))
		for _, w := range model.Weather {
			rows := make([]domain.Hourly, len(network.Nodes))
			for i := range rows {
				// Nodes further from the substation see a slightly stronger storm.
				exposure := 0.8 + 0.4*float64(i)/float64(max(1, len(rows)-1))
				rows[i] = drawSeries(rng, w, peak*exposure, hours)
			}
			series[w.Name] = rows
		}

		events[e] = domain.WeatherEvent{
			ID:         fmt.Sprintf("storm-%s-%02d", begin.Format("20060102"), e),
			BeginTime:  begin,
			EndTime:    begin.Add(time.Duration(hours-1) * time.Hour),
			NodeSeries: series,
		}
	}
	return events
}

func drawSeries(rng *rand.Rand, w config.WeatherVariable, intensity float64, hours int) domain.Hourly {
	out := make(domain.Hourly, hours)
	span := w.Max - w.Min
	for h := range out {
		if rng.Float64() < missingRate {
			out[h] = math.NaN()
			continue
		}
		shape := math.Sin(math.Pi * float64(h+1) / float64(hours+1))
		v := w.Min + span*intensity*shape + rng.NormFloat64()*span*0.03
		out[h] = round2(min(w.Max, max(w.Min, v)))
	}
	// Keep at least one reading so every component has extremes.
	if !slices.ContainsFunc(out, func(v float64) bool { return !math.IsNaN(v) }) {
		out[0] = w.Min
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(assessments []domain.Assessment) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	for _, a := range assessments {
		var worst domain.NodeRisk
		for _, n := range a.Nodes {
			if n.Midpoint > worst.Midpoint {
				worst = n
			}
		}
		fmt.Printf("%s: nodes=%d edges=%d unclassified=%d worst=%s (%.3f)\n",
			a.EventID, len(a.Nodes), len(a.Edges), a.UnclassifiedValues, worst.Name, worst.Midpoint)
	}
}
