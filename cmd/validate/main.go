// Command validate performs offline checks of a deployment's inputs before
// the service is started against them: the model configuration, the network
// snapshot and its dependency graph, the coverage of the configured weather
// windows over a set of events, and the sanity of the resulting assessments.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -model configs/model.yaml \
//	  -network data/mock/network.json \
//	  -events data/mock/weather_events.json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/storm-outage-risk/internal/config"
	"github.com/couchcryptid/storm-outage-risk/internal/domain"
	"github.com/couchcryptid/storm-outage-risk/internal/engine"
	"github.com/couchcryptid/storm-outage-risk/internal/fusion"
	"github.com/couchcryptid/storm-outage-risk/internal/observability"
	"github.com/couchcryptid/storm-outage-risk/internal/probability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// probabilityTolerance absorbs rounding of fused impacts to three decimals.
const probabilityTolerance = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name     string
	errors   []string
	warnings []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// inputs holds everything loaded from disk. A nil field means loading failed
// and the phases depending on it are skipped.
type inputs struct {
	model    *config.Model
	modelErr error
	network  *domain.Network
	events   []domain.WeatherEvent
}

func main() {
	modelPath := flag.String("model", "", "path to the model configuration file")
	networkPath := flag.String("network", "", "path to the network snapshot JSON")
	eventsPath := flag.String("events", "", "path to a JSON array of weather events")
	workers := flag.Int("workers", 4, "concurrent assessments")
	flag.Parse()

	if *modelPath == "" || *networkPath == "" || *eventsPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*modelPath, *networkPath, *eventsPath, *workers); code != 0 {
		os.Exit(code)
	}
}

func run(modelPath, networkPath, eventsPath string, workers int) int {
	// Set a fixed clock matching genmock for ID reproducibility.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	fmt.Println("=== Outage Risk Input Validation ===")
	fmt.Println()

	in, load := loadInputs(modelPath, networkPath, eventsPath)

	phases := []*phase{
		load,
		validateModel(in.model, in.modelErr),
		validateNetwork(in.network, in.model),
		validateWeatherCoverage(in.events, in.network, in.model),
		validateAssessments(in, workers),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	if in.network != nil {
		fmt.Println()
		fmt.Printf("Network %s: %d nodes, %d edges; %d events\n",
			in.network.ID, len(in.network.Nodes), len(in.network.Edges), len(in.events))
	}

	for _, p := range phases {
		if len(p.errors) == 0 && len(p.warnings) == 0 {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
		for _, w := range p.warnings {
			fmt.Printf("  (warning) %s\n", w)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// loadInputs reads the three input files concurrently.
func loadInputs(modelPath, networkPath, eventsPath string) (inputs, *phase) {
	p := &phase{name: "Load inputs"}
	var (
		in                          inputs
		modelErr, netErr, eventsErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		in.model, modelErr = config.LoadModel(modelPath)
		return nil
	})
	g.Go(func() error {
		var data []byte
		data, netErr = os.ReadFile(networkPath)
		if netErr == nil {
			in.network, netErr = domain.ParseNetwork(data)
		}
		return nil
	})
	g.Go(func() error {
		in.events, eventsErr = loadEvents(eventsPath)
		return nil
	})
	_ = g.Wait()

	in.modelErr = modelErr
	// A configuration error is reported by the model phase.
	var cfgErr *domain.ConfigurationError
	if modelErr != nil && !errors.As(modelErr, &cfgErr) {
		p.errorf("model %s: %v", modelPath, modelErr)
	}
	if netErr != nil {
		p.errorf("network %s: %v", networkPath, netErr)
	}
	if eventsErr != nil {
		p.errorf("events %s: %v", eventsPath, eventsErr)
	}
	return in, p
}

func loadEvents(path string) ([]domain.WeatherEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	events := make([]domain.WeatherEvent, 0, len(raw))
	for i, r := range raw {
		event, err := domain.ParseWeatherEvent(r)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, event)
	}
	return events, nil
}

// ── Phase 1: Model configuration ──

func validateModel(model *config.Model, loadErr error) *phase {
	p := &phase{name: "Model configuration"}
	if loadErr != nil {
		p.errorf("%v", loadErr)
		return p
	}
	if model.Policy() == fusion.PolicyClamp {
		p.warnf("unclassified weather is clamped into the outer windows")
	}
	return p
}

// ── Phase 2: Network and dependency graph ──

func validateNetwork(network *domain.Network, model *config.Model) *phase {
	p := &phase{name: "Network and dependency graph"}
	if network == nil {
		p.errorf("network could not be loaded")
		return p
	}

	links := make([]probability.Link, len(network.Edges))
	for i, e := range network.Edges {
		links[i] = probability.Link{Source: e.Source, Target: e.Target, Edge: e.Num}
	}
	graph, err := probability.NewGraph(len(network.Nodes), len(network.Edges), links)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	fmt.Printf("Dependency graph depth: %d\n", graph.Depth())

	if model == nil {
		return p
	}
	for _, f := range model.Nodes.Features {
		if _, missing, ok := network.NodeFeature(f.Name); !ok {
			p.errorf("node %d has no %q feature", missing, f.Name)
		}
	}
	for _, f := range model.Edges.Features {
		if _, missing, ok := network.EdgeFeature(f.Name); !ok {
			p.errorf("edge %d has no %q feature", missing, f.Name)
		}
	}
	return p
}

// ── Phase 3: Weather coverage ──

// validateWeatherCoverage compares the global extremes of every variable
// across all events with the configured windows. Under the reject policy an
// out-of-range reading fails its event, so it is an error here too.
func validateWeatherCoverage(events []domain.WeatherEvent, network *domain.Network, model *config.Model) *phase {
	p := &phase{name: "Weather coverage"}
	if events == nil || model == nil {
		p.errorf("events or model could not be loaded")
		return p
	}

	series := make([]map[string][][]float64, 0, 2*len(events))
	for _, e := range events {
		if network != nil && len(e.NodeSeries) > 0 {
			for name, rows := range e.NodeSeries {
				if len(rows) != len(network.Nodes) {
					p.errorf("event %s: %s has %d node rows, network has %d nodes", e.ID, name, len(rows), len(network.Nodes))
				}
			}
		}
		series = append(series, domain.SeriesValues(e.NodeSeries), domain.SeriesValues(e.EdgeSeries))
	}
	extremes := fusion.Extremes(series...)

	report := p.warnf
	if model.Policy() == fusion.PolicyReject {
		report = p.errorf
	}
	for _, w := range model.Weather {
		r, ok := extremes[w.Name]
		if !ok {
			p.warnf("no event carries a %s series", w.Name)
			continue
		}
		fmt.Printf("  %-8s observed [%g, %g], configured [%g, %g]\n", w.Name, r.Min, r.Max, w.Min, w.Max)
		if r.Min < w.Min {
			report("%s: observed minimum %g is below the configured minimum %g", w.Name, r.Min, w.Min)
		}
		if r.Max > w.Max {
			report("%s: observed maximum %g is above the configured maximum %g", w.Name, r.Max, w.Max)
		}
	}
	for name := range extremes {
		if _, ok := model.WeatherTables()[name]; !ok {
			p.warnf("events carry %s, which the model does not use", name)
		}
	}
	return p
}

// ── Phase 4: Assessment sanity ──

func validateAssessments(in inputs, workers int) *phase {
	p := &phase{name: "Assessment sanity"}
	if in.model == nil || in.network == nil || in.events == nil {
		p.errorf("inputs could not be loaded")
		return p
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assessor, err := engine.NewAssessor(in.network, in.model, logger, observability.NewMetricsForTesting())
	if err != nil {
		p.errorf("%v", err)
		return p
	}

	assessments, err := assessor.AssessAll(context.Background(), in.events, workers)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	for _, a := range assessments {
		checkAssessment(p, a)
	}
	return p
}

func checkAssessment(p *phase, a domain.Assessment) {
	for _, n := range a.Nodes {
		checkBound(p, a.EventID, fmt.Sprintf("node %d", n.Num), n.Probability)
		checkBound(p, a.EventID, fmt.Sprintf("node %d own", n.Num), n.Own)
		if n.Probability.Low < n.Own.Low-probabilityTolerance || n.Probability.High < n.Own.High-probabilityTolerance {
			p.errorf("event %s: node %d propagated %v is below its own %v", a.EventID, n.Num, n.Probability, n.Own)
		}
	}
	for _, e := range a.Edges {
		checkBound(p, a.EventID, fmt.Sprintf("edge %d", e.Num), e.Probability)
	}
	if a.UnclassifiedValues > 0 {
		p.warnf("event %s: %d unclassified values", a.EventID, a.UnclassifiedValues)
	}
}

func checkBound(p *phase, eventID, what string, b domain.Bound) {
	for _, v := range []float64{b.Low, b.High} {
		if math.IsNaN(v) || v < -probabilityTolerance || v > 1+probabilityTolerance {
			p.errorf("event %s: %s probability %v outside [0, 1]", eventID, what, b)
			return
		}
	}
}
