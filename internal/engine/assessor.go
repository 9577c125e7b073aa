package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-outage-risk/internal/config"
	"github.com/couchcryptid/storm-outage-risk/internal/domain"
	"github.com/couchcryptid/storm-outage-risk/internal/fusion"
	"github.com/couchcryptid/storm-outage-risk/internal/observability"
	"github.com/couchcryptid/storm-outage-risk/internal/probability"
	"github.com/couchcryptid/storm-outage-risk/internal/severity"
	"golang.org/x/sync/errgroup"
)

// component bundles the per-kind model and its precomputed inputs.
type component struct {
	model   *probability.Model
	weights fusion.Weights
	// values[i] holds the feature values of component i, aligned with model.Features.
	values [][]float64
}

// Assessor evaluates weather events against one network. Forecasted ranges
// and impact tables are built once in NewAssessor; Assess is safe for
// concurrent use.
type Assessor struct {
	network   *domain.Network
	variables []string
	weather   map[string]fusion.WeatherLevels
	policy    fusion.UnclassifiedPolicy
	nodes     component
	edges     component
	graph     *probability.Graph
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewAssessor validates the model against the network and precomputes
// everything that does not depend on the weather. It fails with a
// *domain.ConfigurationError or *domain.GraphIntegrityError before any event
// is processed.
func NewAssessor(network *domain.Network, model *config.Model, logger *slog.Logger, metrics *observability.Metrics) (*Assessor, error) {
	if err := model.Validate(); err != nil {
		return nil, err
	}

	links := make([]probability.Link, len(network.Edges))
	for i, e := range network.Edges {
		links[i] = probability.Link{Source: e.Source, Target: e.Target, Edge: e.Num}
	}
	graph, err := probability.NewGraph(len(network.Nodes), len(network.Edges), links)
	if err != nil {
		return nil, fmt.Errorf("network %s: %w", network.ID, err)
	}

	nodes, err := buildComponent(probability.Node, model.Nodes, model.Levels, len(network.Nodes), network.NodeFeature)
	if err != nil {
		return nil, err
	}
	edges, err := buildComponent(probability.Edge, model.Edges, model.Levels, len(network.Edges), network.EdgeFeature)
	if err != nil {
		return nil, err
	}

	metrics.NetworkComponents.WithLabelValues("node").Set(float64(len(network.Nodes)))
	metrics.NetworkComponents.WithLabelValues("edge").Set(float64(len(network.Edges)))
	logger.Info("assessor ready",
		"network_id", network.ID,
		"nodes", len(network.Nodes),
		"edges", len(network.Edges),
		"depth", graph.Depth(),
		"levels", model.Levels,
	)

	return &Assessor{
		network:   network,
		variables: model.Variables(),
		weather:   model.WeatherTables(),
		policy:    model.Policy(),
		nodes:     nodes,
		edges:     edges,
		graph:     graph,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

type featureLookup func(feature string) ([]float64, int, bool)

func buildComponent(kind probability.Kind, spec config.ComponentSpec, levels, count int, lookup featureLookup) (component, error) {
	features := spec.FeatureNames()
	meanTable, stdTable := severity.BuildImpactTable(spec.StdRanges(), spec.MeanRanges(), levels)
	m := &probability.Model{
		Kind:     kind,
		Features: features,
		Ranges:   make(map[string]severity.ForecastedRange, len(features)),
		Mean:     meanTable,
		Std:      stdTable,
	}

	values := make([][]float64, count)
	for i := range values {
		values[i] = make([]float64, len(features))
	}
	for j, f := range spec.Features {
		column, missing, ok := lookup(f.Name)
		if !ok {
			return component{}, domain.NewConfigurationError(
				fmt.Sprintf("%ss.features.%s", kind, f.Name), "%s %d has no value for the feature", kind, missing)
		}
		if count == 0 {
			continue
		}
		r, err := severity.BinRanges(column, levels, f.BinOptions())
		if err != nil {
			return component{}, domain.NewConfigurationError(fmt.Sprintf("%ss.features.%s", kind, f.Name), "%v", err)
		}
		m.Ranges[f.Name] = r
		for i, v := range column {
			values[i][j] = v
		}
	}
	if count > 0 {
		if err := m.Validate(); err != nil {
			return component{}, err
		}
	}
	return component{model: m, weights: spec.Weights(), values: values}, nil
}

// Network returns the network this assessor evaluates.
func (a *Assessor) Network() *domain.Network { return a.network }

// Assess computes the outage risk of every component for one weather event.
func (a *Assessor) Assess(ctx context.Context, event domain.WeatherEvent) (domain.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Assessment{}, err
	}
	start := time.Now()
	logger := a.logger.With("event_id", event.ID, "network_id", a.network.ID)

	nodeImpacts, nodeUnclassified, err := a.nodeImpacts(event)
	a.recordUnclassified("node", "weather", nodeUnclassified, logger)
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("event %s nodes: %w", event.ID, err)
	}
	edgeImpacts, edgeUnclassified, err := a.edgeImpacts(event)
	a.recordUnclassified("edge", "weather", edgeUnclassified, logger)
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("event %s edges: %w", event.ID, err)
	}

	nodeEst, err := a.estimate(a.nodes, nodeImpacts, len(a.network.Nodes), logger)
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("event %s nodes: %w", event.ID, err)
	}
	edgeEst, err := a.estimate(a.edges, edgeImpacts, len(a.network.Edges), logger)
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("event %s edges: %w", event.ID, err)
	}

	own := make([]domain.Bound, len(nodeEst))
	for i, e := range nodeEst {
		own[i] = e.Probability
	}
	edgeProb := make([]domain.Bound, len(edgeEst))
	for i, e := range edgeEst {
		edgeProb[i] = e.Probability
	}
	propagated, err := probability.Propagate(own, edgeProb, a.graph)
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("event %s: %w", event.ID, err)
	}

	nodes := make([]domain.NodeRisk, len(a.network.Nodes))
	unclassified := len(nodeUnclassified) + len(edgeUnclassified)
	for i, n := range a.network.Nodes {
		nodes[i] = domain.NodeRisk{
			Num:         n.Num,
			Name:        n.Name,
			Own:         own[i],
			Probability: propagated[i],
			Midpoint:    propagated[i].Midpoint(),
			Levels:      levelMap(a.nodes.model.Features, nodeEst[i].Levels),
			Impacts:     impactMap(nodeImpacts, i),
		}
		unclassified += len(nodeEst[i].Fallbacks)
		a.metrics.ComponentRisk.WithLabelValues("node").Observe(nodes[i].Midpoint)
	}
	edges := make([]domain.EdgeRisk, len(a.network.Edges))
	for i, e := range a.network.Edges {
		edges[i] = domain.EdgeRisk{
			Num:         e.Num,
			Name:        e.Name,
			Source:      e.Source,
			Target:      e.Target,
			Probability: edgeProb[i],
			Midpoint:    edgeProb[i].Midpoint(),
			Levels:      levelMap(a.edges.model.Features, edgeEst[i].Levels),
			Impacts:     impactMap(edgeImpacts, i),
		}
		unclassified += len(edgeEst[i].Fallbacks)
		a.metrics.ComponentRisk.WithLabelValues("edge").Observe(edges[i].Midpoint)
	}

	assessment := domain.NewAssessment(a.network.ID, event, nodes, edges)
	assessment.UnclassifiedValues = unclassified
	a.metrics.AssessmentDuration.Observe(time.Since(start).Seconds())
	logger.Debug("event assessed", "unclassified_values", unclassified, "duration", time.Since(start))
	return assessment, nil
}

// AssessAll assesses events concurrently on at most workers goroutines.
// Results keep the order of events; the first error cancels the rest.
func (a *Assessor) AssessAll(ctx context.Context, events []domain.WeatherEvent, workers int) ([]domain.Assessment, error) {
	out := make([]domain.Assessment, len(events))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i := range events {
		g.Go(func() error {
			assessment, err := a.Assess(ctx, events[i])
			if err != nil {
				return err
			}
			out[i] = assessment
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ImpactTables returns the fused node and edge impacts of event in the
// "(low, high)" cell format accepted as node_impacts and edge_impacts.
func (a *Assessor) ImpactTables(event domain.WeatherEvent) (nodes, edges map[string][]string, err error) {
	nodeImpacts, _, err := a.nodeImpacts(event)
	if err != nil {
		return nil, nil, fmt.Errorf("event %s nodes: %w", event.ID, err)
	}
	edgeImpacts, _, err := a.edgeImpacts(event)
	if err != nil {
		return nil, nil, fmt.Errorf("event %s edges: %w", event.ID, err)
	}
	return domain.FormatImpactTable(nodeImpacts), domain.FormatImpactTable(edgeImpacts), nil
}

func (a *Assessor) nodeImpacts(event domain.WeatherEvent) (map[string][]domain.Bound, []fusion.Unclassified, error) {
	if len(event.NodeImpacts) > 0 {
		impacts, err := domain.ParseImpactTable(event.NodeImpacts)
		return impacts, nil, err
	}
	return a.fuse(domain.SeriesValues(event.NodeSeries), a.nodes.weights)
}

func (a *Assessor) edgeImpacts(event domain.WeatherEvent) (map[string][]domain.Bound, []fusion.Unclassified, error) {
	switch {
	case len(event.EdgeImpacts) > 0:
		impacts, err := domain.ParseImpactTable(event.EdgeImpacts)
		return impacts, nil, err
	case len(a.network.Edges) == 0:
		return map[string][]domain.Bound{}, nil, nil
	case len(event.EdgeSeries) > 0:
		return a.fuse(domain.SeriesValues(event.EdgeSeries), a.edges.weights)
	case len(event.NodeSeries) == 0:
		return nil, nil, fmt.Errorf("%w: no edge_impacts, edge_series or node_series to derive edges from", domain.ErrInvalidEvent)
	}

	derived := make(map[string][][]float64, len(a.variables))
	endpoints := a.network.Endpoints()
	for name, rows := range domain.SeriesValues(event.NodeSeries) {
		series, err := fusion.EdgeSeriesFromNodes(rows, endpoints)
		if err != nil {
			return nil, nil, err
		}
		derived[name] = series
	}
	return a.fuse(derived, a.edges.weights)
}

func (a *Assessor) fuse(series map[string][][]float64, weights fusion.Weights) (map[string][]domain.Bound, []fusion.Unclassified, error) {
	scores, err := fusion.ScoreEvent(series, a.variables, a.weather, a.policy)
	if err != nil {
		return nil, scores.Unclassified, err
	}
	impacts, err := fusion.FuseBounds(weights, scores)
	return impacts, scores.Unclassified, err
}

func (a *Assessor) estimate(c component, impacts map[string][]domain.Bound, count int, logger *slog.Logger) ([]probability.Estimate, error) {
	features := c.model.Features
	for _, f := range features {
		if got := len(impacts[f]); got != count {
			return nil, fmt.Errorf("%w: feature %s has impacts for %d components, want %d", domain.ErrInvalidEvent, f, got, count)
		}
	}

	kind := c.model.Kind.String()
	out := make([]probability.Estimate, count)
	low := make([]float64, len(features))
	high := make([]float64, len(features))
	for i := range out {
		for j, f := range features {
			low[j], high[j] = impacts[f][i].Low, impacts[f][i].High
		}
		est, err := c.model.ComponentProbability(c.values[i], low, high)
		if err != nil {
			return nil, fmt.Errorf("%s %d: %w", kind, i, err)
		}
		if len(est.Fallbacks) > 0 {
			a.metrics.UnclassifiedValues.WithLabelValues(kind, "feature").Add(float64(len(est.Fallbacks)))
			logger.Debug("feature value outside forecasted range", "kind", kind, "num", i, "features", est.Fallbacks)
		}
		out[i] = est
	}
	return out, nil
}

func (a *Assessor) recordUnclassified(kind, source string, values []fusion.Unclassified, logger *slog.Logger) {
	if len(values) == 0 {
		return
	}
	a.metrics.UnclassifiedValues.WithLabelValues(kind, source).Add(float64(len(values)))
	logger.Debug("weather value outside level windows", "kind", kind, "count", len(values), "first", values[0])
}

func levelMap(features []string, levels []int) map[string]int {
	out := make(map[string]int, len(features))
	for i, f := range features {
		out[f] = levels[i]
	}
	return out
}

func impactMap(impacts map[string][]domain.Bound, i int) map[string]domain.Bound {
	out := make(map[string]domain.Bound, len(impacts))
	for f, column := range impacts {
		if i < len(column) {
			out[f] = column[i]
		}
	}
	return out
}
