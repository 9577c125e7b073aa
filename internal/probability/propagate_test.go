package probability

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/couchcryptid/storm-outage-risk/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func point(p float64) domain.Bound { return domain.Bound{Low: p, High: p} }

func chain(t *testing.T) *Graph {
	t.Helper()
	g, err := NewGraph(3, 2, []Link{
		{Source: 0, Target: 1, Edge: 0},
		{Source: 1, Target: 2, Edge: 1},
	})
	require.NoError(t, err)
	return g
}

func TestInclusionExclusion(t *testing.T) {
	assert.Equal(t, 0.0, InclusionExclusion(nil))
	assert.InDelta(t, 0.3, InclusionExclusion([]float64{0.3}), 1e-12)
	assert.InDelta(t, 0.44, InclusionExclusion([]float64{0.2, 0.3}), 1e-12)
	assert.InDelta(t, 0.316, InclusionExclusion([]float64{0.1, 0.2, 0.05}), 1e-12)
	assert.InDelta(t, 1.0, InclusionExclusion([]float64{1, 0.4, 0.7}), 1e-12)
	assert.InDelta(t, 0.0, InclusionExclusion([]float64{0, 0, 0}), 1e-12)
}

func TestInclusionExclusion_MatchesComplementProduct(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for _, n := range []int{1, 2, 3, 5, 8, 25} {
		p := make([]float64, n)
		q := 1.0
		for i := range p {
			p[i] = rng.Float64()
			q *= 1 - p[i]
		}
		assert.InDelta(t, 1-q, InclusionExclusion(p), 1e-9, "n=%d", n)
	}
}

func TestPropagate_Chain(t *testing.T) {
	nodes := []domain.Bound{point(0.1), point(0.2), point(0.1)}
	edges := []domain.Bound{point(0.05), point(0.05)}

	got, err := Propagate(nodes, edges, chain(t))
	require.NoError(t, err)

	assert.InDelta(t, 0.1, got[0].Low, 1e-12)
	assert.InDelta(t, 0.316, got[1].Low, 1e-9)
	assert.InDelta(t, 0.4152, got[2].Low, 1e-4)
	assert.InDelta(t, 0.41518, got[2].High, 1e-9)
}

func TestPropagate_BoundsIndependent(t *testing.T) {
	nodes := []domain.Bound{{Low: 0.1, High: 0.5}, {Low: 0, High: 0}}
	edges := []domain.Bound{{Low: 0, High: 0.5}}
	g, err := NewGraph(2, 1, []Link{{Source: 0, Target: 1, Edge: 0}})
	require.NoError(t, err)

	got, err := Propagate(nodes, edges, g)
	require.NoError(t, err)

	assert.InDelta(t, 0.1, got[1].Low, 1e-12)
	assert.InDelta(t, 0.75, got[1].High, 1e-12)
}

func TestPropagate_ZeroUpstreamLeavesChildUnchanged(t *testing.T) {
	nodes := []domain.Bound{point(0), point(0.3), point(0.6)}
	edges := []domain.Bound{point(0), point(0)}
	g, err := NewGraph(3, 2, []Link{
		{Source: 0, Target: 1, Edge: 0},
		{Source: 0, Target: 2, Edge: 1},
	})
	require.NoError(t, err)

	got, err := Propagate(nodes, edges, g)
	require.NoError(t, err)
	if diff := cmp.Diff(nodes, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Propagate mismatch (-want +got):\n%s", diff)
	}
}

func TestPropagate_MonotoneAndImmutable(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	const n = 40
	links := make([]Link, 0, n-1)
	for i := 1; i < n; i++ {
		links = append(links, Link{Source: rng.IntN(i), Target: i, Edge: i - 1})
	}
	g, err := NewGraph(n, n-1, links)
	require.NoError(t, err)

	nodes := make([]domain.Bound, n)
	for i := range nodes {
		lo := rng.Float64() * 0.5
		nodes[i] = domain.Bound{Low: lo, High: lo + rng.Float64()*0.5}
	}
	edges := make([]domain.Bound, n-1)
	for i := range edges {
		edges[i] = point(rng.Float64() * 0.1)
	}
	original := slices.Clone(nodes)

	got, err := Propagate(nodes, edges, g)
	require.NoError(t, err)
	again, err := Propagate(nodes, edges, g)
	require.NoError(t, err)

	assert.Equal(t, original, nodes, "inputs must not be modified")
	assert.Equal(t, got, again, "propagation must be deterministic")
	for i := range got {
		assert.GreaterOrEqual(t, got[i].Low, nodes[i].Low-1e-12)
		assert.GreaterOrEqual(t, got[i].High, nodes[i].High-1e-12)
		assert.LessOrEqual(t, got[i].High, 1.0)
		if p := g.Parent(i); p >= 0 {
			assert.GreaterOrEqual(t, got[i].Low, got[p].Low-1e-12, "node %d below its parent", i)
		}
	}
}

func TestPropagate_SizeMismatch(t *testing.T) {
	_, err := Propagate([]domain.Bound{point(0)}, nil, chain(t))
	require.ErrorIs(t, err, domain.ErrGraphIntegrity)
}

func TestNewGraph_Integrity(t *testing.T) {
	tests := []struct {
		name  string
		nodes int
		edges int
		links []Link
		node  int
		edge  int
	}{
		{"no nodes", 0, 0, nil, -1, -1},
		{"link count mismatch", 3, 2, []Link{{0, 1, 0}}, -1, -1},
		{"edge references missing node", 2, 1, []Link{{0, 5, 0}}, 5, 0},
		{"edge index out of range", 2, 1, []Link{{0, 1, 3}}, -1, 3},
		{"duplicate edge index", 3, 2, []Link{{0, 1, 0}, {0, 2, 0}}, -1, 0},
		{"root with parent", 2, 1, []Link{{1, 0, 0}}, 0, 0},
		{"self loop", 2, 1, []Link{{1, 1, 0}}, 1, 0},
		{"two parents", 3, 2, []Link{{0, 2, 0}, {1, 2, 1}}, 2, 1},
		{"cycle detached from root", 3, 2, []Link{{1, 2, 0}, {2, 1, 1}}, 1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGraph(tt.nodes, tt.edges, tt.links)
			require.ErrorIs(t, err, domain.ErrGraphIntegrity)

			var gErr *domain.GraphIntegrityError
			require.ErrorAs(t, err, &gErr)
			assert.Equal(t, tt.node, gErr.Node)
			assert.Equal(t, tt.edge, gErr.Edge)
		})
	}
}

func TestGraph_Shape(t *testing.T) {
	g := chain(t)

	assert.Equal(t, 3, g.Nodes())
	assert.Equal(t, 2, g.Edges())
	assert.Equal(t, -1, g.Parent(0))
	assert.Equal(t, 1, g.Parent(2))
	assert.Equal(t, 2, g.Depth())
}
