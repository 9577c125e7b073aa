package probability

import (
	"fmt"
	"math"
	"math/bits"
	"slices"

	"github.com/couchcryptid/storm-outage-risk/internal/domain"
)

// maxExactEvents bounds the subset enumeration in InclusionExclusion.
const maxExactEvents = 20

// InclusionExclusion returns the probability that at least one of the
// independent events with probabilities p occurs:
//
//	Σ over non-empty subsets S of (-1)^(|S|+1) · Π_{i∈S} p_i
//
// Events are assumed independent. Above maxExactEvents the equivalent
// closed form 1 - Π(1 - p_i) is used.
func InclusionExclusion(p []float64) float64 {
	n := len(p)
	if n == 0 {
		return 0
	}
	if n > maxExactEvents {
		q := 1.0
		for _, v := range p {
			q *= 1 - v
		}
		return 1 - q
	}

	var total float64
	for mask := uint(1); mask < 1<<n; mask++ {
		term := 1.0
		for i := range n {
			if mask&(1<<i) != 0 {
				term *= p[i]
			}
		}
		if bits.OnesCount(mask)%2 == 1 {
			total += term
		} else {
			total -= term
		}
	}
	return math.Min(math.Max(total, 0), 1)
}

// Link is a directed edge of the network: Edge is the edge's index in the
// edge probability slice.
type Link struct {
	Source int
	Target int
	Edge   int
}

type child struct {
	node int
	edge int
}

// Graph is a radial dependency structure rooted at node 0, stored as an
// adjacency arena indexed by node id.
type Graph struct {
	children [][]child
	parent   []int
	order    []int
	edges    int
}

// NewGraph validates links and builds the adjacency arena. Every node must be
// reachable from node 0 through exactly one parent, and every edge index in
// [0, edges) must appear exactly once. Children keep the order of links.
func NewGraph(nodes, edges int, links []Link) (*Graph, error) {
	if nodes < 1 {
		return nil, &domain.GraphIntegrityError{Node: -1, Edge: -1, Reason: "network has no nodes"}
	}
	if len(links) != edges {
		return nil, &domain.GraphIntegrityError{Node: -1, Edge: -1,
			Reason: fmt.Sprintf("%d links for %d edges", len(links), edges)}
	}

	g := &Graph{
		children: make([][]child, nodes),
		parent:   make([]int, nodes),
		edges:    edges,
	}
	for i := range g.parent {
		g.parent[i] = -1
	}
	seenEdge := make([]bool, edges)

	for _, l := range links {
		if l.Edge < 0 || l.Edge >= edges {
			return nil, &domain.GraphIntegrityError{Node: -1, Edge: l.Edge, Reason: "edge index out of range"}
		}
		if seenEdge[l.Edge] {
			return nil, &domain.GraphIntegrityError{Node: -1, Edge: l.Edge, Reason: "duplicate edge index"}
		}
		seenEdge[l.Edge] = true

		for _, n := range []int{l.Source, l.Target} {
			if n < 0 || n >= nodes {
				return nil, &domain.GraphIntegrityError{Node: n, Edge: l.Edge, Reason: "edge references a missing node"}
			}
		}
		switch {
		case l.Source == l.Target:
			return nil, &domain.GraphIntegrityError{Node: l.Source, Edge: l.Edge, Reason: "self loop"}
		case l.Target == 0:
			return nil, &domain.GraphIntegrityError{Node: 0, Edge: l.Edge, Reason: "root node cannot have a parent"}
		case g.parent[l.Target] >= 0:
			return nil, &domain.GraphIntegrityError{Node: l.Target, Edge: l.Edge, Reason: "node has more than one parent"}
		}
		g.parent[l.Target] = l.Source
		g.children[l.Source] = append(g.children[l.Source], child{node: l.Target, edge: l.Edge})
	}

	g.order = make([]int, 0, nodes)
	visited := make([]bool, nodes)
	visited[0] = true
	queue := []int{0}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		g.order = append(g.order, n)
		// Single-parent links make a revisit impossible; cycles surface as
		// unreachable nodes below.
		for _, c := range g.children[n] {
			visited[c.node] = true
			queue = append(queue, c.node)
		}
	}
	if i := slices.Index(visited, false); i >= 0 {
		return nil, &domain.GraphIntegrityError{Node: i, Edge: -1, Reason: "node unreachable from root"}
	}
	return g, nil
}

// Nodes returns the number of nodes in the graph.
func (g *Graph) Nodes() int { return len(g.children) }

// Edges returns the number of edges in the graph.
func (g *Graph) Edges() int { return g.edges }

// Parent returns the parent of n, or -1 for the root.
func (g *Graph) Parent(n int) int { return g.parent[n] }

// Depth returns the number of edges between node 0 and the deepest node.
func (g *Graph) Depth() int {
	depth := make([]int, len(g.children))
	maxDepth := 0
	for _, n := range g.order {
		for _, c := range g.children[n] {
			depth[c.node] = depth[n] + 1
			maxDepth = max(maxDepth, depth[c.node])
		}
	}
	return maxDepth
}

// Propagate walks the graph breadth-first from node 0 and folds each parent's
// probability and the connecting edge's probability into the child:
//
//	child[j] = InclusionExclusion(parent[j], child[j], edge[j])
//
// for the low (j=0) and high (j=1) bounds. Each node is finalized once, after
// its parent. The inputs are not modified.
func Propagate(nodes, edges []domain.Bound, g *Graph) ([]domain.Bound, error) {
	if len(nodes) != g.Nodes() || len(edges) != g.Edges() {
		return nil, &domain.GraphIntegrityError{Node: -1, Edge: -1,
			Reason: fmt.Sprintf("got %d node and %d edge probabilities for a graph of %d nodes and %d edges",
				len(nodes), len(edges), g.Nodes(), g.Edges())}
	}

	out := slices.Clone(nodes)
	for _, n := range g.order {
		for _, c := range g.children[n] {
			parent, own, edge := out[n], out[c.node], edges[c.edge]
			var folded [2]float64
			for j := range folded {
				folded[j] = InclusionExclusion([]float64{parent.Component(j), own.Component(j), edge.Component(j)})
			}
			out[c.node] = domain.Bound{Low: folded[0], High: folded[1]}
		}
	}
	return out, nil
}
