package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNetworkJSON = `{
  "id": "feeder-7",
  "nodes": [
    {"num": 2, "name": "n2", "features": {"elevation": 12.5}},
    {"num": 0, "name": "substation", "features": {"elevation": 30}},
    {"num": 1, "name": "n1", "features": {"elevation": 18}}
  ],
  "edges": [
    {"num": 1, "source": 1, "target": 2, "features": {"length": 0.4}},
    {"num": 0, "source": 0, "target": 1, "features": {"length": 1.2}}
  ]
}`

func TestParseNetwork(t *testing.T) {
	n, err := ParseNetwork([]byte(testNetworkJSON))
	require.NoError(t, err)

	assert.Equal(t, "feeder-7", n.ID)
	require.Len(t, n.Nodes, 3)
	assert.Equal(t, "substation", n.Nodes[0].Name)
	assert.Equal(t, "n2", n.Nodes[2].Name)
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, n.Endpoints())
}

func TestParseNetwork_InvalidJSON(t *testing.T) {
	_, err := ParseNetwork([]byte(`{"nodes": [`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse network")
}

func TestNetwork_NormalizeRejectsGaps(t *testing.T) {
	t.Run("node gap", func(t *testing.T) {
		n := &Network{Nodes: []Node{{Num: 0}, {Num: 2}}}
		err := n.Normalize()
		require.ErrorIs(t, err, ErrGraphIntegrity)

		var gErr *GraphIntegrityError
		require.ErrorAs(t, err, &gErr)
		assert.Equal(t, 2, gErr.Node)
	})

	t.Run("duplicate edge", func(t *testing.T) {
		n := &Network{Nodes: []Node{{Num: 0}, {Num: 1}}, Edges: []Edge{{Num: 0}, {Num: 0}}}
		err := n.Normalize()
		require.ErrorIs(t, err, ErrGraphIntegrity)
		assert.Contains(t, err.Error(), "edge 0")
	})
}

func TestNetwork_Features(t *testing.T) {
	n, err := ParseNetwork([]byte(testNetworkJSON))
	require.NoError(t, err)

	values, _, ok := n.NodeFeature("elevation")
	require.True(t, ok)
	assert.Equal(t, []float64{30, 18, 12.5}, values)

	values, _, ok = n.EdgeFeature("length")
	require.True(t, ok)
	assert.Equal(t, []float64{1.2, 0.4}, values)

	_, missing, ok := n.NodeFeature("vegetation")
	assert.False(t, ok)
	assert.Equal(t, 0, missing)
}

func TestGraphIntegrityError_Message(t *testing.T) {
	assert.Equal(t, "graph integrity: edge 3, node 5: edge references a missing node",
		(&GraphIntegrityError{Node: 5, Edge: 3, Reason: "edge references a missing node"}).Error())
	assert.Equal(t, "graph integrity: node 4: node unreachable from root",
		(&GraphIntegrityError{Node: 4, Edge: -1, Reason: "node unreachable from root"}).Error())
	assert.Equal(t, "graph integrity: network has no nodes",
		(&GraphIntegrityError{Node: -1, Edge: -1, Reason: "network has no nodes"}).Error())
}

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError("nodes.fusion.elevation", "weights sum to %g, want 1", 0.99)

	assert.Equal(t, "configuration: nodes.fusion.elevation: weights sum to 0.99, want 1", err.Error())
	assert.ErrorIs(t, err, ErrConfiguration)
}
