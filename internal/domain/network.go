package domain

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Node is a bus of the distribution network.
type Node struct {
	Num      int                `json:"num"`
	Name     string             `json:"name,omitempty"`
	Features map[string]float64 `json:"features"`
}

// Edge is a line or transformer connecting Source to Target.
type Edge struct {
	Num      int                `json:"num"`
	Name     string             `json:"name,omitempty"`
	Source   int                `json:"source"`
	Target   int                `json:"target"`
	Features map[string]float64 `json:"features"`
}

// Network is a materialized snapshot of a radial distribution network with
// the physical features of every component. Node 0 is the substation.
type Network struct {
	ID    string `json:"id"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// ParseNetwork decodes a network snapshot and orders its components by num.
func ParseNetwork(data []byte) (*Network, error) {
	var n Network
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("parse network: %w", err)
	}
	if err := n.Normalize(); err != nil {
		return nil, err
	}
	return &n, nil
}

// Normalize sorts nodes and edges by num and checks that nums of each kind
// are exactly 0..len-1, so a component's num is also its index.
func (n *Network) Normalize() error {
	slices.SortFunc(n.Nodes, func(a, b Node) int { return a.Num - b.Num })
	slices.SortFunc(n.Edges, func(a, b Edge) int { return a.Num - b.Num })

	for i, node := range n.Nodes {
		if node.Num != i {
			return &GraphIntegrityError{Node: node.Num, Edge: -1, Reason: fmt.Sprintf("node nums must be 0..%d without gaps or duplicates", len(n.Nodes)-1)}
		}
	}
	for i, edge := range n.Edges {
		if edge.Num != i {
			return &GraphIntegrityError{Node: -1, Edge: edge.Num, Reason: fmt.Sprintf("edge nums must be 0..%d without gaps or duplicates", len(n.Edges)-1)}
		}
	}
	return nil
}

// Endpoints returns (source, target) for every edge, indexed by edge num.
func (n *Network) Endpoints() [][2]int {
	out := make([][2]int, len(n.Edges))
	for i, e := range n.Edges {
		out[i] = [2]int{e.Source, e.Target}
	}
	return out
}

// NodeFeature returns the values of feature across all nodes. ok is false if
// any node lacks it; missing reports the first such node.
func (n *Network) NodeFeature(feature string) (values []float64, missing int, ok bool) {
	values = make([]float64, len(n.Nodes))
	for i, node := range n.Nodes {
		v, found := node.Features[feature]
		if !found {
			return nil, node.Num, false
		}
		values[i] = v
	}
	return values, -1, true
}

// EdgeFeature returns the values of feature across all edges. ok is false if
// any edge lacks it; missing reports the first such edge.
func (n *Network) EdgeFeature(feature string) (values []float64, missing int, ok bool) {
	values = make([]float64, len(n.Edges))
	for i, edge := range n.Edges {
		v, found := edge.Features[feature]
		if !found {
			return nil, edge.Num, false
		}
		values[i] = v
	}
	return values, -1, true
}
