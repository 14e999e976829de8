// Package explain holds the directed graphs that plans render into for
// visualization and debugging, and the renderers for them.
//
// Graphs are built bottom-up: a leaf plan builds a small graph of its own, and
// a composite plan receives its children's finished graphs and links their
// roots to a new root node. Edges point from input to consumer, so the root
// is the node with no outgoing edges.
package explain

import (
	"encoding/json"
	"fmt"
	"maps"
)

// NodeKind distinguishes plan operators from the data they read.
type NodeKind int

const (
	// Operator is a plan node.
	Operator NodeKind = iota
	// Source is where an operator reads from, e.g. a key range.
	Source
)

func (k NodeKind) String() string {
	switch k {
	case Operator:
		return "operator"
	case Source:
		return "source"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k NodeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Node is one vertex. IDs are dense and assigned in insertion order.
type Node struct {
	ID      int               `json:"id"`
	Kind    NodeKind          `json:"kind"`
	Label   string            `json:"label"`
	Details map[string]string `json:"details,omitempty"`
}

// Edge points from an input node to the node consuming it.
type Edge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Graph is an immutable explain graph.
type Graph struct {
	Root  int    `json:"root"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// RootNode returns the root node.
func (g *Graph) RootNode() Node {
	return g.Nodes[g.Root]
}

// Inputs returns the IDs of nodes with an edge into id, in edge order.
func (g *Graph) Inputs(id int) []int {
	var in []int
	for _, e := range g.Edges {
		if e.To == id {
			in = append(in, e.From)
		}
	}
	return in
}

// ToJSON renders the graph as indented JSON.
func (g *Graph) ToJSON() ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}

// Builder assembles a Graph. It is not safe for concurrent use.
type Builder struct {
	nodes []Node
	edges []Edge
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddNode appends a node and returns its ID. details is copied.
func (b *Builder) AddNode(kind NodeKind, label string, details map[string]string) int {
	id := len(b.nodes)
	var d map[string]string
	if len(details) > 0 {
		d = maps.Clone(details)
	}
	b.nodes = append(b.nodes, Node{ID: id, Kind: kind, Label: label, Details: d})
	return id
}

// AddEdge links from -> to. Both IDs must already exist.
func (b *Builder) AddEdge(from, to int) {
	if from < 0 || from >= len(b.nodes) || to < 0 || to >= len(b.nodes) {
		panic(fmt.Sprintf("explain: edge %d -> %d references unknown node (have %d)", from, to, len(b.nodes)))
	}
	b.edges = append(b.edges, Edge{From: from, To: to})
}

// AddGraph copies g into the builder, renumbering its nodes, and returns the
// new ID of g's root.
func (b *Builder) AddGraph(g *Graph) int {
	offset := len(b.nodes)
	for _, n := range g.Nodes {
		b.AddNode(n.Kind, n.Label, n.Details)
	}
	for _, e := range g.Edges {
		b.edges = append(b.edges, Edge{From: e.From + offset, To: e.To + offset})
	}
	return g.Root + offset
}

// Build finishes the graph with root as its root node.
func (b *Builder) Build(root int) *Graph {
	if root < 0 || root >= len(b.nodes) {
		panic(fmt.Sprintf("explain: root %d out of range (have %d nodes)", root, len(b.nodes)))
	}
	return &Graph{
		Root:  root,
		Nodes: append([]Node(nil), b.nodes...),
		Edges: append([]Edge(nil), b.edges...),
	}
}
