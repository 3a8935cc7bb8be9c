package swriter

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/BareMetalEngine/bm-core-sub001/internal/rtti"
)

// node adapts a discovered object's writer-assigned index to gonum's
// graph.Node, mirroring internal/batch's package node type.
type node struct {
	id  int64
	obj rtti.Object
}

func (n *node) ID() int64 { return n.id }

// Diagnostics reports whether the strong-reference subgraph a Write
// pass discovered is acyclic, and a topological visitation order when
// it is. Index-based dedup already makes cycles safe to encode and
// decode, so this is purely an aid for debugging tools, not something
// Write itself consults.
type Diagnostics struct {
	Acyclic  bool
	Order    []rtti.Object
	Cycles   [][]rtti.Object
}

// BuildDiagnostics builds the graph from payloads' objects and the
// caller-supplied edges function, not from the recorded pointer
// opcodes. An edge to an object that is not among payloads is dropped,
// and so is an edge from an object to itself, so a self-reference is
// not reported as a cycle. It can be called any time after Write;
// spec section 4.D's writer never needs this graph for correctness.
func BuildDiagnostics(payloads []ObjectPayload, edges func(rtti.Object) []rtti.Object) Diagnostics {
	g := simple.NewDirectedGraph()
	nodes := make(map[rtti.Object]*node, len(payloads))
	for _, p := range payloads {
		n := &node{id: int64(p.Index), obj: p.Object}
		nodes[p.Object] = n
		g.AddNode(n)
	}
	for _, p := range payloads {
		from := nodes[p.Object]
		for _, target := range edges(p.Object) {
			to, ok := nodes[target]
			if !ok {
				continue
			}
			if from.ID() == to.ID() {
				continue
			}
			g.SetEdge(simple.Edge{F: from, T: to})
		}
	}

	order, err := topo.Sort(g)
	if err == nil {
		return Diagnostics{Acyclic: true, Order: toObjects(order)}
	}
	unorderable, ok := err.(topo.Unorderable)
	if !ok {
		return Diagnostics{Acyclic: false}
	}
	cycles := make([][]rtti.Object, 0, len(unorderable))
	for _, cycle := range unorderable {
		cycles = append(cycles, toObjects(cycle))
	}
	return Diagnostics{Acyclic: false, Cycles: cycles}
}

func toObjects(nodes []graph.Node) []rtti.Object {
	out := make([]rtti.Object, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.(*node).obj)
	}
	return out
}
