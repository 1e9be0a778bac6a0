package graph

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// NoNode marks the input/output slots of an empty graph.
const NoNode NodeID = -1

var (
	ErrCycle          = errors.New("graph contains a cycle")
	ErrOrphanNode     = errors.New("non-input node has no predecessors")
	ErrUnreachable    = errors.New("node is not on an input to output path")
	ErrMissingNode    = errors.New("graph references an unknown node")
	ErrInputHasParent = errors.New("input node has predecessors")
)

type NodeID int

// Node is one cell operation in the phenotype. Gene and Position record the
// genotype slot the node was decoded from.
type Node struct {
	ID       NodeID `json:"id" yaml:"id"`
	Op       string `json:"op" yaml:"op"`
	Gene     int    `json:"gene" yaml:"gene"`
	Position int    `json:"position" yaml:"position"`
}

type Edge struct {
	From NodeID `json:"from" yaml:"from"`
	To   NodeID `json:"to" yaml:"to"`
}

// Graph is a directed computation graph with one designated input node and one
// designated output node. The zero-node graph is the identity phenotype: data
// passes through unchanged.
//
// Graph values are never mutated in place; every helper returns a new value.
type Graph struct {
	Nodes  []Node `json:"nodes" yaml:"nodes"`
	Edges  []Edge `json:"edges" yaml:"edges"`
	Input  NodeID `json:"input" yaml:"input"`
	Output NodeID `json:"output" yaml:"output"`
}

func Empty() Graph {
	return Graph{Input: NoNode, Output: NoNode}
}

// Single returns the one-node graph where n is both input and output.
func Single(n Node) Graph {
	return Graph{Nodes: []Node{n}, Input: n.ID, Output: n.ID}
}

func (g Graph) IsEmpty() bool {
	return len(g.Nodes) == 0
}

func (g Graph) Len() int {
	return len(g.Nodes)
}

func (g Graph) Node(id NodeID) (Node, bool) {
	idx := sort.Search(len(g.Nodes), func(i int) bool { return g.Nodes[i].ID >= id })
	if idx < len(g.Nodes) && g.Nodes[idx].ID == id {
		return g.Nodes[idx], true
	}
	return Node{}, false
}

func (g Graph) HasEdge(from, to NodeID) bool {
	for _, e := range g.Edges {
		if e.From == from && e.To == to {
			return true
		}
	}
	return false
}

func (g Graph) Successors(id NodeID) []NodeID {
	out := make([]NodeID, 0, 2)
	for _, e := range g.Edges {
		if e.From == id {
			out = append(out, e.To)
		}
	}
	return out
}

func (g Graph) Predecessors(id NodeID) []NodeID {
	out := make([]NodeID, 0, 2)
	for _, e := range g.Edges {
		if e.To == id {
			out = append(out, e.From)
		}
	}
	return out
}

func (g Graph) InDegree(id NodeID) int {
	n := 0
	for _, e := range g.Edges {
		if e.To == id {
			n++
		}
	}
	return n
}

// Union merges the node and edge sets of a and b. The result keeps a's input
// and b's output; callers are expected to connect the two halves.
func Union(a, b Graph) Graph {
	out := Graph{
		Nodes:  make([]Node, 0, len(a.Nodes)+len(b.Nodes)),
		Edges:  make([]Edge, 0, len(a.Edges)+len(b.Edges)),
		Input:  a.Input,
		Output: b.Output,
	}
	out.Nodes = append(out.Nodes, a.Nodes...)
	out.Nodes = append(out.Nodes, b.Nodes...)
	out.Edges = append(out.Edges, a.Edges...)
	out.Edges = append(out.Edges, b.Edges...)
	return out.normalize()
}

// WithEdge returns a copy of g with from->to added. Existing edges are not
// duplicated.
func (g Graph) WithEdge(from, to NodeID) Graph {
	out := g.clone()
	if !out.HasEdge(from, to) {
		out.Edges = append(out.Edges, Edge{From: from, To: to})
	}
	return out.normalize()
}

// Chain feeds a's output into b's input. Empty operands are the identity.
func Chain(a, b Graph) Graph {
	if a.IsEmpty() {
		return b.clone()
	}
	if b.IsEmpty() {
		return a.clone()
	}
	return Union(a, b).WithEdge(a.Output, b.Input)
}

// Validate checks the phenotype invariants: acyclic, every non-input node has
// a predecessor, and every node lies on some input to output path.
func (g Graph) Validate() error {
	if g.IsEmpty() {
		return nil
	}
	if _, ok := g.Node(g.Input); !ok {
		return fmt.Errorf("%w: input %d", ErrMissingNode, g.Input)
	}
	if _, ok := g.Node(g.Output); !ok {
		return fmt.Errorf("%w: output %d", ErrMissingNode, g.Output)
	}
	for _, e := range g.Edges {
		if _, ok := g.Node(e.From); !ok {
			return fmt.Errorf("%w: edge %d->%d", ErrMissingNode, e.From, e.To)
		}
		if _, ok := g.Node(e.To); !ok {
			return fmt.Errorf("%w: edge %d->%d", ErrMissingNode, e.From, e.To)
		}
	}
	if err := g.checkAcyclic(); err != nil {
		return err
	}
	indeg := inDegrees(g.network(false))
	for _, n := range g.Nodes {
		deg := indeg[vertexID(n.ID)]
		if n.ID == g.Input {
			if deg != 0 {
				return fmt.Errorf("%w: %d", ErrInputHasParent, n.ID)
			}
			continue
		}
		if deg == 0 {
			return fmt.Errorf("%w: %d (%s)", ErrOrphanNode, n.ID, n.Op)
		}
	}
	forward, err := g.reach(g.Input, false)
	if err != nil {
		return err
	}
	backward, err := g.reach(g.Output, true)
	if err != nil {
		return err
	}
	for _, n := range g.Nodes {
		if !forward[n.ID] || !backward[n.ID] {
			return fmt.Errorf("%w: %d (%s)", ErrUnreachable, n.ID, n.Op)
		}
	}
	return nil
}

// Prune drops every node that does not lie on an input to output path,
// together with its edges.
func (g Graph) Prune() Graph {
	if g.IsEmpty() {
		return Empty()
	}
	if _, ok := g.Node(g.Input); !ok {
		return Empty()
	}
	if _, ok := g.Node(g.Output); !ok {
		return Empty()
	}
	forward, err := g.reach(g.Input, false)
	if err != nil || !forward[g.Output] {
		return Empty()
	}
	backward, err := g.reach(g.Output, true)
	if err != nil {
		return Empty()
	}

	out := Graph{Input: g.Input, Output: g.Output}
	for _, n := range g.Nodes {
		if forward[n.ID] && backward[n.ID] {
			out.Nodes = append(out.Nodes, n)
		}
	}
	for _, e := range g.Edges {
		if forward[e.From] && backward[e.From] && forward[e.To] && backward[e.To] {
			out.Edges = append(out.Edges, e)
		}
	}
	return out.normalize()
}

// TopologicalOrder returns node ids in dependency order. Ties are broken by
// ascending id so the order is deterministic.
func (g Graph) TopologicalOrder() ([]NodeID, error) {
	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}
	indeg := make(map[NodeID]int, len(g.Nodes))
	for _, n := range g.Nodes {
		indeg[n.ID] = 0
	}
	for _, e := range g.Edges {
		indeg[e.To]++
	}
	ready := make([]NodeID, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if indeg[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}

	order := make([]NodeID, 0, len(g.Nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, next := range g.Successors(id) {
			indeg[next]--
			if indeg[next] == 0 {
				ready = append(ready, next)
			}
		}
	}
	if len(order) != len(g.Nodes) {
		return nil, ErrCycle
	}
	return order, nil
}

// Equal reports structural identity: same nodes, same edges, same endpoints.
func (g Graph) Equal(h Graph) bool {
	if g.IsEmpty() || h.IsEmpty() {
		return g.IsEmpty() && h.IsEmpty()
	}
	if g.Input != h.Input || g.Output != h.Output {
		return false
	}
	if len(g.Nodes) != len(h.Nodes) || len(g.Edges) != len(h.Edges) {
		return false
	}
	for i := range g.Nodes {
		if g.Nodes[i] != h.Nodes[i] {
			return false
		}
	}
	for i := range g.Edges {
		if g.Edges[i] != h.Edges[i] {
			return false
		}
	}
	return true
}

// Fingerprint digests the graph shape with nodes relabelled in canonical
// topological order, so renumbered copies of a graph and parallel branches
// listed in either order share a fingerprint. Isomorphic graphs can still
// differ when two interchangeable-looking ready nodes lead to different
// subgraphs; the digest is a cache key, not an isomorphism test.
func (g Graph) Fingerprint() string {
	if g.IsEmpty() {
		return "identity"
	}
	order, err := g.canonicalOrder()
	if err != nil {
		order = make([]NodeID, 0, len(g.Nodes))
		for _, n := range g.Nodes {
			order = append(order, n.ID)
		}
	}
	label := make(map[NodeID]int, len(order))
	for i, id := range order {
		label[id] = i
	}

	parts := make([]string, 0, len(g.Nodes)+len(g.Edges)+1)
	parts = append(parts, fmt.Sprintf("io=%d>%d", label[g.Input], label[g.Output]))
	for _, id := range order {
		n, _ := g.Node(id)
		parts = append(parts, fmt.Sprintf("n%d:%s", label[id], n.Op))
	}
	edges := make([]string, 0, len(g.Edges))
	for _, e := range g.Edges {
		edges = append(edges, fmt.Sprintf("e%d>%d", label[e.From], label[e.To]))
	}
	sort.Strings(edges)
	parts = append(parts, edges...)

	digest := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(digest[:8])
}

// Ops counts nodes per operation name.
func (g Graph) Ops() map[string]int {
	out := make(map[string]int)
	for _, n := range g.Nodes {
		out[n.Op]++
	}
	return out
}

// Depth is the number of nodes on the longest input to output path.
func (g Graph) Depth() int {
	if g.IsEmpty() {
		return 0
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return 0
	}
	longest := make(map[NodeID]int, len(order))
	best := 0
	for _, id := range order {
		d := 1
		for _, p := range g.Predecessors(id) {
			if longest[p]+1 > d {
				d = longest[p] + 1
			}
		}
		longest[id] = d
		if d > best {
			best = d
		}
	}
	return best
}

func (g Graph) clone() Graph {
	return Graph{
		Nodes:  append([]Node(nil), g.Nodes...),
		Edges:  append([]Edge(nil), g.Edges...),
		Input:  g.Input,
		Output: g.Output,
	}
}

func (g Graph) normalize() Graph {
	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })
	sort.Slice(g.Edges, func(i, j int) bool {
		if g.Edges[i].From == g.Edges[j].From {
			return g.Edges[i].To < g.Edges[j].To
		}
		return g.Edges[i].From < g.Edges[j].From
	})
	edges := g.Edges[:0]
	for _, e := range g.Edges {
		if len(edges) > 0 && edges[len(edges)-1] == e {
			continue
		}
		edges = append(edges, e)
	}
	g.Edges = edges
	if len(g.Nodes) == 0 {
		g.Input, g.Output = NoNode, NoNode
	}
	return g
}
