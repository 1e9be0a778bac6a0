package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/katalvlaran/lvlath/graph/algorithms"
	"github.com/katalvlaran/lvlath/graph/core"
)

// network mirrors g in a directed lvlath graph keyed by decimal node id.
// With reverse set every edge points the other way.
func (g Graph) network(reverse bool) *core.Graph {
	net := core.NewGraph(true, false)
	for _, n := range g.Nodes {
		net.AddVertex(&core.Vertex{ID: vertexID(n.ID), Metadata: map[string]interface{}{"op": n.Op}})
	}
	for _, e := range g.Edges {
		from, to := vertexID(e.From), vertexID(e.To)
		if reverse {
			from, to = to, from
		}
		net.AddEdge(from, to, 0)
	}
	return net
}

func vertexID(id NodeID) string {
	return strconv.Itoa(int(id))
}

func parseVertexID(id string) (NodeID, error) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return NoNode, fmt.Errorf("%w: vertex %q", ErrMissingNode, id)
	}
	return NodeID(n), nil
}

// reach lists the nodes reachable from start, start included. Backward walks
// follow edges against their direction.
func (g Graph) reach(start NodeID, backward bool) (map[NodeID]bool, error) {
	res, err := algorithms.BFS(g.network(backward), vertexID(start), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %d: %v", ErrMissingNode, start, err)
	}
	seen := make(map[NodeID]bool, len(res.Visited))
	for id := range res.Visited {
		n, err := parseVertexID(id)
		if err != nil {
			return nil, err
		}
		seen[n] = true
	}
	return seen, nil
}

// checkAcyclic runs a depth-first search from every unexplored node and fails
// on the first edge back into the current path.
func (g Graph) checkAcyclic() error {
	net := g.network(false)
	explored := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		start := vertexID(n.ID)
		if explored[start] {
			continue
		}
		onPath := make(map[string]bool)
		res, err := algorithms.DFS(net, start, &algorithms.DFSOptions{
			OnVisit: func(v *core.Vertex, _ int) error {
				onPath[v.ID] = true
				for _, next := range net.Neighbors(v.ID) {
					if onPath[next.ID] {
						return fmt.Errorf("%w: %s->%s", ErrCycle, v.ID, next.ID)
					}
				}
				return nil
			},
			OnExit: func(v *core.Vertex, _ int) {
				delete(onPath, v.ID)
			},
		})
		if err != nil {
			return err
		}
		for id := range res.Visited {
			explored[id] = true
		}
	}
	return nil
}

func inDegrees(net *core.Graph) map[string]int {
	out := make(map[string]int, len(net.Vertices()))
	for _, e := range net.Edges() {
		out[e.To.ID]++
	}
	return out
}

// canonicalOrder is a topological order whose ties are broken by structure
// before id: op name first, then the labels of the already ordered
// predecessors. Two ready nodes that agree on both fall back to id order.
func (g Graph) canonicalOrder() ([]NodeID, error) {
	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}
	ops := make(map[NodeID]string, len(g.Nodes))
	for _, n := range g.Nodes {
		ops[n.ID] = n.Op
	}
	indeg := make(map[NodeID]int, len(g.Nodes))
	for _, e := range g.Edges {
		indeg[e.To]++
	}
	label := make(map[NodeID]int, len(g.Nodes))
	signature := func(id NodeID) string {
		preds := g.Predecessors(id)
		labels := make([]int, 0, len(preds))
		for _, p := range preds {
			labels = append(labels, label[p])
		}
		sort.Ints(labels)
		var b strings.Builder
		b.WriteString(ops[id])
		for _, l := range labels {
			fmt.Fprintf(&b, ",%d", l)
		}
		return b.String()
	}

	ready := make([]NodeID, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if indeg[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}
	order := make([]NodeID, 0, len(g.Nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			si, sj := signature(ready[i]), signature(ready[j])
			if si != sj {
				return si < sj
			}
			return ready[i] < ready[j]
		})
		id := ready[0]
		ready = ready[1:]
		label[id] = len(order)
		order = append(order, id)
		for _, next := range g.Successors(id) {
			indeg[next]--
			if indeg[next] == 0 {
				ready = append(ready, next)
			}
		}
	}
	return order, nil
}
