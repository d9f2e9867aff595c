// Package peel finds the 2-core of a small-arity hypergraph and records
// the order in which the remaining edges were peeled away.
//
// An edge is peelable when one of its vertices is touched by no other
// live edge. Peeling it leaves that vertex "owned" by the edge. Replaying
// the removals in reverse order visits every peeled edge at a moment when
// the vertex it owned is still unassigned by all edges replayed earlier.
package peel

import (
	"fmt"
)

// Hypergraph has vertices [0, NumVertices) and one hyperedge per entry of
// Edges. Vertices within an edge must be distinct.
type Hypergraph struct {
	NumVertices int
	Edges       [][]int
}

// NewHypergraph validates edges against numVertices.
func NewHypergraph(numVertices int, edges [][]int) (*Hypergraph, error) {
	for i, e := range edges {
		for j, v := range e {
			if v < 0 || v >= numVertices {
				return nil, fmt.Errorf("edge %d vertex %d out of range [0, %d)", i, v, numVertices)
			}
			for _, u := range e[:j] {
				if u == v {
					return nil, fmt.Errorf("edge %d repeats vertex %d", i, v)
				}
			}
		}
	}
	return &Hypergraph{NumVertices: numVertices, Edges: edges}, nil
}

// Removal is one peeled edge and the vertex it owned when removed.
type Removal struct {
	Edge   int
	Vertex int
}

// Result partitions the edges into the 2-core and the removal stack.
type Result struct {
	// Core holds the indices of edges that could not be peeled, ascending.
	Core []int
	// Removed lists peeled edges in removal order.
	Removed []Removal
}

// Finder computes the 2-core of a hypergraph.
type Finder interface {
	FindCore(g *Hypergraph) Result
}

// TwoCoreFinder peels from a queue of degree-one vertices. Each vertex
// enters the queue when its degree drops to one, so the total work is
// linear in the size of the graph.
type TwoCoreFinder struct{}

func (TwoCoreFinder) FindCore(g *Hypergraph) Result {
	degree := make([]int, g.NumVertices)
	incident := make([][]int, g.NumVertices)
	for e, vs := range g.Edges {
		for _, v := range vs {
			degree[v]++
			incident[v] = append(incident[v], e)
		}
	}

	queue := make([]int, 0, g.NumVertices)
	for v, d := range degree {
		if d == 1 {
			queue = append(queue, v)
		}
	}

	removed := make([]bool, len(g.Edges))
	stack := make([]Removal, 0, len(g.Edges))
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		if degree[v] != 1 {
			continue
		}
		e := -1
		for _, candidate := range incident[v] {
			if !removed[candidate] {
				e = candidate
				break
			}
		}
		removed[e] = true
		stack = append(stack, Removal{Edge: e, Vertex: v})
		for _, u := range g.Edges[e] {
			degree[u]--
			if degree[u] == 1 {
				queue = append(queue, u)
			}
		}
	}
	return Result{Core: survivors(removed), Removed: stack}
}

// SingletonFinder repeatedly sweeps the edge list and peels every edge
// that currently has a singleton vertex, stopping after a sweep that
// peels nothing.
type SingletonFinder struct{}

func (SingletonFinder) FindCore(g *Hypergraph) Result {
	degree := make([]int, g.NumVertices)
	for _, vs := range g.Edges {
		for _, v := range vs {
			degree[v]++
		}
	}

	removed := make([]bool, len(g.Edges))
	stack := make([]Removal, 0, len(g.Edges))
	for changed := true; changed; {
		changed = false
		for e, vs := range g.Edges {
			if removed[e] {
				continue
			}
			owner := -1
			for _, v := range vs {
				if degree[v] == 1 {
					owner = v
					break
				}
			}
			if owner < 0 {
				continue
			}
			removed[e] = true
			stack = append(stack, Removal{Edge: e, Vertex: owner})
			for _, v := range vs {
				degree[v]--
			}
			changed = true
		}
	}
	return Result{Core: survivors(removed), Removed: stack}
}

func survivors(removed []bool) []int {
	core := make([]int, 0)
	for e, gone := range removed {
		if !gone {
			core = append(core, e)
		}
	}
	return core
}

// CoreVertices returns the distinct vertices touched by the core edges,
// ascending.
func CoreVertices(g *Hypergraph, core []int) []int {
	seen := make([]bool, g.NumVertices)
	count := 0
	for _, e := range core {
		for _, v := range g.Edges[e] {
			if !seen[v] {
				seen[v] = true
				count++
			}
		}
	}
	out := make([]int, 0, count)
	for v, ok := range seen {
		if ok {
			out = append(out, v)
		}
	}
	return out
}

// Verify checks that r partitions the edges of g, that the core has no
// vertex of degree one, and that every removal owned a vertex touched by
// no edge that was still live at that point.
func Verify(g *Hypergraph, r Result) error {
	status := make([]int, len(g.Edges)) // 0 unseen, 1 core, 2 removed
	for _, e := range r.Core {
		if e < 0 || e >= len(g.Edges) || status[e] != 0 {
			return fmt.Errorf("core edge %d invalid or repeated", e)
		}
		status[e] = 1
	}
	for _, rm := range r.Removed {
		if rm.Edge < 0 || rm.Edge >= len(g.Edges) || status[rm.Edge] != 0 {
			return fmt.Errorf("removed edge %d invalid or repeated", rm.Edge)
		}
		status[rm.Edge] = 2
	}
	for e, s := range status {
		if s == 0 {
			return fmt.Errorf("edge %d neither in core nor removed", e)
		}
	}

	// Live edges at the time of each removal are the core plus every edge
	// removed later.
	degree := make([]int, g.NumVertices)
	for _, e := range r.Core {
		for _, v := range g.Edges[e] {
			degree[v]++
		}
	}
	for _, v := range degree {
		if v == 1 {
			return fmt.Errorf("core still has a vertex of degree one")
		}
	}
	for i := len(r.Removed) - 1; i >= 0; i-- {
		rm := r.Removed[i]
		owns := false
		for _, v := range g.Edges[rm.Edge] {
			if v == rm.Vertex {
				owns = true
			}
		}
		if !owns {
			return fmt.Errorf("removal %d: vertex %d not on edge %d", i, rm.Vertex, rm.Edge)
		}
		if degree[rm.Vertex] != 0 {
			return fmt.Errorf("removal %d: vertex %d shared with %d live edges", i, rm.Vertex, degree[rm.Vertex])
		}
		for _, v := range g.Edges[rm.Edge] {
			degree[v]++
		}
	}
	return nil
}
