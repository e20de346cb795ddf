// Package dag orders pipeline stages by their file dependencies.
// Nodes keep the order they were added in, and every traversal that
// has a choice follows that order, so a run is reproducible from the
// configuration alone.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

// CycleError reports a dependency cycle. Path starts and ends at the
// same node.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "cycle detected: " + strings.Join(e.Path, " -> ")
}

// Graph is a directed graph of named nodes carrying a value.
type Graph[T any] struct {
	order   []string
	data    map[string]T
	edges   map[string][]string // parent -> children (dependents)
	parents map[string][]string // child -> parents (dependencies)
}

// NewGraph creates a new empty graph.
func NewGraph[T any]() *Graph[T] {
	return &Graph[T]{
		data:    make(map[string]T),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node, or replaces the value of an existing one.
func (g *Graph[T]) AddNode(id string, v T) {
	if _, ok := g.data[id]; !ok {
		g.order = append(g.order, id)
	}
	g.data[id] = v
}

// AddEdge records that child depends on parent.
func (g *Graph[T]) AddEdge(parent, child string) error {
	if _, ok := g.data[parent]; !ok {
		return fmt.Errorf("parent node %q does not exist", parent)
	}
	if _, ok := g.data[child]; !ok {
		return fmt.Errorf("child node %q does not exist", child)
	}
	if parent == child {
		return &CycleError{Path: []string{parent, parent}}
	}
	if !slices.Contains(g.edges[parent], child) {
		g.edges[parent] = append(g.edges[parent], child)
		g.parents[child] = append(g.parents[child], parent)
	}
	return nil
}

// Node returns the value stored for id.
func (g *Graph[T]) Node(id string) (T, bool) {
	v, ok := g.data[id]
	return v, ok
}

// Nodes returns the node ids in insertion order.
func (g *Graph[T]) Nodes() []string {
	return slices.Clone(g.order)
}

// Parents returns the direct dependencies of id.
func (g *Graph[T]) Parents(id string) []string {
	return slices.Clone(g.parents[id])
}

// Children returns the direct dependents of id.
func (g *Graph[T]) Children(id string) []string {
	return slices.Clone(g.edges[id])
}

// Len returns the number of nodes.
func (g *Graph[T]) Len() int { return len(g.order) }

// EdgeCount returns the number of edges.
func (g *Graph[T]) EdgeCount() int {
	n := 0
	for _, c := range g.edges {
		n += len(c)
	}
	return n
}

// FindCycle returns a cycle if the graph has one.
func (g *Graph[T]) FindCycle() *CycleError {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(g.order))
	var stack []string

	var dfs func(id string) *CycleError
	dfs = func(id string) *CycleError {
		state[id] = active
		stack = append(stack, id)
		for _, c := range g.edges[id] {
			switch state[c] {
			case active:
				start := slices.Index(stack, c)
				path := append(slices.Clone(stack[start:]), c)
				return &CycleError{Path: path}
			case unvisited:
				if err := dfs(c); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	for _, id := range g.order {
		if state[id] == unvisited {
			if err := dfs(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// TopologicalSort returns the node ids with every dependency before its
// dependents. Among nodes that are ready at the same time the one added
// first comes first.
func (g *Graph[T]) TopologicalSort() ([]string, error) {
	if err := g.FindCycle(); err != nil {
		return nil, err
	}

	indegree := make(map[string]int, len(g.order))
	for _, id := range g.order {
		indegree[id] = len(g.parents[id])
	}
	rank := make(map[string]int, len(g.order))
	for i, id := range g.order {
		rank[id] = i
	}

	var ready, out []string
	for _, id := range g.order {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		out = append(out, id)
		for _, c := range g.edges[id] {
			indegree[c]--
			if indegree[c] == 0 {
				ready = append(ready, c)
			}
		}
		slices.SortFunc(ready, func(a, b string) int { return rank[a] - rank[b] })
	}
	return out, nil
}

// Downstream returns ids together with everything that depends on them,
// in insertion order. Unknown ids are ignored.
func (g *Graph[T]) Downstream(ids ...string) []string {
	return g.closure(ids, g.edges)
}

// Upstream returns ids together with everything they depend on, in
// insertion order. Unknown ids are ignored.
func (g *Graph[T]) Upstream(ids ...string) []string {
	return g.closure(ids, g.parents)
}

func (g *Graph[T]) closure(ids []string, next map[string][]string) []string {
	seen := make(map[string]bool)
	var mark func(id string)
	mark = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, n := range next[id] {
			mark(n)
		}
	}
	for _, id := range ids {
		if _, ok := g.data[id]; ok {
			mark(id)
		}
	}

	out := make([]string, 0, len(seen))
	for _, id := range g.order {
		if seen[id] {
			out = append(out, id)
		}
	}
	return out
}

// Roots returns nodes without dependencies, in insertion order.
func (g *Graph[T]) Roots() []string {
	var out []string
	for _, id := range g.order {
		if len(g.parents[id]) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// Subgraph returns a graph holding only ids and the edges between them.
func (g *Graph[T]) Subgraph(ids []string) *Graph[T] {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}

	sub := NewGraph[T]()
	for _, id := range g.order {
		if keep[id] {
			sub.AddNode(id, g.data[id])
		}
	}
	for _, id := range sub.order {
		for _, c := range g.edges[id] {
			if keep[c] {
				_ = sub.AddEdge(id, c)
			}
		}
	}
	return sub
}
