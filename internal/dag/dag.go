// SPDX-License-Identifier: MPL-2.0

// Package dag provides the directed graph used to order local path
// dependencies. Nodes are keyed by the resolved manifest path of a crate and
// edges point from a dependent crate to the crate it depends on.
package dag

import (
	"fmt"
	"strings"
)

type (
	// CycleError indicates that the graph contains a cycle. Cycle lists the
	// nodes along the cycle in traversal order, starting and ending with the
	// same node.
	CycleError struct {
		Cycle []string
	}

	// Graph is a directed graph with deterministic iteration order.
	Graph struct {
		// adjacency maps each node to the nodes it points at.
		adjacency map[string][]string
		// nodes tracks all nodes in insertion order.
		nodes   []string
		nodeSet map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		nodeSet:   make(map[string]bool),
	}
}

// AddNode adds a node to the graph. Adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge adds a directed edge from -> to. Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	for _, existing := range g.adjacency[from] {
		if existing == to {
			return
		}
	}
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Has reports whether the node exists.
func (g *Graph) Has(name string) bool {
	return g.nodeSet[name]
}

// Successors returns the nodes that name points at, in insertion order.
func (g *Graph) Successors(name string) []string {
	return append([]string(nil), g.adjacency[name]...)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// TopologicalSort returns an order in which every node appears before the
// nodes it points at (Kahn's algorithm). Nodes at the same level keep their
// insertion order. Returns CycleError if the graph is cyclic.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = 0
	}
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[neighbor]++
		}
	}

	queue := make([]string, 0, len(g.nodes))
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(result) != len(g.nodes) {
		if cycle := g.FindCycle(); cycle != nil {
			return nil, &CycleError{Cycle: cycle}
		}
		var remaining []string
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				remaining = append(remaining, node)
			}
		}
		return nil, &CycleError{Cycle: remaining}
	}

	return result, nil
}

// FindCycle returns the first cycle reachable in insertion order, or nil when
// the graph is acyclic. The returned slice starts and ends with the same node.
func (g *Graph) FindCycle() []string {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(node string) []string
	visit = func(node string) []string {
		state[node] = onStack
		stack = append(stack, node)
		for _, next := range g.adjacency[node] {
			switch state[next] {
			case onStack:
				for i, n := range stack {
					if n == next {
						cycle := append([]string(nil), stack[i:]...)
						return append(cycle, next)
					}
				}
			case unvisited:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[node] = done
		return nil
	}

	for _, node := range g.nodes {
		if state[node] != unvisited {
			continue
		}
		if cycle := visit(node); cycle != nil {
			return cycle
		}
	}
	return nil
}
