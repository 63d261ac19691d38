// Package graph implements a minimal directed workflow engine: named
// nodes transform a shared state value, unconditional and conditional
// edges decide the next node, and Compile validates the topology before
// anything runs. The engine itself performs no I/O; all side effects
// belong to the node functions.
package graph

import (
	"context"
	"fmt"
)

// NodeFunc transforms the pipeline state. It returns the updated state,
// or an error to fail the run at this node.
type NodeFunc[S any] func(ctx context.Context, st S) (S, error)

// RouteKey is a routing decision produced by a RouterFunc. Each pipeline
// declares its keys as a closed constant set so that every conditional
// mapping can be checked against registered nodes at compile time.
type RouteKey string

// RouterFunc inspects the state and picks the outgoing route. It must be
// pure: no side effects, no external calls.
type RouterFunc[S any] func(st S) RouteKey

type conditionalEdge[S any] struct {
	router  RouterFunc[S]
	mapping map[RouteKey]string
}

// Graph is the mutable builder. Register nodes and edges, set the entry
// and finish points, then Compile into an immutable Runnable.
type Graph[S any] struct {
	nodes       map[string]NodeFunc[S]
	edges       map[string]string
	conditional map[string]conditionalEdge[S]
	entry       string
	finish      string

	// build errors are collected and surfaced by Compile, so call sites
	// can chain registrations without per-call checks (the graph shape
	// is static configuration, not runtime input).
	errs []error
}

func New[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:       make(map[string]NodeFunc[S]),
		edges:       make(map[string]string),
		conditional: make(map[string]conditionalEdge[S]),
	}
}

// AddNode registers a named node. Names must be unique.
func (g *Graph[S]) AddNode(name string, fn NodeFunc[S]) *Graph[S] {
	if name == "" {
		g.errs = append(g.errs, fmt.Errorf("graph: empty node name"))
		return g
	}
	if _, dup := g.nodes[name]; dup {
		g.errs = append(g.errs, fmt.Errorf("graph: duplicate node %q", name))
		return g
	}
	if fn == nil {
		g.errs = append(g.errs, fmt.Errorf("graph: nil func for node %q", name))
		return g
	}
	g.nodes[name] = fn
	return g
}

// AddEdge registers an unconditional transition from -> to.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	if _, dup := g.edges[from]; dup {
		g.errs = append(g.errs, fmt.Errorf("graph: node %q already has an edge", from))
		return g
	}
	if _, dup := g.conditional[from]; dup {
		g.errs = append(g.errs, fmt.Errorf("graph: node %q already has conditional edges", from))
		return g
	}
	g.edges[from] = to
	return g
}

// AddConditionalEdges registers a router on from. The router's result is
// resolved through mapping; every mapping target must be a registered
// node, which Compile enforces.
func (g *Graph[S]) AddConditionalEdges(from string, router RouterFunc[S], mapping map[RouteKey]string) *Graph[S] {
	if router == nil || len(mapping) == 0 {
		g.errs = append(g.errs, fmt.Errorf("graph: conditional edges on %q need a router and a non-empty mapping", from))
		return g
	}
	if _, dup := g.edges[from]; dup {
		g.errs = append(g.errs, fmt.Errorf("graph: node %q already has an edge", from))
		return g
	}
	if _, dup := g.conditional[from]; dup {
		g.errs = append(g.errs, fmt.Errorf("graph: node %q already has conditional edges", from))
		return g
	}
	g.conditional[from] = conditionalEdge[S]{router: router, mapping: mapping}
	return g
}

func (g *Graph[S]) SetEntryPoint(name string) *Graph[S] {
	g.entry = name
	return g
}

func (g *Graph[S]) SetFinishPoint(name string) *Graph[S] {
	g.finish = name
	return g
}

// Compile validates the graph and freezes it into a Runnable.
// Configuration mistakes (unknown targets, unmapped conditional keys,
// unreachable nodes) fail here, never during a run.
func (g *Graph[S]) Compile() (*Runnable[S], error) {
	if len(g.errs) > 0 {
		return nil, g.errs[0]
	}
	if g.entry == "" {
		return nil, ErrNoEntryPoint
	}
	if g.finish == "" {
		return nil, ErrNoFinishPoint
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, fmt.Errorf("graph: entry point %q is not a registered node", g.entry)
	}
	if _, ok := g.nodes[g.finish]; !ok {
		return nil, fmt.Errorf("graph: finish point %q is not a registered node", g.finish)
	}

	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("graph: edge from unknown node %q", from)
		}
		if _, ok := g.nodes[to]; !ok {
			return nil, fmt.Errorf("graph: edge %q -> unknown node %q", from, to)
		}
	}
	for from, ce := range g.conditional {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("graph: conditional edges from unknown node %q", from)
		}
		for key, to := range ce.mapping {
			if _, ok := g.nodes[to]; !ok {
				return nil, fmt.Errorf("graph: conditional key %q on %q -> unknown node %q", key, from, to)
			}
		}
	}

	// Every node except finish needs an outgoing edge.
	for name := range g.nodes {
		if name == g.finish {
			continue
		}
		_, hasEdge := g.edges[name]
		_, hasCond := g.conditional[name]
		if !hasEdge && !hasCond {
			return nil, fmt.Errorf("graph: node %q has no outgoing edge", name)
		}
	}

	// Reachability from entry.
	seen := map[string]bool{g.entry: true}
	queue := []string{g.entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		var targets []string
		if to, ok := g.edges[cur]; ok {
			targets = append(targets, to)
		}
		if ce, ok := g.conditional[cur]; ok {
			for _, to := range ce.mapping {
				targets = append(targets, to)
			}
		}
		for _, to := range targets {
			if !seen[to] {
				seen[to] = true
				queue = append(queue, to)
			}
		}
	}
	for name := range g.nodes {
		if !seen[name] {
			return nil, fmt.Errorf("graph: node %q is unreachable from entry %q", name, g.entry)
		}
	}

	return &Runnable[S]{
		nodes:       g.nodes,
		edges:       g.edges,
		conditional: g.conditional,
		entry:       g.entry,
		finish:      g.finish,
	}, nil
}
