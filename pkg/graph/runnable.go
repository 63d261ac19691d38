package graph

import (
	"context"
	"fmt"
)

// DefaultMaxSteps bounds a run to 80 transitions. Pipelines with refine
// loops rely on this ceiling as the last-resort guard against cycling.
const DefaultMaxSteps = 80

// Runnable is a compiled, immutable graph. Safe for concurrent use; each
// Invoke threads its own state value and shares nothing with other runs.
type Runnable[S any] struct {
	nodes       map[string]NodeFunc[S]
	edges       map[string]string
	conditional map[string]conditionalEdge[S]
	entry       string
	finish      string
}

// InvokeOption customizes a single run.
type InvokeOption func(*invokeConfig)

type invokeConfig struct {
	maxSteps int
}

// WithMaxSteps overrides the transition ceiling for one run.
func WithMaxSteps(n int) InvokeOption {
	return func(c *invokeConfig) {
		if n > 0 {
			c.maxSteps = n
		}
	}
}

// Invoke executes nodes starting at the entry point, following edges
// until the finish node has run. The state value is owned by exactly one
// node at a time; the engine never mutates it.
func (r *Runnable[S]) Invoke(ctx context.Context, st S, opts ...InvokeOption) (S, error) {
	cfg := invokeConfig{maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(&cfg)
	}

	current := r.entry
	for step := 0; ; step++ {
		if step >= cfg.maxSteps {
			return st, fmt.Errorf("%w: %d steps without reaching %q", ErrRecursionLimit, cfg.maxSteps, r.finish)
		}
		if err := ctx.Err(); err != nil {
			return st, err
		}

		fn := r.nodes[current]
		next, err := fn(ctx, st)
		if err != nil {
			return st, fmt.Errorf("graph: node %q: %w", current, err)
		}
		st = next

		if current == r.finish {
			return st, nil
		}

		if to, ok := r.edges[current]; ok {
			current = to
			continue
		}
		ce := r.conditional[current]
		key := ce.router(st)
		to, ok := ce.mapping[key]
		if !ok {
			// Compile guarantees every mapped key resolves; reaching here
			// means the router produced a key outside its declared set.
			return st, fmt.Errorf("graph: node %q routed to unmapped key %q", current, key)
		}
		current = to
	}
}

// EntryPoint returns the name of the compiled entry node.
func (r *Runnable[S]) EntryPoint() string { return r.entry }

// FinishPoint returns the name of the compiled finish node.
func (r *Runnable[S]) FinishPoint() string { return r.finish }
