package graph

import "errors"

var (
	// ErrRecursionLimit is returned by Invoke when a run exceeds the
	// configured transition ceiling without reaching the finish node.
	ErrRecursionLimit = errors.New("graph: recursion limit exceeded")

	ErrNoEntryPoint  = errors.New("graph: entry point not set")
	ErrNoFinishPoint = errors.New("graph: finish point not set")
)
