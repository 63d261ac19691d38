package pipeline

import (
	"context"
	"fmt"
	"time"

	"ai-docassist-be/pkg/graph"
)

const maxAttempts = 3

// Fixed pause between failed attempts. No backoff or jitter: the
// external services already rate-limit on their side. Variable so tests
// can shorten it.
var retryDelay = time.Second

type retryState interface {
	appendLog(entry string)
	setError(msg string)
	failed() bool
}

// withRetry decorates a step with bounded retry. Every attempt appends
// "<name>:<attempt>:<elapsed>ms" to the run log. When the last attempt
// fails the error is recorded on the state and the step returns cleanly;
// failures travel as state, not as propagated faults. Steps on a state
// that already failed are skipped outright so no external call happens
// after a terminal error.
func withRetry[S retryState](name string, fn graph.NodeFunc[S]) graph.NodeFunc[S] {
	return func(ctx context.Context, st S) (S, error) {
		if st.failed() {
			return st, nil
		}

		var lastErr error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			start := time.Now()
			res, err := fn(ctx, st)
			st.appendLog(fmt.Sprintf("%s:%d:%dms", name, attempt, time.Since(start).Milliseconds()))
			if err == nil {
				return res, nil
			}
			lastErr = err

			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return st, ctx.Err()
				case <-time.After(retryDelay):
				}
			}
		}

		st.setError(fmt.Sprintf("%s failed after %d tries: %v", name, maxAttempts, lastErr))
		return st, nil
	}
}
