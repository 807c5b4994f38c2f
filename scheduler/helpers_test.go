package scheduler

import "context"

// newCtx returns a fresh background context for tests that don't exercise
// cancellation.
func newCtx() context.Context { return context.Background() }
