package testutil

import (
	"context"
	"testing"
	"time"

	"presence/pkg/requestcontext"
)

// Context returns a background context with a cleanup-bound cancel.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

// ContextAt returns a context pinned to a fixed request time so services that
// read requestcontext.Now observe a deterministic clock.
func ContextAt(t *testing.T, at time.Time) context.Context {
	t.Helper()
	return requestcontext.WithTime(Context(t), at)
}
