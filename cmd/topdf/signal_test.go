package main

// Notes:
// - Actual signal delivery is not exercised; only context wiring is.

import (
	"context"
	"testing"
)

func TestInterruptContext(t *testing.T) {
	t.Parallel()

	t.Run("starts live and stop cancels", func(t *testing.T) {
		t.Parallel()

		ctx, stop := interruptContext(context.Background())
		if ctx.Err() != nil {
			t.Fatal("context cancelled before any signal")
		}
		stop()
		if ctx.Err() == nil {
			t.Fatal("context not cancelled after stop()")
		}
	})

	t.Run("inherits parent cancellation", func(t *testing.T) {
		t.Parallel()

		parent, cancel := context.WithCancel(context.Background())
		ctx, stop := interruptContext(parent)
		defer stop()

		cancel()
		<-ctx.Done()
	})
}
