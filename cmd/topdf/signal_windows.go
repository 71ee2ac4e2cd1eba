//go:build windows

package main

import (
	"context"
	"os"
	"os/signal"
)

// interruptContext is cancelled on Ctrl+C. SIGTERM is not delivered on
// Windows.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}
