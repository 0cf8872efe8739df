// Package shutdown cancels the process context on termination signals.
package shutdown

import (
	"context"
	"os/signal"
)

// Context returns a child of parent that is cancelled on the first
// termination signal. Once cancelled, a second signal is left to the
// runtime default and kills the process.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, signals...)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}
