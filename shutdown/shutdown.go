// Package shutdown ties a context to the platform's termination signals.
package shutdown

import (
	"context"
	"os/signal"
)

// Context returns a child of parent that is cancelled on the first
// termination signal. A second signal falls through to the default handler.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, signals...)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}
