package common

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

type drainContextKey string

const drainContextKeyVal = drainContextKey("drain")

func createGracefulShutdownContext() (context.Context, func(), chan os.Signal) {
	ctx := context.Background()
	ctx, forceCancel := context.WithCancel(ctx)
	drainCtx, drain := context.WithCancel(ctx)
	ctx = context.WithValue(ctx, drainContextKeyVal, drainCtx)

	// the first signal drains, the second one aborts
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			drain()
			select {
			case <-c:
				forceCancel()
			case <-ctx.Done():
			}
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(c)
		forceCancel()
		drain()
	}, c
}

// CreateGracefulShutdownContext returns a context that is canceled on the second interrupt or
// SIGTERM. DrainContext of it is already canceled on the first one.
func CreateGracefulShutdownContext() (context.Context, func()) {
	ctx, cancel, _ := createGracefulShutdownContext()
	return ctx, cancel
}

// DrainContext returns the context that signals the server to stop accepting requests. It is
// ctx itself if no graceful shutdown context was set up.
func DrainContext(ctx context.Context) context.Context {
	if val, ok := ctx.Value(drainContextKeyVal).(context.Context); ok {
		return val
	}
	return ctx
}
