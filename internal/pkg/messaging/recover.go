package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/shandysiswandi/otpgate/internal/pkg/stacktrace"
)

func callHandlerWithRecover(ctx context.Context, driver string, fn func() error) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			stack := debug.Stack()
			paths := stacktrace.InternalPaths(stack)
			if len(paths) == 0 {
				slog.ErrorContext(ctx, "panic in messaging handler", "driver", driver, "panic", rvr, "stack", string(stack))
			} else {
				slog.ErrorContext(ctx, "panic in messaging handler", "driver", driver, "panic", rvr, "stack", paths)
			}
			err = fmt.Errorf("messaging: panic in %s handler: %v", driver, rvr)
		}
	}()

	return fn()
}

// responder tracks whether a message was already acked or nacked.
type responder struct {
	done atomic.Bool
}

func (r *responder) respond() bool {
	return !r.done.Swap(true)
}

func (r *responder) responded() bool {
	return r.done.Load()
}

// handle runs the handler and applies auto-ack.
func handle(ctx context.Context, driver string, msg Message, handler Handler, autoAck bool, responded func() bool) {
	herr := callHandlerWithRecover(ctx, driver, func() error {
		return handler(ctx, msg)
	})
	if !autoAck || responded() {
		return
	}

	var err error
	if herr == nil {
		err = msg.Ack(ctx)
	} else {
		err = msg.Nack(ctx)
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to respond to message", "driver", driver, "topic", msg.Topic(), "error", err)
	}
}

// runWorkers drains in with n goroutines and returns once in is closed.
func runWorkers[T any](n int, in <-chan T, fn func(T)) *sync.WaitGroup {
	var wg sync.WaitGroup
	for range n {
		wg.Go(func() {
			for v := range in {
				fn(v)
			}
		})
	}
	return &wg
}
