// Package middleware chains per-frame handlers around a session's
// reader-to-parser hand-off. The reader wraps its innermost dispatch
// (the try-send onto the bounded parse queue) in a FrameMiddleware
// chain, so logging, metrics, panic recovery, and per-frame deadlines
// compose without the reader knowing about any of them.
package middleware

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

// FrameHandler consumes one inbound WebSocket frame. The frame slice is
// only valid for the duration of the call; handlers that retain it must
// copy.
type FrameHandler func(ctx context.Context, frame []byte) error

// FrameMiddleware wraps a FrameHandler with cross-cutting behavior.
type FrameMiddleware func(FrameHandler) FrameHandler

// FrameSink receives per-frame observations from the Metrics
// middleware. The metrics package's SocketCollector satisfies it.
type FrameSink interface {
	RecordFrameReceived(bytes int, latency time.Duration)
	RecordError()
}

// Chain composes middlewares into one; the first argument is outermost.
func Chain(middlewares ...FrameMiddleware) FrameMiddleware {
	return func(handler FrameHandler) FrameHandler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			handler = middlewares[i](handler)
		}
		return handler
	}
}

// Logging traces every frame through the pipeline at debug level, with
// the handler's disposition and elapsed time. A nil logger disables it.
func Logging(logger *zerolog.Logger) FrameMiddleware {
	if logger == nil {
		return func(next FrameHandler) FrameHandler { return next }
	}

	return func(next FrameHandler) FrameHandler {
		return func(ctx context.Context, frame []byte) error {
			start := time.Now()
			err := next(ctx, frame)
			evt := logger.Debug().Int("bytes", len(frame)).Dur("took", time.Since(start))
			if err != nil {
				evt.Err(err).Msg("frame dispatch failed")
			} else {
				evt.Msg("frame dispatched")
			}
			return err
		}
	}
}

// Metrics feeds every frame's size and dispatch latency to sink, and
// counts handler errors. A nil sink disables it.
func Metrics(sink FrameSink) FrameMiddleware {
	if sink == nil {
		return func(next FrameHandler) FrameHandler { return next }
	}

	return func(next FrameHandler) FrameHandler {
		return func(ctx context.Context, frame []byte) error {
			start := time.Now()
			err := next(ctx, frame)
			sink.RecordFrameReceived(len(frame), time.Since(start))
			if err != nil {
				sink.RecordError()
			}
			return err
		}
	}
}

// Recovery converts a panicking handler into an error so one bad frame
// cannot kill the session's reader task.
func Recovery(logger *zerolog.Logger) FrameMiddleware {
	return func(next FrameHandler) FrameHandler {
		return func(ctx context.Context, frame []byte) (err error) {
			defer func() {
				if r := recover(); r != nil {
					if logger != nil {
						logger.Error().Interface("panic", r).
							Bytes("stack", debug.Stack()).Msg("frame handler panicked")
					}
					err = fmt.Errorf("frame handler panic: %v", r)
				}
			}()
			return next(ctx, frame)
		}
	}
}

// Timeout bounds one frame's dispatch. The handler keeps running if it
// overruns; the reader just stops waiting for it, which is acceptable
// only because the innermost dispatch is itself non-blocking.
func Timeout(timeout time.Duration) FrameMiddleware {
	return func(next FrameHandler) FrameHandler {
		return func(ctx context.Context, frame []byte) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan error, 1)
			go func() { done <- next(ctx, frame) }()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				return fmt.Errorf("frame dispatch timed out: %w", ctx.Err())
			}
		}
	}
}
