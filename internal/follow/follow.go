// Package follow keeps a HistoryService Watch stream open, reconnecting
// with exponential back-off when the daemon restarts or the stream
// drops.
package follow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.klb.dev/clipstash/internal/rpc"
)

const (
	reconnectDelay = time.Second
	maxReconnect   = 30 * time.Second
)

// Watcher opens Watch streams. *rpc.Client satisfies it.
type Watcher interface {
	Watch(ctx context.Context, opts ...grpc.CallOption) (grpc.ServerStreamingClient[rpc.WatchEvent], error)
}

// Follower delivers every watch event to a callback.
type Follower struct {
	w  Watcher
	fn func(*rpc.WatchEvent)

	delay, maxDelay time.Duration
}

// New returns a Follower calling fn for each event, in order.
func New(w Watcher, fn func(*rpc.WatchEvent)) *Follower {
	return &Follower{w: w, fn: fn, delay: reconnectDelay, maxDelay: maxReconnect}
}

// Run follows the stream until ctx is cancelled. It only returns ctx's
// error.
func (f *Follower) Run(ctx context.Context) error {
	delay := f.delay
	for {
		connected, err := f.runStream(ctx)
		if ctx.Err() != nil || status.Code(err) == codes.Canceled {
			return ctx.Err()
		}
		if connected {
			delay = f.delay
		}
		slog.Warn("watch stream ended, reconnecting", "err", err, "retry_in", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay < f.maxDelay {
			delay = min(delay*2, f.maxDelay)
		}
	}
}

// runStream opens one Watch stream and runs until it errors or ctx is
// done. connected reports whether the stream delivered anything.
func (f *Follower) runStream(ctx context.Context) (connected bool, err error) {
	stream, err := f.w.Watch(ctx, grpc.WaitForReady(true))
	if err != nil {
		return false, fmt.Errorf("watch: %w", err)
	}
	slog.Debug("watch stream connected")
	for {
		ev, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return connected, errors.New("daemon closed the stream")
			}
			return connected, err
		}
		connected = true
		f.fn(ev)
	}
}
