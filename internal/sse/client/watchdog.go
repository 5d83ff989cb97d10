package client

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultConnectTimeout = 45 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// WatchdogOptions tunes the two timers Watch enforces.
type WatchdogOptions struct {
	ConnectTimeout time.Duration // time to first byte/headers
	IdleTimeout    time.Duration // time since the last event or comment
}

func (o WatchdogOptions) withDefaults() WatchdogOptions {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = defaultIdleTimeout
	}
	return o
}

// Watchdog distinguishes "never connected" from "connected but gone
// quiet", aborting the stream cleanly in either case per §4.12.
type Watchdog struct {
	opts    WatchdogOptions
	touch   chan struct{}
	connect chan struct{}
}

// NewWatchdog constructs a Watchdog with the given options.
func NewWatchdog(opts WatchdogOptions) *Watchdog {
	return &Watchdog{
		opts:    opts.withDefaults(),
		touch:   make(chan struct{}, 1),
		connect: make(chan struct{}, 1),
	}
}

// MarkConnected signals that headers/first bytes arrived, satisfying
// the connect timer.
func (w *Watchdog) MarkConnected() {
	select {
	case w.connect <- struct{}{}:
	default:
	}
}

// Touch signals that an event or comment was just received,
// resetting the idle timer.
func (w *Watchdog) Touch() {
	select {
	case w.touch <- struct{}{}:
	default:
	}
}

// Watch blocks until ctx is done or a watchdog fires, returning a
// descriptive error in the latter case. Callers run this in its own
// goroutine alongside the read loop and cancel ctx (or otherwise stop
// reading) when it returns.
func (w *Watchdog) Watch(ctx context.Context) error {
	connectTimer := time.NewTimer(w.opts.ConnectTimeout)
	defer connectTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.connect:
			if !connectTimer.Stop() {
				<-drainIfPending(connectTimer)
			}
			return w.watchIdle(ctx)
		case <-connectTimer.C:
			return fmt.Errorf("sse: no headers within %s", w.opts.ConnectTimeout)
		}
	}
}

func (w *Watchdog) watchIdle(ctx context.Context) error {
	idleTimer := time.NewTimer(w.opts.IdleTimeout)
	defer idleTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.touch:
			if !idleTimer.Stop() {
				<-drainIfPending(idleTimer)
			}
			idleTimer.Reset(w.opts.IdleTimeout)
		case <-idleTimer.C:
			return fmt.Errorf("sse: no events for %s", w.opts.IdleTimeout)
		}
	}
}

// drainIfPending returns a channel that immediately yields if timer's
// channel already has a pending value, avoiding a blocking receive
// when Stop raced the fire.
func drainIfPending(timer *time.Timer) <-chan time.Time {
	ch := make(chan time.Time, 1)
	select {
	case v := <-timer.C:
		ch <- v
	default:
		close(ch)
	}
	return ch
}
