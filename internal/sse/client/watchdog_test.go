package client

import (
	"context"
	"testing"
	"time"
)

func TestWatchdogFiresConnectTimeoutWhenNeverConnected(t *testing.T) {
	w := NewWatchdog(WatchdogOptions{ConnectTimeout: 20 * time.Millisecond, IdleTimeout: time.Second})
	err := w.Watch(context.Background())
	if err == nil {
		t.Fatal("expected connect timeout error")
	}
}

func TestWatchdogFiresIdleTimeoutAfterConnect(t *testing.T) {
	w := NewWatchdog(WatchdogOptions{ConnectTimeout: time.Second, IdleTimeout: 20 * time.Millisecond})
	w.MarkConnected()
	err := w.Watch(context.Background())
	if err == nil {
		t.Fatal("expected idle timeout error")
	}
}

func TestWatchdogSurvivesWithRegularTouches(t *testing.T) {
	w := NewWatchdog(WatchdogOptions{ConnectTimeout: time.Second, IdleTimeout: 40 * time.Millisecond})
	w.MarkConnected()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	ticker := time.NewTicker(15 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(140 * time.Millisecond)
loop:
	for {
		select {
		case <-ticker.C:
			w.Touch()
		case <-deadline:
			break loop
		}
	}

	err := <-done
	if err != context.DeadlineExceeded {
		t.Errorf("expected ctx deadline exceeded (watchdog kept alive by touches), got %v", err)
	}
}
