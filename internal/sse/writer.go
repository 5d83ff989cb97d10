// Package sse implements the server-sent event writer the
// orchestrator streams progress and answer events through, per spec
// §4.12. It generalizes internal/server/server.go's plain
// net/http-handler style (a *Server holding an http.ResponseWriter,
// writing directly, no framework) into a single-writer, mutex-guarded
// SSE encoder with a heartbeat.
package sse

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// SendOptions controls how one event is framed.
type SendOptions struct {
	Event string
	ID    string
	Retry int // milliseconds; 0 means omit the retry: field
	Raw   bool
}

const defaultHeartbeatInterval = 20 * time.Second

// Writer serializes writes to an underlying http.ResponseWriter as an
// SSE byte stream. All methods are safe for concurrent use; the
// orchestrator's emit(event) sink and the heartbeat goroutine share
// one Writer.
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
	stopHB  chan struct{}
}

// New wraps w as an SSE stream, setting the standard SSE response
// headers. Returns an error if w does not support flushing (required
// for a live stream over HTTP/1.1).
func New(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("sse: response writer does not support flushing")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream; charset=utf-8")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}, nil
}

// StartHeartbeat begins emitting a comment line every interval
// (defaulting to 20s) until ctx-like stop is triggered by Close. It
// is safe to call at most once per Writer.
func (sw *Writer) StartHeartbeat(interval time.Duration) {
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	sw.mu.Lock()
	if sw.stopHB != nil {
		sw.mu.Unlock()
		return
	}
	sw.stopHB = make(chan struct{})
	stop := sw.stopHB
	sw.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = sw.Comment("heartbeat")
			}
		}
	}()
}

// Send writes one event. data is JSON text or, when opts.Raw is true,
// a plain string carried verbatim. Multi-line data is split into
// repeated `data:` lines per the SSE wire format.
func (sw *Writer) Send(data string, opts SendOptions) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.closed {
		return fmt.Errorf("sse: writer closed")
	}

	var b strings.Builder
	if opts.Event != "" {
		fmt.Fprintf(&b, "event: %s\n", opts.Event)
	}
	if opts.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", opts.ID)
	}
	if opts.Retry > 0 {
		fmt.Fprintf(&b, "retry: %d\n", opts.Retry)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteByte('\n')

	if _, err := sw.w.Write([]byte(b.String())); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// Comment writes an SSE comment line (`: ...`), used for heartbeats
// and unstructured diagnostics that shouldn't parse as an event.
func (sw *Writer) Comment(s string) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.closed {
		return fmt.Errorf("sse: writer closed")
	}
	if _, err := fmt.Fprintf(sw.w, ": %s\n\n", s); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// Ping writes a bare heartbeat comment.
func (sw *Writer) Ping() error {
	return sw.Comment("ping")
}

// Close writes a final comment naming reason, stops the heartbeat
// goroutine if running, and marks the Writer unusable. It does not
// close the underlying HTTP connection; the caller's handler
// returning does that.
func (sw *Writer) Close(reason string) {
	sw.mu.Lock()
	stop := sw.stopHB
	alreadyClosed := sw.closed
	sw.closed = true
	sw.mu.Unlock()

	if !alreadyClosed && reason != "" {
		fmt.Fprintf(sw.w, ": closing: %s\n\n", reason)
		sw.flusher.Flush()
	}
	if stop != nil {
		close(stop)
	}
}
