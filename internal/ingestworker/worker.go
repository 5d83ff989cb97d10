// Package ingestworker drives internal/ingest.Ingestor.RunBatch on a
// fixed interval, per spec §4.13. It generalizes the teacher's
// fetch.go cooldown loop (poll, do a bounded amount of work, sleep)
// from a single synchronous collect-then-fetch run into a
// long-running background drain of the durable ingest_queue table.
package ingestworker

import (
	"context"
	"log"
	"time"

	"github.com/patrickmvla/rift-copilot/internal/ingest"
)

// Options configures a Worker's poll loop. Each tick calls
// Ingestor.RunBatch with the same WorkerOptions.
type Options struct {
	Interval time.Duration
	Batch    ingest.WorkerOptions
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Second
	}
	return o
}

// Worker polls the ingest queue on an interval.
type Worker struct {
	ingestor *ingest.Ingestor
	opts     Options
}

// New constructs a Worker over an already-wired Ingestor.
func New(ingestor *ingest.Ingestor, opts Options) *Worker {
	return &Worker{ingestor: ingestor, opts: opts.withDefaults()}
}

// RunOnce runs a single batch and returns its counts.
func (w *Worker) RunOnce(ctx context.Context) (ingest.Counts, error) {
	return w.ingestor.RunBatch(ctx, w.opts.Batch)
}

// Run polls RunOnce every interval until ctx is cancelled. Batch
// errors are logged, not fatal, so a transient storage error on one
// tick doesn't stop the drain loop.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		if counts, err := w.RunOnce(ctx); err != nil {
			log.Printf("ingestworker: batch error: %v", err)
		} else if counts.Processed > 0 {
			log.Printf("ingestworker: processed=%d ok=%d exists=%d requeued=%d errors=%d remaining=%d",
				counts.Processed, counts.OK, counts.Exists, counts.Requeued, counts.Errors, counts.Remaining)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
