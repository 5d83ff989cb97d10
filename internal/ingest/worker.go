package ingest

import (
	"context"

	"github.com/patrickmvla/rift-copilot/internal/apierr"
	"github.com/patrickmvla/rift-copilot/internal/concurrency"
)

const (
	defaultWorkerPool     = 4
	defaultReviveStaleSec = 300
	defaultMaxAttempts    = 3
	defaultBatchLimit     = 20
)

// WorkerOptions tunes one RunBatch call, per §4.13.
type WorkerOptions struct {
	Limit          int
	Pool           int
	ReviveStaleSec int
	MaxAttempts    int
}

func (o WorkerOptions) withDefaults() WorkerOptions {
	if o.Limit <= 0 {
		o.Limit = defaultBatchLimit
	}
	if o.Pool <= 0 {
		o.Pool = defaultWorkerPool
	}
	if o.ReviveStaleSec <= 0 {
		o.ReviveStaleSec = defaultReviveStaleSec
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	return o
}

// Counts summarizes one RunBatch call's outcome, per §4.13 step 4.
type Counts struct {
	Revived   int64
	Claimed   int
	Processed int
	OK        int
	Exists    int
	Requeued  int
	Errors    int
	Remaining int
}

// claimedJob pairs a claimed queue row with the attempt count already
// recorded by ClaimNextIngestJob, so processJob can decide
// requeue-vs-terminal-fail without a second lookup.
type claimedJob struct {
	id       string
	url      string
	attempts int
}

// jobOutcome classifies one processed job for Counts.
type jobOutcome int

const (
	outcomeOK jobOutcome = iota
	outcomeExists
	outcomeRequeued
	outcomeError
)

// RunBatch implements the ingest worker of §4.13: revive stale
// processing rows, claim up to Limit queued jobs in a transaction
// each, process them with a bounded pool, and report outcome counts.
// Per-item processing is IngestNow, identical to the immediate-ingest
// path used by a synchronous Ingest call.
func (in *Ingestor) RunBatch(ctx context.Context, opts WorkerOptions) (Counts, error) {
	opts = opts.withDefaults()
	var counts Counts

	revived, err := in.db.ReviveStaleProcessing(opts.ReviveStaleSec)
	if err != nil {
		return counts, apierr.Wrap(apierr.StorageError, "reviving stale jobs", err)
	}
	counts.Revived = revived

	jobs, err := in.claimUpTo(opts.Limit)
	if err != nil {
		return counts, err
	}
	counts.Claimed = len(jobs)

	outcomes, errs := concurrency.MapLimit(ctx, jobs, opts.Pool, func(ctx context.Context, job claimedJob) (jobOutcome, error) {
		return in.processJob(ctx, job, opts.MaxAttempts)
	})

	for i, outcome := range outcomes {
		if errs[i] != nil && apierr.IsCancelled(errs[i]) {
			continue // claimed but not attempted before ctx cancellation; left processing for revival
		}
		counts.Processed++
		switch outcome {
		case outcomeOK:
			counts.OK++
		case outcomeExists:
			counts.Exists++
		case outcomeRequeued:
			counts.Requeued++
		case outcomeError:
			counts.Errors++
		}
	}

	remaining, err := in.db.CountQueuedIngestJobs()
	if err != nil {
		return counts, apierr.Wrap(apierr.StorageError, "counting remaining jobs", err)
	}
	counts.Remaining = remaining

	return counts, nil
}

func (in *Ingestor) claimUpTo(limit int) ([]claimedJob, error) {
	jobs := make([]claimedJob, 0, limit)
	for i := 0; i < limit; i++ {
		job, err := in.db.ClaimNextIngestJob()
		if err != nil {
			return jobs, apierr.Wrap(apierr.StorageError, "claiming ingest job", err)
		}
		if job == nil {
			break
		}
		jobs = append(jobs, claimedJob{id: job.ID, url: job.URL, attempts: job.Attempts})
	}
	return jobs, nil
}

// processJob mirrors Ingest's read-sanitize-chunk-persist pipeline for
// an already-claimed job, translating the outcome into a terminal
// done/error or an attempts-remaining requeue. A URL that was already
// ingested by a concurrent immediate request between enqueue and claim
// is completed as a no-op rather than re-read.
func (in *Ingestor) processJob(ctx context.Context, job claimedJob, maxAttempts int) (jobOutcome, error) {
	if existing, err := in.db.GetSourceByURL(job.url); err == nil && existing != nil {
		if err := in.db.CompleteIngestJob(job.id); err != nil {
			return outcomeError, apierr.Wrap(apierr.StorageError, "completing ingest job", err)
		}
		return outcomeExists, nil
	}

	if _, err := in.IngestNow(ctx, job.url); err != nil {
		if failErr := in.db.FailIngestJob(job.id, err.Error(), job.attempts, maxAttempts); failErr != nil {
			return outcomeError, apierr.Wrap(apierr.StorageError, "recording ingest failure", failErr)
		}
		if job.attempts < maxAttempts {
			return outcomeRequeued, err
		}
		return outcomeError, err
	}
	if err := in.db.CompleteIngestJob(job.id); err != nil {
		return outcomeError, apierr.Wrap(apierr.StorageError, "completing ingest job", err)
	}
	return outcomeOK, nil
}
