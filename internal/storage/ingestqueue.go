package storage

import (
	"database/sql"

	"github.com/patrickmvla/rift-copilot/internal/idgen"
)

// EnqueueURL adds a URL to the durable ingest queue, deduplicating
// against any existing non-terminal row for the same URL.
func (db *DB) EnqueueURL(url string, priority int) (string, error) {
	var existing string
	err := db.conn.QueryRow(
		`SELECT id FROM ingest_queue WHERE url = ? AND status IN ('queued','processing')`, url,
	).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	id := idgen.New()
	_, err = db.conn.Exec(
		`INSERT INTO ingest_queue (id, url, priority, status) VALUES (?, ?, ?, 'queued')`,
		id, url, priority,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ClaimNextIngestJob atomically claims the highest-priority queued job,
// oldest first, marking it processing. Returns nil, nil if the queue is empty.
func (db *DB) ClaimNextIngestJob() (*IngestQueue, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRow(
		`SELECT id, url, priority, status, attempts, error, created_at, updated_at
		FROM ingest_queue WHERE status = 'queued'
		ORDER BY priority DESC, created_at ASC LIMIT 1`,
	)
	job, err := scanIngestJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if _, err := tx.Exec(
		`UPDATE ingest_queue SET status = 'processing', attempts = attempts + 1, updated_at = datetime('now') WHERE id = ?`,
		job.ID,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	job.Status = IngestProcessing
	job.Attempts++
	return job, nil
}

// CompleteIngestJob marks a job done.
func (db *DB) CompleteIngestJob(id string) error {
	_, err := db.conn.Exec(
		`UPDATE ingest_queue SET status = 'done', updated_at = datetime('now') WHERE id = ?`, id,
	)
	return err
}

// FailIngestJob marks a job error, or requeues it if attempts remain
// under maxAttempts, per §4.13's backoff-and-retry policy.
func (db *DB) FailIngestJob(id string, errMsg string, attempts, maxAttempts int) error {
	status := string(IngestError)
	if attempts < maxAttempts {
		status = string(IngestQueued)
	}
	_, err := db.conn.Exec(
		`UPDATE ingest_queue SET status = ?, error = ?, updated_at = datetime('now') WHERE id = ?`,
		status, errMsg, id,
	)
	return err
}

// ReviveStaleProcessing requeues jobs stuck in "processing" for longer
// than staleness, guarding against a worker crash mid-claim.
func (db *DB) ReviveStaleProcessing(staleSeconds int) (int64, error) {
	result, err := db.conn.Exec(
		`UPDATE ingest_queue SET status = 'queued', updated_at = datetime('now')
		WHERE status = 'processing' AND updated_at < datetime('now', ? || ' seconds')`,
		-staleSeconds,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountQueuedIngestJobs returns the number of jobs still waiting to be
// claimed, for the worker's "remaining" summary count.
func (db *DB) CountQueuedIngestJobs() (int, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM ingest_queue WHERE status = 'queued'`).Scan(&n)
	return n, err
}

// GetIngestJob returns a single job by id.
func (db *DB) GetIngestJob(id string) (*IngestQueue, error) {
	row := db.conn.QueryRow(
		`SELECT id, url, priority, status, attempts, error, created_at, updated_at
		FROM ingest_queue WHERE id = ?`, id,
	)
	job, err := scanIngestJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

func scanIngestJob(row *sql.Row) (*IngestQueue, error) {
	var j IngestQueue
	var status string
	if err := row.Scan(&j.ID, &j.URL, &j.Priority, &status, &j.Attempts, &j.Error, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.Status = IngestStatus(status)
	return &j, nil
}
