package storage

import "github.com/patrickmvla/rift-copilot/internal/idgen"

// RecordSearchEvent audits a search adapter call for a thread (or an
// out-of-thread call when threadID is nil).
func (db *DB) RecordSearchEvent(threadID *string, query, resultsJSON string) (string, error) {
	id := idgen.New()
	_, err := db.conn.Exec(
		`INSERT INTO search_events (id, thread_id, query, results_json) VALUES (?, ?, ?, ?)`,
		id, threadID, query, resultsJSON,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetSearchEventsForThread returns a thread's search audit trail in
// chronological order.
func (db *DB) GetSearchEventsForThread(threadID string) ([]SearchEvent, error) {
	rows, err := db.conn.Query(
		`SELECT id, thread_id, query, results_json, created_at FROM search_events
		WHERE thread_id = ? ORDER BY created_at ASC, rowid ASC`, threadID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchEvent
	for rows.Next() {
		var e SearchEvent
		if err := rows.Scan(&e.ID, &e.ThreadID, &e.Query, &e.ResultsJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
