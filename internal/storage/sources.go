package storage

import (
	"database/sql"

	"github.com/patrickmvla/rift-copilot/internal/idgen"
)

// UpsertSource inserts a Source keyed by its canonical url. Idempotent:
// if the url already exists, its id is returned without modification,
// mirroring the teacher's conflict-do-nothing article insert.
func (db *DB) UpsertSource(url, domain string, title, fingerprint *string) (string, error) {
	if existing, err := db.GetSourceByURL(url); err != nil {
		return "", err
	} else if existing != nil {
		return existing.ID, nil
	}

	id := idgen.New()
	_, err := db.conn.Exec(
		`INSERT INTO sources (id, url, domain, title, fingerprint, status)
		VALUES (?, ?, ?, ?, ?, 'ok')`,
		id, url, domain, title, fingerprint,
	)
	if err != nil {
		// Concurrent insert raced us to the unique index; re-read.
		if existing, gerr := db.GetSourceByURL(url); gerr == nil && existing != nil {
			return existing.ID, nil
		}
		return "", err
	}
	return id, nil
}

// GetSourceByURL looks up a Source by its exact canonical url.
func (db *DB) GetSourceByURL(url string) (*Source, error) {
	row := db.conn.QueryRow(sourceSelect+" WHERE url = ?", url)
	return scanSource(row)
}

// GetSource looks up a Source by id.
func (db *DB) GetSource(id string) (*Source, error) {
	row := db.conn.QueryRow(sourceSelect+" WHERE id = ?", id)
	return scanSource(row)
}

// SetSourceMetadata patches metadata fields discovered after a read,
// without ever mutating url or fingerprint.
func (db *DB) SetSourceMetadata(id string, title, publishedAt, lang *string, httpStatus *int, status SourceStatus) error {
	_, err := db.conn.Exec(
		`UPDATE sources SET title = COALESCE(?, title), published_at = COALESCE(?, published_at),
		lang = COALESCE(?, lang), http_status = COALESCE(?, http_status), status = ?,
		crawled_at = datetime('now') WHERE id = ?`,
		title, publishedAt, lang, httpStatus, string(status), id,
	)
	return err
}

// PutSourceContent stores the extracted text/html for a Source, 1:1.
func (db *DB) PutSourceContent(sourceID, text string, html *string) error {
	_, err := db.conn.Exec(
		`INSERT INTO source_content (source_id, text, html) VALUES (?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET text = excluded.text, html = excluded.html`,
		sourceID, text, html,
	)
	return err
}

// GetSourceContent returns the SourceContent for a Source, or nil if absent.
func (db *DB) GetSourceContent(sourceID string) (*SourceContent, error) {
	row := db.conn.QueryRow(
		`SELECT source_id, text, html FROM source_content WHERE source_id = ?`, sourceID,
	)
	var sc SourceContent
	if err := row.Scan(&sc.SourceID, &sc.Text, &sc.HTML); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &sc, nil
}

const sourceSelect = `SELECT id, url, domain, title, published_at, crawled_at, lang, fingerprint, status, http_status, created_at FROM sources`

func scanSource(row *sql.Row) (*Source, error) {
	var s Source
	var status string
	if err := row.Scan(&s.ID, &s.URL, &s.Domain, &s.Title, &s.PublishedAt, &s.CrawledAt,
		&s.Lang, &s.Fingerprint, &status, &s.HTTPStatus, &s.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	s.Status = SourceStatus(status)
	return &s, nil
}
