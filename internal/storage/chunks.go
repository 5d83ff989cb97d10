package storage

import (
	"database/sql"
	"fmt"

	"github.com/patrickmvla/rift-copilot/internal/idgen"
)

// InsertChunks writes a Source's chunks in a single transaction. Chunks
// are write-once: callers must delete existing chunks for a source
// before re-chunking a re-crawled version.
func (db *DB) InsertChunks(sourceID string, chunks []NewChunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO chunks (id, source_id, pos, char_start, char_end, text, tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		id := idgen.New()
		if _, err := stmt.Exec(id, sourceID, i, c.CharStart, c.CharEnd, c.Text, c.Tokens); err != nil {
			return nil, fmt.Errorf("inserting chunk %d: %w", i, err)
		}
		ids[i] = id
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// NewChunk is the input shape for InsertChunks; Pos is assigned by
// slice order.
type NewChunk struct {
	CharStart int
	CharEnd   int
	Text      string
	Tokens    int
}

// DeleteChunksForSource removes all chunks (and their FTS rows, via
// trigger) belonging to a Source, ahead of re-chunking.
func (db *DB) DeleteChunksForSource(sourceID string) error {
	_, err := db.conn.Exec(`DELETE FROM chunks WHERE source_id = ?`, sourceID)
	return err
}

// GetChunksForSource returns a Source's chunks ordered by position.
func (db *DB) GetChunksForSource(sourceID string) ([]Chunk, error) {
	rows, err := db.conn.Query(
		`SELECT id, source_id, pos, char_start, char_end, text, tokens, created_at
		FROM chunks WHERE source_id = ? ORDER BY pos ASC`, sourceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// GetChunk returns a single chunk by id.
func (db *DB) GetChunk(id string) (*Chunk, error) {
	row := db.conn.QueryRow(
		`SELECT id, source_id, pos, char_start, char_end, text, tokens, created_at
		FROM chunks WHERE id = ?`, id,
	)
	var c Chunk
	if err := row.Scan(&c.ID, &c.SourceID, &c.Pos, &c.CharStart, &c.CharEnd, &c.Text, &c.Tokens, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// FTSHit is one match from a full-text chunk search.
type FTSHit struct {
	Chunk    Chunk
	BM25     float64
}

// SearchChunksFTS runs an FTS5 MATCH query against chunks_fts, joined
// back to chunks, ranked by SQLite's bm25() ranking function (lower is
// more relevant). limit bounds the result count.
func (db *DB) SearchChunksFTS(query string, limit int) ([]FTSHit, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT c.id, c.source_id, c.pos, c.char_start, c.char_end, c.text, c.tokens, c.created_at,
		       bm25(chunks_fts) AS rank
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ?
		ORDER BY rank ASC
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []FTSHit
	for rows.Next() {
		var h FTSHit
		if err := rows.Scan(&h.Chunk.ID, &h.Chunk.SourceID, &h.Chunk.Pos, &h.Chunk.CharStart,
			&h.Chunk.CharEnd, &h.Chunk.Text, &h.Chunk.Tokens, &h.Chunk.CreatedAt, &h.BM25); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// SearchChunksLike is the LIKE-based substring fallback the ranker uses
// when FTS5 MATCH returns no hits for any query, per §4.6.
func (db *DB) SearchChunksLike(term string, limit int) ([]Chunk, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(
		`SELECT id, source_id, pos, char_start, char_end, text, tokens, created_at
		FROM chunks WHERE text LIKE '%' || ? || '%' LIMIT ?`, term, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// RebuildFTS repopulates chunks_fts from chunks in full, for use after
// a migration that adds the table without a backfill, or after bulk
// external mutation of the chunks table.
func (db *DB) RebuildFTS() error {
	_, err := db.conn.Exec(`INSERT INTO chunks_fts(chunks_fts) VALUES ('rebuild')`)
	return err
}

// VerifyFTSConsistent reports whether chunks_fts's row count matches
// chunks's row count, a cheap consistency smoke test.
func (db *DB) VerifyFTSConsistent() (bool, error) {
	var chunkCount, ftsCount int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&chunkCount); err != nil {
		return false, err
	}
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM chunks_fts`).Scan(&ftsCount); err != nil {
		return false, err
	}
	return chunkCount == ftsCount, nil
}

func scanChunks(rows *sql.Rows) ([]Chunk, error) {
	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.SourceID, &c.Pos, &c.CharStart, &c.CharEnd, &c.Text, &c.Tokens, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
