package storage

import (
	"github.com/patrickmvla/rift-copilot/internal/idgen"
)

// InsertCitation records a quoted span attributed to an assistant Message.
func (db *DB) InsertCitation(c Citation) (string, error) {
	id := idgen.New()
	_, err := db.conn.Exec(
		`INSERT INTO citations (id, message_id, source_id, chunk_id, quote, char_start, char_end, rank_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, c.MessageID, c.SourceID, c.ChunkID, c.Quote, c.CharStart, c.CharEnd, c.RankScore,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetCitationsForMessage returns all citations attached to a Message.
func (db *DB) GetCitationsForMessage(messageID string) ([]Citation, error) {
	rows, err := db.conn.Query(
		`SELECT id, message_id, source_id, chunk_id, quote, char_start, char_end, rank_score
		FROM citations WHERE message_id = ?`, messageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Citation
	for rows.Next() {
		var c Citation
		if err := rows.Scan(&c.ID, &c.MessageID, &c.SourceID, &c.ChunkID, &c.Quote, &c.CharStart, &c.CharEnd, &c.RankScore); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
