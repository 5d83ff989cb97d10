package storage

import (
	"database/sql"

	"github.com/patrickmvla/rift-copilot/internal/idgen"
)

// CreateThread inserts a new Thread and returns its generated id.
func (db *DB) CreateThread(title string, visitorID *string) (string, error) {
	id := idgen.New()
	_, err := db.conn.Exec(
		`INSERT INTO threads (id, title, visitor_id) VALUES (?, ?, ?)`,
		id, title, visitorID,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetThread returns a single Thread by id, or nil if not found.
func (db *DB) GetThread(id string) (*Thread, error) {
	row := db.conn.QueryRow(
		`SELECT id, title, visitor_id, created_at FROM threads WHERE id = ?`, id,
	)
	var t Thread
	if err := row.Scan(&t.ID, &t.Title, &t.VisitorID, &t.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// AppendMessage inserts a new Message on a Thread and returns its id.
func (db *DB) AppendMessage(threadID string, role MessageRole, contentMd string) (string, error) {
	id := idgen.New()
	_, err := db.conn.Exec(
		`INSERT INTO messages (id, thread_id, role, content_md) VALUES (?, ?, ?, ?)`,
		id, threadID, string(role), contentMd,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetMessagesForThread returns a Thread's messages in creation order.
func (db *DB) GetMessagesForThread(threadID string) ([]Message, error) {
	rows, err := db.conn.Query(
		`SELECT id, thread_id, role, content_md, created_at FROM messages
		WHERE thread_id = ? ORDER BY created_at ASC, rowid ASC`, threadID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var role string
		if err := rows.Scan(&m.ID, &m.ThreadID, &role, &m.ContentMd, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = MessageRole(role)
		out = append(out, m)
	}
	return out, rows.Err()
}
