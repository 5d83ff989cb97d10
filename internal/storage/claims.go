package storage

import (
	"database/sql"

	"github.com/patrickmvla/rift-copilot/internal/idgen"
)

// InsertClaim records one atomic factual claim extracted from an
// assistant Message, before its evidence is bound.
func (db *DB) InsertClaim(c Claim) (string, error) {
	id := idgen.New()
	_, err := db.conn.Exec(
		`INSERT INTO claims (id, message_id, text, claim_type, support_score, contradicted, uncertainty_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, c.MessageID, c.Text, c.ClaimType, c.SupportScore, boolToInt(c.Contradicted), c.UncertaintyReason,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateClaimScore patches a Claim's support score and contradiction
// flag after evidence binding or NLI verification.
func (db *DB) UpdateClaimScore(id string, supportScore float64, contradicted bool, uncertaintyReason *string) error {
	_, err := db.conn.Exec(
		`UPDATE claims SET support_score = ?, contradicted = ?, uncertainty_reason = ? WHERE id = ?`,
		supportScore, boolToInt(contradicted), uncertaintyReason, id,
	)
	return err
}

// GetClaimsForMessage returns all claims extracted from a Message.
func (db *DB) GetClaimsForMessage(messageID string) ([]Claim, error) {
	rows, err := db.conn.Query(
		`SELECT id, message_id, text, claim_type, support_score, contradicted, uncertainty_reason
		FROM claims WHERE message_id = ?`, messageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Claim
	for rows.Next() {
		var c Claim
		var contradicted int
		if err := rows.Scan(&c.ID, &c.MessageID, &c.Text, &c.ClaimType, &c.SupportScore, &contradicted, &c.UncertaintyReason); err != nil {
			return nil, err
		}
		c.Contradicted = contradicted != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertClaimEvidence links a Claim to a chunk span that supports or
// contradicts it. The chunk must belong to sourceID (§3 invariant 4);
// callers are expected to have validated that upstream.
func (db *DB) InsertClaimEvidence(e ClaimEvidence) (string, error) {
	id := idgen.New()
	_, err := db.conn.Exec(
		`INSERT INTO claim_evidence (id, claim_id, source_id, chunk_id, quote, char_start, char_end, score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, e.ClaimID, e.SourceID, e.ChunkID, e.Quote, e.CharStart, e.CharEnd, e.Score,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetEvidenceForClaim returns all evidence rows bound to a Claim.
func (db *DB) GetEvidenceForClaim(claimID string) ([]ClaimEvidence, error) {
	rows, err := db.conn.Query(
		`SELECT id, claim_id, source_id, chunk_id, quote, char_start, char_end, score
		FROM claim_evidence WHERE claim_id = ?`, claimID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClaimEvidence
	for rows.Next() {
		var e ClaimEvidence
		if err := rows.Scan(&e.ID, &e.ClaimID, &e.SourceID, &e.ChunkID, &e.Quote, &e.CharStart, &e.CharEnd, &e.Score); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SourceOfChunk validates that a chunk belongs to the given source,
// enforcing §3 invariant 4 before InsertClaimEvidence is called.
func (db *DB) SourceOfChunk(chunkID string) (string, error) {
	var sourceID string
	err := db.conn.QueryRow(`SELECT source_id FROM chunks WHERE id = ?`, chunkID).Scan(&sourceID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return sourceID, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
