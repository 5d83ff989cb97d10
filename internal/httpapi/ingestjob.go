package httpapi

import (
	"net/http"

	"github.com/patrickmvla/rift-copilot/internal/ingest"
)

type ingestJobResponse struct {
	Revived   int64 `json:"revived"`
	Claimed   int   `json:"claimed"`
	Processed int   `json:"processed"`
	OK        int   `json:"ok"`
	Exists    int   `json:"exists"`
	Requeued  int   `json:"requeued"`
	Errors    int   `json:"errors"`
	Remaining int   `json:"remaining"`
}

// handleIngestJob triggers one ingest worker batch, per §6/§4.13's
// GET|POST /ingest-job endpoint. dryRun=1 reports the current queue
// depth without claiming or processing any job.
func (s *Server) handleIngestJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "GET or POST required")
		return
	}

	q := r.URL.Query()
	limit := clampInt(queryInt(r, "limit", 20), 1, 50)
	concurrency := clampInt(queryInt(r, "concurrency", 4), 1, 8)
	reviveStaleSec := clampInt(queryInt(r, "reviveStaleSec", 300), 60, 3600)
	dryRun := q.Get("dryRun") == "1"

	if dryRun {
		remaining, err := s.db.CountQueuedIngestJobs()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, ingestJobResponse{Remaining: remaining})
		return
	}

	counts, err := s.ingestor.RunBatch(r.Context(), ingest.WorkerOptions{
		Limit:          limit,
		Pool:           concurrency,
		ReviveStaleSec: reviveStaleSec,
	})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ingestJobResponse{
		Revived:   counts.Revived,
		Claimed:   counts.Claimed,
		Processed: counts.Processed,
		OK:        counts.OK,
		Exists:    counts.Exists,
		Requeued:  counts.Requeued,
		Errors:    counts.Errors,
		Remaining: counts.Remaining,
	})
}
