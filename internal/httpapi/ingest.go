package httpapi

import (
	"context"
	"net/http"

	"github.com/patrickmvla/rift-copilot/internal/concurrency"
	"github.com/patrickmvla/rift-copilot/internal/ingest"
)

const (
	maxIngestURLs     = 32
	ingestConcurrency = 4
)

type ingestRequest struct {
	URLs      []string `json:"urls"`
	Immediate *bool    `json:"immediate"`
	Priority  int      `json:"priority"`
}

type ingestResultBody struct {
	URL      string `json:"url"`
	Status   string `json:"status"`
	SourceID string `json:"sourceId,omitempty"`
	Message  string `json:"message,omitempty"`
}

type ingestResponse struct {
	Results   []ingestResultBody `json:"results"`
	SourceIDs []string           `json:"sourceIds"`
}

// handleIngest ingests or enqueues up to 32 URLs, per §6's /ingest endpoint.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var body ingestRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if len(body.URLs) == 0 || len(body.URLs) > maxIngestURLs {
		writeJSONError(w, http.StatusBadRequest, "urls must contain between 1 and 32 entries")
		return
	}
	immediate := true
	if body.Immediate != nil {
		immediate = *body.Immediate
	}
	priority := clampInt(body.Priority, -10, 10)

	results, _ := concurrency.MapLimit(r.Context(), body.URLs, ingestConcurrency, func(ctx context.Context, url string) (ingestResultBody, error) {
		outcome, err := s.ingestor.Ingest(ctx, url, ingest.Options{Immediate: immediate, Priority: priority})
		if err != nil {
			return ingestResultBody{URL: url, Status: "error", Message: err.Error()}, nil
		}
		return ingestResultBody{URL: url, Status: string(outcome.Status), SourceID: outcome.SourceID}, nil
	})

	sourceIDs := make([]string, 0, len(results))
	for _, res := range results {
		if res.SourceID != "" {
			sourceIDs = append(sourceIDs, res.SourceID)
		}
	}

	writeJSON(w, http.StatusOK, ingestResponse{Results: results, SourceIDs: sourceIDs})
}
