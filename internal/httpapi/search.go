package httpapi

import (
	"net/http"
	"strings"

	"github.com/patrickmvla/rift-copilot/internal/search"
)

type searchRequest struct {
	Query             string   `json:"query"`
	Size              int      `json:"size"`
	TimeRange         string   `json:"timeRange"`
	Region            string   `json:"region"`
	AllowedDomains    []string `json:"allowedDomains"`
	DisallowedDomains []string `json:"disallowedDomains"`
	ThreadID          string   `json:"threadId"`
}

type searchResultBody struct {
	URL         string   `json:"url"`
	Title       *string  `json:"title,omitempty"`
	Snippet     *string  `json:"snippet,omitempty"`
	Score       *float64 `json:"score,omitempty"`
	PublishedAt *string  `json:"publishedAt,omitempty"`
}

// handleSearch runs a single search query outside the orchestrator,
// per §6's standalone /search endpoint.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var body searchRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if len(strings.TrimSpace(body.Query)) < 2 {
		writeJSONError(w, http.StatusBadRequest, "query must be at least 2 characters")
		return
	}

	results, err := s.searcher.Search(r.Context(), body.Query, search.Options{
		Size:              body.Size,
		TimeRange:         body.TimeRange,
		Region:            body.Region,
		AllowedDomains:    body.AllowedDomains,
		DisallowedDomains: body.DisallowedDomains,
	})
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	}

	if body.ThreadID != "" {
		if encoded, err := jsonapi.MarshalToString(results); err == nil {
			threadID := body.ThreadID
			_, _ = s.db.RecordSearchEvent(&threadID, body.Query, encoded)
		}
	}

	out := make([]searchResultBody, len(results))
	for i, r := range results {
		out[i] = searchResultBody{URL: r.URL, Title: r.Title, Snippet: r.Snippet, Score: r.Score, PublishedAt: r.PublishedAt}
	}
	writeJSON(w, http.StatusOK, out)
}
