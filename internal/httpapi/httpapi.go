// Package httpapi implements the external HTTP surface of spec §6:
// /research (SSE), /search, /ingest, /source/:id, /verify, and
// /ingest-job. It generalizes internal/server/server.go's shape (a
// *Server wrapping a plain *http.ServeMux, a New(...) (*Server, error)
// constructor, a Handler() http.Handler accessor, and a routes()
// method registering handlers with strings.TrimPrefix-based path
// parameters) from a template-rendering briefing viewer into a JSON
// and SSE API.
package httpapi

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/patrickmvla/rift-copilot/internal/config"
	"github.com/patrickmvla/rift-copilot/internal/ingest"
	"github.com/patrickmvla/rift-copilot/internal/orchestrator"
	"github.com/patrickmvla/rift-copilot/internal/ranker"
	"github.com/patrickmvla/rift-copilot/internal/search"
	"github.com/patrickmvla/rift-copilot/internal/storage"
	"github.com/patrickmvla/rift-copilot/internal/verify"
)

var jsonapi = jsoniter.ConfigCompatibleWithStandardLibrary

// Server holds the wired stage components and dispatches HTTP
// requests to them.
type Server struct {
	db       *storage.DB
	orch     *orchestrator.Orchestrator
	searcher *search.Searcher
	ingestor *ingest.Ingestor
	ranker   *ranker.Ranker
	verifier *verify.Verifier
	budgets  config.Budgets
	mux      *http.ServeMux
}

// New constructs a Server from the already-wired stage components.
func New(
	db *storage.DB,
	orch *orchestrator.Orchestrator,
	searcher *search.Searcher,
	ingestor *ingest.Ingestor,
	rk *ranker.Ranker,
	verifier *verify.Verifier,
	budgets config.Budgets,
) (*Server, error) {
	s := &Server{
		db:       db,
		orch:     orch,
		searcher: searcher,
		ingestor: ingestor,
		ranker:   rk,
		verifier: verifier,
		budgets:  budgets,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/research", s.handleResearch)
	s.mux.HandleFunc("/search", s.handleSearch)
	s.mux.HandleFunc("/ingest", s.handleIngest)
	s.mux.HandleFunc("/source/", s.handleSource)
	s.mux.HandleFunc("/verify", s.handleVerify)
	s.mux.HandleFunc("/ingest-job", s.handleIngestJob)
}

type errorBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = jsonapi.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Message: message})
}

func decodeJSONBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	return jsonapi.NewDecoder(r.Body).Decode(dst)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
