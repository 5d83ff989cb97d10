package httpapi

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
)

const (
	defaultChunkLimit   = 20
	defaultSnippetChars = 500
)

// markdownRenderer renders a source's stored content as HTML for the
// optional render=html debug view, the way internal/server/server.go's
// package-level `md` renders briefing markdown into template output.
var markdownRenderer = goldmark.New()

type sourceBody struct {
	ID          string      `json:"id"`
	URL         string      `json:"url"`
	Domain      string      `json:"domain"`
	Title       *string     `json:"title,omitempty"`
	Status      string      `json:"status"`
	CreatedAt   string      `json:"createdAt"`
	Content     string      `json:"content,omitempty"`
	ContentHTML string      `json:"contentHtml,omitempty"`
	Chunks      []chunkBody `json:"chunks,omitempty"`
}

type chunkBody struct {
	ID        string `json:"id"`
	Pos       int    `json:"pos"`
	CharStart int    `json:"charStart"`
	CharEnd   int    `json:"charEnd"`
	Text      string `json:"text"`
}

// handleSource returns source metadata plus optional content/chunk
// previews, per §6's GET /source/:id endpoint.
func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/source/")
	if id == "" {
		writeJSONError(w, http.StatusBadRequest, "missing source id")
		return
	}

	src, err := s.db.GetSource(id)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if src == nil {
		writeJSONError(w, http.StatusNotFound, "source not found")
		return
	}

	body := sourceBody{ID: src.ID, URL: src.URL, Domain: src.Domain, Title: src.Title, Status: string(src.Status), CreatedAt: src.CreatedAt}

	include := strings.Split(r.URL.Query().Get("include"), ",")
	wantContent, wantChunks := false, false
	for _, part := range include {
		switch strings.TrimSpace(part) {
		case "content":
			wantContent = true
		case "chunks":
			wantChunks = true
		}
	}

	if wantContent {
		if content, err := s.db.GetSourceContent(id); err == nil && content != nil {
			snippetChars := clampInt(queryInt(r, "snippetChars", defaultSnippetChars), 100, 8000)
			fullContent := r.URL.Query().Get("fullContent") == "1"
			text := content.Text
			if !fullContent && len(text) > snippetChars {
				text = text[:snippetChars]
			}
			body.Content = text

			if r.URL.Query().Get("render") == "html" {
				var buf bytes.Buffer
				if err := markdownRenderer.Convert([]byte(text), &buf); err == nil {
					body.ContentHTML = buf.String()
				}
			}
		}
	}

	if wantChunks {
		chunkLimit := clampInt(queryInt(r, "chunkLimit", defaultChunkLimit), 1, 50)
		if chunks, err := s.db.GetChunksForSource(id); err == nil {
			if len(chunks) > chunkLimit {
				chunks = chunks[:chunkLimit]
			}
			body.Chunks = make([]chunkBody, len(chunks))
			for i, c := range chunks {
				body.Chunks[i] = chunkBody{ID: c.ID, Pos: c.Pos, CharStart: c.CharStart, CharEnd: c.CharEnd, Text: c.Text}
			}
		}
	}

	writeJSON(w, http.StatusOK, body)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
