package httpapi

import (
	"net/http"
	"strings"

	"github.com/patrickmvla/rift-copilot/internal/orchestrator"
	"github.com/patrickmvla/rift-copilot/internal/sse"
)

type timeRangeBody struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type researchRequest struct {
	ThreadID          string        `json:"threadId"`
	Question          string        `json:"question"`
	Depth             string        `json:"depth"`
	TimeRange         timeRangeBody `json:"timeRange"`
	Region            string        `json:"region"`
	AllowedDomains    []string      `json:"allowedDomains"`
	DisallowedDomains []string      `json:"disallowedDomains"`
}

// handleResearch runs one research pipeline and streams its events
// over SSE, per §4.10/§4.12. Validation happens before the SSE stream
// starts so a bad request gets a plain 400 JSON body instead of an
// error event; once streaming begins, a client disconnect cancels the
// run via r.Context() and nothing further is written.
func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var body researchRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if len(strings.TrimSpace(body.Question)) < 8 {
		writeJSONError(w, http.StatusBadRequest, "question must be at least 8 characters")
		return
	}

	depth := orchestrator.Depth(body.Depth)
	switch depth {
	case orchestrator.DepthQuick, orchestrator.DepthNormal, orchestrator.DepthDeep, "":
	default:
		writeJSONError(w, http.StatusBadRequest, "depth must be quick, normal, or deep")
		return
	}

	req := orchestrator.Request{
		ThreadID:          body.ThreadID,
		Question:          body.Question,
		Depth:             depth,
		Region:            body.Region,
		AllowedDomains:    body.AllowedDomains,
		DisallowedDomains: body.DisallowedDomains,
	}
	if body.TimeRange.From != "" || body.TimeRange.To != "" {
		req.TimeRange = body.TimeRange.From + ".." + body.TimeRange.To
	}

	if ctx := r.Context(); ctx.Err() != nil {
		w.WriteHeader(499)
		return
	}

	writer, err := sse.New(w)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	writer.StartHeartbeat(0)
	defer writer.Close("run finished")

	emit := func(event string, data any) {
		if event == "token" {
			text, _ := data.(string)
			_ = writer.Send(text, sse.SendOptions{Event: "token", Raw: true})
			return
		}
		encoded, err := jsonapi.MarshalToString(data)
		if err != nil {
			return
		}
		_ = writer.Send(encoded, sse.SendOptions{Event: event})
	}

	_ = s.orch.Run(r.Context(), req, emit)
}
