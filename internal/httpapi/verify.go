package httpapi

import (
	"net/http"

	"github.com/patrickmvla/rift-copilot/internal/orchestrator"
	"github.com/patrickmvla/rift-copilot/internal/prompts"
	"github.com/patrickmvla/rift-copilot/internal/verify"
)

type verifySnippetBody struct {
	SourceID string `json:"sourceId"`
	ChunkID  string `json:"chunkId"`
	Text     string `json:"text"`
}

type verifyRequest struct {
	AnswerMarkdown        string              `json:"answerMarkdown"`
	Snippets              []verifySnippetBody `json:"snippets"`
	MaxClaims             int                 `json:"maxClaims"`
	BindOffsets           *bool               `json:"bindOffsets"`
	NLIContradictionCheck bool                `json:"nliContradictionCheck"`
}

// handleVerify runs claim extraction standalone against a
// caller-supplied answer and snippet set, per §6's /verify endpoint.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var body verifyRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if body.AnswerMarkdown == "" {
		writeJSONError(w, http.StatusBadRequest, "answerMarkdown is required")
		return
	}

	bindOffsets := true
	if body.BindOffsets != nil {
		bindOffsets = *body.BindOffsets
	}

	chunkTextByID := make(map[string]string, len(body.Snippets))
	activeSourceIDs := make(map[string]bool, len(body.Snippets))
	activeChunkIDs := make(map[string]bool, len(body.Snippets))
	snippets := make([]prompts.SnippetRef, len(body.Snippets))
	for i, sn := range body.Snippets {
		snippets[i] = prompts.SnippetRef{SourceID: sn.SourceID, ChunkID: sn.ChunkID, Text: sn.Text}
		if sn.ChunkID != "" {
			chunkTextByID[sn.ChunkID] = sn.Text
			activeChunkIDs[sn.ChunkID] = true
		}
		activeSourceIDs[sn.SourceID] = true
	}

	claims, err := s.verifier.Verify(r.Context(), verify.Input{
		AnswerMarkdown: body.AnswerMarkdown,
		Snippets:       snippets,
	}, verify.Options{
		MaxClaims:             body.MaxClaims,
		BindOffsets:           bindOffsets,
		ChunkTextByID:         chunkTextByID,
		ActiveSourceIDs:       activeSourceIDs,
		ActiveChunkIDs:        activeChunkIDs,
		NLIContradictionCheck: body.NLIContradictionCheck,
	})
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, verifyResponseFromClaims(claims))
}

func verifyResponseFromClaims(claims []verify.Claim) orchestrator.ClaimsPayload {
	out := make([]orchestrator.ClaimInfo, len(claims))
	for i, c := range claims {
		evidence := make([]orchestrator.EvidenceInfo, len(c.Evidence))
		for j, e := range c.Evidence {
			evidence[j] = orchestrator.EvidenceInfo{SourceID: e.SourceID, ChunkID: e.ChunkID, Quote: e.Quote, CharStart: e.CharStart, CharEnd: e.CharEnd}
		}
		uncertainty := ""
		if c.UncertaintyReason != nil {
			uncertainty = *c.UncertaintyReason
		}
		out[i] = orchestrator.ClaimInfo{
			Text:              c.Text,
			ClaimType:         string(c.ClaimType),
			SupportScore:      c.SupportScore,
			Contradicted:      c.Contradicted,
			UncertaintyReason: uncertainty,
			Evidence:          evidence,
		}
	}
	return orchestrator.ClaimsPayload{Claims: out}
}
