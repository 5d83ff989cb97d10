// Package prompts builds the {system, user} prompt pairs the LLM
// gateway sends for each task the orchestrator drives, per spec
// §4.11. It generalizes the teacher's raw string constant +
// fmt.Sprintf pattern (internal/triage/triage.go's triagePrompt,
// internal/synthesize/synthesize.go's synthesisPrompt,
// internal/compose/compose.go's composePrompt) into typed builders
// that take structured inputs instead of positional %s slots.
package prompts

import (
	"fmt"
	"strings"
)

// Pair is a {system, user} prompt, the shape every LLM gateway call
// accepts.
type Pair struct {
	System string
	User   string
}

// SourceRef is a numbered source entry for the answer prompt's
// citation list.
type SourceRef struct {
	Number int
	Title  string
	URL    string
	Domain string
}

// SnippetRef is one budgeted chunk of evidence text attributed to a
// numbered source.
type SnippetRef struct {
	SourceNumber int
	ChunkID      string
	SourceID     string
	Text         string
}

const planSystem = `You are a research planning assistant. Decompose the user's question into a small set of concrete, independently searchable subqueries. Respond with strict JSON only, no prose, no code fences.`

const planUserTemplate = `Question: %s
Depth: %s
Constraints: %s

Respond with ONLY this JSON:
{
  "intent": "one phrase describing what the user wants",
  "subqueries": ["subquery 1", "subquery 2", ...],
  "focus": ["optional focus area", ...],
  "constraints": {}
}`

// BuildPlanPrompt builds the prompt for the plan stage. depth is one
// of "quick", "normal", "deep"; constraints is rendered as free text
// (e.g. domain allow/deny lists, recency requirements).
func BuildPlanPrompt(question, depth, constraints string) Pair {
	if constraints == "" {
		constraints = "none"
	}
	return Pair{
		System: planSystem,
		User:   fmt.Sprintf(planUserTemplate, question, depth, constraints),
	}
}

const answerSystem = `You are a careful research assistant answering questions strictly from the numbered sources provided. Every factual claim must carry an inline numeric citation like [1] or [2][3] that maps to the numbered sources list. Write markdown only. Do not add a bibliography section; the sources list is shown separately. Do not speculate beyond what the sources support. If the sources don't answer the question, say so plainly.`

const answerUserTemplate = `Question: %s

Sources:
%s

Context snippets:
%s

Write the answer now, citing sources inline as you go.`

// BuildAnswerPrompt builds the prompt for the streaming answer stage.
func BuildAnswerPrompt(question string, sources []SourceRef, snippets []SnippetRef) Pair {
	return Pair{
		System: answerSystem,
		User:   fmt.Sprintf(answerUserTemplate, question, formatSources(sources), formatSnippets(snippets)),
	}
}

func formatSources(sources []SourceRef) string {
	if len(sources) == 0 {
		return "(none)"
	}
	var lines []string
	for _, s := range sources {
		lines = append(lines, fmt.Sprintf("[%d] %s (%s) %s", s.Number, s.Title, s.Domain, s.URL))
	}
	return strings.Join(lines, "\n")
}

func formatSnippets(snippets []SnippetRef) string {
	if len(snippets) == 0 {
		return "(none)"
	}
	var parts []string
	for _, s := range snippets {
		parts = append(parts, fmt.Sprintf("[%d] %s", s.SourceNumber, s.Text))
	}
	return strings.Join(parts, "\n\n")
}

const verifySystem = `You are a strict fact-checking verifier. You extract atomic, quote-backed claims from an answer and score how well the provided evidence supports each one. Respond with JSON only: no prose, no code fences, no explanation outside the JSON structure.`

const verifyUserTemplate = `Answer to verify:
%s

Available evidence snippets:
%s

Extract at most %d atomic claims from the answer above. For each claim, find the evidence snippet(s) that support it and quote the exact supporting text.

Respond with ONLY this JSON:
{
  "claims": [
    {
      "text": "the atomic claim, as stated in the answer",
      "claimType": "fact" | "inference" | "opinion",
      "supportScore": 0.0-1.0,
      "contradicted": false,
      "uncertaintyReason": null,
      "evidence": [
        {"sourceId": "...", "chunkId": "...", "quote": "exact substring from the snippet"}
      ]
    }
  ]
}`

// BuildVerifyPrompt builds the prompt for the verify stage.
func BuildVerifyPrompt(answerMarkdown string, snippets []SnippetRef, maxClaims int) Pair {
	return Pair{
		System: verifySystem,
		User:   fmt.Sprintf(verifyUserTemplate, answerMarkdown, formatEvidenceSnippets(snippets), maxClaims),
	}
}

func formatEvidenceSnippets(snippets []SnippetRef) string {
	if len(snippets) == 0 {
		return "(none)"
	}
	var parts []string
	for _, s := range snippets {
		parts = append(parts, fmt.Sprintf("sourceId=%s chunkId=%s\n%s", s.SourceID, s.ChunkID, s.Text))
	}
	return strings.Join(parts, "\n\n")
}

const nliSystem = `You determine the logical relationship between two pieces of evidence text with respect to a claim. Respond with JSON only, no code fences.`

const nliUserTemplate = `Claim: %s

Evidence A: %s

Evidence B: %s

Does Evidence A and Evidence B, taken together with respect to the claim, entail, contradict, or remain neutral?

Respond with ONLY this JSON:
{"label": "entail" | "contradict" | "neutral", "rationale": "one sentence"}`

// BuildNLIPrompt builds the prompt for a single cross-evidence
// contradiction check.
func BuildNLIPrompt(claimText, evidenceA, evidenceB string) Pair {
	return Pair{
		System: nliSystem,
		User:   fmt.Sprintf(nliUserTemplate, claimText, evidenceA, evidenceB),
	}
}

const sourceTrustSystem = `You assess how credible a web source is likely to be for research purposes, based only on its domain and title. Respond with JSON only, no code fences.`

const sourceTrustUserTemplate = `Domain: %s
Title: %s
Snippet: %s

Respond with ONLY this JSON:
{"trustScore": 0.0-1.0, "rationale": "one sentence"}`

// BuildSourceTrustPrompt builds the prompt for the source-trust task,
// used to weight ranking or flag low-credibility domains before they
// reach the answer stage.
func BuildSourceTrustPrompt(domain, title, snippet string) Pair {
	return Pair{
		System: sourceTrustSystem,
		User:   fmt.Sprintf(sourceTrustUserTemplate, domain, title, snippet),
	}
}

const rerankSystem = `You score how relevant each candidate passage is to a search query, on a 0.0-1.0 scale. Respond with JSON only, no code fences.`

const rerankUserTemplate = `Query: %s

Candidates:
%s

Respond with ONLY this JSON:
{"scores": [0.0-1.0, ...]}
The scores array must have exactly %d entries, in the same order as the candidates.`

// BuildRerankPrompt builds the prompt for the optional cross-encoder
// rerank task: scoring each candidate snippet's relevance to query.
func BuildRerankPrompt(query string, candidates []string) Pair {
	var b strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}
	return Pair{
		System: rerankSystem,
		User:   fmt.Sprintf(rerankUserTemplate, query, b.String(), len(candidates)),
	}
}
