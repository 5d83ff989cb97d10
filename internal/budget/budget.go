// Package budget trims ranked chunks to fit an LLM prompt's token
// ceiling, per spec §4.7. It generalizes the ad hoc char-slice
// truncation the teacher inlines in internal/triage and
// internal/synthesize (content[:4000]+"...", content[:300]) into two
// reusable, independently testable primitives.
package budget

import (
	"github.com/patrickmvla/rift-copilot/internal/textkit"
)

// Chunk is the minimal shape trimChunksToBudget needs: an identifier
// plus text to estimate and possibly shrink.
type Chunk struct {
	ID   string
	Text string
}

const minEffectiveCap = 300

// TrimChunksToBudget iterates chunks in order, summing estimated
// tokens, and stops before the running total would exceed
// max(300, budgetTokens-reserve). At least one chunk is always kept
// when the input is non-empty, even if it alone exceeds the cap.
func TrimChunksToBudget(chunks []Chunk, budgetTokens, reserve int, est *Estimator) []Chunk {
	if len(chunks) == 0 {
		return nil
	}
	if est == nil {
		est = NewEstimator()
	}

	cap := budgetTokens - reserve
	if cap < minEffectiveCap {
		cap = minEffectiveCap
	}

	out := make([]Chunk, 0, len(chunks))
	total := 0
	for _, c := range chunks {
		tokens := est.Estimate(c.ID, c.Text)
		if len(out) > 0 && total+tokens > cap {
			break
		}
		out = append(out, c)
		total += tokens
		if total >= cap {
			break
		}
	}
	return out
}

// ShrinkChunkText caps text at maxChars, preserving both ends: the
// first 70% and last 30% of the budget, joined by an ellipsis line.
// This keeps context around whatever quote a verifier might later try
// to bind, rather than truncating from the tail only.
func ShrinkChunkText(text string, maxChars int) string {
	if len(text) <= maxChars || maxChars <= 0 {
		return text
	}

	headLen := (maxChars * 70) / 100
	tailLen := maxChars - headLen

	head := text[:headLen]
	tail := text[len(text)-tailLen:]

	return head + "\n...\n" + tail
}

// Estimator memoizes per-chunk token estimates so repeated trims of
// the same chunk set (e.g. answer then verify budgeting) don't re-run
// estimateTokens's rune-scan for identical text.
type Estimator struct {
	cache map[string]int
}

// NewEstimator constructs an empty Estimator.
func NewEstimator() *Estimator {
	return &Estimator{cache: make(map[string]int)}
}

// Estimate returns the token estimate for text, keyed by id so a
// chunk that gets re-estimated after ShrinkChunkText mutates it under
// a fresh id will not read a stale cached value.
func (e *Estimator) Estimate(id, text string) int {
	if v, ok := e.cache[id]; ok {
		return v
	}
	v := textkit.EstimateTokens(text)
	e.cache[id] = v
	return v
}

// MinimalSourceRefs returns the distinct source IDs referenced by
// chunks, in first-seen order, per orchestrator step 5's "only those
// appearing in selected chunks" requirement.
func MinimalSourceRefs(chunkSourceIDs []string) []string {
	seen := make(map[string]bool, len(chunkSourceIDs))
	var out []string
	for _, id := range chunkSourceIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// EstimatePromptTokens sums estimated tokens across a set of texts
// plus a fixed overhead, used by the orchestrator's verify-skip
// ceiling check.
func EstimatePromptTokens(texts []string, overhead int) int {
	total := overhead
	for _, t := range texts {
		total += textkit.EstimateTokens(t)
	}
	return total
}
