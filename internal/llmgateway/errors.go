package llmgateway

import (
	"context"
	"strings"

	"github.com/patrickmvla/rift-copilot/internal/apierr"
)

// budgetMarkers are substrings providers use across their differing
// error payload shapes to say "your input didn't fit", as opposed to
// a plain rate limit. The orchestrator's budget-recovery path (§4.10
// step 5) only triggers on this distinguishable kind, not on every
// 429.
var budgetMarkers = []string{
	"context_length_exceeded",
	"context length",
	"maximum context length",
	"too large",
	"reduce the length",
	"token limit",
}

// classifyLLMError turns an HTTP status and response body into an
// apierr Kind, distinguishing budget-exceeded from a plain transient
// rate limit or a terminal client error, per §4.8.
func classifyLLMError(status int, body string) apierr.Kind {
	lower := strings.ToLower(body)
	for _, marker := range budgetMarkers {
		if strings.Contains(lower, marker) {
			return apierr.BudgetExceeded
		}
	}
	return apierr.StatusForUpstream(status)
}

// wrapDoErr classifies an http.Client.Do failure, distinguishing a
// caller cancellation/deadline from a genuine transient upstream
// failure so a cancelled request doesn't get retried as if the
// backend were merely flaky.
func wrapDoErr(ctx context.Context, message string, err error) *apierr.Error {
	if ctx.Err() != nil {
		return apierr.Wrap(apierr.Cancelled, message, err)
	}
	return apierr.Wrap(apierr.UpstreamTransient, message, err)
}
