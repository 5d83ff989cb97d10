package orchestrator

import (
	"context"

	"github.com/patrickmvla/rift-copilot/internal/apierr"
	"github.com/patrickmvla/rift-copilot/internal/concurrency"
	"github.com/patrickmvla/rift-copilot/internal/search"
)

const searchConcurrency = 3

// searchStage runs every planned subquery through the searcher with
// concurrency <=3, per §4.10 step 2. Per-subquery retry of transient
// upstream failures is already handled inside Searcher.Search (§4.4
// rule 4); this stage only fans out and merges. A subquery that still
// fails after that retry is dropped rather than failing the whole
// stage, unless every subquery fails, in which case the run cannot
// proceed and the error is surfaced.
func (o *Orchestrator) searchStage(ctx context.Context, st *runState) error {
	results, errs := concurrency.MapLimit(ctx, st.subqueries, searchConcurrency,
		func(ctx context.Context, q string) ([]search.Result, error) {
			return o.searcher.Search(ctx, q, st.searchOpts)
		})

	seen := make(map[string]bool)
	var merged []searchHit
	okCount := 0
	var lastErr error

	for i, rs := range results {
		if errs[i] != nil {
			lastErr = errs[i]
			continue
		}
		okCount++
		for _, r := range rs {
			if seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			title := r.URL
			if r.Title != nil && *r.Title != "" {
				title = *r.Title
			}
			merged = append(merged, searchHit{URL: r.URL, Title: title})
		}
	}

	if okCount == 0 && lastErr != nil {
		return apierr.Wrap(apierr.UpstreamTransient, "all subquery searches failed", lastErr)
	}

	st.sources = merged
	return nil
}
