package orchestrator

import (
	"context"

	"github.com/patrickmvla/rift-copilot/internal/ranker"
)

func rankOptions() ranker.Options {
	return ranker.Options{Cap: 24, PerSourceLimit: 3}
}

// rankStage runs the Ranker across the question and every planned
// subquery, per §4.10 step 4. Ranker.RankForQueries already owns the
// FTS-backfill-then-LIKE-fallback chain of §4.6, so this stage is a
// thin call-through plus the fixed cap/perSourceLimit the orchestrator
// contract specifies and the configured rerank flag.
func (o *Orchestrator) rankStage(ctx context.Context, st *runState) error {
	queries := make([]string, 0, len(st.subqueries)+1)
	queries = append(queries, st.question)
	queries = append(queries, st.subqueries...)

	opts := rankOptions()
	opts.EnableRerank = o.budgets.EnableRerank
	hits, err := o.ranker.RankForQueries(ctx, queries, opts)
	if err != nil {
		return err
	}

	st.rankHits = hits
	return nil
}
