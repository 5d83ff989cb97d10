package orchestrator

import (
	"context"
	"strconv"
	"sync"

	"github.com/patrickmvla/rift-copilot/internal/concurrency"
	"github.com/patrickmvla/rift-copilot/internal/ingest"
)

const (
	defaultInlineCap         = 12
	defaultReaderConcurrency = 3
)

// readStage selects the top N candidate URLs and ingests them with
// bounded concurrency, per §4.10 step 3. Failed reads are dropped
// silently; the stage only fails if ctx is cancelled.
func (o *Orchestrator) readStage(ctx context.Context, st *runState, emit Emit) error {
	inlineCap := o.budgets.MaxSourcesInline
	if inlineCap <= 0 {
		inlineCap = defaultInlineCap
	}
	if len(st.sources) > inlineCap {
		st.sources = st.sources[:inlineCap]
	}

	n := o.reader.Concurrency
	if n < 2 {
		n = defaultReaderConcurrency
	}
	if n > 4 {
		n = 4
	}

	var mu sync.Mutex
	completed := 0
	ingested := make([]string, 0, len(st.sources))

	_, errs := concurrency.MapLimit(ctx, st.sources, n, func(ctx context.Context, hit searchHit) (struct{}, error) {
		outcome, err := o.ingestor.Ingest(ctx, hit.URL, ingest.Options{Immediate: true})

		mu.Lock()
		completed++
		if err == nil {
			ingested = append(ingested, outcome.SourceID)
		}
		if completed%2 == 0 {
			emit("progress", ProgressPayload{Stage: "read", Message: "read " + strconv.Itoa(completed) + "/" + strconv.Itoa(len(st.sources))})
		}
		mu.Unlock()

		return struct{}{}, err
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	_ = errs // per-item read failures are discarded, not propagated

	emit("progress", ProgressPayload{Stage: "read", Message: "read " + strconv.Itoa(len(ingested)) + " sources"})
	return nil
}
