// Package orchestrator drives one research run through the six-stage
// pipeline of spec §4.10: plan, search, read, rank, answer, verify,
// then done (or error, terminal from any stage). It generalizes
// internal/pipeline/pipeline.go's Pipeline.Run, which accumulates
// StepResults from a fixed sequence of named steps and returns them
// once the whole batch finishes, into a streaming state machine that
// pushes each stage's progress through an Emit sink as it happens
// rather than returning a summary at the end.
package orchestrator

import (
	"context"
	"strconv"

	"github.com/patrickmvla/rift-copilot/internal/apierr"
	"github.com/patrickmvla/rift-copilot/internal/config"
	"github.com/patrickmvla/rift-copilot/internal/ingest"
	"github.com/patrickmvla/rift-copilot/internal/llmgateway"
	"github.com/patrickmvla/rift-copilot/internal/ranker"
	"github.com/patrickmvla/rift-copilot/internal/search"
	"github.com/patrickmvla/rift-copilot/internal/storage"
	"github.com/patrickmvla/rift-copilot/internal/verify"
)

// Depth names the three subquery-count presets from §4.10 step 1.
type Depth string

const (
	DepthQuick  Depth = "quick"
	DepthNormal Depth = "normal"
	DepthDeep   Depth = "deep"
)

func (d Depth) subqueryCap() int {
	switch d {
	case DepthDeep:
		return 6
	case DepthQuick:
		return 3
	default:
		return 4
	}
}

// Request is one research run's input.
type Request struct {
	ThreadID          string // empty creates a new thread
	Question          string
	Depth             Depth
	Constraints       string
	TimeRange         string
	Region            string
	AllowedDomains    []string
	DisallowedDomains []string
}

func (r Request) depth() Depth {
	switch r.Depth {
	case DepthQuick, DepthNormal, DepthDeep:
		return r.Depth
	default:
		return DepthNormal
	}
}

// Orchestrator wires the already-built stage components (search,
// ingest, rank, generate, verify) into the run described by §4.10.
type Orchestrator struct {
	db       *storage.DB
	searcher *search.Searcher
	ingestor *ingest.Ingestor
	ranker   *ranker.Ranker
	gateway  *llmgateway.Gateway
	verifier *verify.Verifier
	budgets  config.Budgets
	reader   config.Reader
}

// New constructs an Orchestrator from its stage components and the
// resolved budget/reader configuration.
func New(
	db *storage.DB,
	searcher *search.Searcher,
	ingestor *ingest.Ingestor,
	rk *ranker.Ranker,
	gateway *llmgateway.Gateway,
	verifier *verify.Verifier,
	budgets config.Budgets,
	reader config.Reader,
) *Orchestrator {
	return &Orchestrator{
		db:       db,
		searcher: searcher,
		ingestor: ingestor,
		ranker:   rk,
		gateway:  gateway,
		verifier: verifier,
		budgets:  budgets,
		reader:   reader,
	}
}

// runState carries values threaded across stages within a single Run
// call. It exists so each stage method can stay a short, independently
// readable function instead of Run growing into one long body.
type runState struct {
	threadID   string
	question   string
	depth      Depth
	subqueries []string
	searchOpts search.Options
	sources    []searchHit
	rankHits   []ranker.Hit
	answerText string
	messageID  string
}

// searchHit is a deduped, ingestion-candidate search result.
type searchHit struct {
	URL   string
	Title string
}

// Run executes the pipeline of §4.10 to completion, emitting exactly
// one of a "done" or "error" event before returning, except for a
// cancelled or timed-out run, which returns its error without emitting
// either. A returned error mirrors the "error" event emitted, if any;
// callers that only care about the stream can ignore it.
//
// Invariants upheld here (see §4.10):
//   - progress events are emitted in stage order, never regressing;
//   - "sources" is emitted exactly once, before the first "token";
//   - the assistant message persisted equals the concatenation of
//     streamed token deltas;
//   - no claim table write happens if verify is skipped.
func (o *Orchestrator) Run(ctx context.Context, req Request, emit Emit) error {
	st := &runState{question: req.Question, depth: req.depth()}

	threadID := req.ThreadID
	if threadID == "" {
		id, err := o.db.CreateThread(truncateTitle(req.Question), nil)
		if err != nil {
			return o.fail(ctx, emit, "plan", apierr.Wrap(apierr.StorageError, "creating thread", err))
		}
		threadID = id
	}
	st.threadID = threadID

	if _, err := o.db.AppendMessage(threadID, storage.RoleUser, req.Question); err != nil {
		return o.fail(ctx, emit, "plan", apierr.Wrap(apierr.StorageError, "recording question", err))
	}

	st.searchOpts = search.Options{
		AllowedDomains:    req.AllowedDomains,
		DisallowedDomains: req.DisallowedDomains,
		TimeRange:         req.TimeRange,
		Region:            req.Region,
	}

	emit("progress", ProgressPayload{Stage: "plan", Message: "planning search strategy"})
	if err := o.planStage(ctx, req, st); err != nil {
		return o.fail(ctx, emit, "plan", err)
	}

	if err := o.searchStage(ctx, st); err != nil {
		return o.fail(ctx, emit, "search", err)
	}
	emit("progress", ProgressPayload{Stage: "search", Message: "found " + strconv.Itoa(len(st.sources)) + " unique URLs"})

	if err := o.readStage(ctx, st, emit); err != nil {
		return o.fail(ctx, emit, "read", err)
	}

	if err := o.rankStage(ctx, st); err != nil {
		return o.fail(ctx, emit, "rank", err)
	}
	emit("progress", ProgressPayload{Stage: "rank", Message: "selected " + strconv.Itoa(len(st.rankHits)) + " snippets"})

	emit("progress", ProgressPayload{Stage: "answer", Message: "composing answer"})
	if err := o.answerStage(ctx, st, emit); err != nil {
		return o.fail(ctx, emit, "answer", err)
	}

	emit("progress", ProgressPayload{Stage: "verify", Message: "checking claims"})
	if err := o.verifyStage(ctx, st, emit); err != nil {
		return o.fail(ctx, emit, "verify", err)
	}

	emit("done", DonePayload{ThreadID: threadID})
	return nil
}

// fail emits a single terminal "error" event and returns the same
// error, upholding the "exactly one of done or error" invariant. A
// cancelled or timed-out run is silent instead: the caller went away
// or its deadline passed, so there's nothing left to notify.
func (o *Orchestrator) fail(ctx context.Context, emit Emit, stage string, err error) error {
	if ctx.Err() != nil || apierr.IsCancelled(err) {
		return err
	}
	emit("error", ErrorPayload{
		Stage:   stage,
		Kind:    string(apierr.KindOf(err)),
		Message: err.Error(),
	})
	return err
}

func truncateTitle(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max]
}

