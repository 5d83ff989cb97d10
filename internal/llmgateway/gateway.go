// Package llmgateway provides a single stream/generate interface over
// pluggable LLM backends with named model aliases, per spec §4.8. It
// generalizes internal/llm/llm.go's OllamaProvider/OpenAIProvider
// pair, which exposed only a blocking Generate, into a gateway that
// also streams (needed for the answer stage) and classifies
// provider-side token/rate errors so the orchestrator can react.
package llmgateway

import (
	"context"
	"time"
)

// ModelAlias names one of the four fixed model roles the orchestrator
// calls by purpose rather than by concrete model id.
type ModelAlias string

const (
	AliasPlan      ModelAlias = "plan"
	AliasAnswer    ModelAlias = "answer"
	AliasVerify    ModelAlias = "verify"
	AliasReasoning ModelAlias = "reasoning"
)

// aliasDefaults holds the temperature/streaming defaults per §4.8;
// a Request may override Temperature explicitly.
var aliasDefaults = map[ModelAlias]struct {
	temperature float64
	stream      bool
}{
	AliasPlan:      {temperature: 0, stream: false},
	AliasAnswer:    {temperature: 0.2, stream: true},
	AliasVerify:    {temperature: 0, stream: false},
	AliasReasoning: {temperature: 0.2, stream: false},
}

// Request is a model-agnostic call into the gateway.
type Request struct {
	ModelAlias      ModelAlias
	System          string
	Prompt          string
	Messages        []Message
	Temperature     *float64 // nil uses the alias default
	MaxOutputTokens int
}

// Message is one turn in a multi-turn prompt.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Delta is one lazily-produced fragment of a streamed generation. Err
// is set on the final delta only when the stream ended abnormally;
// callers should stop accumulating text once Err is non-nil.
type Delta struct {
	Text string
	Err  error
}

func (r Request) temperature() float64 {
	if r.Temperature != nil {
		return *r.Temperature
	}
	return aliasDefaults[r.ModelAlias].temperature
}

// Backend is a concrete LLM provider (Ollama, OpenAI-compatible, ...).
// The gateway resolves a Request's ModelAlias to a model id and
// delegates to a Backend.
type Backend interface {
	Generate(ctx context.Context, model string, req Request) (string, error)
	Stream(ctx context.Context, model string, req Request) (<-chan Delta, error)
	IsConfigured() bool
}

// ModelSet maps aliases to a backend's concrete model identifiers.
type ModelSet struct {
	Plan      string
	Answer    string
	Verify    string
	Reasoning string
}

func (m ModelSet) resolve(alias ModelAlias) string {
	switch alias {
	case AliasPlan:
		return m.Plan
	case AliasAnswer:
		return m.Answer
	case AliasVerify:
		return m.Verify
	case AliasReasoning:
		return m.Reasoning
	default:
		return m.Answer
	}
}

// Gateway resolves aliases against a ModelSet and dispatches to a
// single configured Backend. Providers.LLM in config names exactly
// one backend; a fallback backend is deliberately not modeled here
// since spec §7 routes LLM failures to the orchestrator's error path
// rather than a silent provider swap.
type Gateway struct {
	backend Backend
	models  ModelSet
	timeout time.Duration
}

// New constructs a Gateway. timeout, if positive, bounds every
// Generate call that doesn't already carry a shorter deadline on ctx;
// Stream calls are not bounded by it.
func New(backend Backend, models ModelSet, timeout time.Duration) *Gateway {
	return &Gateway{backend: backend, models: models, timeout: timeout}
}

// IsConfigured reports whether the underlying backend is usable.
func (g *Gateway) IsConfigured() bool {
	return g.backend != nil && g.backend.IsConfigured()
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.timeout)
}

// Generate resolves req's alias to a model id and returns a single
// completion.
func (g *Gateway) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	model := g.models.resolve(req.ModelAlias)
	return g.backend.Generate(ctx, model, req)
}

// Stream resolves req's alias to a model id and returns a channel of
// text deltas, closed when generation completes or fails. A failure
// mid-stream is reported as a final Delta with Err set before the
// channel closes. The gateway timeout is not applied here; the stream
// runs until ctx is done or the backend finishes.
func (g *Gateway) Stream(ctx context.Context, req Request) (<-chan Delta, error) {
	model := g.models.resolve(req.ModelAlias)
	return g.backend.Stream(ctx, model, req)
}
