package llmgateway

import (
	"log"
	"strings"
	"time"

	"github.com/patrickmvla/rift-copilot/internal/config"
)

// NewFromConfig builds a Gateway from the resolved LLM provider
// config, generalizing internal/llm/llm.go's CreateProvider
// ollama-then-openai-fallback selection into a single explicit
// provider choice (config no longer guesses; §6 requires the caller
// to name a provider).
func NewFromConfig(cfg config.LLMProvider, requestTimeoutMs int) *Gateway {
	models := ModelSet{
		Plan:      cfg.Models.Plan,
		Answer:    cfg.Models.Answer,
		Verify:    cfg.Models.Verify,
		Reasoning: cfg.Models.Reasoning,
	}
	timeout := time.Duration(requestTimeoutMs) * time.Millisecond

	var backend Backend
	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		backend = NewOllamaBackend(cfg.BaseURL)
	case "openai":
		backend = NewOpenAIBackend(cfg.APIKeyEnv, cfg.BaseURL)
	default:
		log.Printf("llmgateway: unknown provider %q, defaulting to openai-compatible", cfg.Provider)
		backend = NewOpenAIBackend(cfg.APIKeyEnv, cfg.BaseURL)
	}

	return New(backend, models, timeout)
}
