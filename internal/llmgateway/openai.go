package llmgateway

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/patrickmvla/rift-copilot/internal/apierr"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIBackend talks to an OpenAI-compatible chat completions API,
// generalizing internal/llm/llm.go's OpenAIProvider with SSE
// streaming and jsoniter for the higher-volume decode path.
type OpenAIBackend struct {
	APIKey  string
	BaseURL string
	client  *http.Client
}

// NewOpenAIBackend constructs an OpenAIBackend, reading the API key
// from apiKeyEnv.
func NewOpenAIBackend(apiKeyEnv, baseURL string) *OpenAIBackend {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIBackend{
		APIKey:  os.Getenv(apiKeyEnv),
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured reports whether an API key is present.
func (o *OpenAIBackend) IsConfigured() bool {
	return o.APIKey != ""
}

func openaiMessages(req Request) []map[string]string {
	var out []map[string]string
	if req.System != "" {
		out = append(out, map[string]string{"role": "system", "content": req.System})
	}
	for _, m := range req.Messages {
		out = append(out, map[string]string{"role": m.Role, "content": m.Content})
	}
	if req.Prompt != "" {
		out = append(out, map[string]string{"role": "user", "content": req.Prompt})
	}
	return out
}

func (o *OpenAIBackend) newRequest(ctx context.Context, model string, req Request, stream bool) (*http.Request, error) {
	body := map[string]any{
		"model":       model,
		"messages":    openaiMessages(req),
		"max_tokens":  req.MaxOutputTokens,
		"temperature": req.temperature(),
		"stream":      stream,
	}
	data, err := jsoniter.Marshal(body)
	if err != nil {
		return nil, apierr.Wrap(apierr.Validation, "marshaling openai request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, apierr.Wrap(apierr.Validation, "building openai request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.APIKey)
	return httpReq, nil
}

// Generate sends a non-streaming chat completion request.
func (o *OpenAIBackend) Generate(ctx context.Context, model string, req Request) (string, error) {
	if o.APIKey == "" {
		return "", apierr.New(apierr.Validation, "openai api key not configured")
	}

	httpReq, err := o.newRequest(ctx, model, req, false)
	if err != nil {
		return "", err
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", wrapDoErr(ctx, "openai request failed", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", apierr.New(classifyLLMError(resp.StatusCode, string(respBody)),
			fmt.Sprintf("openai returned %d: %s", resp.StatusCode, string(respBody))).WithStatus(resp.StatusCode)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := jsoniter.Unmarshal(respBody, &result); err != nil {
		return "", apierr.Wrap(apierr.ParserFailure, "decoding openai response", err)
	}
	if len(result.Choices) == 0 {
		return "", apierr.New(apierr.ParserFailure, "no choices in openai response")
	}
	return result.Choices[0].Message.Content, nil
}

// Stream sends a streaming chat completion request and forwards each
// SSE `data:` line's delta content, per the OpenAI streaming format.
func (o *OpenAIBackend) Stream(ctx context.Context, model string, req Request) (<-chan Delta, error) {
	if o.APIKey == "" {
		return nil, apierr.New(apierr.Validation, "openai api key not configured")
	}

	httpReq, err := o.newRequest(ctx, model, req, true)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, wrapDoErr(ctx, "openai stream request failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, apierr.New(classifyLLMError(resp.StatusCode, string(respBody)),
			fmt.Sprintf("openai returned %d: %s", resp.StatusCode, string(respBody))).WithStatus(resp.StatusCode)
	}

	out := make(chan Delta)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" {
				continue
			}
			if payload == "[DONE]" {
				return
			}

			var chunk struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
					FinishReason *string `json:"finish_reason"`
				} `json:"choices"`
			}
			if err := jsoniter.Unmarshal([]byte(payload), &chunk); err != nil {
				continue
			}
			for _, c := range chunk.Choices {
				if c.Delta.Content != "" {
					select {
					case out <- Delta{Text: c.Delta.Content}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case out <- Delta{Err: apierr.Wrap(apierr.UpstreamTransient, "openai stream read failed", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}
