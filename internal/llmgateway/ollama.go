package llmgateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmvla/rift-copilot/internal/apierr"
)

// OllamaBackend talks to a local Ollama server's chat API, generalizing
// internal/llm/llm.go's OllamaProvider with streaming support.
type OllamaBackend struct {
	BaseURL string
	client  *http.Client
}

// NewOllamaBackend constructs an OllamaBackend.
func NewOllamaBackend(baseURL string) *OllamaBackend {
	return &OllamaBackend{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured checks that the Ollama server is reachable.
func (o *OllamaBackend) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (o *OllamaBackend) chatBody(model string, req Request, stream bool) ([]byte, error) {
	messages := ollamaMessages(req)
	body := map[string]any{
		"model":    model,
		"messages": messages,
		"stream":   stream,
		"options": map[string]any{
			"num_predict": req.MaxOutputTokens,
			"temperature": req.temperature(),
		},
	}
	return json.Marshal(body)
}

func ollamaMessages(req Request) []map[string]string {
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

// Generate sends a non-streaming chat request.
func (o *OllamaBackend) Generate(ctx context.Context, model string, req Request) (string, error) {
	data, err := o.chatBody(model, req, false)
	if err != nil {
		return "", apierr.Wrap(apierr.Validation, "marshaling ollama request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", apierr.Wrap(apierr.Validation, "building ollama request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", wrapDoErr(ctx, "ollama request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", apierr.New(classifyLLMError(resp.StatusCode, string(respBody)),
			fmt.Sprintf("ollama returned %d: %s", resp.StatusCode, string(respBody))).WithStatus(resp.StatusCode)
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", apierr.Wrap(apierr.ParserFailure, "decoding ollama response", err)
	}
	return result.Message.Content, nil
}

// Stream sends a streaming chat request and forwards each NDJSON
// line's message content as a Delta.
func (o *OllamaBackend) Stream(ctx context.Context, model string, req Request) (<-chan Delta, error) {
	data, err := o.chatBody(model, req, true)
	if err != nil {
		return nil, apierr.Wrap(apierr.Validation, "marshaling ollama request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, apierr.Wrap(apierr.Validation, "building ollama request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, wrapDoErr(ctx, "ollama stream request failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, apierr.New(classifyLLMError(resp.StatusCode, string(respBody)),
			fmt.Sprintf("ollama returned %d: %s", resp.StatusCode, string(respBody))).WithStatus(resp.StatusCode)
	}

	out := make(chan Delta)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var chunk struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
				Done bool `json:"done"`
			}
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				continue
			}
			if chunk.Message.Content != "" {
				select {
				case out <- Delta{Text: chunk.Message.Content}:
				case <-ctx.Done():
					return
				}
			}
			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case out <- Delta{Err: apierr.Wrap(apierr.UpstreamTransient, "ollama stream read failed", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}
