package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/patrickmvla/rift-copilot/internal/apierr"
)

// WebProvider is the primary generic web-search backend, a thin
// wrapper over a JSON search API, generalizing the teacher's
// NewsAPIClient (HTTP GET + query params + typed JSON decode) to any
// endpoint returning a results array of {url,title,snippet,date}-like
// objects.
type WebProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewWebProvider builds a WebProvider reading its API key from the
// named environment variable, the way the teacher's NewNewsAPIClient does.
func NewWebProvider(apiKeyEnv, baseURL string) *WebProvider {
	if baseURL == "" {
		baseURL = "https://api.search.brave.com/res/v1/web/search"
	}
	return &WebProvider{
		apiKey:  os.Getenv(apiKeyEnv),
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// IsConfigured reports whether an API key was found.
func (p *WebProvider) IsConfigured() bool {
	return p.apiKey != ""
}

func (p *WebProvider) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if !p.IsConfigured() {
		return nil, apierr.New(apierr.Validation, "search provider not configured")
	}

	timeout := time.Duration(opts.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	params := url.Values{
		"q":     {query},
		"count": {fmt.Sprintf("%d", opts.Size)},
	}
	if opts.Region != "" {
		params.Set("country", opts.Region)
	}
	if opts.TimeRange != "" {
		params.Set("freshness", opts.TimeRange)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, apierr.Wrap(apierr.Validation, "building search request", err)
	}
	req.Header.Set("X-Subscription-Token", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apierr.Wrap(apierr.Timeout, "search request", ctx.Err())
		}
		return nil, apierr.Wrap(apierr.UpstreamTransient, "search request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		kind := apierr.StatusForUpstream(resp.StatusCode)
		return nil, apierr.New(kind, fmt.Sprintf("search provider returned %d", resp.StatusCode)).WithStatus(resp.StatusCode)
	}

	var payload struct {
		Web struct {
			Results []struct {
				URL         string `json:"url"`
				Title       string `json:"title"`
				Description string `json:"description"`
				Age         string `json:"age"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apierr.Wrap(apierr.ParserFailure, "decoding search response", err)
	}

	results := make([]Result, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		if r.URL == "" || r.Title == "" {
			continue
		}
		title := strings.TrimSpace(r.Title)
		res := Result{URL: r.URL, Title: &title}
		if r.Description != "" {
			snippet := strings.TrimSpace(r.Description)
			res.Snippet = &snippet
		}
		if r.Age != "" {
			if t, err := dateparse.ParseAny(r.Age); err == nil {
				pub := t.Format("2006-01-02")
				res.PublishedAt = &pub
			}
		}
		results = append(results, res)
	}
	return results, nil
}
