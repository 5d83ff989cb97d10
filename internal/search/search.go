// Package search implements the query→results adapter of spec §4.4:
// a primary generic web-search provider with query-loosening retry, a
// feed-based fallback, transient-error backoff, domain filtering, and
// canonicalize-then-dedupe post-processing. It generalizes the
// teacher's internal/collect package (NewsAPIClient + FeedParser),
// which combined a single API client and a fixed feed list inline in
// its collection loop, into two interchangeable Provider
// implementations behind one adapter.
package search

import (
	"context"
	"regexp"
	"strings"

	"github.com/patrickmvla/rift-copilot/internal/apierr"
	"github.com/patrickmvla/rift-copilot/internal/concurrency"
	"github.com/patrickmvla/rift-copilot/internal/urlcanon"
)

// Result is one canonicalized search hit.
type Result struct {
	URL         string
	Title       *string
	Snippet     *string
	Score       *float64
	PublishedAt *string
}

// Options configures a single Search call.
type Options struct {
	Size              int
	TimeRange         string
	AllowedDomains    []string
	DisallowedDomains []string
	Region            string
	TimeoutMs         int
}

// Provider is a single search backend, primary or fallback.
type Provider interface {
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// Searcher runs the primary/fallback/retry/filter/dedupe pipeline of §4.4.
type Searcher struct {
	primary  Provider
	fallback Provider
}

// New constructs a Searcher. fallback may be nil if none is configured.
func New(primary Provider, fallback Provider) *Searcher {
	return &Searcher{primary: primary, fallback: fallback}
}

var (
	quotesParensRe = regexp.MustCompile(`["'()]+`)
	multiSpaceRe   = regexp.MustCompile(`\s+`)
)

// Search runs the full algorithm of §4.4. A degraded-path error
// (transient-after-retry or non-retryable) at any step does not
// abort the call: it terminates that step and Search proceeds to the
// next degraded path (loosened retry, then fallback provider), per
// §7's "terminate that call, proceed with degraded path" policy. Only
// if every path is exhausted with no results does Search return the
// last error seen; a cancelled context still aborts immediately.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if opts.Size <= 0 {
		opts.Size = 10
	}

	results, lastErr := s.searchWithRetry(ctx, s.primary, query, opts)
	if lastErr != nil && apierr.IsCancelled(lastErr) {
		return nil, lastErr
	}

	if len(results) == 0 {
		loosened := loosenQuery(query)
		widened := opts
		widened.Size = opts.Size * 2
		widened.AllowedDomains = nil
		widened.DisallowedDomains = nil
		var err error
		results, err = s.searchWithRetry(ctx, s.primary, loosened, widened)
		if err != nil && apierr.IsCancelled(err) {
			return nil, err
		}
		if err != nil {
			lastErr = err
		} else if len(results) > 0 {
			lastErr = nil
		}
	}

	if len(results) == 0 && s.fallback != nil {
		var err error
		results, err = s.searchWithRetry(ctx, s.fallback, query, opts)
		if err != nil && apierr.IsCancelled(err) {
			return nil, err
		}
		if err != nil {
			lastErr = err
		} else if len(results) > 0 {
			lastErr = nil
		}
	}

	if len(results) == 0 && lastErr != nil {
		return nil, lastErr
	}

	filtered := filterByDomain(results, opts.AllowedDomains, opts.DisallowedDomains)
	return canonicalizeAndDedupe(filtered), nil
}

// searchWithRetry retries transient upstream failures per §4.4 rule 4.
func (s *Searcher) searchWithRetry(ctx context.Context, p Provider, query string, opts Options) ([]Result, error) {
	if p == nil {
		return nil, nil
	}

	var results []Result
	err := concurrency.Retry(ctx, concurrency.DefaultRetryOptions(), apierr.IsRetryable, func(ctx context.Context) error {
		r, err := p.Search(ctx, query, opts)
		if err != nil {
			return err
		}
		results = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func loosenQuery(query string) string {
	loosened := quotesParensRe.ReplaceAllString(query, " ")
	loosened = multiSpaceRe.ReplaceAllString(loosened, " ")
	return strings.TrimSpace(loosened)
}

func filterByDomain(results []Result, allowed, disallowed []string) []Result {
	if len(allowed) == 0 && len(disallowed) == 0 {
		return results
	}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		host := urlcanon.Domain(r.URL)
		if len(allowed) > 0 && !hasSuffixMatch(host, allowed) {
			continue
		}
		if len(disallowed) > 0 && hasSuffixMatch(host, disallowed) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func hasSuffixMatch(host string, domains []string) bool {
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func canonicalizeAndDedupe(results []Result) []Result {
	seen := make(map[string]struct{}, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		canonical, err := urlcanon.Canonicalize(r.URL)
		if err != nil {
			continue
		}
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		r.URL = canonical
		out = append(out, r)
	}
	return out
}
