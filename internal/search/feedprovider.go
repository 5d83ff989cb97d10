package search

import (
	"context"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/patrickmvla/rift-copilot/internal/apierr"
)

const maxEntriesPerFeed = 20

// FeedProvider is the fallback search backend of §4.4: it parses a
// fixed set of RSS/Atom feeds and keyword-matches the query against
// entry titles and descriptions, generalizing the teacher's FeedParser (which returned
// every entry unconditionally rather than searching them).
type FeedProvider struct {
	feedURLs []string
	parser   *gofeed.Parser
}

// NewFeedProvider builds a FeedProvider over a fixed set of feed URLs.
func NewFeedProvider(feedURLs []string) *FeedProvider {
	return &FeedProvider{feedURLs: feedURLs, parser: gofeed.NewParser()}
}

func (p *FeedProvider) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	terms := queryTerms(query)
	var out []Result

	for _, feedURL := range p.feedURLs {
		if ctx.Err() != nil {
			return out, apierr.Wrap(apierr.Cancelled, "feed search cancelled", ctx.Err())
		}

		feed, err := p.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			continue // one bad feed doesn't fail the whole fallback
		}

		count := 0
		for _, item := range feed.Items {
			if count >= maxEntriesPerFeed {
				break
			}
			if item.Link == "" || item.Title == "" {
				continue
			}
			if len(terms) > 0 && !matchesAny(item.Title+" "+item.Description, terms) {
				continue
			}

			title := item.Title
			res := Result{URL: item.Link, Title: &title}
			if item.Description != "" {
				desc := stripTags(item.Description)
				res.Snippet = &desc
			}
			if pub := publishedDate(item); pub != "" {
				res.PublishedAt = &pub
			}
			out = append(out, res)
			count++

			if len(out) >= opts.Size && opts.Size > 0 {
				return out, nil
			}
		}
	}

	return out, nil
}

func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 3 {
			terms = append(terms, f)
		}
	}
	return terms
}

func matchesAny(haystack string, terms []string) bool {
	lower := strings.ToLower(haystack)
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

func publishedDate(item *gofeed.Item) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.Format("2006-01-02")
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.Format("2006-01-02")
	}
	return ""
}

func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
