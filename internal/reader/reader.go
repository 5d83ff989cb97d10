// Package reader turns a URL into extracted text, per spec §4.3. It
// generalizes the teacher's ContentFetcher (internal/fetch/fetch.go),
// which fetched HTML over net/http and ran it through go-readability,
// into a two-tier primary/raw reader with an explicit cooldown for
// rate-limited primary reads.
package reader

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/patrickmvla/rift-copilot/internal/apierr"
)

// binaryContentPrefixes are rejected outright per §4.3.
var binaryContentPrefixes = []string{
	"application/pdf",
	"image/",
	"video/",
	"audio/",
	"application/octet-stream",
}

const (
	defaultTimeout    = 15 * time.Second
	defaultMaxBytes   = 3 << 20 // 3 MiB
	cooldownDuration  = 45 * time.Second
	maxRedirects      = 10
	minExtractedChars = 100
)

// Prefer selects which reader tier to try first.
type Prefer string

const (
	PreferPrimary Prefer = "primary"
	PreferRaw     Prefer = "raw"
)

// Options configures a single Read call.
type Options struct {
	TimeoutMs int
	MaxBytes  int64
	Prefer    Prefer
}

// Result is the outcome of a successful Read.
type Result struct {
	Text        string
	HTML        *string
	FinalURL    string
	Title       *string
	Lang        *string
	ContentType string
	HTTPStatus  int
	From        string // "primary" or "raw"
}

// Reader reads and extracts article text from URLs.
type Reader struct {
	client        *http.Client
	cooldownUntil atomic.Int64 // unix nanos; 0 means no cooldown
}

// New constructs a Reader with a shared HTTP client, bounded redirects
// matching the teacher's CheckRedirect cap.
func New() *Reader {
	return &Reader{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Read fetches url and extracts its text, per §4.3.
func (r *Reader) Read(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	normalized, err := normalizeURL(rawURL)
	if err != nil {
		return nil, apierr.Wrap(apierr.Validation, "invalid url", err)
	}

	timeout := time.Duration(opts.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	prefer := opts.Prefer
	if prefer == "" {
		prefer = PreferPrimary
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, finalURL, contentType, status, err := r.fetch(ctx, normalized, maxBytes)
	if err != nil {
		return nil, err
	}

	if prefer == PreferPrimary && !r.inCooldown() {
		if res, err := r.extractPrimary(body, finalURL, contentType, status); err == nil {
			return res, nil
		} else if isRateLimit(err) {
			r.enterCooldown()
		}
	}

	return r.extractRaw(body, finalURL, contentType, status)
}

// fetch performs the raw HTTP GET, rejects binary content types, and
// streams the body with a byte cap.
func (r *Reader) fetch(ctx context.Context, rawURL string, maxBytes int64) (body []byte, finalURL, contentType string, status int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", "", 0, apierr.Wrap(apierr.Validation, "building request", err)
	}
	req.Header.Set("User-Agent", "rift/1.0 (research reader)")

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", "", 0, apierr.Wrap(apierr.Timeout, "reading "+rawURL, ctx.Err())
		}
		return nil, "", "", 0, apierr.Wrap(apierr.UpstreamTransient, "connecting to "+rawURL, err)
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if isBinaryContentType(ct) {
		return nil, "", "", 0, apierr.New(apierr.BinaryContent, "binary content type: "+ct)
	}

	if resp.StatusCode >= 400 {
		kind := apierr.StatusForUpstream(resp.StatusCode)
		return nil, "", "", resp.StatusCode, apierr.New(kind, "http "+strconv.Itoa(resp.StatusCode)).WithStatus(resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", "", 0, apierr.Wrap(apierr.UpstreamTransient, "reading body of "+rawURL, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, "", "", 0, apierr.New(apierr.BudgetExceeded, "response exceeded byte cap")
	}

	finalURLStr := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURLStr = resp.Request.URL.String()
	}

	return data, finalURLStr, ct, resp.StatusCode, nil
}

func (r *Reader) inCooldown() bool {
	until := r.cooldownUntil.Load()
	return until != 0 && time.Now().UnixNano() < until
}

func (r *Reader) enterCooldown() {
	r.cooldownUntil.Store(time.Now().Add(cooldownDuration).UnixNano())
}

func isRateLimit(err error) bool {
	return apierr.KindOf(err) == apierr.UpstreamTransient
}

func normalizeURL(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Host == "" {
		return "", apierr.New(apierr.Validation, "missing host")
	}
	return u.String(), nil
}

func isBinaryContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	for _, prefix := range binaryContentPrefixes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}

// extractPrimary runs the body through go-readability, the "external
// readability service" of §4.3.
func (r *Reader) extractPrimary(body []byte, finalURL, contentType string, status int) (*Result, error) {
	parsedURL, err := url.Parse(finalURL)
	if err != nil {
		return nil, err
	}
	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return nil, apierr.Wrap(apierr.ParserFailure, "readability extraction failed", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) < minExtractedChars {
		return nil, apierr.New(apierr.ParserFailure, "insufficient extracted content")
	}

	res := &Result{
		Text:        text,
		FinalURL:    finalURL,
		ContentType: contentType,
		HTTPStatus:  status,
		From:        "primary",
	}
	if article.Title != "" {
		res.Title = &article.Title
	}
	html := article.Content
	if html != "" {
		res.HTML = &html
	}
	return res, nil
}
