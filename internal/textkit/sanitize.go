// Package textkit provides pure, total text utilities used across the
// research pipeline: sanitization, token estimation, paragraph/sentence
// splitting, windowed chunking, and tolerant quote matching.
package textkit

import (
	"html"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SanitizeOptions controls Sanitize's behavior.
type SanitizeOptions struct {
	// KeepNewlines preserves tab/newline/CR when stripping control chars.
	KeepNewlines bool
	// DecodeHTMLEntities decodes things like &amp; and &#39;.
	DecodeHTMLEntities bool
	// CollapseWhitespace collapses runs of whitespace to a single space.
	CollapseWhitespace bool
	// StripMarkdown removes common markdown emphasis/heading/link syntax.
	StripMarkdown bool
}

// DefaultSanitizeOptions matches the common ingestion path: NFKC
// normalize, decode entities, collapse whitespace, keep newlines.
func DefaultSanitizeOptions() SanitizeOptions {
	return SanitizeOptions{
		KeepNewlines:       true,
		DecodeHTMLEntities: true,
		CollapseWhitespace: true,
	}
}

// Sanitize normalizes s to NFKC, strips control characters, and applies
// the requested optional transforms. The result is never longer than s.
func Sanitize(s string, opts SanitizeOptions) string {
	out := norm.NFKC.String(s)

	if opts.DecodeHTMLEntities {
		out = html.UnescapeString(out)
	}

	out = stripControl(out, opts.KeepNewlines)

	if opts.StripMarkdown {
		out = stripMarkdown(out)
	}

	if opts.CollapseWhitespace {
		out = collapseWhitespace(out)
	}

	return out
}

func stripControl(s string, keepNewlines bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\t' || r == '\n' || r == '\r' {
			if keepNewlines {
				b.WriteRune(r)
			} else {
				b.WriteRune(' ')
			}
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var markdownEmphasis = []string{"**", "__", "*", "_", "`", "#"}

func stripMarkdown(s string) string {
	out := s
	for _, tok := range markdownEmphasis {
		out = strings.ReplaceAll(out, tok, "")
	}
	return out
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastWasSpace := false
	for _, r := range s {
		isSpace := unicode.IsSpace(r) && r != '\n'
		if isSpace {
			if !lastWasSpace {
				b.WriteRune(' ')
			}
			lastWasSpace = true
			continue
		}
		lastWasSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
