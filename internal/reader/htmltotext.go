package reader

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/patrickmvla/rift-copilot/internal/apierr"
)

var (
	titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	langRe  = regexp.MustCompile(`(?is)<html[^>]*\blang\s*=\s*["']?([a-zA-Z-]+)`)
	wsRe    = regexp.MustCompile(`[ \t]+`)
	nlRe    = regexp.MustCompile(`\n{3,}`)
)

// extractRaw is the tag-stripping fallback of §4.3, used when the
// primary readability extraction is unavailable or cooling down. It
// uses goquery instead of the teacher's naive regex approach so
// <script>/<style> removal and <br>/<p> conversion happen against a
// real DOM tree rather than pattern matching HTML text.
func (r *Reader) extractRaw(body []byte, finalURL, contentType string, status int) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, apierr.Wrap(apierr.ParserFailure, "parsing html", err)
	}

	doc.Find("script, style, noscript").Remove()
	doc.Find("br").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithHtml("\n")
	})
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n\n")
	})

	text := doc.Text()
	text = normalizeNewlines(text)
	text = strings.TrimSpace(text)

	res := &Result{
		Text:        text,
		FinalURL:    finalURL,
		ContentType: contentType,
		HTTPStatus:  status,
		From:        "raw",
	}

	if title := doc.Find("title").First().Text(); title != "" {
		title = strings.TrimSpace(title)
		res.Title = &title
	} else if m := titleRe.FindSubmatch(body); m != nil {
		title := strings.TrimSpace(string(m[1]))
		if title != "" {
			res.Title = &title
		}
	}

	if lang, exists := doc.Find("html").First().Attr("lang"); exists && lang != "" {
		res.Lang = &lang
	} else if m := langRe.FindSubmatch(body); m != nil {
		lang := string(m[1])
		res.Lang = &lang
	}

	return res, nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = wsRe.ReplaceAllString(s, " ")
	s = nlRe.ReplaceAllString(s, "\n\n")
	return s
}
