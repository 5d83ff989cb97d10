package textkit

import "strings"

// Span is a non-empty region of text with its offsets into the
// original string.
type Span struct {
	Text  string
	Start int
	End   int
}

// SplitParagraphs splits s on blank lines, returning non-empty spans.
func SplitParagraphs(s string) []Span {
	return splitOnBoundary(s, isParagraphBoundary)
}

// SplitSentences splits s on sentence-ending punctuation followed by
// whitespace, returning non-empty spans. This is a lightweight
// heuristic, not a full NLP sentence tokenizer.
func SplitSentences(s string) []Span {
	var spans []Span
	start := 0
	n := len(s)

	i := 0
	for i < n {
		c := s[i]
		if c == '.' || c == '!' || c == '?' {
			end := i + 1
			// Absorb a trailing quote/paren after the terminator.
			for end < n && (s[end] == '"' || s[end] == '\'' || s[end] == ')') {
				end++
			}
			if end >= n || isSentenceBreakSpace(s[end]) {
				spans = append(spans, trimSpan(s, start, end))
				start = end
			}
		}
		i++
	}
	if start < n {
		spans = append(spans, trimSpan(s, start, n))
	}
	return nonEmptySpans(spans)
}

func isSentenceBreakSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}

func isParagraphBoundary(s string, i int) (skip int, isBoundary bool) {
	if s[i] != '\n' {
		return 0, false
	}
	j := i
	count := 0
	for j < len(s) && s[j] == '\n' {
		j++
		count++
	}
	if count >= 2 {
		return j - i, true
	}
	return 0, false
}

func splitOnBoundary(s string, boundary func(string, int) (int, bool)) []Span {
	var spans []Span
	start := 0
	i := 0
	for i < len(s) {
		if skip, ok := boundary(s, i); ok {
			spans = append(spans, trimSpan(s, start, i))
			i += skip
			start = i
			continue
		}
		i++
	}
	spans = append(spans, trimSpan(s, start, len(s)))
	return nonEmptySpans(spans)
}

// trimSpan trims leading/trailing whitespace from s[start:end] while
// keeping offsets relative to the original string.
func trimSpan(s string, start, end int) Span {
	for start < end && isWS(s[start]) {
		start++
	}
	for end > start && isWS(s[end-1]) {
		end--
	}
	return Span{Text: s[start:end], Start: start, End: end}
}

func isWS(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func nonEmptySpans(spans []Span) []Span {
	out := spans[:0]
	for _, sp := range spans {
		if strings.TrimSpace(sp.Text) != "" {
			out = append(out, sp)
		}
	}
	return out
}
