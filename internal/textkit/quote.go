package textkit

import (
	"strings"
	"unicode/utf8"
)

// QuoteMatchOptions controls FindQuoteOffsets.
type QuoteMatchOptions struct {
	// MaxSteps bounds the work performed, guarding against pathological
	// inputs. Zero means use the default (~2M).
	MaxSteps int
}

const defaultMaxSteps = 2_000_000

// Offsets is a half-open [Start, End) span into the haystack.
type Offsets struct {
	Start int
	End   int
}

// FindQuoteOffsets locates needle within hay under tolerant matching:
// case-insensitive, whitespace-elided (a run or absence of whitespace
// at the same boundary compares equal), and normalized quotes/dashes.
// It returns nil if no match is found within the step budget.
func FindQuoteOffsets(hay, needle string, opts QuoteMatchOptions) *Offsets {
	if needle == "" || hay == "" {
		return nil
	}
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}

	normHay, hayMap := normalizeWithMap(hay)
	normNeedle, _ := normalizeWithMap(needle)
	normNeedle = strings.TrimSpace(normNeedle)
	if normNeedle == "" {
		return nil
	}

	steps := 0
	limit := len(normHay) - len(normNeedle)
	for i := 0; i <= limit; i++ {
		steps++
		if steps > maxSteps {
			return nil
		}
		if normHay[i:i+len(normNeedle)] == normNeedle {
			start := hayMap[i]
			// End is just past the last matched rune, so whitespace
			// elided after the match is not part of the span.
			last := hayMap[i+len(normNeedle)-1]
			_, size := utf8.DecodeRuneInString(hay[last:])
			return &Offsets{Start: start, End: last + size}
		}
	}
	return nil
}

// normalizeWithMap lowercases hay, elides whitespace entirely (so a
// present vs. absent space at a word boundary never blocks a match,
// e.g. "770 °C" against a needle's "770°C"), and normalizes curly
// quotes/dashes to their plain ASCII equivalents, returning the
// normalized string alongside a map from each normalized byte index
// back to its original-string index (with one extra trailing entry
// equal to len(original)).
func normalizeWithMap(s string) (string, []int) {
	var b strings.Builder
	idxMap := make([]int, 0, len(s)+1)

	runes := []rune(s)
	byteOffsets := runeByteOffsets(s, runes)

	for i, r := range runes {
		orig := byteOffsets[i]
		nr := normalizeRune(r)
		if nr == ' ' {
			continue
		}
		lower := toLowerRune(nr)
		lowerBytes := string(lower)
		for range lowerBytes {
			idxMap = append(idxMap, orig)
		}
		b.WriteString(lowerBytes)
	}
	idxMap = append(idxMap, len(s))

	return b.String(), idxMap
}

func runeByteOffsets(s string, runes []rune) []int {
	offsets := make([]int, len(runes))
	byteIdx := 0
	for i, r := range runes {
		offsets[i] = byteIdx
		byteIdx += len(string(r))
	}
	_ = s
	return offsets
}

func normalizeRune(r rune) rune {
	switch r {
	case '‘', '’', 'ʼ', '´':
		return '\''
	case '“', '”':
		return '"'
	case '–', '—', '−':
		return '-'
	case '\t', '\n', '\r':
		return ' '
	}
	if r == ' ' {
		return ' '
	}
	return r
}

func toLowerRune(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r - 'A' + 'a'
	}
	if r < 0x80 {
		return r
	}
	// Fall back to strings.ToLower for the rare non-ASCII case; this
	// runs per-rune only for non-ASCII input, which is not the hot path.
	lowered := strings.ToLower(string(r))
	for _, lr := range lowered {
		return lr
	}
	return r
}
