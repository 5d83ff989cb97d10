package textkit

// Window is a chunk-sized slice of text with its offsets into the
// original string and an approximate token count.
type Window struct {
	Text         string
	CharStart    int
	CharEnd      int
	ApproxTokens int
}

// WindowOptions controls SplitIntoWindows.
type WindowOptions struct {
	TargetTokens     int
	OverlapRatio     float64
	RespectParagraphs bool
}

// DefaultWindowOptions matches spec defaults: 1000-token target, 15%
// tail overlap, paragraph-respecting accumulation.
func DefaultWindowOptions() WindowOptions {
	return WindowOptions{
		TargetTokens:      1000,
		OverlapRatio:      0.15,
		RespectParagraphs: true,
	}
}

// SplitIntoWindows produces a finite sequence of overlapping windows
// sized to approximately opts.TargetTokens each. If opts.RespectParagraphs,
// windows are built by accumulating whole paragraphs; overflow is
// deferred to the next window, which starts with a tail-overlap carried
// from the end of the previous window. Otherwise, fixed-width sliding
// windows are used based on an approximate chars-per-token ratio.
func SplitIntoWindows(s string, opts WindowOptions) []Window {
	if opts.TargetTokens <= 0 {
		opts.TargetTokens = 1000
	}
	if opts.OverlapRatio < 0 {
		opts.OverlapRatio = 0
	}

	if len(s) == 0 {
		return nil
	}

	targetChars := opts.TargetTokens * 4
	overlapChars := int(float64(targetChars) * opts.OverlapRatio)

	if len(s) <= targetChars {
		return []Window{{Text: s, CharStart: 0, CharEnd: len(s), ApproxTokens: EstimateTokens(s)}}
	}

	if opts.RespectParagraphs {
		return windowsByParagraph(s, targetChars, overlapChars)
	}
	return windowsFixed(s, targetChars, overlapChars)
}

func windowsByParagraph(s string, targetChars, overlapChars int) []Window {
	paragraphs := SplitParagraphs(s)
	if len(paragraphs) == 0 {
		return windowsFixed(s, targetChars, overlapChars)
	}

	var windows []Window
	winStart := paragraphs[0].Start
	curEnd := paragraphs[0].Start

	flush := func(end int) {
		if end <= winStart {
			return
		}
		text := s[winStart:end]
		windows = append(windows, Window{
			Text:         text,
			CharStart:    winStart,
			CharEnd:      end,
			ApproxTokens: EstimateTokens(text),
		})
	}

	for i, p := range paragraphs {
		candidateLen := p.End - winStart
		if candidateLen > targetChars && curEnd > winStart {
			flush(curEnd)
			// Start next window with a tail overlap from the previous window.
			newStart := curEnd - overlapChars
			if newStart < 0 || newStart < windows[len(windows)-1].CharStart {
				newStart = curEnd
			}
			winStart = newStart
		}
		curEnd = p.End
		if i == len(paragraphs)-1 {
			flush(curEnd)
		}
	}

	if len(windows) == 0 {
		flush(len(s))
	}
	return windows
}

func windowsFixed(s string, targetChars, overlapChars int) []Window {
	var windows []Window
	step := targetChars - overlapChars
	if step <= 0 {
		step = targetChars
	}

	for start := 0; start < len(s); start += step {
		end := start + targetChars
		if end > len(s) {
			end = len(s)
		}
		text := s[start:end]
		windows = append(windows, Window{
			Text:         text,
			CharStart:    start,
			CharEnd:      end,
			ApproxTokens: EstimateTokens(text),
		})
		if end == len(s) {
			break
		}
	}
	return windows
}
