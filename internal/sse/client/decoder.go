// Package client implements a line-accumulating SSE decoder robust to
// arbitrary chunk boundaries, per spec §4.12. It generalizes the
// stdlib bufio.Scanner idiom the teacher's HTTP clients already lean
// on (internal/collect/newsapi.go's json.Decoder over a response
// body) into a byte-stream decoder that reconstructs whole events
// from partial network reads instead of whole JSON documents.
package client

import "strings"

// Event is one decoded SSE event.
type Event struct {
	Event string // empty means the default "message" event
	Data  string // multi-line data joined by "\n"
	ID    string
	Retry int
}

// Decoder accumulates bytes across calls to Feed and yields complete
// events and comments as they become available.
type Decoder struct {
	buf      strings.Builder
	curEvent string
	curData  []string
	curID    string
	curRetry int
	hasField bool
}

// NewDecoder constructs an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends chunk (normalizing "\r\n" to "\n") and returns any
// complete events and comments it produced. Partial trailing data is
// retained for the next Feed call.
func (d *Decoder) Feed(chunk []byte) (events []Event, comments []string) {
	normalized := strings.ReplaceAll(string(chunk), "\r\n", "\n")
	d.buf.WriteString(normalized)

	full := d.buf.String()
	lines := strings.Split(full, "\n")

	// The last element is either "" (buf ended exactly on a newline)
	// or a partial line; keep it buffered for the next Feed.
	tail := lines[len(lines)-1]
	lines = lines[:len(lines)-1]

	d.buf.Reset()
	d.buf.WriteString(tail)

	for _, line := range lines {
		if line == "" {
			if d.hasField {
				events = append(events, Event{
					Event: defaultEventName(d.curEvent),
					Data:  strings.Join(d.curData, "\n"),
					ID:    d.curID,
					Retry: d.curRetry,
				})
			}
			d.resetEvent()
			continue
		}

		if strings.HasPrefix(line, ":") {
			comments = append(comments, strings.TrimPrefix(line, ":"))
			continue
		}

		field, value := splitField(line)
		switch field {
		case "event":
			d.curEvent = value
			d.hasField = true
		case "data":
			d.curData = append(d.curData, value)
			d.hasField = true
		case "id":
			d.curID = value
			d.hasField = true
		case "retry":
			d.curRetry = parseIntOrZero(value)
			d.hasField = true
		default:
			// Unknown fields are ignored per the SSE spec.
		}
	}

	return events, comments
}

func (d *Decoder) resetEvent() {
	d.curEvent = ""
	d.curData = nil
	d.curID = ""
	d.curRetry = 0
	d.hasField = false
}

func defaultEventName(e string) string {
	if e == "" {
		return "message"
	}
	return e
}

// splitField parses a "field: value" or "field:value" line. The SSE
// spec allows exactly one leading space after the colon to be
// stripped.
func splitField(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx == -1 {
		return line, ""
	}
	field = line[:idx]
	value = line[idx+1:]
	value = strings.TrimPrefix(value, " ")
	return field, value
}

func parseIntOrZero(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
