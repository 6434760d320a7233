// Package sse encodes session lifecycle events into the text/event-stream
// wire format used by /chat_stream.
package sse

import (
	"strings"

	json "github.com/goccy/go-json"

	"chatstream/pkg/types"
)

// ContentType is the media type of an encoded event stream.
const ContentType = "text/event-stream"

// Kind tags a wire event.
type Kind int

const (
	KindData Kind = iota
	KindEnd
	KindError
)

// Event is a single wire event. Text is the fragment for KindData and the
// message for KindError; it is ignored for KindEnd.
type Event struct {
	Kind Kind
	Text string
}

// Data returns a data event carrying a generated fragment.
func Data(text string) Event { return Event{Kind: KindData, Text: text} }

// End returns the terminal success event.
func End() Event { return Event{Kind: KindEnd} }

// Error returns the terminal failure event.
func Error(msg string) Event { return Event{Kind: KindError, Text: msg} }

// Terminal reports whether ev ends an event sequence.
func (ev Event) Terminal() bool { return ev.Kind != KindData }

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Encode returns the wire bytes of ev.
func Encode(ev Event) []byte { return Append(nil, ev) }

// Append appends the wire bytes of ev to dst.
//
// Line endings in fragment text (CRLF and bare CR) are normalized to LF, and
// a fragment spanning several lines becomes one "data:" field per line, which
// SSE parsers join back with "\n".
func Append(dst []byte, ev Event) []byte {
	switch ev.Kind {
	case KindEnd:
		return append(dst, "event: end\ndata: {}\n\n"...)
	case KindError:
		dst = append(dst, "event: error\ndata: "...)
		dst = append(dst, errorPayload(ev.Text)...)
		return append(dst, "\n\n"...)
	default:
		text := newlines.Replace(ev.Text)
		for {
			line, rest, more := strings.Cut(text, "\n")
			dst = append(dst, "data: "...)
			dst = append(dst, line...)
			dst = append(dst, '\n')
			if !more {
				break
			}
			text = rest
		}
		return append(dst, '\n')
	}
}

// errorPayload renders {"error": "<msg>"} with msg JSON-escaped.
func errorPayload(msg string) []byte {
	b, err := json.Marshal(msg)
	if err != nil {
		b = []byte(`"internal error"`)
	}
	out := make([]byte, 0, len(b)+11)
	out = append(out, `{"error": `...)
	out = append(out, b...)
	return append(out, '}')
}

// DecodeError extracts the message of an error payload written by Encode.
func DecodeError(data string) (string, error) {
	var p types.ErrorResponse
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return "", err
	}
	return p.Error, nil
}
